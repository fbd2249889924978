package main

import (
	"context"
	"log"
	"os"

	"github.com/sentinel-chat/sentinel/internal/buildinfo"
	"github.com/sentinel-chat/sentinel/internal/client/cli"
	"github.com/sentinel-chat/sentinel/internal/client/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := cli.NewApp(cfg)

	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
