package config

import (
	"flag"
	"os"

	"github.com/sentinel-chat/sentinel/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the backend REST API (default from Config)
//	-w string   base URL of the websocket endpoint (default from Config)
//	-d string   sqlite DSN of the local cache (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-w", "-d"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerAddr, "a", cfg.ServerAddr, "base URL of the backend REST API")
	fs.StringVar(&cfg.WsAddr, "w", cfg.WsAddr, "base URL of the websocket endpoint")
	fs.StringVar(&cfg.CacheDSN, "d", cfg.CacheDSN, "sqlite DSN of the local cache")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
