package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"

	"github.com/sentinel-chat/sentinel/internal/client/client"
	"github.com/sentinel-chat/sentinel/internal/client/config"
	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/client/services"
	"github.com/sentinel-chat/sentinel/internal/client/transport"
	"github.com/sentinel-chat/sentinel/internal/logging"

	_ "modernc.org/sqlite"
)

// App is the interactive sentinel client. One logged-in session at a time;
// login opens the websocket channel, logout tears it down and wipes the
// local cache.
type App struct {
	config      *config.Config
	api         *client.Client
	repos       *client.Repositories
	authService services.AuthService
	log         logging.Logger
	reader      *bufio.Reader

	session *services.Session
	current *models.Contact
}

// NewApp wires the client stack: local cache DB (migrated on start), REST
// client, and auth service.
func NewApp(c *config.Config) (*App, error) {
	ctx := context.Background()

	repos, err := client.InitDatabase(ctx, c.CacheDSN)
	if err != nil {
		return nil, err
	}

	api := client.New(c.ServerAddr)
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	return &App{
		config:      c,
		api:         api,
		repos:       repos,
		authService: services.NewAuthService(api, repos.DB),
		log:         log,
		reader:      bufio.NewReader(os.Stdin),
	}, nil
}

// Run drives the REPL until exit, then releases the session and the DB.
func (a *App) Run(ctx context.Context) {
	defer a.shutdown()
	a.Root(ctx)
}

func (a *App) isLoggedIn() bool {
	return a.session != nil
}

// startSession opens the websocket channel for the unlocked identity and
// binds the session loop to it.
func (a *App) startSession(ctx context.Context, u *services.Unlocked) error {
	tr := transport.New(a.config.WsAddr, u.Identity.Fingerprint, a.api.Token(), a.log)
	if err := tr.Open(ctx); err != nil {
		return err
	}
	a.session = services.NewSession(a.api, tr, a.repos.Messages, u, a.log)
	return nil
}

func (a *App) stopSession() {
	if a.session != nil {
		_ = a.session.Close()
		a.session = nil
	}
	a.current = nil
}

func (a *App) shutdown() {
	a.stopSession()
	_ = a.repos.DB.Close()
}

// reportError surfaces a command failure to the user. An expired bearer
// token additionally tears the whole session down: the unlocked key and the
// channel are released and the next command requires a fresh login.
func (a *App) reportError(err error) error {
	if errors.Is(err, client.ErrAuthExpired) {
		a.stopSession()
		fmt.Println("Session expired, please log in again")
		return err
	}
	log.Printf("Command failed: %s", err.Error())
	return err
}
