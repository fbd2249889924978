package client

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/client/migrations"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/keys"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/messages"
	"github.com/pressly/goose/v3"
)

// Repositories bundles the local cache repositories together with the
// underlying handle, so services can run multi-repo transactions.
type Repositories struct {
	Keys     keys.Repository
	Messages messages.Repository
	DB       *sql.DB
}

// RunMigrations applies the embedded goose migrations to the cache DB.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}

// InitDatabase opens (creating if necessary) the local cache DB at dsn,
// migrates it, and returns the repository set.
func InitDatabase(ctx context.Context, dsn string) (*Repositories, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		return nil, err
	}

	return &Repositories{
		Keys:     keys.NewSQLiteRepository(db),
		Messages: messages.NewSQLiteRepository(db),
		DB:       db,
	}, nil
}
