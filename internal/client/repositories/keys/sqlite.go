package keys

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/dbx"
	"github.com/sentinel-chat/sentinel/internal/shared"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Save(ctx context.Context, rec *models.KeyRecord) error {
	query := `INSERT INTO keys (username, enc_private_key, salt)
			VALUES (?, ?, ?)
			ON CONFLICT(username) DO UPDATE SET enc_private_key = excluded.enc_private_key,
				salt = excluded.salt
	`
	_, err := r.db.ExecContext(ctx, query, rec.Username, rec.EncPrivateKey, rec.Salt)
	if err != nil {
		return fmt.Errorf("failed to upsert key record: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Get(ctx context.Context, username string) (*models.KeyRecord, error) {
	query := `SELECT username, enc_private_key, salt FROM keys WHERE username = ?`
	row := r.db.QueryRowContext(ctx, query, username)

	rec := &models.KeyRecord{}
	if err := row.Scan(&rec.Username, &rec.EncPrivateKey, &rec.Salt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, shared.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get key record: %w", err)
	}
	return rec, nil
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM keys`); err != nil {
		return fmt.Errorf("failed to clear key records: %w", err)
	}
	return nil
}
