// Package keys persists the per-device wrapped private key records.
package keys

import (
	"context"

	"github.com/sentinel-chat/sentinel/internal/client/models"
)

// Repository stores KeyRecord values keyed by username. The private key in
// a record is always password-wrapped; plaintext key material never touches
// this layer.
type Repository interface {
	// Save upserts the record for its username.
	Save(ctx context.Context, rec *models.KeyRecord) error

	// Get returns the record for username, or shared.ErrNotFound.
	Get(ctx context.Context, username string) (*models.KeyRecord, error)

	// Clear removes all locally cached key records (logout/device wipe).
	Clear(ctx context.Context) error
}
