// Package messages persists decrypted conversation history in the local
// cache DB. The cache is advisory: the server-confirmed stream always wins
// on conflict, and ordering is the reconciliation engine's job, not ours.
package messages

import (
	"context"

	"github.com/sentinel-chat/sentinel/internal/client/models"
)

// Repository stores Message rows keyed by server-assigned id, with
// secondary indices on conversation id and sender fingerprint.
type Repository interface {
	// Put upserts a message by id. Optimistic placeholders are never
	// written here; only confirmed messages reach the cache.
	Put(ctx context.Context, m *models.Message) error

	// QueryByConversation returns cached messages of one conversation,
	// in no particular order.
	QueryByConversation(ctx context.Context, conversationID int64) ([]models.Message, error)

	// QueryBySender returns cached messages authored by one fingerprint,
	// in no particular order.
	QueryBySender(ctx context.Context, senderFP string) ([]models.Message, error)

	// Clear drops the whole message cache (logout/device wipe).
	Clear(ctx context.Context) error
}
