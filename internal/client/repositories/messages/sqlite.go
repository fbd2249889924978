package messages

import (
	"context"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/dbx"
)

// SQLiteRepository implements Repository using a DBTX (either *sql.DB or *sql.Tx).
type SQLiteRepository struct {
	db dbx.DBTX
}

// NewSQLiteRepository returns a new SQLiteRepository bound to the given DBTX.
func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) Put(ctx context.Context, m *models.Message) error {
	query := `INSERT INTO messages (id, conversation_id, sender_fp, recipient_id, recipient_fp, content, unreadable, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET conversation_id = excluded.conversation_id,
				sender_fp = excluded.sender_fp,
				recipient_id = excluded.recipient_id,
				recipient_fp = excluded.recipient_fp,
				content = excluded.content,
				unreadable = excluded.unreadable,
				created_at = excluded.created_at
	`
	_, err := r.db.ExecContext(ctx, query,
		m.ID, m.ConversationID, m.SenderFP, m.RecipientID, m.RecipientFP, m.Content, m.Unreadable, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert message: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) QueryByConversation(ctx context.Context, conversationID int64) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_fp, recipient_id, recipient_fp, content, unreadable, created_at
			FROM messages WHERE conversation_id = ?`
	rows, err := r.db.QueryContext(ctx, query, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages by conversation: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *SQLiteRepository) QueryBySender(ctx context.Context, senderFP string) ([]models.Message, error) {
	query := `SELECT id, conversation_id, sender_fp, recipient_id, recipient_fp, content, unreadable, created_at
			FROM messages WHERE sender_fp = ?`
	rows, err := r.db.QueryContext(ctx, query, senderFP)
	if err != nil {
		return nil, fmt.Errorf("failed to select messages by sender: %w", err)
	}
	defer rows.Close()

	return scanMessages(rows)
}

func (r *SQLiteRepository) Clear(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM messages`); err != nil {
		return fmt.Errorf("failed to clear messages: %w", err)
	}
	return nil
}

type sqlRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanMessages(rows sqlRows) ([]models.Message, error) {
	var result []models.Message
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderFP, &m.RecipientID,
			&m.RecipientFP, &m.Content, &m.Unreadable, &m.CreatedAt); err != nil {
			return nil, err
		}
		// everything in the cache has been through the server
		m.State = models.DeliveryConfirmed
		result = append(result, m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
