package cli

import (
	"context"
	"crypto/rsa"
	"database/sql"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apiclient "github.com/sentinel-chat/sentinel/internal/client/client"
	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/messages"
	"github.com/sentinel-chat/sentinel/internal/client/services"
	"github.com/sentinel-chat/sentinel/internal/client/transport"
	"github.com/sentinel-chat/sentinel/internal/cryptox"
	"github.com/sentinel-chat/sentinel/internal/logging"

	_ "modernc.org/sqlite"
)

// one shared identity key; generating RSA pairs per test is needlessly slow
var (
	appKeyOnce sync.Once
	appKey     *rsa.PrivateKey
	appKeyErr  error
)

func sessionKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	appKeyOnce.Do(func() {
		appKey, appKeyErr = cryptox.GenerateIdentityKeys()
	})
	require.NoError(t, appKeyErr)
	return appKey
}

type stubChannel struct {
	events chan transport.Event
	mu     sync.Mutex
	closed bool
}

func (c *stubChannel) Events() <-chan transport.Event { return c.events }

func (c *stubChannel) EnterChat(*int64, string) error { return nil }

func (c *stubChannel) Send(transport.OutboundMessage) error {
	return transport.ErrTransportClosed
}

func (c *stubChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.events)
	}
	return nil
}

type stubAPI struct {
	conversationsErr error
}

func (s *stubAPI) Conversations(context.Context) ([]models.Conversation, error) {
	return nil, s.conversationsErr
}

func (s *stubAPI) History(context.Context, int64) ([]apiclient.HistoryRecord, error) {
	return nil, nil
}

func (s *stubAPI) SearchUsers(context.Context, string) ([]models.Contact, error) {
	return nil, nil
}

func appWithSession(t *testing.T, api *stubAPI) *App {
	t.Helper()

	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	_, err = db.Exec(`CREATE TABLE messages (
		id INTEGER PRIMARY KEY,
		conversation_id INTEGER NOT NULL,
		sender_fp TEXT NOT NULL,
		recipient_id INTEGER NOT NULL DEFAULT 0,
		recipient_fp TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		unreadable INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL
	)`)
	require.NoError(t, err)

	ch := &stubChannel{events: make(chan transport.Event)}
	session := services.NewSession(api, ch, messages.NewSQLiteRepository(db), &services.Unlocked{
		Identity:   models.Identity{ID: 1, Username: "alice", Fingerprint: "FP-ALICE"},
		PrivateKey: sessionKey(t),
	}, logging.NewSlogLogger(slog.New(slog.DiscardHandler)))

	a := &App{
		session: session,
		current: &models.Contact{ID: 2, Username: "bob", Fingerprint: "FP-BOB"},
	}
	t.Cleanup(a.stopSession)
	return a
}

func TestChats_AuthExpiredTearsSessionDown(t *testing.T) {
	a := appWithSession(t, &stubAPI{conversationsErr: apiclient.ErrAuthExpired})

	err := a.Chats(context.Background())
	require.ErrorIs(t, err, apiclient.ErrAuthExpired)

	assert.Nil(t, a.session, "the unlocked session must be released")
	assert.Nil(t, a.current)
	assert.False(t, a.isLoggedIn(), "the next command must require a fresh login")
}

func TestChats_OtherErrorsKeepSession(t *testing.T) {
	boom := errors.New("boom")
	a := appWithSession(t, &stubAPI{conversationsErr: boom})

	err := a.Chats(context.Background())
	require.ErrorIs(t, err, boom)

	assert.NotNil(t, a.session, "a transient failure must not log the user out")
}

func TestSend_TransportErrorIsReportedNotSwallowed(t *testing.T) {
	a := appWithSession(t, &stubAPI{})
	ctx := context.Background()

	pub, err := cryptox.ExportPublicKey(&sessionKey(t).PublicKey)
	require.NoError(t, err)
	require.NoError(t, a.session.OpenConversation(ctx, models.Contact{
		ID: 2, Username: "bob", Fingerprint: "FP-BOB",
		PublicKey: pub, ConversationID: 42,
	}))

	err = a.Send(ctx, "hello")
	require.ErrorIs(t, err, transport.ErrTransportClosed)
	assert.NotNil(t, a.session, "a send failure alone must not end the session")
}
