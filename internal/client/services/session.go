package services

import (
	"context"
	"crypto/rsa"
	"fmt"
	stdsync "sync"

	"github.com/google/uuid"

	"github.com/sentinel-chat/sentinel/internal/client/client"
	"github.com/sentinel-chat/sentinel/internal/client/models"
	"github.com/sentinel-chat/sentinel/internal/client/repositories/messages"
	"github.com/sentinel-chat/sentinel/internal/client/sync"
	"github.com/sentinel-chat/sentinel/internal/client/transport"
	"github.com/sentinel-chat/sentinel/internal/cryptox"
	"github.com/sentinel-chat/sentinel/internal/logging"
)

// sessionAPI is the REST surface the session consumes.
type sessionAPI interface {
	Conversations(ctx context.Context) ([]models.Conversation, error)
	History(ctx context.Context, conversationID int64) ([]client.HistoryRecord, error)
	SearchUsers(ctx context.Context, query string) ([]models.Contact, error)
}

// channel is the live websocket surface the session consumes.
type channel interface {
	Events() <-chan transport.Event
	EnterChat(conversationID *int64, recipientFP string) error
	Send(msg transport.OutboundMessage) error
	Close() error
}

// Session binds an unlocked identity to one live channel and owns the
// reconciliation loop. It decrypts inbound envelopes, feeds the engine,
// and mirrors confirmed messages into the local cache.
//
// Contract:
//   - OpenConversation: make one peer current, announce it on the channel,
//     and merge cached-then-fetched history into the timeline.
//   - SendText: dual-encrypt, insert optimistically, transmit.
//   - Timeline/Unread: copies of the engine state.
//   - Close: stop the loop and release the channel; the session cannot be
//     reused afterwards.
type Session struct {
	api   sessionAPI
	ch    channel
	cache messages.Repository

	identity models.Identity
	priv     *rsa.PrivateKey
	engine   *sync.Engine
	log      logging.Logger

	mu      stdsync.Mutex
	current *models.Contact

	done chan struct{}
}

// NewSession wires a session around an already-open channel and starts the
// event loop.
func NewSession(api sessionAPI, ch channel, cache messages.Repository, u *Unlocked, log logging.Logger) *Session {
	s := &Session{
		api:      api,
		ch:       ch,
		cache:    cache,
		identity: u.Identity,
		priv:     u.PrivateKey,
		engine:   sync.New(u.Identity.Fingerprint),
		log:      log.With("component", "session"),
		done:     make(chan struct{}),
	}
	go s.loop()
	return s
}

// Close releases the channel and waits for the event loop to drain.
func (s *Session) Close() error {
	err := s.ch.Close()
	<-s.done
	return err
}

// Identity returns the authenticated identity.
func (s *Session) Identity() models.Identity { return s.identity }

// Conversations lists the server-side conversations and seeds the engine's
// unread counters with the server's view of this user.
func (s *Session) Conversations(ctx context.Context) ([]models.Conversation, error) {
	convs, err := s.api.Conversations(ctx)
	if err != nil {
		return nil, err
	}
	for _, conv := range convs {
		for _, p := range conv.Participants {
			if p.User.Fingerprint == s.identity.Fingerprint {
				s.engine.SeedUnread(conv.ID, p.UnreadCount)
			}
		}
	}
	return convs, nil
}

// SearchContacts looks peers up by (partial) username.
func (s *Session) SearchContacts(ctx context.Context, query string) ([]models.Contact, error) {
	return s.api.SearchUsers(ctx, query)
}

// OpenConversation makes the given peer current. A zero ConversationID
// means no conversation exists yet; the first confirmed send creates it.
// Existing history is merged cache-first, then from the server.
func (s *Session) OpenConversation(ctx context.Context, peer models.Contact) error {
	var conv *int64
	if peer.ConversationID != 0 {
		id := peer.ConversationID
		conv = &id
	}

	s.mu.Lock()
	s.current = &peer
	s.mu.Unlock()

	s.engine.Activate(conv)
	if err := s.ch.EnterChat(conv, peer.Fingerprint); err != nil {
		return err
	}
	if conv == nil {
		return nil
	}

	cached, err := s.cache.QueryByConversation(ctx, *conv)
	if err != nil {
		s.log.Warn(ctx, "cache read failed", "error", err)
	} else {
		s.engine.MergeHistory(*conv, cached)
	}

	records, err := s.api.History(ctx, *conv)
	if err != nil {
		return fmt.Errorf("history fetch: %w", err)
	}
	fetched := make([]models.Message, 0, len(records))
	for _, rec := range records {
		fetched = append(fetched, s.decryptRecord(ctx, rec))
	}
	s.engine.MergeHistory(*conv, fetched)
	s.persist(ctx, fetched)
	return nil
}

// SendText dual-encrypts the text for the current peer and this identity,
// inserts the optimistic entry, and transmits the envelopes. The returned
// message carries the placeholder id.
func (s *Session) SendText(ctx context.Context, text string) (models.Message, error) {
	s.mu.Lock()
	if s.current == nil {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("no conversation open")
	}
	peer := *s.current
	s.mu.Unlock()

	peerPub, err := cryptox.ImportPublicKey(peer.PublicKey)
	if err != nil {
		return models.Message{}, fmt.Errorf("peer public key: %w", err)
	}

	envelope, err := cryptox.EncryptDual(text, peerPub, &s.priv.PublicKey)
	if err != nil {
		return models.Message{}, err
	}

	msg := s.engine.AppendOptimistic(models.Message{
		ConversationID: peer.ConversationID,
		RecipientID:    peer.ID,
		RecipientFP:    peer.Fingerprint,
		Content:        text,
	})

	out := transport.OutboundMessage{
		ContentEncoded: envelope.ForRecipient,
		ContentSelf:    envelope.ForSelf,
		CorrelationID:  uuid.NewString(),
	}
	if peer.ConversationID != 0 {
		id := peer.ConversationID
		out.ConversationID = &id
	} else {
		id := peer.ID
		out.RecipientID = &id
	}

	if err := s.ch.Send(out); err != nil {
		return msg, err
	}
	return msg, nil
}

// Timeline returns the merged timeline of the current conversation,
// including entries sent before the server assigned a conversation id,
// interleaved in creation-time order.
func (s *Session) Timeline() []models.Message {
	s.mu.Lock()
	var conv int64
	if s.current != nil {
		conv = s.current.ConversationID
	}
	s.mu.Unlock()

	pending := s.engine.Timeline(sync.UnknownConversation)
	if conv == 0 {
		return pending
	}
	return sync.MergeTimelines(s.engine.Timeline(conv), pending)
}

// Unread returns the unread counter of one conversation.
func (s *Session) Unread(conversationID int64) int {
	return s.engine.Unread(conversationID)
}

// loop is the single writer of the reconciliation state. It drains the
// channel's event stream until the channel closes.
func (s *Session) loop() {
	defer close(s.done)
	ctx := context.Background()

	for ev := range s.ch.Events() {
		switch e := ev.(type) {
		case transport.MessageEvent:
			s.onMessage(ctx, e)
		case transport.ErrorEvent:
			s.log.Warn(ctx, "server rejected an operation", "detail", e.Detail)
		case transport.DisconnectedEvent:
			s.log.Error(ctx, "channel lost", "error", e.Err)
		}
	}
}

func (s *Session) onMessage(ctx context.Context, ev transport.MessageEvent) {
	msg := models.Message{
		ID:             ev.ID,
		ConversationID: ev.ConversationID,
		SenderFP:       ev.SenderFP,
		CreatedAt:      ev.Timestamp,
	}

	plaintext, err := cryptox.Decrypt(ev.Content, s.priv)
	if err != nil {
		s.log.Warn(ctx, "undecryptable message kept as unreadable",
			"id", ev.ID, "error", err)
		msg.Unreadable = true
	} else {
		msg.Content = plaintext
	}

	stored, changed := s.engine.ApplyConfirmed(msg)
	if !changed {
		return
	}
	s.adoptConversation(stored)
	s.persist(ctx, []models.Message{stored})
}

// adoptConversation picks up the server-assigned conversation id after the
// first confirmed message of a brand-new conversation.
func (s *Session) adoptConversation(msg models.Message) {
	if msg.ConversationID == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || s.current.ConversationID != 0 {
		return
	}
	s.current.ConversationID = msg.ConversationID
	id := msg.ConversationID
	s.engine.Activate(&id)
}

// persist mirrors confirmed messages into the local cache. Failures are
// logged and ignored: the cache is advisory.
func (s *Session) persist(ctx context.Context, msgs []models.Message) {
	for i := range msgs {
		if !msgs[i].Confirmed() {
			continue
		}
		if err := s.cache.Put(ctx, &msgs[i]); err != nil {
			s.log.Warn(ctx, "cache write failed", "id", msgs[i].ID, "error", err)
		}
	}
}

// decryptRecord turns one stored history record into a timeline message.
// Own messages open the self envelope, everything else the recipient one;
// an unopenable envelope yields an unreadable entry, never a dropped one.
func (s *Session) decryptRecord(ctx context.Context, rec client.HistoryRecord) models.Message {
	msg := models.Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		SenderFP:       rec.SenderFP,
		RecipientID:    rec.RecipientID,
		CreatedAt:      rec.CreatedAt,
		State:          models.DeliveryConfirmed,
	}

	envelope := rec.ContentEncoded
	if rec.SenderID == s.identity.ID || rec.SenderFP == s.identity.Fingerprint {
		envelope = rec.ContentSelf
	}

	plaintext, err := cryptox.Decrypt(envelope, s.priv)
	if err != nil {
		s.log.Warn(ctx, "undecryptable history record kept as unreadable",
			"id", rec.ID, "error", err)
		msg.Unreadable = true
		return msg
	}
	msg.Content = plaintext
	return msg
}
