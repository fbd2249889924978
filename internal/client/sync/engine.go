// Package sync merges optimistic sends, cached history, and
// server-confirmed messages into one ordered, deduplicated timeline per
// conversation, and keeps the per-conversation unread counters.
//
// One goroutine owns the engine at a time (the session's event loop);
// snapshots returned to readers are copies, and the internal mutex only
// protects those reads against the writer.
package sync

import (
	"sync"
	"time"

	"github.com/sentinel-chat/sentinel/internal/client/models"
)

// UnknownConversation keys the holding timeline for optimistic messages
// sent before the server has assigned a conversation id (first message to
// a new contact). Entries there match any confirmed conversation.
const UnknownConversation int64 = 0

// Engine is the reconciliation state: per-conversation timelines, an
// id set guarding against re-delivery, and unread counters.
type Engine struct {
	ownFP string
	clock func() time.Time

	mu        sync.Mutex
	active    *int64
	timelines map[int64][]models.Message
	seen      map[int64]map[int64]struct{}
	unread    map[int64]int

	lastPlaceholderID int64
}

// New returns an empty engine for the identity with the given fingerprint.
func New(ownFP string) *Engine {
	return &Engine{
		ownFP:     ownFP,
		clock:     time.Now,
		timelines: make(map[int64][]models.Message),
		seen:      make(map[int64]map[int64]struct{}),
		unread:    make(map[int64]int),
	}
}

// Activate makes the given conversation current (nil means none) and
// atomically resets its unread counter. History merging is the caller's
// next step; pending optimistic entries survive it untouched.
func (e *Engine) Activate(conversationID *int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.active = conversationID
	if conversationID != nil {
		e.unread[*conversationID] = 0
	}
}

// ActiveConversation returns the current conversation id, nil when none.
func (e *Engine) ActiveConversation() *int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.active == nil {
		return nil
	}
	id := *e.active
	return &id
}

// AppendOptimistic inserts a locally authored message before the server
// confirms it. The engine assigns the placeholder id, the optimistic
// delivery state, and the creation time; the returned copy carries them.
func (e *Engine) AppendOptimistic(msg models.Message) models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	msg.ID = e.nextPlaceholderID()
	msg.State = models.DeliveryOptimistic
	if msg.SenderFP == "" {
		msg.SenderFP = e.ownFP
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = e.clock().UTC()
	}

	conv := msg.ConversationID
	e.timelines[conv] = insertSorted(e.timelines[conv], msg)
	return msg
}

// ApplyConfirmed reconciles one server-confirmed message. A message whose
// id is already known is dropped. A message authored by this identity
// resolves at most one optimistic entry (content equality, conversation
// match, unknown conversation matches anything) in place; otherwise the
// message is inserted in timestamp order. The stored copy is returned,
// along with whether the engine changed.
func (e *Engine) ApplyConfirmed(msg models.Message) (models.Message, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.applyLocked(msg, true)
}

// MergeHistory folds a batch of confirmed records (cached or fetched) for
// one conversation through the same dedup and echo matching. It never
// touches unread counters; activation already reset them.
func (e *Engine) MergeHistory(conversationID int64, records []models.Message) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rec := range records {
		rec.ConversationID = conversationID
		e.applyLocked(rec, false)
	}
}

// Timeline returns a copy of one conversation's messages, ascending by
// creation time, ties in insertion order.
func (e *Engine) Timeline(conversationID int64) []models.Message {
	e.mu.Lock()
	defer e.mu.Unlock()
	tl := e.timelines[conversationID]
	out := make([]models.Message, len(tl))
	copy(out, tl)
	return out
}

// Unread returns the unread counter of one conversation.
func (e *Engine) Unread(conversationID int64) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.unread[conversationID]
}

// SeedUnread installs a server-reported unread count for a conversation
// the engine has not counted yet. Local counting, once started, wins.
func (e *Engine) SeedUnread(conversationID int64, count int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.unread[conversationID]; !ok {
		e.unread[conversationID] = count
	}
}

func (e *Engine) applyLocked(msg models.Message, countUnread bool) (models.Message, bool) {
	msg.State = models.DeliveryConfirmed
	conv := msg.ConversationID

	if e.isSeen(conv, msg.ID) {
		return msg, false
	}

	if msg.SenderFP == e.ownFP {
		if stored, ok := e.resolveOptimistic(msg); ok {
			e.markSeen(conv, msg.ID)
			return stored, true
		}
	}

	e.timelines[conv] = insertSorted(e.timelines[conv], msg)
	e.markSeen(conv, msg.ID)

	if countUnread && msg.SenderFP != e.ownFP && !e.isActive(conv) {
		e.unread[conv]++
	}
	return msg, true
}

// resolveOptimistic finds the first optimistic entry matching the
// confirmed message by content, first in the message's own conversation,
// then among entries whose conversation is still unknown. An in-timeline
// match is replaced in place; an unknown-conversation match moves into
// the now-known conversation.
func (e *Engine) resolveOptimistic(msg models.Message) (models.Message, bool) {
	conv := msg.ConversationID

	tl := e.timelines[conv]
	for i := range tl {
		if tl[i].State == models.DeliveryOptimistic && tl[i].Content == msg.Content {
			msg.Unreadable = false
			tl[i] = msg
			return msg, true
		}
	}

	if conv != UnknownConversation {
		pending := e.timelines[UnknownConversation]
		for i := range pending {
			if pending[i].State == models.DeliveryOptimistic && pending[i].Content == msg.Content {
				e.timelines[UnknownConversation] = append(pending[:i], pending[i+1:]...)
				e.timelines[conv] = insertSorted(e.timelines[conv], msg)
				return msg, true
			}
		}
	}
	return models.Message{}, false
}

func (e *Engine) isActive(conversationID int64) bool {
	return e.active != nil && *e.active == conversationID
}

func (e *Engine) isSeen(conversationID, id int64) bool {
	ids, ok := e.seen[conversationID]
	if !ok {
		return false
	}
	_, ok = ids[id]
	return ok
}

func (e *Engine) markSeen(conversationID, id int64) {
	ids, ok := e.seen[conversationID]
	if !ok {
		ids = make(map[int64]struct{})
		e.seen[conversationID] = ids
	}
	ids[id] = struct{}{}
}

// nextPlaceholderID hands out strictly increasing millisecond-clock values
// so two sends in the same millisecond still get distinct placeholder ids.
func (e *Engine) nextPlaceholderID() int64 {
	id := e.clock().UnixMilli()
	if id <= e.lastPlaceholderID {
		id = e.lastPlaceholderID + 1
	}
	e.lastPlaceholderID = id
	return id
}

// MergeTimelines folds extra entries into an already-ordered timeline,
// keeping the ascending creation-time order; on equal timestamps the
// base entries come first. Both inputs are left untouched.
func MergeTimelines(base, extra []models.Message) []models.Message {
	out := make([]models.Message, len(base))
	copy(out, base)
	for _, msg := range extra {
		out = insertSorted(out, msg)
	}
	return out
}

// insertSorted places msg after every entry with CreatedAt <= its own, so
// the order is ascending by creation time and stable for ties.
func insertSorted(tl []models.Message, msg models.Message) []models.Message {
	i := len(tl)
	for i > 0 && tl[i-1].CreatedAt.After(msg.CreatedAt) {
		i--
	}
	tl = append(tl, models.Message{})
	copy(tl[i+1:], tl[i:])
	tl[i] = msg
	return tl
}
