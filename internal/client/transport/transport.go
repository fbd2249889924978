// Package transport manages the one live websocket channel of an
// authenticated session and frames its outbound/inbound events.
//
// The channel follows the state machine
//
//	Disconnected -> Connecting -> Open -> Disconnected
//
// where Open -> Disconnected is reachable from a deliberate Close or an
// unrequested network drop. On a drop the transport retries with bounded
// exponential backoff and jitter, re-sending the current enter_chat
// context once the channel reopens. Losing the session (logout, key lock)
// must be answered with Close, which never reconnects.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sethvargo/go-retry"

	"github.com/sentinel-chat/sentinel/internal/logging"
)

// State is the connection lifecycle phase.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateOpen         State = "open"
)

// ErrTransportClosed is returned by sends on a channel that is not Open.
var ErrTransportClosed = errors.New("transport closed")

const (
	readLimit = 64 * 1024

	reconnectBase    = 500 * time.Millisecond
	reconnectCap     = 15 * time.Second
	reconnectRetries = 6
)

// Transport owns exactly one websocket connection bound to one identity.
type Transport struct {
	wsBase      string
	fingerprint string
	token       string
	dialer      *websocket.Dialer
	log         logging.Logger

	mu      sync.Mutex
	state   State
	conn    *websocket.Conn
	gen     int // connection generation, guards stale read loops
	closing bool

	// last announced enter_chat context, replayed after a reconnect
	currentConv *int64
	currentPeer string
	currentSet  bool

	events chan Event
}

// New returns a Transport for the given websocket base URL (e.g.
// "ws://host:8000"), user fingerprint and bearer token. Nothing connects
// until Open is called.
func New(wsBase, fingerprint, token string, log logging.Logger) *Transport {
	return &Transport{
		wsBase:      strings.TrimRight(wsBase, "/"),
		fingerprint: fingerprint,
		token:       token,
		dialer:      &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:         log.With("component", "transport"),
		state:       StateDisconnected,
		events:      make(chan Event, 16),
	}
}

// Events returns the single inbound event stream. It is closed only by
// Close; network drops surface as DisconnectedEvent instead.
func (t *Transport) Events() <-chan Event { return t.events }

// State returns the current lifecycle phase.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) endpoint() string {
	return fmt.Sprintf("%s/ws/%s?token=%s", t.wsBase, url.PathEscape(t.fingerprint), url.QueryEscape(t.token))
}

// Open dials the channel. It is an error to Open a transport that is not
// Disconnected.
func (t *Transport) Open(ctx context.Context) error {
	t.mu.Lock()
	if t.state != StateDisconnected || t.closing {
		t.mu.Unlock()
		return fmt.Errorf("cannot open transport in state %q", t.state)
	}
	t.state = StateConnecting
	t.mu.Unlock()

	conn, _, err := t.dialer.DialContext(ctx, t.endpoint(), nil)
	if err != nil {
		t.mu.Lock()
		t.state = StateDisconnected
		t.mu.Unlock()
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	conn.SetReadLimit(readLimit)

	t.mu.Lock()
	t.conn = conn
	t.state = StateOpen
	t.gen++
	gen := t.gen
	t.mu.Unlock()

	t.log.Info(ctx, "channel open", "fingerprint", t.fingerprint)
	go t.readLoop(ctx, conn, gen)
	return nil
}

// Close tears the channel down deliberately and closes the event stream.
// The transport cannot be reused afterwards.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	conn := t.conn
	t.conn = nil
	t.state = StateDisconnected
	t.gen++
	t.mu.Unlock()

	var err error
	if conn != nil {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed"),
			time.Now().Add(time.Second))
		err = conn.Close()
	}

	// emit holds the mutex while sending, so once closing is set and the
	// mutex is reacquired no event can race with the close below
	t.mu.Lock()
	close(t.events)
	t.mu.Unlock()
	return err
}

// emit delivers one event unless the transport is closing.
func (t *Transport) emit(ev Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closing {
		return
	}
	t.events <- ev
}

// EnterChat announces the locally current conversation (nil means "none")
// and its peer. The peer fingerprint lets the server route the conversation
// before an id exists. The context is remembered and replayed after a
// reconnect.
func (t *Transport) EnterChat(conversationID *int64, recipientFP string) error {
	t.mu.Lock()
	t.currentConv = conversationID
	t.currentPeer = recipientFP
	t.currentSet = true
	conn, state := t.conn, t.state
	t.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrTransportClosed
	}
	return t.writeJSON(conn, enterChatFrame{
		Type:           "enter_chat",
		ConversationID: conversationID,
		RecipientFP:    recipientFP,
	})
}

// Send transmits one encrypted message. It fails with ErrTransportClosed
// when the channel is not Open; sends are never queued or retried.
func (t *Transport) Send(msg OutboundMessage) error {
	t.mu.Lock()
	conn, state := t.conn, t.state
	t.mu.Unlock()

	if state != StateOpen || conn == nil {
		return ErrTransportClosed
	}
	return t.writeJSON(conn, msg)
}

func (t *Transport) writeJSON(conn *websocket.Conn, v any) error {
	if err := conn.WriteJSON(v); err != nil {
		return fmt.Errorf("%w: %v", ErrTransportClosed, err)
	}
	return nil
}

// readLoop decodes inbound frames for one connection generation. Malformed
// frames are logged and skipped; they never take the channel down.
func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, gen int) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			t.onReadError(ctx, gen, err)
			return
		}

		event, err := decodeFrame(raw)
		if err != nil {
			t.log.Warn(ctx, "dropping malformed frame", "error", err)
			continue
		}
		if event == nil {
			continue
		}
		if ev, ok := event.(ErrorEvent); ok {
			t.log.Warn(ctx, "server error frame", "detail", ev.Detail)
		}

		t.mu.Lock()
		stale := gen != t.gen
		t.mu.Unlock()
		if stale {
			return
		}
		t.emit(event)
	}
}

// onReadError distinguishes a deliberate close from a network drop and, for
// the latter, drives the reconnect policy.
func (t *Transport) onReadError(ctx context.Context, gen int, cause error) {
	t.mu.Lock()
	if gen != t.gen || t.closing {
		// Close already took over
		t.mu.Unlock()
		return
	}
	t.conn = nil
	t.state = StateDisconnected
	t.gen++
	t.mu.Unlock()

	t.log.Warn(ctx, "channel dropped", "error", cause)

	if err := t.reconnect(ctx); err != nil {
		t.log.Error(ctx, "reconnect failed", "error", err)
		t.emit(DisconnectedEvent{Err: cause})
	}
}

// reconnect re-dials with capped exponential backoff and jitter. On
// success it replays the last enter_chat context so the server's view of
// the current conversation survives the drop.
func (t *Transport) reconnect(ctx context.Context) error {
	backoff := retry.WithMaxRetries(reconnectRetries,
		retry.WithCappedDuration(reconnectCap,
			retry.WithJitterPercent(20, retry.NewExponential(reconnectBase))))

	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		t.mu.Lock()
		if t.closing {
			t.mu.Unlock()
			return nil
		}
		t.state = StateConnecting
		t.mu.Unlock()

		conn, _, err := t.dialer.DialContext(ctx, t.endpoint(), nil)
		if err != nil {
			t.mu.Lock()
			t.state = StateDisconnected
			t.mu.Unlock()
			return retry.RetryableError(err)
		}
		conn.SetReadLimit(readLimit)

		t.mu.Lock()
		t.conn = conn
		t.state = StateOpen
		t.gen++
		gen := t.gen
		replay := t.currentSet
		current := t.currentConv
		peer := t.currentPeer
		t.mu.Unlock()

		t.log.Info(ctx, "channel reopened")
		go t.readLoop(ctx, conn, gen)

		if replay {
			_ = t.writeJSON(conn, enterChatFrame{
				Type:           "enter_chat",
				ConversationID: current,
				RecipientFP:    peer,
			})
		}
		return nil
	})
}
