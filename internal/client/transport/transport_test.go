package transport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sentinel-chat/sentinel/internal/logging"
)

var upgrader = websocket.Upgrader{}

func testLogger() logging.Logger {
	return logging.NewSlogLogger(slog.New(slog.DiscardHandler))
}

// wsServer runs handler for every websocket connection and returns the
// ws:// base URL.
func wsServer(t *testing.T, handler func(conn *websocket.Conn)) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		handler(conn)
	}))
	t.Cleanup(srv.Close)
	return strings.Replace(srv.URL, "http", "ws", 1)
}

func waitEvent(t *testing.T, events <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-events:
		require.True(t, ok, "event channel closed unexpectedly")
		return ev
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestOpen_DeliversMessageEvents(t *testing.T) {
	base := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{
			"type": "new_message", "id": 7, "conversation_id": 42,
			"sender_fp": "A", "content": "blob",
			"timestamp": "2025-06-01T10:00:00Z",
		})
		// keep the connection open until the client leaves
		_, _, _ = conn.ReadMessage()
	})

	tr := New(base, "B", "tok", testLogger())
	require.Equal(t, StateDisconnected, tr.State())

	require.NoError(t, tr.Open(context.Background()))
	require.Equal(t, StateOpen, tr.State())
	defer tr.Close()

	ev := waitEvent(t, tr.Events())
	msg, ok := ev.(MessageEvent)
	require.True(t, ok, "expected MessageEvent, got %T", ev)
	assert.Equal(t, int64(7), msg.ID)
	assert.Equal(t, int64(42), msg.ConversationID)
	assert.Equal(t, "A", msg.SenderFP)
	assert.Equal(t, "blob", msg.Content)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC), msg.Timestamp)
}

func TestErrorFrame_DoesNotKillChannel(t *testing.T) {
	base := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteJSON(map[string]any{"type": "error", "detail": "rate limited"})
		_ = conn.WriteJSON(map[string]any{
			"type": "chat_message", "id": 1, "conversation_id": 1,
			"sender_fp": "A", "content": "after-error",
		})
		_, _, _ = conn.ReadMessage()
	})

	tr := New(base, "B", "tok", testLogger())
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	ev := waitEvent(t, tr.Events())
	errEv, ok := ev.(ErrorEvent)
	require.True(t, ok, "expected ErrorEvent, got %T", ev)
	assert.Equal(t, "rate limited", errEv.Detail)

	ev = waitEvent(t, tr.Events())
	msg, ok := ev.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "after-error", msg.Content)
}

func TestMalformedFrames_AreSkipped(t *testing.T) {
	base := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_ = conn.WriteMessage(websocket.TextMessage, []byte("{not json"))
		_ = conn.WriteJSON(map[string]any{"type": "presence", "who": "A"}) // unknown tag
		_ = conn.WriteJSON(map[string]any{
			"type": "new_message", "id": 2, "conversation_id": 1,
			"sender_fp": "A", "content": "survivor",
		})
		_, _, _ = conn.ReadMessage()
	})

	tr := New(base, "B", "tok", testLogger())
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	ev := waitEvent(t, tr.Events())
	msg, ok := ev.(MessageEvent)
	require.True(t, ok, "expected MessageEvent, got %T", ev)
	assert.Equal(t, "survivor", msg.Content)
}

func TestSendAndEnterChat_WireFormat(t *testing.T) {
	frames := make(chan map[string]any, 2)
	base := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		for i := 0; i < 2; i++ {
			var f map[string]any
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	})

	tr := New(base, "A", "tok", testLogger())
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	conv := int64(42)
	require.NoError(t, tr.EnterChat(&conv, "FP-PEER"))

	require.NoError(t, tr.Send(OutboundMessage{
		ConversationID: &conv,
		ContentEncoded: "peer-envelope",
		ContentSelf:    "self-envelope",
		CorrelationID:  "corr-1",
	}))

	enter := <-frames
	assert.Equal(t, "enter_chat", enter["type"])
	assert.Equal(t, float64(42), enter["conversation_id"])
	assert.Equal(t, "FP-PEER", enter["recipient_fp"])

	send := <-frames
	assert.Equal(t, float64(42), send["conversation_id"])
	assert.Nil(t, send["recipient_id"])
	assert.Equal(t, "peer-envelope", send["content_encoded"])
	assert.Equal(t, "self-envelope", send["content_self"])
	assert.Equal(t, "corr-1", send["correlation_id"])
}

func TestSend_WhenClosed(t *testing.T) {
	tr := New("ws://127.0.0.1:1", "A", "tok", testLogger())

	err := tr.Send(OutboundMessage{ContentEncoded: "x", ContentSelf: "y"})
	require.ErrorIs(t, err, ErrTransportClosed)
}

func TestClose_ClosesEventChannel(t *testing.T) {
	base := wsServer(t, func(conn *websocket.Conn) {
		defer conn.Close()
		_, _, _ = conn.ReadMessage()
	})

	tr := New(base, "A", "tok", testLogger())
	require.NoError(t, tr.Open(context.Background()))

	require.NoError(t, tr.Close())
	assert.Equal(t, StateDisconnected, tr.State())

	select {
	case _, ok := <-tr.Events():
		assert.False(t, ok, "event channel must be closed")
	case <-time.After(time.Second):
		t.Fatal("event channel not closed")
	}

	require.ErrorIs(t, tr.Send(OutboundMessage{}), ErrTransportClosed)
}

func TestReconnect_ReplaysEnterChat(t *testing.T) {
	var connCount atomic.Int32
	replayed := make(chan map[string]any, 1)

	base := wsServer(t, func(conn *websocket.Conn) {
		n := connCount.Add(1)
		if n == 1 {
			// swallow the initial enter_chat, then drop the connection
			var f map[string]any
			_ = conn.ReadJSON(&f)
			conn.Close()
			return
		}
		defer conn.Close()
		var f map[string]any
		if err := conn.ReadJSON(&f); err == nil {
			replayed <- f
		}
		_, _, _ = conn.ReadMessage()
	})

	tr := New(base, "A", "tok", testLogger())
	require.NoError(t, tr.Open(context.Background()))
	defer tr.Close()

	conv := int64(7)
	require.NoError(t, tr.EnterChat(&conv, "FP-PEER"))

	select {
	case f := <-replayed:
		assert.Equal(t, "enter_chat", f["type"])
		assert.Equal(t, float64(7), f["conversation_id"])
		assert.Equal(t, "FP-PEER", f["recipient_fp"])
	case <-time.After(10 * time.Second):
		t.Fatal("enter_chat context was not replayed after reconnect")
	}

	assert.GreaterOrEqual(t, connCount.Load(), int32(2))
}

func TestDecodeFrame_TimestampFallback(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"type": "chat_message", "id": 1, "conversation_id": 1,
		"sender_fp": "A", "content": "x",
		"created_at": "2025-06-01T09:59:00Z",
	})
	require.NoError(t, err)

	ev, err := decodeFrame(raw)
	require.NoError(t, err)
	msg, ok := ev.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 1, 9, 59, 0, 0, time.UTC), msg.Timestamp)
}

func TestDecodeFrame_SenderFallback(t *testing.T) {
	raw, err := json.Marshal(map[string]any{
		"type": "new_message", "id": 1, "conversation_id": 1,
		"sender": "legacy-A", "content": "x",
	})
	require.NoError(t, err)

	ev, err := decodeFrame(raw)
	require.NoError(t, err)
	msg, ok := ev.(MessageEvent)
	require.True(t, ok)
	assert.Equal(t, "legacy-A", msg.SenderFP)
}
