package transport

import (
	"encoding/json"
	"time"
)

// Event is one decoded inbound item delivered on the transport's event
// channel. The channel is the single feed into the reconciliation engine.
type Event interface{ isEvent() }

// MessageEvent carries an opaque dual-ciphertext envelope plus routing
// metadata. The transport never decrypts; that is the session's job.
type MessageEvent struct {
	// Kind is the wire tag, "chat_message" or "new_message".
	Kind string

	ID             int64
	ConversationID int64
	SenderFP       string

	// Content is the base64 envelope addressed to this client.
	Content string

	// CorrelationID echoes the client-generated id of the original send,
	// when the server supports it. Empty otherwise.
	CorrelationID string

	Timestamp time.Time
}

func (MessageEvent) isEvent() {}

// ErrorEvent is a server-reported error. It never closes the channel.
type ErrorEvent struct {
	Detail string
}

func (ErrorEvent) isEvent() {}

// DisconnectedEvent reports that the channel dropped unexpectedly and,
// after the reconnect attempts, stayed down. A deliberate Close does not
// produce one; it closes the event channel instead.
type DisconnectedEvent struct {
	Err error
}

func (DisconnectedEvent) isEvent() {}

// enterChatFrame is the outbound control event announcing the locally
// "current" conversation, including "none" (null conversation id).
type enterChatFrame struct {
	Type           string `json:"type"`
	ConversationID *int64 `json:"conversation_id"`
	RecipientFP    string `json:"recipient_fp"`
}

// OutboundMessage is one encrypted send. Exactly one of ConversationID /
// RecipientID is meaningful: the former routes into an existing
// conversation, the latter opens a new one.
type OutboundMessage struct {
	ConversationID *int64 `json:"conversation_id"`
	RecipientID    *int64 `json:"recipient_id"`
	ContentEncoded string `json:"content_encoded"`
	ContentSelf    string `json:"content_self"`
	CorrelationID  string `json:"correlation_id,omitempty"`
}

// inboundFrame is the superset of all tagged inbound frames.
type inboundFrame struct {
	Type           string `json:"type"`
	Detail         string `json:"detail"`
	ID             int64  `json:"id"`
	ConversationID int64  `json:"conversation_id"`
	SenderFP       string `json:"sender_fp"`
	Sender         string `json:"sender"`
	Content        string `json:"content"`
	CorrelationID  string `json:"correlation_id"`
	Timestamp      string `json:"timestamp"`
	CreatedAt      string `json:"created_at"`
}

// decodeFrame turns one raw websocket frame into an Event. A nil Event with
// nil error means the frame is not for us (unknown tag) and is skipped.
func decodeFrame(raw []byte) (Event, error) {
	var f inboundFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, err
	}

	switch f.Type {
	case "error":
		return ErrorEvent{Detail: f.Detail}, nil
	case "chat_message", "new_message":
		if f.Content == "" {
			return nil, nil
		}
		sender := f.SenderFP
		if sender == "" {
			sender = f.Sender
		}
		return MessageEvent{
			Kind:           f.Type,
			ID:             f.ID,
			ConversationID: f.ConversationID,
			SenderFP:       sender,
			Content:        f.Content,
			CorrelationID:  f.CorrelationID,
			Timestamp:      parseTimestamp(f.Timestamp, f.CreatedAt),
		}, nil
	default:
		return nil, nil
	}
}

// parseTimestamp accepts either wire field, falling back to local time so a
// message without a usable timestamp still lands in the timeline.
func parseTimestamp(candidates ...string) time.Time {
	for _, s := range candidates {
		if s == "" {
			continue
		}
		if ts, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return ts
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			return ts
		}
	}
	return time.Now().UTC()
}
