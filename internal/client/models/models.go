// Package models defines client-side data models of the sentinel messenger core.
package models

import "time"

// DeliveryState tells whether a message is a local placeholder or has been
// confirmed by the server. Exactly one of the two holds at a time; an
// optimistic message transitions to confirmed exactly once and never reverts.
type DeliveryState string

const (
	DeliveryOptimistic DeliveryState = "optimistic"
	DeliveryConfirmed  DeliveryState = "confirmed"
)

// ConversationType classifies a conversation.
type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

// Identity is the account record the server hands out. Fingerprint and
// PublicKey are immutable once issued; EncPrivateKey/Salt rotate only on
// password change.
type Identity struct {
	// ID is the internal numeric account id.
	ID int64 `json:"id"`

	// Username is the login name.
	Username string `json:"username"`

	// Fingerprint is the stable public identifier derived from the account,
	// distinct from the numeric id.
	Fingerprint string `json:"fingerprint"`

	// PublicKey is the base64 SPKI identity public key.
	PublicKey string `json:"public_key"`

	// EncPrivateKey is the password-wrapped private key blob (base64).
	EncPrivateKey string `json:"enc_private_key"`

	// Salt is the base64 KDF salt for unwrapping EncPrivateKey.
	Salt string `json:"salt"`
}

// KeyRecord is the per-device local copy of the wrapped private key.
// Written once per login/registration, read once per session unlock.
// It never leaves the device unencrypted.
type KeyRecord struct {
	Username      string
	EncPrivateKey string
	Salt          []byte
}

// Message is one timeline entry. In transit and at rest the body is a dual
// ciphertext; Content holds plaintext only after decryption.
type Message struct {
	// ID is server-assigned for confirmed messages and a locally unique
	// placeholder for optimistic ones until replaced.
	ID int64

	// ConversationID is 0 while the conversation is not yet known
	// (first message to a new contact).
	ConversationID int64

	SenderFP    string
	RecipientID int64
	RecipientFP string

	// Content is the decrypted plaintext. Empty and Unreadable=true when
	// no available key could open the envelope.
	Content    string
	Unreadable bool

	CreatedAt time.Time
	State     DeliveryState
}

// Confirmed reports whether the server has acknowledged the message.
func (m *Message) Confirmed() bool { return m.State == DeliveryConfirmed }

// Contact is a peer as returned by user search or the conversation list.
type Contact struct {
	ID          int64  `json:"id"`
	Username    string `json:"username"`
	Fingerprint string `json:"fingerprint"`
	PublicKey   string `json:"public_key"`

	// ConversationID is 0 when no conversation with this contact exists yet.
	ConversationID int64 `json:"conversation_id"`
}

// Participant couples a conversation member with their unread counter.
// The counter resets to 0 only when that participant activates the
// conversation; it grows only for messages arriving while the conversation
// is not current and not authored by that participant.
type Participant struct {
	User        Contact
	UnreadCount int
}

// Conversation groups messages between participants.
type Conversation struct {
	ID           int64
	Type         ConversationType
	Participants []Participant
	UpdatedAt    time.Time
}
