package cryptox

import "errors"

var (
	// ErrCryptoUnavailable means the platform cannot supply a
	// cryptographically secure generator. Fatal to session start.
	ErrCryptoUnavailable = errors.New("secure key generation unavailable")

	// ErrInvalidCredentials covers both a wrong password and corrupted
	// wrapped key data. AEAD verification failure reveals nothing else,
	// so the two cases are indistinguishable on purpose.
	ErrInvalidCredentials = errors.New("invalid password or corrupted key data")

	// ErrDecryptionFailed marks a message that cannot be read with the
	// available private key. Non-fatal: the message stays in the timeline
	// as unreadable.
	ErrDecryptionFailed = errors.New("message cannot be decrypted with this key")

	// ErrMalformedEnvelope marks a blob shorter than the fixed envelope
	// header or otherwise unparseable.
	ErrMalformedEnvelope = errors.New("malformed message envelope")
)
