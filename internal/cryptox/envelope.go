package cryptox

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/shared"
)

// DualEnvelope carries the same plaintext encrypted independently for the
// recipient and for the sender's own archive. The sender keeps readable
// history of outgoing messages without ever storing plaintext.
type DualEnvelope struct {
	ForRecipient string
	ForSelf      string
}

// EncryptForRecipient builds one hybrid envelope for a single public key:
// a fresh random 256-bit content key and 96-bit nonce authenticated-encrypt
// the UTF-8 plaintext, the content key itself is encrypted under the target
// public key with OAEP, and the result is serialized as
//
//	nonce ‖ encryptedContentKey ‖ ciphertext
//
// base64-encoded for wire transport. Empty plaintext still yields a valid
// envelope (the AEAD body is then tag-only).
func EncryptForRecipient(plaintext string, pub *rsa.PublicKey) (string, error) {
	contentKey, err := shared.RandBytes(wrappingKeyLen)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	defer shared.WipeByteArray(contentKey)

	nonce, err := shared.RandBytes(nonceSize)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	aead, err := newGCM(contentKey)
	if err != nil {
		return "", err
	}
	body := aead.Seal(nil, nonce, []byte(plaintext), nil)

	encryptedKey, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, pub, contentKey, nil)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt content key: %w", err)
	}

	blob := make([]byte, 0, len(nonce)+len(encryptedKey)+len(body))
	blob = append(blob, nonce...)
	blob = append(blob, encryptedKey...)
	blob = append(blob, body...)
	return base64.StdEncoding.EncodeToString(blob), nil
}

// EncryptDual produces two independent envelopes for the same plaintext,
// one under the recipient's public key and one under the sender's own.
func EncryptDual(plaintext string, recipientPub, ownPub *rsa.PublicKey) (DualEnvelope, error) {
	forRecipient, err := EncryptForRecipient(plaintext, recipientPub)
	if err != nil {
		return DualEnvelope{}, err
	}
	forSelf, err := EncryptForRecipient(plaintext, ownPub)
	if err != nil {
		return DualEnvelope{}, err
	}
	return DualEnvelope{ForRecipient: forRecipient, ForSelf: forSelf}, nil
}

// Decrypt opens an envelope with the given private key. The asymmetric
// segment has the fixed length of the key modulus, which is how the blob
// is split. Blobs shorter than the fixed header fail with
// ErrMalformedEnvelope; any integrity or padding mismatch fails with
// ErrDecryptionFailed. Callers must treat ErrDecryptionFailed as "cannot
// be read by this key", not as a fatal condition.
func Decrypt(envelope string, priv *rsa.PrivateKey) (string, error) {
	blob, err := base64.StdEncoding.DecodeString(envelope)
	if err != nil {
		return "", ErrMalformedEnvelope
	}

	keyLen := priv.Size()
	if len(blob) < nonceSize+keyLen {
		return "", ErrMalformedEnvelope
	}

	nonce := blob[:nonceSize]
	encryptedKey := blob[nonceSize : nonceSize+keyLen]
	body := blob[nonceSize+keyLen:]

	contentKey, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, priv, encryptedKey, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	defer shared.WipeByteArray(contentKey)

	aead, err := newGCM(contentKey)
	if err != nil {
		return "", ErrDecryptionFailed
	}

	plaintext, err := aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}
