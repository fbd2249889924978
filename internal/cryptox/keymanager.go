// Package cryptox implements the cryptographic core of the sentinel client:
// identity key pairs, password-derived protection of the private key at rest,
// and the hybrid per-message envelope scheme.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"fmt"

	"github.com/sentinel-chat/sentinel/internal/shared"
	"golang.org/x/crypto/pbkdf2"
)

const (
	// rsaKeyBits is the identity key pair strength. OAEP padding with a
	// SHA-256 digest is used for all asymmetric operations.
	rsaKeyBits = 2048

	// kdfIterations is the PBKDF2 iteration count for the wrapping key.
	kdfIterations = 100_000

	saltSize       = 16
	nonceSize      = 12
	wrappingKeyLen = 32
)

// GenerateIdentityKeys produces a fresh 2048-bit RSA key pair suitable for
// OAEP encryption with a SHA-256 digest. It fails with ErrCryptoUnavailable
// if the platform cannot supply secure randomness.
func GenerateIdentityKeys() (*rsa.PrivateKey, error) {
	key, err := rsa.GenerateKey(rand.Reader, rsaKeyBits)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}
	return key, nil
}

// DeriveWrappingKey stretches a UTF-8 password through PBKDF2-SHA256
// (100,000 iterations) into a 256-bit key usable only for AEAD wrapping
// of the private key. Deterministic given (password, salt).
func DeriveWrappingKey(password, salt []byte) []byte {
	return pbkdf2.Key(password, salt, kdfIterations, wrappingKeyLen, sha256.New)
}

// ProtectPrivateKey encrypts the exported private key under a fresh
// password-derived wrapping key. It returns the base64-encoded
// nonce-then-ciphertext blob (the ciphertext includes the AEAD tag) and
// the random salt used for derivation.
//
// The password is only consumed by the derivation step; the derived key
// and the exported key bytes are wiped before returning.
func ProtectPrivateKey(priv *rsa.PrivateKey, password []byte) (encrypted string, salt []byte, err error) {
	salt, err = shared.RandBytes(saltSize)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	wrappingKey := DeriveWrappingKey(password, salt)
	defer shared.WipeByteArray(wrappingKey)

	exported, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return "", nil, fmt.Errorf("failed to export private key: %w", err)
	}
	defer shared.WipeByteArray(exported)

	nonce, err := shared.RandBytes(nonceSize)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCryptoUnavailable, err)
	}

	aead, err := newGCM(wrappingKey)
	if err != nil {
		return "", nil, err
	}

	combined := aead.Seal(nonce, nonce, exported, nil)
	return base64.StdEncoding.EncodeToString(combined), salt, nil
}

// UnlockPrivateKey reverses ProtectPrivateKey. It fails with
// ErrInvalidCredentials when the password is wrong or the data is corrupted;
// the caller cannot tell the two apart.
func UnlockPrivateKey(encrypted string, password, salt []byte) (*rsa.PrivateKey, error) {
	combined, err := base64.StdEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	if len(combined) < nonceSize {
		return nil, ErrInvalidCredentials
	}
	nonce, ciphertext := combined[:nonceSize], combined[nonceSize:]

	wrappingKey := DeriveWrappingKey(password, salt)
	defer shared.WipeByteArray(wrappingKey)

	aead, err := newGCM(wrappingKey)
	if err != nil {
		return nil, err
	}

	exported, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	defer shared.WipeByteArray(exported)

	parsed, err := x509.ParsePKCS8PrivateKey(exported)
	if err != nil {
		return nil, ErrInvalidCredentials
	}
	priv, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, ErrInvalidCredentials
	}
	return priv, nil
}

// ExportPublicKey serializes a public key in SPKI form, base64-encoded,
// the format exchanged with the server and with other clients.
func ExportPublicKey(pub *rsa.PublicKey) (string, error) {
	der, err := x509.MarshalPKIXPublicKey(pub)
	if err != nil {
		return "", fmt.Errorf("failed to export public key: %w", err)
	}
	return base64.StdEncoding.EncodeToString(der), nil
}

// ImportPublicKey parses a base64-encoded SPKI public key.
func ImportPublicKey(encoded string) (*rsa.PublicKey, error) {
	der, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("invalid public key encoding: %w", err)
	}
	parsed, err := x509.ParsePKIXPublicKey(der)
	if err != nil {
		return nil, fmt.Errorf("invalid public key: %w", err)
	}
	pub, ok := parsed.(*rsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("public key is not RSA")
	}
	return pub, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
