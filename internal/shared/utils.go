// Package shared provides small helpers for random material and secure
// memory wiping used across sentinel components.
package shared

import (
	"crypto/rand"
)

// RandBytes returns size cryptographically secure random bytes.
// It returns an error if the platform random source fails; callers that
// cannot proceed without randomness should treat that as fatal.
func RandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// This is used to remove sensitive data such as derived keys or exported
// private key material from memory after use.
//
// If the slice is nil, the function does nothing.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
