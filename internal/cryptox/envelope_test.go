package cryptox

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncryptDual_RoundTripBothHalves(t *testing.T) {
	sender := testIdentityKey(t)
	recipient, err := GenerateIdentityKeys()
	require.NoError(t, err)

	env, err := EncryptDual("hi", &recipient.PublicKey, &sender.PublicKey)
	require.NoError(t, err)
	assert.NotEqual(t, env.ForRecipient, env.ForSelf)

	got, err := Decrypt(env.ForRecipient, recipient)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)

	got, err = Decrypt(env.ForSelf, sender)
	require.NoError(t, err)
	assert.Equal(t, "hi", got)
}

func TestEncryptForRecipient_FreshKeyPerEnvelope(t *testing.T) {
	key := testIdentityKey(t)

	a, err := EncryptForRecipient("same text", &key.PublicKey)
	require.NoError(t, err)
	b, err := EncryptForRecipient("same text", &key.PublicKey)
	require.NoError(t, err)

	// fresh content key and nonce every time
	assert.NotEqual(t, a, b)
}

func TestEncryptForRecipient_EmptyPlaintext(t *testing.T) {
	key := testIdentityKey(t)

	env, err := EncryptForRecipient("", &key.PublicKey)
	require.NoError(t, err)

	got, err := Decrypt(env, key)
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestDecrypt_WrongKey(t *testing.T) {
	sender := testIdentityKey(t)
	other, err := GenerateIdentityKeys()
	require.NoError(t, err)

	env, err := EncryptForRecipient("secret", &sender.PublicKey)
	require.NoError(t, err)

	_, err = Decrypt(env, other)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestDecrypt_Malformed(t *testing.T) {
	key := testIdentityKey(t)

	tests := []struct {
		name     string
		envelope string
	}{
		{"not base64", "!!!"},
		{"empty", ""},
		{"below fixed header", base64.StdEncoding.EncodeToString(make([]byte, 11+key.Size()))},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decrypt(tc.envelope, key)
			require.ErrorIs(t, err, ErrMalformedEnvelope)
		})
	}
}

func TestDecrypt_TamperedBody(t *testing.T) {
	key := testIdentityKey(t)

	env, err := EncryptForRecipient("payload", &key.PublicKey)
	require.NoError(t, err)

	blob, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	blob[len(blob)-1] ^= 0x01

	_, err = Decrypt(base64.StdEncoding.EncodeToString(blob), key)
	require.ErrorIs(t, err, ErrDecryptionFailed)
}
