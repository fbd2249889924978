package cryptox

import (
	"crypto/rsa"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testKeyOnce sync.Once
	testKey     *rsa.PrivateKey
)

// testIdentityKey returns a process-wide key pair so each test does not pay
// for 2048-bit generation.
func testIdentityKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	testKeyOnce.Do(func() {
		k, err := GenerateIdentityKeys()
		if err != nil {
			panic(err)
		}
		testKey = k
	})
	return testKey
}

func TestGenerateIdentityKeys_Strength(t *testing.T) {
	key := testIdentityKey(t)
	assert.Equal(t, 256, key.Size()) // 2048-bit modulus
}

func TestDeriveWrappingKey_Deterministic(t *testing.T) {
	salt := []byte("0123456789abcdef")

	a := DeriveWrappingKey([]byte("correct horse"), salt)
	b := DeriveWrappingKey([]byte("correct horse"), salt)
	c := DeriveWrappingKey([]byte("wrong horse"), salt)

	require.Len(t, a, 32)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestProtectUnlockPrivateKey_RoundTrip(t *testing.T) {
	key := testIdentityKey(t)

	encrypted, salt, err := ProtectPrivateKey(key, []byte("pa55word"))
	require.NoError(t, err)
	require.Len(t, salt, 16)

	unlocked, err := UnlockPrivateKey(encrypted, []byte("pa55word"), salt)
	require.NoError(t, err)
	assert.True(t, key.Equal(unlocked))
}

func TestUnlockPrivateKey_WrongPassword(t *testing.T) {
	key := testIdentityKey(t)

	encrypted, salt, err := ProtectPrivateKey(key, []byte("pa55word"))
	require.NoError(t, err)

	_, err = UnlockPrivateKey(encrypted, []byte("not the password"), salt)
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUnlockPrivateKey_CorruptedData(t *testing.T) {
	key := testIdentityKey(t)

	encrypted, salt, err := ProtectPrivateKey(key, []byte("pa55word"))
	require.NoError(t, err)

	tests := []struct {
		name string
		blob string
	}{
		{"not base64", "%%%not-base64%%%"},
		{"truncated", encrypted[:12]},
		{"flipped tail", encrypted[:len(encrypted)-4] + "AAAA"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := UnlockPrivateKey(tc.blob, []byte("pa55word"), salt)
			require.ErrorIs(t, err, ErrInvalidCredentials)
		})
	}
}

func TestExportImportPublicKey_RoundTrip(t *testing.T) {
	key := testIdentityKey(t)

	encoded, err := ExportPublicKey(&key.PublicKey)
	require.NoError(t, err)

	pub, err := ImportPublicKey(encoded)
	require.NoError(t, err)
	assert.True(t, key.PublicKey.Equal(pub))
}

func TestImportPublicKey_Invalid(t *testing.T) {
	_, err := ImportPublicKey("definitely not a key")
	require.Error(t, err)
}
