package secret

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/aigis/internal/errs"
)

func TestAESGCM_RoundTrip(t *testing.T) {
	c := AESGCM{}

	iv, ct, err := c.Encrypt("pa55-wörd", "master")
	require.NoError(t, err)
	assert.Len(t, iv, ivSize)
	assert.NotContains(t, string(ct), "pa55")

	plain, err := c.Decrypt(ct, iv, "master")
	require.NoError(t, err)
	assert.Equal(t, "pa55-wörd", plain)
}

func TestAESGCM_FreshIVPerCall(t *testing.T) {
	c := AESGCM{}
	iv1, ct1, err := c.Encrypt("same", "k")
	require.NoError(t, err)
	iv2, ct2, err := c.Encrypt("same", "k")
	require.NoError(t, err)

	assert.NotEqual(t, iv1, iv2)
	assert.NotEqual(t, ct1, ct2)
}

func TestAESGCM_DeterministicWithFixedRand(t *testing.T) {
	c := AESGCM{Rand: bytes.NewReader(make([]byte, 24))}
	iv1, ct1, err := c.Encrypt("x", "k")
	require.NoError(t, err)
	iv2, ct2, err := c.Encrypt("x", "k")
	require.NoError(t, err)
	assert.Equal(t, iv1, iv2)
	assert.Equal(t, ct1, ct2)
}

func TestAESGCM_Failures(t *testing.T) {
	c := AESGCM{}
	iv, ct, err := c.Encrypt("secret", "right")
	require.NoError(t, err)

	tampered := append([]byte(nil), ct...)
	tampered[0] ^= 0xff

	tests := []struct {
		name string
		ct   []byte
		iv   []byte
		key  string
	}{
		{"wrong key", ct, iv, "wrong"},
		{"tampered ciphertext", tampered, iv, "right"},
		{"short iv", ct, iv[:4], "right"},
		{"empty ciphertext", nil, iv, "right"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := c.Decrypt(tt.ct, tt.iv, tt.key)
			require.Error(t, err)
			assert.True(t, errs.IsSecret(err))
		})
	}

	_, _, err = c.Encrypt("x", "")
	assert.True(t, errs.IsSecret(err))
}
