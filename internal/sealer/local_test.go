package sealer

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(b byte) []byte {
	return bytes.Repeat([]byte{b}, 32)
}

func TestDeriveKey_Deterministic(t *testing.T) {
	k1 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))
	k2 := DeriveKey([]byte("secret-password"), []byte("fixed-salt"))

	assert.Equal(t, k1, k2)
	assert.Equal(t, "34f7a1c64df63ab1ad5b5ee06e64db5713b35f81839823304db63e8e5e6a6a39", hex.EncodeToString(k1))
	assert.NotEqual(t, k1, DeriveKey([]byte("secret-password"), []byte("salt-2")))
}

func TestLocal_RoundTrip(t *testing.T) {
	l, err := NewLocal(map[string][]byte{"alias/kuso": testKey(1)})
	require.NoError(t, err)
	ctx := context.Background()

	for _, tok := range []string{"", "eyJhbGciOiJIUzI1NiJ9.e30.x", string(bytes.Repeat([]byte("t"), 4096))} {
		ct, err := l.Seal(ctx, "alias/kuso", []byte(tok))
		require.NoError(t, err)

		pt, err := l.Unseal(ctx, ct)
		require.NoError(t, err)
		assert.Equal(t, tok, string(pt))
	}
}

func TestLocal_FreshNoncePerSeal(t *testing.T) {
	l, err := NewLocal(map[string][]byte{"k": testKey(1)})
	require.NoError(t, err)

	a, err := l.Seal(context.Background(), "k", []byte("same"))
	require.NoError(t, err)
	b, err := l.Seal(context.Background(), "k", []byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestLocal_UnknownKeyOnSeal(t *testing.T) {
	l, err := NewLocal(map[string][]byte{"k": testKey(1)})
	require.NoError(t, err)

	_, err = l.Seal(context.Background(), "other", []byte("tok"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestLocal_IntegrityFailures(t *testing.T) {
	ctx := context.Background()
	l, err := NewLocal(map[string][]byte{"k1": testKey(1), "k2": testKey(2)})
	require.NoError(t, err)

	ct, err := l.Seal(ctx, "k1", []byte("user-token"))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(ct)
	require.NoError(t, err)

	flipped := bytes.Clone(raw)
	flipped[len(flipped)-1] ^= 0x01

	relabelled := bytes.Clone(raw)
	relabelled[3] = '2' // "k1" -> "k2"

	rotated, err := NewLocal(map[string][]byte{"k1": testKey(9)})
	require.NoError(t, err)

	tests := []struct {
		name   string
		sealer *Local
		ct     string
	}{
		{"not base64", l, "!!!"},
		{"empty", l, ""},
		{"truncated", l, base64.StdEncoding.EncodeToString(raw[:10])},
		{"tampered tag", l, base64.StdEncoding.EncodeToString(flipped)},
		{"key id relabelled", l, base64.StdEncoding.EncodeToString(relabelled)},
		{"rotated key", rotated, ct},
		{"key dropped", mustLocal(t, map[string][]byte{"k2": testKey(2)}), ct},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.sealer.Unseal(ctx, tt.ct)
			assert.ErrorIs(t, err, common.ErrIntegrity)
		})
	}
}

func mustLocal(t *testing.T, keys map[string][]byte) *Local {
	t.Helper()
	l, err := NewLocal(keys)
	require.NoError(t, err)
	return l
}

func TestNewLocal_RejectsBadKeys(t *testing.T) {
	_, err := NewLocal(map[string][]byte{"short": []byte("0123")})
	assert.Error(t, err)

	_, err = NewLocal(map[string][]byte{"": testKey(1)})
	assert.Error(t, err)
}

func TestNewLocalFromPassphrases(t *testing.T) {
	ctx := context.Background()
	salt := []byte("kusogate-salt")

	a, err := NewLocalFromPassphrases(map[string]string{"k": "correct horse"}, salt)
	require.NoError(t, err)
	b, err := NewLocalFromPassphrases(map[string]string{"k": "correct horse"}, salt)
	require.NoError(t, err)

	ct, err := a.Seal(ctx, "k", []byte("tok"))
	require.NoError(t, err)
	pt, err := b.Unseal(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "tok", string(pt))
}
