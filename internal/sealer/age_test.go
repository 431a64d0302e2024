package sealer

import (
	"context"
	"testing"

	"filippo.io/age"
	"github.com/dmitrijs2005/kusogate/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newIdentity(t *testing.T) *age.X25519Identity {
	t.Helper()
	id, err := age.GenerateX25519Identity()
	require.NoError(t, err)
	return id
}

func TestAge_RoundTrip(t *testing.T) {
	ctx := context.Background()
	a := NewAge(map[string]*age.X25519Identity{"primary": newIdentity(t)})

	ct, err := a.Seal(ctx, "primary", []byte("user-token"))
	require.NoError(t, err)
	pt, err := a.Unseal(ctx, ct)
	require.NoError(t, err)
	assert.Equal(t, "user-token", string(pt))
}

func TestAge_UnknownKey(t *testing.T) {
	a := NewAge(map[string]*age.X25519Identity{"primary": newIdentity(t)})

	_, err := a.Seal(context.Background(), "missing", []byte("x"))
	assert.ErrorIs(t, err, common.ErrKeyUnavailable)
}

func TestAge_OtherIdentity(t *testing.T) {
	ctx := context.Background()
	a := NewAge(map[string]*age.X25519Identity{"k": newIdentity(t)})
	b := NewAge(map[string]*age.X25519Identity{"k": newIdentity(t)})

	ct, err := a.Seal(ctx, "k", []byte("x"))
	require.NoError(t, err)

	_, err = b.Unseal(ctx, ct)
	assert.ErrorIs(t, err, common.ErrIntegrity)

	_, err = a.Unseal(ctx, "not-base64!")
	assert.ErrorIs(t, err, common.ErrIntegrity)
}

func TestParseAgeIdentities(t *testing.T) {
	id := newIdentity(t)

	parsed, err := ParseAgeIdentities(map[string]string{"k": id.String()})
	require.NoError(t, err)
	assert.Equal(t, id.Recipient().String(), parsed["k"].Recipient().String())

	_, err = ParseAgeIdentities(map[string]string{"k": "AGE-SECRET-KEY-garbage"})
	assert.Error(t, err)
}
