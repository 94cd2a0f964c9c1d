package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/questionbank/questionbank/internal/auth"
	"github.com/questionbank/questionbank/internal/shared"
)

func TestHasherRoundTrip(t *testing.T) {
	h, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	digest, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, "password123", digest)
	assert.True(t, h.Verify("password123", digest))
	assert.False(t, h.Verify("password124", digest))

	again, err := h.Hash("password123")
	require.NoError(t, err)
	assert.NotEqual(t, digest, again, "digests are salted")
}

func TestHasherRejectsMalformedDigest(t *testing.T) {
	h, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)
	assert.False(t, h.Verify("password123", "not-a-bcrypt-digest"))
	assert.False(t, h.Verify("password123", ""))
}

func TestNewHasherCost(t *testing.T) {
	h, err := auth.NewHasher(0)
	require.NoError(t, err)
	assert.Equal(t, auth.DefaultBcryptCost, h.Cost())

	_, err = auth.NewHasher(bcrypt.MaxCost + 1)
	assert.Error(t, err)
	_, err = auth.NewHasher(2)
	assert.Error(t, err)
}

func TestHasherRejectsInputOverByteLimit(t *testing.T) {
	h, err := auth.NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("é", 37))
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = h.Hash(strings.Repeat("x", auth.MaxPasswordBytes))
	assert.NoError(t, err)
}
