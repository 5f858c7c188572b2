package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher(t *testing.T) {
	h := NewHasher(4)
	hash, err := h.Hash("secret123")
	require.NoError(t, err)
	assert.NotContains(t, hash, "secret123")
	assert.NoError(t, h.Compare(hash, "secret123"))
	assert.Error(t, h.Compare(hash, "wrong"))
}

func TestHasherCostClamp(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost)
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost)
}
