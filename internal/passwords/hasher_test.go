package passwords

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestNewHasher(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		wantErr bool
	}{
		{"min cost", bcrypt.MinCost, false},
		{"default cost", bcrypt.DefaultCost, false},
		{"below min", bcrypt.MinCost - 1, true},
		{"above max", bcrypt.MaxCost + 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, err := NewHasher(tt.cost)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, h)
				return
			}
			assert.NoError(t, err)
			assert.NotNil(t, h)
		})
	}
}

func TestHasher_HashAndVerify(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	passwords := []string{"Secret123!", "validpass123", "пароль-юникод", strings.Repeat("x", MaxPasswordBytes)}

	for _, password := range passwords {
		t.Run(password, func(t *testing.T) {
			first, err := h.Hash(password)
			require.NoError(t, err)
			second, err := h.Hash(password)
			require.NoError(t, err)

			assert.NotEqual(t, password, first)
			assert.NotEqual(t, first, second, "fresh salt per call")
			assert.True(t, h.Verify(password, first))
			assert.True(t, h.Verify(password, second))
			assert.False(t, h.Verify(password+"x", first))
			assert.False(t, h.Verify("", first))
		})
	}
}

func TestHasher_UsesConfiguredCost(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost + 1)
	require.NoError(t, err)

	hash, err := h.Hash("Secret123!")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(hash))
	require.NoError(t, err)
	assert.Equal(t, bcrypt.MinCost+1, cost)
}

func TestHasher_VerifyMalformedHash(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	for _, hash := range []string{"", "not-a-hash", "$2a$04$short"} {
		assert.NotPanics(t, func() {
			assert.False(t, h.Verify("Secret123!", hash))
		})
	}
}

func TestHasher_VerifyRejectsSharedPrefix(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	stored := strings.Repeat("a", MaxPasswordBytes)
	hash, err := h.Hash(stored)
	require.NoError(t, err)

	assert.True(t, h.Verify(stored, hash))
	assert.False(t, h.Verify(stored+"a", hash))
	assert.False(t, h.Verify(stored+"-suffix", hash))
}

func TestHasher_HashTooLong(t *testing.T) {
	h, err := NewHasher(bcrypt.MinCost)
	require.NoError(t, err)

	_, err = h.Hash(strings.Repeat("x", MaxPasswordBytes+1))
	assert.Error(t, err)
}
