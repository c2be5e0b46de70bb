package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	tests := []struct {
		name     string
		password string
		wantErr  bool
		contains string
	}{
		{"valid", "Spending2024", false, ""},
		{"too short", "Ab1", true, "at least 8"},
		{"too long", "Aa1" + string(make([]byte, 80)), true, "at most 72"},
		{"no uppercase", "lowercase1", true, "uppercase"},
		{"no lowercase", "UPPERCASE1", true, "lowercase"},
		{"no digit", "NoDigitsHere", true, "digit"},
		{"common", "Password123", true, "too common"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePassword(tt.password)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.True(t, IsPasswordValidationError(err))
			assert.Contains(t, err.Error(), tt.contains)
		})
	}
}

func TestPasswordHasher_HashAndCompare(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	hash, err := hasher.Hash("Spending2024")
	require.NoError(t, err)
	assert.NotEqual(t, "Spending2024", hash)

	assert.True(t, hasher.Compare(hash, "Spending2024"))
	assert.False(t, hasher.Compare(hash, "spending2024"))
	assert.False(t, hasher.Compare("not-a-hash", "Spending2024"))
}

func TestPasswordHasher_EmptyPassword(t *testing.T) {
	_, err := NewPasswordHasher(bcrypt.MinCost).Hash("")
	assert.Error(t, err)
}

func TestPasswordHasher_CostOutOfRangeUsesDefault(t *testing.T) {
	hasher := NewPasswordHasher(0)
	assert.Equal(t, BcryptCost, hasher.cost)
}

func TestPasswordHasher_CompareDummy(t *testing.T) {
	hasher := NewPasswordHasher(bcrypt.MinCost)

	assert.NotPanics(t, func() {
		hasher.CompareDummy("anything")
		hasher.CompareDummy("again")
	})
	assert.NotEmpty(t, hasher.dummyHash)
}
