package password

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/JaiminPatel345/glowup-sub002/internal/domain"
)

func TestHashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	digest, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	assert.NotEqual(t, "Abcdef1!", digest)

	ok, err := h.Verify("Abcdef1!", digest)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("Abcdef1?", digest)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestHashIsSalted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	a, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	b, err := h.Hash("Abcdef1!")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestVerifyMalformedDigest(t *testing.T) {
	_, err := NewHasher(bcrypt.MinCost).Verify("Abcdef1!", "not-a-hash")
	assert.Error(t, err)
}

func TestNewHasherClampsCost(t *testing.T) {
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(0).Cost)
	assert.Equal(t, bcrypt.DefaultCost, NewHasher(99).Cost)
	assert.Equal(t, 12, NewHasher(12).Cost)
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name     string
		password string
		missing  string
	}{
		{"ok", "Abcdef1!", ""},
		{"short", "Ab1!", "at least 8"},
		{"no upper", "abcdef1!", "uppercase"},
		{"no lower", "ABCDEF1!", "lowercase"},
		{"no digit", "Abcdefg!", "digit"},
		{"no symbol", "Abcdefg1", "special"},
		{"too long", "Aa1!" + strings.Repeat("x", 80), "at most"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.password)
			if tc.missing == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, domain.KindValidation, domain.KindOf(err))
			assert.Contains(t, err.Error(), tc.missing)
		})
	}
}
