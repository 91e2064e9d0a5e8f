package security

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPlaintextHasher(t *testing.T) {
	h, err := NewPasswordHasher("plaintext")
	require.NoError(t, err)

	stored, err := h.Hash("secret")
	require.NoError(t, err)
	assert.Equal(t, "secret", stored)
	assert.NoError(t, h.Verify(stored, "secret"))
	assert.ErrorIs(t, h.Verify(stored, "Secret"), ErrPasswordMismatch)
}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	stored, err := h.Hash("secret")
	require.NoError(t, err)
	assert.NotEqual(t, "secret", stored)
	assert.NoError(t, h.Verify(stored, "secret"))
	assert.ErrorIs(t, h.Verify(stored, "wrong"), ErrPasswordMismatch)
}

func TestUnknownHasher(t *testing.T) {
	_, err := NewPasswordHasher("md5")
	assert.Error(t, err)
}

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.Issue(42)
	require.NoError(t, err)

	id, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
}

func TestTokenRejectsForeignSecret(t *testing.T) {
	token, err := NewTokenIssuer("one", time.Hour).Issue(1)
	require.NoError(t, err)

	_, err = NewTokenIssuer("two", time.Hour).Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestTokenExpired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }
	token, err := issuer.Issue(7)
	require.NoError(t, err)

	issuer.now = time.Now
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestTokenDisabledWithoutSecret(t *testing.T) {
	issuer := NewTokenIssuer("", time.Hour)
	assert.False(t, issuer.Enabled())

	_, err := issuer.Issue(1)
	assert.Error(t, err)
	_, err = issuer.Parse("x.y.z")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
