package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scriptguard/pkg/models"
)

func TestTokenRoundTrip(t *testing.T) {
	ts := NewTokenService("unit-test-secret", time.Hour)
	account := &models.Account{ID: 42, Email: "admin@example.com", IsAdmin: true}

	token, expiresAt, err := ts.IssueToken(account)
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, time.Minute)

	claims, err := ts.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.True(t, claims.IsAdmin)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	issuer := NewTokenService("secret-a", time.Hour)
	verifier := NewTokenService("secret-b", time.Hour)

	token, _, err := issuer.IssueToken(&models.Account{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	_, err = verifier.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	ts := NewTokenService("unit-test-secret", -time.Minute)

	token, _, err := ts.IssueToken(&models.Account{ID: 1, Email: "a@example.com"})
	require.NoError(t, err)

	_, err = ts.ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	ts := NewTokenService("unit-test-secret", time.Hour)
	_, err := ts.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHashPasswordVerifies(t *testing.T) {
	hash, err := HashPassword("hunter2")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter2", hash)
}
