package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-substitute-api/internal/models"
	appErrors "github.com/noah-isme/sma-substitute-api/pkg/errors"
)

func TestTokenVerifierRoundTrip(t *testing.T) {
	verifier := NewTokenVerifier("secret", "sma-identity")

	token, err := verifier.Issue("user-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)

	claims, err := verifier.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestTokenVerifierRejects(t *testing.T) {
	verifier := NewTokenVerifier("secret", "sma-identity")

	other, err := NewTokenVerifier("other", "sma-identity").Issue("user-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(other)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	foreign, err := NewTokenVerifier("secret", "elsewhere").Issue("user-1", models.RoleAdmin, time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(foreign)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	noRole, err := verifier.Issue("user-1", "", time.Hour)
	require.NoError(t, err)
	_, err = verifier.ValidateToken(noRole)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))

	_, err = verifier.ValidateToken("not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}

func TestTokenVerifierExpired(t *testing.T) {
	verifier := NewTokenVerifier("secret", "")
	verifier.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := verifier.Issue("user-1", models.RoleStaff, time.Hour)
	require.NoError(t, err)

	verifier.now = time.Now
	_, err = verifier.ValidateToken(token)
	assert.True(t, errors.Is(err, appErrors.ErrUnauthorized))
}
