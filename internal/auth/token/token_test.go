package token

import (
	"testing"
	"time"

	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTokenConfig() *config.TokenConfig {
	return &config.TokenConfig{
		Secret:   "test-secret",
		TTL:      time.Hour,
		Issuer:   "finbridge",
		Audience: "finbridge-clients",
	}
}

func testUser() *models.UserInfo {
	return &models.UserInfo{
		Sub:   "google-sub-123",
		Email: "user@example.com",
		Name:  "Test User",
	}
}

func TestIssueAndVerify(t *testing.T) {
	issuer := NewIssuer(testTokenConfig())

	raw, err := issuer.Issue(testUser())
	require.NoError(t, err)

	claims, err := issuer.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "google-sub-123", claims.Subject)
	assert.Equal(t, "user@example.com", claims.Email)
	assert.Equal(t, "Test User", claims.Name)
	assert.Equal(t, "finbridge", claims.Issuer)
}

func TestVerifyExpired(t *testing.T) {
	issued := time.Now()
	current := issued
	issuer := NewIssuer(testTokenConfig(), WithClock(func() time.Time { return current }))

	raw, err := issuer.Issue(testUser())
	require.NoError(t, err)

	current = issued.Add(2 * time.Hour)

	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestVerifyWrongSecret(t *testing.T) {
	issuer := NewIssuer(testTokenConfig())
	raw, err := issuer.Issue(testUser())
	require.NoError(t, err)

	otherCfg := testTokenConfig()
	otherCfg.Secret = "another-secret"
	other := NewIssuer(otherCfg)

	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyWrongAudience(t *testing.T) {
	issuer := NewIssuer(testTokenConfig())
	raw, err := issuer.Issue(testUser())
	require.NoError(t, err)

	otherCfg := testTokenConfig()
	otherCfg.Audience = "someone-else"
	other := NewIssuer(otherCfg)

	_, err = other.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyMalformed(t *testing.T) {
	issuer := NewIssuer(testTokenConfig())

	_, err := issuer.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyRejectsUnsignedAlg(t *testing.T) {
	issuer := NewIssuer(testTokenConfig())

	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "google-sub-123",
		"iss": "finbridge",
		"aud": "finbridge-clients",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = issuer.Verify(raw)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
