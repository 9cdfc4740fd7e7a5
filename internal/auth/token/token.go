// Package token mints and verifies the bearer JWTs the bridge hands to
// relying parties. Tokens are stateless: validity is signature plus expiry,
// there is no revocation list.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken covers bad signatures, malformed tokens and claim
	// mismatches. Callers get no more detail than that.
	ErrInvalidToken = errors.New("token: invalid token")

	// ErrExpiredToken is returned for structurally valid but expired tokens.
	ErrExpiredToken = errors.New("token: token expired")
)

// Claims is the single claim schema used everywhere: the upstream subject
// in `sub`, plus denormalized email and name.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Issuer signs and verifies access tokens with a shared HMAC secret.
type Issuer struct {
	cfg *config.TokenConfig
	now func() time.Time
}

// IssuerOption configures an Issuer.
type IssuerOption func(*Issuer)

// WithClock overrides the issuer's clock. Used by tests.
func WithClock(now func() time.Time) IssuerOption {
	return func(i *Issuer) {
		i.now = now
	}
}

// NewIssuer creates an Issuer from configuration.
func NewIssuer(cfg *config.TokenConfig, opts ...IssuerOption) *Issuer {
	i := &Issuer{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Issue mints a signed access token for the given upstream profile.
func (i *Issuer) Issue(user *models.UserInfo) (string, error) {
	now := i.now().UTC()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.Sub,
			Issuer:    i.cfg.Issuer,
			Audience:  jwt.ClaimStrings{i.cfg.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.cfg.TTL)),
		},
		Email: user.Email,
		Name:  user.Name,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(i.cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience, and returns the
// embedded claims.
func (i *Issuer) Verify(raw string) (*Claims, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return []byte(i.cfg.Secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithAudience(i.cfg.Audience),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.cfg.TTL
}
