package providers

import (
	"context"

	"github.com/finbridge/finbridge/internal/auth/models"
	"golang.org/x/oauth2"
)

// Provider defines the interface to the upstream identity provider
type Provider interface {
	// AuthCodeURL returns the upstream authorization URL with the bridge's
	// own callback as redirect target and state passed through unchanged
	AuthCodeURL(state, scope string) string

	// Exchange trades an upstream authorization code for upstream tokens
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchUserInfo retrieves the end user's profile with upstream tokens
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*models.UserInfo, error)
}
