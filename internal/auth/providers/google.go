package providers

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/finbridge/finbridge/internal/config"
	"golang.org/x/oauth2"
)

// GoogleProvider bridges to any OIDC-compliant upstream via issuer
// discovery; the default issuer is Google's.
type GoogleProvider struct {
	oauth2Config *oauth2.Config
	provider     *oidc.Provider
	verifier     *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers the upstream issuer and configures the
// OAuth2 client with the bridge's callback URL as redirect target.
func NewGoogleProvider(cfg *config.UpstreamConfig, callbackURL string) (*GoogleProvider, error) {
	provider, err := oidc.NewProvider(context.Background(), cfg.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Cfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     provider.Endpoint(),
		RedirectURL:  callbackURL,
		Scopes:       cfg.Scopes,
	}

	return &GoogleProvider{
		oauth2Config: oauth2Cfg,
		provider:     provider,
		verifier:     provider.Verifier(&oidc.Config{ClientID: cfg.ClientID}),
	}, nil
}

func (p *GoogleProvider) AuthCodeURL(state, scope string) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	}
	if scope != "" {
		opts = append(opts, oauth2.SetAuthURLParam("scope", scope))
	}
	return p.oauth2Config.AuthCodeURL(state, opts...)
}

func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return p.oauth2Config.Exchange(ctx, code)
}

func (p *GoogleProvider) FetchUserInfo(ctx context.Context, token *oauth2.Token) (*models.UserInfo, error) {
	userInfo, err := p.provider.UserInfo(ctx, oauth2.StaticTokenSource(token))
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
		Locale  string `json:"locale"`
	}
	if err := userInfo.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo claims: %w", err)
	}
	if claims.Sub == "" {
		return nil, fmt.Errorf("userinfo response missing sub")
	}

	return &models.UserInfo{
		Sub:     claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Locale:  claims.Locale,
	}, nil
}

// VerifyIDToken validates the id_token from an upstream token response and
// extracts the profile embedded in it. Used when the userinfo endpoint is
// unavailable.
func (p *GoogleProvider) VerifyIDToken(ctx context.Context, token *oauth2.Token) (*models.UserInfo, error) {
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, fmt.Errorf("no id_token in token response")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var claims struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
		Locale  string `json:"locale"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse claims: %w", err)
	}

	return &models.UserInfo{
		Sub:     claims.Sub,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
		Locale:  claims.Locale,
	}, nil
}
