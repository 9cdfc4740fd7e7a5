package models

import "time"

// UserInfo is the profile returned by the upstream identity provider.
type UserInfo struct {
	Sub     string
	Email   string
	Name    string
	Picture string
	Locale  string
}

// User is the locally stored identity record. One record per upstream sub;
// profile fields are refreshed on every login, the record is never replaced.
type User struct {
	ID        string    `json:"id"`
	Sub       string    `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenResponse is the exact success shape relying parties depend on.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
	Scope       string `json:"scope"`
}
