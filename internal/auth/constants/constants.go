package constants

import "time"

const (
	// TokenType for Bearer authentication
	TokenType = "Bearer"

	// AuthHeaderName is the name of the Authorization header
	AuthHeaderName = "Authorization"

	// AuthHeaderPrefix is the prefix for the Authorization header value
	AuthHeaderPrefix = "Bearer "

	// APIKeyHeaderName carries the shared service credential
	APIKeyHeaderName = "x-api-key"

	// DefaultScope is requested upstream when the relying party sends none
	DefaultScope = "openid email profile"

	// BridgeCodeTTL is how long a minted bridge code stays redeemable
	BridgeCodeTTL = 2 * time.Minute

	// PendingAuthTTL bounds how long an authorize request may wait for the
	// upstream callback before the flow must be restarted
	PendingAuthTTL = 10 * time.Minute

	// BridgeCodeBytes is the entropy of a bridge code before encoding
	BridgeCodeBytes = 32
)

var (
	SupportedResponseTypes = []string{"code"}
	SupportedGrantTypes    = []string{"authorization_code"}
)
