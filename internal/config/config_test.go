package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FINBRIDGE_UPSTREAM_CLIENT_ID", "upstream-id")
	t.Setenv("FINBRIDGE_UPSTREAM_CLIENT_SECRET", "upstream-secret")
	t.Setenv("FINBRIDGE_CLIENT_ID", "action-client")
	t.Setenv("FINBRIDGE_CLIENT_SECRET", "action-secret")
	t.Setenv("FINBRIDGE_CLIENT_REDIRECT_URIS", "https://rp.example/callback")
	t.Setenv("FINBRIDGE_TOKEN_SECRET", "signing-secret")
	t.Setenv("FINBRIDGE_SERVER_BASE_URL", "https://bridge.example")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "https://accounts.google.com", cfg.Upstream.Issuer)
	assert.Equal(t, 10*time.Second, cfg.Upstream.Timeout)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, "finbridge", cfg.Token.Issuer)
	assert.Equal(t, StoreBackendMemory, cfg.Store.Backend)
	assert.Equal(t, "finbridge.db", cfg.Users.Path)
}

func TestLoadEnvOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FINBRIDGE_SERVER_PORT", "8080")
	t.Setenv("FINBRIDGE_TOKEN_TTL", "30m")
	t.Chdir(t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Minute, cfg.Token.TTL)
}

func TestLoadRejectsMissingCredentials(t *testing.T) {
	cases := []struct {
		name  string
		unset string
	}{
		{"upstream secret", "FINBRIDGE_UPSTREAM_CLIENT_SECRET"},
		{"client secret", "FINBRIDGE_CLIENT_SECRET"},
		{"token secret", "FINBRIDGE_TOKEN_SECRET"},
		{"base url", "FINBRIDGE_SERVER_BASE_URL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			setRequiredEnv(t)
			t.Setenv(tc.unset, "")
			t.Chdir(t.TempDir())

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadRedisRequiresAddr(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("FINBRIDGE_STORE_BACKEND", "redis")
	t.Chdir(t.TempDir())

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.addr")
}

func TestCallbackURL(t *testing.T) {
	cfg := &Config{Server: ServerConfig{BaseURL: "https://bridge.example/"}}
	assert.Equal(t, "https://bridge.example/oauth/callback", cfg.CallbackURL())

	cfg.Server.BaseURL = "https://bridge.example"
	assert.Equal(t, "https://bridge.example/oauth/callback", cfg.CallbackURL())
}
