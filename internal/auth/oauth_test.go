package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/finbridge/finbridge/internal/bridge"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/internal/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type stubProvider struct{}

func (stubProvider) AuthCodeURL(state, scope string) string {
	return "https://upstream.example/auth?state=" + state
}

func (stubProvider) Exchange(context.Context, string) (*oauth2.Token, error) {
	return &oauth2.Token{AccessToken: "upstream-access-token"}, nil
}

func (stubProvider) FetchUserInfo(context.Context, *oauth2.Token) (*models.UserInfo, error) {
	return &models.UserInfo{Sub: "sub-1", Email: "a@b.c"}, nil
}

func newTestService(t *testing.T) *Service {
	t.Helper()

	cfg := &config.Config{
		Client: config.ClientConfig{
			ID:           "action-client",
			Secret:       "action-secret",
			RedirectURIs: []string{"https://rp.example/callback"},
		},
		Token: config.TokenConfig{
			Secret:   "test-signing-secret",
			TTL:      time.Hour,
			Issuer:   "finbridge",
			Audience: "finbridge-clients",
		},
	}

	store := bridge.NewMemoryStore()
	t.Cleanup(func() { store.Close() })

	return NewService(cfg, stubProvider{}, store, users.NewMemoryStore())
}

func TestRegisterRoutes(t *testing.T) {
	service := newTestService(t)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	// Each bridge endpoint is mounted; a request that fails validation
	// still proves the route resolves to the handler
	cases := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/oauth/authorize"},
		{http.MethodGet, "/oauth/callback"},
		{http.MethodPost, "/oauth/token"},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.path)
	}
}

func TestRouteMethodRestrictions(t *testing.T) {
	service := newTestService(t)

	mux := http.NewServeMux()
	service.RegisterRoutes(mux)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/oauth/authorize", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/oauth/token", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServiceIssuerRoundTrip(t *testing.T) {
	service := newTestService(t)

	raw, err := service.Issuer().Issue(&models.UserInfo{Sub: "sub-1", Email: "a@b.c"})
	require.NoError(t, err)

	claims, err := service.Issuer().Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub-1", claims.Subject)
}
