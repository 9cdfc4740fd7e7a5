package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/finbridge/finbridge/internal/auth"
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
	return nil, nil
}

func (stubProvider) FetchUserInfo(context.Context, *oauth2.Token) (*models.UserInfo, error) {
	return nil, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Host:    "localhost",
			Port:    3000,
			BaseURL: "http://localhost:3000",
		},
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
		APIKey: "admin-key",
	}
}

func newTestServer(t *testing.T) (*Server, users.Store) {
	t.Helper()

	cfg := testConfig()
	store := bridge.NewMemoryStore()
	t.Cleanup(func() { store.Close() })
	userStore := users.NewMemoryStore()

	service := auth.NewService(cfg, stubProvider{}, store, userStore)
	return NewServer(cfg, service, userStore), userStore
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMeRequiresBearer(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/me", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), "Bearer")
}

func TestMeRejectsGarbageToken(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMeReturnsStoredUser(t *testing.T) {
	srv, userStore := newTestServer(t)

	profile := &models.UserInfo{
		Sub:   "google-sub-1",
		Email: "alice@example.com",
		Name:  "Alice",
	}
	_, err := userStore.Upsert(context.Background(), profile)
	require.NoError(t, err)

	accessToken, err := srv.auth.Issuer().Issue(profile)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var user models.User
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &user))
	assert.Equal(t, "google-sub-1", user.Sub)
	assert.Equal(t, "alice@example.com", user.Email)
	assert.NotEmpty(t, user.ID)
}

func TestMeUnknownSubject(t *testing.T) {
	srv, _ := newTestServer(t)

	// Token is valid but the user was never persisted
	accessToken, err := srv.auth.Issuer().Issue(&models.UserInfo{Sub: "ghost"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	req.Header.Set("Authorization", "Bearer "+accessToken)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminStatsRequiresAPIKey(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("x-api-key", "wrong-key")
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAdminStats(t *testing.T) {
	srv, userStore := newTestServer(t)

	_, err := userStore.Upsert(context.Background(), &models.UserInfo{Sub: "u1"})
	require.NoError(t, err)
	_, err = userStore.Upsert(context.Background(), &models.UserInfo{Sub: "u2"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/admin/stats", nil)
	req.Header.Set("x-api-key", "admin-key")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 2, body["users"])
}

func TestCORSPreflight(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/me", nil)
	req.Header.Set("Origin", "https://rp.example")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
