// Package handlers implements the OAuth authorization bridge endpoints:
// authorize, callback and token. The bridge sits between a relying party
// and the upstream identity provider, so upstream credentials never reach
// the relying party.
package handlers

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/finbridge/finbridge/internal/auth/constants"
	"github.com/finbridge/finbridge/internal/auth/models"
	"github.com/finbridge/finbridge/internal/auth/providers"
	"github.com/finbridge/finbridge/internal/auth/token"
	"github.com/finbridge/finbridge/internal/bridge"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/internal/logger"
	"github.com/finbridge/finbridge/internal/users"
	"github.com/finbridge/finbridge/internal/utils"
	"go.uber.org/zap"
)

// Handler handles the OAuth bridge HTTP requests
type Handler struct {
	client   *config.ClientConfig
	upstream *config.UpstreamConfig
	provider providers.Provider
	store    bridge.Store
	users    users.Store
	issuer   *token.Issuer
	now      func() time.Time
}

// Option configures a Handler.
type Option func(*Handler)

// WithClock overrides the handler's clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		h.now = now
	}
}

// NewHandler creates a new Handler instance
func NewHandler(cfg *config.Config, provider providers.Provider, store bridge.Store, userStore users.Store, issuer *token.Issuer, opts ...Option) *Handler {
	h := &Handler{
		client:   &cfg.Client,
		upstream: &cfg.Upstream,
		provider: provider,
		store:    store,
		users:    userStore,
		issuer:   issuer,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// HandleAuthorize validates the relying party's authorization request and
// redirects the user agent to the upstream provider. Purely a validating
// redirector: no state is created beyond the pending-authorization record.
func (h *Handler) HandleAuthorize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	clientID := q.Get("client_id")
	redirectURI := q.Get("redirect_uri")
	state := q.Get("state")

	if clientID == "" || redirectURI == "" || state == "" {
		utils.WriteError(w, "invalid_request", "client_id, redirect_uri and state are required", http.StatusBadRequest)
		return
	}

	if q.Get("response_type") != "code" {
		utils.WriteError(w, "unsupported_response_type", "Only code response_type is supported", http.StatusBadRequest)
		return
	}

	// The relying party identifies with its own client id, never the
	// upstream provider's
	if clientID != h.client.ID {
		logger.Warn("Authorize request with unknown client_id", zap.String("client_id", clientID))
		utils.WriteError(w, "invalid_client", "Unknown client_id", http.StatusBadRequest)
		return
	}

	if !h.allowedRedirect(redirectURI) {
		logger.Warn("Authorize request with unregistered redirect_uri", zap.String("redirect_uri", redirectURI))
		utils.WriteError(w, "invalid_request", "redirect_uri is not registered for this client", http.StatusBadRequest)
		return
	}

	scope := q.Get("scope")
	if scope == "" {
		scope = constants.DefaultScope
	}

	pending := bridge.PendingAuth{
		ClientID:    clientID,
		RedirectURI: redirectURI,
		Scope:       scope,
		State:       state,
		CreatedAt:   h.now(),
	}
	if err := h.store.PutPending(r.Context(), state, pending, constants.PendingAuthTTL); err != nil {
		logger.Error("Failed to record pending authorization", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	authURL := h.provider.AuthCodeURL(state, scope)
	logger.Info("Redirecting to upstream provider",
		zap.String("client_id", clientID),
		zap.String("redirect_uri", redirectURI),
	)
	http.Redirect(w, r, authURL, http.StatusFound)
}

// HandleCallback is the upstream provider's redirect target. It exchanges
// the upstream code, establishes the local user, mints the bridge code and
// sends the user agent back to the relying party.
func (h *Handler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")

	if code == "" {
		utils.WriteError(w, "invalid_request", "Code is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.upstream.Timeout)
	defer cancel()

	// Upstream failures are logged in full but reported generically; a
	// user restarts the flow from /oauth/authorize, nothing is retried
	upstreamToken, err := h.provider.Exchange(ctx, code)
	if err != nil {
		logger.Error("Upstream token exchange failed", zap.Error(err))
		utils.WriteError(w, "server_error", "Upstream authentication failed", http.StatusInternalServerError)
		return
	}

	profile, err := h.provider.FetchUserInfo(ctx, upstreamToken)
	if err != nil {
		logger.Error("Upstream profile fetch failed", zap.Error(err))
		utils.WriteError(w, "server_error", "Upstream authentication failed", http.StatusInternalServerError)
		return
	}

	user, err := h.users.Upsert(r.Context(), profile)
	if err != nil {
		logger.Error("Failed to upsert user", zap.Error(err), zap.String("sub", profile.Sub))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	accessToken, err := h.issuer.Issue(profile)
	if err != nil {
		logger.Error("Failed to mint access token", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	redirectURI, scope := h.resolveReturnTarget(r.Context(), state)

	bridgeCode, err := newBridgeCode()
	if err != nil {
		logger.Error("Failed to generate bridge code", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	entry := bridge.CodeEntry{
		AccessToken: accessToken,
		Scope:       scope,
		ExpiresAt:   h.now().Add(constants.BridgeCodeTTL),
	}
	if err := h.store.PutCode(r.Context(), bridgeCode, entry, constants.BridgeCodeTTL); err != nil {
		logger.Error("Failed to store bridge code", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	logger.Info("Bridge code issued",
		zap.String("user_id", user.ID),
		zap.String("sub", user.Sub),
	)

	target, err := url.Parse(redirectURI)
	if err != nil {
		logger.Error("Invalid relying party redirect URI", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}
	params := target.Query()
	params.Set("code", bridgeCode)
	params.Set("state", state)
	target.RawQuery = params.Encode()

	http.Redirect(w, r, target.String(), http.StatusFound)
}

// HandleToken implements the authorization-code grant for the relying
// party: client credential check, redirect URI re-validation, single-use
// code consumption and expiry enforcement.
func (h *Handler) HandleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := r.ParseForm(); err != nil {
		utils.WriteError(w, "invalid_request", "Failed to parse form", http.StatusBadRequest)
		return
	}

	if r.FormValue("grant_type") != "authorization_code" {
		utils.WriteError(w, "unsupported_grant_type", "Only authorization_code grant type is supported", http.StatusBadRequest)
		return
	}

	if !h.validClientCredentials(r.FormValue("client_id"), r.FormValue("client_secret")) {
		logger.Warn("Token request with invalid client credentials", zap.String("client_id", r.FormValue("client_id")))
		utils.WriteError(w, "invalid_client", "Invalid client credentials", http.StatusUnauthorized)
		return
	}

	if !h.allowedRedirect(r.FormValue("redirect_uri")) {
		utils.WriteError(w, "invalid_request", "redirect_uri is not registered for this client", http.StatusBadRequest)
		return
	}

	code := r.FormValue("code")
	if code == "" {
		utils.WriteError(w, "invalid_request", "Code is required", http.StatusBadRequest)
		return
	}

	entry, err := h.store.TakeCode(r.Context(), code)
	switch {
	case errors.Is(err, bridge.ErrExpired):
		utils.WriteError(w, "expired_code", "Authorization code has expired", http.StatusBadRequest)
		return
	case errors.Is(err, bridge.ErrNotFound):
		// Never existed and already consumed look identical on purpose
		utils.WriteError(w, "invalid_grant", "Invalid authorization code", http.StatusBadRequest)
		return
	case err != nil:
		logger.Error("Bridge code lookup failed", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, models.TokenResponse{
		AccessToken: entry.AccessToken,
		TokenType:   constants.TokenType,
		ExpiresIn:   int(h.issuer.TTL().Seconds()),
		Scope:       entry.Scope,
	})
}

// resolveReturnTarget recovers the relying party's redirect target from
// the pending authorization, falling back to the first registered redirect
// URI when the record is gone (expired, or the flow skipped authorize).
func (h *Handler) resolveReturnTarget(ctx context.Context, state string) (string, string) {
	if state != "" {
		if pending, err := h.store.TakePending(ctx, state); err == nil {
			return pending.RedirectURI, pending.Scope
		}
	}
	return h.client.RedirectURIs[0], constants.DefaultScope
}

func (h *Handler) allowedRedirect(redirectURI string) bool {
	// Exact string equality, no prefix or pattern matching
	for _, allowed := range h.client.RedirectURIs {
		if redirectURI == allowed {
			return true
		}
	}
	return false
}

func (h *Handler) validClientCredentials(clientID, clientSecret string) bool {
	idOK := subtle.ConstantTimeCompare([]byte(clientID), []byte(h.client.ID)) == 1
	secretOK := subtle.ConstantTimeCompare([]byte(clientSecret), []byte(h.client.Secret)) == 1
	return idOK && secretOK
}

// newBridgeCode returns an opaque single-use code with 32 bytes of entropy.
func newBridgeCode() (string, error) {
	buf := make([]byte, constants.BridgeCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate bridge code: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
