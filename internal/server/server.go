// Package server assembles the HTTP surface: the OAuth bridge endpoints,
// the bearer-protected business API and the audited admin routes.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/finbridge/finbridge/internal/auth"
	"github.com/finbridge/finbridge/internal/auth/middleware"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/internal/logger"
	"github.com/finbridge/finbridge/internal/users"
	"github.com/finbridge/finbridge/internal/utils"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	// shutdownTimeout is the maximum time to wait for server shutdown
	shutdownTimeout = 5 * time.Second

	readHeaderTimeout = 10 * time.Second
)

// Server hosts the OAuth bridge and the protected API.
type Server struct {
	config *config.Config
	auth   *auth.Service
	users  users.Store
}

// NewServer creates the HTTP server instance.
func NewServer(cfg *config.Config, authService *auth.Service, userStore users.Store) *Server {
	return &Server{
		config: cfg,
		auth:   authService,
		users:  userStore,
	}
}

// Handler builds the full route table with the middleware stack applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealth)
	s.auth.RegisterRoutes(mux)

	mux.Handle("/api/me", s.auth.Authenticate()(http.HandlerFunc(s.handleMe)))
	mux.Handle("/api/admin/stats", s.auth.APIKeyAuth()(http.HandlerFunc(s.handleAdminStats)))

	return s.auth.WrapWithCORS(mux)
}

// Start runs the server until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 1)

	go func() {
		logger.Info("Starting server",
			zap.String("address", addr),
			zap.String("base_url", s.config.Server.BaseURL),
		)

		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil

	case err := <-errChan:
		return err
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.WriteJSON(w, map[string]string{"status": "ok"})
}

// handleMe returns the stored user record for the authenticated subject.
func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	info, ok := middleware.FromContext(r.Context())
	if !ok {
		utils.WriteError(w, "unauthorized", "Authentication required", http.StatusUnauthorized)
		return
	}

	user, err := s.users.FindBySub(r.Context(), info.Sub)
	if errors.Is(err, users.ErrNotFound) {
		utils.WriteError(w, "not_found", "User not found", http.StatusNotFound)
		return
	}
	if err != nil {
		logger.Error("Failed to load user", zap.Error(err), zap.String("sub", info.Sub))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, user)
}

func (s *Server) handleAdminStats(w http.ResponseWriter, r *http.Request) {
	count, err := s.users.Count(r.Context())
	if err != nil {
		logger.Error("Failed to count users", zap.Error(err))
		utils.WriteError(w, "server_error", "Internal server error", http.StatusInternalServerError)
		return
	}

	utils.WriteJSON(w, map[string]interface{}{
		"users":   count,
		"version": config.GetVersionInfo(),
	})
}

// Module provides the HTTP server dependencies
var Module = fx.Module("server",
	fx.Provide(
		NewServer,
	),
)
