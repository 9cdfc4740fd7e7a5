package auth

import (
	"net/http"

	"github.com/finbridge/finbridge/internal/auth/handlers"
	"github.com/finbridge/finbridge/internal/auth/middleware"
	"github.com/finbridge/finbridge/internal/auth/providers"
	"github.com/finbridge/finbridge/internal/auth/token"
	"github.com/finbridge/finbridge/internal/bridge"
	"github.com/finbridge/finbridge/internal/config"
	"github.com/finbridge/finbridge/internal/users"
	"go.uber.org/fx"
)

// Service represents the OAuth bridge service
type Service struct {
	config   *config.Config
	provider providers.Provider
	issuer   *token.Issuer
	handler  *handlers.Handler
}

// NewService creates a new OAuth bridge service
func NewService(cfg *config.Config, provider providers.Provider, store bridge.Store, userStore users.Store) *Service {
	issuer := token.NewIssuer(&cfg.Token)
	handler := handlers.NewHandler(cfg, provider, store, userStore, issuer)

	return &Service{
		config:   cfg,
		provider: provider,
		issuer:   issuer,
		handler:  handler,
	}
}

// RegisterRoutes registers all OAuth bridge routes
func (s *Service) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/oauth/authorize", s.handler.HandleAuthorize)
	mux.HandleFunc("/oauth/callback", s.handler.HandleCallback)
	mux.HandleFunc("/oauth/token", s.handler.HandleToken)
}

// WrapWithCORS wraps the handler with the configured CORS policy
func (s *Service) WrapWithCORS(handler http.Handler) http.Handler {
	return middleware.CORSWithOrigins(s.config.Server.AllowOrigins)(handler)
}

// Authenticate returns the bearer-token authentication middleware
func (s *Service) Authenticate() func(http.Handler) http.Handler {
	return middleware.Authenticate(s.issuer)
}

// APIKeyAuth returns the audited service-identity middleware
func (s *Service) APIKeyAuth() func(http.Handler) http.Handler {
	return middleware.APIKeyAuth(s.config.APIKey)
}

// Issuer returns the token issuer used by the service
func (s *Service) Issuer() *token.Issuer {
	return s.issuer
}

// NewProvider builds the upstream provider from configuration.
func NewProvider(cfg *config.Config) (*providers.GoogleProvider, error) {
	return providers.NewGoogleProvider(&cfg.Upstream, cfg.CallbackURL())
}

// Module provides the OAuth bridge dependencies
var Module = fx.Module("auth",
	fx.Provide(
		fx.Annotate(
			NewProvider,
			fx.As(new(providers.Provider)),
		),
		NewService,
	),
)
