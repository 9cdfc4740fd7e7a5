package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/finbridge/finbridge/internal/auth/constants"
	"github.com/finbridge/finbridge/internal/auth/token"
	"github.com/finbridge/finbridge/internal/logger"
	"github.com/finbridge/finbridge/internal/utils"
	"go.uber.org/zap"
)

// authContextKey is the key type for the context
type authContextKey string

const (
	// AuthContextKey is used to store auth info in the request context
	AuthContextKey authContextKey = "auth"
)

// AuthInfo represents the authentication information stored in context
type AuthInfo struct {
	Sub     string
	Email   string
	Name    string
	Service bool // true for the shared-secret service identity
}

// FromContext extracts the AuthInfo set by the middlewares.
func FromContext(ctx context.Context) (*AuthInfo, bool) {
	info, ok := ctx.Value(AuthContextKey).(*AuthInfo)
	return info, ok
}

// Authenticate validates the bearer JWT and scopes the request to the end
// user recovered from its claims. Any verification failure is a 401 with
// no partial data.
func Authenticate(issuer *token.Issuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := extractToken(r)
			if raw == "" {
				writeUnauthorized(w, "unauthorized", "Authentication required")
				return
			}

			claims, err := issuer.Verify(raw)
			if err != nil {
				writeUnauthorized(w, "invalid_token", "Token verification failed")
				return
			}

			ctx := context.WithValue(r.Context(), AuthContextKey, &AuthInfo{
				Sub:   claims.Subject,
				Email: claims.Email,
				Name:  claims.Name,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// APIKeyAuth grants the unscoped service identity via the shared x-api-key
// header. Deliberately a separate code path from bearer verification, and
// every use is audited.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(constants.APIKeyHeaderName)
			if apiKey == "" || presented == "" ||
				subtle.ConstantTimeCompare([]byte(presented), []byte(apiKey)) != 1 {
				writeUnauthorized(w, "unauthorized", "Valid API key required")
				return
			}

			logger.Warn("Service identity used",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
			)

			ctx := context.WithValue(r.Context(), AuthContextKey, &AuthInfo{Service: true})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// CORSWithOrigins returns a CORS middleware restricted to the given
// origins; an empty list allows any origin.
func CORSWithOrigins(origins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case len(allowed) == 0:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case allowed[origin]:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, x-api-key")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// extractToken extracts the Bearer token from the request
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get(constants.AuthHeaderName)
	if strings.HasPrefix(authHeader, constants.AuthHeaderPrefix) {
		return strings.TrimPrefix(authHeader, constants.AuthHeaderPrefix)
	}
	return ""
}

// writeUnauthorized writes a 401 with the standard challenge header
func writeUnauthorized(w http.ResponseWriter, code, message string) {
	w.Header().Set("WWW-Authenticate",
		`Bearer realm="finbridge", error="`+code+`", error_description="`+message+`"`)
	utils.WriteError(w, code, message, http.StatusUnauthorized)
}
