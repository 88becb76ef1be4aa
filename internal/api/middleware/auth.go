// Package middleware provides the API's HTTP middleware: authentication,
// CORS, query validation, and rate limiting.
package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
)

type contextKey string

const userKey contextKey = "auth_user"

// Authenticator resolves a raw API key to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*apikey.User, error)
}

// publicPrefixes are served without an API key.
var publicPrefixes = []string{"/health", "/api/send"}

// Auth returns middleware that resolves the request's API key to a user and
// stores it in the context. Keys can be provided via Authorization: Bearer
// <key>, the X-API-Key header, or the api_key query parameter. Failures are
// answered with 401 and the chain stops.
func Auth(authn Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublic(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			key := extractAPIKey(r)
			if key == "" {
				writeError(w, http.StatusUnauthorized, "missing api key")
				return
			}

			user, err := authn.Authenticate(r.Context(), key)
			if err != nil {
				switch {
				case errors.Is(err, apikey.ErrInvalidKey):
					writeError(w, http.StatusUnauthorized, "invalid api key")
				case errors.Is(err, apikey.ErrExpiredKey):
					writeError(w, http.StatusUnauthorized, "expired api key")
				default:
					logger.FromContext(r.Context()).Error("authentication failed", "error", err)
					writeError(w, http.StatusInternalServerError, "authentication error")
				}
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser stores user in ctx.
func WithUser(ctx context.Context, user *apikey.User) context.Context {
	ctx = logger.WithUserID(ctx, user.ID)
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the user stored by Auth, or nil.
func UserFromContext(ctx context.Context) *apikey.User {
	user, _ := ctx.Value(userKey).(*apikey.User)
	return user
}

func isPublic(path string) bool {
	for _, p := range publicPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// extractAPIKey reads the API key from the request in priority order:
// Authorization: Bearer header, X-API-Key header, api_key query parameter.
func extractAPIKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}
	return r.URL.Query().Get("api_key")
}
