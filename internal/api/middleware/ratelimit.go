package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/ratelimit"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
)

// RateLimit returns middleware that enforces per-key rate limits using the
// limit stored on the authenticated user's key. Unauthenticated requests pass
// through.
func RateLimit(limiter *ratelimit.Limiter, window time.Duration) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(window.Seconds()))
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := UserFromContext(r.Context())
			if user == nil {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(user.KeyID, user.RateLimit) {
				w.Header().Set("Retry-After", retryAfter)
				writeError(w, apperrors.HTTPStatusCode(apperrors.ErrRateLimited), apperrors.ErrRateLimited.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
