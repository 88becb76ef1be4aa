// Package router wires up the API routes and applies the middleware chain
// (RequestID → CORS → Auth → RateLimit → Timeout → Metrics).
package router

import (
	"net/http"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/handler"
	apimw "github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/middleware"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/request"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	pkgmw "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/middleware"
)

// New builds the API HTTP handler with all routes and middleware. m may be
// nil.
//
// Route table:
//
//	*      /api/websites/pageviews → pageviews per website (GET only, admin)
//	POST   /api/send               → collect a pageview event (public)
//	POST   /api/admin/keys         → create API key (admin)
//	GET    /api/admin/keys         → list API keys (admin)
//	DELETE /api/admin/keys         → revoke API key (admin)
//	DELETE /api/admin/cache        → flush cached stats (admin)
//	GET    /health                 → process health (public)
//	GET    /health/live            → liveness probe (public)
//	GET    /health/ready           → readiness probe (public)
func New(h *handler.Handler, authn apimw.Authenticator, limiter *ratelimit.Limiter, cfg *config.Config, m *metrics.Metrics) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /health/live", h.Live)
	mux.HandleFunc("GET /health/ready", h.Ready)

	// Registered without a method so the handler answers 405 itself.
	mux.Handle("/api/websites/pageviews",
		apimw.Validate(request.PageviewsSchema)(http.HandlerFunc(h.WebsitePageviews)))

	mux.HandleFunc("POST /api/send", h.Send)

	mux.HandleFunc("POST /api/admin/keys", h.CreateAPIKey)
	mux.HandleFunc("GET /api/admin/keys", h.ListAPIKeys)
	mux.HandleFunc("DELETE /api/admin/keys", h.RevokeAPIKey)
	mux.HandleFunc("DELETE /api/admin/cache", h.FlushStatsCache)

	// Applied inside-out.
	var chain http.Handler = mux
	if m != nil {
		chain = pkgmw.Metrics(m)(chain)
	}
	chain = pkgmw.Timeout(cfg.Server.RequestTimeout)(chain)
	if limiter != nil {
		chain = apimw.RateLimit(limiter, cfg.Server.RateLimitWindow)(chain)
	}
	chain = apimw.Auth(authn)(chain)
	chain = apimw.CORS(cfg.CORS)(chain)
	chain = pkgmw.RequestID(chain)

	return chain
}
