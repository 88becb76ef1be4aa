// Package handler implements the API's HTTP endpoints: per-website pageview
// stats, event collection, API key administration, and health.
package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/website"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
)

// WebsiteLister pages through a user's websites.
type WebsiteLister interface {
	UserWebsites(ctx context.Context, userID string, p website.Pagination) (*website.Page, error)
}

// StatsFetcher returns the pageview series of one website.
type StatsFetcher interface {
	PageviewStats(ctx context.Context, websiteID string, f stats.PageviewFilters) ([]stats.StatPoint, error)
}

// KeyManager administers API keys.
type KeyManager interface {
	CreateKey(ctx context.Context, userID, name string, rateLimit int, expiresAt *time.Time) (string, error)
	ListKeys(ctx context.Context) ([]apikey.KeyInfo, error)
	RevokeKey(ctx context.Context, rawKey string) error
}

// EventTracker accepts collected pageview events for publishing.
type EventTracker interface {
	Track(e ingest.PageviewEvent)
}

// CacheFlusher drops cached stats series.
type CacheFlusher interface {
	Invalidate(ctx context.Context) error
}

// Config tunes handler behaviour.
type Config struct {
	// MaxConcurrentQueries bounds the per-website stats queries in flight for
	// one request. 1 runs them in page order one at a time.
	MaxConcurrentQueries int
	Service              string
}

// Deps are the collaborators the handler delegates to. Cache, Metrics and
// Health may be nil.
type Deps struct {
	Websites WebsiteLister
	Stats    StatsFetcher
	Keys     KeyManager
	Events   EventTracker
	Cache    CacheFlusher
	Health   *health.Checker
	Metrics  *metrics.Metrics
}

// Handler implements the API's HTTP endpoints.
type Handler struct {
	cfg      Config
	websites WebsiteLister
	stats    StatsFetcher
	keys     KeyManager
	events   EventTracker
	cache    CacheFlusher
	health   *health.Checker
	metrics  *metrics.Metrics
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Handler.
func New(cfg Config, deps Deps) *Handler {
	if cfg.MaxConcurrentQueries < 1 {
		cfg.MaxConcurrentQueries = 1
	}
	if cfg.Service == "" {
		cfg.Service = "api"
	}
	return &Handler{
		cfg:      cfg,
		websites: deps.Websites,
		stats:    deps.Stats,
		keys:     deps.Keys,
		events:   deps.Events,
		cache:    deps.Cache,
		health:   deps.Health,
		metrics:  deps.Metrics,
		logger:   logger.WithComponent("api-handler"),
		now:      time.Now,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

// fail logs a collaborator error and answers with its mapped status. Server
// errors get a generic message; client errors echo the AppError message.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, action string) {
	status := apperrors.HTTPStatusCode(err)
	log := logger.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error(action+" failed", "error", err, "status", status)
		h.writeError(w, status, http.StatusText(status))
		return
	}
	log.Warn(action+" rejected", "error", err, "status", status)
	h.writeError(w, status, err.Error())
}

func (h *Handler) methodNotAllowed(w http.ResponseWriter, r *http.Request, allow string) {
	w.Header().Set("Allow", allow)
	h.fail(w, r, apperrors.ErrMethodNotAllowed, r.Method+" "+r.URL.Path)
}
