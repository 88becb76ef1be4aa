package stats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/postgres"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/resilience"
)

// eventTypePageview is the website_event.event_type value of a page view.
const eventTypePageview = 1

// Store queries bucketed pageview counts from PostgreSQL.
//
// It reads the website_event table, joined to session when a visitor filter
// is present:
//
//	website_event(event_id, website_id, session_id, created_at, url_path,
//	              referrer_domain, page_title, hostname, tag, event_type)
//	session(session_id, website_id, browser, os, device, country, region, city)
type Store struct {
	db      *postgres.Client
	breaker *resilience.CircuitBreaker
	timeout time.Duration
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewStore creates a Store. m may be nil.
func NewStore(db *postgres.Client, cfg config.StatsConfig, m *metrics.Metrics) *Store {
	cbCfg := resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.BreakerThreshold,
		ResetTimeout:     cfg.BreakerResetTimeout,
	}
	if m != nil {
		cbCfg.OnStateChange = func(name string, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		}
	}
	return &Store{
		db:      db,
		breaker: resilience.NewCircuitBreaker("pageview-stats", cbCfg),
		timeout: cfg.QueryTimeout,
		metrics: m,
		logger:  logger.WithComponent("stats-store"),
	}
}

// PageviewStats returns the pageview series for one website, ordered by
// bucket.
func (s *Store) PageviewStats(ctx context.Context, websiteID string, f PageviewFilters) ([]StatPoint, error) {
	query, args := pageviewQuery(websiteID, f)
	start := time.Now()

	var points []StatPoint
	err := s.breaker.Execute(func() error {
		return resilience.WithTimeout(ctx, s.timeout, "pageview stats query", func(ctx context.Context) error {
			var err error
			points, err = s.scan(ctx, query, args)
			return err
		})
	})

	s.observe(start, err)
	if err != nil {
		s.logger.Error("pageview stats query failed", "website_id", websiteID, "error", err)
		return nil, classify(err)
	}
	return points, nil
}

func (s *Store) scan(ctx context.Context, query string, args []any) ([]StatPoint, error) {
	rows, err := s.db.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying pageview stats: %w", err)
	}
	defer rows.Close()

	points := make([]StatPoint, 0)
	for rows.Next() {
		var p StatPoint
		if err := rows.Scan(&p.X, &p.Y); err != nil {
			return nil, fmt.Errorf("scanning stat point: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

func (s *Store) observe(start time.Time, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.StatsQueryDuration.Observe(time.Since(start).Seconds())
	result := "ok"
	if err != nil {
		result = "error"
	}
	s.metrics.StatsQueriesTotal.WithLabelValues(result).Inc()
}

// classify maps breaker and deadline failures onto the shared sentinels so
// handlers can pick a status code.
func classify(err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return fmt.Errorf("%w: %w", apperrors.ErrUnavailable, err)
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", apperrors.ErrTimeout, err)
	default:
		return err
	}
}

// pageviewQuery builds the bucketed count query. Placeholders $1..$5 are the
// website id, unit, timezone, start and end; filter values follow.
func pageviewQuery(websiteID string, f PageviewFilters) (string, []any) {
	tz := f.Timezone
	if tz == "" {
		tz = "UTC"
	}
	unit := f.Unit
	if unit == "" {
		unit = UnitDay
	}
	args := []any{websiteID, string(unit), tz, f.StartDate.UTC(), f.EndDate.UTC()}
	where, filterArgs := f.Where(len(args))
	args = append(args, filterArgs...)

	var b strings.Builder
	b.WriteString(`SELECT to_char(date_trunc($2, e.created_at AT TIME ZONE $3), 'YYYY-MM-DD HH24:MI:SS') AS x,
       COUNT(*) AS y
FROM website_event e`)
	if f.HasSessionFilters() {
		b.WriteString("\nJOIN session s ON s.session_id = e.session_id AND s.website_id = e.website_id")
	}
	fmt.Fprintf(&b, "\nWHERE e.website_id = $1\n  AND e.event_type = %d\n  AND e.created_at BETWEEN $4 AND $5", eventTypePageview)
	b.WriteString(where)
	b.WriteString("\nGROUP BY x\nORDER BY x")
	return b.String(), args
}
