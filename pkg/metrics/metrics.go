// Package metrics defines the Prometheus metric collectors used by the
// analytics services and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	StatsQueriesTotal    *prometheus.CounterVec
	StatsQueryDuration   prometheus.Histogram
	WebsitesPerRequest   prometheus.Histogram
	CacheHitsTotal       prometheus.Counter
	CacheMissesTotal     prometheus.Counter
	EventsCollectedTotal *prometheus.CounterVec
	EventsWrittenTotal   *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates all collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		StatsQueriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pageview_stats_queries_total",
				Help: "Pageview stats queries by outcome (ok, error).",
			},
			[]string{"result"},
		),
		StatsQueryDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pageview_stats_query_duration_seconds",
				Help:    "Latency of a single website pageview stats query.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
		),
		WebsitesPerRequest: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "pageviews_websites_per_request",
				Help:    "Number of websites aggregated per pageviews request.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		CacheHitsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stats_cache_hits_total",
				Help: "Total number of stats cache hits.",
			},
		),
		CacheMissesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "stats_cache_misses_total",
				Help: "Total number of stats cache misses.",
			},
		),
		EventsCollectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_collected_total",
				Help: "Pageview events accepted by the send endpoint by status (accepted, dropped).",
			},
			[]string{"status"},
		),
		EventsWrittenTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_written_total",
				Help: "Pageview events persisted by the collector by status (ok, error, skipped).",
			},
			[]string{"status"},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.StatsQueriesTotal,
		m.StatsQueryDuration,
		m.WebsitesPerRequest,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.EventsCollectedTotal,
		m.EventsWrittenTotal,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
