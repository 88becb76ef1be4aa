// Command api starts the website analytics HTTP API.
//
// It serves per-website pageview statistics to admins, accepts pageview
// events from trackers (buffered onto Kafka), and exposes API key
// administration plus health probes. Prometheus metrics are served on a
// separate port.
//
// Usage:
//
//	go run ./cmd/api [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/handler"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/api/router"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/apikey"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/auth/ratelimit"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/ingest"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/stats"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/internal/website"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/redis"
	"github.com/prometheus/client_golang/prometheus"
)

// main connects PostgreSQL (and Redis when enabled), builds the stats and
// website stores, starts the event batch collector, and serves the router's
// middleware chain. Graceful shutdown is triggered by SIGINT/SIGTERM.
func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting api service",
		"port", cfg.Server.Port,
		"max_concurrent_queries", cfg.Stats.MaxConcurrentQueries,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))

	var fetcher handler.StatsFetcher = stats.NewStore(db, cfg.Stats, m)
	var cache handler.CacheFlusher
	if cfg.Redis.Enabled {
		rdb, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, stats cache disabled", "error", err)
		} else {
			defer rdb.Close()
			statsCache := stats.NewCache(fetcher, rdb, cfg.Redis.CacheTTL, m)
			fetcher, cache = statsCache, statsCache
			checker.Register("redis", health.PingCheck(rdb.Ping))
			slog.Info("stats cache enabled", "ttl", cfg.Redis.CacheTTL)
		}
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.PageviewEvents)
	defer producer.Close()
	collector := ingest.NewBatchCollector(producer, cfg.Ingest.BatchSize, cfg.Ingest.FlushInterval, m)
	collectorCtx, stopCollector := context.WithCancel(context.Background())
	collector.Start(collectorCtx)

	validator := apikey.NewValidator(db)
	limiter := ratelimit.New(cfg.Server.RateLimitWindow)
	defer limiter.Stop()

	h := handler.New(handler.Config{
		MaxConcurrentQueries: cfg.Stats.MaxConcurrentQueries,
		Service:              "api",
	}, handler.Deps{
		Websites: website.NewStore(db, cfg.Stats.MaxPageSize),
		Stats:    fetcher,
		Keys:     validator,
		Events:   collector,
		Cache:    cache,
		Health:   checker,
		Metrics:  m,
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router.New(h, validator, limiter, cfg, m),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("api service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		stopCollector()
		collector.Close()
		os.Exit(1)
	}

	// Drain buffered events only after the server stops accepting them.
	stopCollector()
	collector.Close()
	slog.Info("api service stopped")
}
