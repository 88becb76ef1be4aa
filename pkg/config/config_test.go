package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Stats.MaxConcurrentQueries != 1 {
		t.Errorf("expected sequential stats queries by default, got %d", cfg.Stats.MaxConcurrentQueries)
	}
	if cfg.Kafka.Topics.PageviewEvents != "pageview-events" {
		t.Errorf("unexpected pageview topic %q", cfg.Kafka.Topics.PageviewEvents)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
server:
  port: 4000
stats:
  maxConcurrentQueries: 4
  queryTimeout: 3s
redis:
  cacheTTL: 2m
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WA_POSTGRES_HOST", "db.internal")
	t.Setenv("WA_KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 4000 {
		t.Errorf("port = %d, want 4000", cfg.Server.Port)
	}
	if cfg.Stats.MaxConcurrentQueries != 4 {
		t.Errorf("maxConcurrentQueries = %d, want 4", cfg.Stats.MaxConcurrentQueries)
	}
	if cfg.Stats.QueryTimeout != 3*time.Second {
		t.Errorf("queryTimeout = %v, want 3s", cfg.Stats.QueryTimeout)
	}
	if cfg.Redis.CacheTTL != 2*time.Minute {
		t.Errorf("cacheTTL = %v, want 2m", cfg.Redis.CacheTTL)
	}
	if cfg.Postgres.Host != "db.internal" {
		t.Errorf("postgres host = %q", cfg.Postgres.Host)
	}
	if len(cfg.Kafka.Brokers) != 2 {
		t.Errorf("brokers = %v", cfg.Kafka.Brokers)
	}
	// Untouched sections keep defaults.
	if cfg.Postgres.Port != 5432 {
		t.Errorf("postgres port = %d, want 5432", cfg.Postgres.Port)
	}
}

func TestLoadRejectsZeroConcurrency(t *testing.T) {
	t.Setenv("WA_STATS_MAX_CONCURRENT_QUERIES", "0")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for zero concurrency")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "h", Port: 1, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	want := "host=h port=1 user=u password=p dbname=d sslmode=disable"
	if got := p.DSN(); got != want {
		t.Errorf("DSN() = %q, want %q", got, want)
	}
}
