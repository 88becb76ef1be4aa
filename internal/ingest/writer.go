package ingest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/resilience"
)

// TxRunner runs fn inside a database transaction.
type TxRunner interface {
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error
}

// Writer persists pageview events consumed from Kafka.
type Writer struct {
	db      TxRunner
	retries int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewWriter creates a Writer. m may be nil.
func NewWriter(db TxRunner, retries int, m *metrics.Metrics) *Writer {
	return &Writer{
		db:      db,
		retries: retries,
		metrics: m,
		logger:  logger.WithComponent("event-writer"),
	}
}

// Handle is a kafka.MessageHandler. Undecodable or invalid events are logged
// and skipped so they do not block the partition; storage errors are retried
// and then returned, leaving the message uncommitted.
func (w *Writer) Handle(ctx context.Context, key []byte, value []byte) error {
	event, err := kafka.DecodeJSON[PageviewEvent](value)
	if err != nil {
		w.logger.Warn("skipping undecodable event", "key", string(key), "error", err)
		w.count("skipped")
		return nil
	}
	if err := event.Validate(); err != nil {
		w.logger.Warn("skipping invalid event", "key", string(key), "error", err)
		w.count("skipped")
		return nil
	}
	if event.EventID == "" || event.SessionID == "" {
		event.Normalize(time.Now(), "")
	}

	err = resilience.Retry(ctx, "write pageview event", resilience.RetryConfig{
		MaxAttempts: w.retries,
		Retryable: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}, func() error {
		return w.db.InTx(ctx, func(tx *sql.Tx) error {
			return insertEvent(ctx, tx, event)
		})
	})
	if err != nil {
		w.count("error")
		return fmt.Errorf("writing event %s: %w", event.EventID, err)
	}
	w.count("ok")
	w.logger.Debug("event written", "event_id", event.EventID, "website_id", event.WebsiteID)
	return nil
}

const (
	upsertSessionSQL = `INSERT INTO session
	(session_id, website_id, browser, os, device, country, region, city, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (session_id) DO NOTHING`

	insertEventSQL = `INSERT INTO website_event
	(event_id, website_id, session_id, created_at, url_path, referrer_domain,
	 page_title, hostname, tag, event_type)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (event_id) DO NOTHING`
)

func insertEvent(ctx context.Context, tx *sql.Tx, e PageviewEvent) error {
	if _, err := tx.ExecContext(ctx, upsertSessionSQL,
		e.SessionID, e.WebsiteID, e.Browser, e.OS, e.Device,
		e.Country, e.Region, e.City, e.Timestamp,
	); err != nil {
		return fmt.Errorf("upserting session: %w", err)
	}
	hostname := e.Hostname
	if hostname == "" {
		hostname = hostOf(e.URL)
	}
	if _, err := tx.ExecContext(ctx, insertEventSQL,
		e.EventID, e.WebsiteID, e.SessionID, e.Timestamp,
		urlPath(e.URL), hostOf(e.Referrer), e.Title, hostname, e.Tag,
		eventTypePageview,
	); err != nil {
		return fmt.Errorf("inserting website event: %w", err)
	}
	return nil
}

// eventTypePageview matches the value the stats queries filter on.
const eventTypePageview = 1

func (w *Writer) count(status string) {
	if w.metrics != nil {
		w.metrics.EventsWrittenTotal.WithLabelValues(status).Inc()
	}
}
