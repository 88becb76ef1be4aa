package ingest

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) InTx(_ context.Context, _ func(tx *sql.Tx) error) error {
	f.calls++
	return f.err
}

func encodeEvent(t *testing.T, e PageviewEvent) []byte {
	t.Helper()
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestWriterSkipsBadMessages(t *testing.T) {
	db := &fakeTx{}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWriter(db, 1, m)

	if err := w.Handle(context.Background(), nil, []byte("{not json")); err != nil {
		t.Errorf("undecodable: %v", err)
	}
	invalid := encodeEvent(t, PageviewEvent{WebsiteID: "nope", URL: "/"})
	if err := w.Handle(context.Background(), nil, invalid); err != nil {
		t.Errorf("invalid: %v", err)
	}
	if db.calls != 0 {
		t.Errorf("InTx called %d times for bad messages", db.calls)
	}
	if got := testutil.ToFloat64(m.EventsWrittenTotal.WithLabelValues("skipped")); got != 2 {
		t.Errorf("skipped = %v, want 2", got)
	}
}

func TestWriterWritesValidEvent(t *testing.T) {
	db := &fakeTx{}
	m := metrics.New(prometheus.NewRegistry())
	w := NewWriter(db, 1, m)

	msg := encodeEvent(t, PageviewEvent{WebsiteID: testWebsite, URL: "/"})
	if err := w.Handle(context.Background(), []byte(testWebsite), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if db.calls != 1 {
		t.Errorf("InTx calls = %d, want 1", db.calls)
	}
	if got := testutil.ToFloat64(m.EventsWrittenTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("ok = %v", got)
	}
}

func TestWriterRetriesThenFails(t *testing.T) {
	db := &fakeTx{err: errors.New("connection reset")}
	w := NewWriter(db, 2, nil)

	msg := encodeEvent(t, PageviewEvent{WebsiteID: testWebsite, URL: "/"})
	if err := w.Handle(context.Background(), nil, msg); err == nil {
		t.Fatal("expected error")
	}
	if db.calls != 2 {
		t.Errorf("InTx calls = %d, want 2", db.calls)
	}
}
