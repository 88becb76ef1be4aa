package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.StatsQueriesTotal.WithLabelValues("ok").Inc()
	m.StatsQueriesTotal.WithLabelValues("ok").Inc()
	m.CacheHitsTotal.Inc()

	if got := testutil.ToFloat64(m.StatsQueriesTotal.WithLabelValues("ok")); got != 2 {
		t.Errorf("stats ok counter = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.CacheHitsTotal); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}
