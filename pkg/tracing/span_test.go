package tracing

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

func TestChildSpansAttachToParent(t *testing.T) {
	ctx, root := StartSpan(context.Background(), "pageviews", "trace-1")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, child := StartChildSpan(ctx, "website-stats")
			child.SetAttr("n", 1)
			child.End()
		}()
	}
	wg.Wait()
	root.End()

	if len(root.Children) != 8 {
		t.Fatalf("children = %d, want 8", len(root.Children))
	}
	for _, c := range root.Children {
		if c.TraceID != "trace-1" {
			t.Errorf("child trace id = %q", c.TraceID)
		}
	}
	if SpanFromContext(ctx) != root {
		t.Error("expected root span in context")
	}
}

func TestLogWritesTree(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	ctx, root := StartSpan(context.Background(), "root", "t")
	_, child := StartChildSpan(ctx, "child")
	child.End()
	root.End()
	root.Log(context.Background(), logger)

	out := buf.String()
	if !strings.Contains(out, "span=root") || !strings.Contains(out, "span=child") {
		t.Errorf("unexpected log output:\n%s", out)
	}
	if !strings.Contains(out, "depth=1") {
		t.Errorf("expected child at depth 1:\n%s", out)
	}
}

func TestChildWithoutParent(t *testing.T) {
	_, span := StartChildSpan(context.Background(), "orphan")
	if span.TraceID != "" {
		t.Errorf("orphan trace id = %q", span.TraceID)
	}
}
