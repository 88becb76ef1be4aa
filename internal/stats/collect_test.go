package stats

import (
	"context"
	"errors"
	"reflect"
	"sync/atomic"
	"testing"
	"time"
)

func TestCollectPreservesOrder(t *testing.T) {
	ids := []string{"a", "b", "c", "d", "e"}
	for _, limit := range []int{0, 1, 2, 5, 10} {
		got, err := Collect(context.Background(), ids, limit, func(_ context.Context, id string) (string, error) {
			// Later ids finish first.
			time.Sleep(time.Duration(len(ids)-int(id[0]-'a')) * time.Millisecond)
			return id + "!", nil
		})
		if err != nil {
			t.Fatalf("limit %d: %v", limit, err)
		}
		want := []string{"a!", "b!", "c!", "d!", "e!"}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("limit %d: got %v, want %v", limit, got, want)
		}
	}
}

func TestCollectSequentialWithLimitOne(t *testing.T) {
	var inFlight, peak atomic.Int32
	var order []string
	_, err := Collect(context.Background(), []string{"x", "y", "z"}, 1, func(_ context.Context, id string) (int, error) {
		n := inFlight.Add(1)
		if n > peak.Load() {
			peak.Store(n)
		}
		order = append(order, id)
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return 0, nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
	if !reflect.DeepEqual(order, []string{"x", "y", "z"}) {
		t.Errorf("call order = %v", order)
	}
}

func TestCollectStopsOnFirstError(t *testing.T) {
	boom := errors.New("boom")
	var calls atomic.Int32
	got, err := Collect(context.Background(), []string{"a", "b", "c"}, 1, func(_ context.Context, id string) (int, error) {
		calls.Add(1)
		if id == "b" {
			return 0, boom
		}
		return 1, nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if got != nil {
		t.Errorf("results = %v, want nil", got)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestCollectEmpty(t *testing.T) {
	got, err := Collect(context.Background(), nil, 1, func(context.Context, string) (int, error) {
		t.Fatal("fetch should not be called")
		return 0, nil
	})
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestCollectCancelledParent(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Collect(ctx, []string{"a"}, 1, func(ctx context.Context, _ string) (int, error) {
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}
