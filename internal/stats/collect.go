package stats

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// Collect calls fetch for every id with at most limit calls in flight and
// returns the results in the order of ids. A limit of 1 runs the calls one
// after another. The first error cancels the remaining calls and is returned.
func Collect[T any](ctx context.Context, ids []string, limit int, fetch func(ctx context.Context, id string) (T, error)) ([]T, error) {
	if limit < 1 {
		limit = 1
	}
	results := make([]T, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			v, err := fetch(gctx, id)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	// A cancelled parent can stop the loop before every id was scheduled.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}
