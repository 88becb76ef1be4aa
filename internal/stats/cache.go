package stats

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/website-analytics/pkg/redis"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "stats:"

// Fetcher returns the pageview series for one website.
type Fetcher interface {
	PageviewStats(ctx context.Context, websiteID string, f PageviewFilters) ([]StatPoint, error)
}

// KV is the subset of the Redis client the cache needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// Cache is a read-through Redis cache in front of a Fetcher. Concurrent
// misses for the same key share one upstream query. Redis failures are
// logged and fall through to the upstream.
type Cache struct {
	next    Fetcher
	kv      KV
	ttl     time.Duration
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// NewCache wraps next with a cache stored in kv. m may be nil.
func NewCache(next Fetcher, kv KV, ttl time.Duration, m *metrics.Metrics) *Cache {
	return &Cache{
		next:    next,
		kv:      kv,
		ttl:     ttl,
		metrics: m,
		logger:  logger.WithComponent("stats-cache"),
	}
}

// PageviewStats serves from the cache when possible.
func (c *Cache) PageviewStats(ctx context.Context, websiteID string, f PageviewFilters) ([]StatPoint, error) {
	key := buildKey(websiteID, f)
	if points, ok := c.get(ctx, key); ok {
		return points, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if points, ok := c.get(ctx, key); ok {
			return points, nil
		}
		points, err := c.next.PageviewStats(ctx, websiteID, f)
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, points)
		return points, nil
	})
	if err != nil {
		return nil, err
	}
	return val.([]StatPoint), nil
}

// Invalidate drops every cached series.
func (c *Cache) Invalidate(ctx context.Context) error {
	deleted, err := c.kv.FlushByPattern(ctx, keyPrefix+"*")
	if err != nil {
		return fmt.Errorf("invalidating stats cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cache) get(ctx context.Context, key string) ([]StatPoint, bool) {
	data, err := c.kv.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var points []StatPoint
	if err := json.Unmarshal(data, &points); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
	return points, true
}

func (c *Cache) set(ctx context.Context, key string, points []StatPoint) {
	data, err := json.Marshal(points)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.kv.Set(ctx, key, data, c.ttl); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Cache) miss() {
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func buildKey(websiteID string, f PageviewFilters) string {
	hash := sha256.Sum256([]byte(f.cacheKey(websiteID)))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
