// Package cache holds a short-TTL redis cache for the read-side stats
// payload, keeping hot flash-sale polling off the engine's locks. The TTL is
// the only invalidation; writes never touch it.
package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const statsKey = "reservation:stats"

type StatsCache struct {
	log *slog.Logger
	rdb *redis.Client
	ttl time.Duration
}

func NewStatsCache(log *slog.Logger, rdb *redis.Client, ttl time.Duration) *StatsCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &StatsCache{log: log, rdb: rdb, ttl: ttl}
}

// Get returns the cached stats body, or false on miss or redis trouble.
func (c *StatsCache) Get(ctx context.Context) ([]byte, bool) {
	body, err := c.rdb.Get(ctx, statsKey).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.log.Warn("stats cache read failed", "err", err)
		}
		return nil, false
	}
	return body, true
}

// Set stores the stats body. Failures are logged and ignored; the cache is
// best effort.
func (c *StatsCache) Set(ctx context.Context, body []byte) {
	if err := c.rdb.Set(ctx, statsKey, body, c.ttl).Err(); err != nil {
		c.log.Warn("stats cache write failed", "err", err)
	}
}
