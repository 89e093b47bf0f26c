package server

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"RainLedger/internal/observability"
)

// ViewCache is a small read-through cache for hot GET views backed by
// Redis. A nil client disables caching entirely; cache failures degrade to
// the live path and are logged at debug.
type ViewCache struct {
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	log     zerolog.Logger
}

func NewViewCache(client *redis.Client, ttl time.Duration, metrics *observability.Metrics, log zerolog.Logger) *ViewCache {
	if ttl <= 0 {
		ttl = 2 * time.Second
	}
	return &ViewCache{
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		log:     log.With().Str("component", "view_cache").Logger(),
	}
}

// Get returns the cached bytes for key, if present.
func (c *ViewCache) Get(ctx context.Context, view, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		if c.metrics != nil {
			c.metrics.CacheMisses.WithLabelValues(view).Inc()
		}
		return nil, false
	}
	if err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache read failed")
		return nil, false
	}
	if c.metrics != nil {
		c.metrics.CacheHits.WithLabelValues(view).Inc()
	}
	return data, true
}

// Set stores bytes under key with the cache TTL. Best effort.
func (c *ViewCache) Set(ctx context.Context, key string, data []byte) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Debug().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// Invalidate drops keys after a mutation. Best effort.
func (c *ViewCache) Invalidate(ctx context.Context, keys ...string) {
	if c == nil || c.client == nil || len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		c.log.Debug().Err(err).Msg("cache invalidation failed")
	}
}
