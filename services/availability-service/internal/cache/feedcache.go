package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// FeedCache holds rendered feed responses keyed by owner and request shape.
// It fails open: a Redis outage degrades to recomputing every feed, never to
// serving errors.
type FeedCache struct {
	rdb    *redis.Client
	ttl    time.Duration
	prefix string
	logger *slog.Logger
}

func NewFeedCache(rdb *redis.Client, ttl time.Duration, prefix string, logger *slog.Logger) *FeedCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if prefix == "" {
		prefix = "feed"
	}
	return &FeedCache{rdb: rdb, ttl: ttl, prefix: prefix, logger: logger}
}

// Key builds the cache key for one owner's feed variant. variant encodes
// everything that changes the response body (window, overrides).
func (c *FeedCache) Key(ownerID, variant string) string {
	if c == nil {
		return ""
	}
	return fmt.Sprintf("%s:%s:%s", c.prefix, ownerID, variant)
}

func (c *FeedCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.rdb == nil {
		return nil, false
	}
	body, err := c.rdb.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("feed cache read failed", "key", key, "err", err)
		return nil, false
	}
	return body, true
}

func (c *FeedCache) Set(ctx context.Context, key string, body []byte) {
	if c == nil || c.rdb == nil {
		return
	}
	if err := c.rdb.Set(ctx, key, body, c.ttl).Err(); err != nil {
		c.logger.Warn("feed cache write failed", "key", key, "err", err)
	}
}

// Invalidate drops every cached variant for one owner. Called when a settings
// change event arrives.
func (c *FeedCache) Invalidate(ctx context.Context, ownerID string) error {
	if c == nil || c.rdb == nil {
		return nil
	}
	pattern := fmt.Sprintf("%s:%s:*", c.prefix, ownerID)
	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return fmt.Errorf("scan %s: %w", pattern, err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return fmt.Errorf("del: %w", err)
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}
