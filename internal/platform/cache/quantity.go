package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// QuantityCache caches on-hand quantity lookups. Entries are short-lived and
// invalidated on every movement write, so a miss is always safe and a stale
// hit lives at most TTL.
type QuantityCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewQuantityCache constructs a QuantityCache.
func NewQuantityCache(client *redis.Client, ttl time.Duration) *QuantityCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &QuantityCache{client: client, ttl: ttl}
}

// ErrCacheMiss indicates the key is not cached.
var ErrCacheMiss = errors.New("cache: miss")

func quantityKey(itemKind string, itemID int64) string {
	return fmt.Sprintf("inventory:qty:%s:%d", itemKind, itemID)
}

// Get returns the cached quantity for an item.
func (c *QuantityCache) Get(ctx context.Context, itemKind string, itemID int64) (int64, error) {
	if c == nil || c.client == nil {
		return 0, ErrCacheMiss
	}
	val, err := c.client.Get(ctx, quantityKey(itemKind, itemID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCacheMiss
		}
		return 0, err
	}
	qty, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, ErrCacheMiss
	}
	return qty, nil
}

// Set stores the quantity for an item.
func (c *QuantityCache) Set(ctx context.Context, itemKind string, itemID int64, qty int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Set(ctx, quantityKey(itemKind, itemID), strconv.FormatInt(qty, 10), c.ttl).Err()
}

// Invalidate drops the cached quantity after a movement write.
func (c *QuantityCache) Invalidate(ctx context.Context, itemKind string, itemID int64) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Del(ctx, quantityKey(itemKind, itemID)).Err()
}
