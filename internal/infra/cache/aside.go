package cache

import (
	"context"
	"time"
)

// GetOrLoad returns the cached value for key, or calls load and caches its
// result. hit reports whether the value came from the cache. A nil cache,
// or one that fails, falls through to load; load errors are not cached.
func GetOrLoad[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, bool, error) {
	if c != nil {
		var cached T
		if err := c.Get(ctx, key, &cached); err == nil {
			return cached, true, nil
		}
	}

	value, err := load(ctx)
	if err != nil || c == nil {
		return value, false, err
	}

	_ = c.Set(ctx, key, value, ttl)
	return value, false, nil
}

// Invalidate drops keys, bypassing the breaker so a stale entry is removed
// even while it is open.
func (c *Cache) Invalidate(ctx context.Context, keys ...string) error {
	if c == nil || len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
