package testutil

import (
	"context"
	"strconv"
	"sync"
	"testing"

	"github.com/Alexander-D-Karpov/tandem/internal/common/config"
	"github.com/Alexander-D-Karpov/tandem/internal/infra/cache"
	"go.uber.org/zap"
)

var (
	cacheOnce   sync.Once
	sharedCache *cache.Cache
	cacheErr    error
)

func redisConfig() config.RedisConfig {
	port, err := strconv.Atoi(envOr("TEST_REDIS_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	// DB 15 keeps test keys away from a developer's local bot.
	dbNum, err := strconv.Atoi(envOr("TEST_REDIS_DB", "15"))
	if err != nil {
		dbNum = 15
	}
	return config.RedisConfig{
		Enabled:  true,
		Host:     envOr("TEST_REDIS_HOST", "localhost"),
		Port:     port,
		Password: envOr("TEST_REDIS_PASSWORD", ""),
		DB:       dbNum,
	}
}

// GetCache returns a shared Redis cache, or nil when Redis is unreachable.
func GetCache(t *testing.T) *cache.Cache {
	t.Helper()

	cacheOnce.Do(func() {
		sharedCache, cacheErr = cache.New(redisConfig(), zap.NewNop())
	})
	if cacheErr != nil {
		t.Logf("testutil: redis not available (%v)", cacheErr)
		return nil
	}
	return sharedCache
}

// MustCache is GetCache that skips the test instead of returning nil.
func MustCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := GetCache(t)
	if c == nil {
		t.Skip("redis required")
	}
	return c
}

func CacheFlushAll(t *testing.T) {
	t.Helper()
	if sharedCache == nil {
		return
	}
	if err := sharedCache.FlushAll(context.Background()); err != nil {
		t.Logf("testutil: flush failed: %v", err)
	}
}
