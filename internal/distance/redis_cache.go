package distance

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKeyPrefix namespaces distance entries in a shared Redis.
const DefaultRedisKeyPrefix = "fare:distance:"

// RedisCache stores resolved leg distances in Redis so the API and the
// warm-up worker share lookups.
type RedisCache struct {
	redis  redis.Cmdable
	prefix string
}

// NewRedis creates a Redis client for the given address.
func NewRedis(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{Addr: addr})
}

// NewRedisCache creates a Redis-backed distance cache. An empty prefix uses DefaultRedisKeyPrefix.
func NewRedisCache(client redis.Cmdable, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultRedisKeyPrefix
	}
	return &RedisCache{redis: client, prefix: prefix}
}

// Get returns the cached distance for key.
func (c *RedisCache) Get(ctx context.Context, key string) (float64, bool, error) {
	meters, err := c.redis.Get(ctx, c.prefix+key).Float64()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return meters, true, nil
}

// Set stores a distance under key with the given expiry.
func (c *RedisCache) Set(ctx context.Context, key string, meters float64, ttl time.Duration) error {
	return c.redis.Set(ctx, c.prefix+key, strconv.FormatFloat(meters, 'f', -1, 64), ttl).Err()
}

// Ping checks connectivity, used by readiness probes.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.redis.Ping(ctx).Err()
}
