package cache

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
)

// RedisCache implements Cache on Redis so every replica shares one view of
// recently admitted fingerprints.
type RedisCache struct {
	rdb    goredis.UniversalClient
	prefix string
}

// NewRedisCache wraps an existing client. Keys are stored as prefix+key.
func NewRedisCache(rdb goredis.UniversalClient, prefix string) *RedisCache {
	return &RedisCache{rdb: rdb, prefix: prefix}
}

// DialRedis parses a redis:// URL and returns a cache using PrefixFingerprint.
func DialRedis(url string) (*RedisCache, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse REDIS_URL")
	}
	return NewRedisCache(goredis.NewClient(opts), PrefixFingerprint), nil
}

// Get reports whether key is present. Redis expires keys itself.
func (c *RedisCache) Get(ctx context.Context, key string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.prefix+key).Result()
	if err != nil {
		return false, errors.Mark(errors.Wrap(err, "redis exists"), ErrUnavailable)
	}
	return n > 0, nil
}

// Set stores a marker with a relative expiry.
func (c *RedisCache) Set(ctx context.Context, key string, ttl time.Duration) error {
	if err := c.rdb.Set(ctx, c.prefix+key, "1", ttl).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "redis set"), ErrUnavailable)
	}
	return nil
}

// Ping checks Redis connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return errors.Mark(errors.Wrap(err, "redis ping"), ErrUnavailable)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}
