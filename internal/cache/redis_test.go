package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cockroachdb/errors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *RedisCache) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := DialRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestRedisCache_SetThenGet(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	found, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, c.Set(ctx, "fp", TTL))

	found, err = c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, found)

	assert.True(t, mr.Exists(PrefixFingerprint+"fp"))
	assert.Equal(t, TTL, mr.TTL(PrefixFingerprint+"fp"))
}

func TestRedisCache_Expires(t *testing.T) {
	mr, c := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp", TTL))
	mr.FastForward(TTL + time.Second)

	found, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCache_Unavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisCache(goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1}), PrefixFingerprint)
	defer c.Close()
	mr.Close()

	ctx := context.Background()
	_, err := c.Get(ctx, "fp")
	assert.True(t, errors.Is(err, ErrUnavailable))

	err = c.Set(ctx, "fp", TTL)
	assert.True(t, errors.Is(err, ErrUnavailable))

	assert.True(t, errors.Is(c.Ping(ctx), ErrUnavailable))
}

func TestDialRedis_BadURL(t *testing.T) {
	_, err := DialRedis("http://not-redis")
	assert.Error(t, err)
}
