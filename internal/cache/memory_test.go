package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_GetMissing(t *testing.T) {
	c := NewMemoryCache(time.Minute)

	found, err := c.Get(context.Background(), "never-seen-key")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_SetThenGet(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "fp", TTL))

	found, err := c.Get(ctx, "fp")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Expired(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "expiring-key", 10*time.Millisecond))
	time.Sleep(20 * time.Millisecond)

	found, err := c.Get(ctx, "expiring-key")
	require.NoError(t, err)
	assert.False(t, found, "expired markers must read as absent")
}

func TestMemoryCache_SetRefreshes(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "refresh-key", 50*time.Millisecond))
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, c.Set(ctx, "refresh-key", 50*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	found, err := c.Get(ctx, "refresh-key")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryCache_Concurrent(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			key := "key-" + string(rune('A'+id%26))
			_ = c.Set(ctx, key, TTL)
			_, _ = c.Get(ctx, key)
		}(i)
	}
	wg.Wait()

	found, err := c.Get(ctx, "key-A")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryCache_Ping(t *testing.T) {
	assert.NoError(t, NewMemoryCache(time.Minute).Ping(context.Background()))
}
