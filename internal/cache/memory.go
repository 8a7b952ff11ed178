package cache

import (
	"context"
	"time"

	goCache "github.com/patrickmn/go-cache"
)

// DefaultCleanupInterval is how often expired markers are purged from memory.
// Expired markers already read as absent before they are purged.
const DefaultCleanupInterval = 10 * time.Minute

// MemoryCache implements Cache in process using github.com/patrickmn/go-cache.
// It is only suitable for a single replica.
type MemoryCache struct {
	cache *goCache.Cache
}

// NewMemoryCache creates an empty in-process fingerprint cache.
func NewMemoryCache(cleanupInterval time.Duration) *MemoryCache {
	return &MemoryCache{
		cache: goCache.New(TTL, cleanupInterval),
	}
}

// Get reports whether key is present and unexpired.
func (c *MemoryCache) Get(_ context.Context, key string) (bool, error) {
	_, found := c.cache.Get(key)
	return found, nil
}

// Set marks key present for ttl.
func (c *MemoryCache) Set(_ context.Context, key string, ttl time.Duration) error {
	c.cache.Set(key, true, ttl)
	return nil
}

// Ping always succeeds for the in-process cache.
func (c *MemoryCache) Ping(context.Context) error {
	return nil
}

// Len returns the number of stored markers, including expired ones not yet purged.
func (c *MemoryCache) Len() int {
	return c.cache.ItemCount()
}
