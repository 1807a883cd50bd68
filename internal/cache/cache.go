package cache

import (
	"context"
	"sync"
	"time"

	"github.com/mhutchens/bikeshare-dashboard/internal/stats"
)

// Cache defines the interface for ranking cache implementations. Keys are
// normalized season selections; Get returns the cached ranking if present
// and not expired, Set stores one with a TTL.
type Cache interface {
	Get(ctx context.Context, key string) (stats.Ranking, bool, error)
	Set(ctx context.Context, key string, value stats.Ranking, ttl time.Duration) error
}

// InMemoryCache implements Cache with a mutex-guarded map and TTL-based
// expiration. Expired entries are removed on access.
type InMemoryCache struct {
	mu   sync.Mutex
	data map[string]cacheEntry
}

type cacheEntry struct {
	value     stats.Ranking
	expiresAt time.Time
}

// NewInMemoryCache creates a new in-memory cache instance.
func NewInMemoryCache() *InMemoryCache {
	return &InMemoryCache{
		data: make(map[string]cacheEntry),
	}
}

// Get retrieves the cached ranking for the key if present and not expired.
// Returns (ranking, true, nil) on hit, (zero, false, nil) on miss or expiry.
func (c *InMemoryCache) Get(ctx context.Context, key string) (stats.Ranking, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.data[key]
	if !ok {
		return stats.Ranking{}, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		delete(c.data, key)
		return stats.Ranking{}, false, nil
	}
	return entry.value, true, nil
}

// Set stores a ranking with the specified TTL. The entry expires after TTL
// elapses and is removed on the next Get.
func (c *InMemoryCache) Set(ctx context.Context, key string, value stats.Ranking, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = cacheEntry{
		value:     value,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}
