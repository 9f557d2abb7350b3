package folio

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// ListingCache holds public listing responses (pages, tags, feeds) with a
// TTL. Any admin write flushes it.
type ListingCache struct {
	c *cache.Cache
}

// NewListingCache creates a ListingCache whose entries expire after ttl.
func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{c: cache.New(ttl, 2*ttl)}
}

// Invalidate clears the cache so the next read triggers a fresh load.
func (lc *ListingCache) Invalidate() {
	lc.c.Flush()
}

// Len returns the number of cached entries, expired ones included.
func (lc *ListingCache) Len() int {
	return lc.c.ItemCount()
}

// cached returns the value stored under key, calling load on a miss. Errors
// are not cached.
func cached[V any](lc *ListingCache, key string, load func() (V, error)) (V, error) {
	if v, ok := lc.c.Get(key); ok {
		if typed, ok := v.(V); ok {
			return typed, nil
		}
	}
	v, err := load()
	if err != nil {
		var zero V
		return zero, err
	}
	lc.c.Set(key, v, cache.DefaultExpiration)
	return v, nil
}
