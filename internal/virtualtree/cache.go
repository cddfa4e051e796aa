package virtualtree

import (
	"context"
	"sync"
	"time"

	"arbor/internal/domain/models"
)

// DefaultCacheTTL bounds how long a computed subfolder listing is served.
const DefaultCacheTTL = 60 * time.Second

// CacheKey addresses one memoized subfolder listing.
type CacheKey struct {
	FolderID  string
	TreeID    string
	UserID    string
	ContextID string
}

type cacheEntry struct {
	done    chan struct{}
	keys    []models.OrderingKey
	err     error
	created time.Time
}

func (e *cacheEntry) expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(e.created) >= ttl
}

// Cache memoizes ordered subfolder listings per (folder, tree, user,
// context). Concurrent requests for the same key share one in-flight
// computation; the first publisher runs it synchronously on its own thread.
// Failed computations stay published until the TTL expires - callers needing
// an earlier retry must evict first.
type Cache struct {
	ttl time.Duration

	mu      sync.Mutex
	entries map[CacheKey]*cacheEntry
}

// NewCache creates a cache with the given TTL; zero means DefaultCacheTTL.
func NewCache(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{ttl: ttl, entries: make(map[CacheKey]*cacheEntry)}
}

// GetOrCompute returns the listing for key, computing it at most once per TTL
// window. Waiters honor ctx cancellation; the winning computation itself runs
// to completion and stays cached.
func (c *Cache) GetOrCompute(ctx context.Context, key CacheKey, compute func() ([]models.OrderingKey, error)) ([]models.OrderingKey, error) {
	now := time.Now()

	c.mu.Lock()
	entry, ok := c.entries[key]
	if ok && entry.expired(c.ttl, now) {
		delete(c.entries, key)
		ok = false
	}
	if !ok {
		entry = &cacheEntry{done: make(chan struct{}), created: now}
		c.entries[key] = entry
		c.mu.Unlock()

		entry.keys, entry.err = compute()
		close(entry.done)
		return copyKeys(entry.keys), entry.err
	}
	c.mu.Unlock()

	select {
	case <-entry.done:
		return copyKeys(entry.keys), entry.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Clear evicts every entry. Mutating overlay operations call this instead of
// invalidating selectively, trading precision for simplicity.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[CacheKey]*cacheEntry)
}

// ClearUser evicts every entry belonging to one user within one context.
func (c *Cache) ClearUser(userID, contextID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.entries {
		if k.UserID == userID && k.ContextID == contextID {
			delete(c.entries, k)
		}
	}
}

func copyKeys(keys []models.OrderingKey) []models.OrderingKey {
	if keys == nil {
		return nil
	}
	out := make([]models.OrderingKey, len(keys))
	copy(out, keys)
	return out
}
