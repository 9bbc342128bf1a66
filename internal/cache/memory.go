package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// MemoryCache keeps entries in process memory, bounded by entry count.
// Reads use Peek, so they do not refresh recency and the entry evicted
// on overflow is always the one written longest ago.
type MemoryCache struct {
	ttl     time.Duration
	entries *lru.Cache
	now     func() time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries pages.
func NewMemoryCache(ttl time.Duration, maxEntries int) (*MemoryCache, error) {
	entries, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}
	return &MemoryCache{
		ttl:     ttl,
		entries: entries,
		now:     time.Now,
	}, nil
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, url string) (Entry, bool) {
	v, ok := c.entries.Peek(url)
	if !ok {
		return Entry{}, false
	}
	entry, ok := v.(Entry)
	if !ok {
		return Entry{}, false
	}
	if entry.Expired(c.now()) {
		c.entries.Remove(url)
		return Entry{}, false
	}
	return entry, true
}

// Has implements Cache.
func (c *MemoryCache) Has(ctx context.Context, url string) bool {
	_, ok := c.Get(ctx, url)
	return ok
}

// Put implements Cache.
func (c *MemoryCache) Put(_ context.Context, url, content string, statusCode int, headers map[string]string) {
	c.entries.Add(url, newEntry(url, content, statusCode, headers, c.now(), c.ttl))
}

// Len returns the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	return c.entries.Len()
}
