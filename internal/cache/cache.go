package cache

import (
	"context"
	"time"
)

// Entry is one cached page.
type Entry struct {
	URL        string            `json:"url"`
	Content    string            `json:"content"`
	StatusCode int               `json:"status_code"`
	Headers    map[string]string `json:"headers"`
	CachedAt   time.Time         `json:"cached_at"`
	ExpiresAt  time.Time         `json:"expires_at"`
}

// Expired reports whether the entry is no longer valid at now.
// An entry written with a zero TTL is expired on every later read.
func (e Entry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// Cache stores fetched page bodies keyed by the exact URL string.
//
// Implementations never return errors: a cache is an optimisation, so
// failed writes are logged and dropped, and unreadable entries are absent.
type Cache interface {
	// Get returns the entry for url if it exists and has not expired.
	Get(ctx context.Context, url string) (Entry, bool)

	// Put stores content for url with expiry now + TTL.
	Put(ctx context.Context, url, content string, statusCode int, headers map[string]string)

	// Has reports whether Get would return an entry.
	Has(ctx context.Context, url string) bool
}

// newEntry builds an entry that expires ttl after now.
func newEntry(url, content string, statusCode int, headers map[string]string, now time.Time, ttl time.Duration) Entry {
	if headers == nil {
		headers = map[string]string{}
	}
	return Entry{
		URL:        url,
		Content:    content,
		StatusCode: statusCode,
		Headers:    headers,
		CachedAt:   now,
		ExpiresAt:  now.Add(ttl),
	}
}
