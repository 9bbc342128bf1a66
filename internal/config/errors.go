package config

import "errors"

// Configuration validation errors.
// These errors are returned by ScrapeConfig.Validate() and NewScrapeConfig().
// Callers match them with errors.Is; they are fatal to a run because they
// describe caller mistakes rather than network conditions.
var (
	// ErrNoTopic is returned when the scrape command receives an empty topic.
	ErrNoTopic = errors.New("no topic specified: provide the library or tool name to scrape")

	// ErrInvalidMode is returned for a mode other than quick, default, or deep.
	ErrInvalidMode = errors.New("invalid mode: must be 'quick', 'default', or 'deep'")

	// ErrInvalidTimeout is returned when the request timeout is not in (0, 300s].
	ErrInvalidTimeout = errors.New("invalid timeout: must be greater than 0 and at most 300 seconds")

	// ErrInvalidConcurrency is returned when concurrency is outside 1..50.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be between 1 and 50")

	// ErrInvalidMaxRetries is returned when max retries is outside 1..10.
	ErrInvalidMaxRetries = errors.New("invalid max retries: must be between 1 and 10")

	// ErrInvalidBackoff is returned when the retry backoff base is negative.
	ErrInvalidBackoff = errors.New("invalid retry backoff base: must be non-negative")

	// ErrInvalidRateLimit is returned when the rate-limit delay is negative.
	ErrInvalidRateLimit = errors.New("invalid rate limit delay: must be non-negative")

	// ErrInvalidCacheTTL is returned when the cache TTL is negative.
	// Use 0 to disable caching.
	ErrInvalidCacheTTL = errors.New("invalid cache ttl: must be non-negative")

	// ErrInvalidMaxURLs is returned when the page budget is below one.
	ErrInvalidMaxURLs = errors.New("invalid max urls: must be at least 1")

	// ErrInvalidMinContentLength is returned when the soft-failure threshold is negative.
	ErrInvalidMinContentLength = errors.New("invalid min content length: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidCacheBackend is returned for an unknown cache backend name.
	ErrInvalidCacheBackend = errors.New("invalid cache backend: must be 'file', 'sqlite', or 'memory'")
)
