package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Mode selects how much of a documentation site a run is allowed to cover.
type Mode string

const (
	// ModeQuick fetches a handful of pages with low concurrency.
	ModeQuick Mode = "quick"

	// ModeDefault is the balanced setting used when no mode is given.
	ModeDefault Mode = "default"

	// ModeDeep fetches more pages with higher concurrency.
	ModeDeep Mode = "deep"
)

// Modes lists every accepted mode in display order.
var Modes = []Mode{ModeQuick, ModeDefault, ModeDeep}

// ParseMode converts a CLI or config string into a Mode.
// An empty string selects ModeDefault.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "":
		return ModeDefault, nil
	case ModeQuick, ModeDefault, ModeDeep:
		return Mode(s), nil
	default:
		return "", ErrInvalidMode
	}
}

// Default configuration values.
const (
	// AppName is the application name used for XDG directory paths.
	AppName = "docscout"

	// DefaultMaxURLs is the page budget of a default-mode run.
	DefaultMaxURLs = 12

	// DefaultConcurrency bounds simultaneous in-flight requests.
	DefaultConcurrency = 5

	// DefaultMaxRetries is the total number of attempts per URL.
	DefaultMaxRetries = 3

	// DefaultRetryBackoffBase produces waits of 2s, 4s, 8s between attempts.
	DefaultRetryBackoffBase = 2.0

	// DefaultRateLimitDelay is the minimum spacing between two requests to the same host.
	DefaultRateLimitDelay = 500 * time.Millisecond

	// DefaultCacheTTL keeps fetched pages for six hours.
	DefaultCacheTTL = 6 * time.Hour

	// DefaultRequestTimeout bounds a single network attempt.
	DefaultRequestTimeout = 15 * time.Second

	// MaxRequestTimeout is the largest accepted per-attempt timeout.
	MaxRequestTimeout = 300 * time.Second

	// DefaultMinContentLength is the shortest body, in characters, that is not a soft failure.
	DefaultMinContentLength = 500

	// DefaultMaxBodySize limits the response body size to read.
	// Larger responses are truncated.
	DefaultMaxBodySize = 5 * 1024 * 1024 // 5MB

	// DefaultCacheMaxEntries bounds the number of cached pages. Zero means unbounded.
	DefaultCacheMaxEntries = 1000

	// MaxConcurrency is the upper bound accepted for Concurrency.
	MaxConcurrency = 50

	// MaxRetriesLimit is the upper bound accepted for MaxRetries.
	MaxRetriesLimit = 10

	// quickMaxURLs and friends are the mode-derived limits.
	quickMaxURLs     = 5
	quickConcurrency = 3
	deepMaxURLs      = 25
	deepConcurrency  = 8
)

// DefaultUserAgent identifies docscout in HTTP requests.
const DefaultUserAgent = "docscout/0.1 (+https://github.com/nao1215/docscout)"

// ScrapeConfig holds the settings of a single scrape run.
// It is built once by NewScrapeConfig and treated as read-only afterwards;
// the only sanctioned change is WithCacheTTL(0) at construction time,
// which disables caching without touching call sites.
type ScrapeConfig struct {
	// Mode is the depth mode the limits were derived from.
	Mode Mode

	// MaxURLs is the number of accepted pages after which the crawl loop stops.
	MaxURLs int

	// Concurrency bounds simultaneous network requests and the batch size.
	Concurrency int

	// MaxRetries is the total number of attempts for a retryable failure.
	MaxRetries int

	// RetryBackoffBase is raised to the attempt number to get the wait in seconds.
	RetryBackoffBase float64

	// RateLimitDelay is the minimum spacing between requests to one host.
	RateLimitDelay time.Duration

	// CacheTTL is how long a fetched page stays valid. Zero disables caching.
	CacheTTL time.Duration

	// RequestTimeout bounds each network attempt.
	RequestTimeout time.Duration

	// UserAgent is sent with every request.
	UserAgent string

	// MinContentLength is the soft-failure threshold in characters.
	MinContentLength int

	// MaxBodySize is the maximum number of body bytes read per response.
	MaxBodySize int64

	// CacheDir is where the file cache and the SQLite cache live.
	CacheDir string

	// CacheMaxEntries bounds caches that support eviction. Zero means unbounded.
	CacheMaxEntries int
}

// Option configures a ScrapeConfig during construction.
type Option func(*ScrapeConfig)

// WithMaxURLs overrides the mode-derived page budget.
func WithMaxURLs(n int) Option {
	return func(c *ScrapeConfig) {
		c.MaxURLs = n
	}
}

// WithConcurrency overrides the mode-derived concurrency.
func WithConcurrency(n int) Option {
	return func(c *ScrapeConfig) {
		c.Concurrency = n
	}
}

// WithMaxRetries sets the total number of attempts per URL.
func WithMaxRetries(n int) Option {
	return func(c *ScrapeConfig) {
		c.MaxRetries = n
	}
}

// WithRetryBackoffBase sets the exponential backoff base in seconds.
func WithRetryBackoffBase(base float64) Option {
	return func(c *ScrapeConfig) {
		c.RetryBackoffBase = base
	}
}

// WithRateLimitDelay sets the per-host request spacing.
func WithRateLimitDelay(d time.Duration) Option {
	return func(c *ScrapeConfig) {
		c.RateLimitDelay = d
	}
}

// WithCacheTTL sets the cache lifetime. Zero disables caching.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *ScrapeConfig) {
		c.CacheTTL = ttl
	}
}

// WithRequestTimeout sets the per-attempt timeout.
func WithRequestTimeout(d time.Duration) Option {
	return func(c *ScrapeConfig) {
		c.RequestTimeout = d
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *ScrapeConfig) {
		if ua != "" {
			c.UserAgent = ua
		}
	}
}

// WithMinContentLength sets the soft-failure length threshold.
func WithMinContentLength(n int) Option {
	return func(c *ScrapeConfig) {
		c.MinContentLength = n
	}
}

// WithMaxBodySize sets the response body limit.
func WithMaxBodySize(n int64) Option {
	return func(c *ScrapeConfig) {
		c.MaxBodySize = n
	}
}

// WithCacheDir sets the cache directory.
func WithCacheDir(dir string) Option {
	return func(c *ScrapeConfig) {
		if dir != "" {
			c.CacheDir = dir
		}
	}
}

// WithCacheMaxEntries bounds the cache size.
func WithCacheMaxEntries(n int) Option {
	return func(c *ScrapeConfig) {
		c.CacheMaxEntries = n
	}
}

// NewScrapeConfig builds and validates a configuration for the given mode.
// Defaults are applied first, then the mode-derived limits, then opts.
// A validation failure is returned as one of the sentinel errors in errors.go.
func NewScrapeConfig(mode Mode, opts ...Option) (*ScrapeConfig, error) {
	if mode == "" {
		mode = ModeDefault
	}

	c := &ScrapeConfig{
		Mode:             mode,
		MaxURLs:          DefaultMaxURLs,
		Concurrency:      DefaultConcurrency,
		MaxRetries:       DefaultMaxRetries,
		RetryBackoffBase: DefaultRetryBackoffBase,
		RateLimitDelay:   DefaultRateLimitDelay,
		CacheTTL:         DefaultCacheTTL,
		RequestTimeout:   DefaultRequestTimeout,
		UserAgent:        DefaultUserAgent,
		MinContentLength: DefaultMinContentLength,
		MaxBodySize:      DefaultMaxBodySize,
		CacheDir:         XDGCacheDir(),
		CacheMaxEntries:  DefaultCacheMaxEntries,
	}

	switch mode {
	case ModeQuick:
		c.MaxURLs = quickMaxURLs
		c.Concurrency = quickConcurrency
	case ModeDeep:
		c.MaxURLs = deepMaxURLs
		c.Concurrency = deepConcurrency
	}

	for _, opt := range opts {
		opt(c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// CachingEnabled reports whether fetched pages should be cached at all.
func (c *ScrapeConfig) CachingEnabled() bool {
	return c.CacheTTL > 0
}

// Validate checks the configuration and returns the first problem found.
func (c *ScrapeConfig) Validate() error {
	if _, err := ParseMode(string(c.Mode)); err != nil {
		return err
	}
	if c.RequestTimeout <= 0 || c.RequestTimeout > MaxRequestTimeout {
		return ErrInvalidTimeout
	}
	if c.Concurrency < 1 || c.Concurrency > MaxConcurrency {
		return ErrInvalidConcurrency
	}
	if c.MaxRetries < 1 || c.MaxRetries > MaxRetriesLimit {
		return ErrInvalidMaxRetries
	}
	if c.RetryBackoffBase < 0 {
		return ErrInvalidBackoff
	}
	if c.RateLimitDelay < 0 {
		return ErrInvalidRateLimit
	}
	if c.CacheTTL < 0 {
		return ErrInvalidCacheTTL
	}
	if c.MaxURLs < 1 {
		return ErrInvalidMaxURLs
	}
	if c.MinContentLength < 0 {
		return ErrInvalidMinContentLength
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	return nil
}

// XDGDataDir returns the XDG data directory for docscout.
// Saved reports live here.
// On Linux: ~/.local/share/docscout
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for docscout.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for docscout.
// On Linux: ~/.cache/docscout
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}
