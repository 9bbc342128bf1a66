package config

import (
	"time"
)

// SiteConfig holds request customisation for a single documentation host.
type SiteConfig struct {
	// Cookie is sent as the Cookie header to this host.
	// Format: "name=value" or "name1=value1; name2=value2"
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent to this host.
	Headers map[string]string `yaml:"headers,omitempty"`
}

// RequestHeaders returns the headers to add to requests for this site,
// with Cookie folded in.
func (sc SiteConfig) RequestHeaders() map[string]string {
	if sc.Cookie == "" && len(sc.Headers) == 0 {
		return nil
	}
	headers := make(map[string]string, len(sc.Headers)+1)
	for k, v := range sc.Headers {
		headers[k] = v
	}
	if sc.Cookie != "" {
		headers["Cookie"] = sc.Cookie
	}
	return headers
}

// ScrapeSettings are the fetch tuning values a config file may override.
// Pointer fields distinguish "unset" from a meaningful zero.
type ScrapeSettings struct {
	Mode             string         `yaml:"mode,omitempty"`
	UserAgent        string         `yaml:"user_agent,omitempty"`
	RateLimitDelay   *time.Duration `yaml:"rate_limit_delay,omitempty"`
	MaxRetries       int            `yaml:"max_retries,omitempty"`
	RetryBackoffBase *float64       `yaml:"retry_backoff_base,omitempty"`
	MinContentLength *int           `yaml:"min_content_length,omitempty"`
	CacheTTL         *time.Duration `yaml:"cache_ttl,omitempty"`
	CacheBackend     string         `yaml:"cache_backend,omitempty"`
	CacheMaxEntries  int            `yaml:"cache_max_entries,omitempty"`
}

// Options converts the settings into ScrapeConfig options.
// Unset fields produce no option.
func (s ScrapeSettings) Options() []Option {
	var opts []Option
	if s.UserAgent != "" {
		opts = append(opts, WithUserAgent(s.UserAgent))
	}
	if s.RateLimitDelay != nil {
		opts = append(opts, WithRateLimitDelay(*s.RateLimitDelay))
	}
	if s.MaxRetries != 0 {
		opts = append(opts, WithMaxRetries(s.MaxRetries))
	}
	if s.RetryBackoffBase != nil {
		opts = append(opts, WithRetryBackoffBase(*s.RetryBackoffBase))
	}
	if s.MinContentLength != nil {
		opts = append(opts, WithMinContentLength(*s.MinContentLength))
	}
	if s.CacheTTL != nil {
		opts = append(opts, WithCacheTTL(*s.CacheTTL))
	}
	if s.CacheMaxEntries != 0 {
		opts = append(opts, WithCacheMaxEntries(s.CacheMaxEntries))
	}
	return opts
}

// File represents the structure of the .docscout configuration file.
type File struct {
	// Scrape overrides fetch tuning for every run.
	Scrape ScrapeSettings `yaml:"scrape,omitempty"`

	// Sites maps a host name (e.g. "docs.example.com") to its configuration.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to all hosts unless overridden in Sites.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the configuration for a host,
// merging the site-specific entry over the defaults.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = make(map[string]string, len(cf.Defaults.Headers))
		for k, v := range cf.Defaults.Headers {
			result.Headers[k] = v
		}
	}

	siteConfig, ok := cf.Sites[host]
	if !ok {
		return result
	}
	if siteConfig.Cookie != "" {
		result.Cookie = siteConfig.Cookie
	}
	if len(siteConfig.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string)
		}
		for k, v := range siteConfig.Headers {
			result.Headers[k] = v
		}
	}
	return result
}

// SiteHeaders returns a lookup function suitable for the fetcher that
// yields the extra request headers of a host.
func (cf *File) SiteHeaders() func(host string) map[string]string {
	return func(host string) map[string]string {
		return cf.GetSiteConfig(host).RequestHeaders()
	}
}
