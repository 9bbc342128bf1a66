package model

import (
	"math"
	"time"
)

// ChangelogEntry is one release parsed from a changelog page.
type ChangelogEntry struct {
	// Version is the release version without a leading "v".
	Version string `json:"version"`

	// Date is the release date in YYYY-MM-DD form, or empty.
	Date string `json:"date"`

	// Summary is the first lines of the release notes, at most 300 characters.
	Summary string `json:"summary"`
}

// Stats counts every outcome of a run.
// A failed run still reports its stats so callers can tell "nothing found"
// apart from a crash.
type Stats struct {
	// URLsDiscovered is the number of distinct URLs the queue has seen.
	URLsDiscovered int `json:"urls_discovered"`

	// URLsFetched counts every fetch attempted in the crawl loop, cached or not.
	URLsFetched int `json:"urls_fetched"`

	// URLsCached counts fetches answered from the page cache.
	URLsCached int `json:"urls_cached"`

	// URLsFailed counts hard failures: blocked, HTTP errors, transport errors.
	URLsFailed int `json:"urls_failed"`

	// SoftFailures counts pages rejected as login walls or too short.
	SoftFailures int `json:"soft_failures"`

	// URLsSkippedDisallowed counts queue entries dropped by robots.txt rules.
	URLsSkippedDisallowed int `json:"urls_skipped_disallowed"`

	// URLsSkippedDedup counts pages dropped as near-duplicates.
	URLsSkippedDedup int `json:"urls_skipped_dedup"`

	// PagesExtracted is the number of pages in the report.
	PagesExtracted int `json:"pages_extracted"`

	// TotalTimeSeconds is the wall time of the run, rounded to 2 decimals.
	TotalTimeSeconds float64 `json:"total_time_seconds"`

	// CacheHits mirrors URLsCached.
	CacheHits int `json:"cache_hits"`
}

// Report is the result of one scrape run.
type Report struct {
	// Topic is the library or technology that was scraped.
	Topic string `json:"topic"`

	// Mode is the depth mode of the run (quick, default, deep).
	Mode string `json:"mode"`

	// Version is the detected library version, or nil.
	Version *string `json:"version"`

	// Changelog holds the most recent releases, newest first as published.
	Changelog []ChangelogEntry `json:"changelog"`

	// Pages holds accepted pages in acceptance order.
	Pages []Page `json:"pages"`

	// Stats holds the run counters.
	Stats Stats `json:"stats"`

	// URLsFetched lists the URL of every page in Pages.
	URLsFetched []string `json:"urls_fetched"`

	// Partial is set when the run was interrupted before every phase finished.
	Partial bool `json:"partial,omitempty"`
}

// NewReport creates an empty report for topic.
func NewReport(topic, mode string) *Report {
	return &Report{
		Topic:       topic,
		Mode:        mode,
		Changelog:   []ChangelogEntry{},
		Pages:       []Page{},
		URLsFetched: []string{},
	}
}

// AddPage appends an accepted page.
func (r *Report) AddPage(page Page) {
	r.Pages = append(r.Pages, page)
	r.URLsFetched = append(r.URLsFetched, page.URL)
}

// SetVersion records version unless a version is already known.
// It reports whether the value was stored.
func (r *Report) SetVersion(version string) bool {
	if r.Version != nil || version == "" {
		return false
	}
	r.Version = &version
	return true
}

// HasVersion reports whether a version has been detected.
func (r *Report) HasVersion() bool {
	return r.Version != nil
}

// Finalize fills the derived stats fields.
func (r *Report) Finalize(elapsed time.Duration) {
	r.Stats.PagesExtracted = len(r.Pages)
	r.Stats.CacheHits = r.Stats.URLsCached
	r.Stats.TotalTimeSeconds = math.Round(elapsed.Seconds()*100) / 100
}
