package queue

import (
	"cmp"
	"net/url"
	"slices"
	"sync"
)

// Provenance tags recorded in ScoredURL.Source.
const (
	SourceInitial = "initial"
	SourceSitemap = "sitemap"
)

// CrawledFrom returns the provenance tag of a link found on parentURL.
func CrawledFrom(parentURL string) string {
	return "crawled:" + parentURL
}

// ScoredURL is a URL waiting in the queue together with its priority.
type ScoredURL struct {
	// URL is the raw URL as it was added. It is the identity of the value.
	URL string

	// Score is the priority tier, 1 to 5.
	Score int

	// Source tells where the URL was found ("initial", "sitemap", "crawled:<url>").
	Source string

	// Depth is 0 for seeds and sitemap URLs, 1 for in-page links.
	Depth int
}

// Equal reports whether two entries carry byte-identical raw URLs.
func (s ScoredURL) Equal(other ScoredURL) bool {
	return s.URL == other.URL
}

// Queue is a deduplicating priority queue of URLs.
//
// Each normalized URL moves through unseen -> pending -> fetched and never
// leaves fetched. While pending, only the highest-scored variant is kept.
// The queue is safe for concurrent use.
type Queue struct {
	mu sync.Mutex

	// maxSize caps how many entries AllSorted returns. It is not a storage cap.
	maxSize int

	// pending maps a normalized URL to its best-scored entry.
	pending map[string]ScoredURL

	// fetched holds normalized URLs that must not be queued again.
	fetched map[string]struct{}
}

// New creates an empty queue. maxSize bounds AllSorted; zero or less means no bound.
func New(maxSize int) *Queue {
	return &Queue{
		maxSize: maxSize,
		pending: make(map[string]ScoredURL),
		fetched: make(map[string]struct{}),
	}
}

// Add queues a URL and reports whether it was newly inserted.
//
// Skippable and already-fetched URLs are rejected. A score of AutoScore is
// replaced by Score(rawURL). When the normalized URL is already pending, the
// stored entry is replaced only by a strictly higher score and Add returns false.
func (q *Queue) Add(rawURL string, score int, source string, depth int) bool {
	if ShouldSkip(rawURL) {
		return false
	}
	key := Normalize(rawURL)
	if score <= AutoScore {
		score = Score(rawURL)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if _, done := q.fetched[key]; done {
		return false
	}

	entry := ScoredURL{URL: rawURL, Score: score, Source: source, Depth: depth}
	if existing, ok := q.pending[key]; ok {
		if score > existing.Score {
			q.pending[key] = entry
		}
		return false
	}

	q.pending[key] = entry
	return true
}

// AddMany applies Add to each URL and returns how many were newly inserted.
func (q *Queue) AddMany(urls []string, score int, source string, depth int) int {
	added := 0
	for _, u := range urls {
		if q.Add(u, score, source, depth) {
			added++
		}
	}
	return added
}

// GetBatch returns up to size pending entries ordered by score (descending),
// then path length (ascending), then raw URL. It does not change any state;
// callers mark the entries with MarkBatchFetched once they are processed.
func (q *Queue) GetBatch(size int) []ScoredURL {
	if size <= 0 {
		return []ScoredURL{}
	}

	q.mu.Lock()
	sorted := q.sortedLocked()
	q.mu.Unlock()

	if len(sorted) > size {
		sorted = sorted[:size]
	}
	return sorted
}

// AllSorted returns pending entries in priority order, capped at maxSize.
func (q *Queue) AllSorted() []ScoredURL {
	q.mu.Lock()
	sorted := q.sortedLocked()
	q.mu.Unlock()

	if q.maxSize > 0 && len(sorted) > q.maxSize {
		sorted = sorted[:q.maxSize]
	}
	return sorted
}

// MarkFetched moves a URL to the fetched set so it is never queued again.
func (q *Queue) MarkFetched(rawURL string) {
	key := Normalize(rawURL)

	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, key)
	q.fetched[key] = struct{}{}
}

// MarkBatchFetched calls MarkFetched for every entry.
func (q *Queue) MarkBatchFetched(entries []ScoredURL) {
	for _, e := range entries {
		q.MarkFetched(e.URL)
	}
}

// PendingCount returns the number of URLs waiting to be fetched.
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// FetchedCount returns the number of URLs marked fetched.
func (q *Queue) FetchedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.fetched)
}

// TotalCount returns pending plus fetched.
func (q *Queue) TotalCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending) + len(q.fetched)
}

// sortedLocked returns a sorted copy of the pending entries. q.mu must be held.
func (q *Queue) sortedLocked() []ScoredURL {
	entries := make([]ScoredURL, 0, len(q.pending))
	for _, e := range q.pending {
		entries = append(entries, e)
	}
	slices.SortFunc(entries, func(a, b ScoredURL) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(pathLength(a.URL), pathLength(b.URL)); c != 0 {
			return c
		}
		return cmp.Compare(a.URL, b.URL)
	})
	return entries
}

func pathLength(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return len(rawURL)
	}
	return len(u.Path)
}
