// Package queue holds the URL priority queue that drives a crawl.
//
// URLs are identified by their normalized form (see Normalize), rated by
// Score, and filtered by ShouldSkip before they are queued. The Queue keeps
// one pending entry per normalized URL, always the best-scored variant seen,
// and a fetched set that makes re-queueing impossible.
package queue
