package pipeline

import (
	"net/url"

	"github.com/nao1215/docscout/internal/extractor"
	"github.com/nao1215/docscout/internal/model"
	"github.com/nao1215/docscout/internal/queue"
)

const (
	// ComparisonTextLength is how many characters of each page take part
	// in duplicate detection.
	ComparisonTextLength = 5000

	// DuplicateThreshold is the similarity above which a page is a duplicate.
	DuplicateThreshold = 0.9
)

// State is shared by the steps of one run.
type State struct {
	// Topic is the library or technology being scraped.
	Topic string

	// Seeds are the caller-supplied initial URLs.
	Seeds []string

	// Queue holds the URLs waiting to be fetched.
	Queue *queue.Queue

	// Report accumulates pages, stats, version and changelog.
	Report *model.Report

	// Disallowed are robots.txt rules collected during discovery.
	Disallowed []string

	// Cancelled is set when the context ended before all steps completed.
	Cancelled bool

	// PerformedSteps names the steps that ran to completion, in order.
	PerformedSteps []string

	// seen holds the comparison text of every accepted page.
	seen []string
}

// NewState creates the state of a run.
func NewState(topic, mode string, seeds []string, maxURLs int) *State {
	return &State{
		Topic:  topic,
		Seeds:  seeds,
		Queue:  queue.New(maxURLs),
		Report: model.NewReport(topic, mode),
	}
}

// SiteURLs returns the first seed of every distinct scheme and host, in
// seed order. Seeds that are not absolute URLs are ignored.
func (s *State) SiteURLs() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, raw := range s.Seeds {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			continue
		}
		origin := u.Scheme + "://" + u.Host
		if _, ok := seen[origin]; ok {
			continue
		}
		seen[origin] = struct{}{}
		out = append(out, raw)
	}
	return out
}

// isDuplicate reports whether text is too similar to an accepted page.
func (s *State) isDuplicate(text string) bool {
	for _, prev := range s.seen {
		if extractor.Similarity(text, prev) > DuplicateThreshold {
			return true
		}
	}
	return false
}

// remember stores the comparison text of an accepted page.
func (s *State) remember(text string) {
	s.seen = append(s.seen, text)
}

// comparisonText returns the leading ComparisonTextLength characters of text.
func comparisonText(text string) string {
	count := 0
	for i := range text {
		if count == ComparisonTextLength {
			return text[:i]
		}
		count++
	}
	return text
}
