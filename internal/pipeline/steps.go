package pipeline

import (
	"context"
	"log/slog"
	"unicode/utf8"

	"github.com/nao1215/docscout/internal/discovery"
	"github.com/nao1215/docscout/internal/extractor"
	"github.com/nao1215/docscout/internal/fetcher"
	"github.com/nao1215/docscout/internal/model"
	"github.com/nao1215/docscout/internal/queue"
)

const (
	// MaxNestedSitemaps is how many child sitemaps of a sitemap index are fetched.
	MaxNestedSitemaps = 5

	// MaxChangelogProbes is how many changelog candidates are fetched per site.
	MaxChangelogProbes = 4

	// MinChangelogLength is the shortest body worth parsing for releases.
	MinChangelogLength = 200
)

// SeedStep adds the caller's URLs to the queue.
type SeedStep struct {
	logger *slog.Logger
}

// NewSeedStep creates a seed step.
func NewSeedStep(logger *slog.Logger) *SeedStep {
	return &SeedStep{logger: logger}
}

// Name returns the step name.
func (s *SeedStep) Name() string {
	return "seed"
}

// Do executes the seed step.
func (s *SeedStep) Do(_ context.Context, state *State) error {
	added := state.Queue.AddMany(state.Seeds, queue.AutoScore, queue.SourceInitial, 0)
	s.logger.Debug("seeded queue", "urls", len(state.Seeds), "added", added)
	return nil
}

// DiscoveryStep finds documentation URLs through sitemaps and robots.txt.
// Discovery is best effort: candidates that fail to fetch are ignored.
type DiscoveryStep struct {
	fetcher     Fetcher
	concurrency int
	logger      *slog.Logger
}

// NewDiscoveryStep creates a discovery step.
func NewDiscoveryStep(f Fetcher, concurrency int, logger *slog.Logger) *DiscoveryStep {
	return &DiscoveryStep{fetcher: f, concurrency: concurrency, logger: logger}
}

// Name returns the step name.
func (s *DiscoveryStep) Name() string {
	return "discovery"
}

// Do executes the discovery step.
func (s *DiscoveryStep) Do(ctx context.Context, state *State) error {
	for _, site := range state.SiteURLs() {
		candidates := discovery.FindSitemapURLs(site)
		s.logger.Debug("discovering sitemaps", "site", site)

		for _, result := range s.fetcher.FetchBatch(ctx, candidates, s.concurrency) {
			content, ok := discoveryContent(result)
			if !ok {
				continue
			}

			if !discovery.IsRobotsURL(result.URL) {
				s.addSitemap(ctx, state, result, true)
				continue
			}

			robots := discovery.ParseRobotsTxt(content)
			state.Disallowed = append(state.Disallowed, robots.Disallowed...)
			s.logger.Debug("parsed robots.txt",
				"url", result.URL,
				"sitemaps", len(robots.Sitemaps),
				"disallow_rules", len(robots.Disallowed),
			)
			for _, sitemapURL := range robots.Sitemaps {
				s.addSitemap(ctx, state, s.fetcher.FetchOne(ctx, sitemapURL), true)
			}
		}
	}

	state.Report.Stats.URLsDiscovered = state.Queue.TotalCount()
	s.logger.Debug("discovery complete", "queued", state.Queue.TotalCount())
	return nil
}

// addSitemap queues the documentation URLs of a fetched sitemap. When the
// sitemap is an index and nested is true, its first MaxNestedSitemaps
// children are fetched and queued one level deep.
func (s *DiscoveryStep) addSitemap(ctx context.Context, state *State, result fetcher.Result, nested bool) {
	content, ok := discoveryContent(result)
	if !ok {
		return
	}

	locs := discovery.ParseSitemapURLs(content)
	if discovery.IsSitemapIndex(content) {
		if !nested {
			return
		}
		if len(locs) > MaxNestedSitemaps {
			locs = locs[:MaxNestedSitemaps]
		}
		for _, child := range locs {
			s.addSitemap(ctx, state, s.fetcher.FetchOne(ctx, child), false)
		}
		return
	}

	added := state.Queue.AddMany(discovery.FilterDocURLs(locs), queue.ScoreSitemapDoc, queue.SourceSitemap, 0)
	s.logger.Debug("sitemap processed", "url", result.URL, "added", added)
}

// discoveryContent returns the body of a robots.txt or sitemap fetch.
// The fetcher reports short bodies as soft failures, but a short robots.txt
// or sitemap is still a valid file, so its content is used anyway.
func discoveryContent(result fetcher.Result) (string, bool) {
	switch {
	case result.Success():
		return result.Content, true
	case result.Kind == fetcher.KindSoftFailure && result.Content != "":
		return result.Content, true
	default:
		return "", false
	}
}

// CrawlStep fetches queued pages in batches, extracts them, drops
// near-duplicates and queues the links of accepted pages one hop deep.
type CrawlStep struct {
	fetcher     Fetcher
	maxPages    int
	concurrency int
	logger      *slog.Logger

	// onPage is called for every accepted page.
	onPage func(model.Page)
}

// NewCrawlStep creates a crawl step that stops once maxPages pages are
// accepted or the queue is empty.
func NewCrawlStep(f Fetcher, maxPages, concurrency int, logger *slog.Logger, onPage func(model.Page)) *CrawlStep {
	return &CrawlStep{
		fetcher:     f,
		maxPages:    maxPages,
		concurrency: concurrency,
		logger:      logger,
		onPage:      onPage,
	}
}

// Name returns the step name.
func (s *CrawlStep) Name() string {
	return "crawl"
}

// Do executes the crawl step. Every batch pulled from the queue is marked
// fetched before its pages are requested, so the pending set shrinks on
// every iteration.
func (s *CrawlStep) Do(ctx context.Context, state *State) error {
	batchNum := 0
	for state.Queue.PendingCount() > 0 && len(state.Report.Pages) < s.maxPages {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := state.Queue.GetBatch(s.concurrency)
		if len(batch) == 0 {
			break
		}
		batchNum++

		urls := make([]string, 0, len(batch))
		for _, entry := range batch {
			if discovery.IsDisallowed(entry.URL, state.Disallowed) {
				state.Report.Stats.URLsSkippedDisallowed++
				s.logger.Debug("disallowed by robots.txt", "url", entry.URL)
				continue
			}
			urls = append(urls, entry.URL)
		}
		state.Queue.MarkBatchFetched(batch)

		if len(urls) == 0 {
			continue
		}

		s.logger.Debug("fetching batch", "batch", batchNum, "urls", len(urls))
		for _, result := range s.fetcher.FetchBatch(ctx, urls, s.concurrency) {
			s.handle(state, result)
		}
	}
	return nil
}

func (s *CrawlStep) handle(state *State, result fetcher.Result) {
	stats := &state.Report.Stats
	stats.URLsFetched++
	if result.FromCache {
		stats.URLsCached++
	}

	if !result.Success() {
		if result.Kind == fetcher.KindSoftFailure {
			stats.SoftFailures++
			s.logger.Debug("SOFT FAIL", "url", result.URL)
		} else {
			stats.URLsFailed++
			s.logger.Debug("FAILED", "url", result.URL, "error", result.ErrorMessage())
		}
		return
	}

	content := extractor.Extract(result.Content, result.URL)
	compare := comparisonText(content.Text)
	if state.isDuplicate(compare) {
		stats.URLsSkippedDedup++
		s.logger.Debug("DEDUP", "url", result.URL)
		return
	}
	state.remember(compare)

	if !state.Report.HasVersion() {
		if version, ok := discovery.DetectVersion(content.Text); ok {
			state.Report.SetVersion(version)
			s.logger.Debug("detected version", "version", version, "url", result.URL)
		}
	}

	page := model.NewPage(result.URL, content.Title, content.Text,
		content.CodeBlocks, content.Headings, content.Tables, content.WordCount)
	page.FromCache = result.FromCache
	page.FetchTimeMS = result.FetchTimeMS
	state.Report.AddPage(page)

	s.logger.Debug("OK",
		"url", result.URL,
		"words", content.WordCount,
		"code_blocks", len(content.CodeBlocks),
		"cached", result.FromCache,
	)
	if s.onPage != nil {
		s.onPage(page)
	}

	source := queue.CrawledFrom(result.URL)
	for _, link := range content.Links {
		state.Queue.Add(link, queue.ScoreOfficialGuide, source, 1)
	}
}

// ChangelogStep probes well-known changelog locations of every seed site.
// The first site that yields release entries supplies the changelog.
type ChangelogStep struct {
	fetcher Fetcher
	logger  *slog.Logger
}

// NewChangelogStep creates a changelog step.
func NewChangelogStep(f Fetcher, logger *slog.Logger) *ChangelogStep {
	return &ChangelogStep{fetcher: f, logger: logger}
}

// Name returns the step name.
func (s *ChangelogStep) Name() string {
	return "changelog"
}

// Do executes the changelog step.
func (s *ChangelogStep) Do(ctx context.Context, state *State) error {
	for _, site := range state.SiteURLs() {
		candidates := discovery.FindChangelogURLs(site, state.Topic)
		if len(candidates) > MaxChangelogProbes {
			candidates = candidates[:MaxChangelogProbes]
		}

		for _, candidate := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}

			result := s.fetcher.FetchOne(ctx, candidate)
			if !result.Success() || utf8.RuneCountInString(result.Content) <= MinChangelogLength {
				continue
			}

			content := extractor.Extract(result.Content, candidate)
			entries := discovery.ExtractChangelogEntries(content.Text, discovery.DefaultChangelogLimit)
			if len(entries) == 0 {
				continue
			}

			state.Report.Changelog = entries
			state.Report.SetVersion(entries[0].Version)
			s.logger.Debug("found changelog", "url", candidate, "entries", len(entries))
			// Remaining sites are not probed once one changelog is found.
			return nil
		}
	}
	return nil
}
