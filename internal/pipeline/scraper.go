package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/docscout/internal/config"
	"github.com/nao1215/docscout/internal/fetcher"
	"github.com/nao1215/docscout/internal/model"
)

// Fetcher is the subset of *fetcher.Fetcher the steps use.
type Fetcher interface {
	FetchOne(ctx context.Context, rawURL string) fetcher.Result
	FetchBatch(ctx context.Context, urls []string, limit int) []fetcher.Result
	Close() error
}

var _ Fetcher = (*fetcher.Fetcher)(nil)

// Scraper runs one documentation scrape.
type Scraper struct {
	cfg     *config.ScrapeConfig
	fetcher Fetcher
	logger  *slog.Logger
	onPage  func(model.Page)
	now     func() time.Time
}

// ScraperOption configures a Scraper.
type ScraperOption func(*Scraper)

// WithScraperLogger sets the logger shared by every step.
func WithScraperLogger(logger *slog.Logger) ScraperOption {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// WithPageHook registers a function called for every accepted page.
// The CLI uses it to drive the progress bar.
func WithPageHook(fn func(model.Page)) ScraperOption {
	return func(s *Scraper) {
		s.onPage = fn
	}
}

// NewScraper creates a Scraper. The scraper takes ownership of f and
// closes it at the end of Run.
func NewScraper(cfg *config.ScrapeConfig, f Fetcher, opts ...ScraperOption) *Scraper {
	s := &Scraper{
		cfg:     cfg,
		fetcher: f,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Run scrapes topic starting from seeds.
//
// The report is always returned, with stats covering whatever ran, even
// when the context is cancelled or a step fails; err reports why the run
// ended early. The fetcher is closed on every path.
func (s *Scraper) Run(ctx context.Context, topic string, seeds []string) (report *model.Report, err error) {
	start := s.now()
	defer func() {
		if cerr := s.fetcher.Close(); cerr != nil {
			s.logger.Warn("failed to close fetcher", "error", cerr)
		}
	}()

	state := NewState(topic, string(s.cfg.Mode), seeds, s.cfg.MaxURLs)

	p := New(WithLogger(s.logger), WithContinueOnError(true))
	p.AddSteps(
		NewSeedStep(s.logger),
		NewDiscoveryStep(s.fetcher, s.cfg.Concurrency, s.logger),
		NewCrawlStep(s.fetcher, s.cfg.MaxURLs, s.cfg.Concurrency, s.logger, s.onPage),
		NewChangelogStep(s.fetcher, s.logger),
	)
	s.logger.Debug("starting pipeline", "topic", topic, "steps", p.StepNames())
	err = p.Execute(ctx, state)

	state.Report.Stats.URLsDiscovered = state.Queue.TotalCount()
	state.Report.Partial = state.Cancelled
	state.Report.Finalize(s.now().Sub(start))

	if state.Cancelled {
		s.logger.Warn("scrape cancelled, report is partial",
			"topic", topic,
			"completed_steps", state.PerformedSteps,
		)
	}
	s.logger.Info("scrape finished",
		"topic", topic,
		"pages", len(state.Report.Pages),
		"seconds", state.Report.Stats.TotalTimeSeconds,
	)
	return state.Report, err
}
