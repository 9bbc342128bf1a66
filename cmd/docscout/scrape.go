package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nao1215/docscout/internal/cache"
	"github.com/nao1215/docscout/internal/config"
	"github.com/nao1215/docscout/internal/database"
	"github.com/nao1215/docscout/internal/fetcher"
	dslog "github.com/nao1215/docscout/internal/log"
	"github.com/nao1215/docscout/internal/model"
	"github.com/nao1215/docscout/internal/pipeline"
	"github.com/nao1215/docscout/internal/report"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

// Report output formats.
const (
	formatJSON     = "json"
	formatMarkdown = "markdown"
	formatText     = "text"
)

// errInvalidFormat is returned for an unknown --format value.
var errInvalidFormat = errors.New("invalid format: must be 'json', 'markdown', or 'text'")

// NewScrapeCmd creates the scrape command.
func NewScrapeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape <topic>",
		Short: "Scrape the documentation of a library or tool",
		Long: `Scrape crawls documentation for a topic and prints a JSON report.

The crawl starts from the seed URLs given with --urls. For every site it
reads robots.txt and the sitemap, queues documentation pages, fetches the
best candidates first, and follows one hop of links from each page.
Near-duplicate pages are dropped, and the version and changelog are
detected along the way.

Modes:
  quick    5 pages, 3 concurrent requests
  default  12 pages, 5 concurrent requests
  deep     25 pages, 8 concurrent requests

Examples:
  # Scrape Hono's docs
  docscout scrape hono --urls https://hono.dev/docs/

  # Deeper crawl, Markdown report written to a file
  docscout scrape hono --mode deep --urls https://hono.dev/docs/ -f markdown -o hono.md

  # Ignore the cache and save the report to the history database
  docscout scrape hono --urls https://hono.dev/docs/ --no-cache --save`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScrapeCmd,
	}

	addScrapeFlags(cmd)
	return cmd
}

// addScrapeFlags registers the scrape flags on cmd.
// The root command shares them so that "docscout <topic>" works.
func addScrapeFlags(cmd *cobra.Command) {
	flags := cmd.Flags()

	flags.String("mode", string(config.ModeDefault),
		"Scraping depth mode: quick, default, or deep")
	flags.StringSliceP("urls", "u", nil,
		"Seed URLs to start from (comma separated or repeated)")
	flags.Int("max-urls", 0,
		"Override the page budget of the mode")
	flags.Int("concurrency", 0,
		"Override the number of concurrent requests of the mode")
	flags.Float64P("timeout", "t", config.DefaultRequestTimeout.Seconds(),
		"Request timeout in seconds")

	flags.String("cache-dir", "",
		"Cache directory (default: $XDG_CACHE_HOME/docscout)")
	flags.String("cache-backend", "",
		"Cache backend: file, sqlite, or memory (default: file)")
	flags.Bool("no-cache", false,
		"Disable caching")

	flags.StringP("config", "c", "",
		"Configuration file path (default: .docscout in current or home directory)")
	flags.String("log-file", "",
		"Also write logs as JSON to this file, rotated by size")
	flags.Bool("progress", false,
		"Show a progress bar on stderr")

	flags.StringP("output", "o", "",
		"Write the report to this file instead of stdout")
	flags.StringP("format", "f", formatJSON,
		"Report format: json, markdown, or text")
	flags.BoolP("markdown", "m", false,
		"Shorthand for --format markdown")

	flags.Bool("save", false,
		"Save the report to the history database")
	flags.String("data-dir", "",
		"History database directory (default: $XDG_DATA_HOME/docscout)")
}

// scrapeOptions is everything a scrape run needs, resolved from flags
// and the configuration file.
type scrapeOptions struct {
	topic        string
	mode         config.Mode
	seeds        []string
	configOpts   []config.Option
	cacheBackend config.CacheBackend
	siteHeaders  func(host string) map[string]string
	verbose      bool
	logFile      string
	progress     bool
	output       string
	format       string
	save         bool
	dataDir      string

	// fetcherOpts are appended to the fetcher options; tests use them to
	// swap the transport and resolver.
	fetcherOpts []fetcher.Option
}

func runScrapeCmd(cmd *cobra.Command, args []string) error {
	opts, err := buildScrapeOptions(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runScrape(ctx, opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildScrapeOptions resolves flags over the configuration file.
// Precedence: built-in defaults, mode, config file, flags.
func buildScrapeOptions(cmd *cobra.Command, args []string) (*scrapeOptions, error) {
	opts := &scrapeOptions{verbose: getVerboseFlag(cmd)}
	if len(args) > 0 {
		opts.topic = strings.TrimSpace(args[0])
	}
	if opts.topic == "" {
		return nil, config.ErrNoTopic
	}

	flags := cmd.Flags()

	configPath, err := flags.GetString("config")
	if err != nil {
		return nil, err
	}
	file, err := loadConfigFile(configPath)
	if err != nil {
		return nil, err
	}
	opts.configOpts = file.Scrape.Options()
	opts.siteHeaders = file.SiteHeaders()

	modeName := file.Scrape.Mode
	if flags.Changed("mode") || modeName == "" {
		if modeName, err = flags.GetString("mode"); err != nil {
			return nil, err
		}
	}
	if opts.mode, err = config.ParseMode(modeName); err != nil {
		return nil, err
	}

	backendName := file.Scrape.CacheBackend
	if flags.Changed("cache-backend") {
		if backendName, err = flags.GetString("cache-backend"); err != nil {
			return nil, err
		}
	}
	if opts.cacheBackend, err = config.ParseCacheBackend(backendName); err != nil {
		return nil, err
	}

	if opts.seeds, err = flags.GetStringSlice("urls"); err != nil {
		return nil, err
	}

	timeout, err := flags.GetFloat64("timeout")
	if err != nil {
		return nil, err
	}
	opts.configOpts = append(opts.configOpts,
		config.WithRequestTimeout(time.Duration(timeout*float64(time.Second))))

	maxURLs, err := flags.GetInt("max-urls")
	if err != nil {
		return nil, err
	}
	if maxURLs != 0 {
		opts.configOpts = append(opts.configOpts, config.WithMaxURLs(maxURLs))
	}

	concurrency, err := flags.GetInt("concurrency")
	if err != nil {
		return nil, err
	}
	if concurrency != 0 {
		opts.configOpts = append(opts.configOpts, config.WithConcurrency(concurrency))
	}

	cacheDir, err := flags.GetString("cache-dir")
	if err != nil {
		return nil, err
	}
	opts.configOpts = append(opts.configOpts, config.WithCacheDir(cacheDir))

	noCache, err := flags.GetBool("no-cache")
	if err != nil {
		return nil, err
	}
	if noCache {
		opts.configOpts = append(opts.configOpts, config.WithCacheTTL(0))
	}

	if opts.logFile, err = flags.GetString("log-file"); err != nil {
		return nil, err
	}
	if opts.progress, err = flags.GetBool("progress"); err != nil {
		return nil, err
	}
	if opts.output, err = flags.GetString("output"); err != nil {
		return nil, err
	}

	if opts.format, err = flags.GetString("format"); err != nil {
		return nil, err
	}
	markdown, err := flags.GetBool("markdown")
	if err != nil {
		return nil, err
	}
	if markdown {
		opts.format = formatMarkdown
	}
	switch opts.format {
	case formatJSON, formatMarkdown, formatText:
	default:
		return nil, errInvalidFormat
	}

	if opts.save, err = flags.GetBool("save"); err != nil {
		return nil, err
	}
	if opts.dataDir, err = flags.GetString("data-dir"); err != nil {
		return nil, err
	}
	if opts.dataDir == "" {
		opts.dataDir = config.XDGDataDir()
	}

	return opts, nil
}

// loadConfigFile finds and loads the configuration file.
// An explicit path that does not exist is an error; a missing default
// file yields an empty configuration.
func loadConfigFile(configPath string) (*config.File, error) {
	path := config.FindConfigFile(configPath)
	if path == "" {
		if configPath != "" {
			return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, configPath)
		}
		return &config.File{Sites: make(map[string]config.SiteConfig)}, nil
	}

	file, err := config.LoadConfigFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}
	return file, nil
}

// runScrape executes a scrape and writes the report.
// The report is written even when the run was interrupted; the returned
// error then reports the interruption.
func runScrape(ctx context.Context, opts *scrapeOptions, stdout, stderr io.Writer) error {
	logger, logCloser := dslog.NewLogger(stderr, opts.verbose, dslog.FileOptions{Path: opts.logFile})
	defer logCloser.Close() //nolint:errcheck // best effort flush of the log file
	slog.SetDefault(logger)

	cfg, err := config.NewScrapeConfig(opts.mode, opts.configOpts...)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	pageCache, cacheCloser, err := openCache(cfg, opts.cacheBackend, logger)
	if err != nil {
		return err
	}
	defer cacheCloser.Close() //nolint:errcheck // read-mostly cache

	fetcherOpts := []fetcher.Option{
		fetcher.WithLogger(logger),
		fetcher.WithSiteHeaders(opts.siteHeaders),
	}
	if pageCache != nil {
		fetcherOpts = append(fetcherOpts, fetcher.WithCache(pageCache))
	}
	fetcherOpts = append(fetcherOpts, opts.fetcherOpts...)

	scraperOpts := []pipeline.ScraperOption{pipeline.WithScraperLogger(logger)}
	var bar *progressbar.ProgressBar
	if opts.progress {
		bar = newProgressBar(stderr, cfg.MaxURLs, opts.topic)
		scraperOpts = append(scraperOpts, pipeline.WithPageHook(func(model.Page) {
			_ = bar.Add(1) //nolint:errcheck // progress rendering only
		}))
	}

	logger.Info("starting scrape",
		"topic", opts.topic,
		"mode", cfg.Mode,
		"seeds", len(opts.seeds),
		"maxURLs", cfg.MaxURLs,
		"concurrency", cfg.Concurrency,
		"cache", cfg.CachingEnabled(),
	)

	scraper := pipeline.NewScraper(cfg, fetcher.New(cfg, fetcherOpts...), scraperOpts...)
	result, runErr := scraper.Run(ctx, opts.topic, opts.seeds)
	if bar != nil {
		_ = bar.Finish() //nolint:errcheck // progress rendering only
	}

	if err := writeReport(result, opts, stdout); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	if opts.save {
		// Saving still happens after an interrupt.
		if err := saveReport(context.WithoutCancel(ctx), opts.dataDir, result, logger); err != nil {
			logger.Error("failed to save report", "topic", opts.topic, "error", err)
		}
	}

	if runErr != nil {
		return fmt.Errorf("scrape interrupted: %w", runErr)
	}
	return nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// openCache opens the page cache selected by backend. It returns a nil
// cache when caching is disabled. The closer is never nil.
func openCache(cfg *config.ScrapeConfig, backend config.CacheBackend, logger *slog.Logger) (cache.Cache, io.Closer, error) {
	if !cfg.CachingEnabled() {
		return nil, nopCloser{}, nil
	}

	switch backend {
	case config.CacheBackendSQLite:
		db, err := database.Open(cfg.CacheDir, database.DefaultOptions())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open cache database: %w", err)
		}
		store := db.PageStore(cfg.CacheTTL,
			database.WithMaxEntries(cfg.CacheMaxEntries),
			database.WithLogger(logger),
		)
		return store, db, nil

	case config.CacheBackendMemory:
		size := cfg.CacheMaxEntries
		if size <= 0 {
			size = config.DefaultCacheMaxEntries
		}
		c, err := cache.NewMemoryCache(cfg.CacheTTL, size)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil

	default:
		c, err := cache.NewFileCache(cfg.CacheDir, cfg.CacheTTL,
			cache.WithMaxEntries(cfg.CacheMaxEntries),
			cache.WithLogger(logger),
		)
		if err != nil {
			return nil, nil, err
		}
		return c, nopCloser{}, nil
	}
}

// newProgressBar counts accepted pages against the page budget.
func newProgressBar(w io.Writer, maxPages int, topic string) *progressbar.ProgressBar {
	return progressbar.NewOptions(maxPages,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("scraping "+topic),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionClearOnFinish(),
	)
}

// writeReport writes the report in the requested format to the output
// file or stdout.
func writeReport(result *model.Report, opts *scrapeOptions, stdout io.Writer) error {
	output := stdout
	if opts.output != "" {
		if dir := filepath.Dir(opts.output); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0750); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}
		}
		f, err := os.OpenFile(opts.output, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	_, err := newReportWriter(output, opts.format, opts.verbose).Write(result)
	return err
}

func newReportWriter(w io.Writer, format string, verbose bool) report.Writer {
	switch format {
	case formatMarkdown:
		return report.NewMarkdownWriter(w)
	case formatText:
		return report.NewSimpleWriter(w, report.WithVerbose(verbose))
	default:
		return report.NewJSONWriter(w, report.WithPrettyPrint())
	}
}

// saveReport stores the report in the history database.
func saveReport(ctx context.Context, dataDir string, result *model.Report, logger *slog.Logger) error {
	db, err := database.Open(dataDir, database.DefaultOptions())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	id, err := db.SaveReport(ctx, result)
	if err != nil {
		return err
	}
	logger.Info("report saved to database", "topic", result.Topic, "id", id)
	return nil
}
