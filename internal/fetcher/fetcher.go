package fetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"sync"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/nao1215/docscout/internal/cache"
	"github.com/nao1215/docscout/internal/config"
)

// MaxRedirects is the number of redirects followed before giving up.
const MaxRedirects = 5

var (
	errTooManyRedirects = fmt.Errorf("stopped after %d redirects", MaxRedirects)
	errBlockedAddress   = errors.New("connection to private address blocked")
)

// Fetcher fetches pages with caching, pacing, retry and SSRF filtering.
// It is safe for concurrent use.
type Fetcher struct {
	cfg     *config.ScrapeConfig
	client  *http.Client
	cache   cache.Cache
	guard   *AddressGuard
	limiter *DomainLimiter
	sem     *semaphore.Weighted
	logger  *slog.Logger

	// siteHeaders returns extra request headers for a host.
	siteHeaders func(host string) map[string]string

	transport http.RoundTripper
	resolver  Resolver
	closeOnce sync.Once
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithCache sets the page cache. Without it every fetch uses the network.
func WithCache(c cache.Cache) Option {
	return func(f *Fetcher) {
		f.cache = c
	}
}

// WithTransport replaces the HTTP transport, mainly for tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) {
		f.transport = rt
	}
}

// WithResolver replaces the DNS resolver used by the address guard.
func WithResolver(r Resolver) Option {
	return func(f *Fetcher) {
		f.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithSiteHeaders adds per-host request headers, such as cookies from the
// config file.
func WithSiteHeaders(fn func(host string) map[string]string) Option {
	return func(f *Fetcher) {
		f.siteHeaders = fn
	}
}

// New creates a Fetcher. The caller must call Close when done.
func New(cfg *config.ScrapeConfig, opts ...Option) *Fetcher {
	f := &Fetcher{
		cfg:     cfg,
		limiter: NewDomainLimiter(cfg.RateLimitDelay),
		sem:     semaphore.NewWeighted(int64(cfg.Concurrency)),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}

	f.guard = NewAddressGuard(f.resolver)
	if f.transport == nil {
		f.transport = newTransport(cfg)
	}
	f.client = &http.Client{
		Transport: f.transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) > MaxRedirects {
				return errTooManyRedirects
			}
			if f.guard.Blocked(req.Context(), req.URL.String()) {
				return errBlockedAddress
			}
			return nil
		},
	}
	return f
}

// newTransport builds the pooled transport. Its dialer refuses private
// addresses too, which covers hosts that change their DNS answer after
// the guard has checked them.
func newTransport(cfg *config.ScrapeConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.RequestTimeout,
		KeepAlive: 30 * time.Second,
		Control: func(_, address string, _ syscall.RawConn) error {
			ap, err := netip.ParseAddrPort(address)
			if err != nil {
				return err
			}
			if IsPrivateAddr(ap.Addr()) {
				return errBlockedAddress
			}
			return nil
		},
	}
	return &http.Transport{
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.Concurrency,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// Close releases pooled connections. It is safe to call more than once and
// before any fetch has happened.
func (f *Fetcher) Close() error {
	f.closeOnce.Do(func() {
		f.client.CloseIdleConnections()
	})
	return nil
}

// FetchBatch fetches urls with at most limit in flight and returns the
// results in input order. A limit of zero or less means no batch limit;
// the global semaphore still applies.
func (f *Fetcher) FetchBatch(ctx context.Context, urls []string, limit int) []Result {
	results := make([]Result, len(urls))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, u := range urls {
		g.Go(func() error {
			results[i] = f.FetchOne(ctx, u)
			return nil
		})
	}
	_ = g.Wait() //nolint:errcheck // FetchOne never returns errors

	return results
}

// FetchOne fetches a single URL.
func (f *Fetcher) FetchOne(ctx context.Context, rawURL string) Result {
	if f.guard.Blocked(ctx, rawURL) {
		f.logger.Warn("blocked private URL", "url", rawURL)
		return Result{URL: rawURL, Kind: KindBlocked}
	}

	if f.cache != nil {
		if entry, ok := f.cache.Get(ctx, rawURL); ok {
			return Result{
				URL:        rawURL,
				Content:    entry.Content,
				StatusCode: entry.StatusCode,
				FromCache:  true,
			}
		}
	}

	host := ""
	if u, err := url.Parse(rawURL); err == nil {
		host = u.Host
	}

	var lastErr error
	for attempt := 1; attempt <= f.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return unexpected(rawURL, err)
		}
		if err := f.limiter.Wait(ctx, host); err != nil {
			return unexpected(rawURL, err)
		}

		resp, err := f.attempt(ctx, rawURL)
		if err != nil {
			switch {
			case errors.Is(err, errBlockedAddress):
				f.logger.Warn("blocked private address after redirect or DNS change", "url", rawURL)
				return Result{URL: rawURL, Kind: KindBlocked}
			case !isTransportError(err):
				return unexpected(rawURL, err)
			}

			lastErr = err
			f.logger.Debug("transport error", "url", rawURL, "attempt", attempt, "error", err)
			if attempt < f.cfg.MaxRetries {
				if err := f.backoff(ctx, attempt); err != nil {
					return unexpected(rawURL, err)
				}
			}
			continue
		}

		switch {
		case resp.statusCode >= 400 && resp.statusCode < 500:
			return Result{
				URL:         rawURL,
				StatusCode:  resp.statusCode,
				Kind:        KindHTTPClient,
				FetchTimeMS: resp.elapsedMS,
			}

		case resp.statusCode >= 500:
			if attempt < f.cfg.MaxRetries {
				f.logger.Debug("server error, retrying", "url", rawURL, "status", resp.statusCode, "attempt", attempt)
				if err := f.backoff(ctx, attempt); err != nil {
					return unexpected(rawURL, err)
				}
				continue
			}
			return Result{
				URL:         rawURL,
				StatusCode:  resp.statusCode,
				Kind:        KindHTTPServer,
				FetchTimeMS: resp.elapsedMS,
			}
		}

		if isSoftFailure(resp.content, f.cfg.MinContentLength) {
			return Result{
				URL:         rawURL,
				Content:     resp.content,
				StatusCode:  resp.statusCode,
				Kind:        KindSoftFailure,
				FetchTimeMS: resp.elapsedMS,
			}
		}

		if f.cache != nil {
			f.cache.Put(ctx, rawURL, resp.content, resp.statusCode, resp.headers)
		}
		return Result{
			URL:         rawURL,
			Content:     resp.content,
			StatusCode:  resp.statusCode,
			FetchTimeMS: resp.elapsedMS,
		}
	}

	detail := "no attempts made"
	if lastErr != nil {
		detail = lastErr.Error()
	}
	return Result{URL: rawURL, Kind: KindTransport, Detail: detail}
}

// response is what one network attempt produced.
type response struct {
	statusCode int
	content    string
	headers    map[string]string
	elapsedMS  int64
}

// attempt performs one request while holding a semaphore slot.
// The request timeout covers the whole exchange including the body.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (*response, error) {
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	defer f.sem.Release(1)

	reqCtx, cancel := context.WithTimeout(ctx, f.cfg.RequestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,text/plain;q=0.8,*/*;q=0.5")
	req.Header.Set("Accept-Language", "en-US,en;q=0.8")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if f.siteHeaders != nil {
		for k, v := range f.siteHeaders(req.URL.Hostname()) {
			req.Header.Set(k, v)
		}
	}

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	out := &response{
		statusCode: resp.StatusCode,
		headers:    flattenHeaders(resp.Header),
	}
	if resp.StatusCode < 400 {
		content, err := readBody(resp, f.cfg.MaxBodySize)
		if err != nil {
			return nil, err
		}
		out.content = content
	} else {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024)) //nolint:errcheck // drain for connection reuse
	}
	out.elapsedMS = time.Since(start).Milliseconds()
	return out, nil
}

// backoff sleeps retry_backoff_base^attempt seconds, or until ctx is done.
func (f *Fetcher) backoff(ctx context.Context, attempt int) error {
	d := time.Duration(math.Pow(f.cfg.RetryBackoffBase, float64(attempt)) * float64(time.Second))
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// isTransportError reports whether err is a timeout, connect or read failure.
func isTransportError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func unexpected(rawURL string, err error) Result {
	return Result{URL: rawURL, Kind: KindUnexpected, Detail: err.Error()}
}
