package fetcher

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/docscout/internal/cache"
	"github.com/nao1215/docscout/internal/config"
)

// fakeTransport serves requests from an in-memory handler and counts them.
type fakeTransport struct {
	handler http.Handler
	err     error

	mu    sync.Mutex
	calls map[string]int
	total int
}

func newFakeTransport(handler http.Handler) *fakeTransport {
	return &fakeTransport{handler: handler, calls: make(map[string]int)}
}

func (t *fakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.calls[req.URL.String()]++
	t.total++
	t.mu.Unlock()

	if t.err != nil {
		return nil, t.err
	}
	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (t *fakeTransport) Total() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

func (t *fakeTransport) Calls(u string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls[u]
}

// fakeResolver answers lookups from a table; unknown hosts get a public address.
type fakeResolver map[string][]string

func (r fakeResolver) LookupIPAddr(_ context.Context, host string) ([]net.IPAddr, error) {
	ips, ok := r[host]
	if !ok {
		ips = []string{"93.184.216.34"}
	}
	out := make([]net.IPAddr, 0, len(ips))
	for _, ip := range ips {
		out = append(out, net.IPAddr{IP: net.ParseIP(ip)})
	}
	return out, nil
}

// slowTransport holds every request for a fixed time and records when each
// one started and how many were in flight at once.
type slowTransport struct {
	hold time.Duration

	mu       sync.Mutex
	inFlight int
	peak     int
	starts   map[string][]time.Time
}

func newSlowTransport(hold time.Duration) *slowTransport {
	return &slowTransport{hold: hold, starts: make(map[string][]time.Time)}
}

func (t *slowTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.mu.Lock()
	t.inFlight++
	t.peak = max(t.peak, t.inFlight)
	t.starts[req.URL.Host] = append(t.starts[req.URL.Host], time.Now())
	t.mu.Unlock()

	time.Sleep(t.hold)

	t.mu.Lock()
	t.inFlight--
	t.mu.Unlock()

	rec := httptest.NewRecorder()
	_, _ = rec.WriteString(docBody(req.URL.Path))
	resp := rec.Result()
	resp.Request = req
	return resp, nil
}

func (t *slowTransport) Peak() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.peak
}

// Starts returns the sorted request start times for host.
func (t *slowTransport) Starts(host string) []time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := slices.Clone(t.starts[host])
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// docBody is a page long enough to pass the soft-failure threshold.
func docBody(marker string) string {
	return "<html><body><h1>" + marker + "</h1><p>" + strings.Repeat("documentation text ", 10) + "</p></body></html>"
}

func testConfig(t *testing.T, opts ...config.Option) *config.ScrapeConfig {
	t.Helper()

	base := []config.Option{
		config.WithRetryBackoffBase(0),
		config.WithRateLimitDelay(0),
		config.WithMinContentLength(50),
		config.WithMaxRetries(3),
		config.WithCacheDir(t.TempDir()),
	}
	cfg, err := config.NewScrapeConfig(config.ModeDefault, append(base, opts...)...)
	if err != nil {
		t.Fatalf("failed to build config: %v", err)
	}
	return cfg
}

func newTestFetcher(t *testing.T, transport http.RoundTripper, opts ...Option) *Fetcher {
	t.Helper()

	all := append([]Option{WithTransport(transport), WithResolver(fakeResolver{})}, opts...)
	f := New(testConfig(t), all...)
	t.Cleanup(func() {
		_ = f.Close()
	})
	return f
}

// TestFetchOne_RetryPolicy tests how HTTP and transport failures are retried.
func TestFetchOne_RetryPolicy(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("404 makes exactly one attempt", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.NotFoundHandler())
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/missing")
		if res.Success() {
			t.Fatal("expected failure")
		}
		if res.Kind != KindHTTPClient || res.StatusCode != http.StatusNotFound {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.ErrorMessage() != "HTTP 404" {
			t.Errorf("expected HTTP 404, got %q", res.ErrorMessage())
		}
		if tr.Total() != 1 {
			t.Errorf("expected 1 attempt, got %d", tr.Total())
		}
	})

	t.Run("503 makes exactly max_retries attempts", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/flaky")
		if res.Kind != KindHTTPServer || res.StatusCode != http.StatusServiceUnavailable {
			t.Errorf("unexpected result: %+v", res)
		}
		if res.ErrorMessage() != "HTTP 503" {
			t.Errorf("expected HTTP 503, got %q", res.ErrorMessage())
		}
		if tr.Total() != 3 {
			t.Errorf("expected 3 attempts, got %d", tr.Total())
		}
	})

	t.Run("5xx then success recovers", func(t *testing.T) {
		t.Parallel()

		var mu sync.Mutex
		count := 0
		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			mu.Lock()
			count++
			n := count
			mu.Unlock()
			if n == 1 {
				w.WriteHeader(http.StatusBadGateway)
				return
			}
			_, _ = w.Write([]byte(docBody("recovered")))
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/recover")
		if !res.Success() {
			t.Fatalf("expected success, got %+v", res)
		}
		if tr.Total() != 2 {
			t.Errorf("expected 2 attempts, got %d", tr.Total())
		}
	})

	t.Run("transport errors are retried then surfaced", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(nil)
		tr.err = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/down")
		if res.Kind != KindTransport || res.StatusCode != 0 {
			t.Errorf("unexpected result: %+v", res)
		}
		if !strings.HasPrefix(res.ErrorMessage(), "Max retries exceeded: ") {
			t.Errorf("unexpected message %q", res.ErrorMessage())
		}
		if tr.Total() != 3 {
			t.Errorf("expected 3 attempts, got %d", tr.Total())
		}
	})

	t.Run("unexpected errors are not retried", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(nil)
		tr.err = errors.New("boom")
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/broken")
		if res.Kind != KindUnexpected {
			t.Errorf("expected unexpected kind, got %+v", res)
		}
		if !strings.HasPrefix(res.ErrorMessage(), "Unexpected: ") {
			t.Errorf("unexpected message %q", res.ErrorMessage())
		}
		if tr.Total() != 1 {
			t.Errorf("expected 1 attempt, got %d", tr.Total())
		}
	})

	t.Run("cancelled context stops before the network", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.NotFoundHandler())
		f := newTestFetcher(t, tr)

		cctx, cancel := context.WithCancel(ctx)
		cancel()

		res := f.FetchOne(cctx, "https://docs.example.com/page")
		if res.Success() {
			t.Error("expected failure")
		}
		if tr.Total() != 0 {
			t.Errorf("expected no attempts, got %d", tr.Total())
		}
	})
}

// TestFetchOne_SSRF tests that private targets never reach the network.
func TestFetchOne_SSRF(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		url  string
	}{
		{name: "loopback v4", url: "http://127.0.0.1/docs"},
		{name: "loopback v6", url: "http://[::1]/docs"},
		{name: "class A private", url: "http://10.1.2.3/docs"},
		{name: "class B private", url: "http://172.16.5.4/docs"},
		{name: "class C private", url: "http://192.168.1.1/docs"},
		{name: "link local metadata", url: "http://169.254.169.254/latest/meta-data"},
		{name: "localhost", url: "http://localhost:8080/docs"},
		{name: "metadata hostname", url: "http://metadata.google.internal/computeMetadata"},
		{name: "empty host", url: "http:///docs"},
		{name: "any resolved address private", url: "https://mixed.example.com/docs"},
		{name: "mapped v6 loopback", url: "http://[::ffff:127.0.0.1]/docs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte(docBody("secret")))
			}))
			resolver := fakeResolver{"mixed.example.com": {"93.184.216.34", "10.0.0.7"}}
			mem, err := cache.NewMemoryCache(time.Hour, 10)
			if err != nil {
				t.Fatalf("failed to create cache: %v", err)
			}
			mem.Put(context.Background(), tt.url, "cached secret", 200, nil)

			f := newTestFetcher(t, tr, WithResolver(resolver), WithCache(mem))
			res := f.FetchOne(context.Background(), tt.url)

			if res.Kind != KindBlocked || res.StatusCode != 0 || res.FromCache {
				t.Errorf("expected blocked result, got %+v", res)
			}
			if res.ErrorMessage() != "blocked_private_url" {
				t.Errorf("unexpected message %q", res.ErrorMessage())
			}
			if tr.Total() != 0 {
				t.Errorf("expected no network calls, got %d", tr.Total())
			}
		})
	}

	t.Run("redirect to private address is blocked", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Host == "docs.example.com" {
				http.Redirect(w, r, "http://169.254.169.254/latest", http.StatusFound)
				return
			}
			_, _ = w.Write([]byte(docBody("metadata")))
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(context.Background(), "https://docs.example.com/go")
		if res.Kind != KindBlocked {
			t.Errorf("expected blocked result, got %+v", res)
		}
		if tr.Calls("http://169.254.169.254/latest") != 0 {
			t.Error("redirect target must not be requested")
		}
	})

	t.Run("redirects are capped", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, r.URL.Path+"x", http.StatusFound)
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(context.Background(), "https://docs.example.com/loop")
		if res.Kind != KindUnexpected {
			t.Errorf("expected unexpected kind, got %+v", res)
		}
		if tr.Total() != MaxRedirects+1 {
			t.Errorf("expected %d requests, got %d", MaxRedirects+1, tr.Total())
		}
	})
}

// TestFetchOne_Cache tests cache-first reads and write-through.
func TestFetchOne_Cache(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("second fetch is served from cache", func(t *testing.T) {
		t.Parallel()

		body := docBody("cached page")
		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		mem, err := cache.NewMemoryCache(time.Hour, 10)
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		f := newTestFetcher(t, tr, WithCache(mem))

		first := f.FetchOne(ctx, "https://docs.example.com/page")
		if !first.Success() || first.FromCache {
			t.Fatalf("expected network success, got %+v", first)
		}

		second := f.FetchOne(ctx, "https://docs.example.com/page")
		if !second.Success() || !second.FromCache {
			t.Fatalf("expected cache hit, got %+v", second)
		}
		if second.Content != first.Content || second.Content != body {
			t.Error("expected identical content from cache")
		}
		if second.FetchTimeMS != 0 {
			t.Errorf("expected zero fetch time for cache hit, got %d", second.FetchTimeMS)
		}
		if tr.Total() != 1 {
			t.Errorf("expected one network call, got %d", tr.Total())
		}
	})

	t.Run("soft failures are not cached", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("tiny"))
		}))
		mem, err := cache.NewMemoryCache(time.Hour, 10)
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		f := newTestFetcher(t, tr, WithCache(mem))

		res := f.FetchOne(ctx, "https://docs.example.com/tiny")
		if res.Kind != KindSoftFailure || res.Content != "tiny" || res.StatusCode != 200 {
			t.Errorf("expected soft failure carrying content, got %+v", res)
		}
		if res.ErrorMessage() != "soft_failure" {
			t.Errorf("unexpected message %q", res.ErrorMessage())
		}
		if mem.Has(ctx, "https://docs.example.com/tiny") {
			t.Error("soft failure must not be cached")
		}
	})

	t.Run("failures are not cached", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.NotFoundHandler())
		mem, err := cache.NewMemoryCache(time.Hour, 10)
		if err != nil {
			t.Fatalf("failed to create cache: %v", err)
		}
		f := newTestFetcher(t, tr, WithCache(mem))

		f.FetchOne(ctx, "https://docs.example.com/gone")
		if mem.Len() != 0 {
			t.Error("failed fetch must not be cached")
		}
	})
}

// TestFetchOne_Request tests request headers and body decoding.
func TestFetchOne_Request(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("sends user agent and site headers", func(t *testing.T) {
		t.Parallel()

		var got http.Header
		var mu sync.Mutex
		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mu.Lock()
			got = r.Header.Clone()
			mu.Unlock()
			_, _ = w.Write([]byte(docBody("headers")))
		}))
		f := newTestFetcher(t, tr, WithSiteHeaders(func(host string) map[string]string {
			if host == "docs.example.com" {
				return map[string]string{"Cookie": "session=abc"}
			}
			return nil
		}))

		f.FetchOne(ctx, "https://docs.example.com/page")

		mu.Lock()
		defer mu.Unlock()
		if got.Get("User-Agent") != config.DefaultUserAgent {
			t.Errorf("unexpected user agent %q", got.Get("User-Agent"))
		}
		if got.Get("Cookie") != "session=abc" {
			t.Errorf("expected site cookie, got %q", got.Get("Cookie"))
		}
	})

	t.Run("decodes gzip bodies", func(t *testing.T) {
		t.Parallel()

		body := docBody("compressed")
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		_, _ = zw.Write([]byte(body))
		_ = zw.Close()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Encoding", "gzip")
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write(buf.Bytes())
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/gz")
		if !res.Success() {
			t.Fatalf("expected success, got %+v", res)
		}
		if res.Content != body {
			t.Errorf("expected decoded body, got %q", res.Content)
		}
	})

	t.Run("transcodes legacy charsets", func(t *testing.T) {
		t.Parallel()

		// "café" in ISO-8859-1
		raw := append([]byte("<html><body><p>"+strings.Repeat("menu ", 20)+"caf"), 0xe9)
		raw = append(raw, []byte("</p></body></html>")...)
		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/html; charset=iso-8859-1")
			_, _ = w.Write(raw)
		}))
		f := newTestFetcher(t, tr)

		res := f.FetchOne(ctx, "https://docs.example.com/latin1")
		if !strings.Contains(res.Content, "café") {
			t.Errorf("expected UTF-8 content, got %q", res.Content)
		}
	})
}

// TestFetchBatch tests ordering and concurrency of batch fetches.
func TestFetchBatch(t *testing.T) {
	t.Parallel()

	t.Run("results keep input order", func(t *testing.T) {
		t.Parallel()

		tr := newFakeTransport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/slow" {
				time.Sleep(50 * time.Millisecond)
			}
			_, _ = w.Write([]byte(docBody(r.URL.Path)))
		}))
		f := newTestFetcher(t, tr)

		urls := []string{
			"https://docs.example.com/slow",
			"https://docs.example.com/fast",
			"https://other.example.com/missing",
			"http://127.0.0.1/blocked",
		}
		results := f.FetchBatch(context.Background(), urls, 4)

		if len(results) != len(urls) {
			t.Fatalf("expected %d results, got %d", len(urls), len(results))
		}
		for i, res := range results {
			if res.URL != urls[i] {
				t.Errorf("result %d: expected %s, got %s", i, urls[i], res.URL)
			}
		}
		if !strings.Contains(results[0].Content, "/slow") {
			t.Error("expected slow page content in first slot")
		}
		if results[3].Kind != KindBlocked {
			t.Errorf("expected blocked result, got %+v", results[3])
		}
	})

	t.Run("in-flight requests stay within concurrency", func(t *testing.T) {
		t.Parallel()

		tr := newSlowTransport(30 * time.Millisecond)
		f := New(testConfig(t, config.WithConcurrency(2)),
			WithTransport(tr),
			WithResolver(fakeResolver{}),
		)
		t.Cleanup(func() { _ = f.Close() })

		urls := []string{
			"https://a.example.com/docs",
			"https://b.example.com/docs",
			"https://c.example.com/docs",
			"https://d.example.com/docs",
			"https://e.example.com/docs",
			"https://f.example.com/docs",
		}
		for _, res := range f.FetchBatch(context.Background(), urls, 0) {
			if !res.Success() {
				t.Errorf("expected success for %s, got %+v", res.URL, res)
			}
		}
		if peak := tr.Peak(); peak > 2 {
			t.Errorf("expected at most 2 requests in flight, got %d", peak)
		}
	})

	t.Run("same-host requests are spaced by the delay", func(t *testing.T) {
		t.Parallel()

		const delay = 60 * time.Millisecond
		tr := newSlowTransport(5 * time.Millisecond)
		f := New(testConfig(t, config.WithRateLimitDelay(delay), config.WithConcurrency(4)),
			WithTransport(tr),
			WithResolver(fakeResolver{}),
		)
		t.Cleanup(func() { _ = f.Close() })

		urls := []string{
			"https://docs.example.com/a",
			"https://docs.example.com/b",
			"https://docs.example.com/c",
			"https://docs.example.com/d",
			"https://other.example.com/a",
		}
		f.FetchBatch(context.Background(), urls, 4)

		starts := tr.Starts("docs.example.com")
		if len(starts) != 4 {
			t.Fatalf("expected 4 requests to docs.example.com, got %d", len(starts))
		}
		// Timer wake-ups can delay one start and shorten the next gap slightly.
		minGap := delay - 15*time.Millisecond
		for i := 1; i < len(starts); i++ {
			if gap := starts[i].Sub(starts[i-1]); gap < minGap {
				t.Errorf("request %d started %v after the previous one, want at least %v", i, gap, minGap)
			}
		}
		if span := starts[len(starts)-1].Sub(starts[0]); span < 3*delay-15*time.Millisecond {
			t.Errorf("expected the four requests to span about %v, got %v", 3*delay, span)
		}

		other := tr.Starts("other.example.com")
		if len(other) != 1 || other[0].Sub(starts[0]) >= delay {
			t.Error("another host should not wait behind docs.example.com")
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		t.Parallel()

		f := newTestFetcher(t, newFakeTransport(http.NotFoundHandler()))
		if got := f.FetchBatch(context.Background(), nil, 3); len(got) != 0 {
			t.Errorf("expected no results, got %d", len(got))
		}
	})
}

// TestClose tests that Close is idempotent.
func TestClose(t *testing.T) {
	t.Parallel()

	f := New(testConfig(t))
	if err := f.Close(); err != nil {
		t.Errorf("first close failed: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Errorf("second close failed: %v", err)
	}
}
