package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/nao1215/docscout/internal/cache"
)

var _ cache.Cache = (*PageStore)(nil)

// PageStore is a page cache backed by the pages table.
type PageStore struct {
	db         *sql.DB
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time
}

// PageStoreOption configures a PageStore.
type PageStoreOption func(*PageStore)

// WithMaxEntries bounds the number of stored pages. Expired pages are
// removed first, then the oldest. Zero means unbounded.
func WithMaxEntries(n int) PageStoreOption {
	return func(s *PageStore) {
		s.maxEntries = n
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) PageStoreOption {
	return func(s *PageStore) {
		s.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) PageStoreOption {
	return func(s *PageStore) {
		s.now = now
	}
}

// PageStore returns a cache over this database whose entries live for ttl.
func (cdb *CrawlDB) PageStore(ttl time.Duration, opts ...PageStoreOption) *PageStore {
	s := &PageStore{
		db:     cdb.db,
		ttl:    ttl,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Get implements cache.Cache. Expired rows are deleted as a side effect.
func (s *PageStore) Get(ctx context.Context, url string) (cache.Entry, bool) {
	query := `
	SELECT content, status_code, headers, cached_at, expires_at
	FROM pages
	WHERE url = ?
	`

	var (
		entry       = cache.Entry{URL: url}
		headersJSON sql.NullString
		cachedAt    int64
		expiresAt   int64
	)
	err := s.db.QueryRowContext(ctx, query, url).Scan(
		&entry.Content,
		&entry.StatusCode,
		&headersJSON,
		&cachedAt,
		&expiresAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return cache.Entry{}, false
	}
	if err != nil {
		s.logger.Debug("cache read failed", "url", url, "error", err)
		return cache.Entry{}, false
	}

	entry.CachedAt = time.Unix(0, cachedAt)
	entry.ExpiresAt = time.Unix(0, expiresAt)
	if entry.Expired(s.now()) {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE url = ?`, url); err != nil {
			s.logger.Debug("failed to delete expired page", "url", url, "error", err)
		}
		return cache.Entry{}, false
	}

	entry.Headers = map[string]string{}
	if headersJSON.Valid && headersJSON.String != "" {
		if err := json.Unmarshal([]byte(headersJSON.String), &entry.Headers); err != nil {
			return cache.Entry{}, false
		}
	}
	return entry, true
}

// Has implements cache.Cache.
func (s *PageStore) Has(ctx context.Context, url string) bool {
	_, ok := s.Get(ctx, url)
	return ok
}

// Put implements cache.Cache. Failures are logged and swallowed.
func (s *PageStore) Put(ctx context.Context, url, content string, statusCode int, headers map[string]string) {
	if headers == nil {
		headers = map[string]string{}
	}
	headersJSON, err := json.Marshal(headers)
	if err != nil {
		s.logger.Warn("cache write failed", "url", url, "error", err)
		return
	}

	now := s.now()
	query := `
	INSERT INTO pages (url, content, status_code, headers, cached_at, expires_at)
	VALUES (?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO UPDATE SET
		content = excluded.content,
		status_code = excluded.status_code,
		headers = excluded.headers,
		cached_at = excluded.cached_at,
		expires_at = excluded.expires_at
	`
	_, err = s.db.ExecContext(ctx, query,
		url,
		content,
		statusCode,
		string(headersJSON),
		now.UnixNano(),
		now.Add(s.ttl).UnixNano(),
	)
	if err != nil {
		s.logger.Warn("cache write failed", "url", url, "error", err)
		return
	}

	if s.maxEntries > 0 {
		if err := s.evict(ctx, now); err != nil {
			s.logger.Warn("cache eviction failed", "error", err)
		}
	}
}

// evict trims the table to maxEntries rows.
func (s *PageStore) evict(ctx context.Context, now time.Time) error {
	count, err := s.Len(ctx)
	if err != nil || count <= s.maxEntries {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM pages WHERE expires_at <= ?`, now.UnixNano()); err != nil {
		return err
	}
	if count, err = s.Len(ctx); err != nil || count <= s.maxEntries {
		return err
	}

	query := `
	DELETE FROM pages WHERE url IN (
		SELECT url FROM pages ORDER BY cached_at ASC, rowid ASC LIMIT ?
	)
	`
	_, err = s.db.ExecContext(ctx, query, count-s.maxEntries)
	return err
}

// Len returns the number of stored pages, expired ones included.
func (s *PageStore) Len(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pages`).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// Clear removes every cached page.
func (s *PageStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pages`)
	return err
}
