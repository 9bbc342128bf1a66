package cache

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"
)

// fileSuffix is the extension of every entry file in the cache directory.
const fileSuffix = ".json"

// FileCache stores each page as a JSON file named after a hash of its URL.
type FileCache struct {
	dir        string
	ttl        time.Duration
	maxEntries int
	logger     *slog.Logger
	now        func() time.Time

	// mu serialises writes so eviction sees a consistent directory.
	mu sync.Mutex
}

// FileCacheOption configures a FileCache.
type FileCacheOption func(*FileCache)

// WithMaxEntries bounds the number of files. When a write would exceed the
// bound, expired entries are removed first and then the oldest ones.
// Zero means unbounded.
func WithMaxEntries(n int) FileCacheOption {
	return func(c *FileCache) {
		c.maxEntries = n
	}
}

// WithLogger sets the logger used for write failures.
func WithLogger(logger *slog.Logger) FileCacheOption {
	return func(c *FileCache) {
		c.logger = logger
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) FileCacheOption {
	return func(c *FileCache) {
		c.now = now
	}
}

// NewFileCache creates the cache directory if needed.
func NewFileCache(dir string, ttl time.Duration, opts ...FileCacheOption) (*FileCache, error) {
	c := &FileCache{
		dir:    dir,
		ttl:    ttl,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return c, nil
}

// Dir returns the cache directory.
func (c *FileCache) Dir() string {
	return c.dir
}

// Key returns the file name stem used for url.
func Key(url string) string {
	sum := blake2b.Sum256([]byte(url))
	return hex.EncodeToString(sum[:16])
}

func (c *FileCache) path(url string) string {
	return filepath.Join(c.dir, Key(url)+fileSuffix)
}

// Get implements Cache. Expired files are deleted as a side effect.
func (c *FileCache) Get(_ context.Context, url string) (Entry, bool) {
	path := c.path(url)
	entry, err := readEntry(path)
	if err != nil {
		return Entry{}, false
	}
	if entry.Expired(c.now()) {
		_ = os.Remove(path)
		return Entry{}, false
	}
	return entry, true
}

// Has implements Cache.
func (c *FileCache) Has(ctx context.Context, url string) bool {
	_, ok := c.Get(ctx, url)
	return ok
}

// Put implements Cache. Failures are logged and swallowed.
func (c *FileCache) Put(_ context.Context, url, content string, statusCode int, headers map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	path := c.path(url)
	if c.maxEntries > 0 {
		// Overwriting an existing entry does not grow the cache.
		if _, err := os.Stat(path); err != nil {
			c.makeRoomLocked()
		}
	}

	entry := newEntry(url, content, statusCode, headers, c.now(), c.ttl)
	if err := c.writeEntry(path, entry); err != nil {
		c.logger.Warn("cache write failed", "url", url, "error", err)
	}
}

// writeEntry writes through a temp file so readers never see a partial entry.
func (c *FileCache) writeEntry(path string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(c.dir, ".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// makeRoomLocked evicts so that one more entry fits under maxEntries.
func (c *FileCache) makeRoomLocked() {
	if c.Size() < c.maxEntries {
		return
	}
	c.EvictExpired()

	size := c.Size()
	if size < c.maxEntries {
		return
	}
	c.evictOldest(size - c.maxEntries + 1)
}

type agedFile struct {
	path     string
	cachedAt time.Time
}

// evictOldest removes the count entries with the earliest CachedAt.
func (c *FileCache) evictOldest(count int) {
	var files []agedFile
	for _, path := range c.entryFiles() {
		entry, err := readEntry(path)
		if err != nil {
			_ = os.Remove(path)
			continue
		}
		files = append(files, agedFile{path: path, cachedAt: entry.CachedAt})
	}

	slices.SortFunc(files, func(a, b agedFile) int {
		return a.cachedAt.Compare(b.cachedAt)
	})
	for i := 0; i < count && i < len(files); i++ {
		_ = os.Remove(files[i].path)
	}
}

// EvictExpired removes expired and unreadable entries.
func (c *FileCache) EvictExpired() {
	now := c.now()
	for _, path := range c.entryFiles() {
		entry, err := readEntry(path)
		if err != nil || entry.Expired(now) {
			_ = os.Remove(path)
		}
	}
}

// Clear removes every entry.
func (c *FileCache) Clear() {
	for _, path := range c.entryFiles() {
		_ = os.Remove(path)
	}
}

// Size returns the number of entry files, expired ones included.
func (c *FileCache) Size() int {
	return len(c.entryFiles())
}

func (c *FileCache) entryFiles() []string {
	dirEntries, err := os.ReadDir(c.dir)
	if err != nil {
		return nil
	}
	files := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !strings.HasSuffix(de.Name(), fileSuffix) {
			continue
		}
		files = append(files, filepath.Join(c.dir, de.Name()))
	}
	return files
}

var errCorruptEntry = errors.New("corrupt cache entry")

func readEntry(path string) (Entry, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from a hash inside the cache dir
	if err != nil {
		return Entry{}, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", errCorruptEntry, err) //nolint:errorlint // keep sentinel as the wrapped error
	}
	return entry, nil
}
