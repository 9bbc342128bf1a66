package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".docscout"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, err
	}

	if cf.Sites == nil {
		cf.Sites = make(map[string]SiteConfig)
	}
	if cf.Scrape.CacheBackend != "" {
		if _, err := ParseCacheBackend(cf.Scrape.CacheBackend); err != nil {
			return nil, err
		}
	}
	if cf.Scrape.Mode != "" {
		if _, err := ParseMode(cf.Scrape.Mode); err != nil {
			return nil, err
		}
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .docscout in the current directory
// 3. Look for .docscout in the user's home directory
// 4. Look for config.yaml in the XDG config directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	xdgConfig := filepath.Join(XDGConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig
	}

	return ""
}

// CacheBackend names a page cache implementation.
type CacheBackend string

const (
	// CacheBackendFile stores one JSON file per URL.
	CacheBackendFile CacheBackend = "file"

	// CacheBackendSQLite stores pages in the docscout SQLite database.
	CacheBackendSQLite CacheBackend = "sqlite"

	// CacheBackendMemory keeps pages in process memory only.
	CacheBackendMemory CacheBackend = "memory"
)

// ParseCacheBackend converts a string into a CacheBackend.
// An empty string selects CacheBackendFile.
func ParseCacheBackend(s string) (CacheBackend, error) {
	switch CacheBackend(s) {
	case "":
		return CacheBackendFile, nil
	case CacheBackendFile, CacheBackendSQLite, CacheBackendMemory:
		return CacheBackend(s), nil
	default:
		return "", ErrInvalidCacheBackend
	}
}
