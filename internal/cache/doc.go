// Package cache provides page caches for the fetcher.
//
// FileCache writes one JSON file per URL and is the default backend.
// MemoryCache is a bounded in-process cache for one-off runs. The SQLite
// backend lives in the database package and satisfies the same Cache
// interface. All backends expire entries lazily on read.
package cache
