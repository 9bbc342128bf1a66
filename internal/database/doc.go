// Package database provides SQLite-based storage for docscout.
//
// This package implements the CrawlDB, which stores:
//   - Fetched page bodies, as an alternative backend for the page cache
//   - Scrape reports for the history command
//
// SQLite is used via modernc.org/sqlite, so the binary needs no CGO and the
// whole store is a single file under the XDG data directory. WAL mode keeps
// cache reads from blocking behind report writes.
package database
