// Package model defines the data structures shared by the scraper packages.
//
// This package contains the following main types:
//   - Report: the result of one scrape run, serialised as the JSON output
//   - Page: one accepted documentation page
//   - Stats: counters for every fetch outcome
//   - ChangelogEntry: one release found on a changelog page
//
// The models live in their own package because the pipeline, report
// writers and history database all need them.
package model
