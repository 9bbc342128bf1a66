// Package main provides the entry point for the docscout CLI.
//
// docscout crawls the documentation site of a library or tool, extracts
// clean page text, code blocks, and tables, detects the current version
// and recent changelog entries, and prints a structured report.
//
// Usage:
//
//	docscout <topic> --urls https://hono.dev/docs/
//	docscout scrape <topic> --mode deep --urls https://hono.dev/docs/
//	docscout history <topic>
//
// See --help for all available options.
package main

func main() {
	Execute()
}
