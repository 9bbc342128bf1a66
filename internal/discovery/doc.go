// Package discovery finds documentation URLs and release information.
//
// It parses sitemaps and robots.txt, generates candidate sitemap and
// changelog locations for a site, and recognises version strings and
// changelog entries in extracted page text. Everything here is pure text
// processing; fetching is left to the caller.
package discovery
