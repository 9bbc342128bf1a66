// Package pipeline runs a documentation scrape as a sequence of steps.
//
// A run moves through four phases that share one State: seed the queue
// with the caller's URLs, discover more URLs from sitemaps and robots.txt,
// fetch and expand pages in batches, and probe for a changelog. Scraper
// wires the phases together and assembles the final report on every exit
// path, including cancellation.
package pipeline
