// Package extractor turns raw HTML into structured documentation content.
//
// Navigation, page chrome and scripts are removed before text is collected,
// so that what remains is the body of the documentation page. Similarity
// compares two extracted texts for near-duplicate detection.
package extractor
