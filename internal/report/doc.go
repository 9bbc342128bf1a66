// Package report writes scrape reports.
//
// JSONWriter emits the report document consumed by other tools,
// MarkdownWriter renders a readable digest, and SimpleWriter prints a
// short plain-text summary for the terminal. All of them implement Writer.
package report
