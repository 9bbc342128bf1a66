package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/docscout/internal/model"
)

// SimpleWriter prints a plain-text run summary for the terminal.
type SimpleWriter struct {
	baseWriter

	// showEmpty prints the changelog section even when nothing was found.
	showEmpty bool

	// verbose lists every page instead of only the count.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty shows sections that have nothing to report.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose lists every extracted page.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{baseWriter: newBaseWriter(output)}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary.
func (w *SimpleWriter) Write(report *model.Report) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, report)
	w.writeStats(&sb, report.Stats)
	w.writeChangelog(&sb, report.Changelog)
	w.writePages(&sb, report.Pages)
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")

	return io.WriteString(w.output, sb.String())
}

func (w *SimpleWriter) writeHeader(sb *strings.Builder, report *model.Report) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("DOCSCOUT REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Topic:   %s\n", report.Topic)
	fmt.Fprintf(sb, "Mode:    %s\n", report.Mode)
	fmt.Fprintf(sb, "Version: %s\n", versionText(report))
	fmt.Fprintf(sb, "Time:    %.2fs\n", report.Stats.TotalTimeSeconds)
	if report.Partial {
		sb.WriteString("Status:  partial (interrupted)\n")
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writeStats(sb *strings.Builder, s model.Stats) {
	section(sb, "STATISTICS")

	fmt.Fprintf(sb, "  discovered:  %d\n", s.URLsDiscovered)
	fmt.Fprintf(sb, "  fetched:     %d (%d from cache)\n", s.URLsFetched, s.URLsCached)
	fmt.Fprintf(sb, "  failed:      %d\n", s.URLsFailed)
	fmt.Fprintf(sb, "  soft fail:   %d\n", s.SoftFailures)
	fmt.Fprintf(sb, "  disallowed:  %d\n", s.URLsSkippedDisallowed)
	fmt.Fprintf(sb, "  duplicates:  %d\n", s.URLsSkippedDedup)
	fmt.Fprintf(sb, "  extracted:   %d pages\n\n", s.PagesExtracted)
}

func (w *SimpleWriter) writeChangelog(sb *strings.Builder, entries []model.ChangelogEntry) {
	if len(entries) == 0 && !w.showEmpty {
		return
	}
	section(sb, "CHANGELOG")

	if len(entries) == 0 {
		sb.WriteString("  No changelog found\n\n")
		return
	}
	for _, e := range entries {
		if e.Date != "" {
			fmt.Fprintf(sb, "  * %s (%s)\n", e.Version, e.Date)
		} else {
			fmt.Fprintf(sb, "  * %s\n", e.Version)
		}
	}
	sb.WriteString("\n")
}

func (w *SimpleWriter) writePages(sb *strings.Builder, pages []model.Page) {
	if !w.verbose || (len(pages) == 0 && !w.showEmpty) {
		return
	}
	section(sb, "PAGES")

	if len(pages) == 0 {
		sb.WriteString("  No pages extracted\n\n")
		return
	}
	for _, p := range pages {
		marker := "+"
		if p.FromCache {
			marker = "c"
		}
		fmt.Fprintf(sb, "  [%s] %s (%d words)\n", marker, p.URL, p.WordCount)
	}
	sb.WriteString("\n")
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}
