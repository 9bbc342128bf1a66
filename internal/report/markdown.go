package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"

	"github.com/nao1215/docscout/internal/model"
)

// MarkdownWriter renders a report as a Markdown digest: run summary, fetch
// outcome chart, changelog, then one section per page.
type MarkdownWriter struct {
	baseWriter

	// maxCodeBlocks is how many code blocks are shown per page.
	maxCodeBlocks int
}

// MarkdownWriterOption configures a MarkdownWriter.
type MarkdownWriterOption func(*MarkdownWriter)

// WithMaxCodeBlocks limits the code blocks rendered per page. Zero hides them.
func WithMaxCodeBlocks(n int) MarkdownWriterOption {
	return func(w *MarkdownWriter) {
		w.maxCodeBlocks = n
	}
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer, opts ...MarkdownWriterOption) *MarkdownWriter {
	w := &MarkdownWriter{
		baseWriter:    newBaseWriter(output),
		maxCodeBlocks: 3,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.Report) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeStats(md, report)
	w.writeChangelog(md, report)
	w.writePages(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.Report) {
	md.H1("docscout: " + report.Topic)
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Topic", report.Topic},
			{"Mode", report.Mode},
			{"Version", versionText(report)},
			{"Pages", strconv.Itoa(len(report.Pages))},
			{"Time", strconv.FormatFloat(report.Stats.TotalTimeSeconds, 'f', 2, 64) + "s"},
		},
	})
	md.PlainText("")

	if report.Partial {
		md.Caution("The run was interrupted before every phase finished. This report is partial.")
		md.PlainText("")
	}
}

func (w *MarkdownWriter) writeStats(md *markdown.Markdown, report *model.Report) {
	s := report.Stats

	md.H2("Crawl Statistics")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"URLs discovered", strconv.Itoa(s.URLsDiscovered)},
			{"URLs fetched", strconv.Itoa(s.URLsFetched)},
			{"Served from cache", strconv.Itoa(s.URLsCached)},
			{"Failed", strconv.Itoa(s.URLsFailed)},
			{"Soft failures", strconv.Itoa(s.SoftFailures)},
			{"Disallowed by robots.txt", strconv.Itoa(s.URLsSkippedDisallowed)},
			{"Near-duplicates", strconv.Itoa(s.URLsSkippedDedup)},
			{"**Pages extracted**", "**" + strconv.Itoa(s.PagesExtracted) + "**"},
		},
	})
	md.PlainText("")

	if s.URLsFetched > 0 {
		w.writeOutcomeChart(md, s)
	}

	switch {
	case s.PagesExtracted == 0 && s.URLsFetched > 0:
		md.Warningf("No pages were extracted. %d fetch(es) failed and %d were soft failures.",
			s.URLsFailed, s.SoftFailures)
	case s.PagesExtracted == 0:
		md.Note("No documentation URLs were found.")
	case s.SoftFailures > 0:
		md.Importantf("%d page(s) looked like login walls or error pages and were skipped.", s.SoftFailures)
	default:
		md.Tip("All fetched pages were usable.")
	}
	md.PlainText("")
}

// writeOutcomeChart draws a mermaid pie chart of what happened to fetched URLs.
func (w *MarkdownWriter) writeOutcomeChart(md *markdown.Markdown, s model.Stats) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Fetch Outcomes"),
		piechart.WithShowData(true),
	)

	outcomes := []struct {
		label string
		count int
	}{
		{"Extracted", s.PagesExtracted},
		{"Duplicate", s.URLsSkippedDedup},
		{"Soft failure", s.SoftFailures},
		{"Failed", s.URLsFailed},
	}
	for _, o := range outcomes {
		if o.count > 0 {
			chart.LabelAndIntValue(o.label, uint64(o.count)) //nolint:gosec // counts are never negative
		}
	}

	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

func (w *MarkdownWriter) writeChangelog(md *markdown.Markdown, report *model.Report) {
	md.H2("Changelog")
	md.PlainText("")

	if len(report.Changelog) == 0 {
		md.PlainText("No changelog found.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Changelog))
	for i, e := range report.Changelog {
		date := e.Date
		if date == "" {
			date = "-"
		}
		rows[i] = []string{e.Version, date, tableCell(e.Summary, 80)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Version", "Date", "Summary"},
		Rows:   rows,
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writePages(md *markdown.Markdown, report *model.Report) {
	md.H2("Pages")
	md.PlainText("")

	if len(report.Pages) == 0 {
		md.PlainText("No pages extracted.")
		md.PlainText("")
		return
	}

	for _, p := range report.Pages {
		title := p.Title
		if title == "" {
			title = p.URL
		}
		md.H3(title)
		md.PlainText("")

		source := "network"
		if p.FromCache {
			source = "cache"
		}
		md.PlainTextf("<%s> (%d words, %d code blocks, from %s)", p.URL, p.WordCount, len(p.CodeBlocks), source)
		md.PlainText("")

		if len(p.Headings) > 1 {
			md.BulletList(p.Headings[1:]...)
			md.PlainText("")
		}

		for i, code := range p.CodeBlocks {
			if i >= w.maxCodeBlocks {
				break
			}
			md.CodeBlocks(markdown.SyntaxHighlight(""), code)
			md.PlainText("")
		}

		for _, table := range p.Tables {
			md.PlainText(table)
			md.PlainText("")
		}
	}
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [docscout](https://github.com/nao1215/docscout)*")
}

func versionText(report *model.Report) string {
	if report.Version == nil {
		return "unknown"
	}
	return *report.Version
}

// tableCell flattens s onto one line and truncates it to maxLen characters.
func tableCell(s string, maxLen int) string {
	s = strings.Join(strings.Fields(strings.ReplaceAll(s, "|", "/")), " ")
	return truncateString(s, maxLen)
}

// truncateString truncates s to maxLen characters with an ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
