package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/docscout/internal/model"
)

// createTestReport creates a report with sample data for testing.
func createTestReport() *model.Report {
	r := model.NewReport("hono", "default")
	r.SetVersion("4.3.2")
	r.Changelog = []model.ChangelogEntry{
		{Version: "4.3.2", Date: "2024-05-01", Summary: "- Fix router | matcher\n- Types"},
		{Version: "4.3.1"},
	}

	p := model.NewPage("https://hono.dev/docs/routing", "Routing", "Routing text <b>",
		[]string{"app.get('/', (c) => c.text('Hello'))"},
		[]string{"Routing", "Path parameters"},
		[]string{"| a | b |\n| --- | --- |\n| 1 | 2 |"},
		120)
	r.AddPage(p)

	cached := model.NewPage("https://hono.dev/docs/middleware", "", "Middleware text", nil, nil, nil, 40)
	cached.FromCache = true
	r.AddPage(cached)

	r.Stats.URLsDiscovered = 10
	r.Stats.URLsFetched = 5
	r.Stats.URLsCached = 1
	r.Stats.URLsFailed = 1
	r.Stats.SoftFailures = 1
	r.Stats.URLsSkippedDedup = 1
	r.Finalize(1234 * time.Millisecond)
	return r
}

// TestJSONWriter tests the JSON writer.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	t.Run("outputs the report document", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		var decoded map[string]any
		if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
			t.Fatalf("output is not valid JSON: %v", err)
		}
		for _, key := range []string{"topic", "mode", "version", "changelog", "pages", "stats", "urls_fetched"} {
			if _, ok := decoded[key]; !ok {
				t.Errorf("expected key %q in output", key)
			}
		}
		stats, ok := decoded["stats"].(map[string]any)
		if !ok {
			t.Fatal("expected stats object")
		}
		if stats["cache_hits"] != float64(1) || stats["total_time_seconds"] != 1.23 {
			t.Errorf("unexpected stats %v", stats)
		}
	})

	t.Run("compact output by default", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if strings.Count(out, "\n") != 1 || !strings.HasSuffix(out, "\n") {
			t.Error("expected a single line followed by a newline")
		}
	})

	t.Run("does not escape html", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Routing text <b>") {
			t.Error("expected raw angle brackets in page text")
		}
	})

	t.Run("pretty print", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithPrettyPrint()).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n  \"topic\": \"hono\"") {
			t.Error("expected two-space indentation")
		}
	})

	t.Run("custom indent", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewJSONWriter(&buf, WithIndent(">", "\t")).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "\n>\t\"topic\"") {
			t.Error("expected prefix and tab indentation")
		}
	})

	t.Run("empty report keeps arrays and null version", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := model.NewReport("none", "quick")
		r.Finalize(0)
		if _, err := NewJSONWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{`"version":null`, `"pages":[]`, `"changelog":[]`, `"urls_fetched":[]`} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %s in %s", want, out)
			}
		}
		if strings.Contains(out, `"partial"`) {
			t.Error("a complete report should omit the partial flag")
		}
	})

	t.Run("interrupted run carries the partial flag", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := model.NewReport("none", "quick")
		r.Partial = true
		if _, err := NewJSONWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), `"partial":true`) {
			t.Errorf("expected partial flag in %s", buf.String())
		}
	})
}

// TestMarkdownWriter tests the Markdown writer.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	write := func(t *testing.T, r *model.Report, opts ...MarkdownWriterOption) string {
		t.Helper()
		var buf bytes.Buffer
		if _, err := NewMarkdownWriter(&buf, opts...).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		return buf.String()
	}

	t.Run("writes header and stats", func(t *testing.T) {
		t.Parallel()

		out := write(t, createTestReport())
		for _, want := range []string{"# docscout: hono", "4.3.2", "Crawl Statistics", "Near-duplicates", "1.23s"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output", want)
			}
		}
	})

	t.Run("includes outcome chart", func(t *testing.T) {
		t.Parallel()

		out := write(t, createTestReport())
		if !strings.Contains(out, "```mermaid") || !strings.Contains(out, "Fetch Outcomes") {
			t.Error("expected mermaid pie chart")
		}
	})

	t.Run("writes changelog table", func(t *testing.T) {
		t.Parallel()

		out := write(t, createTestReport())
		if !strings.Contains(out, "2024-05-01") {
			t.Error("expected changelog date")
		}
		if strings.Contains(out, "router | matcher") {
			t.Error("pipes in summaries must not break the table")
		}
	})

	t.Run("writes page sections", func(t *testing.T) {
		t.Parallel()

		out := write(t, createTestReport())
		for _, want := range []string{"### Routing", "Path parameters", "c.text('Hello')", "from cache", "### https://hono.dev/docs/middleware"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output", want)
			}
		}
	})

	t.Run("hides code blocks when limit is zero", func(t *testing.T) {
		t.Parallel()

		out := write(t, createTestReport(), WithMaxCodeBlocks(0))
		if strings.Contains(out, "c.text('Hello')") {
			t.Error("expected code blocks to be hidden")
		}
	})

	t.Run("handles empty report", func(t *testing.T) {
		t.Parallel()

		r := model.NewReport("none", "quick")
		r.Finalize(0)
		out := write(t, r)
		for _, want := range []string{"unknown", "No changelog found.", "No pages extracted.", "No documentation URLs were found."} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output", want)
			}
		}
	})

	t.Run("warns when every fetch failed", func(t *testing.T) {
		t.Parallel()

		r := model.NewReport("broken", "default")
		r.Stats.URLsFetched = 2
		r.Stats.URLsFailed = 2
		r.Finalize(0)
		if out := write(t, r); !strings.Contains(out, "No pages were extracted") {
			t.Error("expected warning for a run without pages")
		}
	})

	t.Run("flags an interrupted run", func(t *testing.T) {
		t.Parallel()

		if strings.Contains(write(t, createTestReport()), "[!CAUTION]") {
			t.Error("a complete report should carry no caution")
		}
		r := createTestReport()
		r.Partial = true
		if out := write(t, r); !strings.Contains(out, "[!CAUTION]") || !strings.Contains(out, "report is partial") {
			t.Errorf("expected partial caution, got:\n%s", out)
		}
	})
}

// TestSimpleWriter tests the plain-text summary.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes header and stats", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		for _, want := range []string{"DOCSCOUT REPORT", "Topic:   hono", "Version: 4.3.2", "fetched:     5 (1 from cache)", "* 4.3.2 (2024-05-01)"} {
			if !strings.Contains(out, want) {
				t.Errorf("expected %q in output:\n%s", want, out)
			}
		}
		if strings.Contains(out, "PAGES") {
			t.Error("pages are listed only in verbose mode")
		}
	})

	t.Run("verbose lists pages", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf, WithVerbose(true)).Write(createTestReport()); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "[+] https://hono.dev/docs/routing (120 words)") {
			t.Error("expected network page line")
		}
		if !strings.Contains(out, "[c] https://hono.dev/docs/middleware") {
			t.Error("expected cached page marker")
		}
	})

	t.Run("show empty sections", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		r := model.NewReport("none", "quick")
		if _, err := NewSimpleWriter(&buf, WithShowEmpty(true), WithVerbose(true)).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		out := buf.String()
		if !strings.Contains(out, "No changelog found") || !strings.Contains(out, "No pages extracted") {
			t.Errorf("expected empty sections, got:\n%s", out)
		}
	})

	t.Run("marks a partial report", func(t *testing.T) {
		t.Parallel()

		r := createTestReport()
		r.Partial = true
		var buf bytes.Buffer
		if _, err := NewSimpleWriter(&buf).Write(r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.Contains(buf.String(), "Status:  partial (interrupted)") {
			t.Errorf("expected partial status, got:\n%s", buf.String())
		}
	})
}

type failingWriter struct{}

func (failingWriter) Write(*model.Report) (int, error) {
	return 0, errors.New("disk full")
}

// TestMultiWriter tests writing to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	t.Run("writes to all writers", func(t *testing.T) {
		t.Parallel()

		var jsonBuf, textBuf bytes.Buffer
		m := NewMultiWriter(NewJSONWriter(&jsonBuf), NewSimpleWriter(&textBuf))
		n, err := m.Write(createTestReport())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n != jsonBuf.Len()+textBuf.Len() {
			t.Errorf("expected %d bytes, got %d", jsonBuf.Len()+textBuf.Len(), n)
		}
	})

	t.Run("stops at first error", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		m := NewMultiWriter(failingWriter{}, NewJSONWriter(&buf))
		if _, err := m.Write(createTestReport()); err == nil {
			t.Error("expected error")
		}
		if buf.Len() != 0 {
			t.Error("later writers must not run after an error")
		}
	})

	t.Run("handles empty writers list", func(t *testing.T) {
		t.Parallel()

		n, err := NewMultiWriter().Write(createTestReport())
		if err != nil || n != 0 {
			t.Errorf("expected (0, nil), got (%d, %v)", n, err)
		}
	})
}

// TestTruncateString tests the truncation helper.
func TestTruncateString(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input  string
		maxLen int
		want   string
	}{
		{input: "short", maxLen: 10, want: "short"},
		{input: "exactly10!", maxLen: 10, want: "exactly10!"},
		{input: "this is too long", maxLen: 10, want: "this is..."},
		{input: "abcdef", maxLen: 3, want: "abc"},
		{input: "ééééé", maxLen: 4, want: "é..."},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()

			if got := truncateString(tt.input, tt.maxLen); got != tt.want {
				t.Errorf("truncateString(%q, %d) = %q, want %q", tt.input, tt.maxLen, got, tt.want)
			}
		})
	}
}
