package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

// TestNewReport tests that a new report serialises with empty lists.
func TestNewReport(t *testing.T) {
	t.Parallel()

	r := NewReport("hono", "quick")
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}

	got := string(data)
	for _, want := range []string{
		`"topic":"hono"`,
		`"mode":"quick"`,
		`"version":null`,
		`"changelog":[]`,
		`"pages":[]`,
		`"urls_fetched":[]`,
		`"urls_skipped_disallowed":0`,
	} {
		if !strings.Contains(got, want) {
			t.Errorf("expected %s in %s", want, got)
		}
	}
}

// TestReportSetVersion tests that the first detected version wins.
func TestReportSetVersion(t *testing.T) {
	t.Parallel()

	r := NewReport("hono", "default")

	if r.SetVersion("") {
		t.Error("empty version should not be stored")
	}
	if !r.SetVersion("4.3.2") {
		t.Error("expected first version to be stored")
	}
	if r.SetVersion("5.0.0") {
		t.Error("expected later version to be ignored")
	}
	if !r.HasVersion() || *r.Version != "4.3.2" {
		t.Errorf("expected 4.3.2, got %v", r.Version)
	}
}

// TestReportAddPageAndFinalize tests page accumulation and derived stats.
func TestReportAddPageAndFinalize(t *testing.T) {
	t.Parallel()

	r := NewReport("hono", "default")
	r.AddPage(Page{URL: "https://hono.dev/docs/"})
	r.AddPage(Page{URL: "https://hono.dev/docs/api"})
	r.Stats.URLsCached = 1
	r.Finalize(1234 * time.Millisecond)

	if r.Stats.PagesExtracted != 2 {
		t.Errorf("expected 2 pages, got %d", r.Stats.PagesExtracted)
	}
	if r.Stats.CacheHits != 1 {
		t.Errorf("expected cache hits to mirror cached count, got %d", r.Stats.CacheHits)
	}
	if r.Stats.TotalTimeSeconds != 1.23 {
		t.Errorf("expected 1.23 seconds, got %v", r.Stats.TotalTimeSeconds)
	}
	if len(r.URLsFetched) != 2 || r.URLsFetched[1] != "https://hono.dev/docs/api" {
		t.Errorf("unexpected urls_fetched: %v", r.URLsFetched)
	}
}

// TestNewPage tests the storage caps.
func TestNewPage(t *testing.T) {
	t.Parallel()

	t.Run("caps every list", func(t *testing.T) {
		t.Parallel()

		many := make([]string, 200)
		page := NewPage("u", "t", strings.Repeat("é", MaxPageTextLength+10), many, many, many, 7)

		if got := len([]rune(page.Text)); got != MaxPageTextLength {
			t.Errorf("expected %d characters, got %d", MaxPageTextLength, got)
		}
		if len(page.CodeBlocks) != MaxCodeBlocks {
			t.Errorf("expected %d code blocks, got %d", MaxCodeBlocks, len(page.CodeBlocks))
		}
		if len(page.Headings) != MaxHeadings {
			t.Errorf("expected %d headings, got %d", MaxHeadings, len(page.Headings))
		}
		if len(page.Tables) != MaxTables {
			t.Errorf("expected %d tables, got %d", MaxTables, len(page.Tables))
		}
		if page.WordCount != 7 {
			t.Errorf("expected word count to be kept, got %d", page.WordCount)
		}
	})

	t.Run("nil lists become empty", func(t *testing.T) {
		t.Parallel()

		page := NewPage("u", "t", "short", nil, nil, nil, 1)
		if page.CodeBlocks == nil || page.Headings == nil || page.Tables == nil {
			t.Error("expected non-nil slices")
		}
		if page.Text != "short" {
			t.Errorf("expected text unchanged, got %q", page.Text)
		}
	})
}
