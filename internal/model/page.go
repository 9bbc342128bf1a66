package model

// Caps applied to a page before it is stored in a report.
const (
	// MaxPageTextLength is the maximum number of characters of page text kept.
	MaxPageTextLength = 50000

	// MaxCodeBlocks is the maximum number of code blocks kept per page.
	MaxCodeBlocks = 50

	// MaxHeadings is the maximum number of headings kept per page.
	MaxHeadings = 100

	// MaxTables is the maximum number of tables kept per page.
	MaxTables = 30
)

// Page is one accepted documentation page.
// A page is created once per successful, non-duplicate fetch and is not
// modified afterwards.
type Page struct {
	// URL is the address the page was fetched from.
	URL string `json:"url"`

	// Title is the first heading of the page, or its <title>.
	Title string `json:"title"`

	// Text is the extracted body text, capped at MaxPageTextLength characters.
	Text string `json:"text"`

	// CodeBlocks holds preformatted code samples.
	CodeBlocks []string `json:"code_blocks"`

	// Headings holds h1-h6 text in document order.
	Headings []string `json:"headings"`

	// Tables holds tables rendered as Markdown.
	Tables []string `json:"tables"`

	// WordCount is the number of words in the full extracted text,
	// counted before Text was capped.
	WordCount int `json:"word_count"`

	// FromCache is true if the body came from the page cache.
	FromCache bool `json:"from_cache"`

	// FetchTimeMS is the network time spent fetching the page.
	// Zero for cached pages.
	FetchTimeMS int64 `json:"fetch_time_ms"`
}

// NewPage builds a page applying the storage caps.
// Nil slices become empty ones so the JSON output never contains null lists.
func NewPage(url, title, text string, codeBlocks, headings, tables []string, wordCount int) Page {
	return Page{
		URL:        url,
		Title:      title,
		Text:       truncateRunes(text, MaxPageTextLength),
		CodeBlocks: capSlice(codeBlocks, MaxCodeBlocks),
		Headings:   capSlice(headings, MaxHeadings),
		Tables:     capSlice(tables, MaxTables),
		WordCount:  wordCount,
	}
}

// truncateRunes returns at most n characters of s.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

func capSlice(s []string, n int) []string {
	if len(s) > n {
		s = s[:n]
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
