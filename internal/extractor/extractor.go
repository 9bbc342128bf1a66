package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// MinCodeBlockLength is the length a code block must exceed to be kept.
// Shorter snippets are usually inline identifiers.
const MinCodeBlockLength = 20

// Content is the structured result of extracting one page.
type Content struct {
	Title      string
	Text       string
	CodeBlocks []string
	Headings   []string
	Links      []string
	Tables     []string
	WordCount  int
}

// skipTags hold navigation or non-content markup.
var skipTags = []string{
	"nav", "header", "footer", "aside", "script", "style",
	"noscript", "svg", "iframe", "form",
}

// skipClasses mark containers as page chrome when present in the class list.
var skipClasses = map[string]struct{}{
	"nav": {}, "navbar": {}, "sidebar": {}, "footer": {}, "header": {},
	"menu": {}, "breadcrumb": {}, "pagination": {}, "cookie": {},
	"banner": {}, "ad": {}, "advertisement": {},
}

// blockTags start and end on their own line in the extracted text.
var blockTags = map[string]struct{}{
	"p": {}, "div": {}, "section": {}, "article": {}, "main": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
	"li": {}, "tr": {}, "blockquote": {}, "pre": {}, "br": {}, "hr": {},
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]+>`)
	spacePattern      = regexp.MustCompile(`\s+`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// Extract parses htmlContent and returns its documentation content.
// Relative links are resolved against baseURL when it is non-empty.
// Markup the parser cannot handle degrades to a plain tag strip.
func Extract(htmlContent, baseURL string) Content {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return fallback(htmlContent)
	}

	pageTitle := strings.TrimSpace(doc.Find("head title").First().Text())
	removeBoilerplate(doc)

	c := Content{
		CodeBlocks: codeBlocks(doc),
		Headings:   headings(doc),
		Links:      links(doc, baseURL),
		Tables:     tables(doc),
	}
	c.Text = text(doc)
	c.WordCount = len(strings.Fields(c.Text))

	c.Title = pageTitle
	if len(c.Headings) > 0 {
		c.Title = c.Headings[0]
	}
	return c
}

func fallback(htmlContent string) Content {
	stripped := tagPattern.ReplaceAllString(htmlContent, " ")
	stripped = strings.TrimSpace(spacePattern.ReplaceAllString(stripped, " "))
	return Content{
		Text:       stripped,
		CodeBlocks: []string{},
		Headings:   []string{},
		Links:      []string{},
		Tables:     []string{},
		WordCount:  len(strings.Fields(stripped)),
	}
}

func removeBoilerplate(doc *goquery.Document) {
	doc.Find(strings.Join(skipTags, ",")).Remove()
	doc.Find("[class]").Each(func(_ int, s *goquery.Selection) {
		for _, class := range strings.Fields(strings.ToLower(s.AttrOr("class", ""))) {
			if _, ok := skipClasses[class]; ok {
				s.Remove()
				return
			}
		}
	})
}

func headings(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("h1, h2, h3, h4, h5, h6").Each(func(_ int, s *goquery.Selection) {
		if h := strings.TrimSpace(s.Text()); h != "" {
			out = append(out, h)
		}
	})
	return out
}

// codeBlocks collects <pre> blocks and <code> outside of <pre>, in document order.
func codeBlocks(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("pre, code").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) == "code" && s.ParentsFiltered("pre").Length() > 0 {
			return
		}
		code := strings.TrimSpace(s.Text())
		if len([]rune(code)) > MinCodeBlockLength {
			out = append(out, code)
		}
	})
	return out
}

func links(doc *goquery.Document, baseURL string) []string {
	var base *url.URL
	if baseURL != "" {
		if u, err := url.Parse(baseURL); err == nil {
			base = u
		}
	}

	out := []string{}
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		lower := strings.ToLower(href)
		if href == "" ||
			strings.HasPrefix(href, "#") ||
			strings.HasPrefix(lower, "javascript:") ||
			strings.HasPrefix(lower, "mailto:") {
			return
		}
		if base == nil {
			out = append(out, href)
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		out = append(out, base.ResolveReference(ref).String())
	})
	return out
}

// tables renders each table as a Markdown table, header row first.
func tables(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("table").Each(func(_ int, table *goquery.Selection) {
		var lines []string
		table.Find("tr").Each(func(_ int, row *goquery.Selection) {
			var cells []string
			row.Find("th, td").Each(func(_ int, cell *goquery.Selection) {
				cells = append(cells, strings.TrimSpace(cell.Text()))
			})
			if len(cells) == 0 {
				return
			}
			lines = append(lines, "| "+strings.Join(cells, " | ")+" |")
			if len(lines) == 1 {
				sep := make([]string, len(cells))
				for i := range sep {
					sep[i] = "---"
				}
				lines = append(lines, "| "+strings.Join(sep, " | ")+" |")
			}
		})
		if len(lines) > 0 {
			out = append(out, strings.Join(lines, "\n"))
		}
	})
	return out
}

// text flattens the body, putting block elements on their own lines.
func text(doc *goquery.Document) string {
	var b strings.Builder
	for _, n := range doc.Find("body").Nodes {
		writeText(&b, n)
	}

	out := blankLinesPattern.ReplaceAllString(b.String(), "\n\n")
	lines := strings.Split(out, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.ElementNode, html.DocumentNode:
	default:
		return
	}

	_, block := blockTags[n.Data]
	if block && n.Type == html.ElementNode {
		b.WriteByte('\n')
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}
	if block && n.Type == html.ElementNode {
		b.WriteByte('\n')
	}
}
