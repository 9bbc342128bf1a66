package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/docscout/internal/model"
)

// DefaultChangelogLimit is the number of entries kept when no limit is given.
const DefaultChangelogLimit = 5

const (
	summaryLines     = 5
	summaryMaxLength = 300
	// lastEntrySpan is how much text after the final heading counts as its body.
	lastEntrySpan = 500
)

// changelogHeadingPattern matches "## v1.2.3", "## 1.2.3 (2024-01-15)" and
// "# Version 1.2.3" style headings.
var changelogHeadingPattern = regexp.MustCompile(
	`(?im)^#{1,3}\s+(?:v(?:ersion)?\s*)?(\d+\.\d+(?:\.\d+)?(?:-[\w.]+)?)` +
		`(?:\s*[\(\[]\s*(\d{4}-\d{2}-\d{2})\s*[\)\]])?`,
)

// genericChangelogPaths are probed on every site, in order.
var genericChangelogPaths = []string{
	"/changelog",
	"/CHANGELOG",
	"/CHANGELOG.md",
	"/releases",
	"/docs/changelog",
	"/docs/releases",
	"/whats-new",
	"/blog/releases",
}

// FindChangelogURLs returns changelog candidates for the site of baseURL.
//
// For a GitHub URL the repository's releases page and CHANGELOG.md come
// first, since only the first few candidates are usually probed. The
// repository is taken from the first two path segments; a URL naming only
// an organisation is combined with topic.
func FindChangelogURLs(baseURL, topic string) []string {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}
	origin := u.Scheme + "://" + u.Host

	var candidates []string
	if repo := githubRepo(u, topic); repo != "" {
		candidates = append(candidates,
			origin+"/"+repo+"/releases",
			origin+"/"+repo+"/blob/main/CHANGELOG.md",
			origin+"/"+repo+"/blob/master/CHANGELOG.md",
		)
	}
	for _, p := range genericChangelogPaths {
		candidates = append(candidates, origin+p)
	}
	return candidates
}

func githubRepo(u *url.URL, topic string) string {
	host := strings.ToLower(u.Hostname())
	if host != "github.com" && host != "www.github.com" {
		return ""
	}

	var parts []string
	for _, p := range strings.Split(u.Path, "/") {
		if p != "" {
			parts = append(parts, p)
		}
	}

	switch {
	case len(parts) >= 2:
		return parts[0] + "/" + parts[1]
	case len(parts) == 1 && strings.TrimSpace(topic) != "":
		return parts[0] + "/" + strings.ToLower(strings.Join(strings.Fields(topic), "-"))
	default:
		return ""
	}
}

// ExtractChangelogEntries parses release headings out of changelog text.
// Each entry's summary is the first non-empty lines of the text up to the
// next heading. A limit of zero or less uses DefaultChangelogLimit.
func ExtractChangelogEntries(text string, limit int) []model.ChangelogEntry {
	if limit <= 0 {
		limit = DefaultChangelogLimit
	}

	matches := changelogHeadingPattern.FindAllStringSubmatchIndex(text, -1)
	entries := []model.ChangelogEntry{}

	for i, m := range matches {
		if i >= limit {
			break
		}

		entry := model.ChangelogEntry{Version: text[m[2]:m[3]]}
		if m[4] >= 0 {
			entry.Date = text[m[4]:m[5]]
		}

		start := m[1]
		var body string
		if i+1 < len(matches) {
			body = text[start:matches[i+1][0]]
		} else {
			body = prefixRunes(text[start:], lastEntrySpan)
		}
		entry.Summary = summarize(body)

		entries = append(entries, entry)
	}
	return entries
}

func summarize(body string) string {
	lines := strings.Split(strings.TrimSpace(body), "\n")
	if len(lines) > summaryLines {
		lines = lines[:summaryLines]
	}

	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return prefixRunes(strings.Join(kept, "\n"), summaryMaxLength)
}

// prefixRunes returns at most n characters of s.
func prefixRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
