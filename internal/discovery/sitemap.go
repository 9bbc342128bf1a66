package discovery

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/nao1215/docscout/internal/config"
)

var (
	locPattern          = regexp.MustCompile(`(?is)<loc>\s*(.*?)\s*</loc>`)
	sitemapIndexPattern = regexp.MustCompile(`(?i)<sitemapindex[\s>]`)
)

// docExtensions are path endings kept by FilterDocURLs even without a doc pattern.
var docExtensions = []string{".md", ".html", ".htm", "/"}

// ParseSitemapURLs returns every <loc> value in a sitemap or sitemap index.
func ParseSitemapURLs(xml string) []string {
	var urls []string
	for _, m := range locPattern.FindAllStringSubmatch(xml, -1) {
		if u := strings.TrimSpace(m[1]); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// IsSitemapIndex reports whether xml is a sitemap index, whose <loc>
// entries are further sitemaps rather than pages.
func IsSitemapIndex(xml string) bool {
	return sitemapIndexPattern.MatchString(xml)
}

// FilterDocURLs keeps URLs that look like documentation pages.
// Skip patterns win over doc patterns.
func FilterDocURLs(urls []string) []string {
	var out []string
	for _, raw := range urls {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		path := strings.ToLower(u.Path)

		withSlash := path
		if !strings.HasSuffix(withSlash, "/") {
			withSlash += "/"
		}
		if containsAny(withSlash, config.SkipPathPatterns) {
			continue
		}

		if containsAny(path, config.DocPathPatterns) || hasAnySuffix(path, docExtensions) {
			out = append(out, raw)
		}
	}
	return out
}

// FindSitemapURLs returns the sitemap candidates for the origin of baseURL.
func FindSitemapURLs(baseURL string) []string {
	origin := originOf(baseURL)
	return []string{
		origin + "/sitemap.xml",
		origin + "/sitemap-0.xml",
		origin + "/sitemap_index.xml",
		origin + "/robots.txt",
	}
}

// IsRobotsURL reports whether u points at a robots.txt file.
func IsRobotsURL(u string) bool {
	return strings.HasSuffix(u, "/robots.txt")
}

func originOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Scheme + "://" + u.Host
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, suffix := range suffixes {
		if strings.HasSuffix(s, suffix) {
			return true
		}
	}
	return false
}
