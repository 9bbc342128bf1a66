package queue

import (
	"net/url"
	"strings"

	"github.com/nao1215/docscout/internal/config"
)

// Score tiers. Higher tiers are fetched first.
const (
	ScoreOfficialAPI   = 5
	ScoreSitemapDoc    = 5
	ScoreOfficialGuide = 4
	ScoreGitHubReadme  = 4
	ScoreRegistry      = 3
	ScoreWiki          = 3
	ScoreBlog          = 2
	ScoreStackOverflow = 2
	ScoreWayback       = 1
	ScoreUnknown       = 1

	// AutoScore asks Add to compute the score from the URL.
	AutoScore = 0
)

// trackingParams are query keys removed by Normalize.
// Any key starting with "utm_" is removed as well.
var trackingParams = map[string]bool{
	"ref":    true,
	"source": true,
	"fbclid": true,
	"gclid":  true,
	"mc_cid": true,
	"mc_eid": true,
}

var (
	apiPathPatterns  = []string{"/api/", "/reference/"}
	registryDomains  = []string{"npmjs.com", "pypi.org", "crates.io", "pkg.go.dev", "rubygems.org", "hex.pm"}
	blogDomains      = []string{"dev.to", "medium.com", "hashnode.dev"}
	githubPathMarker = []string{"/wiki/", "/blob/"}
)

// Normalize returns the deduplication identity of a URL.
//
// Scheme and host are lowercased, default ports dropped, one trailing slash
// stripped (the root path stays "/"), the fragment removed, and tracking
// parameters deleted. The remaining query is re-encoded with keys sorted, so
// two URLs differing only in parameter order normalize identically.
// Input that cannot be parsed is returned unchanged.
func Normalize(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.Opaque == "" {
		if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
			u.Path = strings.TrimSuffix(u.Path, "/")
			u.RawPath = strings.TrimSuffix(u.RawPath, "/")
		}
		if u.Path == "" {
			u.Path = "/"
			u.RawPath = ""
		}
	}

	u.ForceQuery = false
	if u.RawQuery != "" {
		// ParseQuery keeps every pair it could decode even when it reports an error.
		values, _ := url.ParseQuery(u.RawQuery) //nolint:errcheck // partial values are used
		for key := range values {
			if isTrackingParam(key) {
				delete(values, key)
			}
		}
		u.RawQuery = values.Encode()
	}

	return u.String()
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	return strings.HasPrefix(k, "utm_") || trackingParams[k]
}

// Score rates a URL from 1 to 5 using path and host heuristics.
// The first matching rule wins.
func Score(rawURL string) int {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ScoreUnknown
	}
	host := strings.ToLower(u.Hostname())
	path := strings.ToLower(u.Path)

	switch {
	case containsAny(path, apiPathPatterns):
		return ScoreOfficialAPI
	case containsAny(path, config.DocPathPatterns):
		return ScoreOfficialGuide
	case host == "raw.githubusercontent.com":
		return ScoreGitHubReadme
	case hostMatches(host, "github.com") && containsAny(path, githubPathMarker):
		return ScoreWiki
	case hostMatchesAny(host, registryDomains):
		return ScoreRegistry
	case hostMatchesAny(host, blogDomains):
		return ScoreBlog
	case hostMatches(host, "stackoverflow.com"):
		return ScoreStackOverflow
	case hostMatches(host, "web.archive.org"):
		return ScoreWayback
	default:
		return ScoreUnknown
	}
}

// ShouldSkip reports whether a URL can never hold useful documentation.
//
// A URL is skipped when its path contains a skip pattern, its scheme is
// neither http, https, nor empty, its path ends in a download extension,
// or it points at the root with only a fragment and no query.
// Unparseable URLs are skipped.
func ShouldSkip(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	path := strings.ToLower(u.Path)

	if (path == "" || path == "/") && u.Fragment != "" && u.RawQuery == "" {
		return true
	}

	withSlash := path
	if !strings.HasSuffix(withSlash, "/") {
		withSlash += "/"
	}
	if containsAny(withSlash, config.SkipPathPatterns) {
		return true
	}

	switch u.Scheme {
	case "http", "https", "":
	default:
		return true
	}

	for _, ext := range config.SkipExtensions {
		if strings.HasSuffix(path, ext) {
			return true
		}
	}
	return false
}

// Origin returns "scheme://host" of a URL, or "" when it has no host.
func Origin(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

func containsAny(s string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// hostMatches reports whether host is domain or one of its subdomains.
func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

func hostMatchesAny(host string, domains []string) bool {
	for _, d := range domains {
		if hostMatches(host, d) {
			return true
		}
	}
	return false
}
