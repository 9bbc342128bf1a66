package discovery

import (
	"net/url"
	"strings"
)

// Robots holds the parts of robots.txt that are honoured.
type Robots struct {
	// Sitemaps are the Sitemap directives, which apply to every agent.
	Sitemaps []string

	// Disallowed are the Disallow paths of the "User-agent: *" group.
	Disallowed []string
}

// ParseRobotsTxt extracts Sitemap directives and universal Disallow rules.
// Rules for named agents are ignored.
func ParseRobotsTxt(content string) Robots {
	var r Robots
	universal := false

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		value = strings.TrimSpace(value)

		switch strings.ToLower(strings.TrimSpace(key)) {
		case "sitemap":
			if value != "" {
				r.Sitemaps = append(r.Sitemaps, value)
			}
		case "user-agent":
			universal = value == "*"
		case "disallow":
			if universal && value != "" {
				r.Disallowed = append(r.Disallowed, value)
			}
		}
	}
	return r
}

// IsDisallowed reports whether the path of rawURL starts with any rule.
// A trailing "*" in a rule is a wildcard.
func IsDisallowed(rawURL string, rules []string) bool {
	if len(rules) == 0 {
		return false
	}
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		path = u.Path
	}

	for _, rule := range rules {
		if strings.HasPrefix(path, strings.TrimSuffix(rule, "*")) {
			return true
		}
	}
	return false
}
