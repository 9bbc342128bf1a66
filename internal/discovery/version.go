package discovery

import (
	"regexp"
	"sort"
)

// versionPatterns capture a version number in group 1.
var versionPatterns = []*regexp.Regexp{
	// v1.2.3, V1.2.3-beta.1
	regexp.MustCompile(`(?i)\bv(\d+\.\d+(?:\.\d+)?(?:-[\w.]+)?)\b`),
	// version 1.2.3, Version: 1.2
	regexp.MustCompile(`(?i)\bversion[:\s]+(\d+\.\d+(?:\.\d+)?(?:-[\w.]+)?)\b`),
	// @scope/package@1.2.3
	regexp.MustCompile(`(?i)@[\w-]+/[\w-]+@(\d+\.\d+(?:\.\d+)?)`),
	// package@1.2.3
	regexp.MustCompile(`[\w-]+@(\d+\.\d+(?:\.\d+)?)\b`),
}

// DetectVersion returns the most likely current version mentioned in text.
// The most frequent candidate wins; ties go to the one seen first.
func DetectVersion(text string) (string, bool) {
	if text == "" {
		return "", false
	}

	type candidate struct {
		count int
		first int
	}
	found := make(map[string]*candidate)

	for _, re := range versionPatterns {
		for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
			version := text[m[2]:m[3]]
			c, ok := found[version]
			if !ok {
				found[version] = &candidate{count: 1, first: m[0]}
				continue
			}
			c.count++
			if m[0] < c.first {
				c.first = m[0]
			}
		}
	}
	if len(found) == 0 {
		return "", false
	}

	versions := make([]string, 0, len(found))
	for v := range found {
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool {
		a, b := found[versions[i]], found[versions[j]]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.first != b.first {
			return a.first < b.first
		}
		return versions[i] < versions[j]
	})
	return versions[0], true
}
