package extractor

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Similarity returns the Jaccard similarity of the lowercased word sets of
// a and b, in [0, 1]. Either side being empty gives 0.
func Similarity(a, b string) float64 {
	wordsA := wordSet(a)
	wordsB := wordSet(b)
	if len(wordsA) == 0 || len(wordsB) == 0 {
		return 0
	}

	intersection := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			intersection++
		}
	}
	union := len(wordsA) + len(wordsB) - intersection
	return float64(intersection) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	// Casers carry state, so one is made per call.
	lower := cases.Lower(language.Und).String(s)
	words := strings.Fields(lower)
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
