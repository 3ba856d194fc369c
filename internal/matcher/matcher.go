// Package matcher implements the diacritic-insensitive fuzzy name
// matching used for transcript anchoring and focused-override merging.
package matcher

import (
	"strings"
	"unicode"

	"github.com/agext/levenshtein"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Matching thresholds. Anchoring a structured item onto a transcript line
// tolerates more noise than merging a second model pass onto item names.
const (
	AnchorThreshold   = 0.60
	OverrideThreshold = 0.72
)

const containmentScore = 0.95

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize lowers a product name into its canonical matching form:
// diacritics stripped via Unicode decomposition, lowercased, and reduced
// to [a-z0-9].
func Normalize(name string) string {
	stripped, _, err := transform.String(stripDiacritics, name)
	if err != nil {
		stripped = name
	}
	stripped = strings.ToLower(stripped)

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Similarity scores two already-normalized strings in [0,1]. Exact
// equality scores 1.0, substring containment in either direction 0.95,
// anything else the Levenshtein similarity ratio.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1.0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return containmentScore
	}
	return levenshtein.Similarity(a, b, levenshtein.NewParams())
}

// BestMatch finds the highest-scoring candidate for target within pool.
// Both target and candidates are normalized internally. Returns index -1
// when no candidate reaches the threshold; an unmatched target is an
// expected outcome, not an error.
func BestMatch(target string, pool []string, threshold float64) (int, float64) {
	normTarget := Normalize(target)
	bestIdx := -1
	bestScore := 0.0
	for i, candidate := range pool {
		score := Similarity(normTarget, Normalize(candidate))
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestIdx < 0 || bestScore < threshold {
		return -1, bestScore
	}
	return bestIdx, bestScore
}

// Distance is the plain edit distance between two strings, used for the
// OCR-slip tolerant totals-keyword check in the normalizer.
func Distance(a, b string) int {
	return levenshtein.Distance(a, b, levenshtein.NewParams())
}
