// Package textmatch scores textual similarity between story titles.
// It is the basis for merging duplicate coverage of the same event
// published by independent outlets.
package textmatch

import (
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultThreshold is the similarity ratio at which two titles are
// considered coverage of the same event. Recall/precision tradeoffs
// differ per language, so callers may pass their own threshold.
const DefaultThreshold = 0.85

// Similarity returns a [0,1] ratio between two titles, case-insensitive
// and whitespace-trimmed. Identical strings score 1, an empty string
// scores 0. The ratio is a normalized Levenshtein distance over the
// longer of the two strings.
func Similarity(a, b string) float64 {
	a = normalize(a)
	b = normalize(b)

	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 1
	}

	distance := levenshtein.ComputeDistance(a, b)
	longest := max(len([]rune(a)), len([]rune(b)))

	return 1 - float64(distance)/float64(longest)
}

// IsDuplicate reports whether two titles score at or above threshold.
func IsDuplicate(a, b string, threshold float64) bool {
	return Similarity(a, b) >= threshold
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
