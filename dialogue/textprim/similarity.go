package textprim

import (
	"strings"

	"github.com/pmezard/go-difflib/difflib"
)

// SimilarityFunc returns a similarity ratio in [0,1] between two strings.
type SimilarityFunc func(a, b string) float64

// MatchingBlocksRatio is 2*M/T where M is the number of characters in the longest
// matching blocks of a and b and T the total character count.
func MatchingBlocksRatio(a, b string) float64 {
	if a == "" && b == "" {
		return 1
	}
	m := difflib.NewMatcher(splitChars(a), splitChars(b))
	return m.Ratio()
}

func splitChars(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, "")
}
