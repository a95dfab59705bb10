package listing

import (
	"strings"

	"golang.org/x/text/cases"
)

// fold returns the case-folded form of s. Casers keep internal state, so a new
// one is built per call.
func fold(s string) string {
	return cases.Fold().String(s)
}

func foldEqual(a, b string) bool {
	return fold(a) == fold(b)
}

func foldContains(haystack, foldedNeedle string) bool {
	if foldedNeedle == "" {
		return true
	}
	return strings.Contains(fold(haystack), foldedNeedle)
}
