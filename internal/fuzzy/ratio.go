// Package fuzzy scores researcher identity candidates by string similarity.
//
// The similarity primitives follow the classic fuzzywuzzy definitions on
// top of a difflib SequenceMatcher, so scores are integers in [0, 100].
package fuzzy

import (
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/pmezard/go-difflib/difflib"
)

// partialShortCircuit is the ratio above which a window counts as a full match.
const partialShortCircuit = 0.995

// Process normalizes a string for token comparison: lower-case, every rune
// that is not a letter, digit or underscore becomes a space, and runs of
// whitespace collapse to one space.
func Process(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}

// Ratio returns the SequenceMatcher similarity of a and b scaled to 0-100.
func Ratio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(runes(a), runes(b))
	return scale(m.Ratio())
}

// PartialRatio returns the best Ratio of the shorter string against
// equally long windows of the longer one. Windows are anchored at the
// matching blocks of the two strings.
func PartialRatio(a, b string) int {
	if a == "" || b == "" {
		return 0
	}

	shorter, longer := runes(a), runes(b)
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}

	m := difflib.NewMatcher(shorter, longer)
	best := 0.0
	for _, block := range m.GetMatchingBlocks() {
		start := block.B - block.A
		if start < 0 {
			start = 0
		}
		end := start + len(shorter)
		if end > len(longer) {
			end = len(longer)
		}

		r := difflib.NewMatcher(shorter, longer[start:end]).Ratio()
		if r > partialShortCircuit {
			return 100
		}
		if r > best {
			best = r
		}
	}
	return scale(best)
}

// TokenSortPartialRatio compares a and b after processing them and sorting
// their tokens, which makes "Smith, Alice" and "alice smith" equal.
func TokenSortPartialRatio(a, b string) int {
	sa, sb := sortTokens(a), sortTokens(b)
	if sa == "" || sb == "" {
		return 0
	}
	return PartialRatio(sa, sb)
}

func sortTokens(s string) string {
	tokens := strings.Fields(Process(s))
	sort.Strings(tokens)
	return strings.Join(tokens, " ")
}

// runes splits s into one-rune strings for the line-oriented matcher.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// scale maps a [0, 1] ratio to an integer percentage with half-even
// rounding.
func scale(r float64) int {
	return int(math.RoundToEven(100 * r))
}
