// Package fuzzy implements the lexical similarity primitive shared by every
// evidence source: normalization, the longest-matching-blocks ratio and the
// exact/substring/ratio match ladder.
package fuzzy

import (
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Scores returned by Similarity for the two short-circuit rules
const (
	ExactScore     = 1.0
	SubstringScore = 0.9
)

// cases.Caser keeps internal state and must not be shared between goroutines
var lowerPool = sync.Pool{
	New: func() any {
		c := cases.Lower(language.Und)
		return &c
	},
}

// Normalize lowercases, trims and replaces underscores with spaces
func Normalize(s string) string {
	c := lowerPool.Get().(*cases.Caser)
	out := c.String(strings.ReplaceAll(s, "_", " "))
	c.Reset()
	lowerPool.Put(c)
	return strings.TrimSpace(out)
}

// NormalizeAll normalizes every term and drops the ones that end up empty
func NormalizeAll(terms []string) []string {
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n := Normalize(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Ratio returns the Ratcliff/Obershelp similarity of a and b computed over
// runes. Inputs are compared as given; callers normalize first when needed.
func Ratio(a, b string) float64 {
	return difflib.NewMatcher(split(a), split(b)).Ratio()
}

// Similarity normalizes both strings and applies the match ladder:
// identical strings score 1.0, containment either way scores 0.9, otherwise
// the ratio is returned when it reaches threshold and 0 when it does not.
func Similarity(a, b string, threshold float64) float64 {
	return SimilarityNormalized(Normalize(a), Normalize(b), threshold)
}

// SimilarityNormalized is Similarity for inputs that are already normalized
func SimilarityNormalized(a, b string, threshold float64) float64 {
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return ExactScore
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return SubstringScore
	}
	return RatioAtLeast(a, b, threshold)
}

// Matches reports whether a and b are similar at or above threshold
func Matches(a, b string, threshold float64) bool {
	s := Similarity(a, b, threshold)
	return s > 0 && s >= threshold
}

// Best returns the candidate most similar to term together with its score.
// Candidates must be normalized. Ties keep the earliest candidate.
func Best(term string, candidates []string, threshold float64) (string, float64) {
	n := Normalize(term)
	best, bestScore := "", 0.0
	for _, c := range candidates {
		s := SimilarityNormalized(n, c, threshold)
		if s > bestScore {
			best, bestScore = c, s
			if s == ExactScore {
				break
			}
		}
	}
	return best, bestScore
}

// RatioAtLeast returns Ratio(a, b) when it reaches threshold and 0 otherwise.
// The cheap upper bounds are checked first; they never underestimate, so the
// result is identical to computing the ratio outright.
func RatioAtLeast(a, b string, threshold float64) float64 {
	m := difflib.NewMatcher(split(a), split(b))
	if m.RealQuickRatio() < threshold || m.QuickRatio() < threshold {
		return 0
	}
	if r := m.Ratio(); r >= threshold {
		return r
	}
	return 0
}

func split(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}
