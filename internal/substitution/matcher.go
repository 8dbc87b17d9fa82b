package substitution

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Matcher scores how likely two normalized name keys denote the same teacher.
type Matcher interface {
	Name() string
	Score(input, candidate string) float64
}

// FuzzyMatcher combines phonetic edit distance with substring and shared
// token boosts.
type FuzzyMatcher struct{}

// Name implements Matcher.
func (FuzzyMatcher) Name() string { return "fuzzy" }

// Score implements Matcher. Both arguments are expected to be normalized keys.
func (FuzzyMatcher) Score(input, candidate string) float64 {
	if input == "" || candidate == "" {
		return 0
	}
	if input == candidate {
		return 1
	}

	score := phoneticSimilarity(Phonetic(input), Phonetic(candidate))
	if strings.Contains(input, candidate) || strings.Contains(candidate, input) {
		score = math.Max(score, 0.95)
	}
	if shared := sharedTokens(input, candidate); shared > 0 {
		score = math.Max(score, 0.85+0.05*float64(shared))
	}
	return math.Min(score, 1)
}

func phoneticSimilarity(a, b string) float64 {
	longest := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > longest {
		longest = n
	}
	if longest == 0 {
		return 0
	}
	distance := levenshtein.ComputeDistance(a, b)
	return 1 - float64(distance)/float64(longest)
}

// StrictMatcher only accepts identical keys.
type StrictMatcher struct{}

// Name implements Matcher.
func (StrictMatcher) Name() string { return "strict" }

// Score implements Matcher.
func (StrictMatcher) Score(input, candidate string) float64 {
	if input != "" && input == candidate {
		return 1
	}
	return 0
}

// MatcherByName returns the configured strategy, defaulting to fuzzy matching.
func MatcherByName(name string) Matcher {
	if strings.EqualFold(name, "strict") {
		return StrictMatcher{}
	}
	return FuzzyMatcher{}
}
