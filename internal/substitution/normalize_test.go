package substitution

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"Sir John Smith":   "john smith",
		"JOHN SMITH":       "john smith",
		"smith john.":      "john smith",
		"mr. khalid ahmed": "ahmed khalid",
		"Mr.Khalid Ahmed":  "ahmed khalid",
		"John A. Smith":    "john smith",
		"Dr Mary-Jane Lee": "lee mary-jane",
		"  ":               "",
		"Mr.":              "",
	}
	for input, want := range cases {
		assert.Equal(t, want, NormalizeName(input), input)
	}
}

func TestNormalizeNameIdempotent(t *testing.T) {
	for _, input := range []string{"Sir John Smith", "mrs. O'Neil Jones", "Ms Ann", "khalid"} {
		once := NormalizeName(input)
		assert.Equal(t, once, NormalizeName(once), input)
	}
}

func TestPhonetic(t *testing.T) {
	assert.Equal(t, "sm*th", Phonetic("Smith"))
	assert.Equal(t, "kh*l*d", Phonetic("Khalid"))
	assert.Equal(t, Phonetic("carol"), Phonetic("carroll"))
	assert.Len(t, []rune(Phonetic("abcdefghijklmnop")), 8)
	assert.Empty(t, Phonetic("123"))
}

func TestFuzzyMatcherScore(t *testing.T) {
	m := FuzzyMatcher{}

	assert.Equal(t, 1.0, m.Score("john smith", "john smith"))
	assert.Equal(t, 0.0, m.Score("", "john smith"))
	assert.InDelta(t, 0.95, m.Score("khalid", "ahmed khalid"), 1e-9)
	assert.InDelta(t, 0.90, m.Score("john smyth", "john smith"), 1e-9)
	assert.Equal(t, 1.0, m.Score("carroll", "carol"))
	assert.Less(t, m.Score("quimby zed", "john smith"), DefaultMatchThreshold)
}

func TestStrictMatcher(t *testing.T) {
	m := MatcherByName("STRICT")
	assert.Equal(t, "strict", m.Name())
	assert.Equal(t, 1.0, m.Score("carol", "carol"))
	assert.Equal(t, 0.0, m.Score("carroll", "carol"))
	assert.Equal(t, "fuzzy", MatcherByName("anything").Name())
}
