package substitution

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

var honorifics = map[string]bool{
	"sir":  true,
	"miss": true,
	"mr":   true,
	"ms":   true,
	"mrs":  true,
	"sr":   true,
	"dr":   true,
}

// NormalizeName reduces a teacher name to a case, honorific and token-order
// insensitive key. "Sir John Smith", "JOHN SMITH" and "smith john." share a key.
func NormalizeName(raw string) string {
	fields := strings.Fields(strings.ToLower(raw))
	kept := make([]string, 0, len(fields))
	for _, field := range fields {
		field = stripHonorific(field)
		if field == "" {
			continue
		}
		kept = append(kept, field)
	}

	var b strings.Builder
	for _, r := range strings.Join(kept, " ") {
		if unicode.IsLetter(r) || r == ' ' || r == '-' {
			b.WriteRune(r)
		}
	}

	tokens := strings.Fields(b.String())
	out := tokens[:0]
	for _, token := range tokens {
		if utf8.RuneCountInString(token) > 1 {
			out = append(out, token)
		}
	}
	sort.Strings(out)
	return strings.Join(out, " ")
}

// stripHonorific drops "mr", "mr." and the "mr." prefix of "mr.smith".
func stripHonorific(field string) string {
	if honorifics[strings.TrimSuffix(field, ".")] {
		return ""
	}
	if idx := strings.IndexByte(field, '.'); idx > 0 && honorifics[field[:idx]] {
		return field[idx+1:]
	}
	return field
}

// Phonetic returns the simplified phonetic reduction of a name: letters only,
// vowels folded into one symbol, repeated letters collapsed, at most 8 runes.
func Phonetic(raw string) string {
	const maxLen = 8
	out := make([]rune, 0, maxLen)
	var prev rune
	for _, r := range strings.ToLower(raw) {
		if !unicode.IsLetter(r) {
			continue
		}
		if isVowel(r) {
			r = '*'
		}
		if r == prev {
			continue
		}
		prev = r
		out = append(out, r)
		if len(out) == maxLen {
			break
		}
	}
	return string(out)
}

func isVowel(r rune) bool {
	switch r {
	case 'a', 'e', 'i', 'o', 'u':
		return true
	}
	return false
}

// sharedTokens counts distinct tokens present in both keys.
func sharedTokens(a, b string) int {
	set := make(map[string]bool)
	for _, token := range strings.Fields(a) {
		set[token] = true
	}
	count := 0
	for _, token := range strings.Fields(b) {
		if set[token] {
			count++
			delete(set, token)
		}
	}
	return count
}
