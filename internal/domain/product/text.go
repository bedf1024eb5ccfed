package product

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// stopWords are dropped from names before comparison.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// Fold lowercases s, strips accents ("Poignée" -> "poignee"), turns punctuation
// into spaces and collapses whitespace. Digits are kept: model numbers matter.
func Fold(s string) string {
	if s == "" || s == Default {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	b.Grow(len(folded))
	space := true
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			space = false
			continue
		}
		if !space {
			b.WriteByte(' ')
			space = true
		}
	}
	return strings.TrimSpace(b.String())
}

// Tokens returns the folded words of s without stop words.
func Tokens(s string) []string {
	words := strings.Fields(Fold(s))
	out := words[:0]
	for _, w := range words {
		if _, stop := stopWords[w]; !stop {
			out = append(out, w)
		}
	}
	return out
}

// CoreName is the folded name without stop words, used as the comparison key.
func CoreName(s string) string {
	return strings.Join(Tokens(s), " ")
}
