package gazetteer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// nukta is the Devanagari combining dot (U+093C). NFD decomposition turns
// precomposed letters like ढ़ (U+095D) into base + nukta, so dropping the
// combining mark and recomposing folds both encodings the same way.
const nukta = '़'

// zero-width characters that leak into social-media text and gazetteer dumps:
// ZWSP, ZWNJ, ZWJ and a stray BOM
func isZeroWidth(r rune) bool {
	switch r {
	case '\u200b', '\u200c', '\u200d', '\ufeff':
		return true
	}
	return false
}

// Normalize produces the lookup key form of a name: trimmed, internal
// whitespace runs collapsed to single spaces, zero-width characters stripped,
// lower-cased. Display forms are kept separately; this is for keys only.
func Normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		if isZeroWidth(r) {
			return -1
		}
		return r
	}, s)
	s = strings.Join(strings.Fields(s), " ")
	return strings.ToLower(s)
}

// FoldNukta strips nukta diacritics so that रायगढ़ and रायगढ share one key
func FoldNukta(s string) string {
	decomposed := norm.NFD.String(s)
	var b strings.Builder
	b.Grow(len(decomposed))
	for _, r := range decomposed {
		if r == nukta {
			continue
		}
		b.WriteRune(r)
	}
	return norm.NFC.String(b.String())
}

// Keys returns both alias-table keys for a name: the normalized literal form
// and the nukta-folded form. They are equal for names without nukta.
func Keys(s string) (literal, folded string) {
	literal = Normalize(s)
	folded = FoldNukta(literal)
	return literal, folded
}
