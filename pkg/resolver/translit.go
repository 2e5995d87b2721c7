package resolver

import (
	"strings"

	"github.com/civiclens/civiclens-go/pkg/gazetteer"
)

// suffix words that posts append to a place name without changing the place:
// administrative markers, honorifics and their common Romanized clippings
var suffixStopwords = map[string]struct{}{
	"district": {},
	"distt":    {},
	"dist":     {},
	"block":    {},
	"tehsil":   {},
	"village":  {},
	"gaon":     {},
	"city":     {},
	"ji":       {},
	"जिला":     {},
	"जिले":     {},
	"ज़िला":    {},
	"ब्लॉक":    {},
	"तहसील":    {},
	"ग्राम":    {},
	"गांव":     {},
	"गाँव":     {},
	"नगर":      {},
	"जी":       {},
}

// romanPairs fold the usual Hindi-to-Latin transliteration drift: long vowels
// doubled in one convention and single in another, w/v and q/k swaps, z for
// the nukta consonants.
var romanPairs = strings.NewReplacer(
	"aa", "a",
	"ee", "i",
	"ii", "i",
	"oo", "u",
	"uu", "u",
	"w", "v",
	"q", "k",
	"z", "j",
)

func isASCIILetter(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// romanFold canonicalizes a normalized Latin-script token. Non-Latin input
// passes through unchanged so Devanagari keys are never mangled.
func romanFold(s string) string {
	for _, r := range s {
		if r != ' ' && !isASCIILetter(r) {
			return s
		}
	}
	s = romanPairs.Replace(s)

	// collapse doubled letters: pattna -> patna
	var b strings.Builder
	b.Grow(len(s))
	var prev rune = -1
	for _, r := range s {
		if r == prev {
			continue
		}
		b.WriteRune(r)
		prev = r
	}
	return b.String()
}

// ExpandVariants generates candidate alias keys for a raw phrase, from most
// to least literal: the normalized phrase itself, the phrase with trailing
// stopwords dropped, and the Roman-folded forms of both. Order matters; the
// caller tries keys front to back and keeps the first hit.
func ExpandVariants(phrase string) []string {
	literal, folded := gazetteer.Keys(phrase)

	seen := make(map[string]struct{}, 8)
	var out []string
	add := func(key string) {
		if key == "" {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}

	add(literal)
	add(folded)

	trimmed := trimSuffixStopwords(folded)
	add(trimmed)

	add(romanFold(folded))
	add(romanFold(trimmed))
	return out
}

func trimSuffixStopwords(key string) string {
	words := strings.Fields(key)
	for len(words) > 1 {
		last := words[len(words)-1]
		if _, stop := suffixStopwords[last]; !stop {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}
