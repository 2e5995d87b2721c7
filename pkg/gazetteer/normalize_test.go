package gazetteer

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"lowercases", "Raigarh", "raigarh"},
		{"collapses whitespace", "  Raigarh   District ", "raigarh district"},
		{"strips zero-width joiner", "राय\u200dगढ़", "रायगढ़"},
		{"strips zero-width non-joiner", "राय\u200cगढ़", "रायगढ़"},
		{"strips zero-width space", "Rai\u200bgarh", "raigarh"},
		{"strips bom", "\ufeffरायपुर", "रायपुर"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Normalize(tc.in); got != tc.want {
				t.Errorf("Normalize(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFoldNukta(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"precomposed rha", "रायगढ़", "रायगढ"},
		{"combining nukta", "रायगढ़", "रायगढ"},
		{"za to ja", "ज़िला", "जिला"},
		{"no nukta unchanged", "रायपुर", "रायपुर"},
		{"latin unchanged", "raigarh", "raigarh"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := FoldNukta(tc.in); got != tc.want {
				t.Errorf("FoldNukta(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestKeysBothEncodingsShareFoldedKey(t *testing.T) {
	_, foldedPre := Keys("रायगढ़")             // precomposed ढ़
	_, foldedComb := Keys("रायगढ़")      // ढ + combining nukta
	_, foldedBare := Keys("रायगढ")            // no nukta at all
	if foldedPre != foldedComb || foldedPre != foldedBare {
		t.Errorf("folded keys differ: %q / %q / %q", foldedPre, foldedComb, foldedBare)
	}
}
