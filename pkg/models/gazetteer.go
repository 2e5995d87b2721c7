package models

import "fmt"

// Level is the administrative level of a gazetteer entry
type Level string

const (
	LevelState         Level = "state"
	LevelDistrict      Level = "district"
	LevelBlock         Level = "block"
	LevelGramPanchayat Level = "gram_panchayat"
	LevelVillage       Level = "village"
	LevelULB           Level = "ulb"
)

// ParseLevel validates an administrative level read from gazetteer source data
func ParseLevel(s string) (Level, error) {
	switch Level(s) {
	case LevelState, LevelDistrict, LevelBlock, LevelGramPanchayat, LevelVillage, LevelULB:
		return Level(s), nil
	}
	return "", fmt.Errorf("unknown gazetteer level: %q", s)
}

// GazetteerEntry is one canonical location. Built once at startup from static
// reference data and immutable thereafter.
type GazetteerEntry struct {
	ID            string    `json:"id"`
	Level         Level     `json:"level"`
	CanonicalName string    `json:"canonical_name"` // native script display form
	NameHindi     string    `json:"name_hindi"`
	NameEnglish   string    `json:"name_english"`
	NameTranslit  string    `json:"name_translit"`
	ParentID      string    `json:"parent_id,omitempty"` // lookup-only back-reference
	Embedding     []float32 `json:"-"`
}

// VariantForms returns every surface form that must resolve to this entry.
// None of them may be empty in valid source data.
func (e GazetteerEntry) VariantForms() []string {
	return []string{e.NameHindi, e.NameEnglish, e.NameTranslit}
}

// EmbeddingText is the string embedded into the vector index for this entry
func (e GazetteerEntry) EmbeddingText() string {
	if e.NameEnglish == "" || e.NameEnglish == e.CanonicalName {
		return e.CanonicalName
	}
	return e.CanonicalName + " " + e.NameEnglish
}
