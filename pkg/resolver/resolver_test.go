package resolver

import (
	"context"
	"errors"
	"testing"

	"github.com/civiclens/civiclens-go/pkg/gazetteer"
	"github.com/civiclens/civiclens-go/pkg/models"
	storage "github.com/civiclens/civiclens-go/pipelines/Storage"
)

type stubBackend struct {
	results   []storage.SearchResult
	searchErr error
}

func (s *stubBackend) Upsert(ctx context.Context, points []storage.Point) error { return nil }
func (s *stubBackend) Search(ctx context.Context, vector []float32, topK int) ([]storage.SearchResult, error) {
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	if topK < len(s.results) {
		return s.results[:topK], nil
	}
	return s.results, nil
}
func (s *stubBackend) Count(ctx context.Context) (int, error) { return 0, nil }
func (s *stubBackend) Close() error                           { return nil }

func newTestResolver(t *testing.T, backend storage.VectorBackend) *Resolver {
	t.Helper()
	entries := []models.GazetteerEntry{
		{
			ID: "CG-RGH", Level: models.LevelDistrict, ParentID: "CG",
			CanonicalName: "रायगढ़", NameHindi: "रायगढ़", NameEnglish: "Raigarh", NameTranslit: "Raigarh",
		},
		{
			ID: "CG-BSP", Level: models.LevelDistrict, ParentID: "CG",
			CanonicalName: "बिलासपुर", NameHindi: "बिलासपुर", NameEnglish: "Bilaspur", NameTranslit: "Bilaspur",
		},
	}
	embedder, err := storage.NewEmbeddingService(storage.EmbeddingConfig{Provider: storage.EmbeddingProviderHash, Dimensions: 64})
	if err != nil {
		t.Fatalf("failed to create embedder: %v", err)
	}
	index, err := gazetteer.Build(context.Background(), entries, embedder, backend, nil)
	if err != nil {
		t.Fatalf("failed to build index: %v", err)
	}
	res, err := New(index, 5, 0.7, nil)
	if err != nil {
		t.Fatalf("failed to create resolver: %v", err)
	}
	return res
}

func TestResolveExact(t *testing.T) {
	res := newTestResolver(t, &stubBackend{})

	cases := []struct {
		name   string
		phrase string
	}{
		{"hindi with nukta", "रायगढ़"},
		{"hindi without nukta", "रायगढ"},
		{"english", "Raigarh"},
		{"mixed case", "RAIGARH"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := res.Resolve(context.Background(), tc.phrase)
			if !m.Resolved {
				t.Fatalf("phrase %q did not resolve", tc.phrase)
			}
			if m.EntryID != "CG-RGH" {
				t.Errorf("resolved to %s, want CG-RGH", m.EntryID)
			}
			if m.Kind != models.MatchExact {
				t.Errorf("kind = %s, want exact", m.Kind)
			}
			if m.SimilarityScore != 1.0 {
				t.Errorf("score = %v, want 1.0", m.SimilarityScore)
			}
		})
	}
}

func TestResolveAliasVariants(t *testing.T) {
	res := newTestResolver(t, &stubBackend{})

	cases := []struct {
		name   string
		phrase string
	}{
		{"trailing district marker", "Raigarh Distt"},
		{"hindi marker", "रायगढ़ जिला"},
		{"long vowel drift", "Raigaarh"},
		{"one character dropped", "Raigar"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := res.Resolve(context.Background(), tc.phrase)
			if !m.Resolved {
				t.Fatalf("phrase %q did not resolve", tc.phrase)
			}
			if m.EntryID != "CG-RGH" {
				t.Errorf("resolved to %s, want CG-RGH", m.EntryID)
			}
			if m.Kind != models.MatchAlias {
				t.Errorf("kind = %s, want alias", m.Kind)
			}
			if m.SimilarityScore != 1.0 {
				t.Errorf("score = %v, want 1.0", m.SimilarityScore)
			}
		})
	}
}

func TestResolveSemantic(t *testing.T) {
	backend := &stubBackend{results: []storage.SearchResult{
		{ID: "CG-RGH", Score: 0.88},
		{ID: "CG-BSP", Score: 0.41},
	}}
	res := newTestResolver(t, backend)

	m := res.Resolve(context.Background(), "Rygrh town area")
	if !m.Resolved {
		t.Fatal("expected semantic resolution")
	}
	if m.Kind != models.MatchSemantic {
		t.Errorf("kind = %s, want semantic", m.Kind)
	}
	if m.EntryID != "CG-RGH" {
		t.Errorf("resolved to %s, want CG-RGH", m.EntryID)
	}
	if m.SimilarityScore != 0.88 {
		t.Errorf("score = %v, want 0.88", m.SimilarityScore)
	}
}

func TestCandidatesRankedAboveThreshold(t *testing.T) {
	backend := &stubBackend{results: []storage.SearchResult{
		{ID: "CG-RGH", Score: 0.88},
		{ID: "CG-BSP", Score: 0.79},
		{ID: "CG-RGH", Score: 0.41}, // below min_score, dropped
	}}
	res := newTestResolver(t, backend)

	candidates := res.Candidates(context.Background(), "Rygrh town area")
	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2 above threshold", len(candidates))
	}
	if candidates[0].EntryID != "CG-RGH" || candidates[0].SimilarityScore != 0.88 {
		t.Errorf("best candidate = %+v, want CG-RGH at 0.88", candidates[0])
	}
	if candidates[1].EntryID != "CG-BSP" || candidates[1].SimilarityScore != 0.79 {
		t.Errorf("second candidate = %+v, want CG-BSP at 0.79", candidates[1])
	}
}

func TestResolveBackendFailureDegrades(t *testing.T) {
	backend := &stubBackend{searchErr: errors.New("vector index unreachable")}
	res := newTestResolver(t, backend)

	// a dead vector index must not fail the post: the phrase comes back
	// unresolved and review routing takes over
	m := res.Resolve(context.Background(), "Someplace Nowhere")
	if m.Resolved {
		t.Fatalf("expected unresolved match on backend failure, got %+v", m)
	}
	if m.RawPhrase != "Someplace Nowhere" {
		t.Errorf("raw phrase not preserved: %q", m.RawPhrase)
	}

	// alias-stage phrases keep resolving; only the semantic stage degrades
	if m := res.Resolve(context.Background(), "Raigarh"); !m.Resolved {
		t.Error("exact matches must survive a vector-backend outage")
	}
}

func TestResolveBelowThresholdUnresolved(t *testing.T) {
	backend := &stubBackend{results: []storage.SearchResult{
		{ID: "CG-RGH", Score: 0.42},
	}}
	res := newTestResolver(t, backend)

	m := res.Resolve(context.Background(), "somewhere else entirely")
	if m.Resolved {
		t.Errorf("expected unresolved below min score, got %+v", m)
	}
	if m.RawPhrase != "somewhere else entirely" {
		t.Errorf("raw phrase not preserved: %q", m.RawPhrase)
	}
}

func TestResolveIdempotent(t *testing.T) {
	backend := &stubBackend{results: []storage.SearchResult{
		{ID: "CG-RGH", Score: 0.88},
	}}
	res := newTestResolver(t, backend)

	first := res.Resolve(context.Background(), "Raigarh Distt")
	second := res.Resolve(context.Background(), "Raigarh Distt")
	if first != second {
		t.Errorf("resolution not deterministic: %+v vs %+v", first, second)
	}
}

func TestResolveAllPreservesOrder(t *testing.T) {
	res := newTestResolver(t, &stubBackend{})

	matches := res.ResolveAll(context.Background(), []string{"Bilaspur", "Raigarh"})
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	if matches[0].EntryID != "CG-BSP" || matches[1].EntryID != "CG-RGH" {
		t.Errorf("order not preserved: %s, %s", matches[0].EntryID, matches[1].EntryID)
	}
}

func TestExpandVariants(t *testing.T) {
	variants := ExpandVariants("Raigarh Distt")
	found := false
	for _, v := range variants {
		if v == "raigarh" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected %q among variants, got %v", "raigarh", variants)
	}
	if variants[0] != "raigarh distt" {
		t.Errorf("first variant should be the literal key, got %q", variants[0])
	}
}

func TestRomanFold(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"raigaarh", "raigarh"},
		{"beejapur", "bijapur"},
		{"pattna", "patna"},
		{"wardha", "vardha"},
		{"रायगढ़", "रायगढ़"}, // non-Latin passes through
	}
	for _, tc := range cases {
		if got := romanFold(tc.in); got != tc.want {
			t.Errorf("romanFold(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
