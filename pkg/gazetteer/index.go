package gazetteer

import (
	"context"
	"fmt"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"github.com/civiclens/civiclens-go/pkg/models"
	storage "github.com/civiclens/civiclens-go/pipelines/Storage"
	"github.com/civiclens/civiclens-go/utils"
)

// BuildConflictError is raised when two gazetteer entries claim the same
// normalized alias. Silent overwrite would make resolution non-deterministic,
// so construction fails loudly and aborts startup.
type BuildConflictError struct {
	Alias    string
	FirstID  string
	SecondID string
}

func (e *BuildConflictError) Error() string {
	return fmt.Sprintf("gazetteer build conflict: alias %q claimed by both entry %s and entry %s",
		e.Alias, e.FirstID, e.SecondID)
}

// Index holds the canonical entries, the alias table and the vector index.
// Built once at startup; all lookups afterwards are lock-free reads.
type Index struct {
	entries  map[string]models.GazetteerEntry
	aliases  map[string]string   // normalized alias -> entry id
	byPrefix map[rune][]string   // first rune -> alias keys, for fuzzy recovery
	backend  storage.VectorBackend
	embedder storage.EmbeddingService
}

const embedBatchSize = 256

// Build constructs the alias table and populates the vector index from
// static reference data. Returns *BuildConflictError on duplicate aliases.
func Build(ctx context.Context, entries []models.GazetteerEntry, embedder storage.EmbeddingService, backend storage.VectorBackend, log *utils.Logger) (*Index, error) {
	idx := &Index{
		entries:  make(map[string]models.GazetteerEntry, len(entries)),
		aliases:  make(map[string]string, len(entries)*4),
		byPrefix: make(map[rune][]string),
		backend:  backend,
		embedder: embedder,
	}

	for _, entry := range entries {
		if _, dup := idx.entries[entry.ID]; dup {
			return nil, fmt.Errorf("duplicate gazetteer entry id: %s", entry.ID)
		}
		idx.entries[entry.ID] = entry

		for _, form := range entry.VariantForms() {
			literal, folded := Keys(form)
			if err := idx.addAlias(literal, entry.ID); err != nil {
				return nil, err
			}
			if folded != literal {
				if err := idx.addAlias(folded, entry.ID); err != nil {
					return nil, err
				}
			}
		}
	}

	if err := idx.populateVectors(ctx, entries); err != nil {
		return nil, err
	}

	if log != nil {
		log.Info("gazetteer index built",
			utils.Int("entries", len(idx.entries)),
			utils.Int("aliases", len(idx.aliases)),
			utils.String("embedder", string(embedder.GetProvider())))
	}
	return idx, nil
}

func (idx *Index) addAlias(key, entryID string) error {
	if key == "" {
		return nil
	}
	if existing, ok := idx.aliases[key]; ok {
		if existing == entryID {
			return nil
		}
		return &BuildConflictError{Alias: key, FirstID: existing, SecondID: entryID}
	}
	idx.aliases[key] = entryID

	first, _ := utf8.DecodeRuneInString(key)
	idx.byPrefix[first] = append(idx.byPrefix[first], key)
	return nil
}

func (idx *Index) populateVectors(ctx context.Context, entries []models.GazetteerEntry) error {
	for start := 0; start < len(entries); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		batch := entries[start:end]

		texts := make([]string, len(batch))
		for i, e := range batch {
			texts[i] = e.EmbeddingText()
		}
		vectors, err := idx.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return fmt.Errorf("failed to embed gazetteer batch at %d: %w", start, err)
		}

		points := make([]storage.Point, len(batch))
		for i, e := range batch {
			points[i] = storage.Point{
				ID:     e.ID,
				Vector: vectors[i],
				Payload: map[string]string{
					"name":  e.CanonicalName,
					"level": string(e.Level),
				},
			}
		}
		if err := idx.backend.Upsert(ctx, points); err != nil {
			return fmt.Errorf("failed to index gazetteer batch at %d: %w", start, err)
		}
	}
	return nil
}

// Lookup resolves a normalized alias key to its entry
func (idx *Index) Lookup(key string) (models.GazetteerEntry, bool) {
	id, ok := idx.aliases[key]
	if !ok {
		return models.GazetteerEntry{}, false
	}
	return idx.entries[id], true
}

// FuzzyLookup scans alias keys sharing the query's first rune for the closest
// key within maxDist edits. Ties break on smaller distance, then
// lexicographically smaller alias, so results are deterministic.
func (idx *Index) FuzzyLookup(key string, maxDist int) (models.GazetteerEntry, bool) {
	if key == "" {
		return models.GazetteerEntry{}, false
	}
	first, _ := utf8.DecodeRuneInString(key)

	bestAlias := ""
	bestDist := maxDist + 1
	keyLen := utf8.RuneCountInString(key)
	for _, alias := range idx.byPrefix[first] {
		if d := utf8.RuneCountInString(alias) - keyLen; d > maxDist || d < -maxDist {
			continue
		}
		dist := levenshtein.ComputeDistance(key, alias)
		if dist < bestDist || (dist == bestDist && alias < bestAlias) {
			bestDist = dist
			bestAlias = alias
		}
	}
	if bestAlias == "" || bestDist > maxDist {
		return models.GazetteerEntry{}, false
	}
	return idx.Lookup(bestAlias)
}

// Entry returns a gazetteer entry by id
func (idx *Index) Entry(id string) (models.GazetteerEntry, bool) {
	e, ok := idx.entries[id]
	return e, ok
}

// Count returns the number of canonical entries
func (idx *Index) Count() int {
	return len(idx.entries)
}

// Query embeds a phrase and searches the vector index for its nearest entries
func (idx *Index) Query(ctx context.Context, phrase string, topK int) ([]storage.SearchResult, error) {
	vector, err := idx.embedder.EmbedText(ctx, phrase)
	if err != nil {
		return nil, fmt.Errorf("failed to embed phrase: %w", err)
	}
	return idx.backend.Search(ctx, vector, topK)
}
