package resolver

import (
	"context"
	"fmt"

	"github.com/civiclens/civiclens-go/pkg/gazetteer"
	"github.com/civiclens/civiclens-go/pkg/models"
	"github.com/civiclens/civiclens-go/utils"
)

// fuzzy matches tolerate a single edit; anything looser starts confusing
// neighbouring districts with similar names
const fuzzyMaxDistance = 1

// Resolver maps raw location phrases from posts onto gazetteer entries.
// Resolution is staged: exact alias lookup, then transliteration variants
// with fuzzy recovery, then semantic search over the vector index. Each stage
// only runs when the previous one found nothing.
type Resolver struct {
	index    *gazetteer.Index
	topK     int
	minScore float64
	log      *utils.Logger
}

// New creates a location resolver over a built gazetteer index
func New(index *gazetteer.Index, topK int, minScore float64, log *utils.Logger) (*Resolver, error) {
	if index == nil {
		return nil, fmt.Errorf("gazetteer index is required")
	}
	if topK < 1 {
		return nil, fmt.Errorf("topK must be positive, got %d", topK)
	}
	if minScore < 0 || minScore > 1 {
		return nil, fmt.Errorf("minScore must be in [0,1], got %v", minScore)
	}
	return &Resolver{
		index:    index,
		topK:     topK,
		minScore: minScore,
		log:      log,
	}, nil
}

// Candidates returns every acceptable match for a phrase, best first: a
// single entry from the exact or alias stages, or up to topK semantic hits
// above the score threshold. A vector-backend outage is logged and yields an
// empty list; it never propagates as an error, so a flaky index degrades
// matches to unresolved instead of failing the post.
func (r *Resolver) Candidates(ctx context.Context, phrase string) []models.LocationMatch {
	variants := ExpandVariants(phrase)
	if len(variants) == 0 {
		return nil
	}

	// exact: the literal normalized key or its nukta-folded twin
	literal, folded := gazetteer.Keys(phrase)
	for _, key := range []string{literal, folded} {
		if entry, ok := r.index.Lookup(key); ok {
			return []models.LocationMatch{match(phrase, entry, models.MatchExact, 1.0)}
		}
	}

	// alias: transliteration variants, then fuzzy recovery within one edit
	for _, key := range variants {
		if entry, ok := r.index.Lookup(key); ok {
			return []models.LocationMatch{match(phrase, entry, models.MatchAlias, 1.0)}
		}
	}
	for _, key := range variants {
		if entry, ok := r.index.FuzzyLookup(key, fuzzyMaxDistance); ok {
			return []models.LocationMatch{match(phrase, entry, models.MatchAlias, 1.0)}
		}
	}

	// semantic: embed the folded phrase and search the vector index
	results, err := r.index.Query(ctx, folded, r.topK)
	if err != nil {
		if r.log != nil {
			r.log.Warn("semantic lookup degraded",
				utils.String("phrase", phrase),
				utils.String("error", err.Error()))
		}
		return nil
	}

	var matches []models.LocationMatch
	for _, result := range results {
		if result.Score < r.minScore {
			continue
		}
		entry, ok := r.index.Entry(result.ID)
		if !ok {
			// vector index knows a point the alias table does not; skip it
			// rather than fabricate a match
			if r.log != nil {
				r.log.Warn("semantic hit without gazetteer entry",
					utils.String("entry_id", result.ID),
					utils.String("phrase", phrase))
			}
			continue
		}
		matches = append(matches, match(phrase, entry, models.MatchSemantic, result.Score))
	}
	return matches
}

// Resolve maps one raw phrase to its best gazetteer match. It always returns
// a LocationMatch; an unresolvable phrase comes back with Resolved=false so
// downstream review routing can see it was attempted.
func (r *Resolver) Resolve(ctx context.Context, phrase string) models.LocationMatch {
	if candidates := r.Candidates(ctx, phrase); len(candidates) > 0 {
		return candidates[0]
	}
	return unresolved(phrase)
}

// ResolveAll resolves each phrase independently, preserving input order
func (r *Resolver) ResolveAll(ctx context.Context, phrases []string) []models.LocationMatch {
	matches := make([]models.LocationMatch, 0, len(phrases))
	for _, phrase := range phrases {
		matches = append(matches, r.Resolve(ctx, phrase))
	}
	return matches
}

func match(phrase string, entry models.GazetteerEntry, kind models.MatchKind, score float64) models.LocationMatch {
	return models.LocationMatch{
		RawPhrase:       phrase,
		EntryID:         entry.ID,
		MatchedName:     entry.CanonicalName,
		Kind:            kind,
		SimilarityScore: score,
		Resolved:        true,
	}
}

func unresolved(phrase string) models.LocationMatch {
	return models.LocationMatch{
		RawPhrase: phrase,
		Resolved:  false,
	}
}
