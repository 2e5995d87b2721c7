package orchestrator

import (
	"math"
	"testing"
	"time"

	"github.com/civiclens/civiclens-go/pkg/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func resolved(score float64) models.LocationMatch {
	return models.LocationMatch{
		RawPhrase: "रायगढ़", EntryID: "CG-RGH", Kind: models.MatchExact,
		SimilarityScore: score, Resolved: true,
	}
}

func TestOverallConfidenceBlend(t *testing.T) {
	got, unresolved := overallConfidence(1.0, []models.LocationMatch{resolved(1.0), resolved(0.88)})
	want := 0.6*1.0 + 0.4*(1.88/2)
	if !almostEqual(got, want) {
		t.Errorf("overall = %v, want %v", got, want)
	}
	if unresolved {
		t.Error("no unresolved mentions expected")
	}
}

func TestOverallConfidenceNoLocations(t *testing.T) {
	got, unresolved := overallConfidence(0.667, nil)
	if !almostEqual(got, 0.667) {
		t.Errorf("overall = %v, want event-type confidence pass-through", got)
	}
	if unresolved {
		t.Error("no locations means nothing unresolved")
	}
}

func TestOverallConfidenceUnresolvedMention(t *testing.T) {
	locations := []models.LocationMatch{
		resolved(1.0),
		{RawPhrase: "कहीं और", Resolved: false},
	}
	got, unresolved := overallConfidence(1.0, locations)
	// the unresolved mention contributes zero to the location component
	want := 0.6*1.0 + 0.4*(1.0/2)
	if !almostEqual(got, want) {
		t.Errorf("overall = %v, want %v", got, want)
	}
	if !unresolved {
		t.Error("expected unresolved flag")
	}
}

func TestAssemble(t *testing.T) {
	consensus := models.ConsensusResult{
		EventType:           models.EventMeeting,
		EventTypeConfidence: 1.0,
		People:              []string{"रामलाल वर्मा"},
		AgreeingSources:     3,
		NeedsReview:         false,
	}
	parsedAt := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	t.Run("clean result", func(t *testing.T) {
		event := Assemble("p1", consensus, []models.LocationMatch{resolved(1.0)}, parsedAt)
		if event.PostID != "p1" {
			t.Errorf("post id = %q", event.PostID)
		}
		if !almostEqual(event.OverallConfidence, 1.0) {
			t.Errorf("overall = %v, want 1.0", event.OverallConfidence)
		}
		if event.NeedsReview {
			t.Error("clean result should not need review")
		}
		if !event.ParsedAt.Equal(parsedAt) {
			t.Errorf("parsed_at = %v, want %v", event.ParsedAt, parsedAt)
		}
	})

	t.Run("unresolved location forces review", func(t *testing.T) {
		locations := []models.LocationMatch{{RawPhrase: "कहीं", Resolved: false}}
		event := Assemble("p1", consensus, locations, parsedAt)
		if !event.NeedsReview {
			t.Error("unresolved mention must flag review even at full consensus")
		}
	})

	t.Run("consensus review flag carries over", func(t *testing.T) {
		flagged := consensus
		flagged.NeedsReview = true
		event := Assemble("p1", flagged, nil, parsedAt)
		if !event.NeedsReview {
			t.Error("consensus review flag lost")
		}
	})
}
