package eventstore

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/civiclens/civiclens-go/pkg/models"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testPost(id string) models.Post {
	return models.Post{
		ID:         id,
		Text:       "ग्राम पुसौर में बैठक",
		ObservedAt: time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC),
	}
}

func TestSaveAndGetPost(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	post := testPost("p1")
	if err := store.SavePost(ctx, post); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetPost(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Text != post.Text {
		t.Errorf("text = %q, want %q", got.Text, post.Text)
	}
	if !got.ObservedAt.Equal(post.ObservedAt) {
		t.Errorf("observed_at = %v, want %v", got.ObservedAt, post.ObservedAt)
	}

	if _, err := store.GetPost(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestListUnparsed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := testPost("p1")
	newer := testPost("p2")
	newer.ObservedAt = older.ObservedAt.Add(time.Hour)
	for _, p := range []models.Post{newer, older} {
		if err := store.SavePost(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	posts, err := store.ListUnparsed(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].ID != "p1" {
		t.Errorf("oldest post first: got %s, want p1", posts[0].ID)
	}

	// parsing p1 removes it from the pending list
	if err := store.UpsertParsedEvent(ctx, models.ParsedEvent{PostID: "p1", EventType: models.EventMeeting, ParsedAt: time.Now()}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	posts, err = store.ListUnparsed(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(posts) != 1 || posts[0].ID != "p2" {
		t.Errorf("pending = %v, want only p2", posts)
	}
}

func TestUpsertParsedEventReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SavePost(ctx, testPost("p1")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	first := models.ParsedEvent{
		PostID:              "p1",
		EventType:           models.EventRally,
		EventTypeConfidence: 0.5,
		People:              []string{"रामलाल वर्मा"},
		Locations: []models.LocationMatch{
			{RawPhrase: "रायगढ़", EntryID: "CG-RGH", MatchedName: "रायगढ़", Kind: models.MatchExact, SimilarityScore: 1.0, Resolved: true},
		},
		AgreeingSources: 1,
		NeedsReview:     true,
		ParsedAt:        time.Date(2026, 8, 20, 11, 0, 0, 0, time.UTC),
	}
	if err := store.UpsertParsedEvent(ctx, first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// reparse with a different outcome replaces the whole record
	second := first
	second.EventType = models.EventMeeting
	second.EventTypeConfidence = 1.0
	second.People = nil
	second.AgreeingSources = 3
	second.NeedsReview = false
	if err := store.UpsertParsedEvent(ctx, second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := store.GetParsedEvent(ctx, "p1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.EventType != models.EventMeeting {
		t.Errorf("event type = %s, want meeting", got.EventType)
	}
	if len(got.People) != 0 {
		t.Errorf("people = %v, want replaced away", got.People)
	}
	if got.AgreeingSources != 3 {
		t.Errorf("agreeing sources = %d, want 3", got.AgreeingSources)
	}
	if len(got.Locations) != 1 || got.Locations[0].EntryID != "CG-RGH" {
		t.Errorf("locations = %+v, want the Raigarh match", got.Locations)
	}
}

func TestListNeedsReview(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []models.Post{testPost("p1"), testPost("p2"), testPost("p3")} {
		if err := store.SavePost(ctx, p); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	base := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	events := []models.ParsedEvent{
		{PostID: "p1", EventType: models.EventMeeting, NeedsReview: true, ParsedAt: base.Add(time.Minute)},
		{PostID: "p2", EventType: models.EventRally, NeedsReview: false, ParsedAt: base},
		{PostID: "p3", EventType: models.EventUnknown, NeedsReview: true, ParsedAt: base},
	}
	for _, e := range events {
		if err := store.UpsertParsedEvent(ctx, e); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	review, err := store.ListNeedsReview(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(review) != 2 {
		t.Fatalf("got %d events, want 2", len(review))
	}
	if review[0].PostID != "p3" || review[1].PostID != "p1" {
		t.Errorf("review order = %s,%s, want p3,p1 (oldest parse first)", review[0].PostID, review[1].PostID)
	}
}
