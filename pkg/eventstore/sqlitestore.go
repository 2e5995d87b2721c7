package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/civiclens/civiclens-go/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS posts (
	id          TEXT PRIMARY KEY,
	text        TEXT NOT NULL,
	observed_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS parsed_events (
	post_id               TEXT PRIMARY KEY REFERENCES posts(id),
	event_type            TEXT NOT NULL,
	event_type_confidence REAL NOT NULL,
	people                TEXT NOT NULL DEFAULT '[]',
	organizations         TEXT NOT NULL DEFAULT '[]',
	schemes               TEXT NOT NULL DEFAULT '[]',
	locations             TEXT NOT NULL DEFAULT '[]',
	agreeing_sources      INTEGER NOT NULL,
	overall_confidence    REAL NOT NULL,
	needs_review          INTEGER NOT NULL,
	parsed_at             TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_parsed_events_review
	ON parsed_events(needs_review, parsed_at);
`

// SQLiteStore is the embedded Store implementation. WAL mode and a busy
// timeout keep the worker pool's concurrent writers from tripping over each
// other.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed initializes) the database at path.
// Use ":memory:" for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=10000&_journal_mode=WAL&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// modernc's driver serializes writes; more writer conns just contend
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SavePost inserts or refreshes a post
func (s *SQLiteStore) SavePost(ctx context.Context, post models.Post) error {
	if post.ID == "" {
		return fmt.Errorf("post id is required")
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, text, observed_at) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET text = excluded.text, observed_at = excluded.observed_at`,
		post.ID, post.Text, post.ObservedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save post %s: %w", post.ID, err)
	}
	return nil
}

// GetPost returns a post by id
func (s *SQLiteStore) GetPost(ctx context.Context, id string) (models.Post, error) {
	var post models.Post
	err := s.db.QueryRowContext(ctx,
		`SELECT id, text, observed_at FROM posts WHERE id = ?`, id).
		Scan(&post.ID, &post.Text, &post.ObservedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Post{}, ErrNotFound
	}
	if err != nil {
		return models.Post{}, fmt.Errorf("failed to get post %s: %w", id, err)
	}
	return post, nil
}

// ListUnparsed returns posts without a parsed event, oldest first
func (s *SQLiteStore) ListUnparsed(ctx context.Context, limit int) ([]models.Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.text, p.observed_at
		FROM posts p
		LEFT JOIN parsed_events e ON e.post_id = p.id
		WHERE e.post_id IS NULL
		ORDER BY p.observed_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list unparsed posts: %w", err)
	}
	defer rows.Close()

	var posts []models.Post
	for rows.Next() {
		var post models.Post
		if err := rows.Scan(&post.ID, &post.Text, &post.ObservedAt); err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

// UpsertParsedEvent stores the full parse result for a post, replacing any
// prior record
func (s *SQLiteStore) UpsertParsedEvent(ctx context.Context, event models.ParsedEvent) error {
	if event.PostID == "" {
		return fmt.Errorf("post id is required")
	}

	people, err := marshalList(event.People)
	if err != nil {
		return err
	}
	orgs, err := marshalList(event.Organizations)
	if err != nil {
		return err
	}
	schemes, err := marshalList(event.Schemes)
	if err != nil {
		return err
	}
	locations, err := marshalList(event.Locations)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO parsed_events (
			post_id, event_type, event_type_confidence,
			people, organizations, schemes, locations,
			agreeing_sources, overall_confidence, needs_review, parsed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			event_type = excluded.event_type,
			event_type_confidence = excluded.event_type_confidence,
			people = excluded.people,
			organizations = excluded.organizations,
			schemes = excluded.schemes,
			locations = excluded.locations,
			agreeing_sources = excluded.agreeing_sources,
			overall_confidence = excluded.overall_confidence,
			needs_review = excluded.needs_review,
			parsed_at = excluded.parsed_at`,
		event.PostID, string(event.EventType), event.EventTypeConfidence,
		people, orgs, schemes, locations,
		event.AgreeingSources, event.OverallConfidence, boolToInt(event.NeedsReview),
		event.ParsedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to upsert parsed event for %s: %w", event.PostID, err)
	}
	return nil
}

// GetParsedEvent returns the parse result for a post
func (s *SQLiteStore) GetParsedEvent(ctx context.Context, postID string) (models.ParsedEvent, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT post_id, event_type, event_type_confidence,
		       people, organizations, schemes, locations,
		       agreeing_sources, overall_confidence, needs_review, parsed_at
		FROM parsed_events WHERE post_id = ?`, postID)
	event, err := scanParsedEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ParsedEvent{}, ErrNotFound
	}
	if err != nil {
		return models.ParsedEvent{}, fmt.Errorf("failed to get parsed event for %s: %w", postID, err)
	}
	return event, nil
}

// ListNeedsReview returns parsed events awaiting human review, oldest first
func (s *SQLiteStore) ListNeedsReview(ctx context.Context, limit int) ([]models.ParsedEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT post_id, event_type, event_type_confidence,
		       people, organizations, schemes, locations,
		       agreeing_sources, overall_confidence, needs_review, parsed_at
		FROM parsed_events
		WHERE needs_review = 1
		ORDER BY parsed_at ASC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list review queue: %w", err)
	}
	defer rows.Close()

	var events []models.ParsedEvent
	for rows.Next() {
		event, err := scanParsedEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan parsed event: %w", err)
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

// Close closes the underlying database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanParsedEvent(row rowScanner) (models.ParsedEvent, error) {
	var (
		event       models.ParsedEvent
		eventType   string
		people      string
		orgs        string
		schemes     string
		locations   string
		needsReview int
		parsedAt    time.Time
	)
	err := row.Scan(&event.PostID, &eventType, &event.EventTypeConfidence,
		&people, &orgs, &schemes, &locations,
		&event.AgreeingSources, &event.OverallConfidence, &needsReview, &parsedAt)
	if err != nil {
		return models.ParsedEvent{}, err
	}

	event.EventType = models.EventType(eventType)
	event.NeedsReview = needsReview != 0
	event.ParsedAt = parsedAt

	if err := unmarshalList(people, &event.People); err != nil {
		return models.ParsedEvent{}, err
	}
	if err := unmarshalList(orgs, &event.Organizations); err != nil {
		return models.ParsedEvent{}, err
	}
	if err := unmarshalList(schemes, &event.Schemes); err != nil {
		return models.ParsedEvent{}, err
	}
	if err := unmarshalList(locations, &event.Locations); err != nil {
		return models.ParsedEvent{}, err
	}
	return event, nil
}

func marshalList(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode list column: %w", err)
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

func unmarshalList(data string, out any) error {
	if data == "" {
		return nil
	}
	if err := json.Unmarshal([]byte(data), out); err != nil {
		return fmt.Errorf("failed to decode list column: %w", err)
	}
	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
