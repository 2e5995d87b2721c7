package eventstore

import (
	"context"
	"errors"

	"github.com/civiclens/civiclens-go/pkg/models"
)

// ErrNotFound is returned when a post or parsed event does not exist
var ErrNotFound = errors.New("eventstore: not found")

// Store persists ingested posts and their parsed events. Parsing is
// idempotent at this layer: upserting a ParsedEvent for a post fully replaces
// any earlier record for that post.
type Store interface {
	// SavePost inserts a post, or refreshes its text if the id already exists
	SavePost(ctx context.Context, post models.Post) error

	// GetPost returns a post by id, or ErrNotFound
	GetPost(ctx context.Context, id string) (models.Post, error)

	// ListUnparsed returns up to limit posts that have no parsed event yet,
	// oldest first
	ListUnparsed(ctx context.Context, limit int) ([]models.Post, error)

	// UpsertParsedEvent stores the parse result for a post, replacing any
	// previous result wholesale
	UpsertParsedEvent(ctx context.Context, event models.ParsedEvent) error

	// GetParsedEvent returns the parse result for a post, or ErrNotFound
	GetParsedEvent(ctx context.Context, postID string) (models.ParsedEvent, error)

	// ListNeedsReview returns up to limit parsed events flagged for human
	// review, oldest parse first
	ListNeedsReview(ctx context.Context, limit int) ([]models.ParsedEvent, error)

	// Close releases store resources
	Close() error
}
