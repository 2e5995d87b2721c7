package orchestrator

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/civiclens/civiclens-go/pkg/eventstore"
	"github.com/civiclens/civiclens-go/pkg/extraction"
	"github.com/civiclens/civiclens-go/pkg/models"
	"github.com/civiclens/civiclens-go/pkg/ratelimit"
	"github.com/civiclens/civiclens-go/pkg/resolver"
	"github.com/civiclens/civiclens-go/utils"
)

// overall confidence weights: event-type agreement dominates, location
// resolution quality moderates
const (
	eventTypeWeight = 0.6
	locationWeight  = 0.4
)

// Orchestrator drives the full parse of a post: consensus extraction,
// location resolution, confidence scoring and persistence.
type Orchestrator struct {
	engine   *extraction.Engine
	resolver *resolver.Resolver
	store    eventstore.Store
	limiter  *ratelimit.Limiter
	workers  int
	log      *utils.Logger
	now      func() time.Time
}

// New creates an orchestrator over the assembled pipeline components
func New(engine *extraction.Engine, res *resolver.Resolver, store eventstore.Store, limiter *ratelimit.Limiter, workers int, log *utils.Logger) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	return &Orchestrator{
		engine:   engine,
		resolver: res,
		store:    store,
		limiter:  limiter,
		workers:  workers,
		log:      log,
		now:      time.Now,
	}
}

// ParsePost runs one post through the pipeline and persists the result.
// Reparsing the same post replaces its earlier record.
func (o *Orchestrator) ParsePost(ctx context.Context, post models.Post) (models.ParsedEvent, error) {
	consensus := o.engine.Process(ctx, post)
	locations := o.resolver.ResolveAll(ctx, consensus.RawLocations)

	event := Assemble(post.ID, consensus, locations, o.now())
	if err := o.store.UpsertParsedEvent(ctx, event); err != nil {
		return models.ParsedEvent{}, err
	}

	if o.log != nil {
		o.log.Info("post parsed",
			utils.String("post_id", post.ID),
			utils.String("event_type", string(event.EventType)),
			utils.Float("overall_confidence", event.OverallConfidence),
			utils.Bool("needs_review", event.NeedsReview))
	}
	return event, nil
}

// ProcessPending parses every unparsed post in the store, batch_size at a
// time, with a bounded worker pool. Returns the number of posts parsed.
func (o *Orchestrator) ProcessPending(ctx context.Context, batchSize int) (int, error) {
	total := 0
	for {
		posts, err := o.store.ListUnparsed(ctx, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to list pending posts: %w", err)
		}
		if len(posts) == 0 {
			return total, nil
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(o.workers)
		for _, post := range posts {
			post := post
			g.Go(func() error {
				_, err := o.ParsePost(gctx, post)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return total, err
		}
		total += len(posts)
	}
}

// RateLimitStatus exposes the limiter's per-backend usage for monitoring
func (o *Orchestrator) RateLimitStatus() map[string]ratelimit.Status {
	return o.limiter.Snapshot()
}

// Assemble combines consensus output and resolved locations into the final
// record. Pure function; the clock is a parameter.
func Assemble(postID string, consensus models.ConsensusResult, locations []models.LocationMatch, parsedAt time.Time) models.ParsedEvent {
	overall, unresolved := overallConfidence(consensus.EventTypeConfidence, locations)

	return models.ParsedEvent{
		PostID:              postID,
		EventType:           consensus.EventType,
		EventTypeConfidence: consensus.EventTypeConfidence,
		People:              consensus.People,
		Organizations:       consensus.Organizations,
		Schemes:             consensus.Schemes,
		Locations:           locations,
		AgreeingSources:     consensus.AgreeingSources,
		OverallConfidence:   overall,
		NeedsReview:         consensus.NeedsReview || unresolved,
		ParsedAt:            parsedAt.UTC(),
	}
}

// overallConfidence blends event-type confidence with location resolution
// quality. Posts with no location mentions score neutral on the location
// component; any unresolved mention flags review. Unresolved mentions stay in
// the denominator and contribute zero, so a post that is half unresolvable
// scores lower than one whose every mention resolved.
func overallConfidence(eventTypeConfidence float64, locations []models.LocationMatch) (float64, bool) {
	if len(locations) == 0 {
		return eventTypeConfidence, false
	}

	sum := 0.0
	unresolved := false
	for _, loc := range locations {
		if !loc.Resolved {
			unresolved = true
			continue
		}
		sum += loc.SimilarityScore
	}
	locationComponent := sum / float64(len(locations))

	return eventTypeWeight*eventTypeConfidence + locationWeight*locationComponent, unresolved
}
