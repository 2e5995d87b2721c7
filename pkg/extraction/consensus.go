package extraction

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/civiclens/civiclens-go/pkg/models"
	"github.com/civiclens/civiclens-go/utils"
)

const (
	// rule-only results carry a fixed low confidence: a lone keyword match is
	// a weak signal no matter how unanimous it looks
	ruleOnlyConfidence = 0.2

	// below this confidence, or with fewer than two agreeing sources, the
	// event goes to human review
	autoAcceptConfidence = 0.85
	autoAcceptSources    = 2
)

// Extractor is one voter in the consensus pipeline
type Extractor interface {
	// Extract produces this extractor's vote for a post. Failures are
	// reported inside the vote, never as a separate return value, so the
	// engine can count them.
	Extract(ctx context.Context, post models.Post) models.ExtractionVote

	// Source identifies the votes this extractor casts
	Source() models.VoteSource
}

// Engine runs all registered extractors concurrently and reconciles their
// votes. One Engine serves the whole process.
type Engine struct {
	extractors []Extractor
	timeout    time.Duration
	log        *utils.Logger
}

// NewEngine creates a consensus engine over the given extractors
func NewEngine(extractors []Extractor, timeout time.Duration, log *utils.Logger) *Engine {
	return &Engine{
		extractors: extractors,
		timeout:    timeout,
		log:        log,
	}
}

// Process gathers one vote per extractor and reconciles them. An extractor
// that outlives the engine timeout contributes an error vote; its goroutine
// is abandoned to finish against the cancelled context.
func (e *Engine) Process(ctx context.Context, post models.Post) models.ConsensusResult {
	votes := e.collect(ctx, post)
	result := Reconcile(votes)

	if e.log != nil {
		e.log.Debug("consensus reached",
			utils.String("post_id", post.ID),
			utils.String("event_type", string(result.EventType)),
			utils.Float("confidence", result.EventTypeConfidence),
			utils.Int("agreeing_sources", result.AgreeingSources),
			utils.Bool("needs_review", result.NeedsReview))
	}
	return result
}

func (e *Engine) collect(ctx context.Context, post models.Post) []models.ExtractionVote {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	type indexed struct {
		i    int
		vote models.ExtractionVote
	}
	ch := make(chan indexed, len(e.extractors))
	for i, ex := range e.extractors {
		go func(i int, ex Extractor) {
			ch <- indexed{i: i, vote: ex.Extract(ctx, post)}
		}(i, ex)
	}

	votes := make([]models.ExtractionVote, len(e.extractors))
	received := make([]bool, len(e.extractors))
	for range e.extractors {
		select {
		case res := <-ch:
			votes[res.i] = res.vote
			received[res.i] = true
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
	}

	for i, ok := range received {
		if !ok {
			votes[i] = models.ExtractionVote{
				Source: e.extractors[i].Source(),
				Err:    ctx.Err(),
			}
		}
	}
	return votes
}

// Reconcile reduces extractor votes to a single consensus result. It is a
// pure function of its input: no clock, no I/O, no randomness.
func Reconcile(votes []models.ExtractionVote) models.ConsensusResult {
	var valid []models.ExtractionVote
	for _, v := range votes {
		if v.Err == nil {
			valid = append(valid, v)
		}
	}

	if len(valid) == 0 {
		return models.ConsensusResult{
			EventType:   models.EventUnknown,
			NeedsReview: true,
		}
	}

	eventType, agreeing := electEventType(valid)

	confidence := float64(agreeing) / float64(len(valid))
	if ruleOnly(valid) {
		confidence = ruleOnlyConfidence
	}

	result := models.ConsensusResult{
		EventType:           eventType,
		EventTypeConfidence: confidence,
		RawLocations:        unionByFrequency(valid, func(v models.ExtractionVote) []string { return v.RawLocations }),
		People:              unionFirstSeen(valid, func(v models.ExtractionVote) []string { return v.People }),
		Organizations:       unionFirstSeen(valid, func(v models.ExtractionVote) []string { return v.Organizations }),
		Schemes:             unionFirstSeen(valid, func(v models.ExtractionVote) []string { return v.Schemes }),
		AgreeingSources:     agreeing,
	}
	result.NeedsReview = agreeing < autoAcceptSources || confidence < autoAcceptConfidence
	return result
}

// electEventType picks the event type with the most votes among non-error,
// non-abstaining voters. Ties break toward the candidate backed by the
// highest-priority source.
func electEventType(valid []models.ExtractionVote) (models.EventType, int) {
	counts := make(map[models.EventType]int)
	topPriority := make(map[models.EventType]int)
	for _, v := range valid {
		if v.EventType == "" {
			continue
		}
		counts[v.EventType]++
		if p := models.SourcePriority(v.Source); p > topPriority[v.EventType] {
			topPriority[v.EventType] = p
		}
	}
	if len(counts) == 0 {
		return models.EventUnknown, 0
	}

	winner := models.EventUnknown
	winnerVotes := 0
	for et, n := range counts {
		switch {
		case n > winnerVotes:
			winner, winnerVotes = et, n
		case n == winnerVotes && topPriority[et] > topPriority[winner]:
			winner = et
		}
	}
	return winner, winnerVotes
}

func ruleOnly(valid []models.ExtractionVote) bool {
	for _, v := range valid {
		if v.Source != models.SourceRule {
			return false
		}
	}
	return true
}

// unionFirstSeen merges entity lists across votes, case-insensitively
// deduplicated, keeping the first-seen surface form. Votes are walked in
// descending source priority so the surface form comes from the most
// trusted voter.
func unionFirstSeen(valid []models.ExtractionVote, pick func(models.ExtractionVote) []string) []string {
	ordered := make([]models.ExtractionVote, len(valid))
	copy(ordered, valid)
	sort.SliceStable(ordered, func(i, j int) bool {
		return models.SourcePriority(ordered[i].Source) > models.SourcePriority(ordered[j].Source)
	})

	var out []string
	seen := make(map[string]struct{})
	for _, v := range ordered {
		for _, s := range pick(v) {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}

// unionByFrequency merges location phrases across votes, most-mentioned
// first; equal counts keep first-seen order in source-priority walk
func unionByFrequency(valid []models.ExtractionVote, pick func(models.ExtractionVote) []string) []string {
	merged := unionFirstSeen(valid, pick)
	if len(merged) < 2 {
		return merged
	}

	counts := make(map[string]int, len(merged))
	for _, v := range valid {
		perVote := make(map[string]struct{})
		for _, s := range pick(v) {
			key := strings.ToLower(strings.TrimSpace(s))
			if key == "" {
				continue
			}
			if _, dup := perVote[key]; dup {
				continue
			}
			perVote[key] = struct{}{}
			counts[key]++
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return counts[strings.ToLower(merged[i])] > counts[strings.ToLower(merged[j])]
	})
	return merged
}
