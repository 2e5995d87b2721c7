package models

import (
	"fmt"
	"time"
)

// EventType classifies the civic event a post reports
type EventType string

const (
	EventUnknown      EventType = "unknown"
	EventInauguration EventType = "inauguration"
	EventRally        EventType = "rally"
	EventProtest      EventType = "protest"
	EventMeeting      EventType = "meeting"
	EventInspection   EventType = "inspection"
	EventGrievance    EventType = "grievance"
	EventAnnouncement EventType = "announcement"
)

// KnownEventTypes lists every accepted event type in rule-extractor priority order
// (first match wins on ties)
var KnownEventTypes = []EventType{
	EventInauguration,
	EventRally,
	EventProtest,
	EventMeeting,
	EventInspection,
	EventGrievance,
	EventAnnouncement,
}

// ParseEventType validates a string coming back from an LLM backend.
// Empty input is a valid abstention, not an error.
func ParseEventType(s string) (EventType, error) {
	if s == "" {
		return "", nil
	}
	if s == string(EventUnknown) {
		return EventUnknown, nil
	}
	for _, et := range KnownEventTypes {
		if s == string(et) {
			return et, nil
		}
	}
	return "", fmt.Errorf("unknown event type: %q", s)
}

// VoteSource identifies which extractor produced a vote
type VoteSource string

const (
	SourceRule         VoteSource = "rule"
	SourceLLMPrimary   VoteSource = "llm_primary"
	SourceLLMSecondary VoteSource = "llm_secondary"
)

// SourcePriority ranks sources for event-type tie-breaking (higher wins)
func SourcePriority(s VoteSource) int {
	switch s {
	case SourceLLMPrimary:
		return 3
	case SourceLLMSecondary:
		return 2
	case SourceRule:
		return 1
	default:
		return 0
	}
}

// Post is one ingested social-media message. Created by the acquisition
// collaborator and never mutated here.
type Post struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	ObservedAt time.Time `json:"observed_at"`
}

// ExtractionVote is a single extractor's opinion about one post.
// Votes are reconciled into a ConsensusResult and then discarded.
type ExtractionVote struct {
	Source        VoteSource    `json:"source"`
	Backend       string        `json:"backend,omitempty"`
	EventType     EventType     `json:"event_type,omitempty"` // empty = abstained
	RawLocations  []string      `json:"raw_locations,omitempty"`
	People        []string      `json:"people,omitempty"`
	Organizations []string      `json:"organizations,omitempty"`
	Schemes       []string      `json:"schemes,omitempty"`
	Latency       time.Duration `json:"latency,omitempty"`
	Err           error         `json:"-"`
}

// ConsensusResult is the reconciled output of all extractor votes for one post
type ConsensusResult struct {
	EventType           EventType `json:"event_type"`
	EventTypeConfidence float64   `json:"event_type_confidence"`
	RawLocations        []string  `json:"raw_locations,omitempty"`
	People              []string  `json:"people,omitempty"`
	Organizations       []string  `json:"organizations,omitempty"`
	Schemes             []string  `json:"schemes,omitempty"`
	AgreeingSources     int       `json:"agreeing_sources"`
	NeedsReview         bool      `json:"needs_review"`
}

// MatchKind says which resolution stage produced a LocationMatch
type MatchKind string

const (
	MatchExact    MatchKind = "exact"
	MatchAlias    MatchKind = "alias"
	MatchSemantic MatchKind = "semantic"
)

// LocationMatch is the resolver's answer for one raw location phrase.
// An unresolved mention is still recorded (Resolved=false), never dropped.
type LocationMatch struct {
	RawPhrase       string    `json:"raw_phrase"`
	EntryID         string    `json:"entry_id,omitempty"`
	MatchedName     string    `json:"matched_name,omitempty"`
	Kind            MatchKind `json:"match_kind,omitempty"`
	SimilarityScore float64   `json:"similarity_score"`
	Resolved        bool      `json:"resolved"`
}

// ParsedEvent is the final record handed to the review store, one per post.
// Reparsing a post fully replaces its prior ParsedEvent.
type ParsedEvent struct {
	PostID              string          `json:"post_id"`
	EventType           EventType       `json:"event_type"`
	EventTypeConfidence float64         `json:"event_type_confidence"`
	People              []string        `json:"people,omitempty"`
	Organizations       []string        `json:"organizations,omitempty"`
	Schemes             []string        `json:"schemes,omitempty"`
	Locations           []LocationMatch `json:"locations,omitempty"`
	AgreeingSources     int             `json:"agreeing_sources"`
	OverallConfidence   float64         `json:"overall_confidence"`
	NeedsReview         bool            `json:"needs_review"`
	ParsedAt            time.Time       `json:"parsed_at"`
}
