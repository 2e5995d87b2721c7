package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/civiclens/civiclens-go/pkg/models"
	"github.com/civiclens/civiclens-go/pkg/ratelimit"
	AI "github.com/civiclens/civiclens-go/pipelines/AI"
	"github.com/civiclens/civiclens-go/utils"
)

const extractionPromptTemplate = `You are an information extraction system for Indian civic and political social-media posts. Posts may be in Hindi, English, or Romanized Hindi.

Classify the post into exactly one event_type from this list:
%s

Also extract entity mentions exactly as they appear in the text. Do not translate, canonicalize or deduplicate them.

Respond with ONLY a JSON object, no markdown fences, no commentary:
{"event_type": "...", "locations": [...], "people": [...], "organizations": [...], "schemes": [...]}

If no event type fits, use "unknown". Use empty arrays for absent entities.

Post:
%s`

// llmExtractionResponse is the JSON shape the prompt demands from backends
type llmExtractionResponse struct {
	EventType     string   `json:"event_type"`
	Locations     []string `json:"locations"`
	People        []string `json:"people"`
	Organizations []string `json:"organizations"`
	Schemes       []string `json:"schemes"`
}

// LLMExtractor wraps one generative backend as a consensus voter. Every call
// first takes a permit from the shared rate limiter; a denied permit becomes
// an error vote, never a dropped post.
type LLMExtractor struct {
	source        models.VoteSource
	backendID     string
	client        AI.LLMClient
	limiter       *ratelimit.Limiter
	permitTimeout time.Duration
	log           *utils.Logger
}

// NewLLMExtractor creates an extractor voting as source through the given backend
func NewLLMExtractor(source models.VoteSource, backendID string, client AI.LLMClient, limiter *ratelimit.Limiter, permitTimeout time.Duration, log *utils.Logger) (*LLMExtractor, error) {
	if client == nil {
		return nil, fmt.Errorf("llm client is required")
	}
	if limiter == nil {
		return nil, fmt.Errorf("rate limiter is required")
	}
	if source != models.SourceLLMPrimary && source != models.SourceLLMSecondary {
		return nil, fmt.Errorf("invalid llm vote source: %s", source)
	}
	return &LLMExtractor{
		source:        source,
		backendID:     backendID,
		client:        client,
		limiter:       limiter,
		permitTimeout: permitTimeout,
		log:           log,
	}, nil
}

// Source identifies this extractor's votes
func (e *LLMExtractor) Source() models.VoteSource {
	return e.source
}

// Extract asks the backend to classify and extract from one post. All failure
// modes (permit denial, transport errors, malformed output, out-of-enum event
// types) come back as error votes so reconciliation can count them.
func (e *LLMExtractor) Extract(ctx context.Context, post models.Post) models.ExtractionVote {
	start := time.Now()
	vote := models.ExtractionVote{
		Source:  e.source,
		Backend: e.backendID,
	}

	if err := e.limiter.AwaitAcquire(ctx, e.backendID, e.permitTimeout); err != nil {
		vote.Err = fmt.Errorf("permit denied for %s: %w", e.backendID, err)
		vote.Latency = time.Since(start)
		return vote
	}

	raw, err := e.client.CompleteSimple(ctx, e.buildPrompt(post.Text))
	vote.Latency = time.Since(start)
	if err != nil {
		e.reportOutcome(err)
		vote.Err = fmt.Errorf("backend %s failed: %w", e.backendID, err)
		return vote
	}
	e.limiter.ReportSuccess(e.backendID)

	parsed, err := parseExtractionResponse(raw)
	if err != nil {
		if e.log != nil {
			e.log.Warn("discarding malformed backend response",
				utils.String("backend", e.backendID),
				utils.String("post_id", post.ID),
				utils.String("error", err.Error()))
		}
		vote.Err = fmt.Errorf("backend %s returned malformed output: %w", e.backendID, err)
		return vote
	}

	eventType, err := models.ParseEventType(parsed.EventType)
	if err != nil {
		vote.Err = fmt.Errorf("backend %s: %w", e.backendID, err)
		return vote
	}

	vote.EventType = eventType
	vote.RawLocations = cleanMentions(parsed.Locations)
	vote.People = cleanMentions(parsed.People)
	vote.Organizations = cleanMentions(parsed.Organizations)
	vote.Schemes = cleanMentions(parsed.Schemes)
	return vote
}

func (e *LLMExtractor) buildPrompt(text string) string {
	names := make([]string, 0, len(models.KnownEventTypes)+1)
	for _, et := range models.KnownEventTypes {
		names = append(names, string(et))
	}
	names = append(names, string(models.EventUnknown))
	return fmt.Sprintf(extractionPromptTemplate, strings.Join(names, ", "), text)
}

// reportOutcome feeds rate-limit-class failures back into the limiter's
// cooldown. Malformed output is the model's fault, not capacity pressure, so
// it never trips cooldown.
func (e *LLMExtractor) reportOutcome(err error) {
	switch {
	case errors.Is(err, AI.ErrRateLimited),
		errors.Is(err, AI.ErrUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		e.limiter.ReportFailure(e.backendID)
	default:
		e.limiter.ReportSuccess(e.backendID)
	}
}

// parseExtractionResponse extracts the JSON object from a backend answer,
// tolerating markdown code fences and leading prose
func parseExtractionResponse(raw string) (*llmExtractionResponse, error) {
	cleaned := stripCodeFences(raw)

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in response")
	}

	var parsed llmExtractionResponse
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return &parsed, nil
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```json") {
		s = strings.TrimPrefix(s, "```json")
	} else if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanMentions(in []string) []string {
	var out []string
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	return out
}
