// Package adjudicator calls the generative model that judges submissions,
// proposes quest content, and reconsiders appeals. This package owns the
// shape of what is sent and the strict parsing of what comes back — the one
// failure class that must surface to the caller is an unparsable verdict.
package adjudicator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/strollia/questhunt/internal/appeal"
	"github.com/strollia/questhunt/internal/questhunt"
)

// ErrMalformedVerdict marks an adjudication response the parser could not
// turn into a VerificationOutcome. Fatal to that single verification
// attempt; the UI is expected to offer a retry.
var ErrMalformedVerdict = errors.New("malformed adjudication response")

// VerifyRequest is the input shape supplied to the adjudicator. Media
// travels as an opaque reference plus base64 payload; prompt content is not
// this package's concern beyond field plumbing.
type VerifyRequest struct {
	Objective      string
	SecretCriteria []string
	MediaType      questhunt.MediaType
	MediaB64       string

	// Leniency context.
	GPSConfidence *float64
	GPSDistanceM  *float64
	SessionHint   string
}

// Client talks to an Anthropic-compatible messages endpoint.
type Client struct {
	apiURL     string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter
}

func NewClient(apiURL, apiKey, model string, rps float64) *Client {
	return &Client{
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), 1),
	}
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// complete sends one message round-trip and returns the raw text reply.
func (c *Client) complete(ctx context.Context, system string, payload any) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	content, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	body, err := json.Marshal(apiRequest{
		Model:     c.model,
		MaxTokens: 4096,
		System:    system,
		Messages: []apiMessage{
			{Role: "user", Content: string(content)},
			{Role: "assistant", Content: "{"},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("adjudicator request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}

	var ar apiResponse
	if err := json.Unmarshal(respBody, &ar); err != nil {
		return "", fmt.Errorf("parsing response envelope: %w", err)
	}
	if ar.Error != nil {
		return "", fmt.Errorf("adjudicator API error (%s): %s", ar.Error.Type, ar.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("adjudicator API returned status %d: %s", resp.StatusCode, respBody)
	}
	if len(ar.Content) == 0 {
		return "", fmt.Errorf("adjudicator API returned empty content")
	}

	// The assistant turn was primed with "{"; restore it.
	return "{" + ar.Content[0].Text, nil
}

// verdict is the wire shape the model is asked to produce.
type verdict struct {
	Accepted          *bool                     `json:"accepted"`
	Confidence        *int                      `json:"confidence"`
	RejectionKind     string                    `json:"rejectionKind"`
	PerCriterionNotes []questhunt.CriterionNote `json:"perCriterionNotes"`
	Feedback          string                    `json:"feedback"`
}

// ParseVerdict strictly decodes a model reply into a VerificationOutcome.
// Missing required fields or out-of-range confidence are ErrMalformedVerdict
// — never defaulted to an accept or a reject.
func ParseVerdict(raw string) (questhunt.VerificationOutcome, error) {
	raw = strings.TrimSpace(raw)
	// Models occasionally wrap JSON in a code fence.
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var v verdict
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return questhunt.VerificationOutcome{}, fmt.Errorf("%w: %v", ErrMalformedVerdict, err)
	}
	if v.Accepted == nil {
		return questhunt.VerificationOutcome{}, fmt.Errorf("%w: missing accepted field", ErrMalformedVerdict)
	}
	if v.Confidence == nil || *v.Confidence < 0 || *v.Confidence > 100 {
		return questhunt.VerificationOutcome{}, fmt.Errorf("%w: confidence missing or out of range", ErrMalformedVerdict)
	}

	out := questhunt.VerificationOutcome{
		Accepted:          *v.Accepted,
		Confidence:        *v.Confidence,
		PerCriterionNotes: v.PerCriterionNotes,
		Feedback:          v.Feedback,
	}
	if !out.Accepted {
		out.RejectionKind = questhunt.RejectionKind(v.RejectionKind)
		if out.RejectionKind == "" {
			out.RejectionKind = questhunt.RejectionCriteria
		}
	}
	return out, nil
}

const verifySystem = "You adjudicate scavenger-hunt submissions. Reply with a single JSON object: " +
	`{"accepted": bool, "confidence": 0-100, "rejectionKind": string, "perCriterionNotes": [{"criterion", "observation", "passed", "confidence"}], "feedback": string}.`

// Verify judges one submission against its quest.
func (c *Client) Verify(ctx context.Context, req VerifyRequest) (questhunt.VerificationOutcome, error) {
	raw, err := c.complete(ctx, verifySystem, map[string]any{
		"objective":     req.Objective,
		"criteria":      req.SecretCriteria,
		"mediaType":     req.MediaType,
		"media":         req.MediaB64,
		"gpsConfidence": req.GPSConfidence,
		"gpsDistanceM":  req.GPSDistanceM,
		"sessionHint":   req.SessionHint,
	})
	if err != nil {
		return questhunt.VerificationOutcome{}, err
	}
	return ParseVerdict(raw)
}

const reconsiderSystem = "You re-evaluate a rejected scavenger-hunt submission given the player's explanation " +
	"and GPS evidence. Reply with the same JSON object shape as the original adjudication."

// Reconsider re-runs adjudication with the appeal context assembled by the
// appeal package.
func (c *Client) Reconsider(ctx context.Context, appealCtx appeal.Context) (questhunt.VerificationOutcome, error) {
	raw, err := c.complete(ctx, reconsiderSystem, appealCtx)
	if err != nil {
		return questhunt.VerificationOutcome{}, err
	}
	return ParseVerdict(raw)
}

// QuestSeed is the generated content for one quest before locations and
// distances are bound.
type QuestSeed struct {
	Title            string   `json:"title"`
	Objective        string   `json:"objective"`
	SecretCriteria   []string `json:"secretCriteria"`
	MediaType        string   `json:"mediaType"`
	MediaConstraints string   `json:"mediaConstraints"`
}

const questsSystem = "You invent scavenger-hunt quests for the given real-world locations. Reply with a single " +
	`JSON object: {"quests": [{"title", "objective", "secretCriteria": [..], "mediaType": "photo|video|audio", "mediaConstraints"}]}.`

// SuggestQuests asks the model for quest content, one seed per location.
func (c *Client) SuggestQuests(ctx context.Context, locations []questhunt.LocatedPoint, tier questhunt.RangeTier) ([]QuestSeed, error) {
	type loc struct {
		Name  string   `json:"name,omitempty"`
		Types []string `json:"types,omitempty"`
		Kind  string   `json:"kind"`
	}
	locs := make([]loc, len(locations))
	for i, p := range locations {
		locs[i].Kind = string(p.Kind)
		if p.Place != nil {
			locs[i].Name = p.Place.Name
			locs[i].Types = p.Place.Types
		}
	}

	raw, err := c.complete(ctx, questsSystem, map[string]any{
		"locations": locs,
		"rangeTier": tier,
	})
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Quests []QuestSeed `json:"quests"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return nil, fmt.Errorf("parsing quest seeds: %w", err)
	}
	if len(parsed.Quests) == 0 {
		return nil, errors.New("model returned no quests")
	}
	return parsed.Quests, nil
}

const illustrateSystem = "You write a one-sentence illustration brief for a scavenger-hunt quest. " +
	`Reply with a single JSON object: {"illustrationRef": string}.`

// Illustrate produces the late-bound illustration reference for one quest.
func (c *Client) Illustrate(ctx context.Context, q questhunt.Quest) (string, error) {
	raw, err := c.complete(ctx, illustrateSystem, map[string]any{
		"title":     q.Title,
		"objective": q.Objective,
	})
	if err != nil {
		return "", err
	}

	var parsed struct {
		IllustrationRef string `json:"illustrationRef"`
	}
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &parsed); err != nil {
		return "", fmt.Errorf("parsing illustration reply: %w", err)
	}
	if parsed.IllustrationRef == "" {
		return "", errors.New("model returned no illustration reference")
	}
	return parsed.IllustrationRef, nil
}
