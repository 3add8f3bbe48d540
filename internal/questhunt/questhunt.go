// Package questhunt defines the core domain types shared across the service.
// Everything here is pure data — no external dependencies, no behavior beyond
// small accessors.
package questhunt

import (
	"time"

	"github.com/strollia/questhunt/internal/geo"
)

// MediaType is the kind of capture a quest asks for.
type MediaType string

const (
	MediaPhoto MediaType = "photo"
	MediaVideo MediaType = "video"
	MediaAudio MediaType = "audio"
)

// RangeTier names a distance-range profile for campaign generation.
type RangeTier string

const (
	TierLocal  RangeTier = "local"
	TierNearby RangeTier = "nearby"
	TierFar    RangeTier = "far"
)

// RangeProfile describes how far from the start point quests may be placed
// and how wide the places search should cast. Configuration, not runtime state.
type RangeProfile struct {
	Tier          RangeTier `json:"tier" toml:"tier"`
	MinKm         float64   `json:"minKm" toml:"min_km"`
	MaxKm         float64   `json:"maxKm" toml:"max_km"`
	SearchRadiusM int       `json:"searchRadiusMeters" toml:"search_radius_m"`
}

// PlaceCandidate is one real-world point of interest from the places lookup.
// PlaceID is the external system's stable identifier; the source does not
// guarantee uniqueness within a pool.
type PlaceCandidate struct {
	PlaceID     string          `json:"placeId"`
	Name        string          `json:"name"`
	Address     string          `json:"address"`
	Coordinates geo.Coordinates `json:"coordinates"`
	Types       []string        `json:"types"`
}

// PrimaryType returns the first category tag, or "" when untyped.
func (p PlaceCandidate) PrimaryType() string {
	if len(p.Types) == 0 {
		return ""
	}
	return p.Types[0]
}

// PointKind discriminates the LocatedPoint variant.
type PointKind string

const (
	PointReal      PointKind = "real"
	PointSynthetic PointKind = "synthetic"
)

// LocatedPoint is a tagged variant: either a real place from the lookup or a
// synthetic coordinate generated as a terminal fallback. Coordinates is set
// for both kinds; Place only when Kind is PointReal.
type LocatedPoint struct {
	Kind        PointKind       `json:"kind"`
	Place       *PlaceCandidate `json:"place,omitempty"`
	Coordinates geo.Coordinates `json:"coordinates"`
}

// RealPlace wraps a place candidate as a located point.
func RealPlace(p PlaceCandidate) LocatedPoint {
	return LocatedPoint{Kind: PointReal, Place: &p, Coordinates: p.Coordinates}
}

// SyntheticPoint wraps a bare coordinate as a located point.
func SyntheticPoint(c geo.Coordinates) LocatedPoint {
	return LocatedPoint{Kind: PointSynthetic, Coordinates: c}
}

// VisitedPlaceRecord is one ledger entry per place ever selected for a
// campaign. Append-only: mutated only by appending a new visit.
type VisitedPlaceRecord struct {
	PlaceID         string    `json:"placeId"`
	VisitedAt       time.Time `json:"visitedAt"`
	CampaignHistory []string  `json:"campaignHistory"`
}

// Quest is one objective tied to a real-world coordinate. Immutable after
// campaign generation, except for the late-bound illustration reference.
type Quest struct {
	ID                     string       `json:"id"`
	Title                  string       `json:"title"`
	Objective              string       `json:"objective"`
	SecretCriteria         []string     `json:"secretCriteria"`
	Location               LocatedPoint `json:"location"`
	DistanceFromPreviousKm float64      `json:"distanceFromPreviousKm"`
	MediaType              MediaType    `json:"mediaType"`
	MediaConstraints       string       `json:"mediaConstraints,omitempty"`
	IllustrationRef        string       `json:"illustrationRef,omitempty"`

	// MaxDistanceM overrides the GPS gate threshold for this quest.
	// nil means the configured default; an explicit 0 disables the gate.
	MaxDistanceM *float64 `json:"maxDistanceMeters,omitempty"`
}

// Campaign is an ordered quest sequence for one start location and range
// tier. The cursor advances monotonically.
type Campaign struct {
	ID                string          `json:"id"`
	StartCoordinates  geo.Coordinates `json:"startCoordinates"`
	RangeTier         RangeTier       `json:"rangeTier"`
	Quests            []Quest         `json:"quests"`
	CurrentQuestIndex int             `json:"currentQuestIndex"`
	TotalDistanceKm   float64         `json:"totalDistanceKm"`
	CreatedAt         time.Time       `json:"createdAt"`
}

// QuestByID returns the quest with the given ID, or nil.
func (c *Campaign) QuestByID(id string) *Quest {
	for i := range c.Quests {
		if c.Quests[i].ID == id {
			return &c.Quests[i]
		}
	}
	return nil
}

// SubmissionAttempt is the transient input to one verification call.
type SubmissionAttempt struct {
	QuestID      string           `json:"questId"`
	MediaType    MediaType        `json:"mediaType"`
	GPS          *geo.Coordinates `json:"gps,omitempty"`
	GPSAccuracyM *float64         `json:"gpsAccuracyMeters,omitempty"`
	Timestamp    time.Time        `json:"timestamp"`
}

// RejectionKind classifies why a submission was rejected.
type RejectionKind string

const (
	RejectionOutOfRange RejectionKind = "out_of_range"
	RejectionCriteria   RejectionKind = "criteria_not_met"
	RejectionWrongMedia RejectionKind = "wrong_media_type"
)

// CriterionNote is the adjudicator's observation for one secret criterion.
type CriterionNote struct {
	Criterion   string  `json:"criterion"`
	Observation string  `json:"observation"`
	Passed      bool    `json:"passed"`
	Confidence  float64 `json:"confidence"`
}

// VerificationOutcome is the adjudicated result of one submission.
type VerificationOutcome struct {
	Accepted            bool            `json:"accepted"`
	Confidence          int             `json:"confidence"` // 0-100
	RejectionKind       RejectionKind   `json:"rejectionKind,omitempty"`
	DistanceFromTargetM *float64        `json:"distanceFromTargetMeters,omitempty"`
	PerCriterionNotes   []CriterionNote `json:"perCriterionNotes"`
	Feedback            string          `json:"feedback,omitempty"`
}

// QuestAttemptSummary is the per-quest record folded into the session
// profile. Only the final outcome per quest matters for behavioral
// inference, so a later summary for the same quest replaces the earlier one.
type QuestAttemptSummary struct {
	QuestID    string          `json:"questId"`
	MediaType  MediaType       `json:"mediaType"`
	Accepted   bool            `json:"accepted"`
	Attempts   int             `json:"attempts"`
	Notes      []CriterionNote `json:"notes,omitempty"`
	RecordedAt time.Time       `json:"recordedAt"`
}

// EncouragementLevel bands the adaptive voice's warmth.
type EncouragementLevel string

const (
	EncouragementLow    EncouragementLevel = "low"
	EncouragementMedium EncouragementLevel = "medium"
	EncouragementHigh   EncouragementLevel = "high"
)

// VoiceState is the adaptive feedback voice. Tone and encouragement are
// recomputed fresh on every update; callback phrases and the nickname only
// ever grow.
type VoiceState struct {
	NarrativeTone      string             `json:"narrativeTone"`
	EncouragementLevel EncouragementLevel `json:"encouragementLevel"`
	ReferenceStyle     string             `json:"referenceStyle"` // brief or detailed
	CallbackPhrases    []string           `json:"callbackPhrases"`
	EarnedNickname     string             `json:"earnedNickname,omitempty"`
}

// SessionProfile is the rolling behavioral profile for one campaign's play
// session. Always rebuilt from the full QuestHistory, never patched field by
// field.
type SessionProfile struct {
	QuestHistory            []QuestAttemptSummary `json:"questHistory"`
	SuccessRate             float64               `json:"successRate"`
	AverageAttemptsPerQuest float64               `json:"averageAttemptsPerQuest"`
	StrongestMediaType      MediaType             `json:"strongestMediaType,omitempty"`
	WeakestMediaType        MediaType             `json:"weakestMediaType,omitempty"`
	CommonIssueTags         []string              `json:"commonIssueTags"`
	Voice                   VoiceState            `json:"voiceState"`
}
