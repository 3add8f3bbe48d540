package server

import (
	"context"
	"errors"
	"time"

	"github.com/strollia/questhunt/internal/questhunt"
)

var ErrNotFound = errors.New("not found")

// SubmissionRecord is one persisted verification attempt. Gate-rejected
// attempts never reached the adjudicator and carry no outcome.
type SubmissionRecord struct {
	ID         string `json:"id"`
	CampaignID string `json:"campaignId"`
	QuestID    string `json:"questId"`

	// Kind is "submission" or "appeal".
	Kind string `json:"kind"`

	Attempt       questhunt.SubmissionAttempt    `json:"attempt"`
	GateRejected  bool                           `json:"gateRejected"`
	GateMessage   string                         `json:"gateMessage,omitempty"`
	GPSConfidence *float64                       `json:"gpsConfidence,omitempty"`
	DistanceM     *float64                       `json:"distanceFromTargetMeters,omitempty"`
	Outcome       *questhunt.VerificationOutcome `json:"outcome,omitempty"`
	CreatedAt     time.Time                      `json:"createdAt"`
}

type Store interface {
	SaveCampaign(ctx context.Context, c questhunt.Campaign) error
	GetCampaign(ctx context.Context, id string) (questhunt.Campaign, error)

	SaveProfile(ctx context.Context, campaignID string, p questhunt.SessionProfile) error
	GetProfile(ctx context.Context, campaignID string) (questhunt.SessionProfile, error)

	SaveSubmission(ctx context.Context, rec SubmissionRecord) error

	// CountAdjudicated counts attempts for a quest that reached the
	// adjudicator, appeals excluded.
	CountAdjudicated(ctx context.Context, campaignID, questID string) (int, error)

	// LatestRejection returns the most recent adjudicated rejection for a
	// quest, or ErrNotFound.
	LatestRejection(ctx context.Context, campaignID, questID string) (SubmissionRecord, error)
}
