package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/gpsgate"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/session"
)

type SubmissionRequest struct {
	QuestID      string           `json:"questId"`
	MediaType    string           `json:"mediaType"`
	Media        string           `json:"media"` // base64 payload
	GPS          *geo.Coordinates `json:"gps,omitempty"`
	GPSAccuracyM *float64         `json:"gpsAccuracyMeters,omitempty"`
}

type SubmissionResponse struct {
	SubmissionID        string                  `json:"submissionId"`
	Accepted            bool                    `json:"accepted"`
	Confidence          int                     `json:"confidence"`
	RejectionKind       questhunt.RejectionKind `json:"rejectionKind,omitempty"`
	Feedback            string                  `json:"feedback,omitempty"`
	DistanceFromTargetM *float64                `json:"distanceFromTargetMeters,omitempty"`
	GPSConfidence       *float64                `json:"gpsConfidence,omitempty"`
	CurrentQuestIndex   int                     `json:"currentQuestIndex"`
	CampaignComplete    bool                    `json:"campaignComplete"`
}

func handleSubmission(d Deps, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignID")

		var req SubmissionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.QuestID == "" || req.Media == "" {
			writeError(w, http.StatusBadRequest, "questId and media are required")
			return
		}

		mediaType := questhunt.MediaType(req.MediaType)
		switch mediaType {
		case questhunt.MediaPhoto, questhunt.MediaVideo, questhunt.MediaAudio:
		default:
			writeError(w, http.StatusBadRequest, "mediaType must be photo, video or audio")
			return
		}

		campaign, err := d.Store.GetCampaign(r.Context(), campaignID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		if err != nil {
			d.Logger.Error("loading campaign", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		quest := campaign.QuestByID(req.QuestID)
		if quest == nil {
			writeError(w, http.StatusNotFound, "quest not found in campaign")
			return
		}

		attempt := questhunt.SubmissionAttempt{
			QuestID:      req.QuestID,
			MediaType:    mediaType,
			GPS:          req.GPS,
			GPSAccuracyM: req.GPSAccuracyM,
			Timestamp:    time.Now().UTC(),
		}

		// Hard distance gate before any adjudication effort.
		gate := gpsgate.CheckThreshold(req.GPS, &quest.Location.Coordinates, thresholdFor(d, quest))
		if !gate.Allowed {
			rec := SubmissionRecord{
				ID:           ulid.Make().String(),
				CampaignID:   campaignID,
				QuestID:      req.QuestID,
				Kind:         "submission",
				Attempt:      attempt,
				GateRejected: true,
				GateMessage:  gate.RejectionMessage,
				DistanceM:    gate.DistanceM,
				CreatedAt:    attempt.Timestamp,
			}
			if err := d.Store.SaveSubmission(r.Context(), rec); err != nil {
				d.Logger.Error("saving submission", "error", err)
			}
			writeJSON(w, http.StatusOK, SubmissionResponse{
				SubmissionID:        rec.ID,
				Accepted:            false,
				RejectionKind:       questhunt.RejectionOutOfRange,
				Feedback:            gate.RejectionMessage,
				DistanceFromTargetM: gate.DistanceM,
				CurrentQuestIndex:   campaign.CurrentQuestIndex,
			})
			return
		}

		var gpsConfidence *float64
		if gate.DistanceM != nil {
			accuracy := 0.0
			if req.GPSAccuracyM != nil {
				accuracy = *req.GPSAccuracyM
			}
			c := d.Curve.Confidence(*gate.DistanceM, accuracy)
			gpsConfidence = &c
		}

		prior, err := d.Store.CountAdjudicated(r.Context(), campaignID, req.QuestID)
		if err != nil {
			d.Logger.Error("counting attempts", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		profile, err := d.Store.GetProfile(r.Context(), campaignID)
		if errors.Is(err, ErrNotFound) {
			profile = session.NewProfile()
		} else if err != nil {
			d.Logger.Error("loading profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		var outcome questhunt.VerificationOutcome
		if mediaType != quest.MediaType {
			// Declared media kind does not match the quest; no adjudication
			// needed to reject this one.
			outcome = questhunt.VerificationOutcome{
				Accepted:      false,
				Confidence:    100,
				RejectionKind: questhunt.RejectionWrongMedia,
				Feedback:      "This quest asks for a " + string(quest.MediaType) + " capture.",
			}
		} else {
			outcome, err = d.Verifier.Verify(r.Context(), adjudicator.VerifyRequest{
				Objective:      quest.Objective,
				SecretCriteria: quest.SecretCriteria,
				MediaType:      quest.MediaType,
				MediaB64:       req.Media,
				GPSConfidence:  gpsConfidence,
				GPSDistanceM:   gate.DistanceM,
				SessionHint:    session.Hint(profile),
			})
			if errors.Is(err, adjudicator.ErrMalformedVerdict) {
				writeError(w, http.StatusBadGateway, "verification response could not be parsed, retry the submission")
				return
			}
			if err != nil {
				d.Logger.Error("verification failed", "error", err)
				writeError(w, http.StatusBadGateway, "verification failed, retry the submission")
				return
			}
		}
		outcome.DistanceFromTargetM = gate.DistanceM

		profile = session.Record(profile, questhunt.QuestAttemptSummary{
			QuestID:    req.QuestID,
			MediaType:  quest.MediaType,
			Accepted:   outcome.Accepted,
			Attempts:   prior + 1,
			Notes:      outcome.PerCriterionNotes,
			RecordedAt: attempt.Timestamp,
		})
		if err := d.Store.SaveProfile(r.Context(), campaignID, profile); err != nil {
			d.Logger.Error("saving profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		rec := SubmissionRecord{
			ID:            ulid.Make().String(),
			CampaignID:    campaignID,
			QuestID:       req.QuestID,
			Kind:          "submission",
			Attempt:       attempt,
			GPSConfidence: gpsConfidence,
			DistanceM:     gate.DistanceM,
			Outcome:       &outcome,
			CreatedAt:     attempt.Timestamp,
		}
		if err := d.Store.SaveSubmission(r.Context(), rec); err != nil {
			d.Logger.Error("saving submission", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		campaign = advanceIfCurrent(r.Context(), d, campaign, req.QuestID, outcome.Accepted)

		broker.Publish(campaignID, SSEEvent{
			Type:          "submission",
			QuestID:       req.QuestID,
			QuestIndex:    campaign.CurrentQuestIndex,
			Accepted:      outcome.Accepted,
			RejectionKind: string(outcome.RejectionKind),
		})

		writeJSON(w, http.StatusOK, SubmissionResponse{
			SubmissionID:        rec.ID,
			Accepted:            outcome.Accepted,
			Confidence:          outcome.Confidence,
			RejectionKind:       outcome.RejectionKind,
			Feedback:            outcome.Feedback,
			DistanceFromTargetM: gate.DistanceM,
			GPSConfidence:       gpsConfidence,
			CurrentQuestIndex:   campaign.CurrentQuestIndex,
			CampaignComplete:    campaign.CurrentQuestIndex >= len(campaign.Quests),
		})
	}
}

// thresholdFor resolves the gate threshold for a quest: the configured
// default unless the quest overrides it, with an explicit 0 disabling the
// gate entirely.
func thresholdFor(d Deps, q *questhunt.Quest) *float64 {
	if q.MaxDistanceM == nil {
		v := d.DefaultMaxDistanceM
		return &v
	}
	if *q.MaxDistanceM == 0 {
		return nil
	}
	return q.MaxDistanceM
}

// advanceIfCurrent moves the campaign cursor past the quest when it was the
// current one and the submission was accepted. Cursor moves are persisted
// best-effort; a failed save leaves the cursor where it was.
func advanceIfCurrent(ctx context.Context, d Deps, c questhunt.Campaign, questID string, accepted bool) questhunt.Campaign {
	if !accepted || c.CurrentQuestIndex >= len(c.Quests) {
		return c
	}
	if c.Quests[c.CurrentQuestIndex].ID != questID {
		return c
	}
	c.CurrentQuestIndex++
	if err := d.Store.SaveCampaign(ctx, c); err != nil {
		d.Logger.Error("saving campaign cursor", "error", err)
		c.CurrentQuestIndex--
	}
	return c
}
