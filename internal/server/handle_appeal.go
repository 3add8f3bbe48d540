package server

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/appeal"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/session"
)

type AppealRequest struct {
	QuestID     string `json:"questId"`
	Explanation string `json:"explanation"`
}

func handleAppeal(d Deps, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		campaignID := chi.URLParam(r, "campaignID")

		var req AppealRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		req.Explanation = strings.TrimSpace(req.Explanation)
		if req.QuestID == "" || req.Explanation == "" {
			writeError(w, http.StatusBadRequest, "questId and explanation are required")
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
		if campaign.QuestByID(req.QuestID) == nil {
			writeError(w, http.StatusNotFound, "quest not found in campaign")
			return
		}

		rejected, err := d.Store.LatestRejection(r.Context(), campaignID, req.QuestID)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusConflict, "no rejected submission to appeal")
			return
		}
		if err != nil {
			d.Logger.Error("loading rejection", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		gpsConfidence := 0.0
		if rejected.GPSConfidence != nil {
			gpsConfidence = *rejected.GPSConfidence
		}

		outcome, err := d.Verifier.Reconsider(r.Context(),
			appeal.Build(*rejected.Outcome, req.Explanation, gpsConfidence))
		if errors.Is(err, adjudicator.ErrMalformedVerdict) {
			writeError(w, http.StatusBadGateway, "appeal response could not be parsed, retry the appeal")
			return
		}
		if err != nil {
			d.Logger.Error("appeal failed", "error", err)
			writeError(w, http.StatusBadGateway, "appeal failed, retry the appeal")
			return
		}
		outcome.DistanceFromTargetM = rejected.DistanceM

		// An appeal re-judges an existing attempt, so the attempt count is
		// unchanged when folding the new outcome into the profile.
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

		now := time.Now().UTC()
		profile = session.Record(profile, questhunt.QuestAttemptSummary{
			QuestID:    req.QuestID,
			MediaType:  rejected.Attempt.MediaType,
			Accepted:   outcome.Accepted,
			Attempts:   prior,
			Notes:      outcome.PerCriterionNotes,
			RecordedAt: now,
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
			Kind:          "appeal",
			Attempt:       rejected.Attempt,
			GPSConfidence: rejected.GPSConfidence,
			DistanceM:     rejected.DistanceM,
			Outcome:       &outcome,
			CreatedAt:     now,
		}
		if err := d.Store.SaveSubmission(r.Context(), rec); err != nil {
			d.Logger.Error("saving appeal", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		campaign = advanceIfCurrent(r.Context(), d, campaign, req.QuestID, outcome.Accepted)

		broker.Publish(campaignID, SSEEvent{
			Type:          "appeal",
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
			DistanceFromTargetM: rejected.DistanceM,
			GPSConfidence:       rejected.GPSConfidence,
			CurrentQuestIndex:   campaign.CurrentQuestIndex,
			CampaignComplete:    campaign.CurrentQuestIndex >= len(campaign.Quests),
		})
	}
}
