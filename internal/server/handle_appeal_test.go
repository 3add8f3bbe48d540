package server

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/strollia/questhunt/internal/questhunt"
)

func seedRejection(t *testing.T, d Deps, campaignID, questID string, gpsConfidence float64) {
	t.Helper()
	outcome := questhunt.VerificationOutcome{
		Accepted:      false,
		Confidence:    35,
		RejectionKind: questhunt.RejectionCriteria,
		PerCriterionNotes: []questhunt.CriterionNote{
			{Criterion: "clock face visible", Observation: "too dark to tell", Passed: false, Confidence: 0.4},
			{Criterion: "taken outdoors", Observation: "street visible", Passed: true, Confidence: 0.9},
		},
	}
	err := d.Store.SaveSubmission(context.Background(), SubmissionRecord{
		ID:            "seeded",
		CampaignID:    campaignID,
		QuestID:       questID,
		Kind:          "submission",
		Attempt:       questhunt.SubmissionAttempt{QuestID: questID, MediaType: questhunt.MediaPhoto},
		GPSConfidence: &gpsConfidence,
		Outcome:       &outcome,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed rejection: %v", err)
	}
}

func TestAppealAcceptsAndAdvances(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)
	ctx := context.Background()

	c := testCampaign("c1")
	d.Store.SaveCampaign(ctx, c)
	seedRejection(t, d, "c1", "q1", 0.95)

	fv.reconsiderOutcome = questhunt.VerificationOutcome{Accepted: true, Confidence: 75}

	w := postJSON(t, r, "/api/campaigns/c1/appeals", AppealRequest{
		QuestID:     "q1",
		Explanation: "The clock is in the upper left, behind the lamp post.",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmissionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Accepted {
		t.Fatalf("expected appeal acceptance: %+v", resp)
	}
	if resp.CurrentQuestIndex != 1 {
		t.Fatalf("cursor = %d, want 1", resp.CurrentQuestIndex)
	}

	// The reconsider context carried the strong GPS signal and only the
	// failed criterion.
	if !fv.lastAppeal.StrongGPSSignal {
		t.Fatalf("strong gps signal lost: %+v", fv.lastAppeal)
	}
	if len(fv.lastAppeal.FailedCriteria) != 1 || fv.lastAppeal.FailedCriteria[0].Criterion != "clock face visible" {
		t.Fatalf("unexpected failed criteria: %+v", fv.lastAppeal.FailedCriteria)
	}

	saved, _ := d.Store.GetCampaign(ctx, "c1")
	if saved.CurrentQuestIndex != 1 {
		t.Fatalf("persisted cursor = %d, want 1", saved.CurrentQuestIndex)
	}
}

func TestAppealWithoutRejectionConflicts(t *testing.T) {
	d, _, _ := setupDeps(t)
	r := testRouter(d)

	d.Store.SaveCampaign(context.Background(), testCampaign("c1"))

	w := postJSON(t, r, "/api/campaigns/c1/appeals", AppealRequest{
		QuestID:     "q1",
		Explanation: "please look again",
	})
	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAppealRequiresExplanation(t *testing.T) {
	d, _, _ := setupDeps(t)
	r := testRouter(d)

	d.Store.SaveCampaign(context.Background(), testCampaign("c1"))

	w := postJSON(t, r, "/api/campaigns/c1/appeals", AppealRequest{QuestID: "q1", Explanation: "   "})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", w.Code, w.Body.String())
	}
}
