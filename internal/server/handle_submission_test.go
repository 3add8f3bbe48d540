package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/appeal"
	"github.com/strollia/questhunt/internal/database"
	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/gpsgate"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/migrations"
	"github.com/strollia/questhunt/internal/questhunt"
)

type fakeBuilder struct {
	campaign questhunt.Campaign
	err      error
}

func (f *fakeBuilder) Generate(_ context.Context, _ geo.Coordinates, _ questhunt.RangeTier, _ int, _ *rand.Rand) (questhunt.Campaign, error) {
	return f.campaign, f.err
}

type fakeVerifier struct {
	verifyOutcome questhunt.VerificationOutcome
	verifyErr     error
	verifyCalls   int
	lastVerify    adjudicator.VerifyRequest

	reconsiderOutcome questhunt.VerificationOutcome
	reconsiderErr     error
	lastAppeal        appeal.Context
}

func (f *fakeVerifier) Verify(_ context.Context, req adjudicator.VerifyRequest) (questhunt.VerificationOutcome, error) {
	f.verifyCalls++
	f.lastVerify = req
	return f.verifyOutcome, f.verifyErr
}

func (f *fakeVerifier) Reconsider(_ context.Context, appealCtx appeal.Context) (questhunt.VerificationOutcome, error) {
	f.lastAppeal = appealCtx
	return f.reconsiderOutcome, f.reconsiderErr
}

func setupDeps(t *testing.T) (Deps, *fakeBuilder, *fakeVerifier) {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrations.Run(db); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	fb := &fakeBuilder{}
	fv := &fakeVerifier{}
	d := Deps{
		Logger:              slog.New(slog.NewTextHandler(io.Discard, nil)),
		DB:                  db,
		Store:               NewDocStore(db),
		Builder:             fb,
		Verifier:            fv,
		Ledger:              ledger.New(db),
		Curve:               gpsgate.DefaultCurve(),
		DefaultMaxDistanceM: 200,
	}
	return d, fb, fv
}

func testRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	addRoutes(r, d)
	return r
}

func postJSON(t *testing.T, h http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestSubmissionGateRejection(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)

	c := testCampaign("c1")
	if err := d.Store.SaveCampaign(context.Background(), c); err != nil {
		t.Fatalf("save campaign: %v", err)
	}

	// Submitting from the start point, 300 m from the target, against the
	// 200 m default threshold.
	w := postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID:   "q1",
		MediaType: "photo",
		Media:     "aGVsbG8=",
		GPS:       &c.StartCoordinates,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmissionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Accepted {
		t.Fatal("expected gate rejection")
	}
	if resp.RejectionKind != questhunt.RejectionOutOfRange {
		t.Fatalf("rejection kind = %q, want out_of_range", resp.RejectionKind)
	}
	if !strings.Contains(resp.Feedback, "0.3 km") || !strings.Contains(resp.Feedback, "within 200 m") {
		t.Fatalf("unexpected rejection message: %q", resp.Feedback)
	}
	if fv.verifyCalls != 0 {
		t.Fatalf("adjudicator called %d times on a gated submission", fv.verifyCalls)
	}
	if resp.CurrentQuestIndex != 0 {
		t.Fatalf("cursor moved on gate rejection: %d", resp.CurrentQuestIndex)
	}
}

func TestSubmissionAcceptedAdvancesCursor(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)
	ctx := context.Background()

	c := testCampaign("c1")
	if err := d.Store.SaveCampaign(ctx, c); err != nil {
		t.Fatalf("save campaign: %v", err)
	}

	fv.verifyOutcome = questhunt.VerificationOutcome{Accepted: true, Confidence: 92}

	target := c.Quests[0].Location.Coordinates
	w := postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID:   "q1",
		MediaType: "photo",
		Media:     "aGVsbG8=",
		GPS:       &target,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmissionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Accepted {
		t.Fatalf("expected acceptance: %+v", resp)
	}
	if resp.CurrentQuestIndex != 1 {
		t.Fatalf("cursor = %d, want 1", resp.CurrentQuestIndex)
	}
	if resp.CampaignComplete {
		t.Fatal("campaign complete with a quest remaining")
	}
	if resp.GPSConfidence == nil || *resp.GPSConfidence != 1.0 {
		t.Fatalf("gps confidence = %v, want 1.0 at the target", resp.GPSConfidence)
	}

	// Secret criteria reached the adjudicator but never the player.
	if len(fv.lastVerify.SecretCriteria) != 2 {
		t.Fatalf("secret criteria not forwarded: %+v", fv.lastVerify)
	}

	// Cursor persisted.
	saved, err := d.Store.GetCampaign(ctx, "c1")
	if err != nil {
		t.Fatalf("reload campaign: %v", err)
	}
	if saved.CurrentQuestIndex != 1 {
		t.Fatalf("persisted cursor = %d, want 1", saved.CurrentQuestIndex)
	}

	// Profile folded the accepted attempt.
	profile, err := d.Store.GetProfile(ctx, "c1")
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if profile.SuccessRate != 1.0 || len(profile.QuestHistory) != 1 {
		t.Fatalf("profile not updated: %+v", profile)
	}
}

func TestSubmissionWrongMediaSkipsAdjudicator(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)

	c := testCampaign("c1")
	d.Store.SaveCampaign(context.Background(), c)

	target := c.Quests[0].Location.Coordinates
	w := postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID:   "q1",
		MediaType: "audio",
		Media:     "aGVsbG8=",
		GPS:       &target,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmissionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Accepted || resp.RejectionKind != questhunt.RejectionWrongMedia {
		t.Fatalf("expected wrong media rejection, got %+v", resp)
	}
	if fv.verifyCalls != 0 {
		t.Fatal("adjudicator called for a declared media mismatch")
	}
}

func TestSubmissionMalformedVerdictIsRetryable(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)

	c := testCampaign("c1")
	d.Store.SaveCampaign(context.Background(), c)
	fv.verifyErr = adjudicator.ErrMalformedVerdict

	target := c.Quests[0].Location.Coordinates
	w := postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID:   "q1",
		MediaType: "photo",
		Media:     "aGVsbG8=",
		GPS:       &target,
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d: %s", w.Code, w.Body.String())
	}

	// The failed call left no adjudicated attempt behind.
	n, err := d.Store.CountAdjudicated(context.Background(), "c1", "q1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 0 {
		t.Fatalf("adjudicated count = %d, want 0", n)
	}
}

func TestSubmissionUnknownCampaignAndQuest(t *testing.T) {
	d, _, _ := setupDeps(t)
	r := testRouter(d)

	w := postJSON(t, r, "/api/campaigns/nope/submissions", SubmissionRequest{
		QuestID: "q1", MediaType: "photo", Media: "aGVsbG8=",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown campaign: expected 404, got %d", w.Code)
	}

	d.Store.SaveCampaign(context.Background(), testCampaign("c1"))
	w = postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID: "zz", MediaType: "photo", Media: "aGVsbG8=",
	})
	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown quest: expected 404, got %d", w.Code)
	}
}

func TestSubmissionNoGPSPassesGate(t *testing.T) {
	d, _, fv := setupDeps(t)
	r := testRouter(d)

	c := testCampaign("c1")
	d.Store.SaveCampaign(context.Background(), c)
	fv.verifyOutcome = questhunt.VerificationOutcome{Accepted: true, Confidence: 70}

	w := postJSON(t, r, "/api/campaigns/c1/submissions", SubmissionRequest{
		QuestID:   "q1",
		MediaType: "photo",
		Media:     "aGVsbG8=",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp SubmissionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Accepted {
		t.Fatal("submission without GPS must not be blocked by the gate")
	}
	if resp.GPSConfidence != nil {
		t.Fatalf("gps confidence = %v without coordinates", resp.GPSConfidence)
	}
	if fv.lastVerify.GPSConfidence != nil {
		t.Fatal("adjudicator received a confidence for a GPS-less submission")
	}
}
