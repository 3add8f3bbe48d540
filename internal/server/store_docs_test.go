package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/strollia/questhunt/internal/database"
	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/migrations"
	"github.com/strollia/questhunt/internal/questhunt"
)

func setupStore(t *testing.T) *DocStore {
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

	return NewDocStore(db)
}

func testCampaign(id string) questhunt.Campaign {
	start := geo.Coordinates{Lat: 52.52, Lng: 13.405}
	target := geo.Destination(start, 0, 0.3)
	return questhunt.Campaign{
		ID:               id,
		StartCoordinates: start,
		RangeTier:        questhunt.TierNearby,
		Quests: []questhunt.Quest{
			{
				ID:             "q1",
				Title:          "The Corner Clock",
				Objective:      "Photograph the old clock face",
				SecretCriteria: []string{"clock face visible", "taken outdoors"},
				Location:       questhunt.SyntheticPoint(target),
				MediaType:      questhunt.MediaPhoto,
			},
			{
				ID:        "q2",
				Title:     "Street Sounds",
				Objective: "Record one minute of the market",
				Location:  questhunt.SyntheticPoint(geo.Destination(start, 90, 0.5)),
				MediaType: questhunt.MediaAudio,
			},
		},
		CreatedAt: time.Now().UTC(),
	}
}

func TestDocStoreCampaignRoundtrip(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	c := testCampaign("c1")
	if err := store.SaveCampaign(ctx, c); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := store.GetCampaign(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Quests) != 2 || got.Quests[0].ID != "q1" {
		t.Fatalf("unexpected quests: %+v", got.Quests)
	}
	if got.Quests[0].SecretCriteria[0] != "clock face visible" {
		t.Fatalf("secret criteria lost on roundtrip")
	}

	// Upsert replaces.
	c.CurrentQuestIndex = 1
	if err := store.SaveCampaign(ctx, c); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, _ = store.GetCampaign(ctx, "c1")
	if got.CurrentQuestIndex != 1 {
		t.Fatalf("cursor = %d, want 1", got.CurrentQuestIndex)
	}

	if _, err := store.GetCampaign(ctx, "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing campaign err = %v, want ErrNotFound", err)
	}
}

func TestDocStoreProfileUpsert(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	if _, err := store.GetProfile(ctx, "c1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing profile err = %v, want ErrNotFound", err)
	}

	p := questhunt.SessionProfile{SuccessRate: 0.5}
	if err := store.SaveProfile(ctx, "c1", p); err != nil {
		t.Fatalf("save: %v", err)
	}
	p.SuccessRate = 0.75
	if err := store.SaveProfile(ctx, "c1", p); err != nil {
		t.Fatalf("save again: %v", err)
	}

	got, err := store.GetProfile(ctx, "c1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.SuccessRate != 0.75 {
		t.Fatalf("success rate = %v, want 0.75", got.SuccessRate)
	}
}

func TestDocStoreSubmissionQueries(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rejected := questhunt.VerificationOutcome{Accepted: false, Confidence: 40, RejectionKind: questhunt.RejectionCriteria}
	accepted := questhunt.VerificationOutcome{Accepted: true, Confidence: 90}

	records := []SubmissionRecord{
		{ID: "s1", CampaignID: "c1", QuestID: "q1", Kind: "submission", GateRejected: true, CreatedAt: now},
		{ID: "s2", CampaignID: "c1", QuestID: "q1", Kind: "submission", Outcome: &rejected, CreatedAt: now},
		{ID: "s3", CampaignID: "c1", QuestID: "q1", Kind: "appeal", Outcome: &rejected, CreatedAt: now},
		{ID: "s4", CampaignID: "c1", QuestID: "q2", Kind: "submission", Outcome: &accepted, CreatedAt: now},
	}
	for _, rec := range records {
		if err := store.SaveSubmission(ctx, rec); err != nil {
			t.Fatalf("save %s: %v", rec.ID, err)
		}
	}

	// Gate rejections and appeals do not count as adjudicated attempts.
	n, err := store.CountAdjudicated(ctx, "c1", "q1")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("adjudicated count = %d, want 1", n)
	}

	// Latest rejection is the appeal outcome, not the gate rejection.
	rec, err := store.LatestRejection(ctx, "c1", "q1")
	if err != nil {
		t.Fatalf("latest rejection: %v", err)
	}
	if rec.ID != "s3" {
		t.Fatalf("latest rejection = %s, want s3", rec.ID)
	}

	// Accepted-only quests have no rejection to appeal.
	if _, err := store.LatestRejection(ctx, "c1", "q2"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("q2 rejection err = %v, want ErrNotFound", err)
	}
}
