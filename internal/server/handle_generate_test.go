package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/strollia/questhunt/internal/geo"
)

func TestGenerateCampaign(t *testing.T) {
	d, fb, _ := setupDeps(t)
	r := testRouter(d)

	fb.campaign = testCampaign("c-new")

	w := postJSON(t, r, "/api/campaigns", GenerateRequest{
		Start:      geo.Coordinates{Lat: 52.52, Lng: 13.405},
		RangeTier:  "nearby",
		QuestCount: 2,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}

	var view CampaignView
	json.NewDecoder(w.Body).Decode(&view)
	if view.ID != "c-new" || len(view.Quests) != 2 {
		t.Fatalf("unexpected campaign view: %+v", view)
	}

	// Secret criteria never leave the server.
	data, _ := json.Marshal(view.Quests[0])
	if jsonHasKey(data, "secretCriteria") {
		t.Fatal("secret criteria leaked into the campaign view")
	}

	// Campaign and a fresh profile are persisted.
	ctx := context.Background()
	if _, err := d.Store.GetCampaign(ctx, "c-new"); err != nil {
		t.Fatalf("stored campaign: %v", err)
	}
	profile, err := d.Store.GetProfile(ctx, "c-new")
	if err != nil {
		t.Fatalf("stored profile: %v", err)
	}
	if len(profile.QuestHistory) != 0 {
		t.Fatalf("fresh profile has history: %+v", profile)
	}
}

func jsonHasKey(data []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}

func TestGenerateCampaignValidation(t *testing.T) {
	d, _, _ := setupDeps(t)
	r := testRouter(d)

	cases := []struct {
		name string
		req  GenerateRequest
	}{
		{"bad tier", GenerateRequest{Start: geo.Coordinates{Lat: 1, Lng: 1}, RangeTier: "continental"}},
		{"bad latitude", GenerateRequest{Start: geo.Coordinates{Lat: 95, Lng: 1}, RangeTier: "local"}},
		{"too many quests", GenerateRequest{Start: geo.Coordinates{Lat: 1, Lng: 1}, RangeTier: "local", QuestCount: 50}},
	}
	for _, tc := range cases {
		w := postJSON(t, r, "/api/campaigns", tc.req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", tc.name, w.Code)
		}
	}
}

func TestGetCampaignView(t *testing.T) {
	d, _, _ := setupDeps(t)
	r := testRouter(d)

	d.Store.SaveCampaign(context.Background(), testCampaign("c1"))

	req := httptest.NewRequest(http.MethodGet, "/api/campaigns/c1", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var raw map[string]json.RawMessage
	json.Unmarshal(w.Body.Bytes(), &raw)
	var quests []map[string]json.RawMessage
	json.Unmarshal(raw["quests"], &quests)
	if len(quests) != 2 {
		t.Fatalf("quests = %d, want 2", len(quests))
	}
	if _, ok := quests[0]["secretCriteria"]; ok {
		t.Fatal("secret criteria leaked in GET campaign")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/campaigns/nope", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}
