package places

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/strollia/questhunt/internal/geo"
)

func TestSearchNormalizesResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("radius"); got != "1000" {
			t.Errorf("radius = %q, want 1000", got)
		}
		w.Write([]byte(`{
			"status": "OK",
			"results": [
				{
					"place_id": "p1",
					"name": "Old Mill",
					"vicinity": "3 Mill Lane",
					"types": ["landmark", "tourist_attraction"],
					"geometry": {"location": {"lat": 51.5, "lng": -0.12}}
				},
				{
					"place_id": "",
					"name": "Nameless",
					"geometry": {"location": {"lat": 0, "lng": 0}}
				}
			]
		}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	got, err := c.Search(context.Background(), geo.Coordinates{Lat: 51.5, Lng: -0.12}, 1000, nil)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(got) != 1 {
		t.Fatalf("got %d candidates, want 1 (empty place_id dropped)", len(got))
	}
	p := got[0]
	if p.PlaceID != "p1" || p.Name != "Old Mill" || p.Address != "3 Mill Lane" {
		t.Errorf("unexpected candidate: %+v", p)
	}
	if p.Coordinates.Lat != 51.5 || p.Coordinates.Lng != -0.12 {
		t.Errorf("unexpected coordinates: %+v", p.Coordinates)
	}
	if p.PrimaryType() != "landmark" {
		t.Errorf("primary type = %q, want landmark", p.PrimaryType())
	}
}

func TestSearchErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "OVER_QUERY_LIMIT", "results": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	if _, err := c.Search(context.Background(), geo.Coordinates{}, 500, nil); err == nil {
		t.Fatal("expected error for non-OK API status")
	}
}

func TestSearchZeroResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status": "ZERO_RESULTS", "results": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", 100)
	got, err := c.Search(context.Background(), geo.Coordinates{}, 500, nil)
	if err != nil {
		t.Fatalf("zero results should not error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("got %d candidates, want 0", len(got))
	}
}
