package gpsgate

import (
	"math"
	"strings"
	"testing"

	"github.com/strollia/questhunt/internal/geo"
)

func TestConfidencePerfectReading(t *testing.T) {
	c := DefaultCurve()
	if got := c.Confidence(0, 0); got != 1.0 {
		t.Errorf("Confidence(0, 0) = %v, want 1.0", got)
	}
}

func TestConfidenceAnchors(t *testing.T) {
	c := DefaultCurve()

	cases := []struct {
		distanceM float64
		want      float64
	}{
		{10, 1.0},
		{15, 1.0},
		{30, 0.8},
		{50, 0.5},
		{100, 0.2},
	}
	for _, tc := range cases {
		got := c.Confidence(tc.distanceM, 0)
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("Confidence(%v, 0) = %v, want %v", tc.distanceM, got, tc.want)
		}
	}
}

func TestConfidenceMonotonicallyDecreasing(t *testing.T) {
	c := DefaultCurve()

	prev := math.Inf(1)
	for d := 0.0; d <= 500; d += 2.5 {
		got := c.Confidence(d, 10)
		if got > prev {
			t.Fatalf("confidence increased at %v m: %v > %v", d, got, prev)
		}
		if got < 0 || got > 1 {
			t.Fatalf("confidence out of range at %v m: %v", d, got)
		}
		prev = got
	}
}

func TestConfidenceAccuracyInflates(t *testing.T) {
	c := DefaultCurve()

	// 20 m away with 40 m accuracy should score like 40 m away with
	// perfect accuracy (inflation 0.5).
	if a, b := c.Confidence(20, 40), c.Confidence(40, 0); math.Abs(a-b) > 1e-9 {
		t.Errorf("inflated confidence %v != plain confidence %v", a, b)
	}
}

func TestConfidenceTailReachesZero(t *testing.T) {
	c := DefaultCurve()
	if got := c.Confidence(2000, 0); got != 0 {
		t.Errorf("Confidence(2000, 0) = %v, want 0", got)
	}
}

func TestCurveValidate(t *testing.T) {
	if err := DefaultCurve().Validate(); err != nil {
		t.Errorf("default curve invalid: %v", err)
	}

	bad := DefaultCurve()
	bad.MidScore = 0.9 // above NearScore
	if err := bad.Validate(); err == nil {
		t.Error("expected validation error for non-decreasing scores")
	}
}

func TestCheckThresholdDisabled(t *testing.T) {
	user := &geo.Coordinates{Lat: 0, Lng: 0}
	target := &geo.Coordinates{Lat: 10, Lng: 10}

	if res := CheckThreshold(user, target, nil); !res.Allowed {
		t.Error("nil threshold must pass regardless of distance")
	}
	if res := CheckThreshold(nil, nil, nil); !res.Allowed {
		t.Error("nil threshold with nil coordinates must pass")
	}
}

func TestCheckThresholdMissingCoordinates(t *testing.T) {
	max := 200.0
	target := &geo.Coordinates{Lat: 0, Lng: 0}

	if res := CheckThreshold(nil, target, &max); !res.Allowed {
		t.Error("missing user GPS must pass the gate")
	}
	if res := CheckThreshold(target, nil, &max); !res.Allowed {
		t.Error("missing target GPS must pass the gate")
	}
}

func TestCheckThresholdBoundary(t *testing.T) {
	max := 200.0
	target := &geo.Coordinates{Lat: 0, Lng: 0}

	// 0.009 degrees latitude is ~1001 m; scale down for 199 m and 201 m.
	near := &geo.Coordinates{Lat: 0.009 * 0.199, Lng: 0}
	far := &geo.Coordinates{Lat: 0.009 * 0.201, Lng: 0}

	if res := CheckThreshold(near, target, &max); !res.Allowed {
		t.Errorf("199 m should pass, got rejection %q", res.RejectionMessage)
	}
	if res := CheckThreshold(far, target, &max); res.Allowed {
		t.Error("201 m should be rejected")
	}
}

func TestCheckThresholdRejectionMessage(t *testing.T) {
	max := 200.0
	target := &geo.Coordinates{Lat: 0, Lng: 0}
	user := &geo.Coordinates{Lat: 0.009 * 0.25, Lng: 0} // ~250 m

	res := CheckThreshold(user, target, &max)
	if res.Allowed {
		t.Fatal("250 m should be rejected at 200 m threshold")
	}
	if !strings.Contains(res.RejectionMessage, "200") {
		t.Errorf("message %q should name the 200 m threshold", res.RejectionMessage)
	}
	if !strings.Contains(res.RejectionMessage, "0.3") {
		t.Errorf("message %q should carry the distance in km to one decimal", res.RejectionMessage)
	}
	if res.DistanceM == nil || math.Abs(*res.DistanceM-250) > 5 {
		t.Errorf("measured distance = %v, want ~250", res.DistanceM)
	}
}
