// Package gpsgate decides how much a GPS reading should count as evidence of
// physical presence. It has two independent jobs: a soft confidence score fed
// to the adjudicator, and a hard distance threshold applied before any
// adjudication effort is spent.
package gpsgate

import (
	"fmt"
	"math"

	"github.com/strollia/questhunt/internal/geo"
)

// Curve is the tunable confidence policy. The anchor distances must be
// strictly increasing and the anchor scores strictly decreasing; Validate
// enforces that on load.
type Curve struct {
	// AccuracyInflation is the fraction of the reported accuracy radius
	// added to the raw distance. Poor accuracy works against the player.
	AccuracyInflation float64 `toml:"accuracy_inflation"`

	// Piecewise-linear anchors: full confidence up to FullM, then linear
	// segments down to FarScore at FarM, then asymptotic decay to 0 over
	// DecayM metres beyond FarM.
	FullM     float64 `toml:"full_m"`      // <= FullM -> 1.0
	NearM     float64 `toml:"near_m"`      // FullM..NearM -> 1.0..NearScore
	NearScore float64 `toml:"near_score"`  //
	MidM      float64 `toml:"mid_m"`       // NearM..MidM -> NearScore..MidScore
	MidScore  float64 `toml:"mid_score"`   //
	FarM      float64 `toml:"far_m"`       // MidM..FarM -> MidScore..FarScore
	FarScore  float64 `toml:"far_score"`   //
	DecayM    float64 `toml:"decay_m"`     // decay horizon beyond FarM
}

// DefaultCurve returns the anchors the product shipped with: 15 m/1.0,
// 30 m/0.8, 50 m/0.5, 100 m/0.2, decaying toward 0 over the next 200 m.
func DefaultCurve() Curve {
	return Curve{
		AccuracyInflation: 0.5,
		FullM:             15,
		NearM:             30,
		NearScore:         0.8,
		MidM:              50,
		MidScore:          0.5,
		FarM:              100,
		FarScore:          0.2,
		DecayM:            200,
	}
}

// Validate checks that the curve is monotonically decreasing.
func (c Curve) Validate() error {
	if c.AccuracyInflation < 0 {
		return fmt.Errorf("accuracy inflation %v is negative", c.AccuracyInflation)
	}
	if !(c.FullM < c.NearM && c.NearM < c.MidM && c.MidM < c.FarM) {
		return fmt.Errorf("curve distances must be increasing: %v %v %v %v", c.FullM, c.NearM, c.MidM, c.FarM)
	}
	if !(1.0 > c.NearScore && c.NearScore > c.MidScore && c.MidScore > c.FarScore && c.FarScore > 0) {
		return fmt.Errorf("curve scores must be decreasing in (0,1): %v %v %v", c.NearScore, c.MidScore, c.FarScore)
	}
	if c.DecayM <= 0 {
		return fmt.Errorf("decay horizon %v must be positive", c.DecayM)
	}
	return nil
}

// Confidence maps a measured distance and GPS accuracy to a [0,1] trust
// score. The raw distance is inflated by a fraction of the accuracy radius
// before being run through the piecewise curve, so a wide accuracy circle
// never helps the player.
func (c Curve) Confidence(distanceM, accuracyM float64) float64 {
	d := distanceM + c.AccuracyInflation*math.Max(accuracyM, 0)

	switch {
	case d <= c.FullM:
		return 1.0
	case d <= c.NearM:
		return lerp(d, c.FullM, c.NearM, 1.0, c.NearScore)
	case d <= c.MidM:
		return lerp(d, c.NearM, c.MidM, c.NearScore, c.MidScore)
	case d <= c.FarM:
		return lerp(d, c.MidM, c.FarM, c.MidScore, c.FarScore)
	default:
		// Asymptotic tail: FarScore at FarM, effectively zero once the
		// decay horizon has passed.
		decayed := c.FarScore * math.Exp(-(d-c.FarM)/(c.DecayM/2.5))
		if decayed < 0.001 {
			return 0
		}
		return decayed
	}
}

func lerp(x, x0, x1, y0, y1 float64) float64 {
	return y0 + (x-x0)/(x1-x0)*(y1-y0)
}

// ThresholdResult is the outcome of the hard pre-filter.
type ThresholdResult struct {
	Allowed          bool
	DistanceM        *float64
	RejectionMessage string
}

// CheckThreshold applies the hard distance gate. A nil maxDistanceM disables
// thresholding, and a missing coordinate on either side passes the gate —
// the player is never blocked for lacking GPS.
func CheckThreshold(userGPS, targetGPS *geo.Coordinates, maxDistanceM *float64) ThresholdResult {
	if maxDistanceM == nil || userGPS == nil || targetGPS == nil {
		return ThresholdResult{Allowed: true}
	}

	d := geo.HaversineMeters(*userGPS, *targetGPS)
	if d > *maxDistanceM {
		return ThresholdResult{
			Allowed:   false,
			DistanceM: &d,
			RejectionMessage: fmt.Sprintf(
				"You are %.1f km from the target. You need to be within %.0f m to submit.",
				d/1000, *maxDistanceM),
		}
	}
	return ThresholdResult{Allowed: true, DistanceM: &d}
}
