package geo

import (
	"math"
	"testing"
)

func TestHaversineZeroDistance(t *testing.T) {
	p := Coordinates{Lat: 51.5, Lng: -0.12}
	if d := HaversineKm(p, p); d != 0 {
		t.Errorf("distance to self = %v, want 0", d)
	}
}

func TestHaversineOneKmAtEquator(t *testing.T) {
	// 0.009 degrees of latitude is very close to 1 km on the sphere.
	a := Coordinates{Lat: 0, Lng: 0}
	b := Coordinates{Lat: 0.009, Lng: 0}

	d := HaversineKm(a, b)
	if math.Abs(d-1.0) > 0.01 {
		t.Errorf("HaversineKm = %v, want 1.0 +- 0.01", d)
	}
}

func TestHaversineSymmetric(t *testing.T) {
	a := Coordinates{Lat: 40.7128, Lng: -74.0060}
	b := Coordinates{Lat: 40.7306, Lng: -73.9866}

	if d1, d2 := HaversineKm(a, b), HaversineKm(b, a); math.Abs(d1-d2) > 1e-12 {
		t.Errorf("asymmetric: %v vs %v", d1, d2)
	}
}

func TestDestinationRoundTrip(t *testing.T) {
	origin := Coordinates{Lat: 52.52, Lng: 13.405}

	for _, bearing := range []float64{0, 45, 90, 180, 270, 359} {
		dest := Destination(origin, bearing, 0.75)
		d := HaversineKm(origin, dest)
		if math.Abs(d-0.75) > 0.001 {
			t.Errorf("bearing %v: distance to destination = %v, want 0.75", bearing, d)
		}
	}
}

func TestDestinationNormalizesLongitude(t *testing.T) {
	// Crossing the antimeridian must not produce a longitude outside [-180, 180).
	origin := Coordinates{Lat: 0, Lng: 179.999}
	dest := Destination(origin, 90, 5)
	if dest.Lng > 180 || dest.Lng < -180 {
		t.Errorf("longitude not normalized: %v", dest.Lng)
	}
}
