// Package geo provides the coordinate value type and the spherical
// geometry used throughout quest generation and verification.
package geo

import "math"

// Coordinates is a lat/lng pair in floating-point degrees. Treat it as an
// immutable value.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

const earthRadiusKm = 6371.0

// HaversineKm returns the great-circle distance between a and b in kilometres.
func HaversineKm(a, b Coordinates) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// HaversineMeters returns the great-circle distance between a and b in metres.
func HaversineMeters(a, b Coordinates) float64 {
	return HaversineKm(a, b) * 1000
}

// Destination returns the point reached by travelling distanceKm from origin
// on the given initial bearing (degrees clockwise from north).
func Destination(origin Coordinates, bearingDeg, distanceKm float64) Coordinates {
	lat1 := origin.Lat * math.Pi / 180
	lng1 := origin.Lng * math.Pi / 180
	brng := bearingDeg * math.Pi / 180
	d := distanceKm / earthRadiusKm

	lat2 := math.Asin(math.Sin(lat1)*math.Cos(d) + math.Cos(lat1)*math.Sin(d)*math.Cos(brng))
	lng2 := lng1 + math.Atan2(
		math.Sin(brng)*math.Sin(d)*math.Cos(lat1),
		math.Cos(d)-math.Sin(lat1)*math.Sin(lat2),
	)

	// Normalize longitude to [-180, 180).
	lng2 = math.Mod(lng2+3*math.Pi, 2*math.Pi) - math.Pi

	return Coordinates{
		Lat: lat2 * 180 / math.Pi,
		Lng: lng2 * 180 / math.Pi,
	}
}
