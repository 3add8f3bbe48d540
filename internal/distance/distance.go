// Package distance measures walking distance and duration between
// coordinates. The engine is total: when the routing provider fails it falls
// back to an inflated great-circle estimate rather than returning an error.
package distance

import (
	"context"
	"log/slog"
	"math"

	"golang.org/x/sync/errgroup"

	"github.com/strollia/questhunt/internal/geo"
)

// Street networks are not straight lines; inflate great-circle distance to
// approximate a walkable route.
const routeInflation = 1.2

// walkingSpeedKmh is the assumed pace for fallback durations.
const walkingSpeedKmh = 5.0

// Leg is a measured walking segment.
type Leg struct {
	DistanceKm      float64 `json:"distanceKm"`
	DurationMinutes int     `json:"durationMinutes"`
}

// Router is the external walking-route provider.
type Router interface {
	Route(ctx context.Context, origin, dest geo.Coordinates) (Leg, error)
}

// Engine wraps a Router with the geometric fallback.
type Engine struct {
	router Router
	logger *slog.Logger
}

func NewEngine(router Router, logger *slog.Logger) *Engine {
	return &Engine{router: router, logger: logger}
}

// Measure returns the walking leg between origin and dest. It never fails:
// any router error or missing route degrades to Fallback.
func (e *Engine) Measure(ctx context.Context, origin, dest geo.Coordinates) Leg {
	if e.router != nil {
		leg, err := e.router.Route(ctx, origin, dest)
		if err == nil && leg.DistanceKm >= 0 && !math.IsNaN(leg.DistanceKm) {
			return leg
		}
		if err != nil && e.logger != nil {
			e.logger.Warn("routing provider failed, using geometric fallback", "error", err)
		}
	}
	return Fallback(origin, dest)
}

// Pair is one origin/destination input to MeasureMany.
type Pair struct {
	Origin, Dest geo.Coordinates
}

// MeasureMany measures all pairs concurrently. Each element falls back
// independently, so one provider failure never invalidates its siblings, and
// results are positioned by input index regardless of completion order.
func (e *Engine) MeasureMany(ctx context.Context, pairs []Pair) []Leg {
	legs := make([]Leg, len(pairs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			legs[i] = e.Measure(gctx, p.Origin, p.Dest)
			return nil
		})
	}
	g.Wait() // workers never return errors
	return legs
}

// Fallback is the deterministic geometric estimate: haversine distance
// inflated for street geometry, duration at a 5 km/h pace rounded to the
// nearest minute.
func Fallback(origin, dest geo.Coordinates) Leg {
	km := geo.HaversineKm(origin, dest) * routeInflation
	return Leg{
		DistanceKm:      km,
		DurationMinutes: int(math.Round(km / walkingSpeedKmh * 60)),
	}
}
