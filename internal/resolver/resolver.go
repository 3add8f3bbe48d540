// Package resolver turns a start coordinate and range tier into an ordered
// list of quest locations. Fallbacks are an explicit ordered strategy chain —
// widen the radius, relax the novelty window, then synthesize points — so the
// caller is always handed exactly targetCount entries from the best
// available tier of realism.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"

	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/selector"
)

// PlaceSource is the external points-of-interest lookup.
type PlaceSource interface {
	Search(ctx context.Context, center geo.Coordinates, radiusM int, categories []string) ([]questhunt.PlaceCandidate, error)
}

// Profiles maps each tier to its range profile, ordered narrow to wide.
type Profiles struct {
	Local  questhunt.RangeProfile
	Nearby questhunt.RangeProfile
	Far    questhunt.RangeProfile
}

// ByTier returns the profile for a tier, defaulting to Local.
func (p Profiles) ByTier(tier questhunt.RangeTier) questhunt.RangeProfile {
	switch tier {
	case questhunt.TierNearby:
		return p.Nearby
	case questhunt.TierFar:
		return p.Far
	default:
		return p.Local
	}
}

// Wider returns the next-wider profile and true, or the same profile and
// false when already at the widest tier.
func (p Profiles) Wider(tier questhunt.RangeTier) (questhunt.RangeProfile, bool) {
	switch tier {
	case questhunt.TierLocal:
		return p.Nearby, true
	case questhunt.TierNearby:
		return p.Far, true
	default:
		return p.Far, false
	}
}

// DefaultProfiles returns the shipped range tiers.
func DefaultProfiles() Profiles {
	return Profiles{
		Local:  questhunt.RangeProfile{Tier: questhunt.TierLocal, MinKm: 0.2, MaxKm: 1.0, SearchRadiusM: 1000},
		Nearby: questhunt.RangeProfile{Tier: questhunt.TierNearby, MinKm: 0.5, MaxKm: 2.5, SearchRadiusM: 2500},
		Far:    questhunt.RangeProfile{Tier: questhunt.TierFar, MinKm: 1.0, MaxKm: 5.0, SearchRadiusM: 5000},
	}
}

// Resolver orchestrates the selector through the fallback chain.
type Resolver struct {
	places   PlaceSource
	selector *selector.Selector
	ledger   *ledger.Ledger
	profiles Profiles

	// RelaxedHorizonDays is the shrunken novelty exclusion window for the
	// third strategy.
	RelaxedHorizonDays int

	// Categories passed through to the places lookup; empty means all.
	Categories []string

	logger *slog.Logger
}

func New(places PlaceSource, sel *selector.Selector, l *ledger.Ledger, profiles Profiles, logger *slog.Logger) *Resolver {
	return &Resolver{
		places:             places,
		selector:           sel,
		ledger:             l,
		profiles:           profiles,
		RelaxedHorizonDays: 2,
		logger:             logger,
	}
}

// stepStatus tags a strategy outcome.
type stepStatus int

const (
	stepPicked stepStatus = iota
	stepInsufficient
	stepFailed
)

type stepResult struct {
	points []questhunt.LocatedPoint
	status stepStatus
	err    error
}

type strategy struct {
	name string
	run  func(ctx context.Context) stepResult
}

// Resolve returns exactly targetCount located points. Only context
// cancellation can surface an error; every provider failure is absorbed by a
// later strategy and the terminal synthetic stage cannot fail.
func (r *Resolver) Resolve(ctx context.Context, start geo.Coordinates, tier questhunt.RangeTier, targetCount int, rng *rand.Rand) ([]questhunt.LocatedPoint, error) {
	profile := r.profiles.ByTier(tier)

	snap, err := r.ledger.Snapshot(ctx)
	if err != nil {
		// A broken ledger read degrades to an empty history rather than
		// blocking generation.
		r.logger.Warn("ledger snapshot failed, treating all places as unvisited", "error", err)
		snap = ledger.Snapshot{Records: map[string]questhunt.VisitedPlaceRecord{}}
	}

	// The original candidate pool is shared between the first and third
	// strategies; the widened pool belongs to the second alone.
	var originalPool []questhunt.PlaceCandidate

	chain := []strategy{
		{
			name: "select-at-tier",
			run: func(ctx context.Context) stepResult {
				pool, err := r.places.Search(ctx, start, profile.SearchRadiusM, r.Categories)
				if err != nil {
					return stepResult{status: stepFailed, err: fmt.Errorf("places lookup: %w", err)}
				}
				originalPool = pool
				return r.selectStep(pool, targetCount, profile, start, snap, rng)
			},
		},
		{
			name: "escalate-radius",
			run: func(ctx context.Context) stepResult {
				wider, ok := r.profiles.Wider(tier)
				if !ok {
					return stepResult{status: stepInsufficient}
				}
				pool, err := r.places.Search(ctx, start, wider.SearchRadiusM, r.Categories)
				if err != nil {
					return stepResult{status: stepFailed, err: fmt.Errorf("places lookup: %w", err)}
				}
				return r.selectStep(pool, targetCount, wider, start, snap, rng)
			},
		},
		{
			name: "relax-novelty",
			run: func(ctx context.Context) stepResult {
				if len(originalPool) == 0 {
					return stepResult{status: stepInsufficient}
				}
				picks, err := r.selector.SelectRelaxed(originalPool, targetCount, profile, start, snap, r.RelaxedHorizonDays, rng)
				if err != nil {
					return stepResult{status: stepInsufficient}
				}
				return stepResult{status: stepPicked, points: asReal(picks)}
			},
		},
		{
			name: "synthetic-points",
			run: func(ctx context.Context) stepResult {
				return stepResult{status: stepPicked, points: r.synthesize(start, profile, targetCount, rng)}
			},
		},
	}

	for _, s := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		res := s.run(ctx)
		switch res.status {
		case stepPicked:
			// A short list (thin pool) is topped up with synthetic points so
			// the caller always gets targetCount entries.
			if len(res.points) < targetCount {
				r.logger.Info("topping up with synthetic points",
					"strategy", s.name, "real", len(res.points), "target", targetCount)
				res.points = append(res.points, r.synthesize(start, profile, targetCount-len(res.points), rng)...)
			}
			return res.points, nil
		case stepInsufficient:
			r.logger.Info("location strategy found insufficient novelty, escalating", "strategy", s.name)
		case stepFailed:
			r.logger.Warn("location strategy failed, escalating", "strategy", s.name, "error", res.err)
		}
	}

	// Unreachable: the synthetic stage always picks.
	return nil, errors.New("location strategy chain exhausted")
}

func (r *Resolver) selectStep(
	pool []questhunt.PlaceCandidate,
	targetCount int,
	profile questhunt.RangeProfile,
	start geo.Coordinates,
	snap ledger.Snapshot,
	rng *rand.Rand,
) stepResult {
	picks, err := r.selector.Select(pool, targetCount, profile, start, snap, rng)
	if errors.Is(err, selector.ErrInsufficientNovelty) {
		return stepResult{status: stepInsufficient}
	}
	if err != nil {
		return stepResult{status: stepFailed, err: err}
	}
	if len(picks) == 0 {
		return stepResult{status: stepInsufficient}
	}
	return stepResult{status: stepPicked, points: asReal(picks)}
}

// synthesize generates n points at uniform random bearings and distances
// within the profile band around start. This path cannot fail.
func (r *Resolver) synthesize(start geo.Coordinates, profile questhunt.RangeProfile, n int, rng *rand.Rand) []questhunt.LocatedPoint {
	points := make([]questhunt.LocatedPoint, n)
	for i := range points {
		bearing := rng.Float64() * 360
		dist := profile.MinKm + rng.Float64()*(profile.MaxKm-profile.MinKm)
		points[i] = questhunt.SyntheticPoint(geo.Destination(start, bearing, dist))
	}
	return points
}

func asReal(picks []questhunt.PlaceCandidate) []questhunt.LocatedPoint {
	out := make([]questhunt.LocatedPoint, len(picks))
	for i, p := range picks {
		out[i] = questhunt.RealPlace(p)
	}
	return out
}
