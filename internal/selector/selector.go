// Package selector chooses a well-spaced, type-diverse, novelty-biased
// subset of candidate places for one campaign. The algorithm is a greedy
// single-pass heuristic on purpose: predictable, explainable selection beats
// route optimality here.
package selector

import (
	"errors"
	"math/rand"
	"time"

	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/questhunt"
)

// ErrInsufficientNovelty signals that too few candidates are unvisited.
// Callers branch on it to widen the search or relax the recency window
// instead of silently serving stale places.
var ErrInsufficientNovelty = errors.New("not enough unvisited candidates")

// NoveltyBand maps a visit age ceiling to a score multiplier. Bands must be
// ordered by ascending MaxAgeDays with ascending multipliers so that more
// recent always means a lower multiplier.
type NoveltyBand struct {
	MaxAgeDays int     `toml:"max_age_days"`
	Multiplier float64 `toml:"multiplier"`
}

// NoveltyPolicy is the tunable recency penalty configuration.
type NoveltyPolicy struct {
	Bands []NoveltyBand `toml:"bands"`

	// RecentCampaigns: a place visited in any of the last N campaigns gets
	// multiplier 0 regardless of age.
	RecentCampaigns int `toml:"recent_campaigns"`

	// OlderMultiplier applies to places visited longer ago than every band.
	OlderMultiplier float64 `toml:"older_multiplier"`

	// MinUnvisitedRatio is the fraction of candidates that must be
	// never-visited for selection to proceed.
	MinUnvisitedRatio float64 `toml:"min_unvisited_ratio"`
}

// DefaultNoveltyPolicy returns the shipped recency bands.
func DefaultNoveltyPolicy() NoveltyPolicy {
	return NoveltyPolicy{
		Bands: []NoveltyBand{
			{MaxAgeDays: 3, Multiplier: 0},
			{MaxAgeDays: 14, Multiplier: 0.2},
			{MaxAgeDays: 30, Multiplier: 0.5},
		},
		RecentCampaigns:   2,
		OlderMultiplier:   0.7,
		MinUnvisitedRatio: 0.4,
	}
}

// Validate checks band ordering and monotonicity.
func (p NoveltyPolicy) Validate() error {
	prevAge := 0
	prevMult := -1.0
	for _, b := range p.Bands {
		if b.MaxAgeDays <= prevAge && prevAge != 0 {
			return errors.New("novelty bands must have increasing age ceilings")
		}
		if b.Multiplier < prevMult {
			return errors.New("novelty multipliers must not decrease with age")
		}
		if b.Multiplier < 0 || b.Multiplier > 1 {
			return errors.New("novelty multiplier outside [0,1]")
		}
		prevAge = b.MaxAgeDays
		prevMult = b.Multiplier
	}
	if len(p.Bands) > 0 && p.OlderMultiplier < prevMult {
		return errors.New("older multiplier below the last band")
	}
	if p.MinUnvisitedRatio < 0 || p.MinUnvisitedRatio > 1 {
		return errors.New("min unvisited ratio outside [0,1]")
	}
	return nil
}

// Relaxed returns a policy whose exclusion horizon shrinks to horizonDays:
// only places visited within the horizon stay excluded, everything older
// scores as fresh. Used by the resolver's second-chance pass.
func (p NoveltyPolicy) Relaxed(horizonDays int) NoveltyPolicy {
	return NoveltyPolicy{
		Bands:             []NoveltyBand{{MaxAgeDays: horizonDays, Multiplier: 0}},
		RecentCampaigns:   0,
		OlderMultiplier:   1.0,
		MinUnvisitedRatio: 0,
	}
}

// multiplier computes the novelty penalty for one candidate. Never visited
// is 1.0; visited in the last RecentCampaigns campaigns is 0.
func (p NoveltyPolicy) multiplier(placeID string, snap ledger.Snapshot, now time.Time) float64 {
	rec, ok := snap.Records[placeID]
	if !ok {
		return 1.0
	}
	if p.RecentCampaigns > 0 && snap.VisitedInRecentCampaigns(placeID, p.RecentCampaigns) {
		return 0
	}
	ageDays := int(now.Sub(rec.VisitedAt).Hours() / 24)
	for _, b := range p.Bands {
		if ageDays <= b.MaxAgeDays {
			return b.Multiplier
		}
	}
	return p.OlderMultiplier
}

// ScoreWeights balances the greedy scoring terms.
type ScoreWeights struct {
	Spacing   float64 `toml:"spacing"`
	Radius    float64 `toml:"radius"`
	Diversity float64 `toml:"diversity"`
}

// DefaultScoreWeights returns the shipped weighting.
func DefaultScoreWeights() ScoreWeights {
	return ScoreWeights{Spacing: 1.0, Radius: 0.5, Diversity: 0.3}
}

// Selector holds the tunable policy for one service instance.
type Selector struct {
	Policy  NoveltyPolicy
	Weights ScoreWeights
	Now     func() time.Time // test seam; defaults to time.Now
}

func New(policy NoveltyPolicy, weights ScoreWeights) *Selector {
	return &Selector{Policy: policy, Weights: weights, Now: time.Now}
}

// Select picks up to targetCount well-spaced candidates. It returns
// ErrInsufficientNovelty when the never-visited fraction drops below the
// configured minimum; the result is deterministic given identical candidate
// order and RNG state.
func (s *Selector) Select(
	candidates []questhunt.PlaceCandidate,
	targetCount int,
	profile questhunt.RangeProfile,
	start geo.Coordinates,
	snap ledger.Snapshot,
	rng *rand.Rand,
) ([]questhunt.PlaceCandidate, error) {
	return s.selectWith(candidates, targetCount, profile, start, snap, s.Policy, rng)
}

// SelectRelaxed runs the same algorithm under a shrunken novelty horizon.
func (s *Selector) SelectRelaxed(
	candidates []questhunt.PlaceCandidate,
	targetCount int,
	profile questhunt.RangeProfile,
	start geo.Coordinates,
	snap ledger.Snapshot,
	horizonDays int,
	rng *rand.Rand,
) ([]questhunt.PlaceCandidate, error) {
	return s.selectWith(candidates, targetCount, profile, start, snap, s.Policy.Relaxed(horizonDays), rng)
}

func (s *Selector) selectWith(
	candidates []questhunt.PlaceCandidate,
	targetCount int,
	profile questhunt.RangeProfile,
	start geo.Coordinates,
	snap ledger.Snapshot,
	policy NoveltyPolicy,
	rng *rand.Rand,
) ([]questhunt.PlaceCandidate, error) {
	if targetCount <= 0 {
		return nil, nil
	}

	pool := dedupe(candidates)

	// Range filter. An empty filtered set degrades to the unfiltered pool:
	// out-of-range places beat no places.
	inRange := make([]questhunt.PlaceCandidate, 0, len(pool))
	for _, c := range pool {
		if geo.HaversineKm(start, c.Coordinates) <= profile.MaxKm {
			inRange = append(inRange, c)
		}
	}
	if len(inRange) == 0 {
		if len(pool) > targetCount {
			return pool[:targetCount], nil
		}
		return pool, nil
	}
	pool = inRange

	now := time.Now()
	if s.Now != nil {
		now = s.Now()
	}

	mults := make([]float64, len(pool))
	unvisited := 0
	for i, c := range pool {
		mults[i] = policy.multiplier(c.PlaceID, snap, now)
		if mults[i] == 1.0 {
			if _, seen := snap.Records[c.PlaceID]; !seen {
				unvisited++
			}
		}
	}
	if policy.MinUnvisitedRatio > 0 &&
		float64(unvisited)/float64(len(pool)) < policy.MinUnvisitedRatio {
		return nil, ErrInsufficientNovelty
	}

	selected := make([]questhunt.PlaceCandidate, 0, targetCount)
	taken := make([]bool, len(pool))

	// Seed with a random candidate, preferring never-visited places.
	seedPool := make([]int, 0, len(pool))
	for i := range pool {
		if _, seen := snap.Records[pool[i].PlaceID]; !seen {
			seedPool = append(seedPool, i)
		}
	}
	if len(seedPool) == 0 {
		for i := range pool {
			seedPool = append(seedPool, i)
		}
	}
	seed := seedPool[rng.Intn(len(seedPool))]
	selected = append(selected, pool[seed])
	taken[seed] = true

	// Greedy growth: pick the max-scoring unselected candidate per slot.
	// Ties break toward the earlier candidate for determinism.
	for len(selected) < targetCount {
		bestIdx := -1
		bestScore := 0.0
		for i := range pool {
			if taken[i] {
				continue
			}
			score := s.score(pool[i], selected, start, profile) * mults[i]
			if bestIdx == -1 || score > bestScore {
				bestIdx = i
				bestScore = score
			}
		}
		if bestIdx == -1 {
			break
		}
		selected = append(selected, pool[bestIdx])
		taken[bestIdx] = true
	}

	// Exhausted pool: fill remaining slots from the remainder rather than
	// under-filling.
	for i := range pool {
		if len(selected) >= targetCount {
			break
		}
		if !taken[i] {
			selected = append(selected, pool[i])
			taken[i] = true
		}
	}

	return selected, nil
}

// score is the additive part of the greedy objective; the novelty multiplier
// is applied by the caller.
func (s *Selector) score(
	c questhunt.PlaceCandidate,
	selected []questhunt.PlaceCandidate,
	start geo.Coordinates,
	profile questhunt.RangeProfile,
) float64 {
	mid := (profile.MinKm + profile.MaxKm) / 2
	halfWidth := (profile.MaxKm - profile.MinKm) / 2

	// Spacing: average distance to already-selected picks, best at the band
	// midpoint, linearly penalized toward and beyond the band edges.
	var sum float64
	for _, sel := range selected {
		sum += geo.HaversineKm(c.Coordinates, sel.Coordinates)
	}
	avg := sum / float64(len(selected))
	var spacing float64
	if halfWidth > 0 {
		dev := 0.0
		if avg > mid {
			dev = (avg - mid) / halfWidth
		} else {
			dev = (mid - avg) / halfWidth
		}
		if dev <= 1 {
			spacing = 1 - 0.5*dev
		} else {
			spacing = 0.5 - 0.5*(dev-1)
			if spacing < 0 {
				spacing = 0
			}
		}
	} else if avg <= profile.MaxKm {
		spacing = 1
	}

	// Radius: prefer candidates nearer the start point to ease the return leg.
	radius := 1 - geo.HaversineKm(start, c.Coordinates)/profile.MaxKm
	if radius < 0 {
		radius = 0
	}

	// Diversity: flat bonus when the primary category is new to the set.
	diversity := 0.0
	if pt := c.PrimaryType(); pt != "" {
		fresh := true
		for _, sel := range selected {
			if sel.PrimaryType() == pt {
				fresh = false
				break
			}
		}
		if fresh {
			diversity = 1
		}
	}

	return s.Weights.Spacing*spacing + s.Weights.Radius*radius + s.Weights.Diversity*diversity
}

// dedupe drops later duplicates by place ID, preserving order. The places
// lookup does not guarantee unique IDs within a pool.
func dedupe(candidates []questhunt.PlaceCandidate) []questhunt.PlaceCandidate {
	seen := make(map[string]struct{}, len(candidates))
	out := make([]questhunt.PlaceCandidate, 0, len(candidates))
	for _, c := range candidates {
		if _, dup := seen[c.PlaceID]; dup {
			continue
		}
		seen[c.PlaceID] = struct{}{}
		out = append(out, c)
	}
	return out
}
