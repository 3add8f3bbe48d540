package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/strollia/questhunt/internal/gpsgate"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/resolver"
	"github.com/strollia/questhunt/internal/selector"
)

// Tunables are the heuristic knobs: recency bands, range tiers, scoring
// weights and the GPS confidence curve. They are configuration, not derived
// values — the defaults are the shipped product behavior and the file just
// overrides them.
type Tunables struct {
	Novelty selector.NoveltyPolicy `toml:"novelty"`
	Weights selector.ScoreWeights  `toml:"weights"`
	Curve   gpsgate.Curve          `toml:"gps_curve"`

	Ranges struct {
		Local  questhunt.RangeProfile `toml:"local"`
		Nearby questhunt.RangeProfile `toml:"nearby"`
		Far    questhunt.RangeProfile `toml:"far"`
	} `toml:"ranges"`

	// RelaxedHorizonDays is the shrunken novelty exclusion window used by
	// the resolver's second-chance pass.
	RelaxedHorizonDays int `toml:"relaxed_horizon_days"`

	// DefaultMaxDistanceM is the GPS gate threshold for quests that do not
	// override it.
	DefaultMaxDistanceM float64 `toml:"default_max_distance_m"`
}

// DefaultTunables returns the compiled-in defaults.
func DefaultTunables() *Tunables {
	t := &Tunables{
		Novelty:             selector.DefaultNoveltyPolicy(),
		Weights:             selector.DefaultScoreWeights(),
		Curve:               gpsgate.DefaultCurve(),
		RelaxedHorizonDays:  2,
		DefaultMaxDistanceM: 200,
	}
	p := resolver.DefaultProfiles()
	t.Ranges.Local, t.Ranges.Nearby, t.Ranges.Far = p.Local, p.Nearby, p.Far
	return t
}

// Profiles adapts the configured tiers for the resolver.
func (t *Tunables) Profiles() resolver.Profiles {
	return resolver.Profiles{Local: t.Ranges.Local, Nearby: t.Ranges.Nearby, Far: t.Ranges.Far}
}

// LoadTunables reads a TOML tunables file. A missing file returns the
// defaults without error; an invalid file is an error before anything else
// starts.
func LoadTunables(path string) (*Tunables, error) {
	t := DefaultTunables()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return t, nil
	}

	if _, err := toml.DecodeFile(path, t); err != nil {
		return nil, fmt.Errorf("decoding tunables file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("validating tunables: %w", err)
	}
	return t, nil
}

// Validate enforces monotonic recency bands and a decreasing confidence
// curve.
func (t *Tunables) Validate() error {
	if err := t.Novelty.Validate(); err != nil {
		return fmt.Errorf("novelty policy: %w", err)
	}
	if err := t.Curve.Validate(); err != nil {
		return fmt.Errorf("gps curve: %w", err)
	}
	for _, r := range []questhunt.RangeProfile{t.Ranges.Local, t.Ranges.Nearby, t.Ranges.Far} {
		if r.MinKm < 0 || r.MaxKm <= r.MinKm || r.SearchRadiusM <= 0 {
			return fmt.Errorf("range profile %s: invalid bounds", r.Tier)
		}
	}
	if t.DefaultMaxDistanceM <= 0 {
		return fmt.Errorf("default max distance %v must be positive", t.DefaultMaxDistanceM)
	}
	if t.RelaxedHorizonDays < 0 {
		return fmt.Errorf("relaxed horizon %d must not be negative", t.RelaxedHorizonDays)
	}
	return nil
}
