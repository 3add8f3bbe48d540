// Package campaign assembles a playable campaign: resolved locations,
// AI-suggested quest content, measured walking legs, and best-effort
// illustration enrichment. Distance measurement and enrichment fan out
// concurrently and are rejoined by stable index; any single enrichment
// failure degrades that quest, never the campaign.
package campaign

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/strollia/questhunt/internal/adjudicator"
	"github.com/strollia/questhunt/internal/distance"
	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/ledger"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/resolver"

	"golang.org/x/sync/errgroup"
)

// ContentSource generates quest content and illustrations. Satisfied by
// *adjudicator.Client.
type ContentSource interface {
	SuggestQuests(ctx context.Context, locations []questhunt.LocatedPoint, tier questhunt.RangeTier) ([]adjudicator.QuestSeed, error)
	Illustrate(ctx context.Context, q questhunt.Quest) (string, error)
}

// Builder generates campaigns.
type Builder struct {
	resolver *resolver.Resolver
	engine   *distance.Engine
	content  ContentSource
	ledger   *ledger.Ledger
	logger   *slog.Logger

	// CallTimeout bounds each external enrichment call; RetryBackoff is the
	// pause before the single retry.
	CallTimeout  time.Duration
	RetryBackoff time.Duration
}

func NewBuilder(r *resolver.Resolver, e *distance.Engine, content ContentSource, l *ledger.Ledger, logger *slog.Logger) *Builder {
	return &Builder{
		resolver:     r,
		engine:       e,
		content:      content,
		ledger:       l,
		logger:       logger,
		CallTimeout:  30 * time.Second,
		RetryBackoff: 2 * time.Second,
	}
}

// Generate builds a campaign of questCount quests starting at start. The
// returned campaign is complete and persisted-visit-recorded; only context
// cancellation or a total location failure can error.
func (b *Builder) Generate(ctx context.Context, start geo.Coordinates, tier questhunt.RangeTier, questCount int, rng *rand.Rand) (questhunt.Campaign, error) {
	now := time.Now()
	campaignID := ulid.Make().String()

	points, err := b.resolver.Resolve(ctx, start, tier, questCount, rng)
	if err != nil {
		return questhunt.Campaign{}, fmt.Errorf("resolving quest locations: %w", err)
	}

	seeds := b.questSeeds(ctx, points, tier, questCount)

	// Walking legs between consecutive points, start first. Measured
	// concurrently; the engine is total so this cannot fail.
	pairs := make([]distance.Pair, len(points))
	prev := start
	for i, p := range points {
		pairs[i] = distance.Pair{Origin: prev, Dest: p.Coordinates}
		prev = p.Coordinates
	}
	legs := b.engine.MeasureMany(ctx, pairs)

	quests := make([]questhunt.Quest, len(points))
	total := 0.0
	for i, p := range points {
		seed := seeds[i]
		total += legs[i].DistanceKm
		quests[i] = questhunt.Quest{
			ID:                     ulid.Make().String(),
			Title:                  seed.Title,
			Objective:              seed.Objective,
			SecretCriteria:         seed.SecretCriteria,
			Location:               p,
			DistanceFromPreviousKm: legs[i].DistanceKm,
			MediaType:              mediaType(seed.MediaType),
			MediaConstraints:       seed.MediaConstraints,
		}
	}

	b.illustrate(ctx, quests)

	// Record visits for real places only; synthetic points have no ledger
	// identity.
	var placeIDs []string
	for _, p := range points {
		if p.Kind == questhunt.PointReal && p.Place != nil {
			placeIDs = append(placeIDs, p.Place.PlaceID)
		}
	}
	if err := b.ledger.RecordCampaignVisits(ctx, campaignID, placeIDs, now); err != nil {
		// Visit bookkeeping failing should not void a generated campaign.
		b.logger.Warn("recording campaign visits failed", "campaign", campaignID, "error", err)
	}

	return questhunt.Campaign{
		ID:               campaignID,
		StartCoordinates: start,
		RangeTier:        tier,
		Quests:           quests,
		TotalDistanceKm:  total,
		CreatedAt:        now,
	}, nil
}

// questSeeds asks the content source for quest content, degrading to
// templates when the model call fails. The campaign must still generate
// when the content provider is down.
func (b *Builder) questSeeds(ctx context.Context, points []questhunt.LocatedPoint, tier questhunt.RangeTier, questCount int) []adjudicator.QuestSeed {
	var seeds []adjudicator.QuestSeed
	err := b.withRetry(ctx, func(callCtx context.Context) error {
		var err error
		seeds, err = b.content.SuggestQuests(callCtx, points, tier)
		return err
	})
	if err != nil {
		b.logger.Warn("quest content generation failed, using templates", "error", err)
		seeds = nil
	}

	out := make([]adjudicator.QuestSeed, questCount)
	for i := range out {
		if i < len(seeds) {
			out[i] = seeds[i]
			continue
		}
		out[i] = templateSeed(points[i], i)
	}
	return out
}

func templateSeed(p questhunt.LocatedPoint, i int) adjudicator.QuestSeed {
	name := "the spot"
	if p.Place != nil && p.Place.Name != "" {
		name = p.Place.Name
	}
	media := []string{"photo", "video", "audio"}[i%3]
	return adjudicator.QuestSeed{
		Title:          fmt.Sprintf("Waypoint %d", i+1),
		Objective:      fmt.Sprintf("Capture a %s at %s.", media, name),
		SecretCriteria: []string{"taken at the target location", "subject clearly visible"},
		MediaType:      media,
	}
}

// illustrate fans out one bounded enrichment call per quest. Failures leave
// IllustrationRef empty.
func (b *Builder) illustrate(ctx context.Context, quests []questhunt.Quest) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i := range quests {
		i := i
		g.Go(func() error {
			var ref string
			err := b.withRetry(gctx, func(callCtx context.Context) error {
				var err error
				ref, err = b.content.Illustrate(callCtx, quests[i])
				return err
			})
			if err != nil {
				b.logger.Warn("illustration failed for quest", "quest", quests[i].ID, "error", err)
				return nil
			}
			quests[i].IllustrationRef = ref
			return nil
		})
	}
	g.Wait()
}

// withRetry runs fn under the call timeout with one backoff retry.
func (b *Builder) withRetry(ctx context.Context, fn func(context.Context) error) error {
	run := func() error {
		callCtx, cancel := context.WithTimeout(ctx, b.CallTimeout)
		defer cancel()
		return fn(callCtx)
	}

	err := run()
	if err == nil || ctx.Err() != nil {
		return err
	}

	select {
	case <-time.After(b.RetryBackoff):
	case <-ctx.Done():
		return ctx.Err()
	}
	return run()
}

func mediaType(s string) questhunt.MediaType {
	switch questhunt.MediaType(s) {
	case questhunt.MediaVideo:
		return questhunt.MediaVideo
	case questhunt.MediaAudio:
		return questhunt.MediaAudio
	default:
		return questhunt.MediaPhoto
	}
}
