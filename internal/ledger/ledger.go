// Package ledger tracks which places have ever been selected for a campaign.
// The ledger is the one piece of state shared across campaigns: writes are
// append-only visit records, reads go through an immutable Snapshot so the
// selector never touches storage directly.
package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/strollia/questhunt/internal/questhunt"
)

// Ledger is the sqlite-backed visited-place store.
type Ledger struct {
	db *sql.DB
}

func New(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// RecordVisit appends a visit for placeID. An existing record keeps its
// campaign history and gains the new campaign at the end; records are never
// rewritten beyond that append.
func (l *Ledger) RecordVisit(ctx context.Context, placeID, campaignID string, at time.Time) error {
	var historyJSON string
	err := l.db.QueryRowContext(ctx, `
		SELECT campaign_history FROM visited_places WHERE place_id = ?
	`, placeID).Scan(&historyJSON)

	var history []string
	switch {
	case err == sql.ErrNoRows:
		history = []string{campaignID}
	case err != nil:
		return fmt.Errorf("reading visit record: %w", err)
	default:
		if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
			return fmt.Errorf("decoding campaign history: %w", err)
		}
		history = append(history, campaignID)
	}

	data, err := json.Marshal(history)
	if err != nil {
		return fmt.Errorf("encoding campaign history: %w", err)
	}

	_, err = l.db.ExecContext(ctx, `
		INSERT INTO visited_places (place_id, visited_at, campaign_history)
		VALUES (?, ?, ?)
		ON CONFLICT (place_id) DO UPDATE SET
			visited_at = excluded.visited_at,
			campaign_history = excluded.campaign_history
	`, placeID, at.UTC().Format(time.RFC3339Nano), string(data))
	if err != nil {
		return fmt.Errorf("writing visit record: %w", err)
	}
	return nil
}

// RecordCampaignVisits appends one visit per place for a freshly generated
// campaign. Synthetic points carry no place ID and are skipped by the caller.
func (l *Ledger) RecordCampaignVisits(ctx context.Context, campaignID string, placeIDs []string, at time.Time) error {
	for _, id := range placeIDs {
		if err := l.RecordVisit(ctx, id, campaignID, at); err != nil {
			return err
		}
	}
	return nil
}

// Snapshot is the read model handed to the selector: all visit records plus
// the campaign IDs ordered most-recent-first by their latest visit.
type Snapshot struct {
	Records         map[string]questhunt.VisitedPlaceRecord
	RecentCampaigns []string
}

// VisitedInRecentCampaigns reports whether placeID appears in any of the k
// most recent campaigns.
func (s Snapshot) VisitedInRecentCampaigns(placeID string, k int) bool {
	rec, ok := s.Records[placeID]
	if !ok {
		return false
	}
	recent := s.RecentCampaigns
	if len(recent) > k {
		recent = recent[:k]
	}
	for _, c := range recent {
		for _, h := range rec.CampaignHistory {
			if h == c {
				return true
			}
		}
	}
	return false
}

// Snapshot reads the full ledger into an immutable value.
func (l *Ledger) Snapshot(ctx context.Context) (Snapshot, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT place_id, visited_at, campaign_history FROM visited_places
	`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading ledger: %w", err)
	}
	defer rows.Close()

	snap := Snapshot{Records: make(map[string]questhunt.VisitedPlaceRecord)}
	latestByCampaign := make(map[string]time.Time)

	for rows.Next() {
		var (
			placeID, visitedAt, historyJSON string
		)
		if err := rows.Scan(&placeID, &visitedAt, &historyJSON); err != nil {
			return Snapshot{}, fmt.Errorf("scanning visit record: %w", err)
		}

		at, err := time.Parse(time.RFC3339Nano, visitedAt)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parsing visited_at for %s: %w", placeID, err)
		}

		var history []string
		if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
			return Snapshot{}, fmt.Errorf("decoding campaign history for %s: %w", placeID, err)
		}

		snap.Records[placeID] = questhunt.VisitedPlaceRecord{
			PlaceID:         placeID,
			VisitedAt:       at,
			CampaignHistory: history,
		}
		for _, c := range history {
			if at.After(latestByCampaign[c]) {
				latestByCampaign[c] = at
			}
		}
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("iterating ledger: %w", err)
	}

	for c := range latestByCampaign {
		snap.RecentCampaigns = append(snap.RecentCampaigns, c)
	}
	sort.Slice(snap.RecentCampaigns, func(i, j int) bool {
		ti := latestByCampaign[snap.RecentCampaigns[i]]
		tj := latestByCampaign[snap.RecentCampaigns[j]]
		if ti.Equal(tj) {
			return snap.RecentCampaigns[i] > snap.RecentCampaigns[j]
		}
		return ti.After(tj)
	})

	return snap, nil
}

// Reset wipes the ledger. Only ever invoked by an explicit user request.
func (l *Ledger) Reset(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM visited_places`); err != nil {
		return fmt.Errorf("resetting ledger: %w", err)
	}
	return nil
}
