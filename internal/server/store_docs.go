package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	"github.com/strollia/questhunt/internal/questhunt"
)

// DocStore implements Store over JSONB data columns. The schema lives in the
// migrations package.
type DocStore struct {
	db *sql.DB
}

func NewDocStore(db *sql.DB) *DocStore {
	return &DocStore{db: db}
}

func (s *DocStore) SaveCampaign(ctx context.Context, c questhunt.Campaign) error {
	data, err := json.Marshal(c)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO campaigns (id, data) VALUES (?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET data = excluded.data`,
		c.ID, string(data),
	)
	return err
}

func (s *DocStore) GetCampaign(ctx context.Context, id string) (questhunt.Campaign, error) {
	var c questhunt.Campaign
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM campaigns WHERE id = ?`, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return c, ErrNotFound
	}
	if err != nil {
		return c, err
	}
	return c, json.Unmarshal([]byte(data), &c)
}

func (s *DocStore) SaveProfile(ctx context.Context, campaignID string, p questhunt.SessionProfile) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO session_profiles (campaign_id, data) VALUES (?, jsonb(?))
		 ON CONFLICT(campaign_id) DO UPDATE
		 SET data = excluded.data, updated_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')`,
		campaignID, string(data),
	)
	return err
}

func (s *DocStore) GetProfile(ctx context.Context, campaignID string) (questhunt.SessionProfile, error) {
	var p questhunt.SessionProfile
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM session_profiles WHERE campaign_id = ?`, campaignID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	return p, json.Unmarshal([]byte(data), &p)
}

func (s *DocStore) SaveSubmission(ctx context.Context, rec SubmissionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, campaign_id, quest_id, data) VALUES (?, ?, ?, jsonb(?))`,
		rec.ID, rec.CampaignID, rec.QuestID, string(data),
	)
	return err
}

func (s *DocStore) CountAdjudicated(ctx context.Context, campaignID, questID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions
		 WHERE campaign_id = ? AND quest_id = ?
		   AND json_extract(data, '$.gateRejected') = 0
		   AND json_extract(data, '$.kind') = 'submission'`,
		campaignID, questID,
	).Scan(&n)
	return n, err
}

func (s *DocStore) LatestRejection(ctx context.Context, campaignID, questID string) (SubmissionRecord, error) {
	var rec SubmissionRecord
	var data string
	err := s.db.QueryRowContext(ctx,
		`SELECT json(data) FROM submissions
		 WHERE campaign_id = ? AND quest_id = ?
		   AND json_extract(data, '$.gateRejected') = 0
		   AND json_extract(data, '$.outcome.accepted') = 0
		 ORDER BY rowid DESC LIMIT 1`,
		campaignID, questID,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return rec, ErrNotFound
	}
	if err != nil {
		return rec, err
	}
	return rec, json.Unmarshal([]byte(data), &rec)
}
