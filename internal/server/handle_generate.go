package server

import (
	"math/rand"
	"net/http"
	"time"

	"github.com/strollia/questhunt/internal/geo"
	"github.com/strollia/questhunt/internal/questhunt"
	"github.com/strollia/questhunt/internal/session"
)

const (
	defaultQuestCount = 5
	maxQuestCount     = 10
)

type GenerateRequest struct {
	Start      geo.Coordinates `json:"start"`
	RangeTier  string          `json:"rangeTier"`
	QuestCount int             `json:"questCount"`

	// Seed pins campaign generation for reproducibility. Optional.
	Seed *int64 `json:"seed,omitempty"`
}

func handleGenerateCampaign(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GenerateRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		if req.Start.Lat < -90 || req.Start.Lat > 90 || req.Start.Lng < -180 || req.Start.Lng > 180 {
			writeError(w, http.StatusBadRequest, "start coordinates out of range")
			return
		}

		tier := questhunt.RangeTier(req.RangeTier)
		switch tier {
		case questhunt.TierLocal, questhunt.TierNearby, questhunt.TierFar:
		case "":
			tier = questhunt.TierNearby
		default:
			writeError(w, http.StatusBadRequest, "rangeTier must be local, nearby or far")
			return
		}

		count := req.QuestCount
		if count == 0 {
			count = defaultQuestCount
		}
		if count < 1 || count > maxQuestCount {
			writeError(w, http.StatusBadRequest, "questCount out of range")
			return
		}

		seed := time.Now().UnixNano()
		if req.Seed != nil {
			seed = *req.Seed
		}
		rng := rand.New(rand.NewSource(seed))

		campaign, err := d.Builder.Generate(r.Context(), req.Start, tier, count, rng)
		if err != nil {
			d.Logger.Error("campaign generation failed", "error", err)
			writeError(w, http.StatusBadGateway, "campaign generation failed")
			return
		}

		if err := d.Store.SaveCampaign(r.Context(), campaign); err != nil {
			d.Logger.Error("saving campaign", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		if err := d.Store.SaveProfile(r.Context(), campaign.ID, session.NewProfile()); err != nil {
			d.Logger.Error("saving initial profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusCreated, campaignView(campaign))
	}
}
