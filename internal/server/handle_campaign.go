package server

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/strollia/questhunt/internal/session"
)

func handleGetCampaign(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "campaignID")

		campaign, err := d.Store.GetCampaign(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			writeError(w, http.StatusNotFound, "campaign not found")
			return
		}
		if err != nil {
			d.Logger.Error("loading campaign", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, campaignView(campaign))
	}
}

func handleGetProfile(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "campaignID")

		if _, err := d.Store.GetCampaign(r.Context(), id); err != nil {
			if errors.Is(err, ErrNotFound) {
				writeError(w, http.StatusNotFound, "campaign not found")
				return
			}
			d.Logger.Error("loading campaign", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		profile, err := d.Store.GetProfile(r.Context(), id)
		if errors.Is(err, ErrNotFound) {
			profile = session.NewProfile()
		} else if err != nil {
			d.Logger.Error("loading profile", "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		writeJSON(w, http.StatusOK, profile)
	}
}
