package server

import (
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, d Deps) {
	broker := NewBroker()

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("QuestHunt API", "/openapi.json", "/docs"))
	r.Get("/healthz", handleHealth(d.Logger, d.DB))

	r.Route("/api/campaigns", func(r chi.Router) {
		r.Post("/", handleGenerateCampaign(d))
		r.Route("/{campaignID}", func(r chi.Router) {
			r.Get("/", handleGetCampaign(d))
			r.Get("/profile", handleGetProfile(d))
			r.Post("/submissions", handleSubmission(d, broker))
			r.Post("/appeals", handleAppeal(d, broker))
			r.Get("/events", handleEvents(d, broker))
		})
	})

	// Operator routes — disabled unless a key hash is configured.
	if d.OperatorKeyHash != "" {
		r.Route("/api/admin", func(r chi.Router) {
			r.Use(operatorAuth(d.OperatorKeyHash))
			r.Post("/ledger/reset", handleLedgerReset(d))
		})
	}

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			d.Logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
