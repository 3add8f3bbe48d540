package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/strollia/questhunt/internal/questhunt"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "QuestHunt API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the QuestHunt walking scavenger-hunt game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/campaigns
	postCampaign, _ := r.NewOperationContext(http.MethodPost, "/api/campaigns")
	postCampaign.SetSummary("Generate campaign")
	postCampaign.SetDescription("Generates a new quest campaign around the given start coordinates.")
	postCampaign.AddReqStructure(GenerateRequest{})
	postCampaign.AddRespStructure(CampaignView{}, openapi.WithHTTPStatus(http.StatusCreated))
	postCampaign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postCampaign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postCampaign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postCampaign)

	// GET /api/campaigns/{campaignID}
	getCampaign, _ := r.NewOperationContext(http.MethodGet, "/api/campaigns/{campaignID}")
	getCampaign.SetSummary("Get campaign")
	getCampaign.SetDescription("Returns the campaign with its quest list and cursor.")
	getCampaign.AddRespStructure(CampaignView{}, openapi.WithHTTPStatus(http.StatusOK))
	getCampaign.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getCampaign)

	// GET /api/campaigns/{campaignID}/profile
	getProfile, _ := r.NewOperationContext(http.MethodGet, "/api/campaigns/{campaignID}/profile")
	getProfile.SetSummary("Get session profile")
	getProfile.SetDescription("Returns the behavioral session profile for the campaign.")
	getProfile.AddRespStructure(questhunt.SessionProfile{}, openapi.WithHTTPStatus(http.StatusOK))
	getProfile.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getProfile)

	// POST /api/campaigns/{campaignID}/submissions
	postSubmission, _ := r.NewOperationContext(http.MethodPost, "/api/campaigns/{campaignID}/submissions")
	postSubmission.SetSummary("Submit quest media")
	postSubmission.SetDescription("Submits a media capture for verification against a quest's objective.")
	postSubmission.AddReqStructure(SubmissionRequest{})
	postSubmission.AddRespStructure(SubmissionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postSubmission.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postSubmission)

	// POST /api/campaigns/{campaignID}/appeals
	postAppeal, _ := r.NewOperationContext(http.MethodPost, "/api/campaigns/{campaignID}/appeals")
	postAppeal.SetSummary("Appeal a rejection")
	postAppeal.SetDescription("Asks the adjudicator to reconsider the latest rejected submission for a quest.")
	postAppeal.AddReqStructure(AppealRequest{})
	postAppeal.AddRespStructure(SubmissionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postAppeal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postAppeal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postAppeal.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadGateway))
	_ = r.AddOperation(postAppeal)

	// GET /api/campaigns/{campaignID}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/campaigns/{campaignID}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream for submission and appeal results.")
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// POST /api/admin/ledger/reset
	postReset, _ := r.NewOperationContext(http.MethodPost, "/api/admin/ledger/reset")
	postReset.SetSummary("Reset visited place ledger")
	postReset.SetDescription("Clears the visited place history. Requires the operator key as a Bearer token.")
	postReset.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK))
	postReset.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnauthorized))
	_ = r.AddOperation(postReset)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
