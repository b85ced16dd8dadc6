package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Call-flow webhooks (callbacks оператора связи)
	mux.Handle("POST /call-flow/{device}", chain(http.HandlerFunc(h.CallFlowEntry)))
	mux.Handle("POST /call-flow/gather/{device}", chain(http.HandlerFunc(h.CallFlowGather)))
	mux.Handle("POST /call-flow/reply", chain(http.HandlerFunc(h.CallFlowReply)))

	// Campaigns
	mux.Handle("GET /api/v1/campaigns", chain(http.HandlerFunc(h.ListCampaigns)))
	mux.Handle("POST /api/v1/campaigns", chain(http.HandlerFunc(h.CreateCampaign)))
	mux.Handle("GET /api/v1/campaigns/{id}", chain(http.HandlerFunc(h.GetCampaign)))
	mux.Handle("GET /api/v1/campaigns/{id}/logs", chain(http.HandlerFunc(h.ListCampaignLogs)))
	mux.Handle("POST /api/v1/campaigns/{id}/stop", chain(http.HandlerFunc(h.StopCampaign)))

	// Flows (read-only)
	mux.Handle("GET /api/v1/flows/{device}", chain(http.HandlerFunc(h.GetDeviceFlow)))

	// Responses
	mux.Handle("GET /api/v1/responses", chain(http.HandlerFunc(h.ListResponses)))
}
