package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/carrier"
	"github.com/shaiso/Vocata/internal/dialer"
	"github.com/shaiso/Vocata/internal/domain"
)

// CreateCampaign запускает кампанию: создаёт запись кампании и bulk
// целей в порядке запроса. Обзвон подхватит планировщик.
// POST /api/v1/campaigns
func (h *Handler) CreateCampaign(w http.ResponseWriter, r *http.Request) {
	var req LaunchCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.AccountID == "" || req.DeviceID == "" || req.Name == "" {
		BadRequest(w, "account_id, device_id and name are required")
		return
	}
	if len(req.Targets) == 0 {
		BadRequest(w, "at least one target is required")
		return
	}
	if err := dialer.ValidateWindowExpr(req.WindowExpr); err != nil {
		BadRequest(w, err.Error())
		return
	}

	device, err := h.devices.GetByID(r.Context(), req.DeviceID)
	if HandleRepoError(w, h.logger, err, "device not found") {
		return
	}
	if device.AccountID != req.AccountID {
		NotFound(w, "device not found")
		return
	}
	if device.OutboundFlowID == "" {
		InvalidState(w, "device has no outbound flow")
		return
	}

	campaign := &domain.Campaign{
		ID:         uuid.New(),
		AccountID:  req.AccountID,
		DeviceID:   req.DeviceID,
		Name:       req.Name,
		WindowExpr: req.WindowExpr,
		Status:     domain.CampaignInitiated,
		CreatedAt:  time.Now(),
	}
	if err := h.campaigns.Create(r.Context(), campaign); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	logs := make([]domain.CampaignLog, len(req.Targets))
	for i, t := range req.Targets {
		logs[i] = domain.CampaignLog{
			ID:         uuid.New(),
			CampaignID: campaign.ID,
			CallTo:     carrier.NormalizeNumber(t.Number),
			Variables:  t.Variables,
			Status:     domain.LogInitiated,
			CreatedAt:  time.Now(),
		}
	}
	if err := h.logs.BulkCreate(r.Context(), logs); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	h.logger.Info("campaign launched",
		"campaign", campaign.ID,
		"device", campaign.DeviceID,
		"targets", len(logs),
	)

	resp := CampaignFromDomain(*campaign)
	resp.Targets = len(logs)
	Created(w, resp)
}

// ListCampaigns возвращает кампании аккаунта.
// GET /api/v1/campaigns?account=...
func (h *Handler) ListCampaigns(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		BadRequest(w, "account is required")
		return
	}

	campaigns, err := h.campaigns.ListByAccount(r.Context(), account)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CampaignResponse, len(campaigns))
	for i, c := range campaigns {
		result[i] = CampaignFromDomain(c)
	}
	List(w, result, len(result))
}

// GetCampaign возвращает кампанию по ID.
// GET /api/v1/campaigns/{id}
func (h *Handler) GetCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid campaign id")
		return
	}

	campaign, err := h.campaigns.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}

	Success(w, CampaignFromDomain(*campaign))
}

// ListCampaignLogs возвращает цели кампании в порядке обзвона.
// GET /api/v1/campaigns/{id}/logs
func (h *Handler) ListCampaignLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid campaign id")
		return
	}

	if _, err := h.campaigns.GetByID(r.Context(), id); HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}

	logs, err := h.logs.ListByCampaign(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CampaignLogResponse, len(logs))
	for i, l := range logs {
		result[i] = CampaignLogFromDomain(l)
	}
	List(w, result, len(result))
}

// StopCampaign останавливает кампанию: статус COMPLETED, новые цели
// не набираются. Идущий звонок доиграет до своего конца.
// POST /api/v1/campaigns/{id}/stop
func (h *Handler) StopCampaign(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid campaign id")
		return
	}

	campaign, err := h.campaigns.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}

	if err := h.campaigns.Complete(r.Context(), id); HandleRepoError(w, h.logger, err, "campaign not found") {
		return
	}

	campaign.Status = domain.CampaignCompleted
	h.logger.Info("campaign stopped", "campaign", id)
	Success(w, CampaignFromDomain(*campaign))
}

// GetDeviceFlow возвращает граф, привязанный к линии.
// GET /api/v1/flows/{device}?outgoing=true
func (h *Handler) GetDeviceFlow(w http.ResponseWriter, r *http.Request) {
	device, err := h.devices.GetByID(r.Context(), r.PathValue("device"))
	if HandleRepoError(w, h.logger, err, "device not found") {
		return
	}

	outgoing := r.URL.Query().Get("outgoing") == "true"
	flowID := device.FlowFor(outgoing)
	if flowID == "" {
		NotFound(w, "no flow bound to device")
		return
	}

	graph, err := h.flows.Get(r.Context(), device.AccountID, flowID)
	if HandleRepoError(w, h.logger, err, "flow not found") {
		return
	}

	Success(w, graph)
}

// ListResponses возвращает собранные CAPTURE-записи аккаунта.
// GET /api/v1/responses?account=...&limit=...&offset=...
func (h *Handler) ListResponses(w http.ResponseWriter, r *http.Request) {
	account := r.URL.Query().Get("account")
	if account == "" {
		BadRequest(w, "account is required")
		return
	}

	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)

	records, err := h.responses.ListByAccount(r.Context(), account, limit, offset)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]CaptureResponse, len(records))
	for i, rec := range records {
		result[i] = CaptureFromDomain(rec)
	}
	List(w, result, len(result))
}

// parseIntDefault парсит строку в int с дефолтным значением.
func parseIntDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return defaultVal
	}
	return n
}
