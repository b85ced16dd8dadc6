package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/domain"
)

// Campaign DTOs

// CampaignTarget — одна цель кампании в запросе запуска.
type CampaignTarget struct {
	Number    string         `json:"number"`
	Variables map[string]any `json:"variables,omitempty"`
}

// LaunchCampaignRequest — запрос на запуск кампании.
type LaunchCampaignRequest struct {
	AccountID  string           `json:"account_id"`
	DeviceID   string           `json:"device_id"`
	Name       string           `json:"name"`
	WindowExpr string           `json:"window_expr,omitempty"`
	Targets    []CampaignTarget `json:"targets"`
}

// CampaignResponse — ответ с кампанией.
type CampaignResponse struct {
	ID         uuid.UUID `json:"id"`
	AccountID  string    `json:"account_id"`
	DeviceID   string    `json:"device_id"`
	Name       string    `json:"name"`
	WindowExpr string    `json:"window_expr,omitempty"`
	Status     string    `json:"status"`
	Targets    int       `json:"targets,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CampaignFromDomain конвертирует domain.Campaign в CampaignResponse.
func CampaignFromDomain(c domain.Campaign) CampaignResponse {
	return CampaignResponse{
		ID:         c.ID,
		AccountID:  c.AccountID,
		DeviceID:   c.DeviceID,
		Name:       c.Name,
		WindowExpr: c.WindowExpr,
		Status:     string(c.Status),
		CreatedAt:  c.CreatedAt,
	}
}

// CampaignLogResponse — ответ с целью кампании.
type CampaignLogResponse struct {
	ID         uuid.UUID      `json:"id"`
	CampaignID uuid.UUID      `json:"campaign_id"`
	CallTo     string         `json:"call_to"`
	Variables  map[string]any `json:"variables,omitempty"`
	Status     string         `json:"status"`
	CallSID    string         `json:"call_sid,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

// CampaignLogFromDomain конвертирует domain.CampaignLog в CampaignLogResponse.
func CampaignLogFromDomain(l domain.CampaignLog) CampaignLogResponse {
	return CampaignLogResponse{
		ID:         l.ID,
		CampaignID: l.CampaignID,
		CallTo:     l.CallTo,
		Variables:  l.Variables,
		Status:     string(l.Status),
		CallSID:    l.CallSID,
		StartedAt:  l.StartedAt,
		CreatedAt:  l.CreatedAt,
	}
}

// FlowResponse DTO

// CaptureResponse — ответ с записью CAPTURE.
type CaptureResponse struct {
	ID         int64     `json:"id"`
	AccountID  string    `json:"account_id"`
	Text       string    `json:"text"`
	Caller     string    `json:"caller"`
	Called     string    `json:"called"`
	Digit      string    `json:"digit"`
	CampaignID string    `json:"campaign_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// CaptureFromDomain конвертирует domain.FlowResponse в CaptureResponse.
func CaptureFromDomain(r domain.FlowResponse) CaptureResponse {
	return CaptureResponse{
		ID:         r.ID,
		AccountID:  r.AccountID,
		Text:       r.Text,
		Caller:     r.Caller,
		Called:     r.Called,
		Digit:      r.Digit,
		CampaignID: r.CampaignID,
		CreatedAt:  r.CreatedAt,
	}
}
