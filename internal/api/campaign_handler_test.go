package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/domain"
)

func (f *apiFixture) request(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

func TestCreateCampaign(t *testing.T) {
	f := newAPIFixture()

	body := `{
		"account_id": "acc-1",
		"device_id": "dev-1",
		"name": "reminder",
		"targets": [
			{"number": "+1 (555) 777-0001", "variables": {"name": "Alice"}},
			{"number": "15557770002"}
		]
	}`
	w := f.request(t, http.MethodPost, "/api/v1/campaigns", body)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	if len(f.campaigns.created) != 1 {
		t.Fatalf("one campaign expected, got %d", len(f.campaigns.created))
	}
	campaign := f.campaigns.created[0]
	if campaign.Status != domain.CampaignInitiated {
		t.Errorf("status = %s", campaign.Status)
	}

	logs, _ := f.logs.ListByCampaign(context.Background(), campaign.ID)
	if len(logs) != 2 {
		t.Fatalf("two targets expected, got %d", len(logs))
	}
	// номера нормализуются при создании, порядок запроса сохраняется
	if logs[0].CallTo != "+15557770001" {
		t.Errorf("first target = %q", logs[0].CallTo)
	}
	if logs[1].CallTo != "+15557770002" {
		t.Errorf("second target = %q", logs[1].CallTo)
	}
	for _, l := range logs {
		if l.Status != domain.LogInitiated {
			t.Errorf("target %s status = %s", l.ID, l.Status)
		}
	}
	if logs[0].Variables["name"] != "Alice" {
		t.Errorf("target variables lost: %v", logs[0].Variables)
	}
}

func TestCreateCampaign_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{
			name: "no targets",
			body: `{"account_id":"acc-1","device_id":"dev-1","name":"x","targets":[]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "missing device",
			body: `{"account_id":"acc-1","name":"x","targets":[{"number":"+15550000000"}]}`,
			want: http.StatusBadRequest,
		},
		{
			name: "unknown device",
			body: `{"account_id":"acc-1","device_id":"ghost","name":"x","targets":[{"number":"+15550000000"}]}`,
			want: http.StatusNotFound,
		},
		{
			name: "foreign device",
			body: `{"account_id":"acc-2","device_id":"dev-1","name":"x","targets":[{"number":"+15550000000"}]}`,
			want: http.StatusNotFound,
		},
		{
			name: "bad window expression",
			body: `{"account_id":"acc-1","device_id":"dev-1","name":"x","window_expr":"not cron","targets":[{"number":"+15550000000"}]}`,
			want: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture()
			w := f.request(t, http.MethodPost, "/api/v1/campaigns", tt.body)
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", w.Code, tt.want, w.Body.String())
			}
		})
	}
}

func TestCreateCampaign_NoOutboundFlow(t *testing.T) {
	f := newAPIFixture()
	f.devices.devices["dev-1"].OutboundFlowID = ""

	body := `{"account_id":"acc-1","device_id":"dev-1","name":"x","targets":[{"number":"+15550000000"}]}`
	w := f.request(t, http.MethodPost, "/api/v1/campaigns", body)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
}

func TestStopCampaign(t *testing.T) {
	f := newAPIFixture()
	campaign := &domain.Campaign{
		ID:        uuid.New(),
		AccountID: "acc-1",
		DeviceID:  "dev-1",
		Name:      "reminder",
		Status:    domain.CampaignInitiated,
		CreatedAt: time.Now(),
	}
	f.campaigns.campaigns[campaign.ID] = campaign

	w := f.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID.String()+"/stop", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}
	if campaign.Status != domain.CampaignCompleted {
		t.Errorf("campaign not stopped: %s", campaign.Status)
	}

	// повторный stop — уже не INITIATED
	w = f.request(t, http.MethodPost, "/api/v1/campaigns/"+campaign.ID.String()+"/stop", "")
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("second stop status = %d", w.Code)
	}
}

func TestStopCampaign_NotFound(t *testing.T) {
	f := newAPIFixture()
	w := f.request(t, http.MethodPost, "/api/v1/campaigns/"+uuid.NewString()+"/stop", "")
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListCampaignLogs(t *testing.T) {
	f := newAPIFixture()
	campaign := &domain.Campaign{
		ID:        uuid.New(),
		AccountID: "acc-1",
		Status:    domain.CampaignInitiated,
		CreatedAt: time.Now(),
	}
	f.campaigns.campaigns[campaign.ID] = campaign
	f.logs.BulkCreate(context.Background(), []domain.CampaignLog{
		{ID: uuid.New(), CampaignID: campaign.ID, CallTo: "+15550000001", Status: domain.LogCompleted},
		{ID: uuid.New(), CampaignID: campaign.ID, CallTo: "+15550000002", Status: domain.LogInitiated},
	})

	w := f.request(t, http.MethodGet, "/api/v1/campaigns/"+campaign.ID.String()+"/logs", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data  []CampaignLogResponse `json:"data"`
		Total int                   `json:"total"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Total != 2 || len(resp.Data) != 2 {
		t.Fatalf("two logs expected: %+v", resp)
	}
	if resp.Data[0].CallTo != "+15550000001" {
		t.Errorf("order must follow creation: %+v", resp.Data)
	}
}

func TestListResponses_RequiresAccount(t *testing.T) {
	f := newAPIFixture()
	w := f.request(t, http.MethodGet, "/api/v1/responses", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", w.Code)
	}
}

func TestListResponses(t *testing.T) {
	f := newAPIFixture()
	f.captures.records = []domain.FlowResponse{
		{ID: 1, AccountID: "acc-1", Text: "feedback", Caller: "+15559990000", Digit: "1"},
		{ID: 2, AccountID: "acc-2", Text: "other"},
	}

	w := f.request(t, http.MethodGet, "/api/v1/responses?account=acc-1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Data []CaptureResponse `json:"data"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Text != "feedback" {
		t.Fatalf("only acc-1 records expected: %+v", resp.Data)
	}
}
