package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// CampaignResponse — кампания из API.
type CampaignResponse struct {
	ID         string `json:"id"`
	AccountID  string `json:"account_id"`
	DeviceID   string `json:"device_id"`
	Name       string `json:"name"`
	WindowExpr string `json:"window_expr,omitempty"`
	Status     string `json:"status"`
	Targets    int    `json:"targets,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// CampaignLogResponse — цель кампании из API.
type CampaignLogResponse struct {
	ID         string         `json:"id"`
	CampaignID string         `json:"campaign_id"`
	CallTo     string         `json:"call_to"`
	Variables  map[string]any `json:"variables,omitempty"`
	Status     string         `json:"status"`
	CallSID    string         `json:"call_sid,omitempty"`
	StartedAt  string         `json:"started_at,omitempty"`
	CreatedAt  string         `json:"created_at"`
}

// CaptureResponse — запись CAPTURE из API.
type CaptureResponse struct {
	ID         int64  `json:"id"`
	AccountID  string `json:"account_id"`
	Text       string `json:"text"`
	Caller     string `json:"caller"`
	Called     string `json:"called"`
	Digit      string `json:"digit"`
	CampaignID string `json:"campaign_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// --- Request types ---

// CampaignTarget — цель в запросе запуска кампании.
type CampaignTarget struct {
	Number    string         `json:"number"`
	Variables map[string]any `json:"variables,omitempty"`
}

// LaunchCampaignRequest — запуск кампании.
type LaunchCampaignRequest struct {
	AccountID  string           `json:"account_id"`
	DeviceID   string           `json:"device_id"`
	Name       string           `json:"name"`
	WindowExpr string           `json:"window_expr,omitempty"`
	Targets    []CampaignTarget `json:"targets"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Vocata API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Campaigns ---

// LaunchCampaign запускает кампанию.
func (c *Client) LaunchCampaign(req LaunchCampaignRequest) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.post("/api/v1/campaigns", req, &campaign)
	return &campaign, err
}

// ListCampaigns возвращает кампании аккаунта.
func (c *Client) ListCampaigns(account string) ([]CampaignResponse, error) {
	params := url.Values{}
	params.Set("account", account)

	var campaigns []CampaignResponse
	err := c.list("/api/v1/campaigns", params, &campaigns)
	return campaigns, err
}

// GetCampaign возвращает кампанию по ID.
func (c *Client) GetCampaign(id string) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.get("/api/v1/campaigns/"+id, &campaign)
	return &campaign, err
}

// ListCampaignLogs возвращает цели кампании в порядке обзвона.
func (c *Client) ListCampaignLogs(id string) ([]CampaignLogResponse, error) {
	var logs []CampaignLogResponse
	err := c.list("/api/v1/campaigns/"+id+"/logs", nil, &logs)
	return logs, err
}

// StopCampaign останавливает кампанию.
func (c *Client) StopCampaign(id string) (*CampaignResponse, error) {
	var campaign CampaignResponse
	err := c.post("/api/v1/campaigns/"+id+"/stop", nil, &campaign)
	return &campaign, err
}

// --- Responses ---

// ListResponses возвращает собранные CAPTURE-записи аккаунта.
func (c *Client) ListResponses(account string, limit int) ([]CaptureResponse, error) {
	params := url.Values{}
	params.Set("account", account)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var records []CaptureResponse
	err := c.list("/api/v1/responses", params, &records)
	return records, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
