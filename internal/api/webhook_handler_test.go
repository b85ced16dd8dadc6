package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/ai"
	"github.com/shaiso/Vocata/internal/dispatch"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
	"github.com/shaiso/Vocata/internal/vars"
)

// --- Fakes ---

type fakeDevices struct {
	devices map[string]*domain.Device
}

func (f *fakeDevices) GetByID(_ context.Context, id string) (*domain.Device, error) {
	d, ok := f.devices[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return d, nil
}

type fakeFlows struct {
	graphs map[string]*domain.FlowGraph
}

func (f *fakeFlows) Get(_ context.Context, _, flowID string) (*domain.FlowGraph, error) {
	g, ok := f.graphs[flowID]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return g, nil
}

type fakeCampaigns struct {
	campaigns map[uuid.UUID]*domain.Campaign
	created   []*domain.Campaign
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{campaigns: make(map[uuid.UUID]*domain.Campaign)}
}

func (f *fakeCampaigns) Create(_ context.Context, c *domain.Campaign) error {
	f.campaigns[c.ID] = c
	f.created = append(f.created, c)
	return nil
}

func (f *fakeCampaigns) GetByID(_ context.Context, id uuid.UUID) (*domain.Campaign, error) {
	c, ok := f.campaigns[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeCampaigns) ListByAccount(_ context.Context, accountID string) ([]domain.Campaign, error) {
	var out []domain.Campaign
	for _, c := range f.campaigns {
		if c.AccountID == accountID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (f *fakeCampaigns) Complete(_ context.Context, id uuid.UUID) error {
	c, ok := f.campaigns[id]
	if !ok || c.Status != domain.CampaignInitiated {
		return repo.ErrInvalidState
	}
	c.Status = domain.CampaignCompleted
	return nil
}

type fakeLogs struct {
	entries map[uuid.UUID]*domain.CampaignLog
	order   []uuid.UUID
}

func newFakeLogs() *fakeLogs {
	return &fakeLogs{entries: make(map[uuid.UUID]*domain.CampaignLog)}
}

func (f *fakeLogs) BulkCreate(_ context.Context, logs []domain.CampaignLog) error {
	for i := range logs {
		l := logs[i]
		f.entries[l.ID] = &l
		f.order = append(f.order, l.ID)
	}
	return nil
}

func (f *fakeLogs) GetByID(_ context.Context, id uuid.UUID) (*domain.CampaignLog, error) {
	l, ok := f.entries[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return l, nil
}

func (f *fakeLogs) ListByCampaign(_ context.Context, campaignID uuid.UUID) ([]domain.CampaignLog, error) {
	var out []domain.CampaignLog
	for _, id := range f.order {
		if f.entries[id].CampaignID == campaignID {
			out = append(out, *f.entries[id])
		}
	}
	return out, nil
}

type fakeCaptures struct {
	records []domain.FlowResponse
}

func (f *fakeCaptures) ListByAccount(_ context.Context, accountID string, _, _ int) ([]domain.FlowResponse, error) {
	var out []domain.FlowResponse
	for _, r := range f.records {
		if r.AccountID == accountID {
			out = append(out, r)
		}
	}
	return out, nil
}

// Зависимости dispatcher'а и vars.Builder.

type fakeVarStore struct {
	stored map[string]map[string]any
}

func (f *fakeVarStore) Get(_ context.Context, handle string) (map[string]any, error) {
	data, ok := f.stored[handle]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return data, nil
}

func (f *fakeVarStore) Merge(_ context.Context, handle string, data map[string]any) error {
	if f.stored == nil {
		f.stored = make(map[string]map[string]any)
	}
	if f.stored[handle] == nil {
		f.stored[handle] = make(map[string]any)
	}
	for k, v := range data {
		f.stored[handle][k] = v
	}
	return nil
}

type fakeInserts struct {
	records []domain.FlowResponse
}

func (f *fakeInserts) Insert(_ context.Context, resp *domain.FlowResponse) error {
	f.records = append(f.records, *resp)
	return nil
}

type fakeSMS struct {
	published []mq.SMSSendPayload
}

func (f *fakeSMS) PublishSMS(_ context.Context, p mq.SMSSendPayload) error {
	f.published = append(f.published, p)
	return nil
}

type fakeTurns struct{}

func (fakeTurns) Open(context.Context, string, *domain.Node) error { return nil }

func (fakeTurns) Turn(context.Context, string, *domain.Node, string) (*ai.Reply, error) {
	return &ai.Reply{Say: "ok"}, nil
}

type fakeAdvancer struct {
	finished []uuid.UUID
	statuses []domain.LogStatus
}

func (f *fakeAdvancer) Finish(_ context.Context, id uuid.UUID, status domain.LogStatus) {
	f.finished = append(f.finished, id)
	f.statuses = append(f.statuses, status)
}

// --- Fixture ---

type apiFixture struct {
	devices   *fakeDevices
	flows     *fakeFlows
	campaigns *fakeCampaigns
	logs      *fakeLogs
	captures  *fakeCaptures
	varStore  *fakeVarStore
	advancer  *fakeAdvancer
	mux       *http.ServeMux
}

func newAPIFixture() *apiFixture {
	f := &apiFixture{
		devices: &fakeDevices{devices: map[string]*domain.Device{
			"dev-1": {
				ID:             "dev-1",
				AccountID:      "acc-1",
				Number:         "+15550001111",
				InboundFlowID:  "flow-in",
				OutboundFlowID: "flow-out",
			},
		}},
		flows:     &fakeFlows{graphs: map[string]*domain.FlowGraph{}},
		campaigns: newFakeCampaigns(),
		logs:      newFakeLogs(),
		captures:  &fakeCaptures{},
		varStore:  &fakeVarStore{},
		advancer:  &fakeAdvancer{},
	}

	logger := slog.Default()
	dispatcher := dispatch.NewDispatcher(f.varStore, &fakeInserts{}, &fakeSMS{}, fakeTurns{}, f.advancer, logger)

	h := NewHandler(Config{
		Devices:    f.devices,
		Flows:      f.flows,
		Campaigns:  f.campaigns,
		Logs:       f.logs,
		Responses:  f.captures,
		Vars:       vars.NewBuilder(f.varStore),
		Dispatcher: dispatcher,
		Logger:     logger,
	})

	f.mux = http.NewServeMux()
	h.RegisterRoutes(f.mux)
	return f
}

func digitGraph() *domain.FlowGraph {
	return &domain.FlowGraph{
		AccountID: "acc-1",
		FlowID:    "flow-in",
		Version:   1,
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeInitial},
			{ID: "greet", Type: domain.NodeSay, Data: domain.NodeData{Message: "Welcome, press 1 for sales"}},
			{ID: "menu", Type: domain.NodeGather, Data: domain.NodeData{
				Message: "Press 1",
				Digits:  []domain.DigitBranch{{Digit: "1", ID: "h-sales"}},
			}},
			{ID: "bye", Type: domain.NodeHangup, Data: domain.NodeData{Message: "Thanks for calling"}},
		},
		Edges: []domain.Edge{
			{SourceHandle: "start", Target: "greet"},
			{SourceHandle: "greet", Target: "menu"},
			{SourceHandle: "h-sales", Target: "bye"},
		},
	}
}

func (f *apiFixture) post(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	f.mux.ServeHTTP(w, req)
	return w
}

// --- Tests ---

func TestCallFlowEntry_InboundGreeting(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	w := f.post(t, "/call-flow/dev-1", url.Values{
		"Caller": {"+15559990000"},
		"Called": {"+15550001111"},
	})

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/xml") {
		t.Fatalf("content type = %q", ct)
	}

	body := w.Body.String()
	if !strings.Contains(body, "Welcome, press 1 for sales") {
		t.Fatalf("greeting must be spoken: %s", body)
	}
	if !strings.Contains(body, "/call-flow/reply?") {
		t.Fatalf("continuation redirect expected: %s", body)
	}
	if !strings.Contains(body, "v=1") {
		t.Fatalf("token must carry version: %s", body)
	}
	// контекст переменных создан на входе и едет в токене
	if !strings.Contains(body, "ctx=") {
		t.Fatalf("token must carry ctx handle: %s", body)
	}
}

func TestCallFlowEntry_UnknownDevice(t *testing.T) {
	f := newAPIFixture()

	w := f.post(t, "/call-flow/ghost", url.Values{})

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must answer 200: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
}

func TestCallFlowEntry_NoInboundFlow(t *testing.T) {
	f := newAPIFixture()
	f.devices.devices["dev-1"].InboundFlowID = ""

	w := f.post(t, "/call-flow/dev-1", url.Values{})

	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
}

func TestCallFlowEntry_CampaignPlaceholders(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-out"] = &domain.FlowGraph{
		AccountID: "acc-1",
		FlowID:    "flow-out",
		Version:   1,
		Nodes: []domain.Node{
			{ID: "start", Type: domain.NodeInitial},
			{ID: "pitch", Type: domain.NodeSay, Data: domain.NodeData{Message: "Hello {{{phonebook_name}}}"}},
		},
		Edges: []domain.Edge{{SourceHandle: "start", Target: "pitch"}},
	}

	entry := &domain.CampaignLog{
		ID:         uuid.New(),
		CampaignID: uuid.New(),
		CallTo:     "+15557770000",
		Variables:  map[string]any{"name": "Bob"},
		Status:     domain.LogStarted,
		CreatedAt:  time.Now(),
	}
	f.logs.entries[entry.ID] = entry
	f.logs.order = append(f.logs.order, entry.ID)

	token := dispatch.Continuation{Device: "dev-1", CampaignLogID: entry.ID}
	w := f.post(t, token.EntryURL(), url.Values{})

	body := w.Body.String()
	if !strings.Contains(body, "Hello Bob") {
		t.Fatalf("campaign variable must resolve: %s", body)
	}
}

func TestCallFlowEntry_CampaignLogMissingAdvances(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-out"] = digitGraph()

	token := dispatch.Continuation{Device: "dev-1", CampaignLogID: uuid.New()}
	w := f.post(t, token.EntryURL(), url.Values{})

	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
	if len(f.advancer.finished) != 1 || f.advancer.finished[0] != token.CampaignLogID {
		t.Fatalf("campaign leg must be closed: %v", f.advancer.finished)
	}
}

func TestCallFlowReply_DigitBranch(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	token := dispatch.Continuation{Device: "dev-1", NodeID: "menu", CtxHandle: "h1"}
	w := f.post(t, token.ReplyURL(), url.Values{"Digits": {"1"}})

	body := w.Body.String()
	if !strings.Contains(body, "Thanks for calling") {
		t.Fatalf("farewell expected: %s", body)
	}
	if !strings.Contains(body, "<Hangup") {
		t.Fatalf("hangup expected: %s", body)
	}
}

func TestCallFlowReply_UnmatchedDigit(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	token := dispatch.Continuation{Device: "dev-1", NodeID: "menu", CtxHandle: "h1"}
	w := f.post(t, token.ReplyURL(), url.Values{"Digits": {"9"}})

	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
}

func TestCallFlowReply_BadTokenVersion(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	w := f.post(t, "/call-flow/reply?v=9&device=dev-1&id=menu", url.Values{})

	if w.Code != http.StatusOK {
		t.Fatalf("webhook must answer 200: %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
}

func TestCallFlowGather_BuildsCollection(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	token := dispatch.Continuation{Device: "dev-1", NodeID: "menu", CtxHandle: "h1"}
	w := f.post(t, token.GatherURL(), url.Values{})

	body := w.Body.String()
	if !strings.Contains(body, "<Gather") {
		t.Fatalf("gather document expected: %s", body)
	}
	if !strings.Contains(body, "Press 1") {
		t.Fatalf("prompt expected inside gather: %s", body)
	}
	if !strings.Contains(body, "/call-flow/reply?") {
		t.Fatalf("gather action must return to reply: %s", body)
	}
}

func TestCallFlowGather_UnknownNode(t *testing.T) {
	f := newAPIFixture()
	f.flows.graphs["flow-in"] = digitGraph()

	token := dispatch.Continuation{Device: "dev-1", NodeID: "ghost", CtxHandle: "h1"}
	w := f.post(t, token.GatherURL(), url.Values{})

	if !strings.Contains(w.Body.String(), dispatch.ApologyMessage) {
		t.Fatalf("apology expected: %s", w.Body.String())
	}
}
