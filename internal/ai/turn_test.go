package ai

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shaiso/Vocata/internal/domain"
)

type memStore struct {
	sessions map[string]domain.Transcript
}

func newMemStore() *memStore {
	return &memStore{sessions: make(map[string]domain.Transcript)}
}

func (m *memStore) Append(_ context.Context, session string, turn domain.Turn) error {
	m.sessions[session] = append(m.sessions[session], turn)
	return nil
}

func (m *memStore) Tail(_ context.Context, session string, n int) (domain.Transcript, error) {
	return m.sessions[session].Tail(n), nil
}

type fakeCompleter struct {
	lastReq openai.ChatCompletionRequest
	resp    openai.ChatCompletionResponse
	err     error
}

func (f *fakeCompleter) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.lastReq = req
	return f.resp, f.err
}

func textResponse(content string) openai.ChatCompletionResponse {
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: content,
			}},
		},
	}
}

func aiNode() *domain.Node {
	return &domain.Node{
		ID:   "ai-1",
		Type: domain.NodeOpenAI,
		Data: domain.NodeData{
			SystemPrompt: "You are a booking assistant.",
			OpeningSay:   "Hello, how can I help?",
			Model:        "gpt-4o-mini",
			AllowTasks:   true,
			Tasks: []domain.TaskRef{
				{ID: "transfer-operator", Text: "Caller asks for a human operator"},
			},
		},
	}
}

func newTestHandler(store TranscriptStore, fake *fakeCompleter) *TurnHandler {
	h := NewTurnHandler(store, slog.Default())
	h.newClient = func(string) Completer { return fake }
	return h
}

func TestOpen_SeedsTranscript(t *testing.T) {
	store := newMemStore()
	h := newTestHandler(store, &fakeCompleter{})

	if err := h.Open(context.Background(), "s1", aiNode()); err != nil {
		t.Fatalf("Open: %v", err)
	}

	got := store.sessions["s1"]
	if len(got) != 2 {
		t.Fatalf("expected 2 seeded turns, got %d", len(got))
	}
	if got[0].Role != domain.RoleSystem || got[1].Role != domain.RoleAssistant {
		t.Fatalf("unexpected seed roles: %v", got)
	}
}

func TestTurn_SayReply(t *testing.T) {
	store := newMemStore()
	fake := &fakeCompleter{resp: textResponse("Sure, what date?")}
	h := newTestHandler(store, fake)

	node := aiNode()
	if err := h.Open(context.Background(), "s1", node); err != nil {
		t.Fatalf("Open: %v", err)
	}

	reply, err := h.Turn(context.Background(), "s1", node, "I want to book a table")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply.Say != "Sure, what date?" {
		t.Errorf("unexpected reply: %q", reply.Say)
	}
	if reply.RedirectTo != "" {
		t.Errorf("unexpected redirect: %q", reply.RedirectTo)
	}

	// user + assistant дописаны после seed
	got := store.sessions["s1"]
	if len(got) != 4 {
		t.Fatalf("expected 4 turns after one exchange, got %d", len(got))
	}
	if got[2].Role != domain.RoleUser || got[3].Role != domain.RoleAssistant {
		t.Fatalf("unexpected turn order: %v", got)
	}
}

func TestTurn_FunctionCallRedirects(t *testing.T) {
	store := newMemStore()
	fake := &fakeCompleter{resp: openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{
			{Message: openai.ChatCompletionMessage{
				ToolCalls: []openai.ToolCall{
					{Function: openai.FunctionCall{Name: "transfer-operator"}},
				},
			}},
		},
	}}
	h := newTestHandler(store, fake)

	node := aiNode()
	reply, err := h.Turn(context.Background(), "s1", node, "give me a human")
	if err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if reply.RedirectTo != "transfer-operator" {
		t.Errorf("expected redirect to transfer-operator, got %q", reply.RedirectTo)
	}
	if reply.Say != "" {
		t.Errorf("redirect reply must not say anything, got %q", reply.Say)
	}

	// редирект не оставляет assistant-реплику в transcript
	for _, turn := range store.sessions["s1"] {
		if turn.Role == domain.RoleAssistant {
			t.Fatalf("assistant turn must not be recorded on redirect: %v", store.sessions["s1"])
		}
	}
}

func TestTurn_HistoryWindowBoundsRequest(t *testing.T) {
	store := newMemStore()
	fake := &fakeCompleter{resp: textResponse("ok")}
	h := newTestHandler(store, fake)

	node := aiNode()
	node.Data.HistoryWindow = 3

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		store.sessions["s1"] = append(store.sessions["s1"],
			domain.Turn{Role: domain.RoleUser, Content: "filler"},
			domain.Turn{Role: domain.RoleAssistant, Content: "filler"},
		)
	}

	if _, err := h.Turn(ctx, "s1", node, "latest"); err != nil {
		t.Fatalf("Turn: %v", err)
	}

	// окно 3 + восстановленная system-инструкция
	if len(fake.lastReq.Messages) != 4 {
		t.Fatalf("expected 4 messages in request, got %d", len(fake.lastReq.Messages))
	}
	if fake.lastReq.Messages[0].Role != openai.ChatMessageRoleSystem {
		t.Errorf("system prompt must lead the request")
	}
	last := fake.lastReq.Messages[len(fake.lastReq.Messages)-1]
	if last.Content != "latest" {
		t.Errorf("latest user turn must close the request, got %q", last.Content)
	}
}

func TestTurn_TasksExposedAsTools(t *testing.T) {
	store := newMemStore()
	fake := &fakeCompleter{resp: textResponse("ok")}
	h := newTestHandler(store, fake)

	if _, err := h.Turn(context.Background(), "s1", aiNode(), "hi"); err != nil {
		t.Fatalf("Turn: %v", err)
	}
	if len(fake.lastReq.Tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(fake.lastReq.Tools))
	}
	if fake.lastReq.Tools[0].Function.Name != "transfer-operator" {
		t.Errorf("unexpected tool name: %q", fake.lastReq.Tools[0].Function.Name)
	}
}

func TestTurn_ModelError(t *testing.T) {
	store := newMemStore()
	fake := &fakeCompleter{err: errors.New("429 rate limited")}
	h := newTestHandler(store, fake)

	_, err := h.Turn(context.Background(), "s1", aiNode(), "hi")
	if !errors.Is(err, ErrModelCall) {
		t.Fatalf("expected ErrModelCall, got %v", err)
	}
}
