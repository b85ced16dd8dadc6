// Package ai реализует разговорный узел: transcript сессии,
// ограниченное окно истории и вызов языковой модели с function-call
// задачами для редиректа в граф.
package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"

	"github.com/shaiso/Vocata/internal/domain"
)

// Ошибки AI-диалога.
var (
	// ErrModelCall — языковая модель недоступна или вернула ошибку.
	ErrModelCall = errors.New("model call failed")

	// ErrEmptyReply — модель вернула пустой ответ без function call.
	ErrEmptyReply = errors.New("empty model reply")
)

// DefaultModel — модель по умолчанию, если узел её не задаёт.
const DefaultModel = openai.GPT4oMini

// DefaultHistoryWindow — сколько последних реплик отдавать модели,
// если узел не задаёт окно.
const DefaultHistoryWindow = 20

// TranscriptStore — персистентный transcript AI-сессий.
type TranscriptStore interface {
	Append(ctx context.Context, session string, turn domain.Turn) error
	Tail(ctx context.Context, session string, n int) (domain.Transcript, error)
}

// Completer — вызов chat completion. Покрывает *openai.Client;
// в тестах подменяется фейком.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Reply — результат одного хода диалога: либо реплика для синтеза,
// либо редирект на узел выбранной моделью задачи.
type Reply struct {
	// Say — текст реплики ассистента. Пусто при редиректе.
	Say string

	// RedirectTo — ID узла задачи, выбранной моделью через function call.
	RedirectTo string
}

// TurnHandler ведёт AI-диалог: хранит transcript и обращается к модели.
type TurnHandler struct {
	store     TranscriptStore
	logger    *slog.Logger
	newClient func(apiKey string) Completer
}

// NewTurnHandler создаёт новый TurnHandler.
func NewTurnHandler(store TranscriptStore, logger *slog.Logger) *TurnHandler {
	return &TurnHandler{
		store:  store,
		logger: logger,
		newClient: func(apiKey string) Completer {
			return openai.NewClient(apiKey)
		},
	}
}

// Open инициализирует сессию: системная инструкция и первая
// реплика ассистента записываются в transcript.
func (h *TurnHandler) Open(ctx context.Context, session string, node *domain.Node) error {
	if node.Data.SystemPrompt != "" {
		turn := domain.Turn{Role: domain.RoleSystem, Content: node.Data.SystemPrompt}
		if err := h.store.Append(ctx, session, turn); err != nil {
			return fmt.Errorf("append system prompt: %w", err)
		}
	}
	if node.Data.OpeningSay != "" {
		turn := domain.Turn{Role: domain.RoleAssistant, Content: node.Data.OpeningSay}
		if err := h.store.Append(ctx, session, turn); err != nil {
			return fmt.Errorf("append opening: %w", err)
		}
	}
	return nil
}

// Turn обрабатывает реплику абонента: дописывает её в transcript,
// вызывает модель с ограниченным окном истории и возвращает ответ.
//
// Если модель выбрала задачу (function call), её реплика не
// записывается: диалог завершается редиректом.
func (h *TurnHandler) Turn(ctx context.Context, session string, node *domain.Node, userSpeech string) (*Reply, error) {
	userTurn := domain.Turn{Role: domain.RoleUser, Content: userSpeech}
	if err := h.store.Append(ctx, session, userTurn); err != nil {
		return nil, fmt.Errorf("append user turn: %w", err)
	}

	window := node.Data.HistoryWindow
	if window <= 0 {
		window = DefaultHistoryWindow
	}
	history, err := h.store.Tail(ctx, session, window)
	if err != nil {
		return nil, fmt.Errorf("load transcript: %w", err)
	}

	req := buildRequest(node, history)
	client := h.newClient(node.Data.APIKey)

	resp, err := client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrModelCall, err)
	}
	if len(resp.Choices) == 0 {
		return nil, ErrEmptyReply
	}

	msg := resp.Choices[0].Message

	if len(msg.ToolCalls) > 0 {
		target := msg.ToolCalls[0].Function.Name
		h.logger.Info("model selected task", "session", session, "target", target)
		return &Reply{RedirectTo: target}, nil
	}

	if msg.Content == "" {
		return nil, ErrEmptyReply
	}

	assistantTurn := domain.Turn{Role: domain.RoleAssistant, Content: msg.Content}
	if err := h.store.Append(ctx, session, assistantTurn); err != nil {
		return nil, fmt.Errorf("append assistant turn: %w", err)
	}
	return &Reply{Say: msg.Content}, nil
}

// buildRequest собирает запрос к модели: системная инструкция,
// окно истории и function-call задачи узла.
func buildRequest(node *domain.Node, history domain.Transcript) openai.ChatCompletionRequest {
	model := node.Data.Model
	if model == "" {
		model = DefaultModel
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)

	// Системная инструкция идёт первой, даже если окно истории
	// её уже вытеснило.
	if node.Data.SystemPrompt != "" && !hasSystem(history) {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: node.Data.SystemPrompt,
		})
	}
	for _, turn := range history {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(turn.Role),
			Content: turn.Content,
		})
	}

	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	}

	if node.Data.AllowTasks {
		for _, task := range node.Data.Tasks {
			req.Tools = append(req.Tools, openai.Tool{
				Type: openai.ToolTypeFunction,
				Function: &openai.FunctionDefinition{
					Name:        task.ID,
					Description: task.Text,
				},
			})
		}
	}
	return req
}

// hasSystem возвращает true, если в окне истории уже есть system-реплика.
func hasSystem(history domain.Transcript) bool {
	for _, turn := range history {
		if turn.Role == domain.RoleSystem {
			return true
		}
	}
	return false
}
