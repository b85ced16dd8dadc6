package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/dispatch"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/flow"
	"github.com/shaiso/Vocata/internal/telemetry"
	"github.com/shaiso/Vocata/internal/twiml"
	"github.com/shaiso/Vocata/internal/vars"
)

// errNoFlow — на линии не привязан граф нужного направления.
var errNoFlow = errors.New("no flow bound to device")

// CallFlowEntry — вход звонка в граф: первый callback оператора.
// Входящий звонок приходит без continuation-токена (URL вебхука
// настроен на линии), исходящий звонок кампании несёт токен с целью.
// POST /call-flow/{device}
func (h *Handler) CallFlowEntry(w http.ResponseWriter, r *http.Request) {
	telemetry.WebhookRequests.WithLabelValues("entry").Inc()

	deviceID := r.PathValue("device")

	var token dispatch.Continuation
	if r.URL.Query().Get("v") == "" {
		token = dispatch.Continuation{Device: deviceID}
	} else {
		parsed, err := dispatch.ParseContinuation(r.URL.Query())
		if err != nil {
			h.logger.Error("bad continuation token", "device", deviceID, "error", err)
			Voice(w, h.logger, dispatch.Apology())
			return
		}
		token = parsed
		token.Device = deviceID
	}

	call, failed := h.prepareCall(r, token)
	if failed != nil {
		Voice(w, h.logger, failed)
		return
	}

	node, err := flow.Resolve(call.Graph, flow.ResolveRequest{
		NodeID: call.Token.NodeID,
		Digit:  call.Token.Digit,
		AITurn: call.Token.AISession != "",
	})
	if err != nil {
		Voice(w, h.logger, h.dispatcher.Fail(r.Context(), call.Token, err))
		return
	}

	call.Node = node
	Voice(w, h.logger, h.dispatcher.Dispatch(r.Context(), call))
}

// CallFlowReply — продолжение звонка: резолв следующего узла от id
// в токене с учётом нажатой цифры или хода AI-сессии.
// POST /call-flow/reply?v=&device=&id=&ctx=...
func (h *Handler) CallFlowReply(w http.ResponseWriter, r *http.Request) {
	telemetry.WebhookRequests.WithLabelValues("reply").Inc()

	token, err := dispatch.ParseContinuation(r.URL.Query())
	if err != nil {
		h.logger.Error("bad continuation token", "error", err)
		Voice(w, h.logger, dispatch.Apology())
		return
	}

	call, failed := h.prepareCall(r, token)
	if failed != nil {
		Voice(w, h.logger, failed)
		return
	}

	node, err := flow.Resolve(call.Graph, flow.ResolveRequest{
		NodeID: call.Token.NodeID,
		Digit:  call.Token.Digit,
		AITurn: call.Token.AISession != "",
	})
	if err != nil {
		Voice(w, h.logger, h.dispatcher.Fail(r.Context(), call.Token, err))
		return
	}

	call.Node = node
	Voice(w, h.logger, h.dispatcher.Dispatch(r.Context(), call))
}

// CallFlowGather — документ сбора цифр для узла GATHER из токена.
// Узел не резолвится дальше: id указывает на сам GATHER, ввод
// вернётся в reply через action формы <Gather>.
// POST /call-flow/gather/{device}?v=&id=&ctx=...
func (h *Handler) CallFlowGather(w http.ResponseWriter, r *http.Request) {
	telemetry.WebhookRequests.WithLabelValues("gather").Inc()

	token, err := dispatch.ParseContinuation(r.URL.Query())
	if err != nil {
		h.logger.Error("bad continuation token", "error", err)
		Voice(w, h.logger, dispatch.Apology())
		return
	}
	token.Device = r.PathValue("device")

	call, failed := h.prepareCall(r, token)
	if failed != nil {
		Voice(w, h.logger, failed)
		return
	}

	node := call.Graph.FindNode(call.Token.NodeID)
	if node == nil {
		err := fmt.Errorf("%w: %q", flow.ErrNodeNotFound, call.Token.NodeID)
		Voice(w, h.logger, h.dispatcher.Fail(r.Context(), call.Token, err))
		return
	}

	call.Node = node
	Voice(w, h.logger, h.dispatcher.Collect(r.Context(), call))
}

// prepareCall собирает состояние звонка из запроса: линия, граф,
// цель кампании, контекст переменных. Возвращает готовый голосовой
// документ фатального пути вместо ошибки.
func (h *Handler) prepareCall(r *http.Request, token dispatch.Continuation) (*dispatch.Call, *twiml.Response) {
	ctx := r.Context()

	device, err := h.devices.GetByID(ctx, token.Device)
	if err != nil {
		return nil, h.dispatcher.Fail(ctx, token, fmt.Errorf("device %q: %w", token.Device, err))
	}

	var entry *domain.CampaignLog
	var campaignVars map[string]any
	if token.Outgoing() {
		entry, err = h.logs.GetByID(ctx, token.CampaignLogID)
		if err != nil {
			return nil, h.dispatcher.Fail(ctx, token, fmt.Errorf("campaign log: %w", err))
		}
		campaignVars = entry.Variables
	}

	flowID := device.FlowFor(token.Outgoing())
	if flowID == "" {
		return nil, h.dispatcher.Fail(ctx, token, fmt.Errorf("%w: device %s", errNoFlow, device.ID))
	}

	graph, err := h.flows.Get(ctx, device.AccountID, flowID)
	if err != nil {
		return nil, h.dispatcher.Fail(ctx, token, fmt.Errorf("flow %q: %w", flowID, err))
	}

	// Контекст переменных создаётся на входе и дальше едет в токене.
	if token.CtxHandle == "" {
		token.CtxHandle = uuid.New().String()
	}

	// Цифра: свежий ввод формы приоритетнее пронесённой через redirect.
	if digits := r.PostFormValue("Digits"); digits != "" {
		token.Digit = digits
	}

	fb := vars.Fallback{
		Caller: r.PostFormValue("Caller"),
		Called: r.PostFormValue("Called"),
		Digits: token.Digit,
	}
	if fb.Caller == "" {
		fb.Caller = r.PostFormValue("From")
	}
	if fb.Called == "" {
		fb.Called = r.PostFormValue("To")
	}
	if token.Outgoing() {
		fb.Caller = entry.CallTo
		if fb.Called == "" {
			fb.Called = device.Number
		}
	}

	built, err := h.vars.Build(ctx, token.CtxHandle, fb, campaignVars)
	if err != nil {
		return nil, h.dispatcher.Fail(ctx, token, fmt.Errorf("build call context: %w", err))
	}

	return &dispatch.Call{
		Device: device,
		Graph:  graph,
		Token:  token,
		Log:    entry,
		Vars:   built,
		Speech: r.PostFormValue("SpeechResult"),
	}, nil
}
