package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/ai"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/flow"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/telemetry"
	"github.com/shaiso/Vocata/internal/twiml"
)

// ApologyMessage — реплика фатального пути: абонент всегда слышит
// сообщение и hangup, протокольные ошибки наружу не уходят.
const ApologyMessage = "An error occurred while processing the request, Goodbye!"

const defaultRequestTimeout = 20 * time.Second

// HandlerFunc обрабатывает один узел и возвращает голосовой документ.
type HandlerFunc func(ctx context.Context, call *Call) (*twiml.Response, error)

// Call — состояние одного вебхука: линия, граф, разрезолвленный узел,
// собранный контекст переменных и continuation-токен.
type Call struct {
	Device *domain.Device
	Graph  *domain.FlowGraph
	Node   *domain.Node
	Token  Continuation

	// Log — цель кампании для исходящего звонка, nil для входящих.
	Log *domain.CampaignLog

	// Vars — контекст переменных (vars.Builder).
	Vars map[string]any

	// Speech — распознанная речь абонента (speech gather).
	Speech string
}

// next возвращает continuation от узла node: тот же звонок,
// резолв следующего шага пойдёт от node.
func (c *Call) next(nodeID string) Continuation {
	t := c.Token
	t.NodeID = nodeID
	t.Ring = false
	t.Ringback = false
	t.Digit = ""
	return t
}

// VarStore — запись в контекст переменных.
type VarStore interface {
	Merge(ctx context.Context, handle string, data map[string]any) error
}

// ResponseStore — durable записи CAPTURE.
type ResponseStore interface {
	Insert(ctx context.Context, resp *domain.FlowResponse) error
}

// SMSPublisher — постановка SMS в очередь отправки.
type SMSPublisher interface {
	PublishSMS(ctx context.Context, payload mq.SMSSendPayload) error
}

// AI — AI-диалог узла OPENAI.
type AI interface {
	Open(ctx context.Context, session string, node *domain.Node) error
	Turn(ctx context.Context, session string, node *domain.Node, userSpeech string) (*ai.Reply, error)
}

// Advancer закрывает цель кампании и продвигает очередь.
// Ошибки продвижения не влияют на голосовой документ.
type Advancer interface {
	Finish(ctx context.Context, campaignLogID uuid.UUID, status domain.LogStatus)
}

// Dispatcher — конечный автомат звонка: реестр обработчиков по типу
// узла. Любая ошибка обработчика превращается в apology hangup; для
// звонка кампании цель дополнительно закрывается строкой ошибки и
// очередь продвигается.
type Dispatcher struct {
	registry map[domain.NodeType]HandlerFunc

	vars      VarStore
	responses ResponseStore
	sms       SMSPublisher
	turns     AI
	advancer  Advancer

	httpClient *http.Client
	beepURL    string
	logger     *slog.Logger
}

// NewDispatcher создаёт диспетчер с обработчиками всех типов узлов.
func NewDispatcher(vars VarStore, responses ResponseStore, sms SMSPublisher, turns AI, advancer Advancer, logger *slog.Logger) *Dispatcher {
	beep := os.Getenv("BEEP_URL")
	if beep == "" {
		beep = "https://www.soundjay.com/buttons/beep-02.wav"
	}

	d := &Dispatcher{
		registry:   make(map[domain.NodeType]HandlerFunc),
		vars:       vars,
		responses:  responses,
		sms:        sms,
		turns:      turns,
		advancer:   advancer,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		beepURL:    beep,
		logger:     logger,
	}

	d.register(domain.NodeSay, d.handleSay)
	d.register(domain.NodeGather, d.handleGather)
	d.register(domain.NodeCondition, d.handleCondition)
	d.register(domain.NodeMakeRequest, d.handleMakeRequest)
	d.register(domain.NodeCapture, d.handleCapture)
	d.register(domain.NodeSendMsg, d.handleSendMsg)
	d.register(domain.NodeOpenAI, d.handleOpenAI)
	d.register(domain.NodeHangup, d.handleHangup)
	return d
}

func (d *Dispatcher) register(t domain.NodeType, h HandlerFunc) {
	d.registry[t] = h
}

// Dispatch обрабатывает разрезолвленный узел. Никогда не возвращает
// ошибку наружу: фатальный путь — это тоже голосовой документ.
func (d *Dispatcher) Dispatch(ctx context.Context, call *Call) *twiml.Response {
	handler, ok := d.registry[call.Node.Type]
	if !ok {
		return d.fail(ctx, call, fmt.Errorf("%w: %s", ErrUnknownNodeType, call.Node.Type))
	}

	resp, err := handler(ctx, call)
	if err != nil {
		telemetry.NodeDispatches.WithLabelValues(string(call.Node.Type), "error").Inc()
		return d.fail(ctx, call, err)
	}

	telemetry.NodeDispatches.WithLabelValues(string(call.Node.Type), "ok").Inc()
	return resp
}

// Fail — фатальный путь для ошибок до резолва узла (граф не загрузился,
// резолвер вернул ошибку). Семантика та же, что у ошибки обработчика.
func (d *Dispatcher) Fail(ctx context.Context, token Continuation, err error) *twiml.Response {
	return d.fail(ctx, &Call{Token: token}, err)
}

func (d *Dispatcher) fail(ctx context.Context, call *Call, err error) *twiml.Response {
	logger := telemetry.WithDevice(d.logger, call.Token.Device)
	logger.Error("call failed", "node", call.Token.NodeID, "error", err)

	if call.Token.Outgoing() && d.advancer != nil {
		d.advancer.Finish(ctx, call.Token.CampaignLogID, statusFromError(err))
	}
	return Apology()
}

// Apology — документ фатального пути: реплика, пауза, hangup.
func Apology() *twiml.Response {
	return twiml.New().
		Say(ApologyMessage, "", "").
		Pause(2).
		Hangup()
}

// statusFromError превращает ошибку в описательный терминальный
// статус цели кампании.
func statusFromError(err error) domain.LogStatus {
	msg := err.Error()
	if len(msg) > 120 {
		msg = msg[:120]
	}
	return domain.LogStatus(msg)
}

// Collect строит документ сбора цифр для узла GATHER: prompt внутри
// <Gather>, action ведёт обратно в reply с токеном узла.
func (d *Dispatcher) Collect(ctx context.Context, call *Call) *twiml.Response {
	if call.Node.Type != domain.NodeGather {
		return d.fail(ctx, call, fmt.Errorf("%w: %s %s", ErrNotGather, call.Node.ID, call.Node.Type))
	}

	msg := flow.ResolvePlaceholders(call.Node.Data.Message, call.Vars)
	voice, lang := voiceOf(call.Node)

	return twiml.New().Gather(twiml.Gather{
		Action:    call.next(call.Node.ID).ReplyURL(),
		Method:    "POST",
		NumDigits: 10,
		Say: &twiml.Say{
			Voice:    voice,
			Language: lang,
			Loop:     1,
			Text:     msg,
		},
	})
}

// voiceOf возвращает голос и язык узла (пустые, если не настроены).
func voiceOf(node *domain.Node) (voice, lang string) {
	if node.Data.Voice == nil {
		return "", ""
	}
	return node.Data.Voice.Voice, node.Data.Voice.Language
}
