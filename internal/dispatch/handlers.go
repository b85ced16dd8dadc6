package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/flow"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/twiml"
)

// handleSay произносит сообщение и редиректит на следующий узел.
func (d *Dispatcher) handleSay(ctx context.Context, call *Call) (*twiml.Response, error) {
	msg := flow.ResolvePlaceholders(call.Node.Data.Message, call.Vars)
	voice, lang := voiceOf(call.Node)

	return twiml.New().
		Say(msg, voice, lang).
		Redirect(call.next(call.Node.ID).ReplyURL()), nil
}

// handleGather редиректит в collection-флоу: сбор цифр делает
// отдельный endpoint, который вернётся в reply с введённым.
func (d *Dispatcher) handleGather(ctx context.Context, call *Call) (*twiml.Response, error) {
	return twiml.New().
		Redirect(call.next(call.Node.ID).GatherURL()), nil
}

// handleCondition сравнивает нажатую цифру с веткой ifEqual и
// редиректит в выигравшую ветку, пронося цифру дальше.
func (d *Dispatcher) handleCondition(ctx context.Context, call *Call) (*twiml.Response, error) {
	equal := call.Node.Data.IfEqual
	notEqual := call.Node.Data.IfNotEqual
	if equal == nil || notEqual == nil {
		return nil, fmt.Errorf("%w: node %s", ErrBranchMissing, call.Node.ID)
	}

	digit := call.Token.Digit
	want := flow.ResolvePlaceholders(equal.Digit, call.Vars)

	branch := notEqual
	if want == digit {
		branch = equal
	}

	next := call.next(branch.ID)
	next.Digit = digit
	return twiml.New().Redirect(next.ReplyURL()), nil
}

// handleMakeRequest выполняет внешний HTTP-запрос с ограниченным
// таймаутом и вливает JSON-ответ в контекст handle. Сбой запроса
// логируется, флоу всегда идёт дальше.
func (d *Dispatcher) handleMakeRequest(ctx context.Context, call *Call) (*twiml.Response, error) {
	data, err := d.makeRequest(ctx, call)
	switch {
	case err != nil:
		d.logger.Warn("external request failed",
			"node", call.Node.ID,
			"url", call.Node.Data.URL,
			"error", err,
		)
	case call.Token.CtxHandle == "":
		// merge требует явного handle; без него ответ отбрасывается
		d.logger.Warn("external response dropped: no context handle", "node", call.Node.ID)
	default:
		if err := d.vars.Merge(ctx, call.Token.CtxHandle, data); err != nil {
			d.logger.Warn("merge external response failed",
				"node", call.Node.ID,
				"handle", call.Token.CtxHandle,
				"error", err,
			)
		}
	}

	return twiml.New().Redirect(call.next(call.Node.ID).ReplyURL()), nil
}

// makeRequest собирает и выполняет запрос узла MAKE_REQUEST.
func (d *Dispatcher) makeRequest(ctx context.Context, call *Call) (map[string]any, error) {
	url := flow.ResolvePlaceholders(call.Node.Data.URL, call.Vars)
	if url == "" {
		return nil, fmt.Errorf("%w: url is empty", ErrExternalRequest)
	}

	method := strings.ToUpper(call.Node.Data.Method)
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if len(call.Node.Data.Body) > 0 {
		body := make(map[string]string, len(call.Node.Data.Body))
		for _, kv := range call.Node.Data.Body {
			body[kv.Key] = flow.ResolvePlaceholders(kv.Value, call.Vars)
		}
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("%w: marshal body: %v", ErrExternalRequest, err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	ctx, cancel := context.WithTimeout(ctx, d.httpClient.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalRequest, err)
	}
	if bodyReader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, kv := range call.Node.Data.Headers {
		req.Header.Set(kv.Key, flow.ResolvePlaceholders(kv.Value, call.Vars))
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("%w: status %d", ErrExternalRequest, resp.StatusCode)
	}

	var data map[string]any
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&data); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrExternalRequest, err)
	}
	return data, nil
}

// handleCapture сохраняет разрезолвленное сообщение как durable
// запись. Ошибка персистентности фатальна.
func (d *Dispatcher) handleCapture(ctx context.Context, call *Call) (*twiml.Response, error) {
	record := &domain.FlowResponse{
		AccountID: call.Device.AccountID,
		Text:      flow.ResolvePlaceholders(call.Node.Data.Message, call.Vars),
		Caller:    varOr(call.Vars, "recipient_number"),
		Called:    varOr(call.Vars, "my_number"),
		Digit:     varOr(call.Vars, "digits"),
		CreatedAt: time.Now(),
	}
	if call.Log != nil {
		record.CampaignID = call.Log.CampaignID.String()
	}

	if err := d.responses.Insert(ctx, record); err != nil {
		return nil, fmt.Errorf("persist flow response: %w", err)
	}

	return twiml.New().Redirect(call.next(call.Node.ID).ReplyURL()), nil
}

// handleSendMsg ставит SMS в очередь отправки. Сбой проглатывается,
// флоу идёт дальше.
func (d *Dispatcher) handleSendMsg(ctx context.Context, call *Call) (*twiml.Response, error) {
	deviceID := call.Node.Data.DeviceID
	if deviceID == "" {
		deviceID = call.Device.ID
	}

	payload := mq.SMSSendPayload{
		DeviceID: deviceID,
		To:       varOr(call.Vars, "recipient_number"),
		Body:     flow.ResolvePlaceholders(call.Node.Data.Message, call.Vars),
	}
	if d.sms == nil {
		d.logger.Warn("sms queue not connected, message dropped", "node", call.Node.ID)
		return twiml.New().Redirect(call.next(call.Node.ID).ReplyURL()), nil
	}
	if err := d.sms.PublishSMS(ctx, payload); err != nil {
		d.logger.Warn("sms enqueue failed",
			"node", call.Node.ID,
			"device", deviceID,
			"error", err,
		)
	}

	return twiml.New().Redirect(call.next(call.Node.ID).ReplyURL()), nil
}

// handleHangup опционально произносит прощание и завершает звонок.
// Для звонка кампании цель закрывается как COMPLETED.
func (d *Dispatcher) handleHangup(ctx context.Context, call *Call) (*twiml.Response, error) {
	resp := twiml.New()

	if call.Node.Data.Message != "" {
		msg := flow.ResolvePlaceholders(call.Node.Data.Message, call.Vars)
		voice, lang := voiceOf(call.Node)
		resp.Say(msg, voice, lang)
	}
	resp.Pause(2).Hangup()

	if call.Token.Outgoing() && d.advancer != nil {
		d.advancer.Finish(ctx, call.Token.CampaignLogID, domain.LogCompleted)
	}
	return resp, nil
}

// handleOpenAI ведёт AI-диалог.
//
// Фазы:
//   - opening (нет ai в токене) — создать сессию, произнести opening,
//     выждать речь, beep, открыть speech gather с ring=true;
//   - ring (ai + ring) — ход диалога: реплика абонента в модель,
//     function call → redirect в задачу, текст → say + redirect
//     с ringback;
//   - ringback (ai без ring) — реплика уже произнесена, beep и
//     повторный speech gather.
func (d *Dispatcher) handleOpenAI(ctx context.Context, call *Call) (*twiml.Response, error) {
	if call.Token.AISession != "" && call.Token.Ring {
		return d.aiTurn(ctx, call)
	}
	return d.aiOpen(ctx, call)
}

// aiOpen — opening и ringback фазы: произнести opening (только при
// первом входе), beep, открыть speech gather.
func (d *Dispatcher) aiOpen(ctx context.Context, call *Call) (*twiml.Response, error) {
	session := call.Token.AISession
	opening := flow.ResolvePlaceholders(call.Node.Data.OpeningSay, call.Vars)

	resp := twiml.New()

	if session == "" {
		session = uuid.New().String()
		seeded := *call.Node
		seeded.Data.OpeningSay = opening
		if err := d.turns.Open(ctx, session, &seeded); err != nil {
			return nil, fmt.Errorf("open ai session: %w", err)
		}

		voice, lang := voiceOf(call.Node)
		resp.Say(opening, voice, lang).
			Pause(estimateSpeakingTime(opening, call.Node.Data.WordsPerSec))
	}

	resp.Play(d.beepURL).Pause(1)

	next := call.next(call.Node.ID)
	next.AISession = session
	next.Ring = true

	_, lang := voiceOf(call.Node)
	resp.Gather(twiml.Gather{
		Input:    "speech",
		Timeout:  2,
		Action:   next.ReplyURL(),
		Method:   "POST",
		Language: lang,
	})
	return resp, nil
}

// aiTurn — ход диалога: речь абонента в модель, ответ — редирект
// в задачу либо реплика с возвратом в сбор.
func (d *Dispatcher) aiTurn(ctx context.Context, call *Call) (*twiml.Response, error) {
	reply, err := d.turns.Turn(ctx, call.Token.AISession, call.Node, call.Speech)
	if err != nil {
		return nil, err
	}

	if reply.RedirectTo != "" {
		next := call.next(reply.RedirectTo)
		next.AISession = ""
		return twiml.New().Redirect(next.ReplyURL()), nil
	}

	voice, lang := voiceOf(call.Node)
	next := call.next(call.Node.ID)
	next.AISession = call.Token.AISession
	next.Ringback = true

	return twiml.New().
		Say(reply.Say, voice, lang).
		Pause(estimateSpeakingTime(reply.Say, call.Node.Data.WordsPerSec)).
		Redirect(next.ReplyURL()), nil
}

// estimateSpeakingTime оценивает длительность произнесения текста
// в секундах по числу слов.
func estimateSpeakingTime(text string, wordsPerSec int) int {
	if wordsPerSec <= 0 {
		wordsPerSec = 3
	}
	words := len(strings.Fields(text))
	secs := int(math.Ceil(float64(words) / float64(wordsPerSec)))
	if secs < 1 {
		secs = 1
	}
	return secs
}

// varOr возвращает строковое значение ключа или "NA".
func varOr(vars map[string]any, key string) string {
	v, ok := vars[key]
	if !ok || v == nil || v == "" {
		return flow.Missing
	}
	return fmt.Sprint(v)
}
