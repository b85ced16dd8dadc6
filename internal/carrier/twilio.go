// Package carrier — исходящие операции у оператора связи:
// набор звонков и отправка SMS через учётные данные линии.
package carrier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/shaiso/Vocata/internal/domain"
)

// ErrCarrier — оператор отклонил операцию.
var ErrCarrier = errors.New("carrier request failed")

// Dialer — исходящие операции оператора. Реализуется Twilio-клиентом;
// в тестах подменяется фейком.
type Dialer interface {
	// Dial набирает to с линии device; оператор запросит voiceURL
	// при ответе. Возвращает call SID.
	Dial(ctx context.Context, device *domain.Device, to, voiceURL string) (string, error)

	// SendSMS отправляет body на to с линии device. Возвращает message SID.
	SendSMS(ctx context.Context, device *domain.Device, to, body string) (string, error)
}

// Twilio — реализация Dialer поверх REST API оператора.
// Клиент создаётся на операцию: учётные данные у каждой линии свои.
type Twilio struct {
	logger *slog.Logger
}

// NewTwilio создаёт новый Twilio.
func NewTwilio(logger *slog.Logger) *Twilio {
	return &Twilio{logger: logger}
}

// Dial набирает исходящий звонок.
func (t *Twilio) Dial(_ context.Context, device *domain.Device, to, voiceURL string) (string, error) {
	client := restClient(device)

	params := &openapi.CreateCallParams{}
	params.SetFrom(NormalizeNumber(device.Number))
	params.SetTo(NormalizeNumber(to))
	params.SetUrl(voiceURL)
	params.SetMethod("POST")

	call, err := client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("%w: create call to %s: %v", ErrCarrier, to, err)
	}
	if call.Sid == nil {
		return "", fmt.Errorf("%w: create call to %s: empty sid", ErrCarrier, to)
	}

	t.logger.Info("call originated",
		"device", device.ID,
		"to", NormalizeNumber(to),
		"call_sid", *call.Sid,
	)
	return *call.Sid, nil
}

// SendSMS отправляет SMS.
func (t *Twilio) SendSMS(_ context.Context, device *domain.Device, to, body string) (string, error) {
	client := restClient(device)

	params := &openapi.CreateMessageParams{}
	params.SetFrom(NormalizeNumber(device.Number))
	params.SetTo(NormalizeNumber(to))
	params.SetBody(body)

	msg, err := client.Api.CreateMessage(params)
	if err != nil {
		return "", fmt.Errorf("%w: create message to %s: %v", ErrCarrier, to, err)
	}
	if msg.Sid == nil {
		return "", fmt.Errorf("%w: create message to %s: empty sid", ErrCarrier, to)
	}

	t.logger.Info("sms sent",
		"device", device.ID,
		"to", NormalizeNumber(to),
		"message_sid", *msg.Sid,
	)
	return *msg.Sid, nil
}

// restClient собирает REST-клиент с учётными данными линии.
func restClient(device *domain.Device) *twilio.RestClient {
	return twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: device.SID,
		Password: device.Token,
	})
}

// NormalizeNumber приводит номер к E.164-подобной записи:
// убирает пробелы, скобки и дефисы, добавляет ведущий "+".
func NormalizeNumber(number string) string {
	var b strings.Builder
	for _, r := range number {
		switch r {
		case ' ', '-', '(', ')', '.':
		default:
			b.WriteRune(r)
		}
	}
	n := b.String()
	if n == "" || strings.HasPrefix(n, "+") {
		return n
	}
	return "+" + n
}
