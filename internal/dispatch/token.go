package dispatch

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
)

// TokenVersion — текущая версия continuation-токена.
// Запрос с другой версией отклоняется: смысл параметров мог измениться.
const TokenVersion = 1

// Continuation — состояние звонка между вебхуками.
//
// Оператор связи не хранит ничего, кроме URL следующего callback'а,
// поэтому всё продолжение кодируется в query-параметрах токена:
// узел, handle контекста переменных, цель кампании и AI-сессия.
type Continuation struct {
	// Device — линия, на которой идёт звонок.
	Device string

	// NodeID — узел, от которого резолвится следующий шаг.
	// Пусто на входе в граф (резолвер пойдёт от INITIAL).
	NodeID string

	// CtxHandle — handle контекста переменных. Пусто, пока контекст
	// не создан.
	CtxHandle string

	// CampaignLogID — цель кампании для исходящего звонка.
	// uuid.Nil для входящих.
	CampaignLogID uuid.UUID

	// AISession — handle transcript'а AI-сессии. Непустое значение
	// означает ход AI-диалога: резолвер вернёт тот же узел.
	AISession string

	// Ring — открыт speech gather: в запросе ожидается реплика абонента.
	Ring bool

	// Ringback — реплика ассистента уже произнесена, открыть сбор
	// без повторного opening.
	Ringback bool

	// Digit — цифра, пронесённая через redirect (ветка CONDITION).
	Digit string
}

// Outgoing возвращает true для звонка кампании.
func (c Continuation) Outgoing() bool {
	return c.CampaignLogID != uuid.Nil
}

// Query кодирует токен в query-параметры.
func (c Continuation) Query() url.Values {
	q := url.Values{}
	q.Set("v", strconv.Itoa(TokenVersion))
	q.Set("device", c.Device)
	if c.NodeID != "" {
		q.Set("id", c.NodeID)
	}
	if c.CtxHandle != "" {
		q.Set("ctx", c.CtxHandle)
	}
	if c.CampaignLogID != uuid.Nil {
		q.Set("log", c.CampaignLogID.String())
	}
	if c.AISession != "" {
		q.Set("ai", c.AISession)
	}
	if c.Ring {
		q.Set("ring", "true")
	}
	if c.Ringback {
		q.Set("ringback", "true")
	}
	if c.Digit != "" {
		q.Set("digits", c.Digit)
	}
	return q
}

// ParseContinuation декодирует токен из query-параметров.
// ErrTokenVersion — параметр v отсутствует или не совпадает.
func ParseContinuation(q url.Values) (Continuation, error) {
	v, err := strconv.Atoi(q.Get("v"))
	if err != nil || v != TokenVersion {
		return Continuation{}, fmt.Errorf("%w: %q", ErrTokenVersion, q.Get("v"))
	}

	c := Continuation{
		Device:    q.Get("device"),
		NodeID:    q.Get("id"),
		CtxHandle: q.Get("ctx"),
		AISession: q.Get("ai"),
		Ring:      q.Get("ring") == "true",
		Ringback:  q.Get("ringback") == "true",
		Digit:     q.Get("digits"),
	}

	if raw := q.Get("log"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return Continuation{}, fmt.Errorf("parse campaign log id: %w", err)
		}
		c.CampaignLogID = id
	}
	return c, nil
}

// ReplyURL — относительный URL продолжения: оператор резолвит его
// против адреса текущего вебхука.
func (c Continuation) ReplyURL() string {
	return "/call-flow/reply?" + c.Query().Encode()
}

// GatherURL — относительный URL сбора цифр. Линия идёт в path,
// остальной токен в query.
func (c Continuation) GatherURL() string {
	q := c.Query()
	q.Del("device")
	return "/call-flow/gather/" + url.PathEscape(c.Device) + "?" + q.Encode()
}

// EntryURL — относительный URL входа в граф: первый callback
// исходящего звонка кампании.
func (c Continuation) EntryURL() string {
	q := c.Query()
	q.Del("device")
	return "/call-flow/" + url.PathEscape(c.Device) + "?" + q.Encode()
}
