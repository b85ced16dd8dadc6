package domain

import "time"

// Device — линия оператора связи, привязанная к аккаунту.
//
// Хранит учётные данные линии и ссылки на графы обзвона:
// inbound для входящих вебхуков, outbound для кампаний.
type Device struct {
	// ID — идентификатор линии (попадает в URL вебхука).
	ID string `json:"id"`

	// AccountID — владелец линии.
	AccountID string `json:"account_id"`

	// SID, Token — учётные данные у оператора.
	SID   string `json:"sid"`
	Token string `json:"token"`

	// Number — номер линии в произвольной записи; нормализуется при наборе.
	Number string `json:"number"`

	// InboundFlowID — граф входящих звонков. Пусто — IVR выключен.
	InboundFlowID string `json:"inbound_flow_id,omitempty"`

	// OutboundFlowID — граф исходящих кампаний. Пусто — кампании не набираются.
	OutboundFlowID string `json:"outbound_flow_id,omitempty"`

	// CreatedAt — время регистрации линии.
	CreatedAt time.Time `json:"created_at"`
}

// FlowFor возвращает flow id для звонка: outbound для кампании,
// иначе inbound.
func (d *Device) FlowFor(outgoing bool) string {
	if outgoing {
		return d.OutboundFlowID
	}
	return d.InboundFlowID
}
