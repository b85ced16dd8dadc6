package domain

import (
	"time"

	"github.com/google/uuid"
)

// CampaignStatus — статус исходящей кампании.
//
// Жизненный цикл:
//
//	INITIATED → COMPLETED
//
// Переход выполняет только планировщик обзвона (или явный stop).
type CampaignStatus string

const (
	// CampaignInitiated — кампания запущена, есть необработанные цели.
	CampaignInitiated CampaignStatus = "INITIATED"

	// CampaignCompleted — все цели обработаны либо кампания остановлена.
	CampaignCompleted CampaignStatus = "COMPLETED"
)

// Campaign — исходящий broadcast: список номеров, прогоняемых
// через outbound-граф устройства строго по одному.
type Campaign struct {
	// ID — уникальный идентификатор кампании.
	ID uuid.UUID `json:"id"`

	// AccountID — владелец кампании.
	AccountID string `json:"account_id"`

	// DeviceID — линия, с которой набираются звонки.
	DeviceID string `json:"device_id"`

	// Name — человекочитаемое имя кампании.
	Name string `json:"name"`

	// WindowExpr — опциональное cron-выражение (5 полей) окна обзвона:
	// звонки инициируются только в минуты, попадающие в расписание.
	// Пустая строка — без ограничений.
	WindowExpr string `json:"window_expr,omitempty"`

	// Status — текущий статус.
	Status CampaignStatus `json:"status"`

	// CreatedAt — время запуска кампании.
	CreatedAt time.Time `json:"created_at"`
}

// LogStatus — статус одной цели кампании.
//
// Жизненный цикл:
//
//	INITIATED → CALLING → STARTED → COMPLETED
//	                              ↘ DISCONNECTED
//	                              ↘ <произвольная строка ошибки>
//
// Терминальным считается любой статус вне трёх активных.
type LogStatus string

const (
	// LogInitiated — цель в очереди, ещё не выбрана для набора.
	LogInitiated LogStatus = "INITIATED"

	// LogCalling — цель выбрана, набор произойдёт на ближайшем тике.
	LogCalling LogStatus = "CALLING"

	// LogStarted — звонок инициирован у оператора связи.
	LogStarted LogStatus = "STARTED"

	// LogCompleted — звонок дошёл до HANGUP.
	LogCompleted LogStatus = "COMPLETED"

	// LogDisconnected — звонок принудительно закрыт watchdog'ом.
	LogDisconnected LogStatus = "DISCONNECTED"
)

// Active возвращает true для нетерминальных статусов.
func (s LogStatus) Active() bool {
	switch s {
	case LogInitiated, LogCalling, LogStarted:
		return true
	default:
		return false
	}
}

// Terminal возвращает true, если запись закрыта
// (включая произвольные строки ошибок).
func (s LogStatus) Terminal() bool {
	return !s.Active()
}

// CampaignLog — запись одной цели кампании: номер, статус звонка
// и переменные, инжектируемые в контекст flow.
type CampaignLog struct {
	// ID — уникальный идентификатор записи.
	ID uuid.UUID `json:"id"`

	// CampaignID — ссылка на кампанию.
	CampaignID uuid.UUID `json:"campaign_id"`

	// CallTo — номер цели.
	CallTo string `json:"call_to"`

	// Variables — переменные цели (из phonebook), попадают в контекст
	// placeholder-резолвера с префиксом.
	Variables map[string]any `json:"variables,omitempty"`

	// Status — состояние звонка цели.
	Status LogStatus `json:"status"`

	// CallSID — идентификатор звонка у оператора (после набора).
	CallSID string `json:"call_sid,omitempty"`

	// StartedAt — момент перехода в STARTED. Персистентен, чтобы
	// watchdog зависших звонков переживал рестарт процесса.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CreatedAt — время создания записи.
	CreatedAt time.Time `json:"created_at"`
}

// StuckFor возвращает, как долго запись находится в STARTED.
// Ноль, если запись не в STARTED.
func (l *CampaignLog) StuckFor(now time.Time) time.Duration {
	if l.Status != LogStarted || l.StartedAt == nil {
		return 0
	}
	return now.Sub(*l.StartedAt)
}

// FlowResponse — durable запись узла CAPTURE: собранные в звонке данные.
type FlowResponse struct {
	ID         int64     `json:"id"`
	AccountID  string    `json:"account_id"`
	Text       string    `json:"text"`
	Caller     string    `json:"caller"`
	Called     string    `json:"called"`
	Digit      string    `json:"digit"`
	CampaignID string    `json:"campaign_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
