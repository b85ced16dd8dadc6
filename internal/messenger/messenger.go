package messenger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/Vocata/internal/carrier"
	"github.com/shaiso/Vocata/internal/domain"
	"github.com/shaiso/Vocata/internal/mq"
	"github.com/shaiso/Vocata/internal/repo"
)

// DeviceStore — доступ к линиям, нужный отправщику.
type DeviceStore interface {
	GetByID(ctx context.Context, id string) (*domain.Device, error)
}

// Messenger доставляет задания sms.send через линию аккаунта.
//
// Отправка best-effort: неизвестная линия — терминальная ошибка
// (nack без requeue, сообщение уедет в DLQ), сбой оператора
// ретраится требуемым образом на стороне очереди.
type Messenger struct {
	devices DeviceStore
	sender  carrier.Dialer
	logger  *slog.Logger
}

// Config — конфигурация Messenger.
type Config struct {
	Devices DeviceStore
	Sender  carrier.Dialer
	Logger  *slog.Logger
}

// New создаёт новый Messenger.
func New(cfg Config) *Messenger {
	return &Messenger{
		devices: cfg.Devices,
		sender:  cfg.Sender,
		logger:  cfg.Logger,
	}
}

// HandleSend — mq.Handler для очереди sms.send.
func (m *Messenger) HandleSend(ctx context.Context, delivery *mq.Delivery) error {
	payload, err := mq.ParsePayload[mq.SMSSendPayload](&delivery.Message)
	if err != nil {
		return fmt.Errorf("parse sms payload: %w", err)
	}

	device, err := m.devices.GetByID(ctx, payload.DeviceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// линию удалили после постановки задания
			m.logger.Warn("sms device gone, dropping",
				"device", payload.DeviceID,
				"to", payload.To,
			)
			return nil
		}
		return fmt.Errorf("load device %q: %w", payload.DeviceID, err)
	}

	sid, err := m.sender.SendSMS(ctx, device, payload.To, payload.Body)
	if err != nil {
		return fmt.Errorf("send sms to %s: %w", payload.To, err)
	}

	m.logger.Info("sms delivered",
		"device", device.ID,
		"to", payload.To,
		"message_sid", sid,
	)
	return nil
}
