package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeCallFinished MessageType = "call.finished"
	MessageTypeSMSSend      MessageType = "sms.send"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// CallFinishedPayload — payload события завершения звонка кампании.
// По нему обзвонщик закрывает цель и продвигает очередь, не дожидаясь тика.
type CallFinishedPayload struct {
	CampaignID    uuid.UUID `json:"campaign_id"`
	CampaignLogID uuid.UUID `json:"campaign_log_id"`
	Status        string    `json:"status"` // COMPLETED, DISCONNECTED или строка ошибки
}

// SMSSendPayload — payload задания на отправку SMS.
type SMSSendPayload struct {
	DeviceID string `json:"device_id"`
	To       string `json:"to"`
	Body     string `json:"body"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishCallFinished публикует событие завершения звонка кампании.
// Потребитель: Dialer.
func (p *Publisher) PublishCallFinished(ctx context.Context, payload CallFinishedPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeCallFinished,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeCalls, RoutingKeyFinished, msg)
}

// PublishSMS публикует задание на отправку SMS.
// Потребитель: Messenger.
func (p *Publisher) PublishSMS(ctx context.Context, payload SMSSendPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeSMSSend,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeSMS, RoutingKeySend, msg)
}
