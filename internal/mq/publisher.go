package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/etlflows/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeRunRequested MessageType = "run.requested"
	MessageTypeRunCompleted MessageType = "run.completed"
	MessageTypeNotification MessageType = "notification"
)

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

// NewMessage создаёт сообщение с новым ID.
func NewMessage(msgType MessageType, payload any) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// RunRequestedPayload — запрос на выполнение run пулом воркеров.
type RunRequestedPayload struct {
	RunID      uuid.UUID      `json:"run_id"`
	Deployment string         `json:"deployment"`
	Flow       string         `json:"flow"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Attempt    int            `json:"attempt"`
}

// RunCompletedPayload — финальный статус run.
type RunCompletedPayload struct {
	RunID      uuid.UUID        `json:"run_id"`
	Deployment string           `json:"deployment,omitempty"`
	Status     domain.RunStatus `json:"status"`
	Reason     string           `json:"reason,omitempty"`
	Error      string           `json:"error,omitempty"`
	Attempt    int              `json:"attempt"`
}

// NotificationPayload — событие для etl-notifier.
type NotificationPayload struct {
	Event domain.Event `json:"event"`
}

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

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	return p.publish(ctx, exchange, routingKey, msg, 0)
}

// publish отправляет persistent сообщение. ttl > 0 задаёт expiration.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, ttl time.Duration) error {
	publishing, err := encodeMessage(msg, ttl)
	if err != nil {
		return err
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			publishing,
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

// encodeMessage сериализует сообщение в amqp.Publishing.
func encodeMessage(msg *Message, ttl time.Duration) (amqp.Publishing, error) {
	body, err := json.Marshal(msg)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("marshal message: %w", err)
	}

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
		MessageId:    msg.ID,
		Type:         string(msg.Type),
		Timestamp:    msg.Timestamp,
		Body:         body,
	}
	if ttl > 0 {
		// RabbitMQ принимает expiration строкой в миллисекундах.
		publishing.Expiration = strconv.FormatInt(ttl.Milliseconds(), 10)
	}
	return publishing, nil
}

// PublishRunRequested отправляет run в очередь пула.
// Потребитель: etl-worker этого пула.
func (p *Publisher) PublishRunRequested(ctx context.Context, pool string, payload RunRequestedPayload) error {
	if err := ValidatePoolName(pool); err != nil {
		return err
	}
	return p.Publish(ctx, ExchangeRuns, PoolRoutingKey(pool), NewMessage(MessageTypeRunRequested, payload))
}

// PublishRetry откладывает повтор run на delay.
// Сообщение вернётся в pool.{pool} после истечения TTL.
func (p *Publisher) PublishRetry(ctx context.Context, pool string, payload RunRequestedPayload, delay time.Duration) error {
	if err := ValidatePoolName(pool); err != nil {
		return err
	}
	if delay <= 0 {
		return p.PublishRunRequested(ctx, pool, payload)
	}
	return p.publish(ctx, ExchangeRetry, PoolRoutingKey(pool), NewMessage(MessageTypeRunRequested, payload), delay)
}

// PublishDeadLetter отправляет run, исчерпавший повторы, в dlq.runs.
func (p *Publisher) PublishDeadLetter(ctx context.Context, payload RunRequestedPayload) error {
	return p.Publish(ctx, ExchangeDLQ, RoutingKeyDLQRuns, NewMessage(MessageTypeRunRequested, payload))
}

// PublishRunCompleted публикует финальный статус run.
func (p *Publisher) PublishRunCompleted(ctx context.Context, payload RunCompletedPayload) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyCompleted, NewMessage(MessageTypeRunCompleted, payload))
}

// PublishNotification публикует событие pipeline для etl-notifier.
func (p *Publisher) PublishNotification(ctx context.Context, event domain.Event) error {
	return p.Publish(ctx, ExchangeEvents, RoutingKeyNotification, NewMessage(MessageTypeNotification, NotificationPayload{Event: event}))
}
