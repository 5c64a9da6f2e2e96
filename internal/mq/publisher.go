package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Publisher публикует сообщения напрямую в очереди (default exchange).
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанную очередь через publish-канал.
// Очередь обязательна: пустое имя — ErrQueueRequired.
func (p *Publisher) Publish(ctx context.Context, queue string, msg domain.Message) error {
	if queue == "" {
		return ErrQueueRequired
	}

	ch, err := p.conn.publishChannel()
	if err != nil {
		return &PublishError{Queue: queue, MessageID: msg.ID, Err: err}
	}

	if err := p.send(ctx, ch, queue, msg.ID, msg); err != nil {
		return err
	}

	telemetry.MessagesPublished.WithLabelValues(queue).Inc()
	return nil
}

// PublishDeadLetter публикует конверт отклонённого сообщения в DLQ
// через dead-letter канал.
func (p *Publisher) PublishDeadLetter(ctx context.Context, env domain.DeadLetterEnvelope) error {
	queue := p.conn.Config().DeadLetterQueue
	if queue == "" {
		return ErrNoDeadLetter
	}

	ch, err := p.conn.deadLetterChannel()
	if err != nil {
		return &PublishError{Queue: queue, MessageID: env.ID, Err: err}
	}
	if ch == nil {
		return ErrNoDeadLetter
	}

	if err := p.send(ctx, ch, queue, env.ID, env); err != nil {
		return err
	}

	telemetry.DeadLetters.WithLabelValues(env.Meta.OriginalQueue).Inc()
	return nil
}

// send сериализует payload и публикует persistent-сообщение.
func (p *Publisher) send(ctx context.Context, ch Channel, queue, messageID string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return &PublishError{Queue: queue, MessageID: messageID, Err: fmt.Errorf("marshal message: %w", err)}
	}

	err = ch.PublishWithContext(
		ctx,
		"",    // default exchange
		queue, // routing key = имя очереди
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
			MessageId:    messageID,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return &PublishError{Queue: queue, MessageID: messageID, Err: err}
	}

	p.logger.Debug("published message",
		"queue", queue,
		"message_id", messageID,
	)

	return nil
}
