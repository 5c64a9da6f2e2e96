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

// Batch — сообщения, полученные одним вызовом Retrieve.
//
// Pending содержит доставки, ожидающие ack/reject. Все сообщения
// батча должны быть разрешены до следующего вызова Retrieve.
type Batch struct {
	// Queue — очередь, из которой получены сообщения.
	Queue string

	// Messages — сообщения в порядке получения.
	Messages []domain.Message

	// Pending — неподтверждённые доставки этого батча.
	Pending *PendingTable
}

// Len возвращает количество сообщений в батче.
func (b *Batch) Len() int {
	return len(b.Messages)
}

// IsEmpty возвращает true, если очередь была пуста.
func (b *Batch) IsEmpty() bool {
	return len(b.Messages) == 0
}

// Retriever получает сообщения из очереди пачками через basic.get,
// без постоянной подписки.
type Retriever struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewRetriever создаёт Retriever.
func NewRetriever(conn *Connection, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Retrieve забирает до maxCount сообщений из очереди.
//
// Останавливается раньше, если очередь пуста. Если доставку
// не удалось разобрать, она отклоняется без requeue (брокер
// отправит её в DLX), цикл прерывается и возвращается уже
// собранная часть батча. Повтор ID внутри батча: более поздняя
// доставка в батч не попадает и возвращается в очередь (requeue)
// после того, как батч собран. До этого она остаётся
// неподтверждённой, поэтому брокер не выдаёт её повторно.
//
// Ошибка возвращается, только если не получено ни одного сообщения.
func (r *Retriever) Retrieve(ctx context.Context, queue string, maxCount int) (*Batch, error) {
	if queue == "" {
		return nil, ErrQueueRequired
	}
	logger := telemetry.WithQueue(r.logger, queue)

	ch, err := r.conn.consumeChannel()
	if err != nil {
		return nil, err
	}

	batch := &Batch{
		Queue:    queue,
		Messages: make([]domain.Message, 0, max(maxCount, 0)),
		Pending:  NewPendingTable(),
	}

	var duplicates []amqp.Delivery
	defer func() {
		for _, d := range duplicates {
			if nackErr := d.Nack(false, true); nackErr != nil {
				logger.Warn("failed to requeue duplicate message", "delivery_tag", d.DeliveryTag, "error", nackErr)
			}
		}
	}()

	for i := 0; batch.Len() < maxCount; i++ {
		if ctx.Err() != nil {
			break
		}

		delivery, ok, err := ch.Get(queue, false)
		if err != nil {
			if batch.IsEmpty() {
				return nil, fmt.Errorf("get from %s: %w", queue, err)
			}
			logger.Error("failed to get message, returning partial batch",
				"retrieved", batch.Len(),
				"error", err,
			)
			break
		}

		if !ok {
			logger.Debug("queue exhausted", "retrieved", batch.Len())
			break
		}

		msg, err := r.decode(queue, delivery, i)
		if err != nil {
			telemetry.DecodeFailures.WithLabelValues(queue).Inc()
			logger.Error("failed to decode message, aborting batch",
				"delivery_tag", delivery.DeliveryTag,
				"error", err,
				"body", string(delivery.Body),
			)
			// Некорректное сообщение — отправляем в DLX брокера
			if nackErr := delivery.Nack(false, false); nackErr != nil {
				logger.Warn("failed to nack malformed message", "error", nackErr)
			}
			break
		}

		registered := batch.Pending.Register(PendingDelivery{
			MessageID:   msg.ID,
			Delivery:    delivery,
			SourceQueue: queue,
		})
		if !registered {
			logger.Warn("duplicate message id in batch, requeueing after batch",
				"message_id", msg.ID,
			)
			duplicates = append(duplicates, delivery)
			continue
		}

		batch.Messages = append(batch.Messages, msg)
	}

	if !batch.IsEmpty() {
		telemetry.MessagesRetrieved.WithLabelValues(queue).Add(float64(batch.Len()))
		logger.Debug("retrieved batch", "count", batch.Len(), "max", maxCount)
	}

	return batch, nil
}

// decode разбирает конверт и назначает ID, если его нет.
func (r *Retriever) decode(queue string, d amqp.Delivery, index int) (domain.Message, error) {
	var msg domain.Message
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		return domain.Message{}, &DecodeError{Queue: queue, DeliveryTag: d.DeliveryTag, Err: err}
	}

	now := r.now()

	if msg.ID == "" {
		msg.ID = SyntheticID(now, index)
	}
	if msg.UpdateTimestamp == 0 {
		msg.UpdateTimestamp = now.UnixMilli()
	}

	return msg, nil
}

// SyntheticID строит ID для сообщения без id: msg-<unix ms>-<index>.
func SyntheticID(now time.Time, index int) string {
	return fmt.Sprintf("msg-%d-%d", now.UnixMilli(), index)
}
