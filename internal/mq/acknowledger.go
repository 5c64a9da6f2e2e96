package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Acknowledger переводит неподтверждённое сообщение в одно из
// финальных состояний: подтверждено, возвращено в очередь или
// отправлено в DLQ.
//
// Методы не возвращают ошибок: false означает, что сообщение
// осталось в PendingTable, и вызывающий может продолжить обработку
// остальных сообщений батча.
type Acknowledger struct {
	publisher *Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// NewAcknowledger создаёт Acknowledger. Publisher нужен для DLQ.
func NewAcknowledger(publisher *Publisher, logger *slog.Logger) *Acknowledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Acknowledger{
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// HasDeadLetter возвращает true, если reject без requeue пишет копию в DLQ.
func (a *Acknowledger) HasDeadLetter() bool {
	return a.publisher.conn.Config().DeadLetterQueue != ""
}

// Ack подтверждает обработку сообщения.
//
// Неизвестный ID — false с предупреждением (повторный ack безопасен).
func (a *Acknowledger) Ack(ctx context.Context, table *PendingTable, id string) bool {
	pending, ok := table.Get(id)
	if !ok {
		a.logger.Warn("message not found for ack", "message_id", id)
		return false
	}

	if err := pending.Delivery.Ack(false); err != nil {
		a.logger.Error("failed to ack message",
			"message_id", id,
			"queue", pending.SourceQueue,
			"error", fmt.Errorf("%w: %w", ErrAcknowledge, err),
		)
		return false
	}

	table.Remove(id)
	telemetry.MessagesAcked.WithLabelValues(pending.SourceQueue).Inc()

	return true
}

// Reject отклоняет сообщение.
//
// requeue=false и настроена DLQ: в DLQ публикуется конверт
// с _meta.rejectedAt и _meta.originalQueue, затем доставка
// подтверждается (ack), чтобы DLX исходной очереди не положил
// в DLQ вторую, сырую копию. В DLQ попадает ровно один конверт.
// requeue=false без DLQ: nack без requeue, брокер удаляет сообщение.
// requeue=true: nack с requeue, копия в DLQ не создаётся.
// Любая ошибка — false, сообщение остаётся неподтверждённым.
func (a *Acknowledger) Reject(ctx context.Context, table *PendingTable, id string, requeue bool) bool {
	pending, ok := table.Get(id)
	if !ok {
		a.logger.Warn("message not found for reject", "message_id", id)
		return false
	}

	deadLettered := false
	if !requeue && a.HasDeadLetter() {
		env := domain.NewDeadLetterEnvelope(decodeForDeadLetter(pending), pending.SourceQueue, a.now())

		if err := a.publisher.PublishDeadLetter(ctx, env); err != nil {
			a.logger.Error("failed to publish message to dead-letter queue",
				"message_id", id,
				"queue", pending.SourceQueue,
				"error", err,
			)
			return false
		}
		deadLettered = true
	}

	var settleErr error
	if deadLettered {
		settleErr = pending.Delivery.Ack(false)
	} else {
		settleErr = pending.Delivery.Nack(false, requeue)
	}
	if err := settleErr; err != nil {
		a.logger.Error("failed to settle rejected message",
			"message_id", id,
			"queue", pending.SourceQueue,
			"requeue", requeue,
			"error", fmt.Errorf("%w: %w", ErrAcknowledge, err),
		)
		return false
	}

	table.Remove(id)
	telemetry.MessagesRejected.WithLabelValues(pending.SourceQueue, strconv.FormatBool(requeue)).Inc()

	a.logger.Info("message rejected",
		"message_id", id,
		"queue", pending.SourceQueue,
		"requeue", requeue,
		"dead_lettered", deadLettered,
	)

	return true
}

// decodeForDeadLetter восстанавливает исходное сообщение из тела доставки.
func decodeForDeadLetter(p PendingDelivery) domain.Message {
	var msg domain.Message
	if err := json.Unmarshal(p.Delivery.Body, &msg); err != nil {
		return domain.Message{ID: p.MessageID, Content: string(p.Delivery.Body)}
	}
	if msg.ID == "" {
		msg.ID = p.MessageID
	}
	return msg
}
