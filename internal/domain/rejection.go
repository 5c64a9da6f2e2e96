package domain

import (
	"time"

	"github.com/google/uuid"
)

// Rejection — запись аудита об отклонённом сообщении.
//
// Создаётся планировщиком каждый раз, когда сообщение отклонено
// (reject), и сохраняется в Postgres, если аудит включён.
type Rejection struct {
	// ID — идентификатор записи.
	ID uuid.UUID `json:"id"`

	// MessageID — ID отклонённого сообщения.
	MessageID string `json:"message_id"`

	// Queue — очередь, из которой сообщение было получено.
	Queue string `json:"queue"`

	// Job — задача планировщика, которая отклонила сообщение.
	Job string `json:"job"`

	// Reason — текст ошибки, из-за которой сообщение отклонено.
	Reason string `json:"reason"`

	// Requeued — сообщение возвращено в исходную очередь.
	Requeued bool `json:"requeued"`

	// DeadLettered — копия сообщения отправлена в DLQ.
	DeadLettered bool `json:"dead_lettered"`

	// RejectedAt — время отклонения.
	RejectedAt time.Time `json:"rejected_at"`
}

// NewRejection создаёт запись аудита.
func NewRejection(messageID, queue, job string, reason error, requeued, deadLettered bool) Rejection {
	r := Rejection{
		ID:           uuid.New(),
		MessageID:    messageID,
		Queue:        queue,
		Job:          job,
		Requeued:     requeued,
		DeadLettered: deadLettered,
		RejectedAt:   time.Now().UTC(),
	}
	if reason != nil {
		r.Reason = reason.Error()
	}
	return r
}
