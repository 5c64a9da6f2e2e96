package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"time"

	"github.com/google/uuid"
)

// Message — сообщение, которое Relay переносит между очередями и индексирует.
//
// Идентичность определяется только ID: два сообщения с одинаковым ID
// считаются одним и тем же сообщением, даже если content отличается.
//
// Message — значение. Relay никогда не меняет его на месте:
// MarkProcessed возвращает новую копию.
type Message struct {
	// ID — идентификатор сообщения (от клиента или сгенерированный).
	ID string `json:"id"`

	// Content — произвольный JSON payload.
	Content any `json:"content"`

	// Timestamp — время создания (unix ms).
	Timestamp int64 `json:"timestamp"`

	// UpdateTimestamp — время последнего изменения (unix ms).
	UpdateTimestamp int64 `json:"updateTimestamp"`

	// Processed — отметка, что сообщение прошло индексацию.
	Processed bool `json:"processed,omitempty"`

	// ProcessedAt — время индексации (unix ms).
	ProcessedAt int64 `json:"processedAt,omitempty"`

	// Extra — top-level поля продюсера, которых нет в схеме.
	// Сохраняются как есть и пишутся обратно при публикации.
	Extra map[string]json.RawMessage `json:"-"`
}

// messageFields — поля Message без собственных методов (де)сериализации.
type messageFields Message

// knownFields — ключи, которые Message разбирает сам.
var knownFields = map[string]bool{
	"id":              true,
	"content":         true,
	"timestamp":       true,
	"updateTimestamp": true,
	"processed":       true,
	"processedAt":     true,
}

// UnmarshalJSON разбирает сообщение без потерь: числа в content
// остаются json.Number, неизвестные поля попадают в Extra.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var fields messageFields
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	fields.Content = nil
	fields.Extra = nil

	if c, ok := raw["content"]; ok {
		dec := json.NewDecoder(bytes.NewReader(c))
		dec.UseNumber()
		if err := dec.Decode(&fields.Content); err != nil {
			return fmt.Errorf("decode content: %w", err)
		}
	}

	for key, value := range raw {
		if knownFields[key] {
			continue
		}
		if fields.Extra == nil {
			fields.Extra = make(map[string]json.RawMessage)
		}
		fields.Extra[key] = value
	}

	*m = Message(fields)
	return nil
}

// MarshalJSON пишет поля схемы и Extra на одном уровне.
// Поля схемы имеют приоритет над одноимёнными ключами Extra.
func (m Message) MarshalJSON() ([]byte, error) {
	return mergeObject(messageFields(m), m.Extra)
}

// mergeObject сериализует v и дописывает в объект ключи extra,
// которых в нём ещё нет.
func mergeObject(v any, extra map[string]json.RawMessage) ([]byte, error) {
	base, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	if len(extra) == 0 {
		return base, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(base, &obj); err != nil {
		return nil, err
	}
	for key, value := range extra {
		if _, exists := obj[key]; !exists {
			obj[key] = value
		}
	}
	return json.Marshal(obj)
}

// NewMessage создаёт сообщение для входящего payload.
// Если id пустой, генерируется UUID.
func NewMessage(id string, content any, now time.Time) Message {
	if id == "" {
		id = uuid.New().String()
	}

	ts := now.UnixMilli()
	return Message{
		ID:              id,
		Content:         content,
		Timestamp:       ts,
		UpdateTimestamp: ts,
	}
}

// SameAs сравнивает сообщения по идентичности (ID), а не по содержимому.
func (m Message) SameAs(other Message) bool {
	return m.ID == other.ID
}

// MarkProcessed возвращает копию сообщения с отметкой об обработке.
func (m Message) MarkProcessed(now time.Time) Message {
	processed := m
	processed.Extra = maps.Clone(m.Extra)
	processed.Processed = true
	processed.ProcessedAt = now.UnixMilli()
	return processed
}

// DeadLetterMeta — служебная информация об отклонении сообщения.
type DeadLetterMeta struct {
	// RejectedAt — время отклонения в формате RFC 3339 (ISO 8601).
	RejectedAt string `json:"rejectedAt"`

	// OriginalQueue — очередь, из которой сообщение было получено.
	OriginalQueue string `json:"originalQueue"`
}

// DeadLetterEnvelope — копия отклонённого сообщения для dead-letter очереди.
//
// Поля исходного сообщения сериализуются на верхнем уровне,
// рядом с ними добавляется _meta. Relay только пишет такие конверты,
// обратно они не читаются.
type DeadLetterEnvelope struct {
	Message
	Meta DeadLetterMeta `json:"_meta"`
}

// MarshalJSON добавляет _meta к полям исходного сообщения.
func (e DeadLetterEnvelope) MarshalJSON() ([]byte, error) {
	meta, err := json.Marshal(e.Meta)
	if err != nil {
		return nil, err
	}

	extra := maps.Clone(e.Extra)
	if extra == nil {
		extra = make(map[string]json.RawMessage, 1)
	}
	extra["_meta"] = meta

	return mergeObject(messageFields(e.Message), extra)
}

// NewDeadLetterEnvelope оборачивает сообщение для отправки в DLQ.
func NewDeadLetterEnvelope(msg Message, originalQueue string, rejectedAt time.Time) DeadLetterEnvelope {
	return DeadLetterEnvelope{
		Message: msg,
		Meta: DeadLetterMeta{
			RejectedAt:    rejectedAt.UTC().Format(time.RFC3339Nano),
			OriginalQueue: originalQueue,
		},
	}
}
