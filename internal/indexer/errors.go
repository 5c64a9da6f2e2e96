package indexer

import (
	"errors"
	"fmt"
)

// Ошибки индексатора.
var (
	// ErrIndex — Elasticsearch не принял документ.
	ErrIndex = errors.New("index failed")

	// ErrInitialize — не удалось создать индекс.
	ErrInitialize = errors.New("initialize index failed")
)

// IndexError — ошибка индексации конкретного сообщения.
type IndexError struct {
	MessageID  string // ID сообщения
	StatusCode int    // HTTP статус ответа (0 — транспортная ошибка)
	Err        error  // причина
}

// Error реализует интерфейс error.
func (e *IndexError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("index message %s: status %d: %v", e.MessageID, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("index message %s: %v", e.MessageID, e.Err)
}

// Unwrap позволяет errors.Is(err, ErrIndex).
func (e *IndexError) Unwrap() []error {
	return []error{ErrIndex, e.Err}
}
