package mq

import (
	"errors"
	"fmt"
	"net/url"
)

// Ошибки брокерного слоя.
var (
	// ErrConnection — транспорт недоступен или соединение закрыто.
	ErrConnection = errors.New("broker connection failed")

	// ErrNotConnected — каналы ещё не открыты (идёт переподключение).
	ErrNotConnected = errors.New("channel not initialized")

	// ErrClosed — соединение закрыто через Close и больше не переподключается.
	ErrClosed = errors.New("connection closed")

	// ErrDecode — тело сообщения не является корректным конвертом.
	ErrDecode = errors.New("malformed message envelope")

	// ErrPublish — брокер не принял публикацию.
	ErrPublish = errors.New("publish failed")

	// ErrAcknowledge — брокер не принял ack/nack.
	ErrAcknowledge = errors.New("acknowledge failed")

	// ErrQueueRequired — не указана очередь для публикации.
	ErrQueueRequired = errors.New("target queue is required")

	// ErrNoDeadLetter — DLQ не настроена.
	ErrNoDeadLetter = errors.New("dead-letter queue is not configured")
)

// ConnectionError — ошибка установки соединения с брокером.
type ConnectionError struct {
	URL string // адрес брокера (пароль скрыт)
	Err error  // причина
}

// Error реализует интерфейс error.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connect to %s: %v", e.URL, e.Err)
}

// Unwrap позволяет errors.Is(err, ErrConnection) и доступ к причине.
func (e *ConnectionError) Unwrap() []error {
	return []error{ErrConnection, e.Err}
}

func newConnectionError(rawURL string, err error) *ConnectionError {
	return &ConnectionError{URL: redactURL(rawURL), Err: err}
}

// DecodeError — ошибка разбора конкретной доставки.
type DecodeError struct {
	Queue       string
	DeliveryTag uint64
	Err         error
}

// Error реализует интерфейс error.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode delivery %d from %s: %v", e.DeliveryTag, e.Queue, e.Err)
}

// Unwrap позволяет errors.Is(err, ErrDecode).
func (e *DecodeError) Unwrap() []error {
	return []error{ErrDecode, e.Err}
}

// PublishError — ошибка публикации в очередь.
type PublishError struct {
	Queue     string
	MessageID string
	Err       error
}

// Error реализует интерфейс error.
func (e *PublishError) Error() string {
	return fmt.Sprintf("publish %s to %s: %v", e.MessageID, e.Queue, e.Err)
}

// Unwrap позволяет errors.Is(err, ErrPublish).
func (e *PublishError) Unwrap() []error {
	return []error{ErrPublish, e.Err}
}

// redactURL скрывает пароль в amqp URL для логов и ошибок.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
