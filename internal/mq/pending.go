package mq

import (
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// PendingDelivery — связь между ID сообщения и доставкой брокера.
type PendingDelivery struct {
	// MessageID — ID сообщения из конверта (или синтетический).
	MessageID string

	// Delivery — доставка AMQP; через неё выполняются ack/nack.
	Delivery amqp.Delivery

	// SourceQueue — очередь, из которой сообщение получено.
	SourceQueue string
}

// PendingTable — сообщения, полученные, но ещё не подтверждённые.
//
// Таблица принадлежит одному Batch: Retriever создаёт её,
// Acknowledger удаляет из неё записи. На каждый MessageID —
// не больше одной записи.
type PendingTable struct {
	mu      sync.Mutex
	entries map[string]PendingDelivery
}

// NewPendingTable создаёт пустую таблицу.
func NewPendingTable() *PendingTable {
	return &PendingTable{entries: make(map[string]PendingDelivery)}
}

// Register добавляет запись. Возвращает false, если ID уже занят
// (существующая запись не перезаписывается).
func (t *PendingTable) Register(p PendingDelivery) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.entries[p.MessageID]; exists {
		return false
	}
	t.entries[p.MessageID] = p
	return true
}

// Get возвращает запись по ID.
func (t *PendingTable) Get(id string) (PendingDelivery, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, ok := t.entries[id]
	return p, ok
}

// Remove удаляет запись.
func (t *PendingTable) Remove(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.entries, id)
}

// Len возвращает количество неподтверждённых сообщений.
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// IDs возвращает ID всех неподтверждённых сообщений.
func (t *PendingTable) IDs() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids := make([]string, 0, len(t.entries))
	for id := range t.entries {
		ids = append(ids, id)
	}
	return ids
}
