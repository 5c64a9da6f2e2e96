package scheduler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
)

const (
	consumeQueue = "input_queue"
	publishQueue = "output_queue"
)

// fakeQueues — брокер в памяти: реализует Retriever, Publisher и Acknowledger.
type fakeQueues struct {
	mu sync.Mutex

	queues      map[string][]domain.Message
	inflight    map[string]inflightMsg
	deadLetters []domain.Message
	published   map[string][]domain.Message

	deadLetter bool

	retrieveErr   error
	retrieveFails int // сколько ближайших Retrieve вернут retrieveErr
	retrievePanic bool
	publishFail   map[string]error // по ID сообщения
	ackFail       map[string]bool  // по ID сообщения
	retrieveCalls int
}

type inflightMsg struct {
	queue string
	msg   domain.Message
}

func newFakeQueues() *fakeQueues {
	return &fakeQueues{
		queues:      make(map[string][]domain.Message),
		inflight:    make(map[string]inflightMsg),
		published:   make(map[string][]domain.Message),
		deadLetter:  true,
		publishFail: make(map[string]error),
		ackFail:     make(map[string]bool),
	}
}

func (f *fakeQueues) push(queue string, ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		f.queues[queue] = append(f.queues[queue], domain.Message{
			ID:              id,
			Content:         map[string]any{"id": id},
			Timestamp:       1700000000000,
			UpdateTimestamp: 1700000000000,
		})
	}
}

func (f *fakeQueues) depth(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[queue])
}

func (f *fakeQueues) publishedTo(queue string) []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.published[queue]...)
}

func (f *fakeQueues) deadLettered() []domain.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.Message(nil), f.deadLetters...)
}

func (f *fakeQueues) inflightCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inflight)
}

func (f *fakeQueues) Retrieve(_ context.Context, queue string, maxCount int) (*mq.Batch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.retrieveCalls++
	if f.retrievePanic {
		f.retrievePanic = false
		panic("retriever exploded")
	}
	if f.retrieveFails > 0 {
		f.retrieveFails--
		return nil, f.retrieveErr
	}

	batch := &mq.Batch{Queue: queue, Pending: mq.NewPendingTable()}
	for len(batch.Messages) < maxCount && len(f.queues[queue]) > 0 {
		msg := f.queues[queue][0]
		f.queues[queue] = f.queues[queue][1:]

		batch.Pending.Register(mq.PendingDelivery{MessageID: msg.ID, SourceQueue: queue})
		batch.Messages = append(batch.Messages, msg)
		f.inflight[msg.ID] = inflightMsg{queue: queue, msg: msg}
	}
	return batch, nil
}

func (f *fakeQueues) Publish(_ context.Context, queue string, msg domain.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.publishFail[msg.ID]; err != nil {
		return err
	}
	f.published[queue] = append(f.published[queue], msg)
	f.queues[queue] = append(f.queues[queue], msg)
	return nil
}

func (f *fakeQueues) Ack(_ context.Context, table *mq.PendingTable, id string) bool {
	if _, ok := table.Get(id); !ok {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.ackFail[id] {
		return false
	}
	delete(f.inflight, id)
	table.Remove(id)
	return true
}

func (f *fakeQueues) Reject(_ context.Context, table *mq.PendingTable, id string, requeue bool) bool {
	if _, ok := table.Get(id); !ok {
		return false
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	in := f.inflight[id]
	if requeue {
		f.queues[in.queue] = append(f.queues[in.queue], in.msg)
	} else if f.deadLetter {
		f.deadLetters = append(f.deadLetters, in.msg)
	}
	delete(f.inflight, id)
	table.Remove(id)
	return true
}

func (f *fakeQueues) HasDeadLetter() bool {
	return f.deadLetter
}

type fakeIndexer struct {
	mu          sync.Mutex
	indexed     []domain.Message
	fail        map[string]bool
	healthy     bool
	initialized int
}

func newFakeIndexer() *fakeIndexer {
	return &fakeIndexer{fail: make(map[string]bool), healthy: true}
}

func (i *fakeIndexer) IndexMessage(_ context.Context, msg domain.Message) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.fail[msg.ID] {
		return errors.New("index rejected document")
	}
	i.indexed = append(i.indexed, msg)
	return nil
}

func (i *fakeIndexer) Health(context.Context) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.healthy
}

func (i *fakeIndexer) Initialize(context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.initialized++
	return nil
}

type fakeBroker struct {
	mu         sync.Mutex
	healthy    bool
	reconnects int
}

func (b *fakeBroker) CheckHealth(context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.healthy
}

func (b *fakeBroker) Reconnect() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.reconnects++
}

type fakeAudit struct {
	mu         sync.Mutex
	rejections []domain.Rejection
}

func (a *fakeAudit) Record(_ context.Context, r domain.Rejection) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rejections = append(a.rejections, r)
	return nil
}

func (a *fakeAudit) snapshot() []domain.Rejection {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]domain.Rejection(nil), a.rejections...)
}

type fixture struct {
	queues  *fakeQueues
	indexer *fakeIndexer
	broker  *fakeBroker
	audit   *fakeAudit
	sched   *Scheduler
}

func newFixture(t *testing.T, mutate func(*Config)) *fixture {
	t.Helper()

	f := &fixture{
		queues:  newFakeQueues(),
		indexer: newFakeIndexer(),
		broker:  &fakeBroker{healthy: true},
		audit:   &fakeAudit{},
	}

	cfg := Config{
		Retriever:    f.queues,
		Publisher:    f.queues,
		Acknowledger: f.queues,
		Broker:       f.broker,
		Indexer:      f.indexer,
		Audit:        f.audit,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ConsumeQueue: consumeQueue,
		PublishQueue: publishQueue,
		IdleDelay:    10 * time.Millisecond,
		ErrorDelay:   10 * time.Millisecond,
	}
	if mutate != nil {
		mutate(&cfg)
	}

	s, err := New(cfg)
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})

	f.sched = s
	return f
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
