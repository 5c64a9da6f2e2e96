package main

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/scheduler"
)

// emptyQueues — очереди, в которых никогда нет сообщений.
type emptyQueues struct {
	retrieves atomic.Int64
}

func (q *emptyQueues) Retrieve(_ context.Context, queue string, _ int) (*mq.Batch, error) {
	q.retrieves.Add(1)
	return &mq.Batch{Queue: queue, Pending: mq.NewPendingTable()}, nil
}

func (q *emptyQueues) Publish(context.Context, string, domain.Message) error { return nil }

func (q *emptyQueues) Ack(context.Context, *mq.PendingTable, string) bool { return false }

func (q *emptyQueues) Reject(context.Context, *mq.PendingTable, string, bool) bool { return false }

func (q *emptyQueues) HasDeadLetter() bool { return false }

func TestAppClose_StopsScheduler(t *testing.T) {
	queues := &emptyQueues{}
	s, err := scheduler.New(scheduler.Config{
		Retriever:    queues,
		Publisher:    queues,
		Acknowledger: queues,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		ConsumeQueue: "input_queue",
		PublishQueue: "output_queue",
		IdleDelay:    5 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}

	if err := s.StartContinuous(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	deadline := time.Now().Add(time.Second)
	for queues.retrieves.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	a := &app{scheduler: s}
	if err := a.close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// После close цикл больше не забирает сообщения
	before := queues.retrieves.Load()
	time.Sleep(50 * time.Millisecond)
	if after := queues.retrieves.Load(); after != before {
		t.Errorf("loop still running after close: %d → %d retrieves", before, after)
	}

	// serve останавливает планировщик до close: повторная остановка безопасна
	if err := a.close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

func TestAppClose_WithoutDependencies(t *testing.T) {
	if err := (&app{}).close(); err != nil {
		t.Errorf("close: %v", err)
	}
}
