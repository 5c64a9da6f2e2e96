package scheduler

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"
	"time"
)

func TestRunContinuousBatch_MovesInSubBatches(t *testing.T) {
	f := newFixture(t, func(c *Config) {
		c.LoopBatchSize = 50
		c.SubBatchSize = 20
	})

	ids := make([]string, 45)
	for i := range ids {
		ids[i] = fmt.Sprintf("m%02d", i)
	}
	f.queues.push(publishQueue, ids...)

	result, err := f.sched.RunContinuousBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Retrieved != 45 || result.Succeeded != 45 || result.Failed != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if f.queues.depth(publishQueue) != 0 {
		t.Errorf("publish depth = %d, want 0", f.queues.depth(publishQueue))
	}

	moved := f.queues.publishedTo(consumeQueue)
	got := make([]string, len(moved))
	for i, m := range moved {
		got[i] = m.ID
	}
	slices.Sort(got)
	if !slices.Equal(got, ids) {
		t.Errorf("moved ids mismatch: %v", got)
	}
	if f.queues.inflightCount() != 0 {
		t.Error("all messages should be acknowledged")
	}
}

func TestRunContinuousBatch_PublishFailureRequeues(t *testing.T) {
	f := newFixture(t, nil)
	f.queues.publishFail["bad"] = errors.New("channel closed")
	f.queues.push(publishQueue, "ok", "bad")

	result, err := f.sched.RunContinuousBatch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Succeeded != 1 || result.Failed != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if f.queues.depth(publishQueue) != 1 {
		t.Error("failed message should be requeued to the publish queue")
	}
	if len(f.queues.deadLettered()) != 0 {
		t.Error("continuous transfer must not dead-letter")
	}

	rejections := f.audit.snapshot()
	if len(rejections) != 1 || !rejections[0].Requeued || rejections[0].Job != JobContinuous {
		t.Errorf("unexpected audit: %+v", rejections)
	}
}

func TestContinuousLoop_DrainsAndStops(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.LoopBatchSize = 3 })
	f.queues.push(publishQueue, "a", "b", "c", "d", "e", "f", "g")

	if err := f.sched.StartContinuous(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.sched.StartContinuous(context.Background()); !errors.Is(err, ErrLoopRunning) {
		t.Errorf("second start error = %v, want ErrLoopRunning", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(f.queues.publishedTo(consumeQueue)) == 7 })

	f.sched.StopContinuous()

	// После остановки новые сообщения не забираются
	f.queues.push(publishQueue, "late")
	time.Sleep(50 * time.Millisecond)
	if f.queues.depth(publishQueue) != 1 {
		t.Error("stopped loop must not retrieve")
	}

	// Цикл можно запустить снова
	if err := f.sched.StartContinuous(context.Background()); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitFor(t, time.Second, func() bool { return f.queues.depth(publishQueue) == 0 })
}

func TestContinuousLoop_SurvivesErrorsAndPanics(t *testing.T) {
	f := newFixture(t, nil)
	f.queues.retrieveErr = errors.New("channel not initialized")
	f.queues.retrieveFails = 2
	f.queues.retrievePanic = true
	f.queues.push(publishQueue, "a")

	if err := f.sched.StartContinuous(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	waitFor(t, 2*time.Second, func() bool { return len(f.queues.publishedTo(consumeQueue)) == 1 })
}

func TestContinuousLoop_StopsOnContextCancel(t *testing.T) {
	f := newFixture(t, func(c *Config) { c.IdleDelay = time.Hour })

	ctx, cancel := context.WithCancel(context.Background())
	if err := f.sched.StartContinuous(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Ждём, пока цикл уйдёт в паузу на пустой очереди
	waitFor(t, time.Second, func() bool {
		f.queues.mu.Lock()
		defer f.queues.mu.Unlock()
		return f.queues.retrieveCalls > 0
	})
	cancel()

	done := make(chan struct{})
	go func() {
		f.sched.StopContinuous()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on cancellation during idle delay")
	}
}
