package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
)

// StartContinuous запускает фоновый цикл publish → consume.
//
// Цикл работает до StopContinuous или отмены ctx. Отмена
// проверяется на границе итерации и во время пауз: начатые
// сетевые операции текущей итерации доводятся до конца.
func (s *Scheduler) StartContinuous(ctx context.Context) error {
	s.loopMu.Lock()
	defer s.loopMu.Unlock()

	if s.loopCancel != nil {
		return ErrLoopRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.loopCancel = cancel
	s.loopDone = done

	go func() {
		defer close(done)
		s.continuousLoop(loopCtx)
	}()

	s.logger.Info("continuous transfer started",
		"from", s.publishQueue,
		"to", s.consumeQueue,
		"batch_size", s.loopBatchSize,
		"sub_batch_size", s.subBatchSize,
	)

	return nil
}

// StopContinuous отменяет фоновый цикл и ждёт его завершения.
func (s *Scheduler) StopContinuous() {
	s.loopMu.Lock()
	cancel := s.loopCancel
	done := s.loopDone
	s.loopCancel = nil
	s.loopDone = nil
	s.loopMu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done

	s.logger.Info("continuous transfer stopped")
}

// continuousLoop — основной цикл. Никогда не завершается из-за ошибки.
func (s *Scheduler) continuousLoop(ctx context.Context) {
	// Операции итерации не прерываются отменой цикла
	opCtx := context.WithoutCancel(ctx)

	for {
		if ctx.Err() != nil {
			return
		}

		delay := s.loopIteration(opCtx)
		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// loopIteration выполняет одну итерацию и возвращает паузу перед следующей.
func (s *Scheduler) loopIteration(ctx context.Context) (delay time.Duration) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("panic in continuous transfer loop", "panic", r)
			delay = s.errorDelay
		}
	}()

	result, err := s.RunContinuousBatch(ctx)
	if err != nil {
		s.logger.Error("continuous transfer iteration failed", "error", err, "retry_in", s.errorDelay)
		return s.errorDelay
	}

	if result.Retrieved == 0 {
		return s.idleDelay
	}

	return 0
}

// RunContinuousBatch выполняет одну итерацию фонового цикла:
// батч из publish-очереди переносится в consume-очередь
// подбатчами по subBatchSize параллельных операций.
func (s *Scheduler) RunContinuousBatch(ctx context.Context) (JobResult, error) {
	start := time.Now()
	result := JobResult{Job: JobContinuous}

	batch, err := s.retriever.Retrieve(ctx, s.publishQueue, s.loopBatchSize)
	if err != nil {
		return result, fmt.Errorf("retrieve from %s: %w", s.publishQueue, err)
	}

	result.Retrieved = batch.Len()
	if batch.IsEmpty() {
		return result, nil
	}

	var succeeded, failed atomic.Int64

	for from := 0; from < batch.Len(); from += s.subBatchSize {
		to := min(from+s.subBatchSize, batch.Len())
		s.transferSubBatch(ctx, batch, batch.Messages[from:to], &succeeded, &failed)
	}

	s.settle(ctx, JobContinuous, batch)

	result.Succeeded = int(succeeded.Load())
	result.Failed = int(failed.Load())
	s.recordResult(result)
	telemetry.JobDuration.WithLabelValues(JobContinuous).Observe(time.Since(start).Seconds())

	s.logger.Info("continuous transfer batch completed",
		"retrieved", result.Retrieved,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return result, nil
}

// transferSubBatch запускает перенос всех сообщений подбатча
// одновременно и ждёт завершения каждого.
//
// Порядок между сообщениями не гарантирован; для одного сообщения
// ack/reject всегда идёт после его публикации.
func (s *Scheduler) transferSubBatch(ctx context.Context, batch *mq.Batch, msgs []domain.Message, succeeded, failed *atomic.Int64) {
	var wg sync.WaitGroup

	for _, msg := range msgs {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			if s.transferOne(ctx, batch, msg) {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
		}

		if err := s.pool.Submit(task); err != nil {
			// Пул закрыт (остановка) — выполняем на месте
			s.logger.Warn("worker pool unavailable, transferring inline", "error", err)
			task()
		}
	}

	wg.Wait()
}

// transferOne публикует сообщение в consume-очередь и подтверждает его.
// При ошибке публикации сообщение возвращается в publish-очередь.
func (s *Scheduler) transferOne(ctx context.Context, batch *mq.Batch, msg domain.Message) bool {
	if err := s.publisher.Publish(ctx, s.consumeQueue, msg); err != nil {
		s.logger.Error("failed to transfer message", "message_id", msg.ID, "error", err)
		s.reject(ctx, JobContinuous, batch, msg.ID, err, true)
		return false
	}

	return s.acknowledger.Ack(ctx, batch.Pending, msg.ID)
}
