package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/robfig/cron/v3"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/telemetry"
)

// Имена задач планировщика.
const (
	JobTransfer   = "transfer"
	JobIndex      = "index"
	JobHeartbeat  = "heartbeat"
	JobContinuous = "continuous"
)

// Значения конфигурации по умолчанию.
const (
	defaultIndexBatchSize    = 10
	defaultTransferBatchSize = 20
	defaultLoopBatchSize     = 100
	defaultSubBatchSize      = 20
	defaultIdleDelay         = 5 * time.Second
	defaultErrorDelay        = 3 * time.Second
)

// Retriever получает батч сообщений из очереди.
type Retriever interface {
	Retrieve(ctx context.Context, queue string, maxCount int) (*mq.Batch, error)
}

// Publisher публикует сообщение в очередь.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg domain.Message) error
}

// Acknowledger разрешает неподтверждённые сообщения батча.
type Acknowledger interface {
	Ack(ctx context.Context, table *mq.PendingTable, id string) bool
	Reject(ctx context.Context, table *mq.PendingTable, id string, requeue bool) bool
	HasDeadLetter() bool
}

// Broker — проверка здоровья и переподключение брокера.
type Broker interface {
	CheckHealth(ctx context.Context) bool
	Reconnect()
}

// Indexer — поисковый индекс.
type Indexer interface {
	IndexMessage(ctx context.Context, msg domain.Message) error
	Health(ctx context.Context) bool
	Initialize(ctx context.Context) error
}

// RejectionRecorder сохраняет аудит отклонённых сообщений.
type RejectionRecorder interface {
	Record(ctx context.Context, r domain.Rejection) error
}

// JobResult — итог одного запуска задачи.
type JobResult struct {
	Job       string
	Retrieved int
	Succeeded int
	Failed    int
}

// HealthReport — итог heartbeat.
type HealthReport struct {
	Broker  bool
	Indexer bool
}

// Scheduler запускает обработку очередей по расписанию и в фоне.
//
// Четыре поведения:
//   - transfer   — по cron: consume → publish без изменений
//   - index      — по cron: consume → Elasticsearch → publish (processed=true)
//   - heartbeat  — по cron: проверка брокера и индексатора, переподключение
//   - continuous — фоновый цикл: publish → consume, до отмены
type Scheduler struct {
	retriever    Retriever
	publisher    Publisher
	acknowledger Acknowledger
	broker       Broker
	indexer      Indexer
	audit        RejectionRecorder
	logger       *slog.Logger

	consumeQueue string
	publishQueue string

	indexSchedule     string
	transferSchedule  string
	heartbeatSchedule string

	indexBatchSize    int
	transferBatchSize int
	loopBatchSize     int
	subBatchSize      int
	idleDelay         time.Duration
	errorDelay        time.Duration

	now func() time.Time

	// Cron
	cron    *cron.Cron
	mu      sync.Mutex
	entries map[string]cron.EntryID
	jobCtx  context.Context

	// Continuous loop
	pool       *ants.Pool
	loopMu     sync.Mutex
	loopCancel context.CancelFunc
	loopDone   chan struct{}
}

// Config — конфигурация Scheduler.
type Config struct {
	Retriever    Retriever
	Publisher    Publisher
	Acknowledger Acknowledger
	Broker       Broker
	Indexer      Indexer           // опционально; без него index-задача недоступна
	Audit        RejectionRecorder // опционально
	Logger       *slog.Logger

	ConsumeQueue string
	PublishQueue string

	// Cron-расписания; пустая строка выключает задачу.
	IndexSchedule     string
	TransferSchedule  string
	HeartbeatSchedule string

	IndexBatchSize    int           // default: 10
	TransferBatchSize int           // default: 20
	LoopBatchSize     int           // default: 100
	SubBatchSize      int           // параллельных операций в цикле (default: 20)
	IdleDelay         time.Duration // пауза при пустой очереди (default: 5s)
	ErrorDelay        time.Duration // пауза после ошибки цикла (default: 3s)
}

// New создаёт Scheduler.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "scheduler")

	s := &Scheduler{
		retriever:         cfg.Retriever,
		publisher:         cfg.Publisher,
		acknowledger:      cfg.Acknowledger,
		broker:            cfg.Broker,
		indexer:           cfg.Indexer,
		audit:             cfg.Audit,
		logger:            logger,
		consumeQueue:      cfg.ConsumeQueue,
		publishQueue:      cfg.PublishQueue,
		indexSchedule:     cfg.IndexSchedule,
		transferSchedule:  cfg.TransferSchedule,
		heartbeatSchedule: cfg.HeartbeatSchedule,
		indexBatchSize:    positiveOr(cfg.IndexBatchSize, defaultIndexBatchSize),
		transferBatchSize: positiveOr(cfg.TransferBatchSize, defaultTransferBatchSize),
		loopBatchSize:     positiveOr(cfg.LoopBatchSize, defaultLoopBatchSize),
		subBatchSize:      positiveOr(cfg.SubBatchSize, defaultSubBatchSize),
		idleDelay:         durationOr(cfg.IdleDelay, defaultIdleDelay),
		errorDelay:        durationOr(cfg.ErrorDelay, defaultErrorDelay),
		now:               time.Now,
		entries:           make(map[string]cron.EntryID),
		jobCtx:            context.Background(),
	}

	cronLogger := telemetry.CronLogger{Logger: logger}
	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLogger),
		// Задача не стартует повторно, пока предыдущий батч не разрешён
		cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
	)

	pool, err := ants.NewPool(s.subBatchSize, ants.WithPanicHandler(func(p any) {
		logger.Error("panic in continuous transfer worker", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	s.pool = pool

	return s, nil
}

// Start регистрирует задачи с непустым расписанием и запускает cron.
//
// Задачи выполняются на контексте, отвязанном от отмены ctx:
// начатый батч доводится до конца даже при остановке.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	s.jobCtx = context.WithoutCancel(ctx)
	s.mu.Unlock()

	jobs := []struct {
		name string
		expr string
		run  func(ctx context.Context)
	}{
		{JobTransfer, s.transferSchedule, func(ctx context.Context) { s.RunTransfer(ctx) }},
		{JobIndex, s.indexSchedule, func(ctx context.Context) { s.RunIndexing(ctx) }},
		{JobHeartbeat, s.heartbeatSchedule, func(ctx context.Context) { s.RunHeartbeat(ctx) }},
	}

	for _, job := range jobs {
		if job.expr == "" {
			s.logger.Info("job disabled", "job", job.name)
			continue
		}
		if job.name == JobIndex && s.indexer == nil {
			return fmt.Errorf("schedule %s job: %w", job.name, ErrNoIndexer)
		}
		if err := s.AddJob(job.name, job.expr, job.run); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// AddJob регистрирует задачу по cron-выражению.
func (s *Scheduler) AddJob(name, expr string, run func(ctx context.Context)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[name]; exists {
		return fmt.Errorf("%w: %s", ErrJobRegistered, name)
	}

	id, err := s.cron.AddFunc(expr, func() {
		s.mu.Lock()
		ctx := s.jobCtx
		s.mu.Unlock()

		run(ctx)
	})
	if err != nil {
		return fmt.Errorf("schedule %s job: %w", name, err)
	}
	s.entries[name] = id

	next, _ := NextRun(expr, s.now())
	s.logger.Info("job scheduled", "job", name, "schedule", expr, "next_run", next)

	return nil
}

// Jobs возвращает имена зарегистрированных задач.
func (s *Scheduler) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.entries))
	for name := range s.entries {
		names = append(names, name)
	}
	return names
}

// StopAllJobs снимает все cron-задачи и останавливает cron.
//
// Возвращённый контекст завершается, когда выполняющиеся задачи
// доработают. Фоновый цикл останавливается отдельно (StopContinuous).
func (s *Scheduler) StopAllJobs() context.Context {
	s.mu.Lock()
	for name, id := range s.entries {
		s.cron.Remove(id)
		delete(s.entries, name)
	}
	s.mu.Unlock()

	s.logger.Info("all cron jobs stopped")
	return s.cron.Stop()
}

// Stop останавливает cron-задачи и фоновый цикл, дожидаясь их завершения.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.StopAllJobs()
	s.StopContinuous()

	select {
	case <-done.Done():
	case <-ctx.Done():
		s.logger.Warn("timed out waiting for running jobs")
	}

	s.pool.Release()
}

// RunTransfer переносит батч из consume-очереди в publish-очередь без изменений.
// Ошибка публикации отклоняет сообщение (без requeue), а не весь батч.
func (s *Scheduler) RunTransfer(ctx context.Context) (JobResult, error) {
	return s.runBatchJob(ctx, JobTransfer, s.transferBatchSize, func(ctx context.Context, msg domain.Message) error {
		return s.publisher.Publish(ctx, s.publishQueue, msg)
	})
}

// RunIndexing индексирует батч из consume-очереди и публикует
// обработанные копии (processed=true) в publish-очередь.
func (s *Scheduler) RunIndexing(ctx context.Context) (JobResult, error) {
	if s.indexer == nil {
		return JobResult{Job: JobIndex}, ErrNoIndexer
	}

	return s.runBatchJob(ctx, JobIndex, s.indexBatchSize, func(ctx context.Context, msg domain.Message) error {
		if err := s.indexer.IndexMessage(ctx, msg); err != nil {
			return err
		}
		return s.publisher.Publish(ctx, s.publishQueue, msg.MarkProcessed(s.now()))
	})
}

// runBatchJob — общий цикл для transfer и index: retrieve → handle → ack/reject.
func (s *Scheduler) runBatchJob(ctx context.Context, job string, batchSize int, handle func(context.Context, domain.Message) error) (JobResult, error) {
	start := time.Now()
	defer func() {
		telemetry.JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
	}()

	logger := telemetry.WithJob(s.logger, job)
	result := JobResult{Job: job}

	batch, err := s.retriever.Retrieve(ctx, s.consumeQueue, batchSize)
	if err != nil {
		logger.Error("failed to retrieve batch", "queue", s.consumeQueue, "error", err)
		return result, fmt.Errorf("retrieve from %s: %w", s.consumeQueue, err)
	}

	result.Retrieved = batch.Len()
	if batch.IsEmpty() {
		logger.Debug("no messages to process", "queue", s.consumeQueue)
		return result, nil
	}

	logger.Info("processing batch", "queue", s.consumeQueue, "count", batch.Len())

	for _, msg := range batch.Messages {
		msgLogger := telemetry.WithMessageID(logger, msg.ID)

		if err := handle(ctx, msg); err != nil {
			msgLogger.Error("failed to process message", "error", err)
			s.reject(ctx, job, batch, msg.ID, err, false)
			result.Failed++
			continue
		}

		if !s.acknowledger.Ack(ctx, batch.Pending, msg.ID) {
			result.Failed++
			continue
		}

		result.Succeeded++
		msgLogger.Debug("message processed")
	}

	s.settle(ctx, job, batch)
	s.recordResult(result)

	logger.Info("batch completed",
		"retrieved", result.Retrieved,
		"succeeded", result.Succeeded,
		"failed", result.Failed,
	)

	return result, nil
}

// RunHeartbeat проверяет брокер и индексатор. Нездоровый брокер
// переподключается, нездоровый индексатор инициализируется заново.
func (s *Scheduler) RunHeartbeat(ctx context.Context) HealthReport {
	report := HealthReport{
		Broker:  s.broker.CheckHealth(ctx),
		Indexer: true,
	}
	if s.indexer != nil {
		report.Indexer = s.indexer.Health(ctx)
	}

	telemetry.HealthStatus.WithLabelValues("rabbitmq").Set(boolGauge(report.Broker))
	telemetry.HealthStatus.WithLabelValues("elasticsearch").Set(boolGauge(report.Indexer))

	s.logger.Info("heartbeat",
		"rabbitmq_healthy", report.Broker,
		"elasticsearch_healthy", report.Indexer,
	)

	if !report.Broker {
		s.logger.Warn("RabbitMQ unhealthy, reconnecting")
		s.broker.Reconnect()
	}

	if !report.Indexer {
		s.logger.Warn("Elasticsearch unhealthy, reinitializing")
		if err := s.indexer.Initialize(ctx); err != nil {
			s.logger.Error("failed to reinitialize Elasticsearch", "error", err)
		}
	}

	return report
}

// reject отклоняет сообщение и пишет аудит.
func (s *Scheduler) reject(ctx context.Context, job string, batch *mq.Batch, id string, cause error, requeue bool) bool {
	if !s.acknowledger.Reject(ctx, batch.Pending, id, requeue) {
		s.logger.Error("failed to reject message, it stays pending",
			"job", job,
			"message_id", id,
			"requeue", requeue,
		)
		return false
	}

	if s.audit != nil {
		rejection := domain.NewRejection(id, batch.Queue, job, cause, requeue, !requeue && s.acknowledger.HasDeadLetter())
		if err := s.audit.Record(ctx, rejection); err != nil {
			s.logger.Warn("failed to record rejection", "message_id", id, "error", err)
		}
	}

	return true
}

// settle разрешает всё, что осталось в PendingTable после батча:
// requeue, а если и он не удался — запись удаляется (брокер
// передоставит сообщение после закрытия канала).
func (s *Scheduler) settle(ctx context.Context, job string, batch *mq.Batch) {
	for _, id := range batch.Pending.IDs() {
		s.logger.Warn("message still pending after batch, requeueing", "job", job, "message_id", id)

		if s.reject(ctx, job, batch, id, fmt.Errorf("unresolved after %s batch", job), true) {
			continue
		}

		s.logger.Warn("dropping pending entry; broker will redeliver after channel close",
			"job", job,
			"message_id", id,
		)
		batch.Pending.Remove(id)
	}
}

func (s *Scheduler) recordResult(r JobResult) {
	telemetry.JobMessages.WithLabelValues(r.Job, "succeeded").Add(float64(r.Succeeded))
	telemetry.JobMessages.WithLabelValues(r.Job, "failed").Add(float64(r.Failed))
}

func positiveOr(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
