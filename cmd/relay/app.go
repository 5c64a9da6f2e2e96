package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/Relay/internal/config"
	"github.com/shaiso/Relay/internal/indexer"
	"github.com/shaiso/Relay/internal/mq"
	"github.com/shaiso/Relay/internal/repo"
	"github.com/shaiso/Relay/internal/scheduler"
)

// schedulerStopTimeout — сколько ждать завершения запущенных задач при выходе.
const schedulerStopTimeout = 10 * time.Second

// app — собранные зависимости процесса.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	conn       *mq.Connection
	publisher  *mq.Publisher
	indexer    *indexer.Elasticsearch
	pool       *pgxpool.Pool
	rejections *repo.RejectionRepo
	scheduler  *scheduler.Scheduler
}

// newApp загружает конфигурацию и собирает зависимости.
//
// Недоступный RabbitMQ не считается фатальной ошибкой: соединение
// переподключается в фоне. Недоступный Elasticsearch тоже — heartbeat
// повторит инициализацию индекса.
func newApp(ctx context.Context, logger *slog.Logger) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	a := &app{cfg: cfg, logger: logger}

	a.conn = mq.NewConnection(mq.Config{
		URL:             cfg.RabbitMQ.URL,
		ConsumeQueue:    cfg.RabbitMQ.ConsumeQueue,
		PublishQueue:    cfg.RabbitMQ.PublishQueue,
		DeadLetterQueue: cfg.RabbitMQ.DeadLetterQueue,
		Prefetch:        cfg.RabbitMQ.Prefetch,
		ReconnectDelay:  cfg.RabbitMQ.ReconnectDelay,
	}, logger)

	if err := a.conn.Connect(ctx); err != nil {
		logger.Error("failed to connect to RabbitMQ, retrying in background", "error", err)
	} else {
		logger.Info("RabbitMQ topology declared", "topology", mq.TopologyInfo(a.conn.Config()))
	}

	a.publisher = mq.NewPublisher(a.conn, logger)

	a.indexer, err = indexer.New(indexer.Config{
		Node:     cfg.Elasticsearch.Node,
		Index:    cfg.Elasticsearch.Index,
		Username: cfg.Elasticsearch.Username,
		Password: cfg.Elasticsearch.Password,
	}, logger)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := a.indexer.Initialize(ctx); err != nil {
		logger.Error("failed to initialize Elasticsearch index", "error", err)
	}

	var audit scheduler.RejectionRecorder
	if cfg.Audit.Enabled() {
		a.pool, err = repo.NewPool(ctx, cfg.Audit.DatabaseURL)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect audit database: %w", err)
		}
		a.rejections = repo.NewRejectionRepo(a.pool)
		if err := a.rejections.EnsureSchema(ctx); err != nil {
			a.close()
			return nil, err
		}
		audit = a.rejections
		logger.Info("rejection audit enabled")
	}

	a.scheduler, err = scheduler.New(scheduler.Config{
		Retriever:         mq.NewRetriever(a.conn, logger),
		Publisher:         a.publisher,
		Acknowledger:      mq.NewAcknowledger(a.publisher, logger),
		Broker:            a.conn,
		Indexer:           a.indexer,
		Audit:             audit,
		Logger:            logger,
		ConsumeQueue:      cfg.RabbitMQ.ConsumeQueue,
		PublishQueue:      cfg.RabbitMQ.PublishQueue,
		IndexSchedule:     cfg.Scheduler.IndexSchedule,
		TransferSchedule:  cfg.Scheduler.TransferSchedule,
		HeartbeatSchedule: cfg.Scheduler.HeartbeatSchedule,
		IndexBatchSize:    cfg.Scheduler.IndexBatchSize,
		TransferBatchSize: cfg.Scheduler.TransferBatchSize,
		LoopBatchSize:     cfg.Scheduler.LoopBatchSize,
		SubBatchSize:      cfg.Scheduler.SubBatchSize,
		IdleDelay:         cfg.Scheduler.IdleDelay,
		ErrorDelay:        cfg.Scheduler.ErrorDelay,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	return a, nil
}

// close освобождает ресурсы. Ошибки не прерывают закрытие остальных.
// Повторная остановка планировщика (после serve) ничего не делает.
func (a *app) close() error {
	var errs []error

	if a.scheduler != nil {
		ctx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
		a.scheduler.Stop(ctx)
		cancel()
	}

	if a.conn != nil {
		if err := a.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close broker connection: %w", err))
		}
	}
	if a.pool != nil {
		a.pool.Close()
	}

	return errors.Join(errs...)
}
