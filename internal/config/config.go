package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Relay/internal/scheduler"
)

// Config — конфигурация Relay.
type Config struct {
	RabbitMQ      RabbitMQConfig
	Elasticsearch ElasticsearchConfig
	Scheduler     SchedulerConfig
	API           APIConfig
	Audit         AuditConfig
}

// RabbitMQConfig — подключение к брокеру и имена очередей.
type RabbitMQConfig struct {
	URL             string
	ConsumeQueue    string
	PublishQueue    string
	DeadLetterQueue string // пусто — без DLQ
	Prefetch        int
	ReconnectDelay  time.Duration
}

// ElasticsearchConfig — подключение к Elasticsearch.
type ElasticsearchConfig struct {
	Node     string
	Index    string
	Username string
	Password string
}

// SchedulerConfig — расписания и размеры батчей.
type SchedulerConfig struct {
	// IndexSchedule — cron индексации (пусто — выключено).
	IndexSchedule string

	// TransferSchedule — cron переноса consume → publish (пусто — выключено).
	TransferSchedule string

	// HeartbeatSchedule — cron проверки здоровья (пусто — выключено).
	HeartbeatSchedule string

	IndexBatchSize    int
	TransferBatchSize int

	// ContinuousTransfer включает фоновый цикл publish → consume.
	ContinuousTransfer bool
	LoopBatchSize      int
	SubBatchSize       int
	IdleDelay          time.Duration
	ErrorDelay         time.Duration
}

// APIConfig — HTTP сервер.
type APIConfig struct {
	Host     string
	Port     int
	BasePath string
}

// Addr возвращает адрес для http.Server.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// AuditConfig — журнал отклонений в Postgres.
type AuditConfig struct {
	// DatabaseURL — DSN Postgres (пусто — аудит выключен).
	DatabaseURL string
}

// Enabled возвращает true, если аудит включён.
func (c AuditConfig) Enabled() bool {
	return c.DatabaseURL != ""
}

// Load загружает конфигурацию из переменных окружения.
// Отсутствующие значения заменяются значениями по умолчанию.
func Load() (*Config, error) {
	cfg := &Config{
		RabbitMQ: RabbitMQConfig{
			URL:             getEnv("RABBITMQ_URL", "amqp://localhost:5672"),
			ConsumeQueue:    getEnv("RABBITMQ_QUEUE_CONSUME", "input_queue"),
			PublishQueue:    getEnv("RABBITMQ_QUEUE_PUBLISH", "output_queue"),
			DeadLetterQueue: getEnvAllowEmpty("RABBITMQ_DEAD_LETTER_QUEUE", "dead_letter_queue"),
			Prefetch:        getEnvAsInt("RABBITMQ_PREFETCH", 10),
			ReconnectDelay:  getEnvAsMillis("RABBITMQ_RECONNECT_TIMEOUT", 5*time.Second),
		},
		Elasticsearch: ElasticsearchConfig{
			Node:     getEnv("ELASTICSEARCH_NODE", "http://localhost:9200"),
			Index:    getEnv("ELASTICSEARCH_INDEX", "data-index"),
			Username: getEnv("ELASTICSEARCH_USERNAME", ""),
			Password: getEnv("ELASTICSEARCH_PASSWORD", ""),
		},
		Scheduler: SchedulerConfig{
			IndexSchedule:      getEnvAllowEmpty("RABBITMQ_PROCESSING_SCHEDULE", "*/1 * * * *"),
			TransferSchedule:   getEnvAllowEmpty("TRANSFER_SCHEDULE", ""),
			HeartbeatSchedule:  getEnvAllowEmpty("HEARTBEAT_SCHEDULE", "*/5 * * * *"),
			IndexBatchSize:     getEnvAsInt("INDEX_BATCH_SIZE", 10),
			TransferBatchSize:  getEnvAsInt("TRANSFER_BATCH_SIZE", 20),
			ContinuousTransfer: getEnvAsBool("CONTINUOUS_TRANSFER", false),
			LoopBatchSize:      getEnvAsInt("LOOP_BATCH_SIZE", 100),
			SubBatchSize:       getEnvAsInt("LOOP_SUB_BATCH_SIZE", 20),
			IdleDelay:          getEnvAsDuration("LOOP_IDLE_DELAY", 5*time.Second),
			ErrorDelay:         getEnvAsDuration("LOOP_ERROR_DELAY", 3*time.Second),
		},
		API: APIConfig{
			Host:     getEnv("API_HOST", ""),
			Port:     getEnvAsInt("API_PORT", 3000),
			BasePath: strings.TrimRight(getEnv("API_BASE_PATH", "/api/v1"), "/"),
		},
		Audit: AuditConfig{
			DatabaseURL: getEnv("DB_URL", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate проверяет cron-выражения и размеры.
func (c *Config) Validate() error {
	var errs []error

	if c.RabbitMQ.URL == "" {
		errs = append(errs, errors.New("RABBITMQ_URL is required"))
	}
	if c.RabbitMQ.ConsumeQueue == "" || c.RabbitMQ.PublishQueue == "" {
		errs = append(errs, errors.New("consume and publish queue names are required"))
	}
	if c.RabbitMQ.Prefetch <= 0 {
		errs = append(errs, fmt.Errorf("prefetch must be positive, got %d", c.RabbitMQ.Prefetch))
	}

	for name, expr := range map[string]string{
		"RABBITMQ_PROCESSING_SCHEDULE": c.Scheduler.IndexSchedule,
		"TRANSFER_SCHEDULE":            c.Scheduler.TransferSchedule,
		"HEARTBEAT_SCHEDULE":           c.Scheduler.HeartbeatSchedule,
	} {
		if expr == "" {
			continue
		}
		if err := scheduler.ValidateCronExpr(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}

	for name, size := range map[string]int{
		"INDEX_BATCH_SIZE":    c.Scheduler.IndexBatchSize,
		"TRANSFER_BATCH_SIZE": c.Scheduler.TransferBatchSize,
		"LOOP_BATCH_SIZE":     c.Scheduler.LoopBatchSize,
		"LOOP_SUB_BATCH_SIZE": c.Scheduler.SubBatchSize,
	} {
		if size <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, size))
		}
	}

	return errors.Join(errs...)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAllowEmpty отличает "не задано" от "задано пустым":
// пустое значение выключает опциональную функцию.
func getEnvAllowEmpty(key, defaultValue string) string {
	if value, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(value)
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsMillis читает длительность в миллисекундах ("5000")
// или в формате Go ("5s").
func getEnvAsMillis(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}
	return defaultValue
}
