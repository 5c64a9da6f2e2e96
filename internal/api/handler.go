package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/shaiso/Relay/internal/domain"
)

// Publisher публикует сообщение в очередь.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg domain.Message) error
}

// RejectionLister читает журнал отклонений.
type RejectionLister interface {
	ListRecent(ctx context.Context, limit int) ([]domain.Rejection, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	publisher    Publisher
	rejections   RejectionLister
	consumeQueue string
	basePath     string
	logger       *slog.Logger
	now          func() time.Time
}

// Config — конфигурация для создания Handler.
type Config struct {
	Publisher Publisher

	// Rejections — журнал отклонений (опционально; без него
	// маршрут /rejections не регистрируется).
	Rejections RejectionLister

	// ConsumeQueue — очередь, в которую попадают входящие сообщения.
	ConsumeQueue string

	// BasePath — префикс маршрутов (default: /api/v1).
	BasePath string

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}

	return &Handler{
		publisher:    cfg.Publisher,
		rejections:   cfg.Rejections,
		consumeQueue: cfg.ConsumeQueue,
		basePath:     basePath,
		logger:       logger,
		now:          time.Now,
	}
}
