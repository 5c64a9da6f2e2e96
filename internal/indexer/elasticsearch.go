package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// indexMapping — схема индекса: id:keyword, content:object, timestamp:date.
const indexMapping = `{
  "mappings": {
    "properties": {
      "id":        { "type": "keyword" },
      "content":   { "type": "object" },
      "timestamp": { "type": "date" }
    }
  }
}`

// Config — параметры подключения к Elasticsearch.
type Config struct {
	// Node — адрес узла (http://localhost:9200).
	Node string

	// Index — имя индекса (default: data-index).
	Index string

	// Username/Password — basic auth (пусто — без авторизации).
	Username string
	Password string

	// Transport — опциональный http.RoundTripper (для тестов).
	Transport http.RoundTripper
}

// Elasticsearch индексирует сообщения в Elasticsearch.
type Elasticsearch struct {
	client *elasticsearch.Client
	index  string
	logger *slog.Logger
}

// New создаёт клиент Elasticsearch. Сеть при создании не используется.
func New(cfg Config, logger *slog.Logger) (*Elasticsearch, error) {
	if cfg.Index == "" {
		cfg.Index = "data-index"
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Node},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: cfg.Transport,
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}

	return &Elasticsearch{
		client: client,
		index:  cfg.Index,
		logger: logger.With("component", "indexer", "index", cfg.Index),
	}, nil
}

// Index возвращает имя индекса.
func (e *Elasticsearch) Index() string {
	return e.index
}

// Initialize создаёт индекс со схемой, если его нет. Идемпотентен.
func (e *Elasticsearch) Initialize(ctx context.Context) error {
	res, err := e.client.Indices.Exists(
		[]string{e.index},
		e.client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: check index: %w", ErrInitialize, err)
	}
	drainAndClose(res.Body)

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		// создаём ниже
	default:
		return fmt.Errorf("%w: check index: status %d", ErrInitialize, res.StatusCode)
	}

	res, err = e.client.Indices.Create(
		e.index,
		e.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		e.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("%w: create index: %w", ErrInitialize, err)
	}
	defer drainAndClose(res.Body)

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// Индекс мог создать другой экземпляр между проверкой и созданием
		if bytes.Contains(body, []byte("resource_already_exists_exception")) {
			return nil
		}
		return fmt.Errorf("%w: create index: status %d: %s", ErrInitialize, res.StatusCode, body)
	}

	e.logger.Info("index created")
	return nil
}

// IndexMessage индексирует сообщение; ID документа = ID сообщения.
func (e *Elasticsearch) IndexMessage(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return &IndexError{MessageID: msg.ID, Err: fmt.Errorf("marshal message: %w", err)}
	}

	res, err := e.client.Index(
		e.index,
		bytes.NewReader(body),
		e.client.Index.WithDocumentID(msg.ID),
		e.client.Index.WithContext(ctx),
	)
	if err != nil {
		telemetry.IndexFailures.Inc()
		return &IndexError{MessageID: msg.ID, Err: err}
	}
	defer drainAndClose(res.Body)

	if res.IsError() {
		telemetry.IndexFailures.Inc()
		return &IndexError{
			MessageID:  msg.ID,
			StatusCode: res.StatusCode,
			Err:        errors.New(readReason(res.Body)),
		}
	}

	telemetry.MessagesIndexed.Inc()
	e.logger.Debug("message indexed", "message_id", msg.ID)
	return nil
}

// Health возвращает true, если статус кластера не red.
// Ошибки проглатываются и считаются нездоровым кластером.
func (e *Elasticsearch) Health(ctx context.Context) bool {
	res, err := e.client.Cluster.Health(e.client.Cluster.Health.WithContext(ctx))
	if err != nil {
		e.logger.Warn("elasticsearch health check failed", "error", err)
		return false
	}
	defer drainAndClose(res.Body)

	if res.IsError() {
		e.logger.Warn("elasticsearch health check failed", "status", res.StatusCode)
		return false
	}

	var health struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(res.Body).Decode(&health); err != nil {
		e.logger.Warn("failed to decode cluster health", "error", err)
		return false
	}

	return health.Status != "" && health.Status != "red"
}

// readReason достаёт error.reason из ответа Elasticsearch.
func readReason(body io.Reader) string {
	var payload struct {
		Error struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	}

	raw, err := io.ReadAll(body)
	if err != nil {
		return "unreadable response"
	}
	if err := json.Unmarshal(raw, &payload); err != nil || payload.Error.Reason == "" {
		return strings.TrimSpace(string(raw))
	}
	return payload.Error.Type + ": " + payload.Error.Reason
}

func drainAndClose(body io.ReadCloser) {
	if body == nil {
		return
	}
	io.Copy(io.Discard, body)
	body.Close()
}
