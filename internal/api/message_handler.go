package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shaiso/Relay/internal/domain"
	"github.com/shaiso/Relay/internal/telemetry"
)

// maxBodySize — предел размера тела POST /messages.
const maxBodySize = 1 << 20

// Health сообщает, что API запущен.
// GET /api/v1/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status:    "ok",
		Timestamp: h.now().UTC().Format(time.RFC3339Nano),
	})
}

// PublishMessage принимает произвольный JSON-объект и публикует его
// в consume-очередь как content нового сообщения.
// POST /api/v1/messages
func (h *Handler) PublishMessage(w http.ResponseWriter, r *http.Request) {
	var payload map[string]any
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodySize))
	dec.UseNumber()
	err := dec.Decode(&payload)
	if err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}
	if len(payload) == 0 {
		BadRequest(w, "payload is empty or invalid")
		return
	}

	// id из payload сохраняется, иначе генерируется
	id, _ := payload["id"].(string)
	msg := domain.NewMessage(id, payload, h.now())

	if err := h.publisher.Publish(r.Context(), h.consumeQueue, msg); err != nil {
		telemetry.WithMessageID(telemetry.FromContext(r.Context()), msg.ID).Error("failed to publish inbound message",
			"queue", h.consumeQueue,
			"error", err,
		)
		Error(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "message broker unavailable")
		return
	}

	JSON(w, http.StatusAccepted, PublishResponse{
		Status:    "success",
		Message:   "message accepted for processing",
		MessageID: msg.ID,
	})
}

// ListRejections возвращает последние отклонённые сообщения.
// GET /api/v1/rejections?limit=50
func (h *Handler) ListRejections(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	rejections, err := h.rejections.ListRecent(r.Context(), limit)
	if HandleRepoError(w, h.logger, err) {
		return
	}

	List(w, rejections, len(rejections))
}
