package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// --- Response types (дублируются из internal/api, CLI не импортирует его) ---

// HealthResponse — ответ GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// PublishResponse — ответ POST /messages.
type PublishResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	MessageID string `json:"messageId"`
}

// RejectionResponse — запись журнала отклонений.
type RejectionResponse struct {
	ID           string `json:"id"`
	MessageID    string `json:"message_id"`
	Queue        string `json:"queue"`
	Job          string `json:"job"`
	Reason       string `json:"reason"`
	Requeued     bool   `json:"requeued"`
	DeadLettered bool   `json:"dead_lettered"`
	RejectedAt   string `json:"rejected_at"`
}

// --- API response wrappers ---

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Relay API.
type Client struct {
	baseURL    string
	basePath   string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
// basePath — префикс маршрутов сервера (обычно /api/v1).
func NewClient(baseURL, basePath string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		basePath: strings.TrimRight(basePath, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health проверяет, что API отвечает.
func (c *Client) Health() (*HealthResponse, error) {
	var health HealthResponse
	err := c.doJSON(http.MethodGet, "/health", nil, &health)
	return &health, err
}

// PublishMessage отправляет JSON-объект в очередь через API.
func (c *Client) PublishMessage(payload json.RawMessage) (*PublishResponse, error) {
	if !json.Valid(payload) {
		return nil, fmt.Errorf("payload is not valid JSON")
	}

	var result PublishResponse
	err := c.doJSON(http.MethodPost, "/messages", payload, &result)
	return &result, err
}

// ListRejections возвращает последние отклонённые сообщения.
func (c *Client) ListRejections(limit int) ([]RejectionResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	path := "/rejections"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var lr listResponse
	if err := c.doJSON(http.MethodGet, path, nil, &lr); err != nil {
		return nil, err
	}

	var rejections []RejectionResponse
	if err := json.Unmarshal(lr.Data, &rejections); err != nil {
		return nil, fmt.Errorf("failed to decode rejections: %w", err)
	}
	return rejections, nil
}

// --- HTTP helpers ---

func (c *Client) doJSON(method, path string, body json.RawMessage, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string, body json.RawMessage) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyReader = bytes.NewReader(body)
	}

	req, err := http.NewRequest(method, c.baseURL+c.basePath+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Code == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
