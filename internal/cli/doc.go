// Package cli реализует инструмент командной строки relay-cli.
//
// CLI — клиентская утилита для Relay API. Работает через HTTP
// и не импортирует серверные пакеты.
//
// ## Client
//
// HTTP-клиент: health, публикация сообщения, журнал отклонений.
//
//	client := cli.NewClient("http://localhost:3000", "/api/v1")
//	resp, err := client.PublishMessage(json.RawMessage(`{"order":1}`))
//
// ## Output
//
// Таблицы (text/tabwriter) по умолчанию, JSON с флагом --json.
// Данные выводятся в stdout, сообщения — в stderr:
// relay-cli rejections --json | jq .
//
// ## Commands
//
//   - health      — GET /health
//   - publish     — POST /messages (--data, --file, stdin)
//   - rejections  — GET /rejections
package cli
