// Package api содержит HTTP API Relay.
//
// Структура:
//   - handler.go         — Handler с DI (publisher, журнал отклонений, logger)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - message_handler.go — /health, /messages, /rejections
//
// POST /messages принимает непустой JSON-объект и публикует его
// в consume-очередь; дальше сообщение обрабатывает планировщик.
package api
