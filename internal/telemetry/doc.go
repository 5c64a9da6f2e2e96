// Package telemetry обеспечивает наблюдаемость Relay.
//
// Включает:
//   - logging.go — structured logging через slog и адаптер для cron
//   - metrics.go — Prometheus метрики
//
// Метрики экспортируются на /metrics endpoint сервиса.
package telemetry
