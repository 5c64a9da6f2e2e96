// Package repo хранит журнал отклонённых сообщений в Postgres (pgx).
//
// Журнал опционален: без DB_URL планировщик работает без аудита.
// Схема создаётся при старте через EnsureSchema.
package repo
