// Package mq предоставляет работу с RabbitMQ для Relay.
//
// Структура:
//   - connection.go   — соединение, три канала, reconnect с фиксированной задержкой, health check
//   - topology.go     — объявление очередей и dead-letter exchange
//   - pending.go      — PendingTable: доставки, ожидающие ack/reject
//   - retriever.go    — получение сообщений пачками через basic.get
//   - acknowledger.go — ack, nack с requeue и отправка в DLQ
//   - publisher.go    — публикация в очереди
//
// Модель — только pull: постоянной подписки (basic.consume) нет.
// Каждый вызов Retrieve возвращает Batch со своей PendingTable,
// которая передаётся в Ack/Reject. Все сообщения батча должны быть
// разрешены до следующего Retrieve.
//
// Очереди:
//   - consume     — входящие сообщения (DLX → dead.letter.exchange)
//   - publish     — обработанные сообщения
//   - dead-letter — отклонённые сообщения с _meta, ручной разбор
package mq
