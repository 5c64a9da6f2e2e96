// Package config загружает конфигурацию Relay из переменных окружения.
//
// Пустое значение опциональной переменной (RABBITMQ_DEAD_LETTER_QUEUE,
// TRANSFER_SCHEDULE, HEARTBEAT_SCHEDULE) выключает соответствующую функцию;
// незаданная переменная получает значение по умолчанию.
package config
