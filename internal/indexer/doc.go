// Package indexer индексирует сообщения Relay в Elasticsearch.
//
// Elasticsearch реализует три операции, которыми пользуется планировщик:
//   - IndexMessage — документ с ID сообщения (ошибка — *IndexError)
//   - Health       — статус кластера не red
//   - Initialize   — создаёт индекс со схемой, если его нет
package indexer
