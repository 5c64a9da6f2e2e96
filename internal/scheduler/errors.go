package scheduler

import "errors"

// Ошибки планировщика.
var (
	// ErrLoopRunning — фоновый цикл уже запущен.
	ErrLoopRunning = errors.New("continuous loop is already running")

	// ErrJobRegistered — задача с таким именем уже зарегистрирована.
	ErrJobRegistered = errors.New("job is already registered")

	// ErrNoIndexer — индексатор не настроен.
	ErrNoIndexer = errors.New("indexer is not configured")
)
