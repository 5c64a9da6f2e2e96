package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNoDSN — строка подключения не задана.
	ErrNoDSN = errors.New("database url is not set")

	// ErrInvalidLimit — лимит выборки вне допустимого диапазона.
	ErrInvalidLimit = errors.New("invalid limit")
)
