package fetch

import "errors"

// Ошибки получения сырых данных.
var (
	// ErrRequest — запрос не удалось выполнить (сеть, таймаут).
	ErrRequest = errors.New("fetch request failed")

	// ErrUpstreamStatus — источник ответил кодом >= 400.
	ErrUpstreamStatus = errors.New("upstream returned error status")

	// ErrEmptyRepository — не указан репозиторий.
	ErrEmptyRepository = errors.New("repository is required")
)
