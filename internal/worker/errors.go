package worker

import "errors"

// Ошибки воркера.
var (
	// ErrRunNotFound — run не найден в БД.
	ErrRunNotFound = errors.New("run not found")

	// ErrRunNotPending — run не в статусе PENDING (уже взят или завершён).
	ErrRunNotPending = errors.New("run is not in PENDING status")

	// ErrRunNotReady — отложенный повтор ещё не наступил.
	ErrRunNotReady = errors.New("run retry delay has not elapsed")

	// ErrStaleAttempt — сообщение относится к прошлой попытке run.
	ErrStaleAttempt = errors.New("stale run attempt")

	// ErrUnknownFlow — нет executor'а для flow.
	ErrUnknownFlow = errors.New("unknown flow")

	// ErrNonRetryable — ошибку нельзя исправить повтором
	// (неверные параметры, ошибка программы).
	ErrNonRetryable = errors.New("non-retryable")

	// ErrProcessing — сбой обработки в data_processing_flow.
	ErrProcessing = errors.New("processing failed")
)

// isExpected возвращает true для ситуаций, когда сообщение
// просто не нужно обрабатывать.
func isExpected(err error) bool {
	return errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrRunNotPending) ||
		errors.Is(err, ErrRunNotReady) ||
		errors.Is(err, ErrStaleAttempt)
}
