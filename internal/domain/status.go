package domain

// RunStatus — статус выполнения run.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ REJECTED (данные не прошли валидацию)
//	                  ↘ FAILED (инфраструктурная ошибка, может быть retry → обратно в PENDING)
type RunStatus string

const (
	// RunStatusPending — run создан и ждёт воркера.
	RunStatusPending RunStatus = "PENDING"

	// RunStatusRunning — run в процессе выполнения.
	RunStatusRunning RunStatus = "RUNNING"

	// RunStatusSucceeded — pipeline дошёл до агрегата.
	RunStatusSucceeded RunStatus = "SUCCEEDED"

	// RunStatusRejected — запись отклонена схемой или бизнес-правилом.
	RunStatusRejected RunStatus = "REJECTED"

	// RunStatusFailed — run завершился с ошибкой после всех попыток.
	RunStatusFailed RunStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusSucceeded, RunStatusRejected, RunStatusFailed:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}

// ParseRunStatus парсит строку в RunStatus.
// Возвращает false для неизвестного значения.
func ParseRunStatus(s string) (RunStatus, bool) {
	switch RunStatus(s) {
	case RunStatusPending, RunStatusRunning, RunStatusSucceeded, RunStatusRejected, RunStatusFailed:
		return RunStatus(s), true
	default:
		return "", false
	}
}
