package domain

import (
	"time"

	"github.com/google/uuid"
)

// Имена артефактов, которые pipeline сохраняет в object storage.
const (
	ArtifactRaw        = "raw-data.json"
	ArtifactFlattened  = "flattened-data.json"
	ArtifactCleaned    = "cleaned-data.json"
	ArtifactAggregated = "aggregated-data.json"
)

// Run — экземпляр выполнения flow.
//
// Run создаётся когда:
// - Пользователь запускает deployment через API/CLI
// - Внешний оркестратор запускает deployment по расписанию
//
// Воркер берёт PENDING run из очереди пула и доводит его до финального статуса.
type Run struct {
	// ID — уникальный идентификатор run.
	ID uuid.UUID `json:"id"`

	// Deployment — имя deployment, от которого создан run.
	// Пусто для локальных запусков из CLI.
	Deployment string `json:"deployment,omitempty"`

	// Flow — имя flow (ключ реестра исполнителей воркера).
	Flow string `json:"flow"`

	// Parameters — параметры запуска (для ETL: repository, min_stars, output_location).
	Parameters map[string]any `json:"parameters,omitempty"`

	// Status — текущий статус выполнения.
	Status RunStatus `json:"status"`

	// Stage — последний достигнутый этап pipeline.
	Stage Stage `json:"stage,omitempty"`

	// Attempt — номер попытки, начиная с 1.
	Attempt int `json:"attempt"`

	// Artifacts — имя артефакта → location (URL или путь).
	Artifacts map[string]string `json:"artifacts,omitempty"`

	// RejectionReason — причина отклонения, если run в статусе REJECTED.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// Error — текст ошибки, если run завершился с FAILED.
	Error string `json:"error,omitempty"`

	// NotBefore — run не берётся в работу раньше этого времени
	// (отложенный повтор).
	NotBefore *time.Time `json:"not_before,omitempty"`

	// StartedAt — время начала последней попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// CreatedAt — время создания run.
	CreatedAt time.Time `json:"created_at"`
}

// NewRun создаёт PENDING run для deployment.
func NewRun(deployment, flow string, params map[string]any) *Run {
	return &Run{
		ID:         uuid.New(),
		Deployment: deployment,
		Flow:       flow,
		Parameters: params,
		Status:     RunStatusPending,
		Attempt:    1,
		CreatedAt:  time.Now().UTC(),
	}
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// MarkRunning переводит run в статус RUNNING.
func (r *Run) MarkRunning() {
	now := time.Now().UTC()
	r.Status = RunStatusRunning
	r.StartedAt = &now
	r.FinishedAt = nil
	r.NotBefore = nil
}

// MarkSucceeded переводит run в статус SUCCEEDED.
func (r *Run) MarkSucceeded() {
	now := time.Now().UTC()
	r.Status = RunStatusSucceeded
	r.FinishedAt = &now
	r.Error = ""
}

// MarkRejected переводит run в статус REJECTED с причиной.
func (r *Run) MarkRejected(reason string) {
	now := time.Now().UTC()
	r.Status = RunStatusRejected
	r.Stage = StageRejected
	r.FinishedAt = &now
	r.RejectionReason = reason
}

// MarkFailed переводит run в статус FAILED с ошибкой.
func (r *Run) MarkFailed(err string) {
	now := time.Now().UTC()
	r.Status = RunStatusFailed
	r.FinishedAt = &now
	r.Error = err
}

// ResetForRetry возвращает run в PENDING со следующим номером попытки,
// который нельзя начать раньше чем через delay.
// Ошибка предыдущей попытки сохраняется для истории.
func (r *Run) ResetForRetry(err string, delay time.Duration) {
	notBefore := time.Now().UTC().Add(delay)
	r.Status = RunStatusPending
	r.Attempt++
	r.Error = err
	r.NotBefore = &notBefore
	r.StartedAt = nil
	r.FinishedAt = nil
}

// Ready возвращает true, если PENDING run можно брать в работу в момент now.
func (r *Run) Ready(now time.Time) bool {
	return r.Status == RunStatusPending && (r.NotBefore == nil || !now.Before(*r.NotBefore))
}

// SetArtifact запоминает location сохранённого артефакта.
func (r *Run) SetArtifact(name, location string) {
	if r.Artifacts == nil {
		r.Artifacts = make(map[string]string)
	}
	r.Artifacts[name] = location
}
