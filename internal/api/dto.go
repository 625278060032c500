package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/deploy"
	"github.com/shaiso/etlflows/internal/domain"
)

// Validate DTOs

// ValidateResponse — результат прогона ядра на одной записи.
type ValidateResponse struct {
	// Outcome — valid, schema или rule.
	Outcome   string                  `json:"outcome"`
	Valid     bool                    `json:"valid"`
	Reason    string                  `json:"reason,omitempty"`
	MinStars  int64                   `json:"min_stars"`
	Flattened map[string]any          `json:"flattened"`
	Cleaned   *domain.CleanedRecord   `json:"cleaned,omitempty"`
	Aggregate *domain.AggregateRecord `json:"aggregate,omitempty"`
}

// Deployment DTOs

// DeploymentResponse — ответ с deployment.
type DeploymentResponse struct {
	domain.Deployment

	// NextRunAt — ближайший запуск по расписанию (только для отображения).
	NextRunAt *time.Time `json:"next_run_at,omitempty"`
}

// DeploymentFromDomain конвертирует domain.Deployment в DeploymentResponse.
func DeploymentFromDomain(d domain.Deployment, now time.Time) DeploymentResponse {
	resp := DeploymentResponse{Deployment: d}
	if next, ok, err := deploy.NextRun(&d, now); err == nil && ok {
		resp.NextRunAt = &next
	}
	return resp
}

// Run DTOs

// CreateRunRequest — запрос на запуск deployment.
type CreateRunRequest struct {
	// Parameters перекрывают параметры deployment.
	Parameters map[string]any `json:"parameters,omitempty"`
}

// RunResponse — ответ с run.
type RunResponse struct {
	ID              uuid.UUID         `json:"id"`
	Deployment      string            `json:"deployment,omitempty"`
	Flow            string            `json:"flow"`
	Parameters      map[string]any    `json:"parameters,omitempty"`
	Status          string            `json:"status"`
	Stage           string            `json:"stage,omitempty"`
	Attempt         int               `json:"attempt"`
	Artifacts       map[string]string `json:"artifacts,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Error           string            `json:"error,omitempty"`
	StartedAt       *time.Time        `json:"started_at,omitempty"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
}

// RunFromDomain конвертирует domain.Run в RunResponse.
func RunFromDomain(r domain.Run) RunResponse {
	return RunResponse{
		ID:              r.ID,
		Deployment:      r.Deployment,
		Flow:            r.Flow,
		Parameters:      r.Parameters,
		Status:          string(r.Status),
		Stage:           string(r.Stage),
		Attempt:         r.Attempt,
		Artifacts:       r.Artifacts,
		RejectionReason: r.RejectionReason,
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		FinishedAt:      r.FinishedAt,
		CreatedAt:       r.CreatedAt,
	}
}
