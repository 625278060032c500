package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — тип уведомления.
type EventKind string

const (
	// EventRejected — запись не прошла валидацию.
	EventRejected EventKind = "rejected"

	// EventCompleted — pipeline успешно дошёл до агрегата.
	EventCompleted EventKind = "completed"
)

// Event — уведомление о результате pipeline.
type Event struct {
	Kind EventKind `json:"kind"`

	// Detail — причина отклонения или краткая сводка результата.
	Detail string `json:"detail"`

	RunID      uuid.UUID `json:"run_id"`
	Repository string    `json:"repository,omitempty"`

	// Location — где лежит агрегат (только для completed).
	Location string `json:"location,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}
