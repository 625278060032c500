package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/etlflows/internal/domain"
)

// Executor выполняет одну попытку run конкретного flow.
//
// Ожидаемые исходы (успех, отклонение данных) возвращаются в ExecutionResult.
// error означает сбой инфраструктуры: воркер повторит run, если это
// разрешено deployment и ошибка не обёрнута в ErrNonRetryable.
// При ошибке result может содержать частичный прогресс (этап, артефакты).
type Executor interface {
	Execute(ctx context.Context, run *domain.Run) (*ExecutionResult, error)
}

// ExecutorFunc — адаптер функции к Executor.
type ExecutorFunc func(ctx context.Context, run *domain.Run) (*ExecutionResult, error)

// Execute вызывает f.
func (f ExecutorFunc) Execute(ctx context.Context, run *domain.Run) (*ExecutionResult, error) {
	return f(ctx, run)
}

// ExecutionResult — результат попытки run.
type ExecutionResult struct {
	// Status — SUCCEEDED или REJECTED.
	Status domain.RunStatus

	// Stage — последний достигнутый этап (для ETL).
	Stage domain.Stage

	// Reason — причина отклонения.
	Reason string

	// Artifacts — сохранённые артефакты.
	Artifacts map[string]string

	// Outputs — итоговые значения для логов.
	Outputs map[string]any
}

// Registry — реестр executor'ов по имени flow.
type Registry struct {
	executors map[string]Executor
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{executors: make(map[string]Executor)}
}

// Register добавляет executor для flow.
func (r *Registry) Register(flow string, executor Executor) {
	r.executors[flow] = executor
}

// Get возвращает executor для flow.
func (r *Registry) Get(flow string) (Executor, error) {
	executor, ok := r.executors[flow]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFlow, flow)
	}
	return executor, nil
}

// Flows возвращает зарегистрированные flow по алфавиту.
func (r *Registry) Flows() []string {
	flows := make([]string, 0, len(r.executors))
	for name := range r.executors {
		flows = append(flows, name)
	}
	sort.Strings(flows)
	return flows
}
