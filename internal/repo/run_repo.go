package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/etlflows/internal/domain"
)

// RunRepo — репозиторий для работы с runs.
type RunRepo struct {
	pool *pgxpool.Pool
}

// NewRunRepo создаёт новый RunRepo.
func NewRunRepo(pool *pgxpool.Pool) *RunRepo {
	return &RunRepo{pool: pool}
}

const runColumns = `id, deployment, flow, parameters, status, stage, attempt, artifacts,
	rejection_reason, error, not_before, started_at, finished_at, created_at`

// Create создаёт новый run.
func (r *RunRepo) Create(ctx context.Context, run *domain.Run) error {
	paramsJSON, err := marshalNullable(run.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	query := `
		INSERT INTO runs (id, deployment, flow, parameters, status, attempt, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = r.pool.Exec(ctx, query,
		run.ID,
		nullString(run.Deployment),
		run.Flow,
		paramsJSON,
		run.Status,
		run.Attempt,
		run.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// GetByID возвращает run по ID.
func (r *RunRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = $1`

	run, err := scanRun(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return run, err
}

// List возвращает runs с фильтрацией, новые первыми.
func (r *RunRepo) List(ctx context.Context, filter RunFilter) ([]domain.Run, error) {
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := `SELECT ` + runColumns + `
		FROM runs
		WHERE ($1::text IS NULL OR deployment = $1)
		  AND ($2::text IS NULL OR status = $2::run_status)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	return r.query(ctx, query,
		nullString(filter.Deployment),
		nullString(string(filter.Status)),
		filter.Limit,
		filter.Offset,
	)
}

// ListPending возвращает готовые к запуску PENDING runs пула, старые первыми.
// Используется воркером как fallback, когда очередь недоступна.
// Runs без deployment (локальные) попадают в любой пул.
func (r *RunRepo) ListPending(ctx context.Context, workPool string, limit int) ([]domain.Run, error) {
	query := `SELECT ` + prefixed("r", runColumns) + `
		FROM runs r
		LEFT JOIN deployments d ON d.name = r.deployment
		WHERE r.status = 'PENDING'
		  AND (r.not_before IS NULL OR r.not_before <= now())
		  AND ($1::text IS NULL OR d.work_pool = $1 OR r.deployment IS NULL)
		ORDER BY r.created_at ASC
		LIMIT $2
	`
	return r.query(ctx, query, nullString(workPool), limit)
}

// Claim переводит PENDING run в RUNNING.
// Возвращает ErrInvalidState, если run уже взят другим воркером
// или попытка в БД другая (устаревшее сообщение).
func (r *RunRepo) Claim(ctx context.Context, run *domain.Run) error {
	run.MarkRunning()

	query := `
		UPDATE runs
		SET status = 'RUNNING', started_at = $2, finished_at = NULL, not_before = NULL
		WHERE id = $1 AND status = 'PENDING' AND attempt = $3
	`
	result, err := r.pool.Exec(ctx, query, run.ID, run.StartedAt, run.Attempt)
	if err != nil {
		return fmt.Errorf("claim run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrInvalidState
	}
	return nil
}

// Update сохраняет состояние run целиком.
func (r *RunRepo) Update(ctx context.Context, run *domain.Run) error {
	artifactsJSON, err := marshalNullable(run.Artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	query := `
		UPDATE runs
		SET status = $2, stage = $3, attempt = $4, artifacts = $5,
		    rejection_reason = $6, error = $7, not_before = $8, started_at = $9, finished_at = $10
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		run.ID,
		run.Status,
		nullString(string(run.Stage)),
		run.Attempt,
		artifactsJSON,
		nullString(run.RejectionReason),
		nullString(run.Error),
		run.NotBefore,
		run.StartedAt,
		run.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Record сохраняет этап и артефакты выполняющегося run.
// Artifacts сливаются с уже сохранёнными.
func (r *RunRepo) Record(ctx context.Context, runID uuid.UUID, stage domain.Stage, artifacts map[string]string) error {
	artifactsJSON, err := marshalNullable(artifacts)
	if err != nil {
		return fmt.Errorf("marshal artifacts: %w", err)
	}

	query := `
		UPDATE runs
		SET stage = $2, artifacts = COALESCE(artifacts, '{}'::jsonb) || COALESCE($3::jsonb, '{}'::jsonb)
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query, runID, string(stage), artifactsJSON)
	if err != nil {
		return fmt.Errorf("record run progress: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

// RunFilter — параметры фильтрации runs.
type RunFilter struct {
	Deployment string
	Status     domain.RunStatus
	Limit      int
	Offset     int
}

func (r *RunRepo) query(ctx context.Context, query string, args ...any) ([]domain.Run, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}
	return runs, rows.Err()
}

// scanRun сканирует строку в Run. pgx.Rows реализует pgx.Row,
// поэтому одна функция обслуживает и QueryRow, и Query.
func scanRun(row pgx.Row) (*domain.Run, error) {
	var run domain.Run
	var paramsJSON, artifactsJSON []byte
	var deployment, stage, reason, runError *string

	err := row.Scan(
		&run.ID,
		&deployment,
		&run.Flow,
		&paramsJSON,
		&run.Status,
		&stage,
		&run.Attempt,
		&artifactsJSON,
		&reason,
		&runError,
		&run.NotBefore,
		&run.StartedAt,
		&run.FinishedAt,
		&run.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan run: %w", err)
	}

	if paramsJSON != nil {
		if err := json.Unmarshal(paramsJSON, &run.Parameters); err != nil {
			return nil, fmt.Errorf("unmarshal parameters: %w", err)
		}
	}
	if artifactsJSON != nil {
		if err := json.Unmarshal(artifactsJSON, &run.Artifacts); err != nil {
			return nil, fmt.Errorf("unmarshal artifacts: %w", err)
		}
	}

	run.Deployment = derefString(deployment)
	run.Stage = domain.Stage(derefString(stage))
	run.RejectionReason = derefString(reason)
	run.Error = derefString(runError)

	return &run, nil
}
