package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/etlflows/internal/domain"
)

// DeploymentRepo — репозиторий для работы с deployments.
type DeploymentRepo struct {
	pool *pgxpool.Pool
}

// NewDeploymentRepo создаёт новый DeploymentRepo.
func NewDeploymentRepo(pool *pgxpool.Pool) *DeploymentRepo {
	return &DeploymentRepo{pool: pool}
}

const deploymentColumns = `name, flow, entrypoint, source, work_pool, tags, retries,
	retry_delay_sec, schedule, parameters, description, created_at, updated_at`

// Upsert создаёт deployment или обновляет существующий с тем же именем.
// Повторная регистрация того же файла не создаёт дубликатов.
func (r *DeploymentRepo) Upsert(ctx context.Context, d *domain.Deployment) error {
	paramsJSON, err := marshalNullable(d.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	tags := d.Tags
	if tags == nil {
		tags = []string{}
	}

	query := `
		INSERT INTO deployments (` + deploymentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (name) DO UPDATE SET
			flow = EXCLUDED.flow,
			entrypoint = EXCLUDED.entrypoint,
			source = EXCLUDED.source,
			work_pool = EXCLUDED.work_pool,
			tags = EXCLUDED.tags,
			retries = EXCLUDED.retries,
			retry_delay_sec = EXCLUDED.retry_delay_sec,
			schedule = EXCLUDED.schedule,
			parameters = EXCLUDED.parameters,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at
	`
	err = r.pool.QueryRow(ctx, query,
		d.Name,
		d.Flow,
		nullString(d.Entrypoint),
		nullString(d.Source),
		d.WorkPool,
		tags,
		d.Retries,
		d.RetryDelaySec,
		nullString(d.Schedule),
		paramsJSON,
		nullString(d.Description),
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&d.CreatedAt)
	if err != nil {
		return fmt.Errorf("upsert deployment: %w", err)
	}
	return nil
}

// GetByName возвращает deployment по имени.
func (r *DeploymentRepo) GetByName(ctx context.Context, name string) (*domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments WHERE name = $1`

	d, err := scanDeployment(r.pool.QueryRow(ctx, query, name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return d, err
}

// List возвращает все deployments по имени.
func (r *DeploymentRepo) List(ctx context.Context) ([]domain.Deployment, error) {
	query := `SELECT ` + deploymentColumns + ` FROM deployments ORDER BY name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list deployments: %w", err)
	}
	defer rows.Close()

	var deployments []domain.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, *d)
	}
	return deployments, rows.Err()
}

// Delete удаляет deployment. Runs сохраняются без ссылки на него.
func (r *DeploymentRepo) Delete(ctx context.Context, name string) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM deployments WHERE name = $1`, name)
	if err != nil {
		return fmt.Errorf("delete deployment: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDeployment(row pgx.Row) (*domain.Deployment, error) {
	var d domain.Deployment
	var entrypoint, source, schedule, description *string
	var paramsJSON []byte

	err := row.Scan(
		&d.Name,
		&d.Flow,
		&entrypoint,
		&source,
		&d.WorkPool,
		&d.Tags,
		&d.Retries,
		&d.RetryDelaySec,
		&schedule,
		&paramsJSON,
		&description,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan deployment: %w", err)
	}

	if err := unmarshalNullable(paramsJSON, &d.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}

	d.Entrypoint = derefString(entrypoint)
	d.Source = derefString(source)
	d.Schedule = derefString(schedule)
	d.Description = derefString(description)

	return &d, nil
}
