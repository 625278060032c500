package deploy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/etlflows/internal/domain"
)

// Store сохраняет описания deployment.
type Store interface {
	Upsert(ctx context.Context, d *domain.Deployment) error
}

// PoolDeclarer объявляет очереди пула воркеров.
type PoolDeclarer interface {
	DeclarePool(ctx context.Context, pool string) error
}

// PoolDeclarerFunc — адаптер функции к PoolDeclarer.
type PoolDeclarerFunc func(ctx context.Context, pool string) error

// DeclarePool вызывает f.
func (f PoolDeclarerFunc) DeclarePool(ctx context.Context, pool string) error {
	return f(ctx, pool)
}

// Registrar регистрирует deployments: сохраняет описание и объявляет
// очереди пула. Пул объявляется один раз на вызов Register.
type Registrar struct {
	store  Store
	pools  PoolDeclarer
	logger *slog.Logger
}

// NewRegistrar создаёт Registrar. pools может быть nil.
func NewRegistrar(store Store, pools PoolDeclarer, logger *slog.Logger) *Registrar {
	return &Registrar{store: store, pools: pools, logger: logger}
}

// Register проверяет и сохраняет deployments. Останавливается на первой ошибке.
func (r *Registrar) Register(ctx context.Context, deployments ...*domain.Deployment) error {
	declared := make(map[string]bool)

	for _, d := range deployments {
		ApplyDefaults(d)
		if err := Validate(d); err != nil {
			return err
		}

		if r.pools != nil && !declared[d.WorkPool] {
			if err := r.pools.DeclarePool(ctx, d.WorkPool); err != nil {
				return fmt.Errorf("declare work pool %s: %w", d.WorkPool, err)
			}
			declared[d.WorkPool] = true
		}

		if err := r.store.Upsert(ctx, d); err != nil {
			return fmt.Errorf("store deployment %s: %w", d.Name, err)
		}

		r.logger.Info("deployment registered",
			"deployment", d.Name,
			"flow", d.Flow,
			"work_pool", d.WorkPool,
			"schedule", d.Schedule,
		)
	}
	return nil
}
