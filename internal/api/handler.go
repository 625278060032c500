package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/deploy"
	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/repo"
)

// RunStore — хранилище runs для API.
type RunStore interface {
	Create(ctx context.Context, run *domain.Run) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	List(ctx context.Context, filter repo.RunFilter) ([]domain.Run, error)
}

// DeploymentStore — хранилище deployments для API.
type DeploymentStore interface {
	Upsert(ctx context.Context, d *domain.Deployment) error
	GetByName(ctx context.Context, name string) (*domain.Deployment, error)
	List(ctx context.Context) ([]domain.Deployment, error)
	Delete(ctx context.Context, name string) error
}

// RunPublisher отправляет run в очередь пула.
type RunPublisher interface {
	PublishRunRequested(ctx context.Context, pool string, payload mq.RunRequestedPayload) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	runs        RunStore
	deployments DeploymentStore
	publisher   RunPublisher
	registrar   *deploy.Registrar
	minStars    int64
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Runs        RunStore
	Deployments DeploymentStore

	// Publisher может быть nil: run останется PENDING и будет
	// подхвачен polling'ом воркера.
	Publisher RunPublisher

	// Pools объявляет очереди пула при регистрации deployment. Может быть nil.
	Pools deploy.PoolDeclarer

	// MinStars — порог для /validate, если он не передан в запросе.
	MinStars int64

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MinStars <= 0 {
		cfg.MinStars = domain.DefaultMinStars
	}

	h := &Handler{
		runs:        cfg.Runs,
		deployments: cfg.Deployments,
		publisher:   cfg.Publisher,
		minStars:    cfg.MinStars,
		logger:      cfg.Logger,
	}
	if cfg.Deployments != nil {
		h.registrar = deploy.NewRegistrar(cfg.Deployments, cfg.Pools, cfg.Logger)
	}
	return h
}
