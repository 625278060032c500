package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
)

// Default configuration values.
const (
	defaultWorkPool     = "default"
	defaultPollInterval = 10 * time.Second
	defaultBatchSize    = 50
	defaultPrefetch     = 1
)

// RunStore — хранилище runs, которое нужно воркеру.
type RunStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Run, error)
	ListPending(ctx context.Context, workPool string, limit int) ([]domain.Run, error)
	Claim(ctx context.Context, run *domain.Run) error
	Update(ctx context.Context, run *domain.Run) error
}

// DeploymentStore возвращает deployment по имени.
type DeploymentStore interface {
	GetByName(ctx context.Context, name string) (*domain.Deployment, error)
}

// Publisher — исходящие сообщения воркера.
type Publisher interface {
	PublishRetry(ctx context.Context, pool string, payload mq.RunRequestedPayload, delay time.Duration) error
	PublishDeadLetter(ctx context.Context, payload mq.RunRequestedPayload) error
	PublishRunCompleted(ctx context.Context, payload mq.RunCompletedPayload) error
}

// Worker исполняет runs одного пула.
//
// Worker:
//   - получает run.requested из очереди pool.{WorkPool} (event-driven)
//   - периодически забирает готовые PENDING runs из БД (polling fallback)
//   - выполняет run executor'ом его flow
//   - при сбое инфраструктуры откладывает повтор через etl.retry
//   - публикует run.completed
//
// Несколько воркеров могут обслуживать один пул: run забирается
// атомарно через RunStore.Claim.
type Worker struct {
	runs        RunStore
	deployments DeploymentStore
	publisher   Publisher
	conn        *mq.Connection
	registry    *Registry

	workPool     string
	pollInterval time.Duration
	batchSize    int
	prefetch     int
	clock        func() time.Time

	consumer *mq.Consumer

	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// Config — конфигурация Worker.
type Config struct {
	Runs        RunStore
	Deployments DeploymentStore

	// Publisher может быть nil: тогда повторы подхватывает только polling.
	Publisher Publisher

	// Conn может быть nil: тогда воркер работает только через polling.
	Conn *mq.Connection

	Registry *Registry

	WorkPool     string        // имя пула (default: "default")
	PollInterval time.Duration // интервал polling (default: 10s)
	BatchSize    int           // runs за один poll (default: 50)
	Prefetch     int           // неподтверждённых сообщений (default: 1)

	Clock  func() time.Time
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	if cfg.WorkPool == "" {
		cfg.WorkPool = defaultWorkPool
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}
	if cfg.Registry == nil {
		cfg.Registry = NewRegistry()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Worker{
		runs:         cfg.Runs,
		deployments:  cfg.Deployments,
		publisher:    cfg.Publisher,
		conn:         cfg.Conn,
		registry:     cfg.Registry,
		workPool:     cfg.WorkPool,
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		prefetch:     cfg.Prefetch,
		clock:        cfg.Clock,
		logger:       cfg.Logger.With("work_pool", cfg.WorkPool),
	}
}

// Start запускает consumer очереди пула и polling.
func (w *Worker) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	w.logger.Info("starting worker",
		"flows", w.registry.Flows(),
		"poll_interval", w.pollInterval,
		"batch_size", w.batchSize,
	)

	if w.conn != nil {
		w.consumer = mq.NewConsumer(w.conn, w.logger, mq.ConsumerConfig{
			Queue:    mq.PoolQueue(w.workPool),
			Handler:  w.handleRunRequested,
			Prefetch: w.prefetch,
		})

		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.logger.Error("run consumer error", "error", err)
			}
		}()
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.pollLoop(ctx)
	}()

	w.logger.Info("worker started")
	return nil
}

// Stop останавливает Worker и ждёт завершения текущих runs.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping worker...")

	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	if w.consumer != nil {
		w.consumer.Stop()
	}

	w.wg.Wait()

	w.logger.Info("worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop — цикл polling для fallback.
func (w *Worker) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу: подхватываем runs, созданные пока воркер был выключен
	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

// poll выполняет один цикл polling.
func (w *Worker) poll(ctx context.Context) {
	runs, err := w.runs.ListPending(ctx, w.workPool, w.batchSize)
	if err != nil {
		w.logger.Error("failed to list pending runs", "error", err)
		return
	}
	if len(runs) == 0 {
		return
	}

	w.logger.Debug("poll found pending runs", "count", len(runs))

	for i := range runs {
		if ctx.Err() != nil {
			return
		}
		err := w.processRun(ctx, runs[i].ID, 0)
		switch {
		case err == nil:
		case isExpected(err):
			w.logger.Debug("run not processed", "run_id", runs[i].ID, "reason", err)
		default:
			w.logger.Error("failed to process run from poll", "run_id", runs[i].ID, "error", err)
		}
	}
}
