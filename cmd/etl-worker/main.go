// etl-worker — воркер пула: выполняет runs deployments.
//
// Worker:
//   - Получает run.requested из очереди pool.{WORK_POOL}
//   - Подхватывает PENDING runs из БД (polling fallback)
//   - Выполняет flow из реестра (etl_s3_pipeline, data_processing_flow)
//   - Повторяет инфраструктурные сбои через etl.retry
//
// Воркеры одного пула масштабируются горизонтально.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/shaiso/etlflows/internal/config"
	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/fetch"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/notify"
	"github.com/shaiso/etlflows/internal/pipeline"
	"github.com/shaiso/etlflows/internal/repo"
	"github.com/shaiso/etlflows/internal/storage"
	"github.com/shaiso/etlflows/internal/telemetry"
	"github.com/shaiso/etlflows/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting etl-worker")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := repo.Migrate(ctx, pool); err != nil {
		logger.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	runRepo := repo.NewRunRepo(pool)
	deploymentRepo := repo.NewDeploymentRepo(pool)

	wcfg := worker.Config{
		Runs:        runRepo,
		Deployments: deploymentRepo,
		WorkPool:    cfg.WorkPool,
		Logger:      logger,
	}

	var checks []telemetry.HealthCheck

	// Уведомления: в лог всегда, в очередь notifications при наличии RabbitMQ
	notifiers := notify.Multi{notify.NewLogNotifier(logger)}

	// RabbitMQ
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		if err := mq.DeclarePool(ctx, mqConn, cfg.WorkPool); err != nil {
			logger.Warn("failed to declare pool queues", "pool", cfg.WorkPool, "error", err)
		}

		publisher := mq.NewPublisher(mqConn, logger)
		wcfg.Publisher = publisher
		wcfg.Conn = mqConn
		checks = append(checks, telemetry.HealthCheck{Name: "rabbitmq", Ready: mqConn.IsConnected})
		notifiers = append(notifiers, notify.NewQueueNotifier(publisher))
	}

	p := pipeline.New(pipeline.Config{
		Fetcher:      newFetcher(cfg, logger),
		OpenStore:    storeOpener(cfg),
		Notifier:     notifiers,
		Recorder:     runRepo,
		NotifyPolicy: cfg.Notify.Policy,
		Logger:       logger,
	})

	registry := worker.NewRegistry()
	registry.Register(domain.FlowETLPipeline, &worker.ETLExecutor{
		Pipeline: p,
		Defaults: domain.ETLConfig{
			MinStars:       &cfg.MinStars,
			OutputLocation: cfg.Storage.OutputLocation,
		},
	})
	registry.Register(domain.FlowDataProcessing, &worker.ProcessingExecutor{
		FailureRate: cfg.FailureRate,
		Delay:       time.Second,
	})
	wcfg.Registry = registry

	w := worker.New(wcfg)
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}
	logger.Info("pool topology", "pool", cfg.WorkPool, "topology", mq.TopologyInfo(cfg.WorkPool))

	// HTTP: /healthz + /metrics
	port := ":" + cfg.WorkerPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, telemetry.NewMetricsMux(checks...)); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()

	w.Stop()
	logger.Info("etl-worker stopped")
}

// newFetcher создаёт GitHub клиент, с Redis кэшем при заданном REDIS_URL.
func newFetcher(cfg config.Config, logger *slog.Logger) fetch.Fetcher {
	var fetcher fetch.Fetcher = fetch.New(fetch.Config{
		BaseURL: cfg.GitHub.APIURL,
		Token:   cfg.GitHub.Token,
		Timeout: cfg.GitHub.Timeout,
	})
	if cfg.RedisURL == "" {
		return fetcher
	}

	rdb, err := fetch.NewRedisClient(cfg.RedisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, fetch cache disabled", "error", err)
		return fetcher
	}
	return fetch.NewCachedFetcher(fetcher, fetch.NewRedisCache(rdb), cfg.GitHub.CacheTTL, logger)
}

func storeOpener(cfg config.Config) pipeline.StoreOpener {
	opts := storage.Options{S3: storage.S3Options{
		Region:   cfg.Storage.AWSRegion,
		Endpoint: cfg.Storage.S3Endpoint,
	}}
	return func(ctx context.Context, location string) (storage.Store, error) {
		return storage.Open(ctx, location, opts)
	}
}
