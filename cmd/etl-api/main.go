package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/etlflows/internal/api"
	"github.com/shaiso/etlflows/internal/config"
	"github.com/shaiso/etlflows/internal/deploy"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/repo"
	"github.com/shaiso/etlflows/internal/telemetry"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting etl-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Подключаемся к базе данных
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
	logger.Info("connected to database")

	hcfg := api.Config{
		Runs:        repo.NewRunRepo(pool),
		Deployments: repo.NewDeploymentRepo(pool),
		MinStars:    cfg.MinStars,
		Logger:      logger,
	}

	var checks []telemetry.HealthCheck

	// RabbitMQ: без него runs остаются PENDING и подхватываются polling'ом воркера
	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, runs will wait for worker polling", "error", err)
	} else {
		defer mqConn.Close()

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		hcfg.Publisher = mq.NewPublisher(mqConn, logger)
		hcfg.Pools = deploy.PoolDeclarerFunc(func(ctx context.Context, pool string) error {
			return mq.DeclarePool(ctx, mqConn, pool)
		})
		checks = append(checks, telemetry.HealthCheck{Name: "rabbitmq", Ready: mqConn.IsConnected})
		logger.Info("RabbitMQ connected")
	}

	handler := api.NewHandler(hcfg)

	mux := http.NewServeMux()

	// Health и metrics
	mux.Handle("/healthz", telemetry.HealthHandler(checks...))
	mux.Handle("/metrics", promhttp.Handler())

	handler.RegisterRoutes(mux)

	addr := ":" + cfg.APIPort
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}
