// etl-notifier — доставляет уведомления pipeline из очереди notifications.
//
// Без SMTP_HOST или получателей события только пишутся в лог.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shaiso/etlflows/internal/config"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/notify"
	"github.com/shaiso/etlflows/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting etl-notifier")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	notifiers := notify.Multi{notify.NewLogNotifier(logger)}
	if cfg.SMTP.Enabled() && cfg.Notify.Enabled() {
		client, err := notify.NewSMTPClient(notify.SMTPConfig(cfg.SMTP))
		if err != nil {
			logger.Error("failed to create SMTP client", "error", err)
			os.Exit(1)
		}
		notifiers = append(notifiers, notify.NewEmailNotifier(client, notify.EmailConfig{
			From:      cfg.Notify.From,
			To:        cfg.Notify.To,
			FlowUIURL: cfg.Notify.FlowUIURL,
		}))
		logger.Info("email notifications enabled", "smtp", cfg.SMTP.Host, "recipients", len(cfg.Notify.To))
	} else {
		logger.Warn("SMTP or recipients not configured, notifications are logged only")
	}

	mqConn, err := mq.NewConnection(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("failed to connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer mqConn.Close()

	if err := mq.SetupTopology(ctx, mqConn); err != nil {
		logger.Error("failed to setup topology", "error", err)
		os.Exit(1)
	}

	port := ":" + cfg.NotifierPort
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, telemetry.NewMetricsMux(telemetry.HealthCheck{Name: "rabbitmq", Ready: mqConn.IsConnected})); err != nil {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
		Queue:   mq.QueueNotifications,
		Handler: notify.MessageHandler(notifiers, logger),
	})

	// Start блокируется до сигнала завершения
	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("consumer stopped", "error", err)
	}

	logger.Info("etl-notifier stopped")
}
