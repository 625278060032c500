package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/telemetry"
)

// MessageHandler возвращает mq.Handler для очереди notifications.
//
// Неизвестный тип или битый payload отклоняются без повтора. Ошибка
// доставки возвращает сообщение в очередь один раз, повторная ошибка
// на redelivered сообщении отклоняет его.
func MessageHandler(n Notifier, logger *slog.Logger) mq.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "notifier")

	return func(ctx context.Context, d *mq.Delivery) error {
		if d.Message.Type != mq.MessageTypeNotification {
			return fmt.Errorf("%w: unexpected message type %s", mq.ErrReject, d.Message.Type)
		}

		payload, err := mq.ParsePayload[mq.NotificationPayload](&d.Message)
		if err != nil {
			return fmt.Errorf("%w: %v", mq.ErrReject, err)
		}
		event := payload.Event

		if err := n.Notify(ctx, event); err != nil {
			telemetry.Notifications.WithLabelValues(string(event.Kind), "failed").Inc()
			if d.Redelivered() {
				logger.Error("dropping notification after redelivery",
					"run_id", event.RunID, "kind", event.Kind, "error", err)
				return fmt.Errorf("%w: %v", mq.ErrReject, err)
			}
			return err
		}

		telemetry.Notifications.WithLabelValues(string(event.Kind), "delivered").Inc()
		logger.Info("notification delivered", "run_id", event.RunID, "kind", event.Kind)
		return nil
	}
}
