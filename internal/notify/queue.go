package notify

import (
	"context"
	"fmt"

	"github.com/shaiso/etlflows/internal/domain"
)

// EventPublisher публикует событие в брокер. *mq.Publisher реализует его.
type EventPublisher interface {
	PublishNotification(ctx context.Context, event domain.Event) error
}

// QueueNotifier передаёт событие в очередь notifications,
// откуда его забирает etl-notifier и отправляет письмо.
type QueueNotifier struct {
	publisher EventPublisher
}

// NewQueueNotifier создаёт QueueNotifier.
func NewQueueNotifier(publisher EventPublisher) *QueueNotifier {
	return &QueueNotifier{publisher: publisher}
}

// Notify реализует Notifier.
func (n *QueueNotifier) Notify(ctx context.Context, event domain.Event) error {
	if err := n.publisher.PublishNotification(ctx, event); err != nil {
		return fmt.Errorf("%w: queue: %v", ErrSend, err)
	}
	return nil
}
