package notify

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shaiso/etlflows/internal/domain"
)

// Notifier доставляет событие pipeline получателю.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

// NotifierFunc — адаптер функции к Notifier.
type NotifierFunc func(ctx context.Context, event domain.Event) error

// Notify реализует Notifier.
func (f NotifierFunc) Notify(ctx context.Context, event domain.Event) error {
	return f(ctx, event)
}

// Nop ничего не отправляет.
var Nop Notifier = NotifierFunc(func(context.Context, domain.Event) error { return nil })

// LogNotifier пишет события в лог.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier создаёт LogNotifier.
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

// Notify реализует Notifier.
func (n *LogNotifier) Notify(_ context.Context, event domain.Event) error {
	attrs := []any{
		"kind", event.Kind,
		"run_id", event.RunID,
		"repository", event.Repository,
		"detail", event.Detail,
	}
	if event.Location != "" {
		attrs = append(attrs, "location", event.Location)
	}

	if event.Kind == domain.EventRejected {
		n.logger.Warn("pipeline notification", attrs...)
	} else {
		n.logger.Info("pipeline notification", attrs...)
	}
	return nil
}

// Multi рассылает событие всем notifier'ам по очереди.
// Ошибки не прерывают рассылку и возвращаются вместе.
type Multi []Notifier

// Notify реализует Notifier.
func (m Multi) Notify(ctx context.Context, event domain.Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
