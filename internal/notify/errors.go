package notify

import "errors"

// Ошибки уведомлений.
var (
	// ErrSend — уведомление не доставлено.
	ErrSend = errors.New("notification send failed")

	// ErrNoRecipients — не заданы получатели.
	ErrNoRecipients = errors.New("no recipients configured")

	// ErrUnknownKind — неизвестный тип события.
	ErrUnknownKind = errors.New("unknown event kind")
)
