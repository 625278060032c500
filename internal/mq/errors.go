package mq

import "errors"

// Ошибки транспорта.
var (
	// ErrNoChannel — AMQP канал недоступен (нет соединения).
	ErrNoChannel = errors.New("no amqp channel available")

	// ErrReject — сообщение нельзя обработать ни сейчас, ни позже.
	// Handler оборачивает его, чтобы consumer отправил сообщение в DLQ
	// без возврата в очередь.
	ErrReject = errors.New("reject message")

	// ErrEmptyPool — не указано имя пула воркеров.
	ErrEmptyPool = errors.New("work pool name is required")
)
