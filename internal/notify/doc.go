// Package notify доставляет события pipeline (rejected, completed).
//
// Ядро только формирует domain.Event. Как событие дойдёт до человека,
// решает Notifier: письмо через SMTP, сообщение в RabbitMQ для
// etl-notifier или запись в лог.
package notify
