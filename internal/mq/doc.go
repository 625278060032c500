// Package mq — транспорт RabbitMQ для пулов воркеров и уведомлений.
//
// Структура:
//   - connection.go — соединение с reconnect
//   - topology.go   — exchanges, очереди пулов, привязки
//   - publisher.go  — публикация run.requested, run.completed, notification
//   - consumer.go   — потребление с ручным ack
//
// Повтор run не возвращает сообщение в ту же очередь: воркер публикует
// его в etl.retry с expiration, и после истечения TTL брокер
// перекладывает его обратно в pool.{name}.
package mq
