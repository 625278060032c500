package mq

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeRuns — запросы на выполнение run, routing key = имя пула.
	ExchangeRuns Exchange = "etl.runs"

	// ExchangeRetry — отложенные повторы. Сообщения лежат в pool.{name}.retry
	// до истечения expiration и возвращаются в etl.runs.
	ExchangeRetry Exchange = "etl.retry"

	// ExchangeEvents — события: завершение run и уведомления.
	ExchangeEvents Exchange = "etl.events"

	ExchangeDLQ Exchange = "etl.dlq"
)

// Общие очереди.
const (
	QueueNotifications Queue = "notifications"
	QueueRunsCompleted Queue = "runs.completed"
	QueueDLQRuns       Queue = "dlq.runs"
)

// Routing keys.
const (
	RoutingKeyNotification RoutingKey = "notification"
	RoutingKeyCompleted    RoutingKey = "completed"
	RoutingKeyDLQRuns      RoutingKey = "runs"
)

// PoolQueue возвращает очередь пула: pool.{name}.
func PoolQueue(pool string) Queue {
	return Queue("pool." + pool)
}

// PoolRetryQueue возвращает очередь отложенных повторов: pool.{name}.retry.
func PoolRetryQueue(pool string) Queue {
	return Queue("pool." + pool + ".retry")
}

// PoolRoutingKey — routing key пула в etl.runs и etl.retry.
func PoolRoutingKey(pool string) RoutingKey {
	return RoutingKey(pool)
}

// ValidatePoolName проверяет имя пула.
func ValidatePoolName(pool string) error {
	if strings.TrimSpace(pool) == "" {
		return ErrEmptyPool
	}
	if strings.ContainsAny(pool, " #*") {
		return fmt.Errorf("%w: invalid characters in %q", ErrEmptyPool, pool)
	}
	return nil
}

// SetupTopology объявляет обменники и общие очереди.
// Очереди пулов объявляются отдельно через DeclarePool.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues и привязки
		for _, b := range sharedBindings() {
			if err := declareAndBind(ch, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeclarePool объявляет очереди пула воркеров:
//
//	etl.runs  --{pool}--> pool.{pool}        (DLQ: dlq.runs)
//	etl.retry --{pool}--> pool.{pool}.retry  (по истечении TTL → etl.runs/{pool})
func DeclarePool(ctx context.Context, conn *Connection, pool string) error {
	if err := ValidatePoolName(pool); err != nil {
		return err
	}
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, b := range poolBindings(pool) {
			if err := declareAndBind(ch, b); err != nil {
				return err
			}
		}
		return nil
	})
}

// binding — очередь, её аргументы и привязка к обменнику.
type binding struct {
	queue      Queue
	args       amqp.Table
	exchange   Exchange
	routingKey RoutingKey
}

func sharedBindings() []binding {
	return []binding{
		{QueueNotifications, nil, ExchangeEvents, RoutingKeyNotification},
		{QueueRunsCompleted, nil, ExchangeEvents, RoutingKeyCompleted},
		{QueueDLQRuns, nil, ExchangeDLQ, RoutingKeyDLQRuns},
	}
}

func poolBindings(pool string) []binding {
	return []binding{
		{
			queue: PoolQueue(pool),
			args: amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeDLQ),
				"x-dead-letter-routing-key": string(RoutingKeyDLQRuns),
			},
			exchange:   ExchangeRuns,
			routingKey: PoolRoutingKey(pool),
		},
		{
			queue: PoolRetryQueue(pool),
			args: amqp.Table{
				"x-dead-letter-exchange":    string(ExchangeRuns),
				"x-dead-letter-routing-key": string(PoolRoutingKey(pool)),
			},
			exchange:   ExchangeRetry,
			routingKey: PoolRoutingKey(pool),
		},
	}
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	for _, ex := range []Exchange{ExchangeRuns, ExchangeRetry, ExchangeEvents, ExchangeDLQ} {
		err := ch.ExchangeDeclare(
			string(ex), // name
			"direct",   // type
			true,       // durable
			false,      // auto-deleted
			false,      // internal
			false,      // no-wait
			nil,        // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex, err)
		}
	}
	return nil
}

func declareAndBind(ch *amqp.Channel, b binding) error {
	_, err := ch.QueueDeclare(
		string(b.queue), // name
		true,            // durable
		false,           // delete when unused
		false,           // exclusive
		false,           // no-wait
		b.args,          // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.queue, err)
	}

	if err := ch.QueueBind(string(b.queue), string(b.routingKey), string(b.exchange), false, nil); err != nil {
		return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
	}
	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo(pool string) string {
	return fmt.Sprintf(`
  etlflows RabbitMQ topology:

    etl.runs (direct)
    └── %[1]s [routing: %[2]s]
            Consumer: etl-worker
            DLQ: dlq.runs

    etl.retry (direct)
    └── %[3]s [routing: %[2]s]
            TTL per message, then back to etl.runs

    etl.events (direct)
    ├── notifications [routing: notification]
    │       Consumer: etl-notifier
    └── runs.completed [routing: completed]

    etl.dlq (direct)
    └── dlq.runs [routing: runs]
            Manual processing
`, PoolQueue(pool), pool, PoolRetryQueue(pool))
}
