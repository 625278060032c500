// Package telemetry обеспечивает наблюдаемость ETL сервисов.
//
// Включает:
//   - logging.go — structured logging через slog (run_id, repository, stage)
//   - metrics.go — Prometheus метрики pipeline, хранилища и уведомлений
//
// etl-api, etl-worker и etl-notifier пишут логи в одном формате
// и экспортируют метрики на /metrics endpoint.
package telemetry
