// Package worker исполняет runs пула воркеров.
//
// Структура:
//   - worker.go               — жизненный цикл, consumer и polling
//   - handlers.go             — одна попытка run, повторы, dead letter
//   - executor.go             — интерфейс Executor и реестр по имени flow
//   - etl_executor.go         — etl_s3_pipeline
//   - processing_executor.go  — data_processing_flow
//
// Повтор выполняется оркестратором, а не внутри pipeline: после сбоя run
// возвращается в PENDING с not_before и публикуется в etl.retry.
package worker
