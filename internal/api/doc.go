// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler и интерфейсы его зависимостей
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — recovery, счётчик запросов, логирование
//   - response.go           — JSON-ответы {data} / {error} и маппинг ошибок
//   - dto.go                — request/response структуры
//   - validate_handler.go   — /validate и /schema: ядро ETL без сохранения
//   - deployment_handler.go — /deployments
//   - run_handler.go        — /deployments/{name}/runs и /runs
package api
