// Package cli реализует инструмент командной строки etl.
//
// # Обзор
//
// Команды делятся на две группы:
//   - локальные (run, validate, schema) выполняют ядро и pipeline в
//     процессе CLI, без API и очередей;
//   - удалённые (deploy, deployment, submit, runs) работают через
//     HTTP API etl-api.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для etlflows API. Инкапсулирует запросы, разбор
// конвертов ({data}, {data,total}, {error}) и ошибки (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	deployments, err := client.ListDeployments(ctx)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы и пары ключ-значение (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: etl runs list --json | jq .
//
// ## Commands
//
// Каждая команда создаётся фабричной функцией (NewDeployCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags. Локальный run
// получает RunnerFactory, собранную из config.Config.
package cli
