// Package engine содержит ядро ETL: разбор, валидацию и преобразование записи.
//
// Включает:
//   - flatten.go    — разбор JSON и разворачивание вложенных объектов
//   - schema.go     — проверка пяти обязательных полей RepoStats
//   - rules.go      — бизнес-правила (min_stars)
//   - outcome.go    — Validate: схема + правила → Outcome
//   - transform.go  — Clean и Aggregate
//   - jsonschema.go — JSON Schema для RepoStats
//
// Всё в пакете синхронно и без общего состояния: функции можно
// вызывать из любого числа горутин. Ожидаемые отказы (схема, правила)
// возвращаются как Outcome, неожиданные — как *TransformError.
package engine
