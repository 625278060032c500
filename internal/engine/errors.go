package engine

import (
	"errors"
	"fmt"
	"strings"
)

// Ошибки разбора и преобразования.
var (
	// ErrNotObject — корень JSON-документа не объект.
	ErrNotObject = errors.New("raw document is not a JSON object")

	// ErrOverflow — переполнение int64 при агрегации.
	ErrOverflow = errors.New("integer overflow")
)

// Причины ошибок схемы.
const (
	ReasonMissing    = "missing required field"
	ReasonNotString  = "expected string"
	ReasonEmpty      = "must not be empty"
	ReasonNotInteger = "expected non-negative integer"
)

// SchemaError — структурная ошибка: поле отсутствует или имеет неверный тип.
type SchemaError struct {
	Field  string // имя поля, на котором остановилась проверка
	Reason string // описание проблемы
}

// Error реализует интерфейс error.
func (e *SchemaError) Error() string {
	return "schema: field " + e.Field + ": " + e.Reason
}

// RuleError — нарушение бизнес-правила.
type RuleError struct {
	Rule      string // имя правила, например "min_stars"
	Field     string // проверяемое поле RepoStats
	Threshold int64
	Actual    int64
}

// Error реализует интерфейс error.
func (e *RuleError) Error() string {
	return fmt.Sprintf("business rule: %s(%d) < %s(%d)", e.Field, e.Actual, e.Rule, e.Threshold)
}

// RuleViolations — все нарушения, найденные за один проход правил.
type RuleViolations []*RuleError

// Error реализует интерфейс error.
func (v RuleViolations) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// Unwrap позволяет errors.As находить отдельные *RuleError.
func (v RuleViolations) Unwrap() []error {
	errs := make([]error, len(v))
	for i, e := range v {
		errs[i] = e
	}
	return errs
}

// TransformError — неожиданная ошибка при очистке или агрегации.
type TransformError struct {
	Op  string // операция, например "total_engagement"
	Err error
}

// Error реализует интерфейс error.
func (e *TransformError) Error() string {
	return "transform " + e.Op + ": " + e.Err.Error()
}

// Unwrap возвращает базовую ошибку.
func (e *TransformError) Unwrap() error {
	return e.Err
}
