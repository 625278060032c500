package engine

import (
	"errors"

	"github.com/shaiso/etlflows/internal/domain"
)

// OutcomeKind различает результат валидации.
type OutcomeKind string

const (
	OutcomeValid  OutcomeKind = "valid"
	OutcomeSchema OutcomeKind = "schema"
	OutcomeRule   OutcomeKind = "rule"
)

// Outcome — результат валидации записи: Valid(stats) или Rejected(reason).
type Outcome struct {
	// Stats заполнен только для валидной записи.
	Stats domain.RepoStats

	// Reason — текст причины отклонения, пусто для валидной записи.
	Reason string

	// Err — *SchemaError или RuleViolations.
	Err error
}

// Valid возвращает true, если запись прошла схему и все правила.
func (o Outcome) Valid() bool {
	return o.Err == nil
}

// Kind возвращает тип результата.
func (o Outcome) Kind() OutcomeKind {
	var schemaErr *SchemaError
	switch {
	case o.Err == nil:
		return OutcomeValid
	case errors.As(o.Err, &schemaErr):
		return OutcomeSchema
	default:
		return OutcomeRule
	}
}

// SchemaError возвращает ошибку схемы, если запись отклонена схемой.
func (o Outcome) SchemaError() *SchemaError {
	var schemaErr *SchemaError
	if errors.As(o.Err, &schemaErr) {
		return schemaErr
	}
	return nil
}

// Violations возвращает нарушения правил, если запись отклонена правилами.
func (o Outcome) Violations() RuleViolations {
	var violations RuleViolations
	if errors.As(o.Err, &violations) {
		return violations
	}
	return nil
}

// Validate проверяет плоскую запись: сначала схему, затем все правила.
func Validate(flat map[string]any, rules ...Rule) Outcome {
	stats, err := ValidateSchema(flat)
	if err != nil {
		return Outcome{Reason: err.Error(), Err: err}
	}
	if err := CheckRules(stats, rules...); err != nil {
		return Outcome{Reason: err.Error(), Err: err}
	}
	return Outcome{Stats: stats}
}
