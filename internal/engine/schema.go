package engine

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/shaiso/etlflows/internal/domain"
)

// ValidateSchema извлекает RepoStats из плоской записи.
//
// Поля проверяются в порядке domain.RequiredFields; первая проблема
// возвращается как *SchemaError. Частично заполненный RepoStats не
// возвращается никогда.
func ValidateSchema(flat map[string]any) (domain.RepoStats, error) {
	name, err := requireString(flat, domain.FieldName)
	if err != nil {
		return domain.RepoStats{}, err
	}
	fullName, err := requireString(flat, domain.FieldFullName)
	if err != nil {
		return domain.RepoStats{}, err
	}
	stars, err := requireCount(flat, domain.FieldStargazersCount)
	if err != nil {
		return domain.RepoStats{}, err
	}
	watchers, err := requireCount(flat, domain.FieldWatchersCount)
	if err != nil {
		return domain.RepoStats{}, err
	}
	forks, err := requireCount(flat, domain.FieldForksCount)
	if err != nil {
		return domain.RepoStats{}, err
	}

	return domain.RepoStats{
		Name:            name,
		FullName:        fullName,
		StargazersCount: stars,
		WatchersCount:   watchers,
		ForksCount:      forks,
	}, nil
}

func requireString(flat map[string]any, field string) (string, error) {
	v, ok := flat[field]
	if !ok {
		return "", &SchemaError{Field: field, Reason: ReasonMissing}
	}
	s, ok := v.(string)
	if !ok {
		return "", &SchemaError{Field: field, Reason: fmt.Sprintf("%s, got %s", ReasonNotString, typeName(v))}
	}
	if s == "" {
		return "", &SchemaError{Field: field, Reason: ReasonEmpty}
	}
	return s, nil
}

func requireCount(flat map[string]any, field string) (int64, error) {
	v, ok := flat[field]
	if !ok {
		return 0, &SchemaError{Field: field, Reason: ReasonMissing}
	}
	n, ok := coerceCount(v)
	if !ok {
		return 0, &SchemaError{Field: field, Reason: fmt.Sprintf("%s, got %s", ReasonNotInteger, describe(v))}
	}
	return n, nil
}

// coerceCount приводит значение к неотрицательному int64.
// Принимает целые, дробные числа без дробной части и строки с целым числом.
func coerceCount(v any) (int64, bool) {
	var n int64
	switch x := v.(type) {
	case json.Number:
		i, ok := parseIntegral(x.String())
		if !ok {
			return 0, false
		}
		n = i
	case string:
		i, ok := parseIntegral(strings.TrimSpace(x))
		if !ok {
			return 0, false
		}
		n = i
	case int:
		n = int64(x)
	case int32:
		n = int64(x)
	case int64:
		n = x
	case float64:
		i, ok := floatToInt(x)
		if !ok {
			return 0, false
		}
		n = i
	default:
		return 0, false
	}
	if n < 0 {
		return 0, false
	}
	return n, true
}

func parseIntegral(s string) (int64, bool) {
	if s == "" {
		return 0, false
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i, true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return floatToInt(f)
}

func floatToInt(f float64) (int64, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f >= math.MaxInt64 || f < math.MinInt64 {
		return 0, false
	}
	return int64(f), true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case json.Number, float64, int, int32, int64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func describe(v any) string {
	switch x := v.(type) {
	case json.Number:
		return "number " + x.String()
	case string:
		return strconv.Quote(x)
	default:
		return typeName(v)
	}
}
