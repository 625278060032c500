package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultMinStars — порог звёзд по умолчанию для бизнес-правила.
const DefaultMinStars = 10

// Ошибки конфигурации запуска.
var (
	// ErrInvalidRepository — репозиторий не в формате "owner/name".
	ErrInvalidRepository = errors.New("repository must be in owner/name form")

	// ErrInvalidMinStars — порог не является неотрицательным целым.
	ErrInvalidMinStars = errors.New("min_stars must be a non-negative integer")

	// ErrMissingOutput — не задано место хранения артефактов.
	ErrMissingOutput = errors.New("output_location is required")
)

// ETLConfig — конфигурация одного запуска pipeline.
//
// Передаётся вызывающей стороной (CLI, API, сообщение из очереди) и
// протаскивается явно через все вызовы. Глобального состояния нет.
type ETLConfig struct {
	// Repository — GitHub репозиторий, например "PrefectHQ/prefect".
	Repository string `json:"repository" yaml:"repository"`

	// MinStars — порог для правила stargazers_count >= min_stars.
	// Nil означает DefaultMinStars.
	MinStars *int64 `json:"min_stars,omitempty" yaml:"min_stars,omitempty"`

	// OutputLocation — куда сохранять артефакты: s3://, gs://, file:// или путь.
	OutputLocation string `json:"output_location" yaml:"output_location"`
}

// Threshold возвращает порог звёзд с учётом значения по умолчанию.
func (c ETLConfig) Threshold() int64 {
	if c.MinStars == nil {
		return DefaultMinStars
	}
	return *c.MinStars
}

// WithDefaults возвращает копию с заполненными значениями по умолчанию.
func (c ETLConfig) WithDefaults() ETLConfig {
	if c.MinStars == nil {
		n := int64(DefaultMinStars)
		c.MinStars = &n
	}
	c.Repository = strings.TrimSpace(c.Repository)
	return c
}

// Validate проверяет конфигурацию.
func (c ETLConfig) Validate() error {
	owner, name, ok := strings.Cut(strings.TrimSpace(c.Repository), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return fmt.Errorf("%w: %q", ErrInvalidRepository, c.Repository)
	}
	if c.Threshold() < 0 {
		return ErrInvalidMinStars
	}
	if strings.TrimSpace(c.OutputLocation) == "" {
		return ErrMissingOutput
	}
	return nil
}

// ConfigFromParameters собирает ETLConfig из параметров run.
// Числа могут прийти как float64 (JSON), int (YAML), json.Number или строка.
// Порог, который нельзя без потерь привести к неотрицательному целому,
// возвращает ErrInvalidMinStars: подменять правило значением по умолчанию нельзя.
func ConfigFromParameters(params map[string]any) (ETLConfig, error) {
	var cfg ETLConfig
	if v, ok := params["repository"].(string); ok {
		cfg.Repository = v
	}
	if v, ok := params["output_location"].(string); ok {
		cfg.OutputLocation = v
	}
	if v, ok := params["min_stars"]; ok && v != nil {
		n, err := parseMinStars(v)
		if err != nil {
			return ETLConfig{}, err
		}
		cfg.MinStars = &n
	}
	return cfg, nil
}

// 2^63 точно представимо в float64.
const maxInt64Float = float64(1 << 63)

func parseMinStars(v any) (int64, error) {
	var n int64
	switch v := v.(type) {
	case int:
		n = int64(v)
	case int64:
		n = v
	case float64:
		if v != math.Trunc(v) || v < -maxInt64Float || v >= maxInt64Float {
			return 0, fmt.Errorf("%w: got %v", ErrInvalidMinStars, v)
		}
		n = int64(v)
	case json.Number:
		if i, err := v.Int64(); err == nil {
			n = i
			break
		}
		f, err := v.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: got %q", ErrInvalidMinStars, v.String())
		}
		return parseMinStars(f)
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: got %q", ErrInvalidMinStars, v)
		}
		n = i
	default:
		return 0, fmt.Errorf("%w: got %T", ErrInvalidMinStars, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: got %d", ErrInvalidMinStars, n)
	}
	return n, nil
}

// Parameters возвращает конфигурацию в виде параметров run.
func (c ETLConfig) Parameters() map[string]any {
	return map[string]any{
		"repository":      c.Repository,
		"min_stars":       c.Threshold(),
		"output_location": c.OutputLocation,
	}
}
