package worker

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/telemetry"
)

// DefaultInputValue — input_value, если параметр не задан.
const DefaultInputValue = 10

// ProcessingExecutor — executor для flow data_processing_flow.
//
// Два шага: process_data удваивает input_value, validate_result
// проверяет, что результат не пустой. FailureRate задаёт долю
// искусственных сбоев process_data, чтобы проверять повторы пула.
type ProcessingExecutor struct {
	// FailureRate — вероятность сбоя в [0, 1]. По умолчанию 0.
	FailureRate float64

	// Delay — имитация времени обработки.
	Delay time.Duration

	// Rand — источник случайных чисел в [0, 1). По умолчанию rand.Float64.
	Rand func() float64
}

// Execute выполняет process_data и validate_result.
func (e *ProcessingExecutor) Execute(ctx context.Context, run *domain.Run) (*ExecutionResult, error) {
	input, err := inputValue(run.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonRetryable, err)
	}

	logger := telemetry.FromContext(ctx)
	logger.Info("process_data", "input_value", input)

	processed, err := e.process(ctx, input)
	if err != nil {
		return nil, err
	}

	valid := len(processed) > 0
	logger.Info("validate_result", "result", processed, "is_valid", valid)
	if !valid {
		return &ExecutionResult{
			Status: domain.RunStatusRejected,
			Reason: "validate_result: empty result",
		}, nil
	}

	return &ExecutionResult{
		Status: domain.RunStatusSucceeded,
		Outputs: map[string]any{
			"result":   processed,
			"is_valid": valid,
		},
	}, nil
}

func (e *ProcessingExecutor) process(ctx context.Context, input int64) (string, error) {
	random := e.Rand
	if random == nil {
		random = rand.Float64
	}
	if random() < e.FailureRate {
		return "", fmt.Errorf("%w: random processing error", ErrProcessing)
	}

	if e.Delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(e.Delay):
		}
	}

	if input > math.MaxInt64/2 || input < math.MinInt64/2 {
		return "", fmt.Errorf("%w: input_value %d overflows", ErrNonRetryable, input)
	}
	return fmt.Sprintf("Processed data: %d", input*2), nil
}

// inputValue достаёт целый input_value из параметров run.
func inputValue(params map[string]any) (int64, error) {
	v, ok := params["input_value"]
	if !ok || v == nil {
		return DefaultInputValue, nil
	}
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, fmt.Errorf("input_value must be an integer, got %v", n)
		}
		return int64(n), nil
	default:
		return 0, fmt.Errorf("input_value must be an integer, got %T", v)
	}
}
