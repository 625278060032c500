package worker

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/pipeline"
)

// PipelineRunner выполняет ETL pipeline для одного run.
type PipelineRunner interface {
	Run(ctx context.Context, runID uuid.UUID, cfg domain.ETLConfig) (*pipeline.Result, error)
}

// ETLExecutor — executor для flow etl_s3_pipeline.
//
// Параметры run перекрывают Defaults: обычно из окружения воркера
// приходят OUTPUT_LOCATION и MIN_STARS, а repository — из deployment.
type ETLExecutor struct {
	Pipeline PipelineRunner
	Defaults domain.ETLConfig
}

// Execute запускает pipeline.
func (e *ETLExecutor) Execute(ctx context.Context, run *domain.Run) (*ExecutionResult, error) {
	cfg, err := e.config(run.Parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNonRetryable, err)
	}

	res, err := e.Pipeline.Run(ctx, run.ID, cfg)

	var result *ExecutionResult
	if res != nil {
		result = &ExecutionResult{
			Stage:     res.Stage,
			Artifacts: res.Artifacts,
		}
	}

	if err != nil {
		if errors.Is(err, pipeline.ErrInvalidConfig) || errors.Is(err, pipeline.ErrTransform) {
			return result, fmt.Errorf("%w: %w", ErrNonRetryable, err)
		}
		return result, err
	}

	if res.Rejected() {
		result.Status = domain.RunStatusRejected
		result.Reason = res.Reason
		return result, nil
	}

	result.Status = domain.RunStatusSucceeded
	if res.Aggregate != nil {
		result.Outputs = map[string]any{
			"repository_name":  res.Aggregate.RepositoryName,
			"total_engagement": res.Aggregate.TotalEngagement,
			"engagement_ratio": res.Aggregate.EngagementRatio,
		}
	}
	return result, nil
}

func (e *ETLExecutor) config(params map[string]any) (domain.ETLConfig, error) {
	cfg, err := domain.ConfigFromParameters(params)
	if err != nil {
		return domain.ETLConfig{}, err
	}
	if cfg.Repository == "" {
		cfg.Repository = e.Defaults.Repository
	}
	if cfg.OutputLocation == "" {
		cfg.OutputLocation = e.Defaults.OutputLocation
	}
	if cfg.MinStars == nil {
		cfg.MinStars = e.Defaults.MinStars
	}
	return cfg, nil
}
