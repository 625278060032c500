package worker

import (
	"context"
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/repo"
	"github.com/shaiso/etlflows/internal/telemetry"
)

// handleRunRequested обрабатывает run.requested из очереди пула.
func (w *Worker) handleRunRequested(ctx context.Context, delivery *mq.Delivery) error {
	if delivery.Message.Type != mq.MessageTypeRunRequested {
		return fmt.Errorf("%w: unexpected message type %s", mq.ErrReject, delivery.Message.Type)
	}

	payload, err := mq.ParsePayload[mq.RunRequestedPayload](&delivery.Message)
	if err != nil || payload.RunID == uuid.Nil {
		return fmt.Errorf("%w: invalid run.requested payload: %v", mq.ErrReject, err)
	}

	w.logger.Debug("received run.requested",
		"run_id", payload.RunID,
		"deployment", payload.Deployment,
		"attempt", payload.Attempt,
	)

	if err := w.processRun(ctx, payload.RunID, payload.Attempt); err != nil {
		// Ожидаемые ситуации — ack
		if isExpected(err) {
			w.logger.Debug("run not processed", "run_id", payload.RunID, "reason", err)
			return nil
		}
		return err
	}
	return nil
}

// processRun забирает run, выполняет одну попытку и сохраняет исход.
// attempt > 0 — номер попытки из сообщения; 0 — run найден polling'ом.
func (w *Worker) processRun(ctx context.Context, runID uuid.UUID, attempt int) error {
	// 1. Загружаем run из БД
	run, err := w.runs.GetByID(ctx, runID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return fmt.Errorf("get run: %w", err)
	}

	// 2. Проверяем, что run ждёт именно эту попытку
	if attempt > 0 && attempt < run.Attempt {
		return fmt.Errorf("%w: message attempt %d, run attempt %d", ErrStaleAttempt, attempt, run.Attempt)
	}
	if run.Status != domain.RunStatusPending {
		return ErrRunNotPending
	}
	if !run.Ready(w.clock()) {
		return ErrRunNotReady
	}

	// 3. Забираем run
	if err := w.runs.Claim(ctx, run); err != nil {
		if errors.Is(err, repo.ErrInvalidState) {
			return ErrRunNotPending
		}
		return fmt.Errorf("claim run: %w", err)
	}

	dep := w.deployment(ctx, run)
	logger := telemetry.WithDeployment(telemetry.WithRunID(w.logger, run.ID.String()), run.Deployment)
	logger.Info("run started", "flow", run.Flow, "attempt", run.Attempt)

	// 4. Выполняем
	result, execErr := w.execute(ctx, run)

	// Исход сохраняем даже если воркер останавливается
	ctx = context.WithoutCancel(ctx)

	if result != nil {
		if result.Stage != domain.StageNone {
			run.Stage = result.Stage
		}
		for name, location := range result.Artifacts {
			run.SetArtifact(name, location)
		}
	}

	if execErr != nil {
		return w.handleFailure(ctx, run, dep, execErr)
	}

	// 5. Ожидаемый исход — финальный статус
	switch result.Status {
	case domain.RunStatusRejected:
		run.MarkRejected(result.Reason)
		logger.Warn("run rejected", "reason", result.Reason)
	default:
		run.MarkSucceeded()
		logger.Info("run succeeded", "duration", run.Duration(), "outputs", result.Outputs)
	}

	if err := w.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	telemetry.WorkerRuns.WithLabelValues(run.Flow, string(run.Status)).Inc()

	w.publishCompletion(ctx, run)
	return nil
}

// execute находит executor и выполняет попытку.
func (w *Worker) execute(ctx context.Context, run *domain.Run) (*ExecutionResult, error) {
	executor, err := w.registry.Get(run.Flow)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNonRetryable, err)
	}

	ctx = telemetry.WithLogger(ctx, telemetry.WithRunID(w.logger, run.ID.String()))
	result, err := executor.Execute(ctx, run)
	if err == nil && result == nil {
		return nil, fmt.Errorf("%w: executor for %s returned no result", ErrNonRetryable, run.Flow)
	}
	return result, err
}

// handleFailure откладывает повтор или завершает run с FAILED.
func (w *Worker) handleFailure(ctx context.Context, run *domain.Run, dep *domain.Deployment, execErr error) error {
	logger := telemetry.WithRunID(w.logger, run.ID.String())

	if retryable(execErr) && dep != nil && dep.CanRetry(run.Attempt) {
		delay := dep.RetryDelay()
		run.ResetForRetry(execErr.Error(), delay)
		if err := w.runs.Update(ctx, run); err != nil {
			return fmt.Errorf("update run for retry: %w", err)
		}
		telemetry.RunRetries.WithLabelValues(run.Flow).Inc()

		logger.Warn("run failed, retry scheduled",
			"attempt", run.Attempt,
			"retries", dep.Retries,
			"delay", delay,
			"error", execErr,
		)

		if w.publisher != nil {
			if err := w.publisher.PublishRetry(ctx, dep.WorkPool, requestPayload(run), delay); err != nil {
				// run в БД уже PENDING с not_before — его подхватит polling
				logger.Warn("failed to publish retry", "error", err)
			}
		}
		return nil
	}

	run.MarkFailed(execErr.Error())
	if err := w.runs.Update(ctx, run); err != nil {
		return fmt.Errorf("update run to failed: %w", err)
	}
	telemetry.WorkerRuns.WithLabelValues(run.Flow, string(run.Status)).Inc()

	logger.Error("run failed", "attempt", run.Attempt, "error", execErr)

	if w.publisher != nil {
		if err := w.publisher.PublishDeadLetter(ctx, requestPayload(run)); err != nil {
			logger.Warn("failed to publish dead letter", "error", err)
		}
	}
	w.publishCompletion(ctx, run)
	return nil
}

// publishCompletion публикует run.completed. Ошибка публикации
// не влияет на run: статус уже сохранён в БД.
func (w *Worker) publishCompletion(ctx context.Context, run *domain.Run) {
	if w.publisher == nil {
		return
	}

	payload := mq.RunCompletedPayload{
		RunID:      run.ID,
		Deployment: run.Deployment,
		Status:     run.Status,
		Reason:     run.RejectionReason,
		Error:      run.Error,
		Attempt:    run.Attempt,
	}
	if err := w.publisher.PublishRunCompleted(ctx, payload); err != nil {
		w.logger.Warn("failed to publish run.completed", "run_id", run.ID, "error", err)
	}
}

// deployment загружает deployment run. Nil — run без deployment
// или deployment удалён; такие runs не повторяются.
func (w *Worker) deployment(ctx context.Context, run *domain.Run) *domain.Deployment {
	if run.Deployment == "" || w.deployments == nil {
		return nil
	}
	dep, err := w.deployments.GetByName(ctx, run.Deployment)
	if err != nil {
		w.logger.Warn("failed to load deployment, retries disabled",
			"run_id", run.ID,
			"deployment", run.Deployment,
			"error", err,
		)
		return nil
	}
	return dep
}

func retryable(err error) bool {
	return !errors.Is(err, ErrNonRetryable)
}

func requestPayload(run *domain.Run) mq.RunRequestedPayload {
	return mq.RunRequestedPayload{
		RunID:      run.ID,
		Deployment: run.Deployment,
		Flow:       run.Flow,
		Parameters: maps.Clone(run.Parameters),
		Attempt:    run.Attempt,
	}
}
