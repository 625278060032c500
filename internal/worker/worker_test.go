package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/pipeline"
	"github.com/shaiso/etlflows/internal/repo"
)

// --- Fakes ---

type fakeRuns struct {
	mu   sync.Mutex
	runs map[uuid.UUID]domain.Run
}

func newFakeRuns(runs ...*domain.Run) *fakeRuns {
	f := &fakeRuns{runs: make(map[uuid.UUID]domain.Run)}
	for _, r := range runs {
		f.runs[r.ID] = *r
	}
	return f
}

func (f *fakeRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (f *fakeRuns) ListPending(_ context.Context, _ string, limit int) ([]domain.Run, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Run
	for _, r := range f.runs {
		if r.Ready(time.Now()) && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeRuns) Claim(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.runs[run.ID].Status != domain.RunStatusPending {
		return repo.ErrInvalidState
	}
	run.MarkRunning()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRuns) Update(_ context.Context, run *domain.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs[run.ID] = *run
	return nil
}

func (f *fakeRuns) get(id uuid.UUID) domain.Run {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.runs[id]
}

type fakeDeployments map[string]*domain.Deployment

func (f fakeDeployments) GetByName(_ context.Context, name string) (*domain.Deployment, error) {
	d, ok := f[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return d, nil
}

type retryCall struct {
	pool    string
	payload mq.RunRequestedPayload
	delay   time.Duration
}

type fakePublisher struct {
	mu        sync.Mutex
	retries   []retryCall
	dead      []mq.RunRequestedPayload
	completed []mq.RunCompletedPayload
}

func (p *fakePublisher) PublishRetry(_ context.Context, pool string, payload mq.RunRequestedPayload, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.retries = append(p.retries, retryCall{pool, payload, delay})
	return nil
}

func (p *fakePublisher) PublishDeadLetter(_ context.Context, payload mq.RunRequestedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.dead = append(p.dead, payload)
	return nil
}

func (p *fakePublisher) PublishRunCompleted(_ context.Context, payload mq.RunCompletedPayload) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed = append(p.completed, payload)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const testFlow = "test_flow"

func testDeployment(retries int) fakeDeployments {
	return fakeDeployments{
		"dep": {Name: "dep", Flow: testFlow, WorkPool: "etl", Retries: retries, RetryDelaySec: 30},
	}
}

func newTestWorker(runs *fakeRuns, deps fakeDeployments, pub *fakePublisher, exec Executor) *Worker {
	registry := NewRegistry()
	registry.Register(testFlow, exec)
	cfg := Config{
		Runs:        runs,
		Deployments: deps,
		Registry:    registry,
		WorkPool:    "etl",
		Logger:      testLogger(),
	}
	if pub != nil {
		cfg.Publisher = pub
	}
	return New(cfg)
}

func succeed(status domain.RunStatus, reason string) Executor {
	return ExecutorFunc(func(context.Context, *domain.Run) (*ExecutionResult, error) {
		return &ExecutionResult{Status: status, Reason: reason, Artifacts: map[string]string{"raw-data.json": "/tmp/raw"}}, nil
	})
}

func fail(err error) Executor {
	return ExecutorFunc(func(context.Context, *domain.Run) (*ExecutionResult, error) {
		return nil, err
	})
}

// --- processRun Tests ---

func TestProcessRun_Succeeded(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := newTestWorker(runs, testDeployment(2), pub, succeed(domain.RunStatusSucceeded, ""))

	if err := w.processRun(context.Background(), run.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusSucceeded || got.FinishedAt == nil {
		t.Errorf("expected SUCCEEDED with finished_at, got %s", got.Status)
	}
	if got.Artifacts["raw-data.json"] != "/tmp/raw" {
		t.Errorf("artifacts must be recorded, got %v", got.Artifacts)
	}
	if len(pub.completed) != 1 || pub.completed[0].Status != domain.RunStatusSucceeded {
		t.Errorf("expected one run.completed, got %+v", pub.completed)
	}
	if len(pub.retries) != 0 || len(pub.dead) != 0 {
		t.Error("successful run must not be retried or dead-lettered")
	}
}

func TestProcessRun_RejectedIsTerminal(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	reason := "business rule: stargazers_count(5) < min_stars(10)"
	w := newTestWorker(runs, testDeployment(3), pub, succeed(domain.RunStatusRejected, reason))

	if err := w.processRun(context.Background(), run.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusRejected || got.RejectionReason != reason {
		t.Errorf("expected REJECTED with reason, got %s %q", got.Status, got.RejectionReason)
	}
	if got.Stage != domain.StageRejected {
		t.Errorf("expected stage REJECTED, got %s", got.Stage)
	}
	if len(pub.retries) != 0 {
		t.Error("rejection must never be retried")
	}
	if len(pub.completed) != 1 || pub.completed[0].Reason != reason {
		t.Errorf("expected run.completed with reason, got %+v", pub.completed)
	}
}

func TestProcessRun_RetryScheduled(t *testing.T) {
	run := domain.NewRun("dep", testFlow, map[string]any{"repository": "o/x"})
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := newTestWorker(runs, testDeployment(2), pub, fail(errors.New("upstream 503")))

	if err := w.processRun(context.Background(), run.ID, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusPending || got.Attempt != 2 {
		t.Errorf("expected PENDING attempt 2, got %s/%d", got.Status, got.Attempt)
	}
	if got.Error != "upstream 503" || got.NotBefore == nil {
		t.Errorf("retry must keep error and delay, got %q %v", got.Error, got.NotBefore)
	}

	if len(pub.retries) != 1 {
		t.Fatalf("expected one retry, got %d", len(pub.retries))
	}
	retry := pub.retries[0]
	if retry.pool != "etl" || retry.delay != 30*time.Second || retry.payload.Attempt != 2 {
		t.Errorf("unexpected retry: %+v", retry)
	}
	if retry.payload.Parameters["repository"] != "o/x" {
		t.Errorf("retry must carry parameters, got %v", retry.payload.Parameters)
	}
	if len(pub.completed) != 0 {
		t.Error("retried run is not completed")
	}
}

func TestProcessRun_RetriesExhausted(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	run.Attempt = 3
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := newTestWorker(runs, testDeployment(2), pub, fail(errors.New("upstream 503")))

	if err := w.processRun(context.Background(), run.ID, 3); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusFailed || got.Error != "upstream 503" {
		t.Errorf("expected FAILED, got %s %q", got.Status, got.Error)
	}
	if len(pub.dead) != 1 || pub.dead[0].RunID != run.ID {
		t.Errorf("exhausted run must be dead-lettered, got %+v", pub.dead)
	}
	if len(pub.completed) != 1 || pub.completed[0].Status != domain.RunStatusFailed {
		t.Errorf("expected FAILED run.completed, got %+v", pub.completed)
	}
}

func TestProcessRun_NonRetryable(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	err := fmt.Errorf("%w: %w", ErrNonRetryable, pipeline.ErrInvalidConfig)
	w := newTestWorker(runs, testDeployment(5), pub, fail(err))

	w.processRun(context.Background(), run.ID, 1)

	if got := runs.get(run.ID); got.Status != domain.RunStatusFailed {
		t.Errorf("non-retryable error must fail the run, got %s", got.Status)
	}
	if len(pub.retries) != 0 {
		t.Error("non-retryable error must not be retried")
	}
}

func TestProcessRun_NoDeploymentNoRetry(t *testing.T) {
	run := domain.NewRun("", testFlow, nil)
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := newTestWorker(runs, nil, pub, fail(errors.New("boom")))

	w.processRun(context.Background(), run.ID, 0)

	if got := runs.get(run.ID); got.Status != domain.RunStatusFailed {
		t.Errorf("run without deployment must fail, got %s", got.Status)
	}
}

func TestProcessRun_UnknownFlow(t *testing.T) {
	run := domain.NewRun("dep", "missing_flow", nil)
	runs := newFakeRuns(run)
	pub := &fakePublisher{}
	w := newTestWorker(runs, testDeployment(3), pub, succeed(domain.RunStatusSucceeded, ""))

	w.processRun(context.Background(), run.ID, 1)

	got := runs.get(run.ID)
	if got.Status != domain.RunStatusFailed {
		t.Errorf("unknown flow must fail the run, got %s", got.Status)
	}
	if len(pub.retries) != 0 {
		t.Error("unknown flow must not be retried")
	}
}

func TestProcessRun_Skips(t *testing.T) {
	done := domain.NewRun("dep", testFlow, nil)
	done.MarkSucceeded()

	retried := domain.NewRun("dep", testFlow, nil)
	retried.ResetForRetry("boom", time.Hour)

	runs := newFakeRuns(done, retried)
	w := newTestWorker(runs, testDeployment(1), &fakePublisher{}, succeed(domain.RunStatusSucceeded, ""))
	ctx := context.Background()

	if err := w.processRun(ctx, uuid.New(), 1); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
	if err := w.processRun(ctx, done.ID, 1); !errors.Is(err, ErrRunNotPending) {
		t.Errorf("expected ErrRunNotPending, got %v", err)
	}
	if err := w.processRun(ctx, retried.ID, 1); !errors.Is(err, ErrStaleAttempt) {
		t.Errorf("expected ErrStaleAttempt, got %v", err)
	}
	if err := w.processRun(ctx, retried.ID, 2); !errors.Is(err, ErrRunNotReady) {
		t.Errorf("expected ErrRunNotReady, got %v", err)
	}
}

// --- handleRunRequested Tests ---

func TestHandleRunRequested(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	runs := newFakeRuns(run)
	w := newTestWorker(runs, testDeployment(0), &fakePublisher{}, succeed(domain.RunStatusSucceeded, ""))

	delivery := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeRunRequested, mq.RunRequestedPayload{
		RunID:   run.ID,
		Flow:    testFlow,
		Attempt: 1,
	})}

	if err := w.handleRunRequested(context.Background(), delivery); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := runs.get(run.ID); got.Status != domain.RunStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", got.Status)
	}

	// Повторная доставка того же сообщения — ack без выполнения
	if err := w.handleRunRequested(context.Background(), delivery); err != nil {
		t.Errorf("redelivery must be acked, got %v", err)
	}
}

func TestHandleRunRequested_BadPayload(t *testing.T) {
	w := newTestWorker(newFakeRuns(), nil, nil, succeed(domain.RunStatusSucceeded, ""))

	delivery := &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeRunRequested, map[string]any{"run_id": "nope"})}
	if err := w.handleRunRequested(context.Background(), delivery); mq.AckFor(err) != mq.AckReject {
		t.Errorf("bad payload must be rejected to DLQ, got %v", err)
	}

	delivery = &mq.Delivery{Message: *mq.NewMessage(mq.MessageTypeNotification, nil)}
	if err := w.handleRunRequested(context.Background(), delivery); mq.AckFor(err) != mq.AckReject {
		t.Errorf("wrong message type must be rejected, got %v", err)
	}
}

// --- poll Tests ---

func TestPoll_ProcessesPendingRuns(t *testing.T) {
	a := domain.NewRun("dep", testFlow, nil)
	b := domain.NewRun("", testFlow, nil)
	runs := newFakeRuns(a, b)
	w := newTestWorker(runs, testDeployment(0), nil, succeed(domain.RunStatusSucceeded, ""))

	w.poll(context.Background())

	for _, id := range []uuid.UUID{a.ID, b.ID} {
		if got := runs.get(id); got.Status != domain.RunStatusSucceeded {
			t.Errorf("run %s: expected SUCCEEDED, got %s", id, got.Status)
		}
	}
}

func TestWorker_ConcurrentClaim(t *testing.T) {
	run := domain.NewRun("dep", testFlow, nil)
	runs := newFakeRuns(run)

	var mu sync.Mutex
	executions := 0
	exec := ExecutorFunc(func(context.Context, *domain.Run) (*ExecutionResult, error) {
		mu.Lock()
		executions++
		mu.Unlock()
		return &ExecutionResult{Status: domain.RunStatusSucceeded}, nil
	})
	w := newTestWorker(runs, testDeployment(0), nil, exec)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.processRun(context.Background(), run.ID, 1)
		}()
	}
	wg.Wait()

	if executions != 1 {
		t.Errorf("run must execute exactly once, got %d", executions)
	}
}

// --- ETLExecutor Tests ---

type fakePipeline struct {
	cfg    domain.ETLConfig
	result *pipeline.Result
	err    error
}

func (p *fakePipeline) Run(_ context.Context, _ uuid.UUID, cfg domain.ETLConfig) (*pipeline.Result, error) {
	p.cfg = cfg
	return p.result, p.err
}

func TestETLExecutor_Defaults(t *testing.T) {
	minStars := int64(50)
	fp := &fakePipeline{result: &pipeline.Result{
		Stage:     domain.StageAggregated,
		Artifacts: map[string]string{domain.ArtifactAggregated: "s3://b/a.json"},
		Aggregate: &domain.AggregateRecord{RepositoryName: "x", TotalEngagement: 3},
	}}
	e := &ETLExecutor{
		Pipeline: fp,
		Defaults: domain.ETLConfig{OutputLocation: "s3://b", MinStars: &minStars},
	}

	run := domain.NewRun("dep", domain.FlowETLPipeline, map[string]any{"repository": "o/x"})
	result, err := e.Execute(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if fp.cfg.Repository != "o/x" || fp.cfg.OutputLocation != "s3://b" || fp.cfg.Threshold() != 50 {
		t.Errorf("unexpected config: %+v", fp.cfg)
	}
	if result.Status != domain.RunStatusSucceeded || result.Stage != domain.StageAggregated {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Outputs["total_engagement"] != int64(3) {
		t.Errorf("expected outputs from aggregate, got %v", result.Outputs)
	}
}

func TestETLExecutor_ParametersOverrideDefaults(t *testing.T) {
	fp := &fakePipeline{result: &pipeline.Result{Stage: domain.StageAggregated}}
	e := &ETLExecutor{Pipeline: fp, Defaults: domain.ETLConfig{OutputLocation: "s3://default"}}

	run := domain.NewRun("", domain.FlowETLPipeline, map[string]any{
		"repository":      "o/x",
		"min_stars":       float64(7),
		"output_location": "gs://other",
	})
	e.Execute(context.Background(), run)

	if fp.cfg.OutputLocation != "gs://other" || fp.cfg.Threshold() != 7 {
		t.Errorf("run parameters must win, got %+v", fp.cfg)
	}
}

func TestETLExecutor_Rejected(t *testing.T) {
	fp := &fakePipeline{result: &pipeline.Result{Stage: domain.StageRejected, Reason: "schema: field forks_count: missing"}}
	e := &ETLExecutor{Pipeline: fp}

	result, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowETLPipeline, nil))
	if err != nil {
		t.Fatalf("rejection is not an error, got %v", err)
	}
	if result.Status != domain.RunStatusRejected || result.Reason == "" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestETLExecutor_ErrorClassification(t *testing.T) {
	tests := []struct {
		err       error
		retryable bool
	}{
		{fmt.Errorf("%w: bad repo", pipeline.ErrInvalidConfig), false},
		{fmt.Errorf("%w: overflow", pipeline.ErrTransform), false},
		{fmt.Errorf("%w: 503", pipeline.ErrFetch), true},
		{fmt.Errorf("%w: s3 down", pipeline.ErrStore), true},
	}

	for _, tt := range tests {
		e := &ETLExecutor{Pipeline: &fakePipeline{err: tt.err}}
		_, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowETLPipeline, nil))
		if retryable(err) != tt.retryable {
			t.Errorf("%v: expected retryable=%v", tt.err, tt.retryable)
		}
	}
}

func TestETLExecutor_MalformedMinStars(t *testing.T) {
	fp := &fakePipeline{result: &pipeline.Result{Stage: domain.StageAggregated}}
	e := &ETLExecutor{Pipeline: fp}

	for _, v := range []any{"lots", 20000.9, true} {
		run := domain.NewRun("", domain.FlowETLPipeline, map[string]any{"repository": "o/x", "min_stars": v})
		_, err := e.Execute(context.Background(), run)
		if !errors.Is(err, domain.ErrInvalidMinStars) || retryable(err) {
			t.Errorf("min_stars=%v: expected non-retryable ErrInvalidMinStars, got %v", v, err)
		}
	}
	if fp.cfg.Repository != "" {
		t.Error("pipeline must not run with a malformed threshold")
	}

	run := domain.NewRun("", domain.FlowETLPipeline, map[string]any{"repository": "o/x", "min_stars": "20000"})
	if _, err := e.Execute(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fp.cfg.Threshold() != 20000 {
		t.Errorf("expected numeric string threshold 20000, got %d", fp.cfg.Threshold())
	}
}

// --- ProcessingExecutor Tests ---

func TestProcessingExecutor_DoublesInput(t *testing.T) {
	e := &ProcessingExecutor{}

	result, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowDataProcessing, map[string]any{"input_value": float64(21)}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Outputs["result"] != "Processed data: 42" || result.Outputs["is_valid"] != true {
		t.Errorf("unexpected outputs: %v", result.Outputs)
	}

	result, _ = e.Execute(context.Background(), domain.NewRun("", domain.FlowDataProcessing, nil))
	if result.Outputs["result"] != "Processed data: 20" {
		t.Errorf("default input must be 10, got %v", result.Outputs["result"])
	}
}

func TestProcessingExecutor_FailureInjection(t *testing.T) {
	e := &ProcessingExecutor{FailureRate: 0.2, Rand: func() float64 { return 0.1 }}

	_, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowDataProcessing, nil))
	if !errors.Is(err, ErrProcessing) || !retryable(err) {
		t.Errorf("expected retryable ErrProcessing, got %v", err)
	}

	e.Rand = func() float64 { return 0.5 }
	if _, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowDataProcessing, nil)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestProcessingExecutor_InvalidInput(t *testing.T) {
	e := &ProcessingExecutor{}

	for _, v := range []any{"ten", 1.5, true} {
		_, err := e.Execute(context.Background(), domain.NewRun("", domain.FlowDataProcessing, map[string]any{"input_value": v}))
		if retryable(err) {
			t.Errorf("input %v: expected non-retryable error, got %v", v, err)
		}
	}
}

func TestProcessingExecutor_ContextCancel(t *testing.T) {
	e := &ProcessingExecutor{Delay: time.Minute}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := e.Execute(ctx, domain.NewRun("", domain.FlowDataProcessing, nil)); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

// --- Registry Tests ---

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	r.Register(domain.FlowETLPipeline, &ETLExecutor{})
	r.Register(domain.FlowDataProcessing, &ProcessingExecutor{})

	if _, err := r.Get(domain.FlowETLPipeline); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Get("unknown"); !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("expected ErrUnknownFlow, got %v", err)
	}
	flows := r.Flows()
	if len(flows) != 2 || flows[0] != domain.FlowDataProcessing {
		t.Errorf("expected sorted flows, got %v", flows)
	}
}

// --- Lifecycle Tests ---

func TestNew_DefaultConfig(t *testing.T) {
	w := New(Config{})

	if w.workPool != defaultWorkPool || w.pollInterval != defaultPollInterval || w.batchSize != defaultBatchSize {
		t.Errorf("unexpected defaults: pool=%s interval=%v batch=%d", w.workPool, w.pollInterval, w.batchSize)
	}
	if w.registry == nil {
		t.Error("registry should default to empty registry")
	}
}

func TestWorker_StartStop(t *testing.T) {
	run := domain.NewRun("", testFlow, nil)
	runs := newFakeRuns(run)
	w := newTestWorker(runs, nil, nil, succeed(domain.RunStatusSucceeded, ""))

	if w.IsStopped() {
		t.Error("new worker should not be stopped")
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for runs.get(run.ID).Status != domain.RunStatusSucceeded && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	w.Stop()

	if !w.IsStopped() {
		t.Error("worker should be stopped")
	}
	if got := runs.get(run.ID); got.Status != domain.RunStatusSucceeded {
		t.Errorf("first poll must pick up pending run, got %s", got.Status)
	}
}
