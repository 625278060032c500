package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/engine"
	"github.com/shaiso/etlflows/internal/fetch"
	"github.com/shaiso/etlflows/internal/notify"
	"github.com/shaiso/etlflows/internal/storage"
	"github.com/shaiso/etlflows/internal/telemetry"
)

// Политики ошибок уведомлений.
const (
	NotifyWarn = "warn"
	NotifyFail = "fail"
)

// StoreOpener открывает Store для output_location run.
type StoreOpener func(ctx context.Context, location string) (storage.Store, error)

// Recorder получает прогресс run: достигнутый этап и сохранённые артефакты.
// Ошибки Recorder логируются и не прерывают pipeline.
type Recorder interface {
	Record(ctx context.Context, runID uuid.UUID, stage domain.Stage, artifacts map[string]string) error
}

// Config — зависимости Pipeline.
type Config struct {
	Fetcher   fetch.Fetcher
	OpenStore StoreOpener
	Notifier  notify.Notifier
	Recorder  Recorder

	// Clock — источник времени для агрегата. По умолчанию time.Now.
	Clock func() time.Time

	// NotifyPolicy — warn (по умолчанию) или fail.
	NotifyPolicy string

	// Flow — имя flow для метрик.
	Flow string

	Logger *slog.Logger
}

// Pipeline выполняет один ETL run:
//
//	fetch → raw-data.json → flatten → flattened-data.json → validate
//	  → rejected: уведомление, стоп
//	  → clean → cleaned-data.json → aggregate → aggregated-data.json → уведомление
//
// Pipeline не хранит состояние между вызовами Run и безопасен для
// конкурентного использования.
type Pipeline struct {
	fetcher   fetch.Fetcher
	openStore StoreOpener
	notifier  notify.Notifier
	recorder  Recorder
	clock     func() time.Time
	policy    string
	flow      string
	logger    *slog.Logger
}

// New создаёт Pipeline.
func New(cfg Config) *Pipeline {
	if cfg.OpenStore == nil {
		cfg.OpenStore = func(ctx context.Context, location string) (storage.Store, error) {
			return storage.Open(ctx, location, storage.Options{})
		}
	}
	if cfg.Notifier == nil {
		cfg.Notifier = notify.Nop
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.NotifyPolicy == "" {
		cfg.NotifyPolicy = NotifyWarn
	}
	if cfg.Flow == "" {
		cfg.Flow = domain.FlowETLPipeline
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Pipeline{
		fetcher:   cfg.Fetcher,
		openStore: cfg.OpenStore,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		clock:     cfg.Clock,
		policy:    cfg.NotifyPolicy,
		flow:      cfg.Flow,
		logger:    cfg.Logger.With("component", "pipeline"),
	}
}

// Result — итог run.
type Result struct {
	RunID      uuid.UUID
	Repository string

	// Outcome — valid, schema или rule.
	Outcome engine.OutcomeKind

	// Stage — последний достигнутый этап.
	Stage domain.Stage

	// Reason — причина отклонения.
	Reason string

	// Artifacts — имя артефакта → location.
	Artifacts map[string]string

	Cleaned   *domain.CleanedRecord
	Aggregate *domain.AggregateRecord
}

// Rejected возвращает true, если запись отклонена валидацией.
func (r *Result) Rejected() bool {
	return r.Stage == domain.StageRejected
}

// run — состояние одного вызова Run.
type run struct {
	p      *Pipeline
	id     uuid.UUID
	cfg    domain.ETLConfig
	store  storage.Store
	result *Result
	logger *slog.Logger
}

// Run выполняет pipeline для cfg.
//
// Отклонение записи — не ошибка: оно возвращается в Result со Stage
// REJECTED. Ошибка возвращается для сбоев fetch, хранилища,
// преобразования и (при политике fail) уведомления.
func (p *Pipeline) Run(ctx context.Context, runID uuid.UUID, cfg domain.ETLConfig) (*Result, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	logger := telemetry.WithRepository(telemetry.WithRunID(p.logger, runID.String()), cfg.Repository)

	store, err := p.openStore(ctx, cfg.OutputLocation)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrStore, cfg.OutputLocation, err)
	}
	// Хранилище открывается на каждый run; клиенты облачных SDK держат пулы соединений.
	if c, ok := store.(io.Closer); ok {
		defer func() {
			if err := c.Close(); err != nil {
				logger.Warn("failed to close store", "backend", store.Backend(), "error", err)
			}
		}()
	}

	r := &run{
		p:     p,
		id:    runID,
		cfg:   cfg,
		store: store,
		result: &Result{
			RunID:      runID,
			Repository: cfg.Repository,
			Artifacts:  make(map[string]string),
		},
		logger: logger,
	}

	logger.Info("pipeline started", "min_stars", cfg.Threshold(), "output", cfg.OutputLocation)

	if err := r.execute(ctx); err != nil {
		telemetry.PipelineRuns.WithLabelValues(p.flow, telemetry.OutcomeFailed).Inc()
		logger.Error("pipeline failed", "stage", r.result.Stage, "error", err)
		return r.result, err
	}

	outcome := telemetry.OutcomeSucceeded
	if r.result.Rejected() {
		outcome = telemetry.OutcomeRejected
	}
	telemetry.PipelineRuns.WithLabelValues(p.flow, outcome).Inc()
	logger.Info("pipeline finished", "stage", r.result.Stage, "outcome", outcome)

	return r.result, nil
}

func (r *run) execute(ctx context.Context) error {
	// Fetch
	start := time.Now()
	raw, err := r.p.fetcher.Fetch(ctx, r.cfg.Repository)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrFetch, err)
	}
	if err := r.put(ctx, domain.ArtifactRaw, raw); err != nil {
		return err
	}
	if err := r.advance(ctx, domain.StageFetched, start); err != nil {
		return err
	}

	// Flatten
	start = time.Now()
	doc, err := engine.DecodeRaw(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	flat := engine.Flatten(doc)
	if err := r.putJSON(ctx, domain.ArtifactFlattened, flat); err != nil {
		return err
	}
	if err := r.advance(ctx, domain.StageFlattened, start); err != nil {
		return err
	}

	// Validate
	start = time.Now()
	outcome := engine.Validate(flat, engine.MinStars(r.cfg.Threshold()))
	r.result.Outcome = outcome.Kind()

	if !outcome.Valid() {
		r.result.Reason = outcome.Reason
		if err := r.advance(ctx, domain.StageRejected, start); err != nil {
			return err
		}
		r.logger.Warn("record rejected", "kind", outcome.Kind(), "reason", outcome.Reason)

		return r.notify(ctx, domain.Event{
			Kind:       domain.EventRejected,
			Detail:     outcome.Reason,
			RunID:      r.id,
			Repository: r.cfg.Repository,
			OccurredAt: r.p.clock().UTC(),
		})
	}
	if err := r.advance(ctx, domain.StageValidated, start); err != nil {
		return err
	}

	// Clean
	start = time.Now()
	cleaned := engine.Clean(outcome.Stats)
	r.result.Cleaned = &cleaned
	if err := r.putJSON(ctx, domain.ArtifactCleaned, cleaned); err != nil {
		return err
	}
	if err := r.advance(ctx, domain.StageCleaned, start); err != nil {
		return err
	}

	// Aggregate
	start = time.Now()
	agg, err := engine.Aggregate(cleaned, r.p.clock())
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransform, err)
	}
	r.result.Aggregate = &agg
	if err := r.putJSON(ctx, domain.ArtifactAggregated, agg); err != nil {
		return err
	}
	if err := r.advance(ctx, domain.StageAggregated, start); err != nil {
		return err
	}

	return r.notify(ctx, domain.Event{
		Kind: domain.EventCompleted,
		Detail: fmt.Sprintf("%s: total_engagement=%d engagement_ratio=%.2f",
			agg.RepositoryName, agg.TotalEngagement, agg.EngagementRatio),
		RunID:      r.id,
		Repository: r.cfg.Repository,
		Location:   r.result.Artifacts[domain.ArtifactAggregated],
		OccurredAt: agg.Timestamp,
	})
}

// advance переводит run на следующий этап и сообщает Recorder.
func (r *run) advance(ctx context.Context, to domain.Stage, started time.Time) error {
	if !r.result.Stage.CanTransition(to) {
		return fmt.Errorf("%w: %s → %s", ErrStageTransition, r.result.Stage, to)
	}
	r.result.Stage = to

	telemetry.StageDuration.WithLabelValues(string(to)).Observe(time.Since(started).Seconds())
	r.logger.Info("stage reached", "stage", to)

	if r.p.recorder != nil {
		if err := r.p.recorder.Record(ctx, r.id, to, maps.Clone(r.result.Artifacts)); err != nil {
			r.logger.Warn("failed to record progress", "stage", to, "error", err)
		}
	}
	return nil
}

func (r *run) putJSON(ctx context.Context, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal %s: %v", ErrTransform, name, err)
	}
	return r.put(ctx, name, data)
}

func (r *run) put(ctx context.Context, name string, data []byte) error {
	key := storage.RunKey(r.id.String(), name)

	location, err := r.store.Put(ctx, key, data, storage.ContentTypeJSON)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrStore, name, err)
	}

	r.result.Artifacts[name] = location
	telemetry.ArtifactsStored.WithLabelValues(r.store.Backend()).Inc()
	r.logger.Info("artifact stored", "artifact", name, "location", location, "bytes", len(data))
	return nil
}

// notify отправляет событие с учётом политики.
func (r *run) notify(ctx context.Context, event domain.Event) error {
	err := r.p.notifier.Notify(ctx, event)
	if err == nil {
		telemetry.Notifications.WithLabelValues(string(event.Kind), "sent").Inc()
		return nil
	}

	telemetry.Notifications.WithLabelValues(string(event.Kind), "failed").Inc()
	if r.p.policy == NotifyFail {
		return fmt.Errorf("%w: %v", ErrNotify, err)
	}
	r.logger.Warn("notification failed, continuing", "kind", event.Kind, "error", err)
	return nil
}
