package telemetry

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Исходы run для метрик.
const (
	OutcomeSucceeded = "succeeded"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

var (
	// PipelineRuns — завершённые runs по flow и исходу.
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etlflows_pipeline_runs_total",
		Help: "Finished pipeline runs by flow and outcome.",
	}, []string{"flow", "outcome"})

	// StageDuration — длительность этапов pipeline.
	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "etlflows_pipeline_stage_duration_seconds",
		Help:    "Duration of pipeline stages.",
		Buckets: prometheus.DefBuckets,
	}, []string{"stage"})

	// ArtifactsStored — сохранённые артефакты по backend.
	ArtifactsStored = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etlflows_artifacts_stored_total",
		Help: "Artifacts written to object storage by backend.",
	}, []string{"backend"})

	// Notifications — отправленные уведомления по типу и результату.
	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etlflows_notifications_total",
		Help: "Notifications by event kind and result.",
	}, []string{"kind", "result"})

	// WorkerRuns — runs, доведённые воркером до финального статуса.
	WorkerRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etlflows_worker_runs_total",
		Help: "Runs finished by the worker by flow and status.",
	}, []string{"flow", "status"})

	// RunRetries — повторы run после инфраструктурной ошибки.
	RunRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "etlflows_worker_run_retries_total",
		Help: "Runs scheduled for a delayed retry by flow.",
	}, []string{"flow"})

	// APIRequests — количество HTTP запросов к API.
	APIRequests = promauto.NewCounter(prometheus.CounterOpts{
		Name: "etlflows_api_http_requests_total",
		Help: "Total HTTP requests to the API.",
	})
)

// HealthCheck — проверка зависимости для /healthz.
type HealthCheck struct {
	Name  string
	Ready func() bool
}

// HealthHandler отвечает 200 "ok", если все проверки прошли,
// иначе 503 со списком недоступных зависимостей.
func HealthHandler(checks ...HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		var down []string
		for _, c := range checks {
			if !c.Ready() {
				down = append(down, c.Name)
			}
		}
		if len(down) > 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			fmt.Fprintf(w, "unavailable: %s", strings.Join(down, ", "))
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}
}

// NewMetricsMux возвращает mux с /metrics и /healthz.
// Используется воркером и notifier, у которых нет своего API.
func NewMetricsMux(checks ...HealthCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", HealthHandler(checks...))
	return mux
}
