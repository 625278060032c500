package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/repo"
)

// ListRuns возвращает список runs с фильтрацией.
// GET /api/v1/runs?deployment=...&status=...&limit=...&offset=...
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := repo.RunFilter{
		Deployment: q.Get("deployment"),
		Limit:      parseIntParam(q.Get("limit"), 50),
		Offset:     parseIntParam(q.Get("offset"), 0),
	}

	if s := q.Get("status"); s != "" {
		status, ok := domain.ParseRunStatus(s)
		if !ok {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	runs, err := h.runs.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]RunResponse, len(runs))
	for i, run := range runs {
		result[i] = RunFromDomain(run)
	}

	List(w, result, len(result))
}

// CreateRun создаёт PENDING run для deployment и отправляет его в пул.
// POST /api/v1/deployments/{name}/runs
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		BadRequest(w, "invalid request body")
		return
	}

	dep, err := h.deployments.GetByName(r.Context(), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	params := dep.MergeParameters(req.Parameters)
	if dep.Flow == domain.FlowETLPipeline {
		if _, err := domain.ConfigFromParameters(params); err != nil {
			BadRequest(w, err.Error())
			return
		}
	}

	run := domain.NewRun(dep.Name, dep.Flow, params)
	if err := h.runs.Create(r.Context(), run); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	if h.publisher != nil {
		payload := mq.RunRequestedPayload{
			RunID:      run.ID,
			Deployment: run.Deployment,
			Flow:       run.Flow,
			Parameters: run.Parameters,
			Attempt:    run.Attempt,
		}
		if err := h.publisher.PublishRunRequested(r.Context(), dep.WorkPool, payload); err != nil {
			// run сохранён, воркер подхватит его polling'ом
			h.logger.Warn("failed to publish run.requested", "run_id", run.ID, "error", err)
		}
	}

	h.logger.Info("run created",
		"run_id", run.ID,
		"deployment", dep.Name,
		"work_pool", dep.WorkPool,
	)

	Created(w, RunFromDomain(*run))
}

// GetRun возвращает run по ID.
// GET /api/v1/runs/{id}
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid run id")
		return
	}

	run, err := h.runs.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "run not found") {
		return
	}

	Success(w, RunFromDomain(*run))
}

// parseIntParam возвращает неотрицательное число из query или def.
func parseIntParam(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return def
	}
	return n
}
