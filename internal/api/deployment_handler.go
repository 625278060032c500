package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/shaiso/etlflows/internal/domain"
)

// ListDeployments возвращает все deployments.
// GET /api/v1/deployments
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	deployments, err := h.deployments.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	now := time.Now()
	result := make([]DeploymentResponse, len(deployments))
	for i, d := range deployments {
		result[i] = DeploymentFromDomain(d, now)
	}

	List(w, result, len(result))
}

// CreateDeployment регистрирует deployment: проверяет описание,
// объявляет очереди пула и сохраняет (upsert по имени).
// POST /api/v1/deployments
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	var d domain.Deployment
	if err := json.NewDecoder(r.Body).Decode(&d); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if HandleDeployError(w, h.logger, h.registrar.Register(r.Context(), &d)) {
		return
	}

	Created(w, DeploymentFromDomain(d, time.Now()))
}

// GetDeployment возвращает deployment по имени.
// GET /api/v1/deployments/{name}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	d, err := h.deployments.GetByName(r.Context(), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	Success(w, DeploymentFromDomain(*d, time.Now()))
}

// DeleteDeployment удаляет deployment. Его runs остаются в истории.
// DELETE /api/v1/deployments/{name}
func (h *Handler) DeleteDeployment(w http.ResponseWriter, r *http.Request) {
	err := h.deployments.Delete(r.Context(), r.PathValue("name"))
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	NoContent(w)
}
