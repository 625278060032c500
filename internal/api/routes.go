package api

import (
	"net/http"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	chain := Chain(
		Recovery(h.logger),
		CountRequests(),
		Logging(h.logger),
	)

	// Core
	mux.Handle("POST /api/v1/validate", chain(http.HandlerFunc(h.Validate)))
	mux.Handle("GET /api/v1/schema", chain(http.HandlerFunc(h.Schema)))

	// Deployments
	mux.Handle("GET /api/v1/deployments", chain(http.HandlerFunc(h.ListDeployments)))
	mux.Handle("POST /api/v1/deployments", chain(http.HandlerFunc(h.CreateDeployment)))
	mux.Handle("GET /api/v1/deployments/{name}", chain(http.HandlerFunc(h.GetDeployment)))
	mux.Handle("DELETE /api/v1/deployments/{name}", chain(http.HandlerFunc(h.DeleteDeployment)))

	// Runs
	mux.Handle("POST /api/v1/deployments/{name}/runs", chain(http.HandlerFunc(h.CreateRun)))
	mux.Handle("GET /api/v1/runs", chain(http.HandlerFunc(h.ListRuns)))
	mux.Handle("GET /api/v1/runs/{id}", chain(http.HandlerFunc(h.GetRun)))
}
