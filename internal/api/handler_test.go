package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/shaiso/etlflows/internal/api"
	"github.com/shaiso/etlflows/internal/deploy"
	"github.com/shaiso/etlflows/internal/domain"
)

const prefectJSON = `{"name":"prefect","full_name":"PrefectHQ/prefect","owner":{"login":"PrefectHQ"},` +
	`"stargazers_count":18000,"watchers_count":500,"forks_count":1800}`

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func do(mux http.Handler, method, path string, body string) (*httptest.ResponseRecorder, envelope) {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		Expect(json.Unmarshal(w.Body.Bytes(), &env)).To(Succeed())
	}
	return w, env
}

var _ = Describe("Handler", func() {
	var (
		mux         *http.ServeMux
		runs        *mockRuns
		deployments *mockDeployments
		publisher   *mockPublisher
		pools       []string
	)

	BeforeEach(func() {
		runs = newMockRuns()
		deployments = newMockDeployments()
		publisher = &mockPublisher{}
		pools = nil

		h := api.NewHandler(api.Config{
			Runs:        runs,
			Deployments: deployments,
			Publisher:   publisher,
			Pools: deploy.PoolDeclarerFunc(func(_ context.Context, pool string) error {
				pools = append(pools, pool)
				return nil
			}),
			Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		})
		mux = http.NewServeMux()
		h.RegisterRoutes(mux)
	})

	Describe("POST /api/v1/validate", func() {
		It("returns cleaned and aggregate records for a valid document", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/validate", prefectJSON)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp api.ValidateResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Valid).To(BeTrue())
			Expect(resp.Outcome).To(Equal("valid"))
			Expect(resp.Flattened).To(HaveKeyWithValue("owner.login", "PrefectHQ"))
			Expect(resp.Cleaned.FullName).To(Equal("PrefectHQ/prefect"))
			Expect(resp.Aggregate.TotalEngagement).To(Equal(int64(20300)))
			Expect(resp.Aggregate.EngagementRatio).To(Equal(35.93))
		})

		It("reports a rule rejection without an error status", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/validate?min_stars=20000", prefectJSON)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp api.ValidateResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Valid).To(BeFalse())
			Expect(resp.Outcome).To(Equal("rule"))
			Expect(resp.Reason).To(Equal("business rule: stargazers_count(18000) < min_stars(20000)"))
			Expect(resp.Cleaned).To(BeNil())
			Expect(resp.Aggregate).To(BeNil())
		})

		It("reports a schema rejection for a missing field", func() {
			doc := `{"name":"prefect","full_name":"PrefectHQ/prefect","stargazers_count":18000,"watchers_count":500}`
			_, env := do(mux, http.MethodPost, "/api/v1/validate", doc)

			var resp api.ValidateResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Outcome).To(Equal("schema"))
			Expect(resp.Reason).To(ContainSubstring("forks_count"))
		})

		It("returns 400 for a non-object document", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/validate", `[1,2]`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Code).To(Equal("BAD_REQUEST"))
		})

		It("returns 400 for a negative min_stars", func() {
			w, _ := do(mux, http.MethodPost, "/api/v1/validate?min_stars=-1", prefectJSON)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 422 when aggregation overflows", func() {
			doc := `{"name":"x","full_name":"o/x","stargazers_count":9223372036854775807,"watchers_count":1,"forks_count":0}`
			w, env := do(mux, http.MethodPost, "/api/v1/validate", doc)

			Expect(w.Code).To(Equal(http.StatusUnprocessableEntity))
			Expect(env.Error.Code).To(Equal("INVALID_RECORD"))
		})
	})

	Describe("GET /api/v1/schema", func() {
		It("describes the required fields", func() {
			w, env := do(mux, http.MethodGet, "/api/v1/schema", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			var schema map[string]any
			Expect(json.Unmarshal(env.Data, &schema)).To(Succeed())
			Expect(schema["required"]).To(ContainElements("name", "full_name", "stargazers_count", "watchers_count", "forks_count"))
		})
	})

	Describe("deployments", func() {
		const body = `{"name":"github-stats","flow":"etl_s3_pipeline","work_pool":"etl",` +
			`"retries":2,"retry_delay_sec":30,"schedule":"0 6 * * *",` +
			`"parameters":{"repository":"PrefectHQ/prefect","min_stars":10}}`

		It("registers a deployment and declares its work pool", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/deployments", body)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp api.DeploymentResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Name).To(Equal("github-stats"))
			Expect(resp.NextRunAt).NotTo(BeNil())
			Expect(pools).To(Equal([]string{"etl"}))
			Expect(deployments.items).To(HaveKey("github-stats"))
		})

		It("rejects an unknown flow", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/deployments", `{"name":"x","flow":"nope"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
			Expect(env.Error.Message).To(ContainSubstring("unknown flow"))
			Expect(deployments.items).To(BeEmpty())
		})

		It("rejects an invalid cron schedule", func() {
			w, _ := do(mux, http.MethodPost, "/api/v1/deployments", `{"name":"x","flow":"etl_s3_pipeline","schedule":"daily"}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("lists, gets and deletes deployments", func() {
			do(mux, http.MethodPost, "/api/v1/deployments", body)

			w, env := do(mux, http.MethodGet, "/api/v1/deployments", "")
			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(env.Total).To(Equal(1))

			w, _ = do(mux, http.MethodGet, "/api/v1/deployments/github-stats", "")
			Expect(w.Code).To(Equal(http.StatusOK))

			w, _ = do(mux, http.MethodDelete, "/api/v1/deployments/github-stats", "")
			Expect(w.Code).To(Equal(http.StatusNoContent))

			w, env = do(mux, http.MethodGet, "/api/v1/deployments/github-stats", "")
			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(env.Error.Code).To(Equal("NOT_FOUND"))
		})
	})

	Describe("runs", func() {
		BeforeEach(func() {
			deployments.items["github-stats"] = domain.Deployment{
				Name:       "github-stats",
				Flow:       domain.FlowETLPipeline,
				WorkPool:   "etl",
				Parameters: map[string]any{"repository": "PrefectHQ/prefect", "min_stars": 10},
			}
		})

		It("creates a PENDING run and publishes it to the work pool", func() {
			w, env := do(mux, http.MethodPost, "/api/v1/deployments/github-stats/runs",
				`{"parameters":{"min_stars":500}}`)

			Expect(w.Code).To(Equal(http.StatusCreated))
			var resp api.RunResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Status).To(Equal("PENDING"))
			Expect(resp.Attempt).To(Equal(1))
			Expect(resp.Parameters).To(HaveKeyWithValue("repository", "PrefectHQ/prefect"))
			Expect(resp.Parameters).To(HaveKeyWithValue("min_stars", float64(500)))

			Expect(publisher.calls).To(HaveLen(1))
			Expect(publisher.calls[0].pool).To(Equal("etl"))
			Expect(publisher.calls[0].payload.RunID).To(Equal(resp.ID))
			Expect(runs.runs).To(HaveKey(resp.ID))
		})

		It("accepts an empty body", func() {
			w, _ := do(mux, http.MethodPost, "/api/v1/deployments/github-stats/runs", "")

			Expect(w.Code).To(Equal(http.StatusCreated))
		})

		It("returns 404 for an unknown deployment", func() {
			w, _ := do(mux, http.MethodPost, "/api/v1/deployments/missing/runs", `{}`)

			Expect(w.Code).To(Equal(http.StatusNotFound))
			Expect(publisher.calls).To(BeEmpty())
		})

		It("rejects a negative min_stars override", func() {
			w, _ := do(mux, http.MethodPost, "/api/v1/deployments/github-stats/runs",
				`{"parameters":{"min_stars":-1}}`)

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("rejects a min_stars override that is not an integer", func() {
			for _, body := range []string{
				`{"parameters":{"min_stars":"many"}}`,
				`{"parameters":{"min_stars":20000.9}}`,
				`{"parameters":{"min_stars":true}}`,
			} {
				w, _ := do(mux, http.MethodPost, "/api/v1/deployments/github-stats/runs", body)

				Expect(w.Code).To(Equal(http.StatusBadRequest), body)
			}
			Expect(publisher.calls).To(BeEmpty())
		})

		It("gets a run by id", func() {
			run := domain.NewRun("github-stats", domain.FlowETLPipeline, nil)
			run.MarkRejected("schema: field forks_count: missing")
			runs.runs[run.ID] = *run

			w, env := do(mux, http.MethodGet, "/api/v1/runs/"+run.ID.String(), "")

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp api.RunResponse
			Expect(json.Unmarshal(env.Data, &resp)).To(Succeed())
			Expect(resp.Status).To(Equal("REJECTED"))
			Expect(resp.Stage).To(Equal("REJECTED"))
			Expect(resp.RejectionReason).To(ContainSubstring("forks_count"))
		})

		It("returns 400 for a malformed run id", func() {
			w, _ := do(mux, http.MethodGet, "/api/v1/runs/not-a-uuid", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("filters runs by status", func() {
			w, _ := do(mux, http.MethodGet, "/api/v1/runs?status=FAILED&deployment=github-stats&limit=5", "")

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(runs.filter.Status).To(Equal(domain.RunStatusFailed))
			Expect(runs.filter.Deployment).To(Equal("github-stats"))
			Expect(runs.filter.Limit).To(Equal(5))
		})

		It("rejects an unknown status", func() {
			w, _ := do(mux, http.MethodGet, "/api/v1/runs?status=CANCELLED", "")

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("hides internal errors", func() {
			runs.listErr = errors.New("connection refused")

			w, env := do(mux, http.MethodGet, "/api/v1/runs", "")

			Expect(w.Code).To(Equal(http.StatusInternalServerError))
			Expect(env.Error.Message).To(Equal("internal server error"))
		})
	})
})
