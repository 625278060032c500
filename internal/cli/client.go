package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/etlflows/internal/domain"
)

// --- Response types (повторяют api/dto.go в том виде, в каком их видит клиент) ---

// DeploymentResponse — deployment из API.
type DeploymentResponse struct {
	Name          string         `json:"name"`
	Flow          string         `json:"flow"`
	Entrypoint    string         `json:"entrypoint,omitempty"`
	WorkPool      string         `json:"work_pool"`
	Tags          []string       `json:"tags,omitempty"`
	Retries       int            `json:"retries"`
	RetryDelaySec int            `json:"retry_delay_sec"`
	Schedule      string         `json:"schedule,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	NextRunAt     string         `json:"next_run_at,omitempty"`
	CreatedAt     string         `json:"created_at"`
	UpdatedAt     string         `json:"updated_at"`
}

// RunResponse — run из API.
type RunResponse struct {
	ID              string            `json:"id"`
	Deployment      string            `json:"deployment,omitempty"`
	Flow            string            `json:"flow"`
	Parameters      map[string]any    `json:"parameters,omitempty"`
	Status          string            `json:"status"`
	Stage           string            `json:"stage,omitempty"`
	Attempt         int               `json:"attempt"`
	Artifacts       map[string]string `json:"artifacts,omitempty"`
	RejectionReason string            `json:"rejection_reason,omitempty"`
	Error           string            `json:"error,omitempty"`
	StartedAt       string            `json:"started_at,omitempty"`
	FinishedAt      string            `json:"finished_at,omitempty"`
	CreatedAt       string            `json:"created_at"`
}

// --- Request types ---

// SubmitRunRequest — запуск deployment.
type SubmitRunRequest struct {
	Parameters map[string]any `json:"parameters,omitempty"`
}

// ListRunsOpts — параметры фильтрации runs.
type ListRunsOpts struct {
	Deployment string
	Status     string
	Limit      int
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для etlflows API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Deployments ---

// ListDeployments возвращает все deployments.
func (c *Client) ListDeployments(ctx context.Context) ([]DeploymentResponse, error) {
	var deployments []DeploymentResponse
	err := c.list(ctx, "/api/v1/deployments", nil, &deployments)
	return deployments, err
}

// CreateDeployment создаёт или обновляет deployment.
func (c *Client) CreateDeployment(ctx context.Context, d *domain.Deployment) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.post(ctx, "/api/v1/deployments", d, &deployment)
	return &deployment, err
}

// GetDeployment возвращает deployment по имени.
func (c *Client) GetDeployment(ctx context.Context, name string) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.get(ctx, "/api/v1/deployments/"+url.PathEscape(name), &deployment)
	return &deployment, err
}

// DeleteDeployment удаляет deployment.
func (c *Client) DeleteDeployment(ctx context.Context, name string) error {
	return c.delete(ctx, "/api/v1/deployments/"+url.PathEscape(name))
}

// --- Runs ---

// SubmitRun создаёт run для deployment.
func (c *Client) SubmitRun(ctx context.Context, deployment string, req SubmitRunRequest) (*RunResponse, error) {
	var run RunResponse
	err := c.post(ctx, "/api/v1/deployments/"+url.PathEscape(deployment)+"/runs", req, &run)
	return &run, err
}

// ListRuns возвращает список runs с фильтрацией.
func (c *Client) ListRuns(ctx context.Context, opts ListRunsOpts) ([]RunResponse, error) {
	params := url.Values{}
	if opts.Deployment != "" {
		params.Set("deployment", opts.Deployment)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var runs []RunResponse
	err := c.list(ctx, "/api/v1/runs", params, &runs)
	return runs, err
}

// GetRun возвращает run по ID.
func (c *Client) GetRun(ctx context.Context, id string) (*RunResponse, error) {
	var run RunResponse
	err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(id), &run)
	return &run, err
}

// --- HTTP helpers ---

func (c *Client) get(ctx context.Context, path string, result any) error {
	return c.doData(ctx, http.MethodGet, path, nil, result)
}

func (c *Client) post(ctx context.Context, path string, body any, result any) error {
	return c.doData(ctx, http.MethodPost, path, body, result)
}

func (c *Client) delete(ctx context.Context, path string) error {
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(ctx context.Context, path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(ctx context.Context, method, path string, body any, result any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return &APIError{Status: resp.StatusCode, Code: er.Error.Code, Message: er.Error.Message}
}

// APIError — ошибка, которую вернул сервер.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return e.Code + ": " + e.Message
}
