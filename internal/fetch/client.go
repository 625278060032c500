package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultBaseURL — GitHub REST API.
	DefaultBaseURL = "https://api.github.com"

	defaultTimeout = 30 * time.Second
	maxBodyBytes   = 10 << 20
	acceptHeader   = "application/vnd.github+json"
	userAgent      = "etlflows"
)

// Fetcher возвращает сырой JSON-документ для репозитория.
type Fetcher interface {
	Fetch(ctx context.Context, repository string) ([]byte, error)
}

// Config — настройки Client.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration

	// HTTPClient — необязательный клиент (для тестов).
	HTTPClient *http.Client
}

// Client получает статистику репозитория из GitHub API.
//
// GET {BaseURL}/repos/{owner}/{name}
type Client struct {
	baseURL string
	token   string
	timeout time.Duration
	http    *http.Client
}

// New создаёт Client.
func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		timeout: cfg.Timeout,
		http:    cfg.HTTPClient,
	}
}

// Fetch выполняет запрос и возвращает тело ответа без разбора.
func (c *Client) Fetch(ctx context.Context, repository string) ([]byte, error) {
	repository = strings.Trim(strings.TrimSpace(repository), "/")
	if repository == "" {
		return nil, ErrEmptyRepository
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.repoURL(repository), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: HTTP %d: %s", ErrUpstreamStatus, resp.StatusCode, truncate(string(body), 200))
	}
	return body, nil
}

func (c *Client) repoURL(repository string) string {
	parts := strings.Split(repository, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return c.baseURL + "/repos/" + strings.Join(parts, "/")
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
