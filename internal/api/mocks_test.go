package api_test

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/etlflows/internal/domain"
	"github.com/shaiso/etlflows/internal/mq"
	"github.com/shaiso/etlflows/internal/repo"
)

type mockRuns struct {
	mu      sync.Mutex
	runs    map[uuid.UUID]domain.Run
	filter  repo.RunFilter
	listErr error
}

func newMockRuns() *mockRuns {
	return &mockRuns{runs: make(map[uuid.UUID]domain.Run)}
}

func (m *mockRuns) Create(_ context.Context, run *domain.Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = *run
	return nil
}

func (m *mockRuns) GetByID(_ context.Context, id uuid.UUID) (*domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	run, ok := m.runs[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &run, nil
}

func (m *mockRuns) List(_ context.Context, filter repo.RunFilter) ([]domain.Run, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.filter = filter
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []domain.Run
	for _, r := range m.runs {
		if filter.Status == "" || r.Status == filter.Status {
			out = append(out, r)
		}
	}
	return out, nil
}

type mockDeployments struct {
	items map[string]domain.Deployment
}

func newMockDeployments() *mockDeployments {
	return &mockDeployments{items: make(map[string]domain.Deployment)}
}

func (m *mockDeployments) Upsert(_ context.Context, d *domain.Deployment) error {
	m.items[d.Name] = *d
	return nil
}

func (m *mockDeployments) GetByName(_ context.Context, name string) (*domain.Deployment, error) {
	d, ok := m.items[name]
	if !ok {
		return nil, repo.ErrNotFound
	}
	return &d, nil
}

func (m *mockDeployments) List(_ context.Context) ([]domain.Deployment, error) {
	out := make([]domain.Deployment, 0, len(m.items))
	for _, d := range m.items {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockDeployments) Delete(_ context.Context, name string) error {
	if _, ok := m.items[name]; !ok {
		return repo.ErrNotFound
	}
	delete(m.items, name)
	return nil
}

type published struct {
	pool    string
	payload mq.RunRequestedPayload
}

type mockPublisher struct {
	calls []published
}

func (m *mockPublisher) PublishRunRequested(_ context.Context, pool string, payload mq.RunRequestedPayload) error {
	m.calls = append(m.calls, published{pool, payload})
	return nil
}
