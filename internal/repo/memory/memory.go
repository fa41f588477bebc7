package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/camwatch/camwatch/internal/domain"
	"github.com/camwatch/camwatch/internal/repo"
)

// Store keeps results in memory, per endpoint, in append order.
type Store struct {
	mu      sync.RWMutex
	results map[string][]*domain.ProbeResult
}

func New() *Store {
	return &Store{
		results: make(map[string][]*domain.ProbeResult),
	}
}

func (m *Store) Append(ctx context.Context, r *domain.ProbeResult) error {
	cp := *r
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.Endpoint] = append(m.results[r.Endpoint], &cp)
	return nil
}

func (m *Store) Latest(ctx context.Context, endpoint string) (*domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.results[endpoint]
	if len(rs) == 0 {
		return nil, nil
	}
	cp := *rs[len(rs)-1]
	return &cp, nil
}

func (m *Store) History(ctx context.Context, endpoint string, limit int) ([]domain.ProbeResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rs := m.results[endpoint]
	if limit <= 0 || limit > len(rs) {
		limit = len(rs)
	}
	out := make([]domain.ProbeResult, 0, limit)
	for i := len(rs) - 1; i >= len(rs)-limit; i-- {
		out = append(out, *rs[i])
	}
	return out, nil
}

func (m *Store) Snapshot(ctx context.Context) ([]repo.LatestRow, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]repo.LatestRow, 0, len(m.results))
	for name, rs := range m.results {
		if len(rs) == 0 {
			continue
		}
		r := rs[len(rs)-1]
		out = append(out, repo.LatestRow{
			Endpoint:  name,
			Up:        r.Up,
			LatencyMS: r.LatencyMS,
			Message:   r.Message,
			CheckedAt: r.CheckedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Endpoint < out[j].Endpoint })
	return out, nil
}
