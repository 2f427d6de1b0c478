package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/aretw0/pathflow/pkg/domain"
)

// RunStore implements ports.RunStore in memory.
// Safe for concurrent use.
type RunStore struct {
	data  map[string]*domain.Result
	order []string
	mu    sync.RWMutex
}

// NewRunStore creates a new in-memory run store.
func NewRunStore() *RunStore {
	return &RunStore{
		data: make(map[string]*domain.Result),
	}
}

// Save persists a copy of the result.
func (s *RunStore) Save(ctx context.Context, result *domain.Result) error {
	copied := cloneResult(result)

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.data[result.RunID]; !exists {
		s.order = append(s.order, result.RunID)
	}
	s.data[result.RunID] = copied
	return nil
}

// Load retrieves a copy so the caller can't mutate the stored result.
func (s *RunStore) Load(ctx context.Context, runID string) (*domain.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.data[runID]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return cloneResult(result), nil
}

// List returns run IDs in the order they were first saved.
func (s *RunStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order), nil
}

// Delete removes the result.
func (s *RunStore) Delete(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[runID]; !ok {
		return nil
	}
	delete(s.data, runID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == runID })
	return nil
}

func cloneResult(r *domain.Result) *domain.Result {
	out := *r
	if r.Context != nil {
		out.Context = r.Context.Snapshot()
	}
	out.Trace = slices.Clone(r.Trace)
	return &out
}
