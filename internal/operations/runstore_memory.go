package operations

import (
	"sort"
	"sync"
	"time"

	apperrors "salescli/internal/errors"
	"salescli/pkg/contracts/domain"
)

// MemoryRunStore is an in-memory implementation of RunStore
type MemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*domain.Run
}

// NewMemoryRunStore creates a new in-memory run store
func NewMemoryRunStore() *MemoryRunStore {
	return &MemoryRunStore{
		runs: make(map[string]*domain.Run),
	}
}

// Save creates or replaces a run
func (s *MemoryRunStore) Save(run *domain.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	runCopy := *run
	s.runs[run.ID] = &runCopy
	return nil
}

// Get retrieves a run by ID
func (s *MemoryRunStore) Get(id string) (*domain.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, exists := s.runs[id]
	if !exists {
		return nil, apperrors.NewNotFoundError("run " + id)
	}

	// Return a copy to prevent external modification
	runCopy := *run
	return &runCopy, nil
}

// List returns runs matching the filter, newest first, plus the number of
// matches before paging.
func (s *MemoryRunStore) List(filter RunFilter) ([]*domain.Run, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matched := make([]*domain.Run, 0, len(s.runs))
	for _, run := range s.runs {
		if filter.Status != "" && run.Status != filter.Status {
			continue
		}
		runCopy := *run
		matched = append(matched, &runCopy)
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].StartedAt.Equal(matched[j].StartedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].StartedAt.After(matched[j].StartedAt)
	})

	total := len(matched)
	if filter.Offset > 0 {
		if filter.Offset >= total {
			return []*domain.Run{}, total, nil
		}
		matched = matched[filter.Offset:]
	}
	if filter.Limit > 0 && len(matched) > filter.Limit {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}

// CleanupOldRuns removes finished runs that completed before olderThan ago
func (s *MemoryRunStore) CleanupOldRuns(olderThan time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().Add(-olderThan)
	deleted := 0
	for id, run := range s.runs {
		if run.CompletedAt != nil && run.CompletedAt.Before(cutoff) {
			delete(s.runs, id)
			deleted++
		}
	}
	return deleted
}
