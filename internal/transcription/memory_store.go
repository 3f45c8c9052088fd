package transcription

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/voxlog/callscribe-api/internal/store"
)

// MemoryJobStore is an in-memory JobStore. Jobs do not survive a process
// restart; it exists for tests and for running without a database.
type MemoryJobStore struct {
	mu   sync.Mutex
	jobs map[uuid.UUID]Job
}

// NewMemoryJobStore creates an empty MemoryJobStore.
func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[uuid.UUID]Job)}
}

var _ JobStore = (*MemoryJobStore)(nil)

// SaveJob implements JobStore.
func (s *MemoryJobStore) SaveJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = *job
	return nil
}

// UpdateJob implements JobStore.
func (s *MemoryJobStore) UpdateJob(_ context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[job.ID]; !ok {
		return store.ErrJobNotFound
	}
	s.jobs[job.ID] = *job
	return nil
}

// GetJobsByState implements JobStore.
func (s *MemoryJobStore) GetJobsByState(_ context.Context, state JobState) ([]*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result []*Job
	for _, job := range s.jobs {
		if job.State == state {
			j := job
			result = append(result, &j)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].RunAt.Equal(result[j].RunAt) {
			return result[i].EnqueuedAt.Before(result[j].EnqueuedAt)
		}
		return result[i].RunAt.Before(result[j].RunAt)
	})
	return result, nil
}

// GetJob returns a snapshot of the stored job, or store.ErrJobNotFound.
func (s *MemoryJobStore) GetJob(_ context.Context, id uuid.UUID) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, store.ErrJobNotFound
	}
	return &job, nil
}
