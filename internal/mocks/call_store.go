package mocks

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/store"
)

// MockCallStore implements store.CallStore as a thread-safe in-memory map.
// Individual methods can be overridden through the corresponding Fn fields
// for error injection.
type MockCallStore struct {
	mu    sync.Mutex
	calls map[uuid.UUID]*domain.Call

	// Optional method overrides
	GetTranscriptionFn           func(ctx context.Context, id uuid.UUID) (*store.TranscriptionProjection, error)
	SetTranscriptionProcessingFn func(ctx context.Context, id uuid.UUID) error
	SetTranscriptionCompletedFn  func(ctx context.Context, id uuid.UUID, text string) error
	SetTranscriptionFailedFn     func(ctx context.Context, id uuid.UUID, cause string) error
	ResetTranscriptionForRetryFn func(ctx context.Context, id uuid.UUID) error
}

// NewMockCallStore creates an empty MockCallStore.
func NewMockCallStore() *MockCallStore {
	return &MockCallStore{calls: make(map[uuid.UUID]*domain.Call)}
}

var _ store.CallStore = (*MockCallStore)(nil)

// Create implements store.CallStore.
func (m *MockCallStore) Create(_ context.Context, call *domain.Call) error {
	if err := call.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.calls[call.ID]; exists {
		return store.ErrDuplicate
	}
	clone := *call
	m.calls[call.ID] = &clone
	return nil
}

// GetByID implements store.CallStore.
func (m *MockCallStore) GetByID(_ context.Context, id uuid.UUID) (*domain.Call, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return nil, store.ErrCallNotFound
	}
	clone := *call
	return &clone, nil
}

// Update implements store.CallStore.
func (m *MockCallStore) Update(_ context.Context, call *domain.Call) error {
	if err := call.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[call.ID]; !ok {
		return store.ErrCallNotFound
	}
	clone := *call
	clone.UpdatedAt = time.Now().UTC()
	m.calls[call.ID] = &clone
	return nil
}

// Delete implements store.CallStore.
func (m *MockCallStore) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.calls[id]; !ok {
		return store.ErrCallNotFound
	}
	delete(m.calls, id)
	return nil
}

// List implements store.CallStore.
func (m *MockCallStore) List(
	_ context.Context,
	filter store.CallListFilter,
) ([]*domain.Call, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*domain.Call
	for _, call := range m.calls {
		if call.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && call.Status != filter.Status {
			continue
		}
		if filter.Search != "" {
			needle := strings.ToLower(filter.Search)
			if !strings.Contains(strings.ToLower(call.Title), needle) &&
				!strings.Contains(strings.ToLower(call.Notes), needle) {
				continue
			}
		}
		clone := *call
		matches = append(matches, &clone)
	}

	sort.Slice(matches, func(i, j int) bool {
		var less bool
		switch filter.SortBy {
		case store.CallSortTitle:
			less = matches[i].Title < matches[j].Title
		case store.CallSortScheduledAt:
			less = matches[i].ScheduledAt.Before(matches[j].ScheduledAt)
		default:
			less = matches[i].CreatedAt.Before(matches[j].CreatedAt)
		}
		if filter.Descending {
			return !less
		}
		return less
	})

	total := len(matches)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	start := (page - 1) * limit
	if start >= total {
		return []*domain.Call{}, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return matches[start:end], total, nil
}

// GetTranscription implements store.CallStore.
func (m *MockCallStore) GetTranscription(
	ctx context.Context,
	id uuid.UUID,
) (*store.TranscriptionProjection, error) {
	if m.GetTranscriptionFn != nil {
		return m.GetTranscriptionFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return nil, store.ErrCallNotFound
	}
	return &store.TranscriptionProjection{
		CallID:     call.ID,
		Title:      call.Title,
		Status:     call.TranscriptionStatus,
		Text:       call.TranscriptionText,
		RetryCount: call.TranscriptionRetryCount,
		Error:      call.TranscriptionError,
	}, nil
}

// SetTranscriptionProcessing implements store.CallStore.
func (m *MockCallStore) SetTranscriptionProcessing(ctx context.Context, id uuid.UUID) error {
	if m.SetTranscriptionProcessingFn != nil {
		return m.SetTranscriptionProcessingFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return store.ErrCallNotFound
	}
	call.TranscriptionStatus = domain.TranscriptionStatusProcessing
	call.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTranscriptionCompleted implements store.CallStore.
func (m *MockCallStore) SetTranscriptionCompleted(
	ctx context.Context,
	id uuid.UUID,
	text string,
) error {
	if m.SetTranscriptionCompletedFn != nil {
		return m.SetTranscriptionCompletedFn(ctx, id, text)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return store.ErrCallNotFound
	}
	call.TranscriptionStatus = domain.TranscriptionStatusCompleted
	call.TranscriptionText = text
	call.TranscriptionError = ""
	call.UpdatedAt = time.Now().UTC()
	return nil
}

// SetTranscriptionFailed implements store.CallStore.
func (m *MockCallStore) SetTranscriptionFailed(
	ctx context.Context,
	id uuid.UUID,
	cause string,
) error {
	if m.SetTranscriptionFailedFn != nil {
		return m.SetTranscriptionFailedFn(ctx, id, cause)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return store.ErrCallNotFound
	}
	call.TranscriptionStatus = domain.TranscriptionStatusFailed
	call.TranscriptionError = cause
	call.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementTranscriptionRetryCount implements store.CallStore.
func (m *MockCallStore) IncrementTranscriptionRetryCount(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return store.ErrCallNotFound
	}
	call.TranscriptionRetryCount++
	call.UpdatedAt = time.Now().UTC()
	return nil
}

// ResetTranscriptionForRetry implements store.CallStore.
func (m *MockCallStore) ResetTranscriptionForRetry(ctx context.Context, id uuid.UUID) error {
	if m.ResetTranscriptionForRetryFn != nil {
		return m.ResetTranscriptionForRetryFn(ctx, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	call, ok := m.calls[id]
	if !ok {
		return store.ErrCallNotFound
	}
	call.TranscriptionStatus = domain.TranscriptionStatusPending
	call.TranscriptionError = ""
	call.TranscriptionRetryCount++
	call.UpdatedAt = time.Now().UTC()
	return nil
}

// ListProcessingTranscriptions implements store.CallStore.
func (m *MockCallStore) ListProcessingTranscriptions(_ context.Context) ([]uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []uuid.UUID
	for id, call := range m.calls {
		if call.TranscriptionStatus == domain.TranscriptionStatusProcessing {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// Summary implements store.CallStore.
func (m *MockCallStore) Summary(_ context.Context, userID uuid.UUID) (*store.CallSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	summary := &store.CallSummary{}
	for _, call := range m.calls {
		if call.UserID != userID {
			continue
		}
		summary.TotalCalls++
		if call.Status == domain.CallStatusCompleted {
			summary.CompletedCalls++
		}
		switch call.TranscriptionStatus {
		case domain.TranscriptionStatusPending:
			summary.PendingTranscriptions++
		case domain.TranscriptionStatusCompleted:
			summary.CompletedTranscriptions++
		case domain.TranscriptionStatusFailed:
			summary.FailedTranscriptions++
		}
	}
	if summary.TotalCalls > 0 {
		summary.TranscriptionSuccessRate = summary.CompletedTranscriptions * 100 / summary.TotalCalls
	}
	return summary, nil
}
