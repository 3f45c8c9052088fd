package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/voxlog/callscribe-api/internal/domain"
)

// CallSortField is a whitelisted sort key for call listings.
type CallSortField string

// Supported sort fields
const (
	CallSortCreatedAt   CallSortField = "created_at"
	CallSortScheduledAt CallSortField = "scheduled_at"
	CallSortTitle       CallSortField = "title"
)

// CallListFilter narrows and pages a call listing. All listings are scoped
// to a single owner.
type CallListFilter struct {
	UserID uuid.UUID

	// Status filters by call status when non-empty.
	Status domain.CallStatus

	// Search matches title or notes, case-insensitively, when non-empty.
	Search string

	// Page is 1-based; Limit caps the page size.
	Page  int
	Limit int

	// SortBy defaults to created_at; Descending defaults to true.
	SortBy     CallSortField
	Descending bool
}

// TranscriptionProjection is the narrow read of a call's transcription state
// exposed to pollers and to the retry flow.
type TranscriptionProjection struct {
	CallID     uuid.UUID                  `json:"call_id"`
	Title      string                     `json:"title"`
	Status     domain.TranscriptionStatus `json:"transcription_status"`
	Text       string                     `json:"transcription_text"`
	RetryCount int                        `json:"transcription_retry_count"`
	Error      string                     `json:"transcription_error"`
}

// CallSummary aggregates per-user call and transcription counts for the
// analytics endpoint.
type CallSummary struct {
	TotalCalls               int `json:"totalCalls"`
	CompletedCalls           int `json:"completedCalls"`
	PendingTranscriptions    int `json:"pendingTranscriptions"`
	CompletedTranscriptions  int `json:"completedTranscriptions"`
	FailedTranscriptions     int `json:"failedTranscriptions"`
	TranscriptionSuccessRate int `json:"transcriptionSuccessRate"`
}

// CallStore defines the interface for call data persistence.
//
// The transcription-state methods (GetTranscription, SetTranscription*) form
// the narrow projection the background workers operate on; workers never
// read or write the rest of the call record.
type CallStore interface {
	// Create saves a new call to the store.
	// It handles domain validation internally.
	Create(ctx context.Context, call *domain.Call) error

	// GetByID retrieves a call by its unique ID.
	// Returns ErrCallNotFound if the call does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error)

	// Update saves changes to an existing call.
	// Returns ErrCallNotFound if the call does not exist.
	Update(ctx context.Context, call *domain.Call) error

	// Delete removes a call from the store.
	// Returns ErrCallNotFound if the call does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// List retrieves the calls matching the filter along with the total
	// number of matches (ignoring pagination).
	List(ctx context.Context, filter CallListFilter) ([]*domain.Call, int, error)

	// GetTranscription retrieves the transcription projection for a call.
	// Returns ErrCallNotFound if the call does not exist.
	GetTranscription(ctx context.Context, id uuid.UUID) (*TranscriptionProjection, error)

	// SetTranscriptionProcessing marks the call's transcription as processing.
	// Returns ErrCallNotFound if the call does not exist.
	SetTranscriptionProcessing(ctx context.Context, id uuid.UUID) error

	// SetTranscriptionCompleted stores the transcript, marks the
	// transcription completed and clears any previous error.
	// Returns ErrCallNotFound if the call does not exist.
	SetTranscriptionCompleted(ctx context.Context, id uuid.UUID, text string) error

	// SetTranscriptionFailed marks the transcription failed with the given
	// human-readable cause.
	// Returns ErrCallNotFound if the call does not exist.
	SetTranscriptionFailed(ctx context.Context, id uuid.UUID, cause string) error

	// IncrementTranscriptionRetryCount bumps the call's retry counter.
	// Called by the worker pool when an automatic retry attempt begins;
	// manual retries bump the counter via ResetTranscriptionForRetry.
	// Returns ErrCallNotFound if the call does not exist.
	IncrementTranscriptionRetryCount(ctx context.Context, id uuid.UUID) error

	// ResetTranscriptionForRetry returns the transcription to pending,
	// clears the stored error and increments the retry count. The retry
	// count is never reset; it records how many retry cycles the call has
	// been through in total.
	// Returns ErrCallNotFound if the call does not exist.
	ResetTranscriptionForRetry(ctx context.Context, id uuid.UUID) error

	// ListProcessingTranscriptions returns the IDs of all calls whose
	// transcription status is currently "processing". Used by the worker
	// pool's startup reconciliation to detect calls stranded by a crash.
	ListProcessingTranscriptions(ctx context.Context) ([]uuid.UUID, error)

	// Summary aggregates call and transcription counts for a single owner.
	Summary(ctx context.Context, userID uuid.UUID) (*CallSummary, error)
}
