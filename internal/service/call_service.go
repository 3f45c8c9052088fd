package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/store"
)

// JobSubmitter is the narrow queue interface the call service needs: it
// only submits transcription work, never consumes it.
type JobSubmitter interface {
	Enqueue(ctx context.Context, callID uuid.UUID, delay time.Duration) (uuid.UUID, error)
}

// CreateCallInput carries the caller-supplied fields for a new call.
type CreateCallInput struct {
	Title        string
	Participants []domain.Participant
	Notes        string
	AudioFileURL string
	ScheduledAt  *time.Time
}

// UpdateCallInput carries a partial update; nil fields are left unchanged.
type UpdateCallInput struct {
	Title        *string
	Participants *[]domain.Participant
	Status       *domain.CallStatus
	Notes        *string
	AudioFileURL *string
	ScheduledAt  *time.Time
	StartedAt    *time.Time
	EndedAt      *time.Time
}

// ListCallsInput narrows and pages a call listing.
type ListCallsInput struct {
	Status     domain.CallStatus
	Search     string
	Page       int
	Limit      int
	SortBy     store.CallSortField
	Descending bool
}

// CallService provides call management operations, all scoped to the
// authenticated owner.
type CallService interface {
	// CreateCall creates a call owned by userID and submits its transcription
	// job. A job submission failure does not fail the creation; the call is
	// returned with transcription status pending and can be retried manually.
	CreateCall(ctx context.Context, userID uuid.UUID, input CreateCallInput) (*domain.Call, error)

	// GetCall retrieves a call. Returns ErrNotOwned if the call belongs to a
	// different user.
	GetCall(ctx context.Context, userID, callID uuid.UUID) (*domain.Call, error)

	// ListCalls lists the user's calls and the total match count.
	ListCalls(ctx context.Context, userID uuid.UUID, input ListCallsInput) ([]*domain.Call, int, error)

	// UpdateCall applies a partial update to a call the user owns. The call's
	// duration is re-derived when the start or end timestamps change.
	UpdateCall(ctx context.Context, userID, callID uuid.UUID, input UpdateCallInput) (*domain.Call, error)

	// DeleteCall removes a call the user owns.
	DeleteCall(ctx context.Context, userID, callID uuid.UUID) error

	// GetTranscription retrieves the transcription state of a call the user
	// owns.
	GetTranscription(ctx context.Context, userID, callID uuid.UUID) (*store.TranscriptionProjection, error)

	// RetryTranscription resets a call's transcription and submits a fresh
	// job. Returns ErrRetryConflict while an attempt is running.
	RetryTranscription(ctx context.Context, userID, callID uuid.UUID) (*store.TranscriptionProjection, error)

	// Summary aggregates the user's call and transcription counts.
	Summary(ctx context.Context, userID uuid.UUID) (*store.CallSummary, error)
}

// callServiceImpl implements the CallService interface
type callServiceImpl struct {
	calls       store.CallStore
	jobs        JobSubmitter
	submitDelay time.Duration
	logger      *slog.Logger
}

// NewCallService creates a new CallService. submitDelay is applied to every
// transcription job submitted on call creation or manual retry.
// It returns an error if any of the required dependencies are nil.
func NewCallService(
	calls store.CallStore,
	jobs JobSubmitter,
	submitDelay time.Duration,
	logger *slog.Logger,
) (CallService, error) {
	if calls == nil {
		return nil, fmt.Errorf("call store cannot be nil")
	}
	if jobs == nil {
		return nil, fmt.Errorf("job submitter cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	return &callServiceImpl{
		calls:       calls,
		jobs:        jobs,
		submitDelay: submitDelay,
		logger:      logger.With(slog.String("component", "call_service")),
	}, nil
}

// CreateCall implements CallService.CreateCall
func (s *callServiceImpl) CreateCall(
	ctx context.Context,
	userID uuid.UUID,
	input CreateCallInput,
) (*domain.Call, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	call, err := domain.NewCall(userID, input.Title, input.Participants)
	if err != nil {
		return nil, err
	}
	call.Notes = input.Notes
	call.AudioFileURL = input.AudioFileURL
	if input.ScheduledAt != nil {
		call.ScheduledAt = input.ScheduledAt.UTC()
	}
	if err := call.Validate(); err != nil {
		return nil, err
	}

	if err := s.calls.Create(ctx, call); err != nil {
		return nil, NewCallServiceError("create", "failed to save call", err)
	}

	// Submission failure must not undo the creation: the call record stands
	// on its own with transcription pending, and the retry endpoint can
	// submit a new job later.
	if _, err := s.jobs.Enqueue(ctx, call.ID, s.submitDelay); err != nil {
		log.Error("failed to submit transcription job for new call",
			"error", err,
			"call_id", call.ID)
	}

	log.Info("call created",
		"call_id", call.ID,
		"user_id", userID)
	return call, nil
}

// GetCall implements CallService.GetCall
func (s *callServiceImpl) GetCall(
	ctx context.Context,
	userID, callID uuid.UUID,
) (*domain.Call, error) {
	return s.getOwnedCall(ctx, userID, callID)
}

// ListCalls implements CallService.ListCalls
func (s *callServiceImpl) ListCalls(
	ctx context.Context,
	userID uuid.UUID,
	input ListCallsInput,
) ([]*domain.Call, int, error) {
	calls, total, err := s.calls.List(ctx, store.CallListFilter{
		UserID:     userID,
		Status:     input.Status,
		Search:     input.Search,
		Page:       input.Page,
		Limit:      input.Limit,
		SortBy:     input.SortBy,
		Descending: input.Descending,
	})
	if err != nil {
		return nil, 0, NewCallServiceError("list", "failed to list calls", err)
	}
	return calls, total, nil
}

// UpdateCall implements CallService.UpdateCall
func (s *callServiceImpl) UpdateCall(
	ctx context.Context,
	userID, callID uuid.UUID,
	input UpdateCallInput,
) (*domain.Call, error) {
	call, err := s.getOwnedCall(ctx, userID, callID)
	if err != nil {
		return nil, err
	}

	if input.Title != nil {
		call.Title = *input.Title
	}
	if input.Participants != nil {
		call.Participants = *input.Participants
	}
	if input.Status != nil {
		call.Status = *input.Status
	}
	if input.Notes != nil {
		call.Notes = *input.Notes
	}
	if input.AudioFileURL != nil {
		call.AudioFileURL = *input.AudioFileURL
	}
	if input.ScheduledAt != nil {
		call.ScheduledAt = input.ScheduledAt.UTC()
	}
	if input.StartedAt != nil {
		t := input.StartedAt.UTC()
		call.StartedAt = &t
	}
	if input.EndedAt != nil {
		t := input.EndedAt.UTC()
		call.EndedAt = &t
	}
	call.RecomputeDuration()

	if err := call.Validate(); err != nil {
		return nil, err
	}

	if err := s.calls.Update(ctx, call); err != nil {
		return nil, NewCallServiceError("update", "failed to update call", err)
	}
	return call, nil
}

// DeleteCall implements CallService.DeleteCall
func (s *callServiceImpl) DeleteCall(ctx context.Context, userID, callID uuid.UUID) error {
	if _, err := s.getOwnedCall(ctx, userID, callID); err != nil {
		return err
	}

	if err := s.calls.Delete(ctx, callID); err != nil {
		return NewCallServiceError("delete", "failed to delete call", err)
	}

	logger.FromContextOrDefault(ctx, s.logger).Info("call deleted",
		"call_id", callID,
		"user_id", userID)
	return nil
}

// GetTranscription implements CallService.GetTranscription
func (s *callServiceImpl) GetTranscription(
	ctx context.Context,
	userID, callID uuid.UUID,
) (*store.TranscriptionProjection, error) {
	if _, err := s.getOwnedCall(ctx, userID, callID); err != nil {
		return nil, err
	}

	projection, err := s.calls.GetTranscription(ctx, callID)
	if err != nil {
		return nil, NewCallServiceError("get_transcription", "failed to load transcription", err)
	}
	return projection, nil
}

// RetryTranscription implements CallService.RetryTranscription
func (s *callServiceImpl) RetryTranscription(
	ctx context.Context,
	userID, callID uuid.UUID,
) (*store.TranscriptionProjection, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if _, err := s.getOwnedCall(ctx, userID, callID); err != nil {
		return nil, err
	}

	projection, err := s.calls.GetTranscription(ctx, callID)
	if err != nil {
		return nil, NewCallServiceError("retry", "failed to load transcription", err)
	}

	// A running attempt is allowed to finish; retrying under it would hand
	// two workers the same call.
	if projection.Status == domain.TranscriptionStatusProcessing {
		return nil, ErrRetryConflict
	}

	if err := s.calls.ResetTranscriptionForRetry(ctx, callID); err != nil {
		return nil, NewCallServiceError("retry", "failed to reset transcription", err)
	}

	// Unlike creation, a manual retry exists only to submit the job, so a
	// submission failure is surfaced to the caller.
	if _, err := s.jobs.Enqueue(ctx, callID, s.submitDelay); err != nil {
		return nil, NewCallServiceError("retry", "failed to submit transcription job", err)
	}

	log.Info("transcription retry submitted",
		"call_id", callID,
		"user_id", userID)

	projection, err = s.calls.GetTranscription(ctx, callID)
	if err != nil {
		return nil, NewCallServiceError("retry", "failed to reload transcription", err)
	}
	return projection, nil
}

// Summary implements CallService.Summary
func (s *callServiceImpl) Summary(
	ctx context.Context,
	userID uuid.UUID,
) (*store.CallSummary, error) {
	summary, err := s.calls.Summary(ctx, userID)
	if err != nil {
		return nil, NewCallServiceError("summary", "failed to aggregate calls", err)
	}
	return summary, nil
}

// getOwnedCall loads the call and enforces ownership.
func (s *callServiceImpl) getOwnedCall(
	ctx context.Context,
	userID, callID uuid.UUID,
) (*domain.Call, error) {
	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		if errors.Is(err, store.ErrCallNotFound) {
			return nil, err
		}
		return nil, NewCallServiceError("get", "failed to load call", err)
	}

	if call.UserID != userID {
		return nil, ErrNotOwned
	}
	return call, nil
}
