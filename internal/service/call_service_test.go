package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/mocks"
	"github.com/voxlog/callscribe-api/internal/store"
)

// mockJobSubmitter records submissions and optionally fails them.
type mockJobSubmitter struct {
	mu          sync.Mutex
	submissions []uuid.UUID
	delays      []time.Duration
	err         error
}

func (m *mockJobSubmitter) Enqueue(
	_ context.Context,
	callID uuid.UUID,
	delay time.Duration,
) (uuid.UUID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return uuid.Nil, m.err
	}
	m.submissions = append(m.submissions, callID)
	m.delays = append(m.delays, delay)
	return uuid.New(), nil
}

func (m *mockJobSubmitter) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.submissions)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T) (CallService, *mocks.MockCallStore, *mockJobSubmitter) {
	t.Helper()

	calls := mocks.NewMockCallStore()
	jobs := &mockJobSubmitter{}
	svc, err := NewCallService(calls, jobs, 100*time.Millisecond, testLogger())
	require.NoError(t, err)
	return svc, calls, jobs
}

func participants() []domain.Participant {
	return []domain.Participant{
		{Name: "Alice", Email: "alice@example.com", Role: domain.ParticipantRoleHost},
	}
}

func TestNewCallServiceValidatesDependencies(t *testing.T) {
	calls := mocks.NewMockCallStore()
	jobs := &mockJobSubmitter{}

	_, err := NewCallService(nil, jobs, 0, testLogger())
	assert.Error(t, err)

	_, err = NewCallService(calls, nil, 0, testLogger())
	assert.Error(t, err)

	_, err = NewCallService(calls, jobs, 0, nil)
	assert.Error(t, err)
}

func TestCreateCall(t *testing.T) {
	svc, calls, jobs := newTestService(t)
	userID := uuid.New()

	scheduled := time.Now().Add(time.Hour).UTC()
	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Planning",
		Participants: participants(),
		Notes:        "agenda attached",
		ScheduledAt:  &scheduled,
	})
	require.NoError(t, err)

	assert.Equal(t, userID, call.UserID)
	assert.Equal(t, domain.CallStatusScheduled, call.Status)
	assert.Equal(t, domain.TranscriptionStatusPending, call.TranscriptionStatus)
	assert.Equal(t, scheduled, call.ScheduledAt)

	stored, err := calls.GetByID(context.Background(), call.ID)
	require.NoError(t, err)
	assert.Equal(t, "agenda attached", stored.Notes)

	// One job submitted with the configured delay.
	require.Equal(t, 1, jobs.count())
	assert.Equal(t, call.ID, jobs.submissions[0])
	assert.Equal(t, 100*time.Millisecond, jobs.delays[0])
}

func TestCreateCallInvalidTitle(t *testing.T) {
	svc, _, jobs := newTestService(t)

	_, err := svc.CreateCall(context.Background(), uuid.New(), CreateCallInput{
		Title:        "",
		Participants: participants(),
	})
	assert.ErrorIs(t, err, domain.ErrEmptyCallTitle)
	assert.Zero(t, jobs.count())
}

func TestCreateCallSurvivesSubmitFailure(t *testing.T) {
	svc, calls, jobs := newTestService(t)
	jobs.err = errors.New("queue full")

	call, err := svc.CreateCall(context.Background(), uuid.New(), CreateCallInput{
		Title:        "No queue today",
		Participants: participants(),
	})
	require.NoError(t, err)

	// The call exists with transcription pending despite the failed submit.
	stored, err := calls.GetByID(context.Background(), call.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TranscriptionStatusPending, stored.TranscriptionStatus)
}

func TestGetCallOwnership(t *testing.T) {
	svc, _, _ := newTestService(t)
	owner := uuid.New()

	call, err := svc.CreateCall(context.Background(), owner, CreateCallInput{
		Title:        "Private",
		Participants: participants(),
	})
	require.NoError(t, err)

	got, err := svc.GetCall(context.Background(), owner, call.ID)
	require.NoError(t, err)
	assert.Equal(t, call.ID, got.ID)

	_, err = svc.GetCall(context.Background(), uuid.New(), call.ID)
	assert.ErrorIs(t, err, ErrNotOwned)

	_, err = svc.GetCall(context.Background(), owner, uuid.New())
	assert.ErrorIs(t, err, store.ErrCallNotFound)
}

func TestListCalls(t *testing.T) {
	svc, _, _ := newTestService(t)
	userID := uuid.New()

	for _, title := range []string{"Standup", "Retro", "Planning"} {
		_, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
			Title:        title,
			Participants: participants(),
		})
		require.NoError(t, err)
	}
	// Another user's call is invisible.
	_, err := svc.CreateCall(context.Background(), uuid.New(), CreateCallInput{
		Title:        "Other tenant",
		Participants: participants(),
	})
	require.NoError(t, err)

	calls, total, err := svc.ListCalls(context.Background(), userID, ListCallsInput{
		Page:  1,
		Limit: 2,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, calls, 2)

	calls, total, err = svc.ListCalls(context.Background(), userID, ListCallsInput{
		Search: "retro",
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, calls, 1)
	assert.Equal(t, "Retro", calls[0].Title)
}

func TestUpdateCall(t *testing.T) {
	svc, _, _ := newTestService(t)
	userID := uuid.New()

	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Before",
		Participants: participants(),
	})
	require.NoError(t, err)

	title := "After"
	status := domain.CallStatusCompleted
	started := time.Now().Add(-30 * time.Minute).UTC()
	ended := time.Now().UTC()

	updated, err := svc.UpdateCall(context.Background(), userID, call.ID, UpdateCallInput{
		Title:     &title,
		Status:    &status,
		StartedAt: &started,
		EndedAt:   &ended,
	})
	require.NoError(t, err)

	assert.Equal(t, "After", updated.Title)
	assert.Equal(t, domain.CallStatusCompleted, updated.Status)
	// Duration is derived from the supplied timestamps.
	assert.InDelta(t, 1800, updated.DurationSeconds, 1)

	// Ownership is enforced before any field is applied.
	_, err = svc.UpdateCall(context.Background(), uuid.New(), call.ID, UpdateCallInput{Title: &title})
	assert.ErrorIs(t, err, ErrNotOwned)
}

func TestDeleteCall(t *testing.T) {
	svc, calls, _ := newTestService(t)
	userID := uuid.New()

	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Doomed",
		Participants: participants(),
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteCall(context.Background(), uuid.New(), call.ID), ErrNotOwned)

	require.NoError(t, svc.DeleteCall(context.Background(), userID, call.ID))
	_, err = calls.GetByID(context.Background(), call.ID)
	assert.ErrorIs(t, err, store.ErrCallNotFound)
}

func TestRetryTranscription(t *testing.T) {
	svc, calls, jobs := newTestService(t)
	userID := uuid.New()

	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Flaky",
		Participants: participants(),
	})
	require.NoError(t, err)
	require.NoError(t, calls.SetTranscriptionFailed(context.Background(), call.ID, "boom"))

	projection, err := svc.RetryTranscription(context.Background(), userID, call.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.TranscriptionStatusPending, projection.Status)
	assert.Empty(t, projection.Error)
	assert.Equal(t, 1, projection.RetryCount)
	// Creation submitted one job, the retry a second.
	assert.Equal(t, 2, jobs.count())
}

func TestRetryTranscriptionWhileProcessing(t *testing.T) {
	svc, calls, jobs := newTestService(t)
	userID := uuid.New()

	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Busy",
		Participants: participants(),
	})
	require.NoError(t, err)
	require.NoError(t, calls.SetTranscriptionProcessing(context.Background(), call.ID))

	_, err = svc.RetryTranscription(context.Background(), userID, call.ID)
	assert.ErrorIs(t, err, ErrRetryConflict)
	assert.Equal(t, 1, jobs.count())
}

func TestRetryTranscriptionSubmitFailure(t *testing.T) {
	svc, calls, jobs := newTestService(t)
	userID := uuid.New()

	call, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Unlucky",
		Participants: participants(),
	})
	require.NoError(t, err)
	require.NoError(t, calls.SetTranscriptionFailed(context.Background(), call.ID, "boom"))

	jobs.err = errors.New("queue closed")
	_, err = svc.RetryTranscription(context.Background(), userID, call.ID)
	require.Error(t, err)

	var svcErr *CallServiceError
	assert.ErrorAs(t, err, &svcErr)
}

func TestSummary(t *testing.T) {
	svc, calls, _ := newTestService(t)
	userID := uuid.New()

	first, err := svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Done",
		Participants: participants(),
	})
	require.NoError(t, err)
	status := domain.CallStatusCompleted
	_, err = svc.UpdateCall(context.Background(), userID, first.ID, UpdateCallInput{Status: &status})
	require.NoError(t, err)
	require.NoError(t, calls.SetTranscriptionCompleted(context.Background(), first.ID, "text"))

	_, err = svc.CreateCall(context.Background(), userID, CreateCallInput{
		Title:        "Pending",
		Participants: participants(),
	})
	require.NoError(t, err)

	summary, err := svc.Summary(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.TotalCalls)
	assert.Equal(t, 1, summary.CompletedCalls)
	assert.Equal(t, 1, summary.PendingTranscriptions)
	assert.Equal(t, 1, summary.CompletedTranscriptions)
	assert.Equal(t, 50, summary.TranscriptionSuccessRate)
}
