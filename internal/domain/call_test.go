package domain_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voxlog/callscribe-api/internal/domain"
)

func validParticipants() []domain.Participant {
	return []domain.Participant{
		{Name: "Ada Lovelace", Email: "ada@example.com", Role: domain.ParticipantRoleHost},
		{Name: "Grace Hopper", Email: "grace@example.com", Role: domain.ParticipantRoleParticipant},
	}
}

func TestNewCall(t *testing.T) {
	userID := uuid.New()

	call, err := domain.NewCall(userID, "Weekly sync", validParticipants())
	require.NoError(t, err)

	assert.NotEqual(t, uuid.Nil, call.ID)
	assert.Equal(t, userID, call.UserID)
	assert.Equal(t, domain.CallStatusScheduled, call.Status)
	assert.Equal(t, domain.TranscriptionStatusPending, call.TranscriptionStatus)
	assert.Equal(t, 0, call.TranscriptionRetryCount)
	assert.Empty(t, call.TranscriptionText)
	assert.Empty(t, call.TranscriptionError)
	assert.False(t, call.ScheduledAt.IsZero())
}

func TestNewCall_ValidationErrors(t *testing.T) {
	tests := []struct {
		name         string
		userID       uuid.UUID
		title        string
		participants []domain.Participant
		wantErr      error
	}{
		{
			name:    "missing user",
			userID:  uuid.Nil,
			title:   "Weekly sync",
			wantErr: domain.ErrEmptyCallUserID,
		},
		{
			name:    "empty title",
			userID:  uuid.New(),
			title:   "",
			wantErr: domain.ErrEmptyCallTitle,
		},
		{
			name:    "title too long",
			userID:  uuid.New(),
			title:   strings.Repeat("x", domain.MaxCallTitleLength+1),
			wantErr: domain.ErrCallTitleTooLong,
		},
		{
			name:   "participant without email",
			userID: uuid.New(),
			title:  "Weekly sync",
			participants: []domain.Participant{
				{Name: "Ada", Role: domain.ParticipantRoleHost},
			},
			wantErr: domain.ErrInvalidParticipant,
		},
		{
			name:   "participant with bogus role",
			userID: uuid.New(),
			title:  "Weekly sync",
			participants: []domain.Participant{
				{Name: "Ada", Email: "ada@example.com", Role: "moderator"},
			},
			wantErr: domain.ErrInvalidParticipantRole,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := domain.NewCall(tt.userID, tt.title, tt.participants)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCall_Validate_Notes(t *testing.T) {
	call, err := domain.NewCall(uuid.New(), "Weekly sync", nil)
	require.NoError(t, err)

	call.Notes = strings.Repeat("n", domain.MaxCallNotesLength)
	assert.NoError(t, call.Validate())

	call.Notes += "n"
	assert.ErrorIs(t, call.Validate(), domain.ErrCallNotesTooLong)
}

func TestCall_Validate_Timestamps(t *testing.T) {
	call, err := domain.NewCall(uuid.New(), "Weekly sync", nil)
	require.NoError(t, err)

	started := time.Now().UTC()
	ended := started.Add(-time.Minute)
	call.StartedAt = &started
	call.EndedAt = &ended

	assert.ErrorIs(t, call.Validate(), domain.ErrCallEndedBeforeItStarted)
}

func TestCall_RecomputeDuration(t *testing.T) {
	call, err := domain.NewCall(uuid.New(), "Weekly sync", nil)
	require.NoError(t, err)

	// No timestamps: duration untouched
	call.DurationSeconds = 42
	call.RecomputeDuration()
	assert.Equal(t, 42, call.DurationSeconds)

	started := time.Now().UTC()
	ended := started.Add(15 * time.Minute)
	call.StartedAt = &started
	call.EndedAt = &ended
	call.RecomputeDuration()
	assert.Equal(t, 900, call.DurationSeconds)
}
