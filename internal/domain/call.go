package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// CallStatus represents the lifecycle state of the call itself,
// independent of its transcription.
type CallStatus string

// Possible call status values
const (
	CallStatusScheduled  CallStatus = "scheduled"
	CallStatusInProgress CallStatus = "in-progress"
	CallStatusCompleted  CallStatus = "completed"
	CallStatusCancelled  CallStatus = "cancelled"
)

// TranscriptionStatus represents the processing state of a call's transcription.
type TranscriptionStatus string

// Possible transcription status values
const (
	TranscriptionStatusPending    TranscriptionStatus = "pending"
	TranscriptionStatusProcessing TranscriptionStatus = "processing"
	TranscriptionStatusCompleted  TranscriptionStatus = "completed"
	TranscriptionStatusFailed     TranscriptionStatus = "failed"
)

// ParticipantRole distinguishes the host of a call from ordinary participants.
type ParticipantRole string

// Possible participant roles
const (
	ParticipantRoleHost        ParticipantRole = "host"
	ParticipantRoleParticipant ParticipantRole = "participant"
)

// Field length limits for Call
const (
	MaxCallTitleLength = 100
	MaxCallNotesLength = 500
)

// Common validation errors for Call
var (
	ErrEmptyCallID              = errors.New("call ID cannot be empty")
	ErrEmptyCallUserID          = errors.New("call user ID cannot be empty")
	ErrEmptyCallTitle           = errors.New("call title cannot be empty")
	ErrCallTitleTooLong         = errors.New("call title cannot be more than 100 characters")
	ErrCallNotesTooLong         = errors.New("call notes cannot be more than 500 characters")
	ErrInvalidCallStatus        = errors.New("invalid call status")
	ErrInvalidTranscription     = errors.New("invalid transcription status")
	ErrInvalidParticipant       = errors.New("participant requires a name and email")
	ErrInvalidParticipantRole   = errors.New("invalid participant role")
	ErrNegativeRetryCount       = errors.New("transcription retry count cannot be negative")
	ErrCallEndedBeforeItStarted = errors.New("call cannot end before it started")
)

// Participant is a single attendee of a call.
type Participant struct {
	Name  string          `json:"name"`
	Email string          `json:"email"`
	Role  ParticipantRole `json:"role"`
}

// Validate checks the participant's required fields.
func (p Participant) Validate() error {
	if p.Name == "" || p.Email == "" {
		return ErrInvalidParticipant
	}
	switch p.Role {
	case ParticipantRoleHost, ParticipantRoleParticipant:
		return nil
	default:
		return ErrInvalidParticipantRole
	}
}

// Call represents a recorded call and the state of its transcription.
// Transcription progresses pending -> processing -> completed|failed,
// driven by the background worker pool.
type Call struct {
	ID           uuid.UUID     `json:"id"`
	UserID       uuid.UUID     `json:"user_id"`
	Title        string        `json:"title"`
	Participants []Participant `json:"participants"`
	Status       CallStatus    `json:"status"`
	Notes        string        `json:"notes,omitempty"`
	AudioFileURL string        `json:"audio_file_url,omitempty"`

	// DurationSeconds is derived from StartedAt/EndedAt when both are set.
	DurationSeconds int        `json:"duration"`
	ScheduledAt     time.Time  `json:"scheduled_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	EndedAt         *time.Time `json:"ended_at,omitempty"`

	TranscriptionStatus     TranscriptionStatus `json:"transcription_status"`
	TranscriptionText       string              `json:"transcription_text"`
	TranscriptionRetryCount int                 `json:"transcription_retry_count"`
	TranscriptionError      string              `json:"transcription_error"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewCall creates a new Call owned by the given user. The call starts in
// status "scheduled" with transcription status "pending" and a zero retry
// count. ScheduledAt defaults to now when not provided.
// Returns an error if validation fails.
func NewCall(userID uuid.UUID, title string, participants []Participant) (*Call, error) {
	now := time.Now().UTC()
	call := &Call{
		ID:                  uuid.New(),
		UserID:              userID,
		Title:               title,
		Participants:        participants,
		Status:              CallStatusScheduled,
		ScheduledAt:         now,
		TranscriptionStatus: TranscriptionStatusPending,
		CreatedAt:           now,
		UpdatedAt:           now,
	}

	if err := call.Validate(); err != nil {
		return nil, err
	}

	return call, nil
}

// Validate checks if the Call has valid data.
// Returns an error if any field fails validation.
func (c *Call) Validate() error {
	if c.ID == uuid.Nil {
		return ErrEmptyCallID
	}
	if c.UserID == uuid.Nil {
		return ErrEmptyCallUserID
	}
	if c.Title == "" {
		return ErrEmptyCallTitle
	}
	if len(c.Title) > MaxCallTitleLength {
		return ErrCallTitleTooLong
	}
	if len(c.Notes) > MaxCallNotesLength {
		return ErrCallNotesTooLong
	}
	if !isValidCallStatus(c.Status) {
		return ErrInvalidCallStatus
	}
	if !isValidTranscriptionStatus(c.TranscriptionStatus) {
		return ErrInvalidTranscription
	}
	if c.TranscriptionRetryCount < 0 {
		return ErrNegativeRetryCount
	}
	if c.StartedAt != nil && c.EndedAt != nil && c.EndedAt.Before(*c.StartedAt) {
		return ErrCallEndedBeforeItStarted
	}
	for _, p := range c.Participants {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RecomputeDuration derives DurationSeconds from StartedAt and EndedAt.
// When either timestamp is missing the duration is left unchanged.
func (c *Call) RecomputeDuration() {
	if c.StartedAt != nil && c.EndedAt != nil {
		c.DurationSeconds = int(c.EndedAt.Sub(*c.StartedAt) / time.Second)
	}
}

// isValidCallStatus checks if the given status is a valid CallStatus.
func isValidCallStatus(status CallStatus) bool {
	switch status {
	case CallStatusScheduled, CallStatusInProgress, CallStatusCompleted, CallStatusCancelled:
		return true
	default:
		return false
	}
}

// isValidTranscriptionStatus checks if the given status is a valid TranscriptionStatus.
func isValidTranscriptionStatus(status TranscriptionStatus) bool {
	switch status {
	case TranscriptionStatusPending, TranscriptionStatusProcessing,
		TranscriptionStatusCompleted, TranscriptionStatusFailed:
		return true
	default:
		return false
	}
}
