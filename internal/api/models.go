package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/voxlog/callscribe-api/internal/domain"
)

// Common request/response structures

// RegisterRequest defines the payload for the user registration endpoint.
type RegisterRequest struct {
	Name     string `json:"name"     validate:"required,max=100"`
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginRequest defines the payload for the user login endpoint.
type LoginRequest struct {
	Email    string `json:"email"    validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

// AuthResponse defines the successful response for authentication endpoints.
type AuthResponse struct {
	// UserID is the unique identifier for the authenticated user
	UserID uuid.UUID `json:"user_id"`

	// Token is the JWT used for API authorization
	Token string `json:"token"`
}

// ParticipantRequest is a single call attendee in a create or update payload.
type ParticipantRequest struct {
	Name  string `json:"name"  validate:"required"`
	Email string `json:"email" validate:"required,email"`
	Role  string `json:"role"  validate:"required,oneof=host participant"`
}

// CreateCallRequest defines the payload for creating a call.
type CreateCallRequest struct {
	Title        string               `json:"title"          validate:"required,max=100"`
	Participants []ParticipantRequest `json:"participants"   validate:"required,min=1,dive"`
	Notes        string               `json:"notes"          validate:"omitempty,max=500"`
	AudioFileURL string               `json:"audio_file_url" validate:"omitempty,url"`
	ScheduledAt  *time.Time           `json:"scheduled_at"`
}

// UpdateCallRequest defines the payload for a partial call update. Absent
// fields are left unchanged.
type UpdateCallRequest struct {
	Title        *string               `json:"title"          validate:"omitempty,min=1,max=100"`
	Participants *[]ParticipantRequest `json:"participants"   validate:"omitempty,min=1,dive"`
	Status       *string               `json:"status"         validate:"omitempty,oneof=scheduled in-progress completed cancelled"`
	Notes        *string               `json:"notes"          validate:"omitempty,max=500"`
	AudioFileURL *string               `json:"audio_file_url" validate:"omitempty,url"`
	ScheduledAt  *time.Time            `json:"scheduled_at"`
	StartedAt    *time.Time            `json:"started_at"`
	EndedAt      *time.Time            `json:"ended_at"`
}

// CallListResponse wraps a page of calls with pagination metadata.
type CallListResponse struct {
	// Count is the number of calls on this page.
	Count int `json:"count"`

	// Total is the number of calls matching the filter across all pages.
	Total int `json:"total"`

	Page  int `json:"page"`
	Pages int `json:"pages"`

	Data []*domain.Call `json:"data"`
}

// toParticipants converts request payload participants to domain participants.
func toParticipants(reqs []ParticipantRequest) []domain.Participant {
	participants := make([]domain.Participant, len(reqs))
	for i, p := range reqs {
		participants[i] = domain.Participant{
			Name:  p.Name,
			Email: p.Email,
			Role:  domain.ParticipantRole(p.Role),
		}
	}
	return participants
}
