package transcription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// JobState represents the queue-internal state of a transcription job.
// It is distinct from the call's transcription status: a job can be
// "waiting" on a retry while the call's status still reads "failed".
type JobState string

// Possible job state values
const (
	JobStateWaiting   JobState = "waiting"
	JobStateActive    JobState = "active"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// Job is a single unit of transcription work referencing a call.
//
// Attempt is 1-based and bounded by MaxAttempts; a job failing on its final
// attempt is dead-lettered (State becomes failed with no further retries).
// RunAt is the time the job becomes eligible for dequeue.
type Job struct {
	ID          uuid.UUID `json:"id"`
	CallID      uuid.UUID `json:"call_id"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	State       JobState  `json:"state"`
	RunAt       time.Time `json:"run_at"`
	LastError   string    `json:"last_error,omitempty"`
	EnqueuedAt  time.Time `json:"enqueued_at"`

	// seq preserves FIFO order among jobs with equal RunAt. In-memory only.
	seq uint64
}

// JobStore defines the interface for persisting transcription jobs so the
// queue survives restarts. The queue is the only writer; implementations do
// not need to enforce state transitions.
type JobStore interface {
	// SaveJob persists a newly enqueued job.
	SaveJob(ctx context.Context, job *Job) error

	// UpdateJob persists a state change (claim, completion, retry, dead-letter).
	// Returns store.ErrJobNotFound if the job does not exist.
	UpdateJob(ctx context.Context, job *Job) error

	// GetJobsByState retrieves all jobs in the given state, ordered by
	// eligibility time then insertion time.
	GetJobsByState(ctx context.Context, state JobState) ([]*Job, error)
}
