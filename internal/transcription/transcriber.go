package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/voxlog/callscribe-api/internal/domain"
)

// ErrSimulatedFailure is returned by the mock transcriber on its randomized
// failure path.
var ErrSimulatedFailure = errors.New("simulated transcription failure")

// Transcriber produces a transcript for a call. Implementations may block
// for the duration of the transcription work and must honor context
// cancellation. A real implementation would call an external speech-to-text
// backend here.
type Transcriber interface {
	Transcribe(ctx context.Context, callID uuid.UUID) (string, error)
}

// CallReader is the narrow read access the mock transcriber needs to render
// call metadata into its placeholder transcript.
type CallReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error)
}

// MockConfig tunes the randomized mock transcriber.
type MockConfig struct {
	// MinDuration and MaxDuration bound the simulated processing time.
	MinDuration time.Duration
	MaxDuration time.Duration

	// FailureRate is the probability in [0,1] that a transcription attempt
	// fails with ErrSimulatedFailure.
	FailureRate float64
}

// DefaultMockConfig returns the reference behavior: 2-10s of simulated work
// with a 5% failure rate.
func DefaultMockConfig() MockConfig {
	return MockConfig{
		MinDuration: 2 * time.Second,
		MaxDuration: 10 * time.Second,
		FailureRate: 0.05,
	}
}

// MockTranscriber simulates transcription work: it sleeps for a randomized
// duration, fails with a small probability, and otherwise produces a
// placeholder transcript built from the call's metadata.
type MockTranscriber struct {
	calls  CallReader
	config MockConfig
	logger *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewMockTranscriber creates a MockTranscriber reading call metadata from
// the given reader.
func NewMockTranscriber(calls CallReader, config MockConfig, logger *slog.Logger) *MockTranscriber {
	if config.MaxDuration < config.MinDuration {
		config.MaxDuration = config.MinDuration
	}

	return &MockTranscriber{
		calls:  calls,
		config: config,
		logger: logger.With(slog.String("component", "mock_transcriber")),
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

var _ Transcriber = (*MockTranscriber)(nil)

// Transcribe implements Transcriber.
func (t *MockTranscriber) Transcribe(ctx context.Context, callID uuid.UUID) (string, error) {
	call, err := t.calls.GetByID(ctx, callID)
	if err != nil {
		return "", fmt.Errorf("failed to load call for transcription: %w", err)
	}

	duration, shouldFail := t.roll()
	t.logger.Debug("simulating transcription work",
		"call_id", callID,
		"duration", duration)

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(duration):
	}

	if shouldFail {
		return "", ErrSimulatedFailure
	}

	return renderMockTranscript(call), nil
}

// roll draws the simulated duration and failure outcome under the lock;
// math/rand sources are not safe for concurrent use.
func (t *MockTranscriber) roll() (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	duration := t.config.MinDuration
	if spread := t.config.MaxDuration - t.config.MinDuration; spread > 0 {
		duration += time.Duration(t.rng.Int63n(int64(spread)))
	}
	return duration, t.rng.Float64() < t.config.FailureRate
}

// renderMockTranscript builds the placeholder transcript from the call's
// participants and duration.
func renderMockTranscript(call *domain.Call) string {
	names := make([]string, 0, len(call.Participants))
	for _, p := range call.Participants {
		names = append(names, p.Name)
	}
	participants := strings.Join(names, ", ")
	if participants == "" {
		participants = "unknown"
	}

	minutes := call.DurationSeconds / 60
	if minutes == 0 {
		minutes = 15
	}

	return fmt.Sprintf(`This is a mock transcription for call %s.
Meeting participants: %s
Duration: %d minutes
Key topics discussed: Project planning, timeline, deliverables
Action items: Follow up on budget, schedule next meeting`,
		call.ID, participants, minutes)
}

// StaticTranscriber is a deterministic Transcriber: it returns a fixed
// transcript, or a configured error, after an optional fixed delay.
// Intended for tests and local development.
type StaticTranscriber struct {
	mu    sync.Mutex
	text  string
	err   error
	delay time.Duration
}

// NewStaticTranscriber creates a StaticTranscriber returning the given text.
func NewStaticTranscriber(text string) *StaticTranscriber {
	return &StaticTranscriber{text: text}
}

var _ Transcriber = (*StaticTranscriber)(nil)

// SetError makes subsequent Transcribe calls fail with err; pass nil to
// restore success.
func (t *StaticTranscriber) SetError(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// SetDelay makes subsequent Transcribe calls block for d before returning.
func (t *StaticTranscriber) SetDelay(d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.delay = d
}

// Transcribe implements Transcriber.
func (t *StaticTranscriber) Transcribe(ctx context.Context, callID uuid.UUID) (string, error) {
	t.mu.Lock()
	text, err, delay := t.text, t.err, t.delay
	t.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
	}

	if err != nil {
		return "", err
	}
	return text, nil
}
