package transcription

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Common errors returned by the JobQueue
var (
	ErrQueueClosed = errors.New("transcription queue is closed")
	ErrQueueFull   = errors.New("transcription queue is full")
)

// QueueConfig holds configuration for the job queue.
type QueueConfig struct {
	// SubmitDelay is applied to newly enqueued jobs before they become
	// eligible for dequeue.
	SubmitDelay time.Duration

	// RetryBaseDelay is the base of the exponential backoff: a job failing
	// its k-th attempt is retried after RetryBaseDelay * 2^(k-1).
	RetryBaseDelay time.Duration

	// MaxAttempts bounds automatic retries. A job failing on attempt
	// MaxAttempts is dead-lettered.
	MaxAttempts int

	// MaxPending bounds the number of waiting jobs held by the scheduler.
	MaxPending int
}

// DefaultQueueConfig returns a QueueConfig with the reference behavior:
// 1s submission delay, 2s backoff base, 3 attempts.
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		SubmitDelay:    time.Second,
		RetryBaseDelay: 2 * time.Second,
		MaxAttempts:    3,
		MaxPending:     100,
	}
}

// JobQueue is a durable delayed FIFO queue of transcription jobs.
//
// Scheduling happens in memory (a min-heap ordered by eligibility time with
// insertion-order tie-break); every state change is written through the
// JobStore so the queue can be rebuilt after a restart via Recover. Claim
// semantics are at-most-one: the scheduler hands each job to exactly one
// dequeuer.
type JobQueue struct {
	store  JobStore
	config QueueConfig
	logger *slog.Logger

	mu      sync.Mutex
	waiting jobHeap
	// live tracks waiting and active jobs by ID; jobs leave the map when
	// they reach a terminal state, which makes Complete/Fail idempotent.
	live   map[uuid.UUID]*Job
	wake   chan struct{}
	seq    uint64
	closed bool
}

// NewJobQueue creates a new JobQueue backed by the given store.
func NewJobQueue(store JobStore, config QueueConfig, logger *slog.Logger) *JobQueue {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultQueueConfig().MaxAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultQueueConfig().RetryBaseDelay
	}
	if config.MaxPending <= 0 {
		config.MaxPending = DefaultQueueConfig().MaxPending
	}

	return &JobQueue{
		store:  store,
		config: config,
		logger: logger.With(slog.String("component", "job_queue")),
		live:   make(map[uuid.UUID]*Job),
		wake:   make(chan struct{}),
	}
}

// Enqueue inserts a job for the given call, eligible for dequeue at
// now + delay. The job is persisted before it is scheduled, so a crash after
// Enqueue returns cannot lose it. Returns the queue-assigned job ID.
func (q *JobQueue) Enqueue(ctx context.Context, callID uuid.UUID, delay time.Duration) (uuid.UUID, error) {
	now := time.Now().UTC()
	job := &Job{
		ID:          uuid.New(),
		CallID:      callID,
		Attempt:     1,
		MaxAttempts: q.config.MaxAttempts,
		State:       JobStateWaiting,
		RunAt:       now.Add(delay),
		EnqueuedAt:  now,
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return uuid.Nil, ErrQueueClosed
	}
	if q.waiting.Len() >= q.config.MaxPending {
		q.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%w: capacity %d reached", ErrQueueFull, q.config.MaxPending)
	}
	q.mu.Unlock()

	// Durability first: persist, then schedule.
	if err := q.store.SaveJob(ctx, job); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save job: %w", err)
	}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return uuid.Nil, ErrQueueClosed
	}
	q.schedule(job)
	q.mu.Unlock()

	q.logger.Debug("job enqueued",
		"job_id", job.ID,
		"call_id", callID,
		"run_at", job.RunAt)
	return job.ID, nil
}

// Dequeue blocks until a job becomes eligible, the context is cancelled, or
// the queue is closed. The returned job has been claimed (state active) and
// will not be handed to any other caller.
func (q *JobQueue) Dequeue(ctx context.Context) (*Job, error) {
	for {
		q.mu.Lock()
		if q.closed {
			q.mu.Unlock()
			return nil, ErrQueueClosed
		}

		now := time.Now().UTC()
		if q.waiting.Len() > 0 && !q.waiting[0].RunAt.After(now) {
			job := heap.Pop(&q.waiting).(*Job)
			job.State = JobStateActive
			q.mu.Unlock()

			if err := q.store.UpdateJob(ctx, job); err != nil {
				// Claim could not be persisted; put the job back so it is
				// not lost, and surface the error.
				q.mu.Lock()
				job.State = JobStateWaiting
				if !q.closed {
					q.schedule(job)
				}
				q.mu.Unlock()
				return nil, fmt.Errorf("failed to persist job claim: %w", err)
			}

			q.logger.Debug("job claimed",
				"job_id", job.ID,
				"call_id", job.CallID,
				"attempt", job.Attempt)
			return job, nil
		}

		// Nothing eligible: wait for the next run time, a new enqueue, or
		// context cancellation.
		var timerC <-chan time.Time
		var timer *time.Timer
		if q.waiting.Len() > 0 {
			timer = time.NewTimer(time.Until(q.waiting[0].RunAt))
			timerC = timer.C
		}
		wake := q.wake
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil, ctx.Err()
		case <-wake:
		case <-timerC:
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

// Complete marks the job permanently done. Completing a job that is already
// in a terminal state (or unknown) is a no-op: no error, no store write.
func (q *JobQueue) Complete(ctx context.Context, jobID uuid.UUID) error {
	q.mu.Lock()
	job, ok := q.live[jobID]
	if !ok || job.State != JobStateActive {
		q.mu.Unlock()
		return nil
	}
	job.State = JobStateCompleted
	delete(q.live, jobID)
	q.mu.Unlock()

	if err := q.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job completion: %w", err)
	}

	q.logger.Debug("job completed", "job_id", jobID, "call_id", job.CallID)
	return nil
}

// Fail records a failed attempt. Below the attempt ceiling the job is
// re-enqueued with exponential backoff (RetryBaseDelay * 2^(attempt-1));
// at the ceiling it is dead-lettered. Failing an unknown or non-active job
// is a no-op.
func (q *JobQueue) Fail(ctx context.Context, jobID uuid.UUID, cause string) error {
	q.mu.Lock()
	job, ok := q.live[jobID]
	if !ok || job.State != JobStateActive {
		q.mu.Unlock()
		return nil
	}

	job.LastError = cause

	if job.Attempt >= job.MaxAttempts {
		// Out of attempts: dead-letter.
		job.State = JobStateFailed
		delete(q.live, jobID)
		q.mu.Unlock()

		if err := q.store.UpdateJob(ctx, job); err != nil {
			return fmt.Errorf("failed to persist dead-lettered job: %w", err)
		}

		q.logger.Warn("job dead-lettered after exhausting attempts",
			"job_id", jobID,
			"call_id", job.CallID,
			"attempts", job.Attempt,
			"error", cause)
		return nil
	}

	backoff := q.config.RetryBaseDelay << (job.Attempt - 1)
	job.Attempt++
	job.State = JobStateWaiting
	job.RunAt = time.Now().UTC().Add(backoff)
	q.mu.Unlock()

	// Persist the retry before scheduling it, so a dequeuer cannot claim
	// the job while its persisted state still reads active.
	if err := q.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist job retry: %w", err)
	}

	q.mu.Lock()
	q.schedule(job)
	q.mu.Unlock()

	q.logger.Info("job retry scheduled",
		"job_id", jobID,
		"call_id", job.CallID,
		"attempt", job.Attempt,
		"backoff", backoff,
		"error", cause)
	return nil
}

// DeadLetter terminally fails the job regardless of remaining attempts.
// Used when retrying cannot help, e.g. the referenced call does not exist.
func (q *JobQueue) DeadLetter(ctx context.Context, jobID uuid.UUID, cause string) error {
	q.mu.Lock()
	job, ok := q.live[jobID]
	if !ok || job.State != JobStateActive {
		q.mu.Unlock()
		return nil
	}
	job.State = JobStateFailed
	job.LastError = cause
	delete(q.live, jobID)
	q.mu.Unlock()

	if err := q.store.UpdateJob(ctx, job); err != nil {
		return fmt.Errorf("failed to persist dead-lettered job: %w", err)
	}

	q.logger.Warn("job dead-lettered",
		"job_id", jobID,
		"call_id", job.CallID,
		"error", cause)
	return nil
}

// HasJobForCall reports whether the queue currently holds a waiting or
// active job referencing the given call.
func (q *JobQueue) HasJobForCall(callID uuid.UUID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.live {
		if job.CallID == callID {
			return true
		}
	}
	return false
}

// Counts returns the number of jobs currently waiting and active.
func (q *JobQueue) Counts() (waiting, active int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, job := range q.live {
		switch job.State {
		case JobStateWaiting:
			waiting++
		case JobStateActive:
			active++
		}
	}
	return waiting, active
}

// Recover rebuilds the in-memory schedule from the store after a restart.
// Waiting jobs are re-scheduled as-is. Jobs stuck in the active state were
// claimed by a worker that never reported back (a crash); they are returned
// to the waiting state exactly once, eligible immediately, with their
// attempt counter unchanged.
func (q *JobQueue) Recover(ctx context.Context) error {
	waiting, err := q.store.GetJobsByState(ctx, JobStateWaiting)
	if err != nil {
		return fmt.Errorf("failed to load waiting jobs: %w", err)
	}

	stuck, err := q.store.GetJobsByState(ctx, JobStateActive)
	if err != nil {
		return fmt.Errorf("failed to load active jobs: %w", err)
	}

	q.logger.Info("recovering persisted jobs",
		"waiting_count", len(waiting),
		"stuck_count", len(stuck))

	q.mu.Lock()
	for _, job := range waiting {
		q.schedule(job)
	}
	q.mu.Unlock()

	now := time.Now().UTC()
	for _, job := range stuck {
		job.State = JobStateWaiting
		job.RunAt = now
		job.LastError = "reset after recovery"

		if err := q.store.UpdateJob(ctx, job); err != nil {
			q.logger.Error("failed to reset stuck job",
				"job_id", job.ID,
				"call_id", job.CallID,
				"error", err)
			continue
		}

		q.mu.Lock()
		q.schedule(job)
		q.mu.Unlock()
	}

	return nil
}

// Close shuts the queue down. Blocked Dequeue calls return ErrQueueClosed;
// further Enqueue calls are rejected.
func (q *JobQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.wake)
		q.logger.Info("job queue closed")
	}
}

// schedule pushes a waiting job onto the heap and wakes sleeping dequeuers.
// Caller must hold q.mu.
func (q *JobQueue) schedule(job *Job) {
	q.seq++
	job.seq = q.seq
	q.live[job.ID] = job
	heap.Push(&q.waiting, job)
	if !q.closed {
		close(q.wake)
		q.wake = make(chan struct{})
	}
}

// jobHeap orders waiting jobs by eligibility time, breaking ties by
// insertion order so equal RunAt values dequeue FIFO.
type jobHeap []*Job

func (h jobHeap) Len() int { return len(h) }

func (h jobHeap) Less(i, j int) bool {
	if h[i].RunAt.Equal(h[j].RunAt) {
		return h[i].seq < h[j].seq
	}
	return h[i].RunAt.Before(h[j].RunAt)
}

func (h jobHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *jobHeap) Push(x any) {
	*h = append(*h, x.(*Job))
}

func (h *jobHeap) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
