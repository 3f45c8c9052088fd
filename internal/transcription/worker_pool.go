package transcription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/voxlog/callscribe-api/internal/store"
)

// WorkerPoolConfig holds configuration options for the worker pool.
type WorkerPoolConfig struct {
	// WorkerCount determines how many concurrent worker goroutines to start.
	// If zero or negative, defaults to 5.
	WorkerCount int
}

// DefaultWorkerPoolConfig returns a WorkerPoolConfig with the reference
// concurrency of 5.
func DefaultWorkerPoolConfig() WorkerPoolConfig {
	return WorkerPoolConfig{WorkerCount: 5}
}

// WorkerPool runs a fixed set of workers, each looping dequeue -> process ->
// report. Processing drives the call's transcription state machine; per-job
// failures are converted into store state and queue retry decisions, never
// into a crash.
type WorkerPool struct {
	queue       *JobQueue
	calls       store.CallStore
	transcriber Transcriber
	workerCount int
	logger      *slog.Logger

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// NewWorkerPool creates a new worker pool processing jobs from the given
// queue with the given transcriber.
func NewWorkerPool(
	queue *JobQueue,
	calls store.CallStore,
	transcriber Transcriber,
	config WorkerPoolConfig,
	logger *slog.Logger,
) *WorkerPool {
	workerCount := config.WorkerCount
	if workerCount <= 0 {
		workerCount = DefaultWorkerPoolConfig().WorkerCount
		logger.Warn("invalid worker count specified, using default",
			"specified_count", config.WorkerCount,
			"default_count", workerCount)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		queue:       queue,
		calls:       calls,
		transcriber: transcriber,
		workerCount: workerCount,
		logger:      logger.With(slog.String("component", "worker_pool")),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Start recovers persisted jobs, reconciles calls stranded in the
// processing state, and launches the workers.
func (p *WorkerPool) Start() error {
	if err := p.queue.Recover(p.ctx); err != nil {
		return fmt.Errorf("failed to recover jobs: %w", err)
	}

	if err := p.reconcileStrandedCalls(p.ctx); err != nil {
		// Reconciliation failure is not fatal; the affected calls stay
		// visible in their stranded state and can be retried manually.
		p.logger.Error("failed to reconcile stranded calls", "error", err)
	}

	for i := 0; i < p.workerCount; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.logger.Info("worker pool started", "worker_count", p.workerCount)
	return nil
}

// Stop drains the pool: no new jobs are claimed, in-flight jobs run to
// completion, then all workers exit.
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

// worker is a single sequential dequeue/process loop.
func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	logger := p.logger.With(slog.Int("worker_id", id))
	logger.Debug("worker started")

	for {
		job, err := p.queue.Dequeue(p.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, ErrQueueClosed) {
				logger.Debug("worker stopping")
				return
			}
			logger.Error("dequeue failed", "error", err)
			continue
		}

		p.process(job, logger)
	}
}

// process handles a single claimed job. It deliberately uses a background
// context so an in-flight job finishes even while the pool is shutting down.
func (p *WorkerPool) process(job *Job, logger *slog.Logger) {
	ctx := context.Background()
	logger = logger.With(
		slog.String("job_id", job.ID.String()),
		slog.String("call_id", job.CallID.String()),
		slog.Int("attempt", job.Attempt),
	)

	// A missing call is permanent: the reference will never appear, so
	// retrying cannot help.
	_, err := p.calls.GetTranscription(ctx, job.CallID)
	if err != nil {
		if store.IsNotFoundError(err) {
			logger.Warn("call not found, dead-lettering job")
			if dlErr := p.queue.DeadLetter(ctx, job.ID, "call not found"); dlErr != nil {
				logger.Error("failed to dead-letter job", "error", dlErr)
			}
			return
		}

		// Store unreachable: transient, let the queue retry.
		logger.Error("failed to look up call", "error", err)
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("failed to report job failure", "error", failErr)
		}
		return
	}

	// Retry-count policy: increment on every retry, automatic or manual,
	// never reset. Attempts past the first are automatic retries.
	if job.Attempt > 1 {
		if err := p.calls.IncrementTranscriptionRetryCount(ctx, job.CallID); err != nil {
			logger.Error("failed to increment retry count", "error", err)
		}
	}

	if err := p.calls.SetTranscriptionProcessing(ctx, job.CallID); err != nil {
		logger.Error("failed to mark call processing", "error", err)
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("failed to report job failure", "error", failErr)
		}
		return
	}

	logger.Info("processing transcription")

	text, err := p.transcriber.Transcribe(ctx, job.CallID)
	if err != nil {
		logger.Error("transcription failed", "error", err)

		if storeErr := p.calls.SetTranscriptionFailed(ctx, job.CallID, err.Error()); storeErr != nil {
			logger.Error("failed to mark call failed", "error", storeErr)
		}
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("failed to report job failure", "error", failErr)
		}
		return
	}

	if err := p.calls.SetTranscriptionCompleted(ctx, job.CallID, text); err != nil {
		// The transcript could not be stored; keep the job alive so a
		// retry can write it.
		logger.Error("failed to store transcript", "error", err)
		if failErr := p.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			logger.Error("failed to report job failure", "error", failErr)
		}
		return
	}

	if err := p.queue.Complete(ctx, job.ID); err != nil {
		logger.Error("failed to mark job completed", "error", err)
		return
	}

	logger.Info("transcription completed")
}

// reconcileStrandedCalls finds calls whose transcription status is
// "processing" but which no live job backs (a worker crashed mid-job and
// recovery found nothing to requeue, e.g. the job row was already
// terminal). Each such call is failed and retried exactly once.
func (p *WorkerPool) reconcileStrandedCalls(ctx context.Context) error {
	processing, err := p.calls.ListProcessingTranscriptions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list processing calls: %w", err)
	}

	for _, callID := range processing {
		if p.queue.HasJobForCall(callID) {
			continue
		}

		logger := p.logger.With(slog.String("call_id", callID.String()))
		logger.Warn("call stranded in processing, failing and retrying once")

		if err := p.calls.SetTranscriptionFailed(ctx, callID, "processing interrupted by restart"); err != nil {
			logger.Error("failed to mark stranded call failed", "error", err)
			continue
		}
		if err := p.calls.ResetTranscriptionForRetry(ctx, callID); err != nil {
			logger.Error("failed to reset stranded call for retry", "error", err)
			continue
		}
		if _, err := p.queue.Enqueue(ctx, callID, p.queue.config.SubmitDelay); err != nil {
			logger.Error("failed to re-enqueue stranded call", "error", err)
		}
	}

	return nil
}
