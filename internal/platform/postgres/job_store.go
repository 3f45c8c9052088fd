package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/store"
	"github.com/voxlog/callscribe-api/internal/transcription"
)

// PostgresJobStore implements the transcription.JobStore interface using
// PostgreSQL, giving the in-memory job queue a durable backing so it can be
// rebuilt after a restart.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a new PostgresJobStore.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

// Ensure PostgresJobStore implements transcription.JobStore interface
var _ transcription.JobStore = (*PostgresJobStore)(nil)

// SaveJob implements transcription.JobStore.SaveJob
func (s *PostgresJobStore) SaveJob(ctx context.Context, job *transcription.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		INSERT INTO transcription_jobs (
			id, call_id, attempt, max_attempts, state, run_at, last_error,
			enqueued_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.CallID,
		job.Attempt,
		job.MaxAttempts,
		job.State,
		job.RunAt,
		job.LastError,
		job.EnqueuedAt,
		time.Now().UTC(),
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("%w: call with ID %s not found",
				store.ErrInvalidEntity, job.CallID)
		}

		log.Error("failed to save job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}
	return nil
}

// UpdateJob implements transcription.JobStore.UpdateJob
// Returns store.ErrJobNotFound if the job does not exist.
func (s *PostgresJobStore) UpdateJob(ctx context.Context, job *transcription.Job) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE transcription_jobs
		SET attempt = $1, state = $2, run_at = $3, last_error = $4, updated_at = $5
		WHERE id = $6
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		job.Attempt,
		job.State,
		job.RunAt,
		job.LastError,
		time.Now().UTC(),
		job.ID,
	)
	if err != nil {
		log.Error("failed to update job",
			slog.String("error", err.Error()),
			slog.String("job_id", job.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "transcription job"); err != nil {
		return store.ErrJobNotFound
	}
	return nil
}

// GetJobsByState implements transcription.JobStore.GetJobsByState
func (s *PostgresJobStore) GetJobsByState(
	ctx context.Context,
	state transcription.JobState,
) ([]*transcription.Job, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT id, call_id, attempt, max_attempts, state, run_at, last_error, enqueued_at
		FROM transcription_jobs
		WHERE state = $1
		ORDER BY run_at ASC, enqueued_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, state)
	if err != nil {
		log.Error("failed to query jobs by state",
			slog.String("error", err.Error()),
			slog.String("state", string(state)))
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var jobs []*transcription.Job
	for rows.Next() {
		var job transcription.Job
		if err := rows.Scan(
			&job.ID,
			&job.CallID,
			&job.Attempt,
			&job.MaxAttempts,
			&job.State,
			&job.RunAt,
			&job.LastError,
			&job.EnqueuedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan job row: %w", err)
		}
		job.RunAt = job.RunAt.UTC()
		job.EnqueuedAt = job.EnqueuedAt.UTC()
		jobs = append(jobs, &job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating job rows: %w", err)
	}
	return jobs, nil
}
