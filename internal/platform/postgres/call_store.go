package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/voxlog/callscribe-api/internal/domain"
	"github.com/voxlog/callscribe-api/internal/platform/logger"
	"github.com/voxlog/callscribe-api/internal/store"
)

// callColumns is the column list shared by every full-row call query.
const callColumns = `
	id, user_id, title, participants, status, notes, audio_file_url,
	duration_seconds, scheduled_at, started_at, ended_at,
	transcription_status, transcription_text, transcription_retry_count,
	transcription_error, created_at, updated_at
`

// PostgresCallStore implements the store.CallStore interface
// using a PostgreSQL database as the storage backend.
// Participants are stored as a JSONB column.
type PostgresCallStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresCallStore creates a new PostgreSQL implementation of the
// CallStore interface. It accepts a database connection or transaction that
// should be initialized and managed by the caller.
func NewPostgresCallStore(db store.DBTX, logger *slog.Logger) *PostgresCallStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresCallStore{
		db:     db,
		logger: logger.With(slog.String("component", "call_store")),
	}
}

// Ensure PostgresCallStore implements store.CallStore interface
var _ store.CallStore = (*PostgresCallStore)(nil)

// Create implements store.CallStore.Create
// Returns store.ErrInvalidEntity if the owning user does not exist.
func (s *PostgresCallStore) Create(ctx context.Context, call *domain.Call) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := call.Validate(); err != nil {
		log.Warn("call validation failed during create",
			slog.String("error", err.Error()),
			slog.String("call_id", call.ID.String()))
		return err
	}

	participants, err := json.Marshal(call.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		INSERT INTO calls (
			id, user_id, title, participants, status, notes, audio_file_url,
			duration_seconds, scheduled_at, started_at, ended_at,
			transcription_status, transcription_text, transcription_retry_count,
			transcription_error, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	_, err = s.db.ExecContext(
		ctx,
		query,
		call.ID,
		call.UserID,
		call.Title,
		participants,
		call.Status,
		call.Notes,
		call.AudioFileURL,
		call.DurationSeconds,
		call.ScheduledAt,
		call.StartedAt,
		call.EndedAt,
		call.TranscriptionStatus,
		call.TranscriptionText,
		call.TranscriptionRetryCount,
		call.TranscriptionError,
		call.CreatedAt,
		call.UpdatedAt,
	)
	if err != nil {
		if IsForeignKeyViolation(err) {
			log.Warn("foreign key violation during call creation",
				slog.String("call_id", call.ID.String()),
				slog.String("user_id", call.UserID.String()))
			return fmt.Errorf("%w: user with ID %s not found",
				store.ErrInvalidEntity, call.UserID)
		}

		log.Error("failed to create call",
			slog.String("error", err.Error()),
			slog.String("call_id", call.ID.String()))
		return MapError(err)
	}

	log.Info("call created",
		slog.String("call_id", call.ID.String()),
		slog.String("user_id", call.UserID.String()))
	return nil
}

// GetByID implements store.CallStore.GetByID
// Returns store.ErrCallNotFound if the call does not exist.
func (s *PostgresCallStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Call, error) {
	query := `SELECT ` + callColumns + ` FROM calls WHERE id = $1`

	call, err := scanCall(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCallNotFound
		}
		return nil, MapError(err)
	}
	return call, nil
}

// Update implements store.CallStore.Update
// It rewrites the mutable fields of the call row; the transcription state
// columns are owned by the SetTranscription* methods and left untouched.
// Returns store.ErrCallNotFound if the call does not exist.
func (s *PostgresCallStore) Update(ctx context.Context, call *domain.Call) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := call.Validate(); err != nil {
		log.Warn("call validation failed during update",
			slog.String("error", err.Error()),
			slog.String("call_id", call.ID.String()))
		return err
	}

	participants, err := json.Marshal(call.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}

	query := `
		UPDATE calls
		SET title = $1, participants = $2, status = $3, notes = $4,
			audio_file_url = $5, duration_seconds = $6, scheduled_at = $7,
			started_at = $8, ended_at = $9, updated_at = $10
		WHERE id = $11
	`
	result, err := s.db.ExecContext(
		ctx,
		query,
		call.Title,
		participants,
		call.Status,
		call.Notes,
		call.AudioFileURL,
		call.DurationSeconds,
		call.ScheduledAt,
		call.StartedAt,
		call.EndedAt,
		time.Now().UTC(),
		call.ID,
	)
	if err != nil {
		log.Error("failed to update call",
			slog.String("error", err.Error()),
			slog.String("call_id", call.ID.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "call"); err != nil {
		return store.ErrCallNotFound
	}
	return nil
}

// Delete implements store.CallStore.Delete
// Returns store.ErrCallNotFound if the call does not exist.
func (s *PostgresCallStore) Delete(ctx context.Context, id uuid.UUID) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, `DELETE FROM calls WHERE id = $1`, id)
	if err != nil {
		log.Error("failed to delete call",
			slog.String("error", err.Error()),
			slog.String("call_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "call"); err != nil {
		return store.ErrCallNotFound
	}

	log.Info("call deleted", slog.String("call_id", id.String()))
	return nil
}

// sortColumn maps the whitelisted sort fields to their column names. The
// map is the whitelist; anything else falls back to created_at.
var sortColumn = map[store.CallSortField]string{
	store.CallSortCreatedAt:   "created_at",
	store.CallSortScheduledAt: "scheduled_at",
	store.CallSortTitle:       "title",
}

// List implements store.CallStore.List
func (s *PostgresCallStore) List(
	ctx context.Context,
	filter store.CallListFilter,
) ([]*domain.Call, int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	where := `WHERE user_id = $1`
	args := []any{filter.UserID}

	if filter.Status != "" {
		args = append(args, filter.Status)
		where += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		where += fmt.Sprintf(" AND (title ILIKE $%d OR notes ILIKE $%d)", len(args), len(args))
	}

	column, ok := sortColumn[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	direction := "ASC"
	if filter.Descending {
		direction = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	offset := (page - 1) * limit

	// total_count is computed once over the filtered set, before paging.
	query := fmt.Sprintf(
		`SELECT %s, COUNT(*) OVER() AS total_count FROM calls %s ORDER BY %s %s LIMIT $%d OFFSET $%d`,
		callColumns, where, column, direction, len(args)+1, len(args)+2,
	)
	args = append(args, limit, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list calls",
			slog.String("error", err.Error()),
			slog.String("user_id", filter.UserID.String()))
		return nil, 0, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	calls := []*domain.Call{}
	total := 0
	for rows.Next() {
		call, rowTotal, err := scanCallWithTotal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan call row: %w", err)
		}
		total = rowTotal
		calls = append(calls, call)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating call rows: %w", err)
	}

	// An empty page past the end still needs the real total.
	if len(calls) == 0 && offset > 0 {
		countQuery := `SELECT COUNT(*) FROM calls ` + where
		if err := s.db.QueryRowContext(ctx, countQuery, args[:len(args)-2]...).Scan(&total); err != nil {
			return nil, 0, MapError(err)
		}
	}

	return calls, total, nil
}

// GetTranscription implements store.CallStore.GetTranscription
// Returns store.ErrCallNotFound if the call does not exist.
func (s *PostgresCallStore) GetTranscription(
	ctx context.Context,
	id uuid.UUID,
) (*store.TranscriptionProjection, error) {
	query := `
		SELECT id, title, transcription_status, transcription_text,
			transcription_retry_count, transcription_error
		FROM calls
		WHERE id = $1
	`

	var projection store.TranscriptionProjection
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&projection.CallID,
		&projection.Title,
		&projection.Status,
		&projection.Text,
		&projection.RetryCount,
		&projection.Error,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrCallNotFound
		}
		return nil, MapError(err)
	}
	return &projection, nil
}

// SetTranscriptionProcessing implements store.CallStore.SetTranscriptionProcessing
func (s *PostgresCallStore) SetTranscriptionProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calls
		SET transcription_status = $1, updated_at = $2
		WHERE id = $3
	`
	return s.execTranscriptionUpdate(ctx, id, query,
		domain.TranscriptionStatusProcessing, time.Now().UTC(), id)
}

// SetTranscriptionCompleted implements store.CallStore.SetTranscriptionCompleted
func (s *PostgresCallStore) SetTranscriptionCompleted(
	ctx context.Context,
	id uuid.UUID,
	text string,
) error {
	query := `
		UPDATE calls
		SET transcription_status = $1, transcription_text = $2,
			transcription_error = '', updated_at = $3
		WHERE id = $4
	`
	return s.execTranscriptionUpdate(ctx, id, query,
		domain.TranscriptionStatusCompleted, text, time.Now().UTC(), id)
}

// SetTranscriptionFailed implements store.CallStore.SetTranscriptionFailed
func (s *PostgresCallStore) SetTranscriptionFailed(
	ctx context.Context,
	id uuid.UUID,
	cause string,
) error {
	query := `
		UPDATE calls
		SET transcription_status = $1, transcription_error = $2, updated_at = $3
		WHERE id = $4
	`
	return s.execTranscriptionUpdate(ctx, id, query,
		domain.TranscriptionStatusFailed, cause, time.Now().UTC(), id)
}

// IncrementTranscriptionRetryCount implements store.CallStore.IncrementTranscriptionRetryCount
func (s *PostgresCallStore) IncrementTranscriptionRetryCount(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calls
		SET transcription_retry_count = transcription_retry_count + 1, updated_at = $1
		WHERE id = $2
	`
	return s.execTranscriptionUpdate(ctx, id, query, time.Now().UTC(), id)
}

// ResetTranscriptionForRetry implements store.CallStore.ResetTranscriptionForRetry
func (s *PostgresCallStore) ResetTranscriptionForRetry(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE calls
		SET transcription_status = $1, transcription_error = '',
			transcription_retry_count = transcription_retry_count + 1,
			updated_at = $2
		WHERE id = $3
	`
	return s.execTranscriptionUpdate(ctx, id, query,
		domain.TranscriptionStatusPending, time.Now().UTC(), id)
}

// execTranscriptionUpdate runs one of the transcription-state UPDATE
// statements and maps a missing row to store.ErrCallNotFound.
func (s *PostgresCallStore) execTranscriptionUpdate(
	ctx context.Context,
	id uuid.UUID,
	query string,
	args ...any,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to update transcription state",
			slog.String("error", err.Error()),
			slog.String("call_id", id.String()))
		return MapError(err)
	}

	if err := CheckRowsAffected(result, "call"); err != nil {
		return store.ErrCallNotFound
	}
	return nil
}

// ListProcessingTranscriptions implements store.CallStore.ListProcessingTranscriptions
func (s *PostgresCallStore) ListProcessingTranscriptions(ctx context.Context) ([]uuid.UUID, error) {
	query := `SELECT id FROM calls WHERE transcription_status = $1`

	rows, err := s.db.QueryContext(ctx, query, domain.TranscriptionStatusProcessing)
	if err != nil {
		return nil, MapError(err)
	}
	defer func() { _ = rows.Close() }()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan call ID: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating call IDs: %w", err)
	}
	return ids, nil
}

// Summary implements store.CallStore.Summary
func (s *PostgresCallStore) Summary(
	ctx context.Context,
	userID uuid.UUID,
) (*store.CallSummary, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE status = $2),
			COUNT(*) FILTER (WHERE transcription_status = $3),
			COUNT(*) FILTER (WHERE transcription_status = $4),
			COUNT(*) FILTER (WHERE transcription_status = $5)
		FROM calls
		WHERE user_id = $1
	`

	var summary store.CallSummary
	err := s.db.QueryRowContext(
		ctx,
		query,
		userID,
		domain.CallStatusCompleted,
		domain.TranscriptionStatusPending,
		domain.TranscriptionStatusCompleted,
		domain.TranscriptionStatusFailed,
	).Scan(
		&summary.TotalCalls,
		&summary.CompletedCalls,
		&summary.PendingTranscriptions,
		&summary.CompletedTranscriptions,
		&summary.FailedTranscriptions,
	)
	if err != nil {
		return nil, MapError(err)
	}

	if summary.TotalCalls > 0 {
		summary.TranscriptionSuccessRate = summary.CompletedTranscriptions * 100 / summary.TotalCalls
	}
	return &summary, nil
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCall(row rowScanner) (*domain.Call, error) {
	call, _, err := scanCallInto(row, false)
	return call, err
}

func scanCallWithTotal(row rowScanner) (*domain.Call, int, error) {
	return scanCallInto(row, true)
}

func scanCallInto(row rowScanner, withTotal bool) (*domain.Call, int, error) {
	var call domain.Call
	var participants []byte
	var startedAt, endedAt sql.NullTime
	var total int

	dest := []any{
		&call.ID,
		&call.UserID,
		&call.Title,
		&participants,
		&call.Status,
		&call.Notes,
		&call.AudioFileURL,
		&call.DurationSeconds,
		&call.ScheduledAt,
		&startedAt,
		&endedAt,
		&call.TranscriptionStatus,
		&call.TranscriptionText,
		&call.TranscriptionRetryCount,
		&call.TranscriptionError,
		&call.CreatedAt,
		&call.UpdatedAt,
	}
	if withTotal {
		dest = append(dest, &total)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, 0, err
	}

	if err := json.Unmarshal(participants, &call.Participants); err != nil {
		return nil, 0, fmt.Errorf("failed to decode participants: %w", err)
	}
	if startedAt.Valid {
		t := startedAt.Time.UTC()
		call.StartedAt = &t
	}
	if endedAt.Valid {
		t := endedAt.Time.UTC()
		call.EndedAt = &t
	}
	call.ScheduledAt = call.ScheduledAt.UTC()
	call.CreatedAt = call.CreatedAt.UTC()
	call.UpdatedAt = call.UpdatedAt.UTC()

	return &call, total, nil
}
