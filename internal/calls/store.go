package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when no scheduled call matches.
var ErrNotFound = errors.New("calls: scheduled call not found")

// ErrNotPending is returned when a status transition loses the optimistic
// pending-row race.
var ErrNotPending = errors.New("calls: scheduled call no longer pending")

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for scheduled_calls.
type Store struct {
	db DB
}

// NewStore creates a scheduled-call store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const scheduledColumns = `id, user_id, phone_number, activity_id, scheduled_time,
	status, call_attempts, last_error, created_at, updated_at`

// Create inserts a new pending scheduled call.
func (s *Store) Create(ctx context.Context, c *ScheduledCall) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Status == "" {
		c.Status = StatusPending
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.Exec(ctx, `
		INSERT INTO scheduled_calls (id, user_id, phone_number, activity_id, scheduled_time, status, call_attempts, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.UserID, c.PhoneNumber, c.ActivityID, c.ScheduledTime, c.Status, c.CallAttempts, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("calls: create scheduled call: %w", err)
	}
	return nil
}

// ListDue returns pending calls whose scheduled_time falls at or before
// now plus the lookahead window, oldest first.
func (s *Store) ListDue(ctx context.Context, now time.Time, lookahead time.Duration) ([]ScheduledCall, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledColumns+`
		FROM scheduled_calls
		WHERE status = 'pending' AND scheduled_time <= $1
		ORDER BY scheduled_time ASC`, now.Add(lookahead))
	if err != nil {
		return nil, fmt.Errorf("calls: list due: %w", err)
	}
	defer rows.Close()
	return scanScheduled(rows)
}

// ClaimForCalling flips pending → calling and bumps the attempt counter.
// The WHERE status = 'pending' clause is the only double-processing guard:
// overlapping scheduler runs race between select and update, and the loser
// of that race sees ErrNotPending.
func (s *Store) ClaimForCalling(ctx context.Context, id uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_calls
		SET status = 'calling', call_attempts = call_attempts + 1, updated_at = now()
		WHERE id = $1 AND status = 'pending'`, id)
	if err != nil {
		return fmt.Errorf("calls: claim for calling: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// MarkCompleted transitions calling → completed.
func (s *Store) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduled_calls
		SET status = 'completed', updated_at = now()
		WHERE id = $1 AND status = 'calling'`, id)
	if err != nil {
		return fmt.Errorf("calls: mark completed: %w", err)
	}
	return nil
}

// MarkFailed transitions calling → failed and records the reason.
func (s *Store) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE scheduled_calls
		SET status = 'failed', last_error = $2, updated_at = now()
		WHERE id = $1 AND status = 'calling'`, id, reason)
	if err != nil {
		return fmt.Errorf("calls: mark failed: %w", err)
	}
	return nil
}

// Cancel transitions pending → cancelled, for user-initiated cancellation.
func (s *Store) Cancel(ctx context.Context, id, userID uuid.UUID) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_calls
		SET status = 'cancelled', updated_at = now()
		WHERE id = $1 AND user_id = $2 AND status = 'pending'`, id, userID)
	if err != nil {
		return fmt.Errorf("calls: cancel: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotPending
	}
	return nil
}

// GetByID fetches a single scheduled call.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*ScheduledCall, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+scheduledColumns+`
		FROM scheduled_calls
		WHERE id = $1`, id)
	var c ScheduledCall
	if err := row.Scan(&c.ID, &c.UserID, &c.PhoneNumber, &c.ActivityID, &c.ScheduledTime,
		&c.Status, &c.CallAttempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("calls: get scheduled call: %w", err)
	}
	return &c, nil
}

// ListByUser returns a user's scheduled calls, newest first.
func (s *Store) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]ScheduledCall, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+scheduledColumns+`
		FROM scheduled_calls
		WHERE user_id = $1
		ORDER BY scheduled_time DESC
		LIMIT $2`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("calls: list by user: %w", err)
	}
	defer rows.Close()
	return scanScheduled(rows)
}

// DeleteTerminalOlderThan removes completed/failed/cancelled rows whose last
// update is older than the retention window. Returns rows removed.
func (s *Store) DeleteTerminalOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		DELETE FROM scheduled_calls
		WHERE status IN ('completed', 'failed', 'cancelled') AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("calls: delete terminal: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SweepStuckCalling force-fails rows stuck in calling since before the
// cutoff. Dead-letter recovery for crashed or timed-out placements.
func (s *Store) SweepStuckCalling(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE scheduled_calls
		SET status = 'failed', last_error = 'stuck in calling state', updated_at = now()
		WHERE status = 'calling' AND updated_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("calls: sweep stuck calling: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanScheduled(rows pgx.Rows) ([]ScheduledCall, error) {
	var out []ScheduledCall
	for rows.Next() {
		var c ScheduledCall
		if err := rows.Scan(&c.ID, &c.UserID, &c.PhoneNumber, &c.ActivityID, &c.ScheduledTime,
			&c.Status, &c.CallAttempts, &c.LastError, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("calls: scan scheduled call: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("calls: iterate scheduled calls: %w", err)
	}
	return out, nil
}
