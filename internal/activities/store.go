// Package activities stores the daily practice prompts a scheduled call is
// linked to.
package activities

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when the activity does not exist, e.g. after it
// was deleted while a scheduled call still referenced it.
var ErrNotFound = errors.New("activities: not found")

// Activity is a daily AI-generated practice prompt.
type Activity struct {
	ID          uuid.UUID
	Title       string
	Topic       string
	Description string
	Level       string
	ActiveOn    *time.Time
	CreatedAt   time.Time
}

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides read/write access to activities.
type Store struct {
	db DB
}

// NewStore creates an activity store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

// Create inserts a new activity.
func (s *Store) Create(ctx context.Context, a *Activity) error {
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO activities (id, title, topic, description, level, active_on)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		a.ID, a.Title, a.Topic, a.Description, a.Level, a.ActiveOn)
	if err != nil {
		return fmt.Errorf("activities: create: %w", err)
	}
	return nil
}

// GetByID fetches a single activity.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Activity, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, topic, description, level, active_on, created_at
		FROM activities
		WHERE id = $1`, id)
	var a Activity
	if err := row.Scan(&a.ID, &a.Title, &a.Topic, &a.Description, &a.Level, &a.ActiveOn, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("activities: get: %w", err)
	}
	return &a, nil
}

// TodaysActivity returns the activity scheduled for the given date, if any.
func (s *Store) TodaysActivity(ctx context.Context, day time.Time) (*Activity, error) {
	row := s.db.QueryRow(ctx, `
		SELECT id, title, topic, description, level, active_on, created_at
		FROM activities
		WHERE active_on = $1
		ORDER BY created_at DESC
		LIMIT 1`, day.Format("2006-01-02"))
	var a Activity
	if err := row.Scan(&a.ID, &a.Title, &a.Topic, &a.Description, &a.Level, &a.ActiveOn, &a.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("activities: today: %w", err)
	}
	return &a, nil
}
