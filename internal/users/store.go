package users

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store provides CRUD operations for user_profiles.
type Store struct {
	db DB
}

// NewStore creates a user profile store.
func NewStore(db DB) *Store {
	return &Store{db: db}
}

const profileColumns = `id, phone_number, full_name, language, proficiency_level,
	onboarding_completed, subscription_tier, trial_expires_at, stripe_customer_id,
	last_conversation_summary, created_at, updated_at`

func (s *Store) scanProfile(row pgx.Row) (*Profile, error) {
	var p Profile
	if err := row.Scan(
		&p.ID, &p.PhoneNumber, &p.FullName, &p.Language, &p.ProficiencyLevel,
		&p.OnboardingCompleted, &p.SubscriptionTier, &p.TrialExpiresAt, &p.StripeCustomerID,
		&p.LastConversationSummary, &p.CreatedAt, &p.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("users: scan profile: %w", err)
	}
	return &p, nil
}

// GetByPhone fetches a profile by its natural key.
func (s *Store) GetByPhone(ctx context.Context, phone string) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE phone_number = $1`, phone)
	return s.scanProfile(row)
}

// GetByID fetches a profile by id.
func (s *Store) GetByID(ctx context.Context, id uuid.UUID) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE id = $1`, id)
	return s.scanProfile(row)
}

// EnsureProfile creates a profile for the phone number if none exists and
// returns it. Called on OTP verification so signup is implicit.
func (s *Store) EnsureProfile(ctx context.Context, phone string) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		INSERT INTO user_profiles (phone_number)
		VALUES ($1)
		ON CONFLICT (phone_number) DO UPDATE SET updated_at = now()
		RETURNING `+profileColumns, phone)
	return s.scanProfile(row)
}

// UpdateOnboarding saves the profile fields collected during onboarding.
func (s *Store) UpdateOnboarding(ctx context.Context, id uuid.UUID, fullName, language, proficiency string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_profiles
		SET full_name = $2, language = $3, proficiency_level = $4,
			onboarding_completed = TRUE, updated_at = now()
		WHERE id = $1`, id, fullName, language, proficiency)
	if err != nil {
		return fmt.Errorf("users: update onboarding: %w", err)
	}
	return nil
}

// SetLastConversationSummary overwrites the rolling summary fed into the
// next call's system prompt.
func (s *Store) SetLastConversationSummary(ctx context.Context, id uuid.UUID, summary string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_profiles
		SET last_conversation_summary = $2, updated_at = now()
		WHERE id = $1`, id, summary)
	if err != nil {
		return fmt.Errorf("users: set last summary: %w", err)
	}
	return nil
}

// SetSubscriptionTier updates the billing tier, typically from a payment webhook.
func (s *Store) SetSubscriptionTier(ctx context.Context, id uuid.UUID, tier string, trialExpiresAt *time.Time) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_profiles
		SET subscription_tier = $2, trial_expires_at = $3, updated_at = now()
		WHERE id = $1`, id, tier, trialExpiresAt)
	if err != nil {
		return fmt.Errorf("users: set subscription tier: %w", err)
	}
	return nil
}

// SetStripeCustomerID records the payment-provider customer reference.
func (s *Store) SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE user_profiles
		SET stripe_customer_id = $2, updated_at = now()
		WHERE id = $1`, id, customerID)
	if err != nil {
		return fmt.Errorf("users: set stripe customer: %w", err)
	}
	return nil
}

// GetByStripeCustomerID resolves a profile from a webhook's customer reference.
func (s *Store) GetByStripeCustomerID(ctx context.Context, customerID string) (*Profile, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE stripe_customer_id = $1`, customerID)
	return s.scanProfile(row)
}
