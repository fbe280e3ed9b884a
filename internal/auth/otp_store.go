package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB abstracts the pgx query interface for testing.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// OTPStore persists one-time verification codes.
type OTPStore struct {
	db DB
}

// NewOTPStore creates an OTP code store.
func NewOTPStore(db DB) *OTPStore {
	return &OTPStore{db: db}
}

// Insert records a freshly issued code hash for a phone number.
func (s *OTPStore) Insert(ctx context.Context, phoneNumber, codeHash string, expiresAt time.Time) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO otp_codes (phone_number, code_hash, expires_at)
		VALUES ($1, $2, $3)`,
		phoneNumber, codeHash, expiresAt)
	if err != nil {
		return fmt.Errorf("auth: insert otp code: %w", err)
	}
	return nil
}

// CountRecent returns how many codes were issued to a phone number since
// the given time. The request handler uses it for rate limiting.
func (s *OTPStore) CountRecent(ctx context.Context, phoneNumber string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM otp_codes
		WHERE phone_number = $1 AND created_at >= $2`,
		phoneNumber, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("auth: count recent otp codes: %w", err)
	}
	return count, nil
}

// Consume marks a matching unexpired, unconsumed code as used. It returns
// ErrInvalidCode when nothing matches.
func (s *OTPStore) Consume(ctx context.Context, phoneNumber, codeHash string, now time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE otp_codes
		SET consumed_at = $3
		WHERE phone_number = $1
		  AND code_hash = $2
		  AND expires_at > $3
		  AND consumed_at IS NULL`,
		phoneNumber, codeHash, now)
	if err != nil {
		return fmt.Errorf("auth: consume otp code: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrInvalidCode
	}
	return nil
}

// DeleteExpired removes codes past their expiry. Called by the cron
// process so the table stays small.
func (s *OTPStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := s.db.Exec(ctx, `DELETE FROM otp_codes WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("auth: delete expired otp codes: %w", err)
	}
	return tag.RowsAffected(), nil
}
