package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func TestConsumeMarksCodeUsed(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewOTPStore(mock)
	now := time.Now()
	mock.ExpectExec("UPDATE otp_codes").
		WithArgs("+919876543210", "abc123", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.Consume(context.Background(), "+919876543210", "abc123", now); err != nil {
		t.Fatalf("consume: %v", err)
	}
}

func TestConsumeNoMatchReturnsInvalidCode(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewOTPStore(mock)
	now := time.Now()
	mock.ExpectExec("UPDATE otp_codes").
		WithArgs("+919876543210", "wrong", now).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err = store.Consume(context.Background(), "+919876543210", "wrong", now)
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
}

func TestCountRecent(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewOTPStore(mock)
	since := time.Now().Add(-time.Hour)
	mock.ExpectQuery("SELECT COUNT").
		WithArgs("+919876543210", since).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(2))

	count, err := store.CountRecent(context.Background(), "+919876543210", since)
	if err != nil {
		t.Fatalf("count recent: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2, got %d", count)
	}
}

func TestDeleteExpired(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewOTPStore(mock)
	now := time.Now()
	mock.ExpectExec("DELETE FROM otp_codes").
		WithArgs(now).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))

	deleted, err := store.DeleteExpired(context.Background(), now)
	if err != nil {
		t.Fatalf("delete expired: %v", err)
	}
	if deleted != 3 {
		t.Fatalf("expected 3, got %d", deleted)
	}
}
