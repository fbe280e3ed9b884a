package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func profileRows(id uuid.UUID, phone, tier string) *pgxmock.Rows {
	now := time.Now()
	return pgxmock.NewRows([]string{
		"id", "phone_number", "full_name", "language", "proficiency_level",
		"onboarding_completed", "subscription_tier", "trial_expires_at", "stripe_customer_id",
		"last_conversation_summary", "created_at", "updated_at",
	}).AddRow(id, phone, "", "hindi", "beginner", false, tier, (*time.Time)(nil), "", "", now, now)
}

func TestEnsureProfileCreates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	mock.ExpectQuery("INSERT INTO user_profiles").
		WithArgs("+919876543210").
		WillReturnRows(profileRows(id, "+919876543210", TierFree))

	p, err := store.EnsureProfile(context.Background(), "+919876543210")
	if err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	if p.ID != id || p.SubscriptionTier != TierFree {
		t.Fatalf("unexpected profile: %+v", p)
	}
}

func TestGetByPhoneNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	mock.ExpectQuery("SELECT").
		WithArgs("+911111111111").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	if _, err := store.GetByPhone(context.Background(), "+911111111111"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetLastConversationSummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	defer mock.Close()

	store := NewStore(mock)
	id := uuid.New()
	mock.ExpectExec("UPDATE user_profiles").
		WithArgs(id, "talked about trains").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	if err := store.SetLastConversationSummary(context.Background(), id, "talked about trains"); err != nil {
		t.Fatalf("set summary: %v", err)
	}
}

func TestTrialExpired(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	p := &Profile{SubscriptionTier: TierTrial, TrialExpiresAt: &past}
	if !p.TrialExpired(now) {
		t.Error("expected expired trial")
	}
	p.TrialExpiresAt = &future
	if p.TrialExpired(now) {
		t.Error("trial should not be expired yet")
	}
	p.SubscriptionTier = TierPro
	if p.TrialExpired(now) {
		t.Error("pro tier never counts as expired trial")
	}
}
