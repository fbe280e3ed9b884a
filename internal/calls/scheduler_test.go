package calls

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"

	"github.com/bolchaal/bolchaal-backend/internal/activities"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	voice "github.com/bolchaal/bolchaal-backend/internal/voice/voicetypes"
)

type fakeProfiles struct {
	profiles map[uuid.UUID]*users.Profile
}

func (f *fakeProfiles) GetByID(_ context.Context, id uuid.UUID) (*users.Profile, error) {
	p, ok := f.profiles[id]
	if !ok {
		return nil, users.ErrNotFound
	}
	return p, nil
}

type fakeActivities struct {
	acts map[uuid.UUID]*activities.Activity
}

func (f *fakeActivities) GetByID(_ context.Context, id uuid.UUID) (*activities.Activity, error) {
	a, ok := f.acts[id]
	if !ok {
		return nil, activities.ErrNotFound
	}
	return a, nil
}

type fakeGate struct {
	status usage.Status
	err    error
}

func (f *fakeGate) StatusFor(context.Context, *users.Profile) (usage.Status, error) {
	return f.status, f.err
}

func (f *fakeGate) MaxCallDurationSeconds(s usage.Status) int {
	if s.Unlimited || !s.HasMinutes {
		return 0
	}
	return s.MinutesRemaining * 60
}

type fakePlacer struct {
	requests []voice.PlaceCallRequest
	err      error
}

func (f *fakePlacer) PlaceCall(_ context.Context, req voice.PlaceCallRequest) (*voice.PlaceCallResponse, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return &voice.PlaceCallResponse{CallID: "call_abc", Status: "queued"}, nil
}

type schedulerFixture struct {
	mock      pgxmock.PgxPoolIface
	scheduler *Scheduler
	profiles  *fakeProfiles
	acts      *fakeActivities
	gate      *fakeGate
	placer    *fakePlacer
	now       time.Time
}

func newSchedulerFixture(t *testing.T) *schedulerFixture {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)

	f := &schedulerFixture{
		mock:     mock,
		profiles: &fakeProfiles{profiles: map[uuid.UUID]*users.Profile{}},
		acts:     &fakeActivities{acts: map[uuid.UUID]*activities.Activity{}},
		gate:     &fakeGate{status: usage.Status{HasMinutes: true, MinutesRemaining: 20}},
		placer:   &fakePlacer{},
		now:      time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC),
	}
	f.scheduler = NewScheduler(NewStore(mock), f.profiles, f.acts, f.gate, f.placer, nil, SchedulerConfig{}, nil)
	f.scheduler.now = func() time.Time { return f.now }
	return f
}

func (f *schedulerFixture) expectDueRows(calls ...ScheduledCall) {
	rows := pgxmock.NewRows([]string{
		"id", "user_id", "phone_number", "activity_id", "scheduled_time",
		"status", "call_attempts", "last_error", "created_at", "updated_at",
	})
	for _, c := range calls {
		rows.AddRow(c.ID, c.UserID, c.PhoneNumber, c.ActivityID, c.ScheduledTime,
			c.Status, c.CallAttempts, c.LastError, c.CreatedAt, c.UpdatedAt)
	}
	f.mock.ExpectQuery("SELECT (.+) FROM scheduled_calls").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(rows)
}

func (f *schedulerFixture) expectJanitors() {
	f.mock.ExpectExec("DELETE FROM scheduled_calls").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
}

func pendingCall(userID uuid.UUID, activityID *uuid.UUID, at time.Time) ScheduledCall {
	return ScheduledCall{
		ID:            uuid.New(),
		UserID:        userID,
		PhoneNumber:   "+919876543210",
		ActivityID:    activityID,
		ScheduledTime: at,
		Status:        StatusPending,
	}
}

func TestSchedulerPlacesDueCall(t *testing.T) {
	f := newSchedulerFixture(t)
	userID := uuid.New()
	actID := uuid.New()
	f.profiles.profiles[userID] = &users.Profile{
		ID:                      userID,
		SubscriptionTier:        users.TierFree,
		LastConversationSummary: "talked about trains",
	}
	f.acts.acts[actID] = &activities.Activity{ID: actID, Topic: "market shopping"}

	call := pendingCall(userID, &actID, f.now.Add(time.Minute))
	f.expectDueRows(call)
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // claim
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // completed
	f.expectJanitors()

	placed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if placed != 1 {
		t.Fatalf("expected 1 placed call, got %d", placed)
	}
	if len(f.placer.requests) != 1 {
		t.Fatalf("expected 1 placement, got %d", len(f.placer.requests))
	}
	req := f.placer.requests[0]
	if req.Topic != "market shopping" {
		t.Fatalf("unexpected topic %q", req.Topic)
	}
	if req.LastSummary != "talked about trains" {
		t.Fatalf("unexpected summary %q", req.LastSummary)
	}
	if req.MaxDurationSeconds != 20*60 {
		t.Fatalf("unexpected duration cap %d", req.MaxDurationSeconds)
	}
}

func TestSchedulerSkipsLostClaimRace(t *testing.T) {
	f := newSchedulerFixture(t)
	call := pendingCall(uuid.New(), nil, f.now)
	f.expectDueRows(call)
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0)) // another run claimed it
	f.expectJanitors()

	placed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if placed != 0 {
		t.Fatalf("expected 0 placed, got %d", placed)
	}
	if len(f.placer.requests) != 0 {
		t.Fatal("placer must not be called after a lost claim race")
	}
}

func TestSchedulerFailsCallWithoutMinutes(t *testing.T) {
	f := newSchedulerFixture(t)
	userID := uuid.New()
	f.profiles.profiles[userID] = &users.Profile{ID: userID, SubscriptionTier: users.TierFree}
	f.gate.status = usage.Status{HasMinutes: false, NeedsUpgrade: true}

	call := pendingCall(userID, nil, f.now)
	f.expectDueRows(call)
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // claim
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID, "weekly minute limit reached").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // failed
	f.expectJanitors()

	placed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if placed != 0 {
		t.Fatalf("expected 0 placed, got %d", placed)
	}
	if len(f.placer.requests) != 0 {
		t.Fatal("placer must not be called when the budget is spent")
	}
}

func TestSchedulerProceedsWithEmptyTopicOnDeletedActivity(t *testing.T) {
	f := newSchedulerFixture(t)
	userID := uuid.New()
	f.profiles.profiles[userID] = &users.Profile{ID: userID, SubscriptionTier: users.TierFree}
	deletedAct := uuid.New() // never registered in the fake

	call := pendingCall(userID, &deletedAct, f.now)
	f.expectDueRows(call)
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // claim
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // completed
	f.expectJanitors()

	placed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if placed != 1 {
		t.Fatalf("expected 1 placed, got %d", placed)
	}
	if f.placer.requests[0].Topic != "" {
		t.Fatalf("expected empty topic, got %q", f.placer.requests[0].Topic)
	}
}

func TestSchedulerMarksFailedOnPlacementError(t *testing.T) {
	f := newSchedulerFixture(t)
	userID := uuid.New()
	f.profiles.profiles[userID] = &users.Profile{ID: userID, SubscriptionTier: users.TierFree}
	f.placer.err = errors.New("provider down")

	call := pendingCall(userID, nil, f.now)
	f.expectDueRows(call)
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // claim
	f.mock.ExpectExec("UPDATE scheduled_calls").
		WithArgs(call.ID, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1)) // failed
	f.expectJanitors()

	placed, err := f.scheduler.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if placed != 0 {
		t.Fatalf("expected 0 placed, got %d", placed)
	}
}
