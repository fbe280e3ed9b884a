package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/activities"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	voice "github.com/bolchaal/bolchaal-backend/internal/voice/voicetypes"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// CallPlacer abstracts the voice provider's outbound call placement.
type CallPlacer interface {
	PlaceCall(ctx context.Context, req voice.PlaceCallRequest) (*voice.PlaceCallResponse, error)
}

// ProfileLoader fetches the user profile a scheduled call belongs to.
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.Profile, error)
}

// ActivityLoader fetches the optional activity linked to a scheduled call.
type ActivityLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*activities.Activity, error)
}

// UsageGate decides whether a call may start and caps its duration.
type UsageGate interface {
	StatusFor(ctx context.Context, profile *users.Profile) (usage.Status, error)
	MaxCallDurationSeconds(status usage.Status) int
}

// SchedulerConfig tunes selection and janitor windows.
type SchedulerConfig struct {
	// Lookahead selects pending rows due within now+Lookahead.
	Lookahead time.Duration
	// StuckTimeout force-fails rows stuck in calling longer than this.
	StuckTimeout time.Duration
	// TerminalRetention deletes terminal rows older than this.
	TerminalRetention time.Duration
}

func (c *SchedulerConfig) applyDefaults() {
	if c.Lookahead <= 0 {
		c.Lookahead = 5 * time.Minute
	}
	if c.StuckTimeout <= 0 {
		c.StuckTimeout = 10 * time.Minute
	}
	if c.TerminalRetention <= 0 {
		c.TerminalRetention = 24 * time.Hour
	}
}

// Scheduler places due calls and runs the janitor sweeps. It is invoked
// periodically and is stateless across invocations; all coordination runs
// through the status column.
type Scheduler struct {
	store      *Store
	profiles   ProfileLoader
	activities ActivityLoader
	gate       UsageGate
	placer     CallPlacer
	metrics    *metrics.CallMetrics
	cfg        SchedulerConfig
	logger     *logging.Logger
	now        func() time.Time
}

// NewScheduler wires a call scheduler.
func NewScheduler(store *Store, profiles ProfileLoader, acts ActivityLoader, gate UsageGate, placer CallPlacer, m *metrics.CallMetrics, cfg SchedulerConfig, logger *logging.Logger) *Scheduler {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Scheduler{
		store:      store,
		profiles:   profiles,
		activities: acts,
		gate:       gate,
		placer:     placer,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// RunOnce performs one scheduler invocation: place due calls, then both
// janitor passes. Errors on individual rows are logged, never returned.
func (s *Scheduler) RunOnce(ctx context.Context) (placed int, err error) {
	now := s.now().UTC()

	due, err := s.store.ListDue(ctx, now, s.cfg.Lookahead)
	if err != nil {
		return 0, fmt.Errorf("calls: scheduler list due: %w", err)
	}

	for i := range due {
		if s.processOne(ctx, &due[i]) {
			placed++
		}
	}

	s.runJanitors(ctx, now)
	return placed, nil
}

// processOne drives one row through pending → calling → {completed|failed}.
// Returns true when the placement succeeded.
func (s *Scheduler) processOne(ctx context.Context, call *ScheduledCall) bool {
	// Write the status transition before doing any external work. Best
	// effort: a concurrent run that loses the update race backs off here.
	if err := s.store.ClaimForCalling(ctx, call.ID); err != nil {
		if errors.Is(err, ErrNotPending) {
			return false
		}
		s.logger.Error("scheduler: claim failed", "id", call.ID, "error", err)
		return false
	}

	profile, err := s.profiles.GetByID(ctx, call.UserID)
	if err != nil {
		s.failCall(ctx, call.ID, fmt.Sprintf("load profile: %v", err))
		return false
	}

	status, err := s.gate.StatusFor(ctx, profile)
	if err != nil {
		s.failCall(ctx, call.ID, fmt.Sprintf("usage status: %v", err))
		return false
	}
	if !status.HasMinutes {
		s.failCall(ctx, call.ID, "weekly minute limit reached")
		return false
	}

	topic := s.topicFor(ctx, call)

	resp, err := s.placer.PlaceCall(ctx, voice.PlaceCallRequest{
		PhoneNumber:        call.PhoneNumber,
		UserID:             call.UserID.String(),
		Topic:              topic,
		LastSummary:        profile.LastConversationSummary,
		MaxDurationSeconds: s.gate.MaxCallDurationSeconds(status),
	})
	if err != nil {
		s.failCall(ctx, call.ID, fmt.Sprintf("place call: %v", err))
		return false
	}

	if err := s.store.MarkCompleted(ctx, call.ID); err != nil {
		s.logger.Error("scheduler: mark completed failed", "id", call.ID, "error", err)
	}
	s.metrics.ObserveScheduled("completed")
	s.logger.Info("scheduler: call placed",
		"id", call.ID, "call_id", resp.CallID, "attempts", call.CallAttempts+1)
	return true
}

// topicFor resolves the linked activity's topic. A deleted activity is not
// an error: the call proceeds with an empty topic.
func (s *Scheduler) topicFor(ctx context.Context, call *ScheduledCall) string {
	if call.ActivityID == nil {
		return ""
	}
	act, err := s.activities.GetByID(ctx, *call.ActivityID)
	if err != nil {
		if !errors.Is(err, activities.ErrNotFound) {
			s.logger.Warn("scheduler: activity lookup failed", "id", call.ID, "activity_id", *call.ActivityID, "error", err)
		}
		return ""
	}
	return act.Topic
}

func (s *Scheduler) failCall(ctx context.Context, id uuid.UUID, reason string) {
	s.metrics.ObserveScheduled("failed")
	s.logger.Warn("scheduler: call failed", "id", id, "reason", reason)
	if err := s.store.MarkFailed(ctx, id, reason); err != nil {
		s.logger.Error("scheduler: mark failed errored", "id", id, "error", err)
	}
}

// runJanitors reaps terminal rows past retention and force-fails rows stuck
// in calling past the timeout.
func (s *Scheduler) runJanitors(ctx context.Context, now time.Time) {
	deleted, err := s.store.DeleteTerminalOlderThan(ctx, now.Add(-s.cfg.TerminalRetention))
	if err != nil {
		s.logger.Error("scheduler: terminal cleanup failed", "error", err)
	} else if deleted > 0 {
		s.logger.Info("scheduler: terminal rows deleted", "count", deleted)
	}

	swept, err := s.store.SweepStuckCalling(ctx, now.Add(-s.cfg.StuckTimeout))
	if err != nil {
		s.logger.Error("scheduler: stuck sweep failed", "error", err)
	} else if swept > 0 {
		s.metrics.ObserveSwept(swept)
		s.logger.Warn("scheduler: stuck calls swept to failed", "count", swept)
	}
}
