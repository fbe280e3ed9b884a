// Package usage computes per-user weekly call-minute budgets and decides
// whether a new call may start.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/users"
)

// DefaultWeeklyMinutes is the free/trial weekly cap.
const DefaultWeeklyMinutes = 25

// UnlimitedMinutes marks the Pro tier's reported remaining minutes.
const UnlimitedMinutes = -1

// SecondsUsedProvider sums call seconds for a user since the window start.
type SecondsUsedProvider interface {
	WeeklySecondsUsed(ctx context.Context, userID uuid.UUID, windowStart time.Time) (int, error)
}

// Status is the derived subscription/usage state. It is never stored; it is
// a pure function of call history within the current week and the tier.
type Status struct {
	HasMinutes         bool   `json:"has_minutes"`
	MinutesUsed        int    `json:"minutes_used"`
	MinutesRemaining   int    `json:"minutes_remaining"`
	Unlimited          bool   `json:"unlimited"`
	SubscriptionStatus string `json:"subscription_status"`
	NeedsUpgrade       bool   `json:"needs_upgrade"`
}

// Gate computes usage status and call-duration caps.
type Gate struct {
	seconds       SecondsUsedProvider
	weeklyMinutes int
	now           func() time.Time
}

// NewGate creates a usage gate. weeklyMinutes <= 0 selects the default cap.
func NewGate(seconds SecondsUsedProvider, weeklyMinutes int) *Gate {
	if weeklyMinutes <= 0 {
		weeklyMinutes = DefaultWeeklyMinutes
	}
	return &Gate{seconds: seconds, weeklyMinutes: weeklyMinutes, now: time.Now}
}

// StatusFor derives the subscription status for a profile.
func (g *Gate) StatusFor(ctx context.Context, profile *users.Profile) (Status, error) {
	now := g.now().UTC()

	if profile.IsPro() {
		return Status{
			HasMinutes:         true,
			MinutesUsed:        0,
			MinutesRemaining:   UnlimitedMinutes,
			Unlimited:          true,
			SubscriptionStatus: profile.SubscriptionTier,
			NeedsUpgrade:       false,
		}, nil
	}

	windowStart := now.Add(-7 * 24 * time.Hour)
	secondsUsed, err := g.seconds.WeeklySecondsUsed(ctx, profile.ID, windowStart)
	if err != nil {
		return Status{}, fmt.Errorf("usage: weekly seconds used: %w", err)
	}

	// Partial minutes count against the budget.
	minutesUsed := (secondsUsed + 59) / 60
	remaining := g.weeklyMinutes - minutesUsed
	if remaining < 0 {
		remaining = 0
	}

	trialExpired := profile.TrialExpired(now)
	hasMinutes := remaining > 0 && !trialExpired

	return Status{
		HasMinutes:         hasMinutes,
		MinutesUsed:        minutesUsed,
		MinutesRemaining:   remaining,
		SubscriptionStatus: profile.SubscriptionTier,
		NeedsUpgrade:       !hasMinutes,
	}, nil
}

// MaxCallDurationSeconds caps a requested call so a single call cannot
// overspend the weekly budget. Returns 0 when no call may start. The value
// is advisory to the voice provider, which enforces the cutoff.
func (g *Gate) MaxCallDurationSeconds(status Status) int {
	if status.Unlimited {
		return 0 // no cap
	}
	if !status.HasMinutes {
		return 0
	}
	return status.MinutesRemaining * 60
}
