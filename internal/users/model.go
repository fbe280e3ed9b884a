package users

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no profile matches the lookup key.
var ErrNotFound = errors.New("users: profile not found")

// Subscription tiers.
const (
	TierFree  = "free"
	TierTrial = "trial"
	TierPro   = "pro"
)

// Profile is a learner account keyed by phone number.
type Profile struct {
	ID                      uuid.UUID
	PhoneNumber             string
	FullName                string
	Language                string
	ProficiencyLevel        string
	OnboardingCompleted     bool
	SubscriptionTier        string
	TrialExpiresAt          *time.Time
	StripeCustomerID        string
	LastConversationSummary string
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsPro reports whether the profile is on the unlimited tier.
func (p *Profile) IsPro() bool {
	return p.SubscriptionTier == TierPro
}

// TrialExpired reports whether a trial tier has lapsed as of now.
func (p *Profile) TrialExpired(now time.Time) bool {
	if p.SubscriptionTier != TierTrial {
		return false
	}
	return p.TrialExpiresAt != nil && p.TrialExpiresAt.Before(now)
}
