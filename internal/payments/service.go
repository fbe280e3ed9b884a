package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// ProfileStore is the slice of the user store billing needs.
type ProfileStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.Profile, error)
	GetByStripeCustomerID(ctx context.Context, customerID string) (*users.Profile, error)
	SetStripeCustomerID(ctx context.Context, id uuid.UUID, customerID string) error
	SetSubscriptionTier(ctx context.Context, id uuid.UUID, tier string, trialExpiresAt *time.Time) error
}

// CheckoutProvider is what the service needs from the Stripe client.
type CheckoutProvider interface {
	CreateCustomer(ctx context.Context, userID, phoneNumber, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, customerID, userID string) (*CheckoutSession, error)
	CreatePortalSession(ctx context.Context, customerID string) (string, error)
}

// Service ties user profiles to Stripe customers and sessions.
type Service struct {
	profiles ProfileStore
	stripe   CheckoutProvider
	logger   *logging.Logger
}

// NewService creates the billing service.
func NewService(profiles ProfileStore, stripe CheckoutProvider, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{
		profiles: profiles,
		stripe:   stripe,
		logger:   logger.WithComponent("payments"),
	}
}

// CheckoutForUser opens an embedded checkout session, creating the Stripe
// customer on first use.
func (s *Service) CheckoutForUser(ctx context.Context, userID uuid.UUID) (*CheckoutSession, error) {
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.stripe.CreateCheckoutSession(ctx, customerID, userID.String())
}

// PortalForUser opens the Stripe customer portal for subscription
// management.
func (s *Service) PortalForUser(ctx context.Context, userID uuid.UUID) (string, error) {
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", err
	}
	return s.stripe.CreatePortalSession(ctx, customerID)
}

func (s *Service) ensureCustomer(ctx context.Context, userID uuid.UUID) (string, error) {
	profile, err := s.profiles.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("payments: load profile: %w", err)
	}
	if profile.StripeCustomerID != "" {
		return profile.StripeCustomerID, nil
	}

	customerID, err := s.stripe.CreateCustomer(ctx, userID.String(), profile.PhoneNumber, profile.FullName)
	if err != nil {
		return "", err
	}
	if err := s.profiles.SetStripeCustomerID(ctx, userID, customerID); err != nil {
		return "", fmt.Errorf("payments: persist customer id: %w", err)
	}
	s.logger.Info("stripe customer created", "user_id", userID, "customer_id", customerID)
	return customerID, nil
}
