package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// WebhookHandler processes Stripe webhook events and flips the user's
// subscription tier accordingly.
type WebhookHandler struct {
	webhookSecret string
	profiles      ProfileStore
	logger        *logging.Logger
	now           func() time.Time
}

// NewWebhookHandler creates the Stripe webhook handler.
func NewWebhookHandler(webhookSecret string, profiles ProfileStore, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		webhookSecret: webhookSecret,
		profiles:      profiles,
		logger:        logger.WithComponent("stripe_webhook"),
		now:           time.Now,
	}
}

type stripeWebhookEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object stripeEventObject `json:"object"`
	} `json:"data"`
}

type stripeEventObject struct {
	ID       string            `json:"id"`
	Customer string            `json:"customer"`
	Status   string            `json:"status"`
	Metadata map[string]string `json:"metadata"`
}

// Handle processes incoming Stripe webhook events. Tier updates are
// last-writer-wins; replaying an event produces the same end state.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "invalid body", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(payload, r.Header.Get("Stripe-Signature")) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	var evt stripeWebhookEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		h.logger.Error("failed to decode stripe event", "error", err)
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if evt.ID == "" {
		http.Error(w, "missing event id", http.StatusBadRequest)
		return
	}

	var handleErr error
	switch evt.Type {
	case "checkout.session.completed":
		handleErr = h.setTier(r.Context(), evt.Data.Object, users.TierPro)
	case "customer.subscription.updated":
		tier := users.TierPro
		switch evt.Data.Object.Status {
		case "canceled", "unpaid", "incomplete_expired":
			tier = users.TierFree
		}
		handleErr = h.setTier(r.Context(), evt.Data.Object, tier)
	case "customer.subscription.deleted":
		handleErr = h.setTier(r.Context(), evt.Data.Object, users.TierFree)
	default:
		// Unhandled event types are acknowledged so Stripe stops retrying.
		w.WriteHeader(http.StatusOK)
		return
	}

	if handleErr != nil {
		h.logger.Error("stripe event failed", "event_id", evt.ID, "type", evt.Type, "error", handleErr)
		http.Error(w, "server error", http.StatusInternalServerError)
		return
	}

	h.logger.Info("stripe event processed", "event_id", evt.ID, "type", evt.Type)
	w.WriteHeader(http.StatusOK)
}

func (h *WebhookHandler) setTier(ctx context.Context, obj stripeEventObject, tier string) error {
	profile, err := h.resolveProfile(ctx, obj)
	if err != nil {
		return err
	}
	if profile == nil {
		// No matching user; acknowledge rather than retry forever.
		h.logger.Warn("stripe event matched no user", "customer_id", obj.Customer)
		return nil
	}
	if err := h.profiles.SetSubscriptionTier(ctx, profile.ID, tier, nil); err != nil {
		return fmt.Errorf("payments: set subscription tier: %w", err)
	}
	h.logger.Info("subscription tier updated", "user_id", profile.ID, "tier", tier)
	return nil
}

func (h *WebhookHandler) resolveProfile(ctx context.Context, obj stripeEventObject) (*users.Profile, error) {
	if raw := obj.Metadata["user_id"]; raw != "" {
		userID, err := uuid.Parse(raw)
		if err == nil {
			profile, err := h.profiles.GetByID(ctx, userID)
			if err == nil {
				return profile, nil
			}
			if !errors.Is(err, users.ErrNotFound) {
				return nil, err
			}
		}
	}
	if obj.Customer == "" {
		return nil, nil
	}
	profile, err := h.profiles.GetByStripeCustomerID(ctx, obj.Customer)
	if errors.Is(err, users.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

func (h *WebhookHandler) verifySignature(payload []byte, header string) bool {
	if h.webhookSecret == "" {
		return true // bypass for development
	}
	if header == "" {
		return false
	}

	var timestamp string
	var signatures []string
	for _, part := range strings.Split(header, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch kv[0] {
		case "t":
			timestamp = kv[1]
		case "v1":
			signatures = append(signatures, kv[1])
		}
	}
	if timestamp == "" || len(signatures) == 0 {
		return false
	}

	// Timestamp tolerance: 5 minutes.
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if abs64(h.now().Unix()-ts) > 300 {
		return false
	}

	signedPayload := fmt.Sprintf("%s.%s", timestamp, string(payload))
	mac := hmac.New(sha256.New, []byte(h.webhookSecret))
	mac.Write([]byte(signedPayload))
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, sig := range signatures {
		if hmac.Equal([]byte(sig), []byte(expected)) {
			return true
		}
	}
	return false
}

func abs64(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
