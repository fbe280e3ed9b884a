package payments

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bolchaal/bolchaal-backend/internal/users"
)

type fakeProfileStore struct {
	byID       map[uuid.UUID]*users.Profile
	byCustomer map[string]*users.Profile
	tiers      map[uuid.UUID]string
	customers  map[uuid.UUID]string
}

func newFakeProfileStore() *fakeProfileStore {
	return &fakeProfileStore{
		byID:       map[uuid.UUID]*users.Profile{},
		byCustomer: map[string]*users.Profile{},
		tiers:      map[uuid.UUID]string{},
		customers:  map[uuid.UUID]string{},
	}
}

func (f *fakeProfileStore) add(p *users.Profile) {
	f.byID[p.ID] = p
	if p.StripeCustomerID != "" {
		f.byCustomer[p.StripeCustomerID] = p
	}
}

func (f *fakeProfileStore) GetByID(_ context.Context, id uuid.UUID) (*users.Profile, error) {
	if p, ok := f.byID[id]; ok {
		return p, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeProfileStore) GetByStripeCustomerID(_ context.Context, customerID string) (*users.Profile, error) {
	if p, ok := f.byCustomer[customerID]; ok {
		return p, nil
	}
	return nil, users.ErrNotFound
}

func (f *fakeProfileStore) SetStripeCustomerID(_ context.Context, id uuid.UUID, customerID string) error {
	f.customers[id] = customerID
	if p, ok := f.byID[id]; ok {
		p.StripeCustomerID = customerID
		f.byCustomer[customerID] = p
	}
	return nil
}

func (f *fakeProfileStore) SetSubscriptionTier(_ context.Context, id uuid.UUID, tier string, _ *time.Time) error {
	f.tiers[id] = tier
	return nil
}

func signPayload(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func postEvent(t *testing.T, h *WebhookHandler, secret string, payload []byte) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(payload))
	if secret != "" {
		req.Header.Set("Stripe-Signature", signPayload(secret, payload, time.Now()))
	}
	rec := httptest.NewRecorder()
	h.Handle(rec, req)
	return rec
}

func TestCheckoutCompletedUpgradesToPro(t *testing.T) {
	store := newFakeProfileStore()
	userID := uuid.New()
	store.add(&users.Profile{ID: userID, SubscriptionTier: users.TierFree})

	h := NewWebhookHandler("whsec_test", store, nil)
	payload := []byte(fmt.Sprintf(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","customer":"cus_1","metadata":{"user_id":"%s"}}}}`, userID))

	rec := postEvent(t, h, "whsec_test", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.TierPro, store.tiers[userID])
}

func TestSubscriptionDeletedDowngrades(t *testing.T) {
	store := newFakeProfileStore()
	userID := uuid.New()
	store.add(&users.Profile{ID: userID, SubscriptionTier: users.TierPro, StripeCustomerID: "cus_9"})

	h := NewWebhookHandler("whsec_test", store, nil)
	payload := []byte(`{"id":"evt_2","type":"customer.subscription.deleted","data":{"object":{"id":"sub_1","customer":"cus_9"}}}`)

	rec := postEvent(t, h, "whsec_test", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.TierFree, store.tiers[userID])
}

func TestSubscriptionCanceledStatusDowngrades(t *testing.T) {
	store := newFakeProfileStore()
	userID := uuid.New()
	store.add(&users.Profile{ID: userID, StripeCustomerID: "cus_3"})

	h := NewWebhookHandler("whsec_test", store, nil)
	payload := []byte(`{"id":"evt_3","type":"customer.subscription.updated","data":{"object":{"customer":"cus_3","status":"canceled"}}}`)

	rec := postEvent(t, h, "whsec_test", payload)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, users.TierFree, store.tiers[userID])
}

func TestBadSignatureRejected(t *testing.T) {
	h := NewWebhookHandler("whsec_test", newFakeProfileStore(), nil)
	payload := []byte(`{"id":"evt_4","type":"checkout.session.completed","data":{"object":{}}}`)

	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload("wrong-secret", payload, time.Now()))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStaleTimestampRejected(t *testing.T) {
	h := NewWebhookHandler("whsec_test", newFakeProfileStore(), nil)
	payload := []byte(`{"id":"evt_5","type":"checkout.session.completed","data":{"object":{}}}`)

	req := httptest.NewRequest(http.MethodPost, "/billing/webhook", bytes.NewReader(payload))
	req.Header.Set("Stripe-Signature", signPayload("whsec_test", payload, time.Now().Add(-10*time.Minute)))
	rec := httptest.NewRecorder()
	h.Handle(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownEventAcknowledged(t *testing.T) {
	h := NewWebhookHandler("whsec_test", newFakeProfileStore(), nil)
	payload := []byte(`{"id":"evt_6","type":"invoice.finalized","data":{"object":{}}}`)

	rec := postEvent(t, h, "whsec_test", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestUnmatchedCustomerAcknowledged(t *testing.T) {
	h := NewWebhookHandler("whsec_test", newFakeProfileStore(), nil)
	payload := []byte(`{"id":"evt_7","type":"customer.subscription.deleted","data":{"object":{"customer":"cus_ghost"}}}`)

	rec := postEvent(t, h, "whsec_test", payload)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCheckoutForUserCreatesCustomerOnce(t *testing.T) {
	store := newFakeProfileStore()
	userID := uuid.New()
	store.add(&users.Profile{ID: userID, PhoneNumber: "+919876543210"})

	created := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/customers":
			created++
			_, _ = w.Write([]byte(`{"id":"cus_once"}`))
		case "/v1/checkout/sessions":
			_, _ = w.Write([]byte(`{"id":"cs_1","client_secret":"secret_1"}`))
		default:
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk", PriceID: "price_1"}, nil).WithBaseURL(server.URL)
	svc := NewService(store, client, nil)

	for i := 0; i < 2; i++ {
		session, err := svc.CheckoutForUser(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, "secret_1", session.ClientSecret)
	}
	assert.Equal(t, 1, created)
}
