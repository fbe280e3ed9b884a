package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCheckoutSession(t *testing.T) {
	var gotForm map[string][]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		require.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		gotForm = r.PostForm

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","client_secret":"cs_test_1_secret_abc"}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{
		SecretKey: "sk_test_123",
		PriceID:   "price_pro_monthly",
		ReturnURL: "https://app.bolchaal.in/billing",
	}, nil).WithBaseURL(server.URL)

	session, err := client.CreateCheckoutSession(context.Background(), "cus_42", "user-1")
	require.NoError(t, err)

	assert.Equal(t, "cs_test_1", session.SessionID)
	assert.Equal(t, "cs_test_1_secret_abc", session.ClientSecret)
	assert.Equal(t, "subscription", gotForm["mode"][0])
	assert.Equal(t, "embedded", gotForm["ui_mode"][0])
	assert.Equal(t, "cus_42", gotForm["customer"][0])
	assert.Equal(t, "price_pro_monthly", gotForm["line_items[0][price]"][0])
	assert.Equal(t, "user-1", gotForm["metadata[user_id]"][0])
}

func TestCreateCheckoutSessionAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"message":"card declined"}}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk"}, nil).WithBaseURL(server.URL)

	_, err := client.CreateCheckoutSession(context.Background(), "cus_42", "user-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 402")
}

func TestCreateCustomer(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/customers", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "+919876543210", r.PostForm.Get("phone"))
		assert.Equal(t, "user-1", r.PostForm.Get("metadata[user_id]"))

		_, _ = w.Write([]byte(`{"id":"cus_new"}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk"}, nil).WithBaseURL(server.URL)

	id, err := client.CreateCustomer(context.Background(), "user-1", "+919876543210", "Asha")
	require.NoError(t, err)
	assert.Equal(t, "cus_new", id)
}

func TestCreatePortalSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/billing_portal/sessions", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "cus_42", r.PostForm.Get("customer"))

		_, _ = w.Write([]byte(`{"url":"https://billing.stripe.com/p/session_xyz"}`))
	}))
	defer server.Close()

	client := NewStripeClient(StripeConfig{SecretKey: "sk", ReturnURL: "https://app.bolchaal.in"}, nil).WithBaseURL(server.URL)

	portalURL, err := client.CreatePortalSession(context.Background(), "cus_42")
	require.NoError(t, err)
	assert.Equal(t, "https://billing.stripe.com/p/session_xyz", portalURL)
}
