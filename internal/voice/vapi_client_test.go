package voice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		APIKey:        "test-key",
		AssistantID:   "asst_123",
		PhoneNumberID: "pn_456",
		BaseURL:       srv.URL,
	})
	require.NoError(t, err)
	return client
}

func TestPlaceCallSuccess(t *testing.T) {
	var got vapiCallPayload
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"call_789","status":"queued"}`))
	})

	resp, err := client.PlaceCall(context.Background(), PlaceCallRequest{
		PhoneNumber:        "+919876543210",
		UserID:             "u1",
		Topic:              "ordering chai",
		LastSummary:        "struggled with numbers",
		MaxDurationSeconds: 300,
	})
	require.NoError(t, err)
	assert.Equal(t, "call_789", resp.CallID)
	assert.Equal(t, "asst_123", got.AssistantID)
	assert.Equal(t, "+919876543210", got.Customer.Number)
	require.NotNil(t, got.AssistantOverride)
	assert.Equal(t, 300, got.AssistantOverride.MaxDurationSeconds)
	assert.Equal(t, "ordering chai", got.AssistantOverride.VariableValues["topic"])
}

func TestPlaceCallMapsProviderErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want error
	}{
		{"unverified", `{"message":"phone number is unverified"}`, ErrUnverifiedNumber},
		{"daily limit", `{"message":"daily outbound limit reached"}`, ErrDailyLimit},
		{"invalid", `{"message":"invalid phone number format"}`, ErrInvalidNumber},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.PlaceCall(context.Background(), PlaceCallRequest{PhoneNumber: "+911234567890"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestPlaceCallEmptyNumber(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("request should not reach the provider")
	})
	_, err := client.PlaceCall(context.Background(), PlaceCallRequest{})
	assert.ErrorIs(t, err, ErrInvalidNumber)
}

func TestGetCall(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/call/call_789", r.URL.Path)
		_, _ = w.Write([]byte(`{"id":"call_789","transcript":"User: hello","duration":120,"status":"ended"}`))
	})

	data, err := client.GetCall(context.Background(), "call_789")
	require.NoError(t, err)
	assert.Equal(t, 120, data.Duration)
	assert.Equal(t, "ended", data.Status)
	assert.Contains(t, data.Transcript, "hello")
}

func TestMaskPhone(t *testing.T) {
	assert.Equal(t, "*********3210", maskPhone("+919876543210"))
	assert.Equal(t, "****", maskPhone("12"))
}
