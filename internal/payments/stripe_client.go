package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

var stripeTracer = otel.Tracer("bolchaal.internal.payments.stripe")

// StripeClient talks to the Stripe API for subscription checkout and the
// customer portal. It uses form-encoded requests directly rather than a
// vendored SDK.
type StripeClient struct {
	secretKey  string
	priceID    string
	returnURL  string
	baseURL    string
	apiVersion string
	httpClient *http.Client
	logger     *logging.Logger
}

// StripeConfig carries the Stripe credentials and product wiring.
type StripeConfig struct {
	SecretKey string
	// PriceID is the recurring price for the Pro subscription.
	PriceID string
	// ReturnURL is where checkout and the portal send the user back.
	ReturnURL string
}

// NewStripeClient creates a Stripe API client.
func NewStripeClient(cfg StripeConfig, logger *logging.Logger) *StripeClient {
	if logger == nil {
		logger = logging.Default()
	}
	return &StripeClient{
		secretKey:  cfg.SecretKey,
		priceID:    cfg.PriceID,
		returnURL:  cfg.ReturnURL,
		baseURL:    "https://api.stripe.com",
		apiVersion: "2024-12-18.acacia",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

// WithBaseURL overrides the Stripe API base URL (for testing).
func (c *StripeClient) WithBaseURL(baseURL string) *StripeClient {
	if baseURL != "" {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
	return c
}

// CreateCustomer registers a Stripe customer for a user and returns its id.
func (c *StripeClient) CreateCustomer(ctx context.Context, userID, phoneNumber, name string) (string, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_customer")
	defer span.End()
	span.SetAttributes(attribute.String("bolchaal.user_id", userID))

	form := url.Values{}
	form.Set("phone", phoneNumber)
	if name != "" {
		form.Set("name", name)
	}
	form.Set("metadata[user_id]", userID)

	var parsed struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/customers", form, &parsed); err != nil {
		return "", err
	}
	if parsed.ID == "" {
		return "", fmt.Errorf("payments: stripe response missing customer id")
	}
	return parsed.ID, nil
}

// CheckoutSession is the embedded-checkout handle returned to the client.
type CheckoutSession struct {
	SessionID    string
	ClientSecret string
}

// CreateCheckoutSession opens an embedded subscription checkout for a
// customer and returns the client secret the mobile app mounts.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, customerID, userID string) (*CheckoutSession, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_checkout_session")
	defer span.End()
	span.SetAttributes(
		attribute.String("bolchaal.user_id", userID),
		attribute.String("bolchaal.customer_id", customerID),
	)

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("ui_mode", "embedded")
	form.Set("customer", customerID)
	form.Set("line_items[0][price]", c.priceID)
	form.Set("line_items[0][quantity]", "1")
	form.Set("metadata[user_id]", userID)
	form.Set("subscription_data[metadata][user_id]", userID)
	if c.returnURL != "" {
		form.Set("return_url", c.returnURL+"?session_id={CHECKOUT_SESSION_ID}")
	}

	var parsed struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.post(ctx, "/v1/checkout/sessions", form, &parsed); err != nil {
		return nil, err
	}
	if parsed.ClientSecret == "" {
		return nil, fmt.Errorf("payments: stripe response missing client secret")
	}
	return &CheckoutSession{SessionID: parsed.ID, ClientSecret: parsed.ClientSecret}, nil
}

// CreatePortalSession opens the Stripe customer portal and returns its URL.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (string, error) {
	ctx, span := stripeTracer.Start(ctx, "stripe.create_portal_session")
	defer span.End()
	span.SetAttributes(attribute.String("bolchaal.customer_id", customerID))

	form := url.Values{}
	form.Set("customer", customerID)
	if c.returnURL != "" {
		form.Set("return_url", c.returnURL)
	}

	var parsed struct {
		URL string `json:"url"`
	}
	if err := c.post(ctx, "/v1/billing_portal/sessions", form, &parsed); err != nil {
		return "", err
	}
	if parsed.URL == "" {
		return "", fmt.Errorf("payments: stripe response missing portal url")
	}
	return parsed.URL, nil
}

func (c *StripeClient) post(ctx context.Context, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("payments: stripe request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Stripe-Version", c.apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("payments: stripe http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("payments: stripe api status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("payments: stripe decode: %w", err)
	}
	return nil
}
