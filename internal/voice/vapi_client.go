// Package voice wraps the Vapi voice-AI provider: outbound call placement
// and post-call data retrieval.
package voice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bolchaal/bolchaal-backend/internal/voice/voicetypes"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

var vapiTracer = otel.Tracer("bolchaal.internal.voice.vapi")

const (
	defaultVapiBaseURL = "https://api.vapi.ai"
	vapiCallTimeout    = 15 * time.Second
)

// Provider error conditions mapped to user-facing copy by the API layer.
var (
	ErrUnverifiedNumber = errors.New("voice: phone number not verified with provider")
	ErrDailyLimit       = errors.New("voice: provider daily outbound limit reached")
	ErrInvalidNumber    = errors.New("voice: invalid phone number")
)

// PlaceCallRequest carries everything the assistant needs to run a practice call.
// It is declared in the leaf package voicetypes so the call scheduler can
// reference it without an import cycle.
type PlaceCallRequest = voicetypes.PlaceCallRequest

// PlaceCallResponse is the provider acknowledgment for a placed call.
type PlaceCallResponse = voicetypes.PlaceCallResponse

// CallData is the post-call record fetched from the provider.
type CallData struct {
	ID         string     `json:"id"`
	Transcript string     `json:"transcript"`
	Duration   int        `json:"duration"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
	Quality    float64    `json:"quality"`
}

// Client talks to the Vapi REST API.
type Client struct {
	apiKey        string
	assistantID   string
	phoneNumberID string
	baseURL       string
	httpClient    *http.Client
	logger        *logging.Logger
}

// ClientConfig configures the Vapi client.
type ClientConfig struct {
	APIKey        string
	AssistantID   string
	PhoneNumberID string
	// BaseURL overrides the Vapi API base URL (for testing).
	BaseURL    string
	HTTPClient *http.Client
	Logger     *logging.Logger
}

// NewClient creates a Vapi client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("voice: vapi API key required")
	}
	if strings.TrimSpace(cfg.AssistantID) == "" {
		return nil, fmt.Errorf("voice: vapi assistant ID required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultVapiBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: vapiCallTimeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		apiKey:        cfg.APIKey,
		assistantID:   cfg.AssistantID,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    httpClient,
		logger:        logger,
	}, nil
}

type vapiCallPayload struct {
	AssistantID       string             `json:"assistantId"`
	PhoneNumberID     string             `json:"phoneNumberId,omitempty"`
	Customer          vapiCustomer       `json:"customer"`
	AssistantOverride *assistantOverride `json:"assistantOverrides,omitempty"`
	// Metadata is echoed back on the end-of-call report, which is how the
	// webhook maps a finished call to its user.
	Metadata map[string]string `json:"metadata,omitempty"`
}

type vapiCustomer struct {
	Number string `json:"number"`
}

type assistantOverride struct {
	VariableValues     map[string]string `json:"variableValues,omitempty"`
	MaxDurationSeconds int               `json:"maxDurationSeconds,omitempty"`
}

// PlaceCall initiates an outbound practice call. The max-duration cap is
// advisory: the provider terminates the call at the cap.
func (c *Client) PlaceCall(ctx context.Context, req PlaceCallRequest) (*PlaceCallResponse, error) {
	if strings.TrimSpace(req.PhoneNumber) == "" {
		return nil, ErrInvalidNumber
	}

	ctx, span := vapiTracer.Start(ctx, "voice.vapi.place_call")
	defer span.End()
	span.SetAttributes(
		attribute.String("bolchaal.user_id", req.UserID),
		attribute.Int("bolchaal.max_duration_seconds", req.MaxDurationSeconds),
	)

	payload := vapiCallPayload{
		AssistantID:   c.assistantID,
		PhoneNumberID: c.phoneNumberID,
		Customer:      vapiCustomer{Number: req.PhoneNumber},
		AssistantOverride: &assistantOverride{
			VariableValues: map[string]string{
				"topic":        req.Topic,
				"last_summary": req.LastSummary,
			},
			MaxDurationSeconds: req.MaxDurationSeconds,
		},
		Metadata: map[string]string{"user_id": req.UserID},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("voice: marshal call payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("voice: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info("voice: placing outbound call",
		"to", maskPhone(req.PhoneNumber),
		"topic", req.Topic,
		"max_duration_s", req.MaxDurationSeconds,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("voice: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if mapped := mapProviderError(respBody); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("voice: place call failed: status %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var placed PlaceCallResponse
	if err := json.Unmarshal(respBody, &placed); err != nil {
		return nil, fmt.Errorf("voice: decode response: %w", err)
	}
	if placed.CallID == "" {
		return nil, fmt.Errorf("voice: provider returned no call id")
	}
	return &placed, nil
}

// GetCall fetches the post-call record, including the raw transcript.
func (c *Client) GetCall(ctx context.Context, callID string) (*CallData, error) {
	if strings.TrimSpace(callID) == "" {
		return nil, fmt.Errorf("voice: call id required")
	}

	ctx, span := vapiTracer.Start(ctx, "voice.vapi.get_call")
	defer span.End()
	span.SetAttributes(attribute.String("bolchaal.call_id", callID))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/"+callID, nil)
	if err != nil {
		return nil, fmt.Errorf("voice: create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("voice: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("voice: read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("voice: get call failed: status %d: %s", resp.StatusCode, truncate(respBody, 512))
	}

	var data CallData
	if err := json.Unmarshal(respBody, &data); err != nil {
		return nil, fmt.Errorf("voice: decode call data: %w", err)
	}
	return &data, nil
}

func mapProviderError(body []byte) error {
	msg := strings.ToLower(string(body))
	switch {
	case strings.Contains(msg, "unverified") || strings.Contains(msg, "not verified"):
		return ErrUnverifiedNumber
	case strings.Contains(msg, "daily") && strings.Contains(msg, "limit"):
		return ErrDailyLimit
	case strings.Contains(msg, "invalid") && strings.Contains(msg, "number"):
		return ErrInvalidNumber
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
