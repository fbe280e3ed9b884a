package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

var twilioTracer = otel.Tracer("bolchaal.internal.messaging.twilio")

// TwilioSender posts SMS messages using Twilio's REST API.
type TwilioSender struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	httpClient *http.Client
	logger     *logging.Logger
}

// NewTwilioSender builds a sender with sane defaults.
func NewTwilioSender(accountSID, authToken, from string, logger *logging.Logger) *TwilioSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &TwilioSender{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    "https://api.twilio.com",
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		logger: logger,
	}
}

var _ SMSSender = (*TwilioSender)(nil)

// SendSMS dispatches a single SMS, retrying transient failures.
func (s *TwilioSender) SendSMS(ctx context.Context, to, body string) (*SendResult, error) {
	if s.accountSID == "" || s.authToken == "" {
		return nil, errors.New("messaging: twilio credentials missing")
	}
	if to == "" {
		return nil, errors.New("messaging: to required")
	}
	if strings.TrimSpace(body) == "" {
		return nil, errors.New("messaging: body required")
	}

	ctx, span := twilioTracer.Start(ctx, "messaging.twilio.send")
	defer span.End()
	span.SetAttributes(attribute.String("bolchaal.to", maskPhone(to)))

	payload := url.Values{}
	payload.Set("To", to)
	payload.Set("From", s.from)
	payload.Set("Body", body)

	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json", s.baseURL, s.accountSID)

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(payload.Encode()))
		if err != nil {
			lastErr = err
			break
		}
		req.SetBasicAuth(s.accountSID, s.authToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := s.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			resp.Body.Close()
			if resp.StatusCode >= 200 && resp.StatusCode < 300 {
				var parsed struct {
					SID    string `json:"sid"`
					Status string `json:"status"`
				}
				_ = json.Unmarshal(respBody, &parsed)
				s.logger.Info("twilio sms sent", "to", maskPhone(to), "sid", parsed.SID)
				return &SendResult{MessageSID: parsed.SID, Status: parsed.Status}, nil
			}
			lastErr = fmt.Errorf("messaging: twilio send failed: %s", formatTwilioError(resp.StatusCode, respBody))
			// Don't retry non-rate-limit 4xx errors.
			if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != 429 {
				break
			}
		}

		if attempt < 3 {
			sleep := time.Duration(200+rand.Intn(300)) * time.Millisecond
			time.Sleep(sleep)
		}
	}

	if lastErr != nil {
		span.RecordError(lastErr)
	}
	return nil, lastErr
}

type twilioAPIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
}

func formatTwilioError(status int, body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return fmt.Sprintf("status %d", status)
	}
	var parsed twilioAPIError
	if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil && parsed.Message != "" {
		if parsed.Code != 0 {
			return fmt.Sprintf("status %d code %d: %s", status, parsed.Code, parsed.Message)
		}
		return fmt.Sprintf("status %d: %s", status, parsed.Message)
	}
	return fmt.Sprintf("status %d: %s", status, trimmed)
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
