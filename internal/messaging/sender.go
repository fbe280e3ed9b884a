// Package messaging sends outbound SMS and persists conversation history.
package messaging

import "context"

// SendResult is the provider acknowledgment for an outbound SMS.
type SendResult struct {
	MessageSID string
	Status     string
}

// SMSSender abstracts the SMS provider.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) (*SendResult, error)
}
