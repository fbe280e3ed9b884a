package analysis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Queue is the transport for async analysis jobs. SQS in deployment, an
// in-memory channel for local development and tests.
type Queue interface {
	Send(ctx context.Context, body string) error
	Receive(ctx context.Context, maxMessages int, waitSeconds int) ([]Message, error)
	Delete(ctx context.Context, receiptHandle string) error
}

// Message is one received queue entry.
type Message struct {
	ID            string
	Body          string
	ReceiptHandle string
}

type jobType string

const (
	jobTypeBehaviorScore   jobType = "behavior_score"
	jobTypePromptEvolution jobType = "prompt_evolution"
)

type queuePayload struct {
	ID         string  `json:"id"`
	Kind       jobType `json:"kind"`
	UserID     string  `json:"user_id"`
	VapiCallID string  `json:"vapi_call_id"`
	Transcript string  `json:"transcript"`
}

func encodePayload(payload queuePayload) (queuePayload, string, error) {
	if payload.ID == "" {
		payload.ID = uuid.NewString()
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return queuePayload{}, "", fmt.Errorf("analysis: failed to encode payload: %w", err)
	}

	return payload, string(body), nil
}
