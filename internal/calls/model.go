package calls

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ScheduledCall statuses. A call moves pending → calling → {completed | failed};
// cancellation is only possible while still pending.
const (
	StatusPending   = "pending"
	StatusCalling   = "calling"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// IsTerminal reports whether a status admits no further automatic transition.
func IsTerminal(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// ScheduledCall is a practice call queued for future placement.
type ScheduledCall struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	PhoneNumber   string
	ActivityID    *uuid.UUID
	ScheduledTime time.Time
	Status        string
	CallAttempts  int
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Call-data provider statuses that count as a missed call.
const (
	CallStatusNoAnswer  = "no_answer"
	CallStatusBusy      = "busy"
	CallStatusFailed    = "failed"
	CallStatusVoicemail = "voicemail"
	CallStatusEnded     = "ended"
)

// Analysis is the per-call record created once per provider call id. The
// insight blob is mutated in place as post-processing stages complete.
type Analysis struct {
	ID                 uuid.UUID
	VapiCallID         string
	UserID             uuid.UUID
	PhoneNumber        string
	Transcript         string
	SentimentAnalysis  json.RawMessage
	PerformanceMetrics json.RawMessage
	ExtractedInsights  json.RawMessage
	CallDuration       int
	CallStatus         string
	CallStartedAt      *time.Time
	CallEndedAt        *time.Time
	FollowUpSent       *bool
	FollowUpSentAt     *time.Time
	CreatedAt          time.Time
}
