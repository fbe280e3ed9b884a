package voice

import (
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/calls"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// ----- Vapi webhook event types -----

// WebhookEvent is the top-level Vapi server-message envelope. Vapi posts an
// end-of-call report once a call finishes; other message types (status
// updates, speech updates) are acknowledged and ignored.
type WebhookEvent struct {
	Message WebhookMessage `json:"message"`
}

// WebhookMessage carries the typed payload of a server message.
type WebhookMessage struct {
	// Type identifies the message (e.g. "end-of-call-report").
	Type string `json:"type"`
	// EndedReason is Vapi's termination cause, e.g. "customer-did-not-answer".
	EndedReason string `json:"endedReason"`
	// Transcript is the full speaker-labelled call transcript.
	Transcript string `json:"transcript"`
	// DurationSeconds is the billed call length.
	DurationSeconds float64     `json:"durationSeconds"`
	StartedAt       *time.Time  `json:"startedAt"`
	EndedAt         *time.Time  `json:"endedAt"`
	Call            WebhookCall `json:"call"`
}

// WebhookCall identifies the call the report belongs to.
type WebhookCall struct {
	ID       string            `json:"id"`
	Customer webhookCustomer   `json:"customer"`
	Metadata map[string]string `json:"metadata"`
}

type webhookCustomer struct {
	Number string `json:"number"`
}

// ----- Handler -----

// AnalysisUpserter persists the finished call. The insert is idempotent on
// the provider call id, so replayed webhooks are harmless.
type AnalysisUpserter interface {
	Upsert(ctx context.Context, a *calls.Analysis) error
}

// UserResolver maps the report back to a user when the call metadata is
// missing its user id.
type UserResolver interface {
	GetByPhone(ctx context.Context, phone string) (*users.Profile, error)
}

// WebhookHandler ingests Vapi end-of-call reports into call_analyses. This
// is the write side the completion tracker, follow-up worker, and usage
// gate all read from.
type WebhookHandler struct {
	analyses AnalysisUpserter
	profiles UserResolver
	// secret, when set, must match the X-Vapi-Secret header.
	secret  string
	metrics *metrics.CallMetrics
	logger  *logging.Logger
}

// NewWebhookHandler creates a Vapi webhook handler.
func NewWebhookHandler(analyses AnalysisUpserter, profiles UserResolver, secret string, m *metrics.CallMetrics, logger *logging.Logger) *WebhookHandler {
	if logger == nil {
		logger = logging.Default()
	}
	return &WebhookHandler{
		analyses: analyses,
		profiles: profiles,
		secret:   secret,
		metrics:  m,
		logger:   logger,
	}
}

// endedReasonStatus maps Vapi ended reasons onto our call_status vocabulary.
// Anything unrecognized counts as completed so the analysis still runs.
func endedReasonStatus(reason string) string {
	r := strings.ToLower(reason)
	switch {
	case strings.Contains(r, "did-not-answer") || strings.Contains(r, "no-answer"):
		return "no_answer"
	case strings.Contains(r, "busy"):
		return "busy"
	case strings.Contains(r, "voicemail"):
		return "voicemail"
	case strings.Contains(r, "error") || strings.Contains(r, "failed"):
		return "failed"
	default:
		return "completed"
	}
}

// Handle processes a Vapi server message.
func (h *WebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if h.secret != "" && r.Header.Get("X-Vapi-Secret") != h.secret {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 4<<20))
	if err != nil {
		http.Error(w, "read body", http.StatusBadRequest)
		return
	}

	var evt WebhookEvent
	if err := json.Unmarshal(body, &evt); err != nil {
		http.Error(w, "invalid payload", http.StatusBadRequest)
		return
	}

	if evt.Message.Type != "end-of-call-report" {
		w.WriteHeader(http.StatusOK)
		return
	}
	if evt.Message.Call.ID == "" {
		http.Error(w, "missing call id", http.StatusBadRequest)
		return
	}

	userID, ok := h.resolveUser(r.Context(), &evt)
	if !ok {
		// Not one of ours. Ack so the provider stops retrying.
		h.logger.Warn("voice: webhook call has no resolvable user",
			"call_id", evt.Message.Call.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	analysis := &calls.Analysis{
		VapiCallID:    evt.Message.Call.ID,
		UserID:        userID,
		PhoneNumber:   evt.Message.Call.Customer.Number,
		Transcript:    evt.Message.Transcript,
		CallDuration:  int(math.Round(evt.Message.DurationSeconds)),
		CallStatus:    endedReasonStatus(evt.Message.EndedReason),
		CallStartedAt: evt.Message.StartedAt,
		CallEndedAt:   evt.Message.EndedAt,
	}

	if err := h.analyses.Upsert(r.Context(), analysis); err != nil {
		// 500 makes the provider retry; the upsert is idempotent.
		h.logger.Error("voice: webhook upsert failed",
			"call_id", evt.Message.Call.ID, "error", err)
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	h.metrics.ObserveCallEnded(analysis.CallStatus)
	h.logger.Info("voice: end-of-call report stored",
		"call_id", analysis.VapiCallID,
		"status", analysis.CallStatus,
		"duration_s", analysis.CallDuration,
	)
	w.WriteHeader(http.StatusOK)
}

// resolveUser prefers the user id planted in call metadata at placement time
// and falls back to a phone-number lookup.
func (h *WebhookHandler) resolveUser(ctx context.Context, evt *WebhookEvent) (uuid.UUID, bool) {
	if raw := evt.Message.Call.Metadata["user_id"]; raw != "" {
		if id, err := uuid.Parse(raw); err == nil {
			return id, true
		}
	}
	number := evt.Message.Call.Customer.Number
	if number == "" || h.profiles == nil {
		return uuid.Nil, false
	}
	profile, err := h.profiles.GetByPhone(ctx, number)
	if err != nil {
		return uuid.Nil, false
	}
	return profile.ID, true
}
