// Package followup sends SMS follow-ups for recently missed practice calls.
package followup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/calls"
	"github.com/bolchaal/bolchaal-backend/internal/messaging"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// AnalysisSource lists missed calls and flags them once handled.
type AnalysisSource interface {
	ListMissedForFollowUp(ctx context.Context, since time.Time, limit int) ([]calls.Analysis, error)
	MarkFollowUpSent(ctx context.Context, id uuid.UUID) error
	ClearStaleFollowUpFlags(ctx context.Context, cutoff time.Time) (int64, error)
}

// ConversationStore persists the outbound follow-up message.
type ConversationStore interface {
	FindOrCreateConversation(ctx context.Context, phone string) (*messaging.Conversation, error)
	AppendMessage(ctx context.Context, conversationID uuid.UUID, direction, body, providerSID string) (*messaging.Message, error)
}

// ProfileLoader resolves the learner's name for the message copy.
type ProfileLoader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.Profile, error)
}

// Config tunes the scan and retention windows.
type Config struct {
	// Window bounds how far back the scan looks for missed calls.
	Window time.Duration
	// FlagRetention bounds how long follow_up_sent flags are kept.
	FlagRetention time.Duration
	// BatchLimit caps rows per invocation.
	BatchLimit int
}

func (c *Config) applyDefaults() {
	if c.Window <= 0 {
		c.Window = 30 * time.Minute
	}
	if c.FlagRetention <= 0 {
		c.FlagRetention = 7 * 24 * time.Hour
	}
	if c.BatchLimit <= 0 {
		c.BatchLimit = 50
	}
}

// Worker scans for missed calls and sends one follow-up SMS per call.
type Worker struct {
	analyses AnalysisSource
	convs    ConversationStore
	profiles ProfileLoader
	sender   messaging.SMSSender
	metrics  *metrics.SMSMetrics
	cfg      Config
	logger   *logging.Logger
	now      func() time.Time
}

// NewWorker creates a missed-call follow-up worker.
func NewWorker(analyses AnalysisSource, convs ConversationStore, profiles ProfileLoader, sender messaging.SMSSender, m *metrics.SMSMetrics, cfg Config, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	cfg.applyDefaults()
	return &Worker{
		analyses: analyses,
		convs:    convs,
		profiles: profiles,
		sender:   sender,
		metrics:  m,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// ProcessRecent sends follow-ups for missed calls inside the scan window
// and clears stale flags. Returns the number of follow-ups sent. Failures
// on one row never abort the batch.
func (w *Worker) ProcessRecent(ctx context.Context) (int, error) {
	now := w.now().UTC()

	missed, err := w.analyses.ListMissedForFollowUp(ctx, now.Add(-w.cfg.Window), w.cfg.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("followup: list missed calls: %w", err)
	}

	sent := 0
	for i := range missed {
		if err := w.processOne(ctx, &missed[i]); err != nil {
			w.logger.Error("followup: failed to process missed call",
				"id", missed[i].ID, "call_status", missed[i].CallStatus, "error", err)
			continue
		}
		sent++
	}

	cleared, err := w.analyses.ClearStaleFollowUpFlags(ctx, now.Add(-w.cfg.FlagRetention))
	if err != nil {
		w.logger.Error("followup: flag cleanup failed", "error", err)
	} else if cleared > 0 {
		w.logger.Info("followup: stale flags cleared", "count", cleared)
	}

	return sent, nil
}

func (w *Worker) processOne(ctx context.Context, a *calls.Analysis) error {
	name := ""
	profile, err := w.profiles.GetByID(ctx, a.UserID)
	if err != nil {
		if !errors.Is(err, users.ErrNotFound) {
			return fmt.Errorf("load profile: %w", err)
		}
	} else {
		name = profile.FullName
	}

	body := MessageFor(a.CallStatus, name)

	conv, err := w.convs.FindOrCreateConversation(ctx, a.PhoneNumber)
	if err != nil {
		return fmt.Errorf("find conversation: %w", err)
	}

	res, err := w.sender.SendSMS(ctx, a.PhoneNumber, body)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}

	if _, err := w.convs.AppendMessage(ctx, conv.ID, messaging.DirectionOutbound, body, res.MessageSID); err != nil {
		// The SMS went out; losing the history row is not worth a retry
		// that would duplicate the send.
		w.logger.Warn("followup: sms sent but not persisted", "id", a.ID, "error", err)
	}

	if err := w.analyses.MarkFollowUpSent(ctx, a.ID); err != nil {
		return fmt.Errorf("mark follow-up sent: %w", err)
	}

	w.metrics.ObserveFollowUp(a.CallStatus)
	w.logger.Info("followup: sms sent",
		"id", a.ID, "call_status", a.CallStatus, "sid", res.MessageSID)
	return nil
}
