package tracker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/analysis"
	"github.com/bolchaal/bolchaal-backend/internal/calls"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/transcript"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// AnalysisSource reads the newest call-analysis row for a user.
type AnalysisSource interface {
	LatestForUser(ctx context.Context, userID uuid.UUID) (*calls.Analysis, error)
}

// InsightMerger persists the segmented transcript into the call's insight blob.
type InsightMerger interface {
	MergeInsights(ctx context.Context, vapiCallID string, patch any) error
}

// PipelineTrigger kicks off the downstream behavior analysis.
type PipelineTrigger interface {
	Process(ctx context.Context, in analysis.CallInput) error
}

// CacheInvalidator drops the cached latest-call view so clients refetch.
type CacheInvalidator interface {
	Invalidate(ctx context.Context, userID uuid.UUID) error
}

// Config tunes the completion tracker.
type Config struct {
	// PollInterval is how often active sessions check for a new call.
	PollInterval time.Duration
	// MinViewTime is how long a user must stay on the activity-detail
	// view before a call counts as complete without an explicit signal.
	MinViewTime time.Duration
	// SessionTTL expires sessions that stopped signaling.
	SessionTTL time.Duration
	// PipelineTimeout bounds the fire-and-forget analysis run.
	PipelineTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = 2 * time.Second
	}
	if c.MinViewTime <= 0 {
		c.MinViewTime = 10 * time.Second
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = 30 * time.Minute
	}
	if c.PipelineTimeout <= 0 {
		c.PipelineTimeout = 2 * time.Minute
	}
}

// session is one user's watch state. The mobile client drives it with
// view-enter / view-exit / exercise-complete signals; the tracker's poll
// loop reads it every interval.
type session struct {
	userID              uuid.UUID
	viewEnteredAt       time.Time // zero while off the detail view
	viewTime            time.Duration
	exerciseComplete    bool
	lastProcessedCallID string
	lastSignalAt        time.Time
}

// CompletionTracker watches active sessions and runs transcript
// post-processing exactly once per distinct call id.
type CompletionTracker struct {
	source    AnalysisSource
	merger    InsightMerger
	pipeline  PipelineTrigger
	cache     CacheInvalidator
	segmenter *transcript.Segmenter
	metrics   *metrics.AnalysisMetrics
	logger    *logging.Logger
	cfg       Config
	now       func() time.Time

	mu       sync.Mutex
	sessions map[uuid.UUID]*session
}

// New creates a completion tracker. pipeline and cache may be nil.
func New(source AnalysisSource, merger InsightMerger, pipeline PipelineTrigger, cache CacheInvalidator, m *metrics.AnalysisMetrics, logger *logging.Logger, cfg Config) *CompletionTracker {
	cfg.applyDefaults()
	if logger == nil {
		logger = logging.Default()
	}
	return &CompletionTracker{
		source:    source,
		merger:    merger,
		pipeline:  pipeline,
		cache:     cache,
		segmenter: transcript.NewSegmenter(),
		metrics:   m,
		logger:    logger.WithComponent("completion_tracker"),
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*session),
	}
}

// ViewEnter starts (or resumes) the detail-view timer for a user.
func (t *CompletionTracker) ViewEnter(userID uuid.UUID) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.ensureSessionLocked(userID, now)
	if s.viewEnteredAt.IsZero() {
		s.viewEnteredAt = now
	}
	s.lastSignalAt = now
}

// ViewExit stops the detail-view timer, banking the elapsed time.
func (t *CompletionTracker) ViewExit(userID uuid.UUID) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	s, ok := t.sessions[userID]
	if !ok {
		return
	}
	if !s.viewEnteredAt.IsZero() {
		s.viewTime += now.Sub(s.viewEnteredAt)
		s.viewEnteredAt = time.Time{}
	}
	s.lastSignalAt = now
}

// ExerciseComplete records the explicit completion signal from the UI.
func (t *CompletionTracker) ExerciseComplete(userID uuid.UUID) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.ensureSessionLocked(userID, now)
	s.exerciseComplete = true
	s.lastSignalAt = now
}

// EndSession drops a user's watch session entirely.
func (t *CompletionTracker) EndSession(userID uuid.UUID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, userID)
}

func (t *CompletionTracker) ensureSessionLocked(userID uuid.UUID, now time.Time) *session {
	s, ok := t.sessions[userID]
	if !ok {
		s = &session{userID: userID, lastSignalAt: now}
		t.sessions[userID] = s
	}
	return s
}

// Start runs the poll loop until ctx is cancelled.
func (t *CompletionTracker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(t.cfg.PollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.PollOnce(ctx)
			}
		}
	}()
}

// PollOnce checks every active session once and returns how many calls
// were processed. The loop calls it on each tick; tests call it directly.
func (t *CompletionTracker) PollOnce(ctx context.Context) int {
	now := t.now()

	t.mu.Lock()
	active := make([]*session, 0, len(t.sessions))
	for userID, s := range t.sessions {
		if now.Sub(s.lastSignalAt) > t.cfg.SessionTTL {
			delete(t.sessions, userID)
			continue
		}
		active = append(active, s)
	}
	t.mu.Unlock()

	processed := 0
	for _, s := range active {
		if t.pollSession(ctx, s) {
			processed++
		}
	}
	return processed
}

func (t *CompletionTracker) pollSession(ctx context.Context, s *session) bool {
	latest, err := t.source.LatestForUser(ctx, s.userID)
	if err != nil {
		if !errors.Is(err, calls.ErrAnalysisNotFound) {
			t.logger.Warn("failed to load latest call analysis", "user_id", s.userID, "error", err)
		}
		return false
	}

	t.mu.Lock()
	alreadyProcessed := latest.VapiCallID == s.lastProcessedCallID
	complete := s.exerciseComplete || t.currentViewTimeLocked(s) >= t.cfg.MinViewTime
	t.mu.Unlock()

	if alreadyProcessed || !complete {
		return false
	}

	if latest.Transcript == "" {
		// Nothing to post-process; record the id so polling moves on.
		t.markProcessed(s, latest.VapiCallID)
		return false
	}

	seg := t.segmenter.Segment(latest.Transcript)
	t.metrics.ObserveSegmented(seg.ProcessingMethod)

	if err := t.merger.MergeInsights(ctx, latest.VapiCallID, map[string]any{
		"processed_transcript": seg,
	}); err != nil {
		// Marker stays unset so a later poll retries.
		t.logger.Error("failed to persist segmented transcript", "vapi_call_id", latest.VapiCallID, "error", err)
		return false
	}

	t.markProcessed(s, latest.VapiCallID)
	t.logger.Info("processed completed call", "user_id", s.userID, "vapi_call_id", latest.VapiCallID, "method", seg.ProcessingMethod)

	t.triggerPipeline(latest)
	t.invalidateCache(ctx, s.userID)
	return true
}

func (t *CompletionTracker) markProcessed(s *session, vapiCallID string) {
	t.mu.Lock()
	s.lastProcessedCallID = vapiCallID
	s.exerciseComplete = false
	s.viewTime = 0
	if !s.viewEnteredAt.IsZero() {
		s.viewEnteredAt = t.now()
	}
	t.mu.Unlock()
}

func (t *CompletionTracker) currentViewTimeLocked(s *session) time.Duration {
	total := s.viewTime
	if !s.viewEnteredAt.IsZero() {
		total += t.now().Sub(s.viewEnteredAt)
	}
	return total
}

func (t *CompletionTracker) triggerPipeline(latest *calls.Analysis) {
	if t.pipeline == nil {
		return
	}
	in := analysis.CallInput{
		UserID:     latest.UserID,
		VapiCallID: latest.VapiCallID,
		Transcript: latest.Transcript,
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), t.cfg.PipelineTimeout)
		defer cancel()
		if err := t.pipeline.Process(ctx, in); err != nil {
			t.logger.Error("behavior analysis failed", "vapi_call_id", in.VapiCallID, "error", err)
		}
	}()
}

func (t *CompletionTracker) invalidateCache(ctx context.Context, userID uuid.UUID) {
	if t.cache == nil {
		return
	}
	if err := t.cache.Invalidate(ctx, userID); err != nil {
		t.logger.Warn("failed to invalidate latest-call cache", "user_id", userID, "error", err)
	}
}
