package calls

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/auth"
	"github.com/bolchaal/bolchaal-backend/internal/cache"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// GateChecker reports whether a user may place another call this week.
type GateChecker interface {
	StatusFor(ctx context.Context, profile *users.Profile) (usage.Status, error)
}

// ProfileReader loads profiles for gate checks.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.Profile, error)
}

// LatestCache is the read-side cache for the latest-call view.
type LatestCache interface {
	Get(ctx context.Context, userID uuid.UUID) (*cache.LatestCallView, error)
	Set(ctx context.Context, userID uuid.UUID, view *cache.LatestCallView) error
}

// Handler exposes the scheduled-call and call-history endpoints.
type Handler struct {
	store    *Store
	analyses *AnalysisStore
	profiles ProfileReader
	gate     GateChecker
	cache    LatestCache
	logger   *logging.Logger
}

// NewHandler creates the calls HTTP handler. cache may be nil.
func NewHandler(store *Store, analyses *AnalysisStore, profiles ProfileReader, gate GateChecker, latestCache LatestCache, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:    store,
		analyses: analyses,
		profiles: profiles,
		gate:     gate,
		cache:    latestCache,
		logger:   logger,
	}
}

type scheduleCallRequest struct {
	ScheduledTime time.Time  `json:"scheduled_time"`
	ActivityID    *uuid.UUID `json:"activity_id,omitempty"`
}

// Schedule handles POST /calls.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}
	phone, err := auth.PhoneNumber(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	var req scheduleCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ScheduledTime.IsZero() {
		writeError(w, http.StatusBadRequest, "scheduled_time is required")
		return
	}
	if req.ScheduledTime.Before(time.Now().Add(-time.Minute)) {
		writeError(w, http.StatusBadRequest, "scheduled_time must be in the future")
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile for scheduling", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not schedule call")
		return
	}

	status, err := h.gate.StatusFor(r.Context(), profile)
	if err != nil {
		h.logger.Error("usage gate failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not schedule call")
		return
	}
	if !status.HasMinutes {
		writeJSON(w, http.StatusPaymentRequired, map[string]any{
			"error":         "weekly practice minutes used up",
			"needs_upgrade": status.NeedsUpgrade,
			"usage":         status,
		})
		return
	}

	call := &ScheduledCall{
		UserID:        userID,
		PhoneNumber:   phone,
		ActivityID:    req.ActivityID,
		ScheduledTime: req.ScheduledTime.UTC(),
	}
	if err := h.store.Create(r.Context(), call); err != nil {
		h.logger.Error("failed to create scheduled call", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not schedule call")
		return
	}

	writeJSON(w, http.StatusCreated, scheduledCallResponse(call))
}

// List handles GET /calls.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	items, err := h.store.ListByUser(r.Context(), userID, 50)
	if err != nil {
		h.logger.Error("failed to list scheduled calls", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load calls")
		return
	}

	out := make([]map[string]any, 0, len(items))
	for i := range items {
		out = append(out, scheduledCallResponse(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"calls": out})
}

// Cancel handles DELETE /calls/{callID}.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	callID, err := uuid.Parse(chi.URLParam(r, "callID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid call id")
		return
	}

	switch err := h.store.Cancel(r.Context(), callID, userID); {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]string{"status": StatusCancelled})
	case errors.Is(err, ErrNotPending):
		writeError(w, http.StatusConflict, "call is no longer pending")
	default:
		h.logger.Error("failed to cancel call", "call_id", callID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not cancel call")
	}
}

// Latest handles GET /calls/latest. It serves the cached view when fresh
// and falls back to the datastore on a miss.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	if h.cache != nil {
		if view, err := h.cache.Get(r.Context(), userID); err == nil && view != nil {
			writeJSON(w, http.StatusOK, view)
			return
		}
	}

	latest, err := h.analyses.LatestForUser(r.Context(), userID)
	if errors.Is(err, ErrAnalysisNotFound) {
		writeError(w, http.StatusNotFound, "no calls yet")
		return
	}
	if err != nil {
		h.logger.Error("failed to load latest analysis", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load latest call")
		return
	}

	view := latestCallView(latest)
	if h.cache != nil {
		if err := h.cache.Set(r.Context(), userID, view); err != nil {
			h.logger.Warn("failed to cache latest call", "user_id", userID, "error", err)
		}
	}
	writeJSON(w, http.StatusOK, view)
}

// History handles GET /calls/analyses.
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	items, err := h.analyses.ListByUser(r.Context(), userID, 50)
	if err != nil {
		h.logger.Error("failed to list analyses", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load call history")
		return
	}

	out := make([]*cache.LatestCallView, 0, len(items))
	for i := range items {
		out = append(out, latestCallView(&items[i]))
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": out})
}

func scheduledCallResponse(c *ScheduledCall) map[string]any {
	return map[string]any{
		"id":             c.ID,
		"activity_id":    c.ActivityID,
		"scheduled_time": c.ScheduledTime,
		"status":         c.Status,
		"call_attempts":  c.CallAttempts,
		"last_error":     c.LastError,
	}
}

func latestCallView(a *Analysis) *cache.LatestCallView {
	return &cache.LatestCallView{
		VapiCallID:    a.VapiCallID,
		CallStatus:    a.CallStatus,
		CallDuration:  a.CallDuration,
		Transcript:    a.Transcript,
		Insights:      a.ExtractedInsights,
		Sentiment:     a.SentimentAnalysis,
		Metrics:       a.PerformanceMetrics,
		CallStartedAt: a.CallStartedAt,
		CallEndedAt:   a.CallEndedAt,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
