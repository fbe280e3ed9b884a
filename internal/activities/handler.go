package activities

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// Handler exposes the daily-activity read endpoints.
type Handler struct {
	store  *Store
	logger *logging.Logger
	now    func() time.Time
}

// NewHandler creates the activities HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger, now: time.Now}
}

// Today handles GET /activities/today.
func (h *Handler) Today(w http.ResponseWriter, r *http.Request) {
	act, err := h.store.TodaysActivity(r.Context(), h.now().UTC())
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "no activity scheduled for today")
		return
	}
	if err != nil {
		h.logger.Error("failed to load today's activity", "error", err)
		writeError(w, http.StatusInternalServerError, "could not load activity")
		return
	}
	writeJSON(w, http.StatusOK, activityResponse(act))
}

// Get handles GET /activities/{activityID}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "activityID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid activity id")
		return
	}

	act, err := h.store.GetByID(r.Context(), id)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "activity not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load activity", "activity_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load activity")
		return
	}
	writeJSON(w, http.StatusOK, activityResponse(act))
}

func activityResponse(a *Activity) map[string]any {
	return map[string]any{
		"id":          a.ID,
		"title":       a.Title,
		"topic":       a.Topic,
		"description": a.Description,
		"level":       a.Level,
		"active_on":   a.ActiveOn,
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
