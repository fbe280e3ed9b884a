package tracker

import (
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/auth"
)

// Handler receives the UI signals that drive watch sessions.
type Handler struct {
	tracker *CompletionTracker
}

// NewHandler creates the tracker signal handler.
func NewHandler(tracker *CompletionTracker) *Handler {
	return &Handler{tracker: tracker}
}

// ViewEnter handles POST /tracker/view-enter.
func (h *Handler) ViewEnter(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, h.tracker.ViewEnter)
}

// ViewExit handles POST /tracker/view-exit.
func (h *Handler) ViewExit(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, h.tracker.ViewExit)
}

// ExerciseComplete handles POST /tracker/exercise-complete.
func (h *Handler) ExerciseComplete(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, h.tracker.ExerciseComplete)
}

// EndSession handles POST /tracker/end-session.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	h.signal(w, r, h.tracker.EndSession)
}

func (h *Handler) signal(w http.ResponseWriter, r *http.Request, fn func(userID uuid.UUID)) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]string{"error": "not signed in"})
		return
	}
	fn(userID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
