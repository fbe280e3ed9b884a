package usage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/auth"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// ProfileReader loads the profile the gate computes against.
type ProfileReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*users.Profile, error)
}

// Handler exposes the weekly usage status endpoint.
type Handler struct {
	gate     *Gate
	profiles ProfileReader
	logger   *logging.Logger
}

// NewHandler creates the usage HTTP handler.
func NewHandler(gate *Gate, profiles ProfileReader, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{gate: gate, profiles: profiles, logger: logger}
}

// Subscription handles GET /me/subscription.
func (h *Handler) Subscription(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	profile, err := h.profiles.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to load profile for usage", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load subscription status")
		return
	}

	status, err := h.gate.StatusFor(r.Context(), profile)
	if err != nil {
		h.logger.Error("usage computation failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load subscription status")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
