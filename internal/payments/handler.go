package payments

import (
	"encoding/json"
	"net/http"

	"github.com/bolchaal/bolchaal-backend/internal/auth"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// Handler exposes the billing endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the billing HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

// CreateCheckout handles POST /billing/checkout.
func (h *Handler) CreateCheckout(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	session, err := h.service.CheckoutForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("checkout session failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not start checkout")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"session_id":    session.SessionID,
		"client_secret": session.ClientSecret,
	})
}

// OpenPortal handles POST /billing/portal.
func (h *Handler) OpenPortal(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	portalURL, err := h.service.PortalForUser(r.Context(), userID)
	if err != nil {
		h.logger.Error("portal session failed", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not open billing portal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": portalURL})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
