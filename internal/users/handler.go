package users

import (
	"encoding/json"
	"errors"
	"net/http"

	auth "github.com/bolchaal/bolchaal-backend/internal/auth/authctx"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// Handler exposes the profile endpoints.
type Handler struct {
	store  *Store
	logger *logging.Logger
}

// NewHandler creates the users HTTP handler.
func NewHandler(store *Store, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{store: store, logger: logger}
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	profile, err := h.store.GetByID(r.Context(), userID)
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(profile))
}

type onboardingRequest struct {
	FullName         string `json:"full_name"`
	Language         string `json:"language"`
	ProficiencyLevel string `json:"proficiency_level"`
}

// CompleteOnboarding handles PUT /me/onboarding.
func (h *Handler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	userID, err := auth.UserID(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "not signed in")
		return
	}

	var req onboardingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.FullName == "" {
		writeError(w, http.StatusBadRequest, "full_name is required")
		return
	}
	if req.Language == "" {
		req.Language = "hindi"
	}
	if req.ProficiencyLevel == "" {
		req.ProficiencyLevel = "beginner"
	}

	if err := h.store.UpdateOnboarding(r.Context(), userID, req.FullName, req.Language, req.ProficiencyLevel); err != nil {
		h.logger.Error("failed to update onboarding", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not save profile")
		return
	}

	profile, err := h.store.GetByID(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to reload profile", "user_id", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "could not load profile")
		return
	}
	writeJSON(w, http.StatusOK, profileResponse(profile))
}

func profileResponse(p *Profile) map[string]any {
	return map[string]any{
		"id":                   p.ID,
		"phone_number":         p.PhoneNumber,
		"full_name":            p.FullName,
		"language":             p.Language,
		"proficiency_level":    p.ProficiencyLevel,
		"onboarding_completed": p.OnboardingCompleted,
		"subscription_tier":    p.SubscriptionTier,
		"trial_expires_at":     p.TrialExpiresAt,
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
