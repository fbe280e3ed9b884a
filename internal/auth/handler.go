package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// Handler exposes the OTP sign-in endpoints.
type Handler struct {
	service *Service
	logger  *logging.Logger
}

// NewHandler creates the auth HTTP handler.
func NewHandler(service *Service, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{service: service, logger: logger}
}

type requestCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
}

// RequestCode handles POST /auth/request-code.
func (h *Handler) RequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.service.RequestCode(r.Context(), req.PhoneNumber)
	switch {
	case err == nil:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
	case errors.Is(err, ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "phone number must be in international format, e.g. +9198xxxxxxxx")
	case errors.Is(err, ErrTooManyRequests):
		writeError(w, http.StatusTooManyRequests, "too many codes requested, try again later")
	default:
		h.logger.Error("otp request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "could not send verification code")
	}
}

type verifyCodeRequest struct {
	PhoneNumber string `json:"phone_number"`
	Code        string `json:"code"`
}

// VerifyCode handles POST /auth/verify.
func (h *Handler) VerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.VerifyCode(r.Context(), req.PhoneNumber, req.Code)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]any{
			"token": result.Token,
			"user": map[string]any{
				"id":                   result.Profile.ID,
				"phone_number":         result.Profile.PhoneNumber,
				"full_name":            result.Profile.FullName,
				"onboarding_completed": result.Profile.OnboardingCompleted,
				"subscription_tier":    result.Profile.SubscriptionTier,
			},
		})
	case errors.Is(err, ErrInvalidPhone):
		writeError(w, http.StatusBadRequest, "invalid phone number")
	case errors.Is(err, ErrInvalidCode):
		writeError(w, http.StatusUnauthorized, "invalid or expired code")
	default:
		h.logger.Error("otp verify failed", "error", err)
		writeError(w, http.StatusInternalServerError, "verification failed")
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
