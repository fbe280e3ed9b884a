package auth

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const bearerPrefix = "Bearer "

// RequireUser verifies the bearer token and injects the caller identity
// into the request context. It performs no authorization beyond identity.
func RequireUser(m *Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
				unauthorized(w, "missing bearer token")
				return
			}

			claims, err := m.Verify(strings.TrimPrefix(raw, bearerPrefix), time.Now())
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				unauthorized(w, "invalid token")
				return
			}

			ctx := WithIdentity(r.Context(), userID, claims.PhoneNumber)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
