// Package router assembles the HTTP surface of the API process.
package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/bolchaal/bolchaal-backend/internal/activities"
	"github.com/bolchaal/bolchaal-backend/internal/auth"
	"github.com/bolchaal/bolchaal-backend/internal/calls"
	httpmiddleware "github.com/bolchaal/bolchaal-backend/internal/http/middleware"
	"github.com/bolchaal/bolchaal-backend/internal/payments"
	"github.com/bolchaal/bolchaal-backend/internal/tracker"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/internal/voice"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// Config holds router configuration.
type Config struct {
	Logger *logging.Logger

	Tokens          *auth.Manager
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	UsageHandler    *usage.Handler
	CallsHandler    *calls.Handler
	ActivityHandler *activities.Handler
	TrackerHandler  *tracker.Handler
	BillingHandler  *payments.Handler
	StripeWebhook   *payments.WebhookHandler
	VapiWebhook     *voice.WebhookHandler

	MetricsHandler     http.Handler
	CORSAllowedOrigins []string

	// OTPRequestsPerMinute caps unauthenticated code requests per IP.
	OTPRequestsPerMinute float64
}

// New creates a Chi router with all routes configured.
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	// Public endpoints: health, metrics, sign-in, Stripe webhook.
	r.Group(func(public chi.Router) {
		public.Get("/healthz", healthCheck)
		if cfg.MetricsHandler != nil {
			public.Handle("/metrics", cfg.MetricsHandler)
		}

		otpRate := cfg.OTPRequestsPerMinute
		if otpRate <= 0 {
			otpRate = 10
		}
		public.Route("/auth", func(r chi.Router) {
			r.Use(httpmiddleware.RateLimit(otpRate/60, int(otpRate)))
			r.Post("/request-code", cfg.AuthHandler.RequestCode)
			r.Post("/verify", cfg.AuthHandler.VerifyCode)
		})

		if cfg.StripeWebhook != nil {
			public.Post("/webhooks/stripe", cfg.StripeWebhook.Handle)
		}
		if cfg.VapiWebhook != nil {
			public.Post("/webhooks/vapi", cfg.VapiWebhook.Handle)
		}
	})

	// Authenticated API.
	r.Group(func(private chi.Router) {
		private.Use(auth.RequireUser(cfg.Tokens))

		private.Get("/me", cfg.UsersHandler.Me)
		private.Put("/me/onboarding", cfg.UsersHandler.CompleteOnboarding)
		private.Get("/me/subscription", cfg.UsageHandler.Subscription)

		private.Route("/calls", func(r chi.Router) {
			r.Post("/", cfg.CallsHandler.Schedule)
			r.Get("/", cfg.CallsHandler.List)
			r.Get("/latest", cfg.CallsHandler.Latest)
			r.Get("/analyses", cfg.CallsHandler.History)
			r.Delete("/{callID}", cfg.CallsHandler.Cancel)
		})

		if cfg.ActivityHandler != nil {
			private.Route("/activities", func(r chi.Router) {
				r.Get("/today", cfg.ActivityHandler.Today)
				r.Get("/{activityID}", cfg.ActivityHandler.Get)
			})
		}

		private.Route("/tracker", func(r chi.Router) {
			r.Post("/view-enter", cfg.TrackerHandler.ViewEnter)
			r.Post("/view-exit", cfg.TrackerHandler.ViewExit)
			r.Post("/exercise-complete", cfg.TrackerHandler.ExerciseComplete)
			r.Post("/end-session", cfg.TrackerHandler.EndSession)
		})

		if cfg.BillingHandler != nil {
			private.Route("/billing", func(r chi.Router) {
				r.Post("/checkout", cfg.BillingHandler.CreateCheckout)
				r.Post("/portal", cfg.BillingHandler.OpenPortal)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
