package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string
	DatabaseURL   string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	JWTSecret     string
	JWTTTL        time.Duration
	OTPLength     int
	OTPTTL        time.Duration
	OTPMaxPerHour int

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string

	VapiAPIKey        string
	VapiAssistantID   string
	VapiPhoneNumberID string
	VapiBaseURL       string
	VapiWebhookSecret string

	GeminiAPIKey  string
	GeminiModelID string

	StripeSecretKey     string
	StripePriceID       string
	StripeWebhookSecret string
	StripePortalReturn  string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	AnalysisQueueURL    string
	UseMemoryQueue      bool
	WorkerCount         int

	SchedulerInterval  time.Duration
	SchedulerLookahead time.Duration
	StuckCallTimeout   time.Duration
	TerminalRetention  time.Duration
	MaxCallAttempts    int

	FollowUpInterval      time.Duration
	FollowUpWindow        time.Duration
	FollowUpFlagRetention time.Duration

	FreeWeeklyMinutes int

	TrackerPollInterval time.Duration
	MinViewTime         time.Duration
	SessionTTL          time.Duration
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		DatabaseURL:   getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		JWTSecret:     getEnv("JWT_SECRET", ""),
		JWTTTL:        getEnvAsDuration("JWT_TTL", 30*24*time.Hour),
		OTPLength:     getEnvAsInt("OTP_LENGTH", 6),
		OTPTTL:        getEnvAsDuration("OTP_TTL", 5*time.Minute),
		OTPMaxPerHour: getEnvAsInt("OTP_MAX_PER_HOUR", 5),

		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),

		VapiAPIKey:        getEnv("VAPI_API_KEY", ""),
		VapiAssistantID:   getEnv("VAPI_ASSISTANT_ID", ""),
		VapiPhoneNumberID: getEnv("VAPI_PHONE_NUMBER_ID", ""),
		VapiBaseURL:       getEnv("VAPI_BASE_URL", ""),
		VapiWebhookSecret: getEnv("VAPI_WEBHOOK_SECRET", ""),

		GeminiAPIKey:  getEnv("GEMINI_API_KEY", ""),
		GeminiModelID: getEnv("GEMINI_MODEL_ID", "gemini-2.5-flash"),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripePriceID:       getEnv("STRIPE_PRICE_ID", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripePortalReturn:  getEnv("STRIPE_PORTAL_RETURN_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		AnalysisQueueURL:    getEnv("ANALYSIS_QUEUE_URL", ""),
		UseMemoryQueue:      getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:         getEnvAsInt("WORKER_COUNT", 2),

		SchedulerInterval:  getEnvAsDuration("SCHEDULER_INTERVAL", time.Minute),
		SchedulerLookahead: getEnvAsDuration("SCHEDULER_LOOKAHEAD", 5*time.Minute),
		StuckCallTimeout:   getEnvAsDuration("STUCK_CALL_TIMEOUT", 10*time.Minute),
		TerminalRetention:  getEnvAsDuration("TERMINAL_RETENTION", 24*time.Hour),
		MaxCallAttempts:    getEnvAsInt("MAX_CALL_ATTEMPTS", 3),

		FollowUpInterval:      getEnvAsDuration("FOLLOWUP_INTERVAL", 5*time.Minute),
		FollowUpWindow:        getEnvAsDuration("FOLLOWUP_WINDOW", 30*time.Minute),
		FollowUpFlagRetention: getEnvAsDuration("FOLLOWUP_FLAG_RETENTION", 7*24*time.Hour),

		FreeWeeklyMinutes: getEnvAsInt("FREE_WEEKLY_MINUTES", 25),

		TrackerPollInterval: getEnvAsDuration("TRACKER_POLL_INTERVAL", 2*time.Second),
		MinViewTime:         getEnvAsDuration("TRACKER_MIN_VIEW_TIME", 10*time.Second),
		SessionTTL:          getEnvAsDuration("TRACKER_SESSION_TTL", 30*time.Minute),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
