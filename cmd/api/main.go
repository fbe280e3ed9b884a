package main

import (
	"context"
	"crypto/tls"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/bolchaal/bolchaal-backend/cmd/mainconfig"
	"github.com/bolchaal/bolchaal-backend/internal/activities"
	"github.com/bolchaal/bolchaal-backend/internal/analysis"
	"github.com/bolchaal/bolchaal-backend/internal/api/router"
	"github.com/bolchaal/bolchaal-backend/internal/auth"
	"github.com/bolchaal/bolchaal-backend/internal/cache"
	"github.com/bolchaal/bolchaal-backend/internal/calls"
	appconfig "github.com/bolchaal/bolchaal-backend/internal/config"
	"github.com/bolchaal/bolchaal-backend/internal/messaging"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/payments"
	"github.com/bolchaal/bolchaal-backend/internal/tracker"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/internal/voice"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bolchaal API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Stores
	usersStore := users.NewStore(pool)
	otpStore := auth.NewOTPStore(pool)
	callStore := calls.NewStore(pool)
	analysisStore := calls.NewAnalysisStore(pool)
	activityStore := activities.NewStore(pool)

	// Metrics
	callMetrics := metrics.NewCallMetrics(nil)
	analysisMetrics := metrics.NewAnalysisMetrics(nil)

	// Outbound providers
	smsSender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)

	// Auth
	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	if err != nil {
		logger.Error("failed to configure token manager", "error", err)
		os.Exit(1)
	}
	authService := auth.NewService(otpStore, usersStore, smsSender, tokens, logger, auth.ServiceConfig{
		CodeLength: cfg.OTPLength,
		CodeTTL:    cfg.OTPTTL,
		MaxPerHour: cfg.OTPMaxPerHour,
	})

	// Usage gate
	gate := usage.NewGate(analysisStore, cfg.FreeWeeklyMinutes)

	// Redis latest-call cache (optional)
	latestCache := buildLatestCallCache(ctx, cfg, logger)

	// LLM + analysis pipeline
	var extractor *analysis.Extractor
	if cfg.GeminiAPIKey != "" {
		llm, err := analysis.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		extractor = analysis.NewExtractor(llm)
	} else {
		logger.Warn("GEMINI_API_KEY not set; insight extraction disabled")
	}

	queue, inProcessWorker := buildAnalysisQueue(ctx, cfg, extractor, analysisStore, usersStore, analysisMetrics, logger)
	pipeline := analysis.NewPipeline(analysisStore, extractor, queue, analysisMetrics, logger)

	// Completion tracker
	var invalidator tracker.CacheInvalidator
	if latestCache != nil {
		invalidator = latestCache
	}
	completionTracker := tracker.New(analysisStore, analysisStore, pipeline, invalidator, analysisMetrics, logger, tracker.Config{
		PollInterval: cfg.TrackerPollInterval,
		MinViewTime:  cfg.MinViewTime,
		SessionTTL:   cfg.SessionTTL,
	})
	go completionTracker.Start(ctx)

	// Billing
	stripeClient := payments.NewStripeClient(payments.StripeConfig{
		SecretKey: cfg.StripeSecretKey,
		PriceID:   cfg.StripePriceID,
		ReturnURL: cfg.StripePortalReturn,
	}, logger)
	billingService := payments.NewService(usersStore, stripeClient, logger)

	// Handlers
	var handlerCache calls.LatestCache
	if latestCache != nil {
		handlerCache = latestCache
	}
	routerCfg := &router.Config{
		Logger:          logger,
		Tokens:          tokens,
		AuthHandler:     auth.NewHandler(authService, logger),
		UsersHandler:    users.NewHandler(usersStore, logger),
		UsageHandler:    usage.NewHandler(gate, usersStore, logger),
		CallsHandler:    calls.NewHandler(callStore, analysisStore, usersStore, gate, handlerCache, logger),
		ActivityHandler: activities.NewHandler(activityStore, logger),
		TrackerHandler:  tracker.NewHandler(completionTracker),
		BillingHandler:  payments.NewHandler(billingService, logger),
		StripeWebhook:   payments.NewWebhookHandler(cfg.StripeWebhookSecret, usersStore, logger),
		VapiWebhook:     voice.NewWebhookHandler(analysisStore, usersStore, cfg.VapiWebhookSecret, callMetrics, logger),
		MetricsHandler:  promhttp.Handler(),
	}
	r := router.New(routerCfg)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	if inProcessWorker != nil {
		inProcessWorker.Wait()
	}
	logger.Info("server stopped")
}

// buildLatestCallCache wires the optional Redis cache; a missing or
// unreachable Redis degrades to direct DB reads.
func buildLatestCallCache(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *cache.LatestCallCache {
	if cfg.RedisAddr == "" {
		return nil
	}
	opts := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available, latest-call cache disabled", "error", err)
		return nil
	}
	return cache.NewLatestCallCache(client)
}

// buildAnalysisQueue selects the async job transport: SQS in deployment,
// an in-memory queue with an in-process consumer for local development.
func buildAnalysisQueue(ctx context.Context, cfg *appconfig.Config, extractor *analysis.Extractor, analysisStore *calls.AnalysisStore, usersStore *users.Store, m *metrics.AnalysisMetrics, logger *logging.Logger) (analysis.Queue, *analysis.Worker) {
	if cfg.UseMemoryQueue || cfg.AnalysisQueueURL == "" {
		logger.Info("using in-memory analysis queue")
		queue := analysis.NewMemoryQueue(100)
		worker := analysis.NewWorker(queue, extractor, analysisStore, usersStore, m, logger,
			analysis.WithWorkerCount(cfg.WorkerCount))
		worker.Start(ctx)
		return queue, worker
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)
	return analysis.NewSQSQueue(sqsClient, cfg.AnalysisQueueURL), nil
}
