// The analysis-worker binary consumes the async analysis jobs published
// after each call: behavior-metric scoring and system-prompt evolution.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/bolchaal/bolchaal-backend/cmd/mainconfig"
	"github.com/bolchaal/bolchaal-backend/internal/analysis"
	"github.com/bolchaal/bolchaal-backend/internal/calls"
	appconfig "github.com/bolchaal/bolchaal-backend/internal/config"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bolchaal analysis worker", "env", cfg.Env, "workers", cfg.WorkerCount)

	if cfg.AnalysisQueueURL == "" {
		logger.Error("ANALYSIS_QUEUE_URL is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	analysisStore := calls.NewAnalysisStore(pool)
	usersStore := users.NewStore(pool)
	analysisMetrics := metrics.NewAnalysisMetrics(nil)

	var extractor *analysis.Extractor
	if cfg.GeminiAPIKey != "" {
		llm, err := analysis.NewGeminiClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			logger.Error("failed to create gemini client", "error", err)
			os.Exit(1)
		}
		defer func() { _ = llm.Close() }()
		extractor = analysis.NewExtractor(llm)
	} else {
		logger.Warn("GEMINI_API_KEY not set; jobs will be consumed without scoring")
	}

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}
	queue := analysis.NewSQSQueue(sqs.NewFromConfig(awsCfg), cfg.AnalysisQueueURL)

	worker := analysis.NewWorker(queue, extractor, analysisStore, usersStore, analysisMetrics, logger,
		analysis.WithWorkerCount(cfg.WorkerCount))
	worker.Start(ctx)

	<-ctx.Done()
	logger.Info("shutting down analysis worker...")
	worker.Wait()
	logger.Info("analysis worker stopped")
}
