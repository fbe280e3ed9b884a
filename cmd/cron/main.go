// The cron binary runs the periodic background jobs: the call scheduler
// (with its janitor sweeps) and the missed-call follow-up worker. Each job
// invocation is stateless; coordination happens through row state in
// Postgres.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-co-op/gocron/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/bolchaal/bolchaal-backend/internal/activities"
	"github.com/bolchaal/bolchaal-backend/internal/calls"
	appconfig "github.com/bolchaal/bolchaal-backend/internal/config"
	"github.com/bolchaal/bolchaal-backend/internal/followup"
	"github.com/bolchaal/bolchaal-backend/internal/messaging"
	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/internal/usage"
	"github.com/bolchaal/bolchaal-backend/internal/users"
	"github.com/bolchaal/bolchaal-backend/internal/voice"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting bolchaal cron runner", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	callStore := calls.NewStore(pool)
	analysisStore := calls.NewAnalysisStore(pool)
	usersStore := users.NewStore(pool)
	activityStore := activities.NewStore(pool)
	messagingStore := messaging.NewStore(pool)

	callMetrics := metrics.NewCallMetrics(nil)
	smsMetrics := metrics.NewSMSMetrics(nil)

	gate := usage.NewGate(analysisStore, cfg.FreeWeeklyMinutes)

	vapiClient, err := voice.NewClient(voice.ClientConfig{
		APIKey:        cfg.VapiAPIKey,
		AssistantID:   cfg.VapiAssistantID,
		PhoneNumberID: cfg.VapiPhoneNumberID,
		BaseURL:       cfg.VapiBaseURL,
		Logger:        logger,
	})
	if err != nil {
		logger.Error("failed to configure voice client", "error", err)
		os.Exit(1)
	}

	scheduler := calls.NewScheduler(callStore, usersStore, activityStore, gate, vapiClient, callMetrics, calls.SchedulerConfig{
		Lookahead:         cfg.SchedulerLookahead,
		StuckTimeout:      cfg.StuckCallTimeout,
		TerminalRetention: cfg.TerminalRetention,
	}, logger)

	smsSender := messaging.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, logger)
	followUps := followup.NewWorker(analysisStore, messagingStore, usersStore, smsSender, smsMetrics, followup.Config{
		Window:        cfg.FollowUpWindow,
		FlagRetention: cfg.FollowUpFlagRetention,
	}, logger)

	runner, err := gocron.NewScheduler()
	if err != nil {
		logger.Error("failed to create job runner", "error", err)
		os.Exit(1)
	}

	_, err = runner.NewJob(
		gocron.DurationJob(cfg.SchedulerInterval),
		gocron.NewTask(func() {
			placed, err := scheduler.RunOnce(ctx)
			if err != nil {
				logger.Error("call scheduler run failed", "error", err)
				return
			}
			if placed > 0 {
				logger.Info("call scheduler run complete", "placed", placed)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to register scheduler job", "error", err)
		os.Exit(1)
	}

	_, err = runner.NewJob(
		gocron.DurationJob(cfg.FollowUpInterval),
		gocron.NewTask(func() {
			sent, err := followUps.ProcessRecent(ctx)
			if err != nil {
				logger.Error("follow-up run failed", "error", err)
				return
			}
			if sent > 0 {
				logger.Info("follow-up run complete", "sent", sent)
			}
		}),
	)
	if err != nil {
		logger.Error("failed to register follow-up job", "error", err)
		os.Exit(1)
	}

	runner.Start()
	logger.Info("cron jobs running",
		"scheduler_interval", cfg.SchedulerInterval,
		"followup_interval", cfg.FollowUpInterval,
	)

	<-ctx.Done()
	logger.Info("shutting down cron runner...")
	if err := runner.Shutdown(); err != nil {
		logger.Error("job runner shutdown failed", "error", err)
	}
	logger.Info("cron runner stopped")
}
