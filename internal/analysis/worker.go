package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// MetricsWriter stores the behavior-score blob produced by the async stage.
type MetricsWriter interface {
	SetPerformanceMetrics(ctx context.Context, vapiCallID string, metrics any) error
}

// SummaryWriter carries the evolved prompt context into the user profile
// so the next scheduled call can reference it.
type SummaryWriter interface {
	SetLastConversationSummary(ctx context.Context, id uuid.UUID, summary string) error
}

type workerConfig struct {
	workers          int
	receiveBatchSize int
	receiveWaitSecs  int
}

// WorkerOption tunes the queue consumer.
type WorkerOption func(*workerConfig)

// WithWorkerCount sets the number of consumer goroutines.
func WithWorkerCount(n int) WorkerOption {
	return func(c *workerConfig) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithReceiveBatchSize sets how many messages one poll may claim.
func WithReceiveBatchSize(n int) WorkerOption {
	return func(c *workerConfig) {
		if n > 0 {
			c.receiveBatchSize = n
		}
	}
}

// Worker consumes the async analysis jobs published by the Pipeline.
type Worker struct {
	queue     Queue
	extractor *Extractor
	writer    MetricsWriter
	summaries SummaryWriter
	metrics   *metrics.AnalysisMetrics
	logger    *logging.Logger
	cfg       workerConfig
	wg        sync.WaitGroup
}

// NewWorker builds a queue consumer for the behavior-score and
// prompt-evolution jobs.
func NewWorker(queue Queue, extractor *Extractor, writer MetricsWriter, summaries SummaryWriter, m *metrics.AnalysisMetrics, logger *logging.Logger, opts ...WorkerOption) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	cfg := workerConfig{
		workers:          2,
		receiveBatchSize: 5,
		receiveWaitSecs:  10,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Worker{
		queue:     queue,
		extractor: extractor,
		writer:    writer,
		summaries: summaries,
		metrics:   m,
		logger:    logger.WithComponent("analysis_worker"),
		cfg:       cfg,
	}
}

// Start launches worker goroutines until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	for i := 0; i < w.cfg.workers; i++ {
		w.wg.Add(1)
		go w.run(ctx, i+1)
	}
}

// Wait blocks until all worker goroutines exit.
func (w *Worker) Wait() {
	w.wg.Wait()
}

func (w *Worker) run(ctx context.Context, workerID int) {
	defer w.wg.Done()
	w.logger.Debug("analysis worker started", "worker_id", workerID)

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			w.logger.Debug("analysis worker stopping", "worker_id", workerID)
			return
		default:
		}

		messages, err := w.queue.Receive(ctx, w.cfg.receiveBatchSize, w.cfg.receiveWaitSecs)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			w.logger.Error("failed to receive analysis jobs", "error", err, "worker_id", workerID)
			time.Sleep(backoff)
			if backoff < 5*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		for _, msg := range messages {
			w.handleMessage(ctx, msg)
		}
	}
}

func (w *Worker) handleMessage(ctx context.Context, msg Message) {
	var payload queuePayload
	if err := json.Unmarshal([]byte(msg.Body), &payload); err != nil {
		w.logger.Error("failed to decode analysis job", "error", err)
		w.deleteMessage(context.Background(), msg.ReceiptHandle)
		return
	}

	err := w.process(ctx, payload)
	if err != nil {
		w.logger.Error("analysis job failed", "job_id", payload.ID, "kind", string(payload.Kind), "error", err)
		w.metrics.ObserveStage(string(payload.Kind), "error")
		// Leave the message on the queue so the visibility timeout retries it.
		return
	}

	w.metrics.ObserveStage(string(payload.Kind), "ok")
	w.deleteMessage(ctx, msg.ReceiptHandle)
}

func (w *Worker) process(ctx context.Context, payload queuePayload) error {
	switch payload.Kind {
	case jobTypeBehaviorScore:
		return w.scoreBehavior(ctx, payload)
	case jobTypePromptEvolution:
		return w.evolvePrompt(ctx, payload)
	default:
		w.logger.Warn("dropping analysis job with unknown kind", "job_id", payload.ID, "kind", string(payload.Kind))
		return nil
	}
}

func (w *Worker) scoreBehavior(ctx context.Context, payload queuePayload) error {
	if w.extractor == nil {
		return nil
	}
	scores, err := w.extractor.ScoreBehavior(ctx, payload.Transcript)
	if err != nil {
		return err
	}
	if err := w.writer.SetPerformanceMetrics(ctx, payload.VapiCallID, scores); err != nil {
		return fmt.Errorf("analysis: persist behavior metrics: %w", err)
	}
	return nil
}

func (w *Worker) evolvePrompt(ctx context.Context, payload queuePayload) error {
	if w.extractor == nil || w.summaries == nil {
		return nil
	}
	userID, err := uuid.Parse(payload.UserID)
	if err != nil {
		w.logger.Warn("dropping prompt evolution job with bad user id", "job_id", payload.ID, "user_id", payload.UserID)
		return nil
	}
	summary, err := w.extractor.EvolvePrompt(ctx, payload.Transcript)
	if err != nil {
		return err
	}
	if summary == "" {
		return nil
	}
	if err := w.summaries.SetLastConversationSummary(ctx, userID, summary); err != nil {
		return fmt.Errorf("analysis: persist conversation summary: %w", err)
	}
	return nil
}

func (w *Worker) deleteMessage(ctx context.Context, receiptHandle string) {
	if err := w.queue.Delete(ctx, receiptHandle); err != nil {
		w.logger.Error("failed to delete analysis job", "error", err)
	}
}
