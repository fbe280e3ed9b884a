package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/bolchaal/bolchaal-backend/internal/observability/metrics"
	"github.com/bolchaal/bolchaal-backend/pkg/logging"
)

// AnalysisWriter is the slice of the call-analysis store the pipeline writes to.
type AnalysisWriter interface {
	SetSentiment(ctx context.Context, vapiCallID string, sentiment any) error
	MergeInsights(ctx context.Context, vapiCallID string, patch any) error
}

// CallInput is one completed call ready for analysis.
type CallInput struct {
	UserID     uuid.UUID
	VapiCallID string
	Transcript string
}

// Pipeline runs the synchronous analysis stages on a completed call and
// fans the slow LLM stages out to the queue. Transcript segmentation is
// the tracker's job; the pipeline starts from the raw transcript.
type Pipeline struct {
	writer    AnalysisWriter
	extractor *Extractor
	queue     Queue
	metrics   *metrics.AnalysisMetrics
	logger    *logging.Logger
	now       func() time.Time
}

// NewPipeline wires the analysis stages together. extractor may be nil
// when no LLM is configured; the pipeline then skips insight extraction.
func NewPipeline(writer AnalysisWriter, extractor *Extractor, queue Queue, m *metrics.AnalysisMetrics, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Default()
	}
	return &Pipeline{
		writer:    writer,
		extractor: extractor,
		queue:     queue,
		metrics:   m,
		logger:    logger.WithComponent("analysis_pipeline"),
		now:       time.Now,
	}
}

// Process scores sentiment, extracts insights, and publishes the async
// scoring jobs. Each stage is best-effort: a failed stage is logged and
// the rest still run, so one flaky dependency does not lose the whole
// report.
func (p *Pipeline) Process(ctx context.Context, in CallInput) error {
	if in.VapiCallID == "" {
		return fmt.Errorf("analysis: vapi call id required")
	}
	if in.Transcript == "" {
		return fmt.Errorf("analysis: transcript required")
	}

	var firstErr error

	sentiment := AnalyzeSentiment(in.Transcript)
	if err := p.writer.SetSentiment(ctx, in.VapiCallID, sentiment); err != nil {
		p.recordStage("sentiment", err)
		firstErr = err
	} else {
		p.recordStage("sentiment", nil)
	}

	if p.extractor != nil {
		start := p.now()
		report, err := p.extractor.ExtractInsights(ctx, in.Transcript)
		p.metrics.ObserveStageLatency("insights", p.now().Sub(start).Seconds())
		if err == nil {
			err = p.writer.MergeInsights(ctx, in.VapiCallID, map[string]any{
				"performance_analysis":  report.PerformanceAnalysis,
				"areas_for_improvement": report.AreasForImprovement,
				"recommendations":       report.Recommendations,
				"conversation_summary":  report.ConversationSummary,
				"confidence_score":      report.ConfidenceScore,
			})
		}
		p.recordStage("insights", err)
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if err := p.publishAsyncJobs(ctx, in); err != nil && firstErr == nil {
		firstErr = err
	}

	return firstErr
}

func (p *Pipeline) publishAsyncJobs(ctx context.Context, in CallInput) error {
	if p.queue == nil {
		return nil
	}

	var firstErr error
	for _, kind := range []jobType{jobTypeBehaviorScore, jobTypePromptEvolution} {
		payload, body, err := encodePayload(queuePayload{
			Kind:       kind,
			UserID:     in.UserID.String(),
			VapiCallID: in.VapiCallID,
			Transcript: in.Transcript,
		})
		if err == nil {
			err = p.queue.Send(ctx, body)
		}
		if err != nil {
			p.logger.Error("failed to publish analysis job", "kind", string(kind), "vapi_call_id", in.VapiCallID, "error", err)
			p.metrics.ObserveStage("publish_"+string(kind), "error")
			if firstErr == nil {
				firstErr = fmt.Errorf("analysis: publish %s job: %w", kind, err)
			}
			continue
		}
		p.logger.Debug("published analysis job", "kind", string(kind), "job_id", payload.ID)
		p.metrics.ObserveStage("publish_"+string(kind), "ok")
	}
	return firstErr
}

func (p *Pipeline) recordStage(stage string, err error) {
	if err != nil {
		p.logger.Error("analysis stage failed", "stage", stage, "error", err)
		p.metrics.ObserveStage(stage, "error")
		return
	}
	p.metrics.ObserveStage(stage, "ok")
}
