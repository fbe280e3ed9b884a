package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// InsightReport is the structured output of the LLM extraction stage.
type InsightReport struct {
	PerformanceAnalysis string   `json:"performance_analysis"`
	AreasForImprovement []string `json:"areas_for_improvement"`
	Recommendations     []string `json:"recommendations"`
	ConversationSummary string   `json:"conversation_summary"`
	ConfidenceScore     float64  `json:"confidence_score"`
}

// BehaviorMetrics is the structured output of the AI-behavior scoring stage.
type BehaviorMetrics struct {
	FluencyScore       float64 `json:"fluency_score"`
	VocabularyRange    float64 `json:"vocabulary_range"`
	GrammarAccuracy    float64 `json:"grammar_accuracy"`
	ResponseLatency    string  `json:"response_latency"`
	ConversationDepth  string  `json:"conversation_depth"`
	SuggestedNextLevel string  `json:"suggested_next_level"`
}

const insightSystemPrompt = `You are a Hindi language tutor reviewing a practice phone call.
Reply with a single JSON object and nothing else, using exactly these keys:
performance_analysis (string), areas_for_improvement (array of strings),
recommendations (array of strings), conversation_summary (string, 2 sentences,
written to brief the next call's assistant), confidence_score (0..1).`

const behaviorSystemPrompt = `You are scoring a learner's spoken Hindi from a call transcript.
Reply with a single JSON object and nothing else, using exactly these keys:
fluency_score (0..100), vocabulary_range (0..100), grammar_accuracy (0..100),
response_latency (short|medium|long), conversation_depth (shallow|moderate|deep),
suggested_next_level (string).`

const evolutionSystemPrompt = `You brief an AI Hindi tutor before its next practice call with this learner.
Given the last call's transcript, reply with 2-3 plain sentences covering what the
learner practiced, what they struggled with, and what the next call should build on.
No JSON, no markdown.`

// Extractor runs the LLM stages of the pipeline.
type Extractor struct {
	llm LLMClient
}

// NewExtractor creates an insight extractor.
func NewExtractor(llm LLMClient) *Extractor {
	return &Extractor{llm: llm}
}

// ExtractInsights asks the LLM for the structured conversation report.
func (e *Extractor) ExtractInsights(ctx context.Context, transcript string) (*InsightReport, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("analysis: transcript required")
	}
	raw, err := e.llm.Complete(ctx, insightSystemPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("analysis: extract insights: %w", err)
	}

	var report InsightReport
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &report); err != nil {
		return nil, fmt.Errorf("analysis: parse insight report: %w", err)
	}
	return &report, nil
}

// ScoreBehavior asks the LLM for the fluency/behavior metric blob.
func (e *Extractor) ScoreBehavior(ctx context.Context, transcript string) (*BehaviorMetrics, error) {
	if strings.TrimSpace(transcript) == "" {
		return nil, fmt.Errorf("analysis: transcript required")
	}
	raw, err := e.llm.Complete(ctx, behaviorSystemPrompt, transcript)
	if err != nil {
		return nil, fmt.Errorf("analysis: score behavior: %w", err)
	}

	var metrics BehaviorMetrics
	if err := json.Unmarshal([]byte(stripCodeFences(raw)), &metrics); err != nil {
		return nil, fmt.Errorf("analysis: parse behavior metrics: %w", err)
	}
	return &metrics, nil
}

// EvolvePrompt produces the free-text briefing stored on the user profile
// and injected into the next call's assistant variables.
func (e *Extractor) EvolvePrompt(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("analysis: transcript required")
	}
	raw, err := e.llm.Complete(ctx, evolutionSystemPrompt, transcript)
	if err != nil {
		return "", fmt.Errorf("analysis: evolve prompt: %w", err)
	}
	return strings.TrimSpace(stripCodeFences(raw)), nil
}
