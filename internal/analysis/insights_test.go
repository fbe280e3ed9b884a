package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	reply string
	err   error

	lastSystem string
	lastUser   string
}

func (s *stubLLM) Complete(_ context.Context, systemPrompt, userPrompt string) (string, error) {
	s.lastSystem = systemPrompt
	s.lastUser = userPrompt
	return s.reply, s.err
}

func TestExtractInsightsParsesFencedJSON(t *testing.T) {
	llm := &stubLLM{reply: "```json\n{\"performance_analysis\":\"solid\",\"areas_for_improvement\":[\"verb tenses\"],\"recommendations\":[\"practice past tense\"],\"conversation_summary\":\"Talked about food.\",\"confidence_score\":0.8}\n```"}
	extractor := NewExtractor(llm)

	report, err := extractor.ExtractInsights(context.Background(), "User: khana accha tha")
	require.NoError(t, err)

	assert.Equal(t, "solid", report.PerformanceAnalysis)
	assert.Equal(t, []string{"verb tenses"}, report.AreasForImprovement)
	assert.Equal(t, "Talked about food.", report.ConversationSummary)
	assert.InDelta(t, 0.8, report.ConfidenceScore, 1e-9)
	assert.Equal(t, "User: khana accha tha", llm.lastUser)
}

func TestExtractInsightsRejectsEmptyTranscript(t *testing.T) {
	extractor := NewExtractor(&stubLLM{})

	_, err := extractor.ExtractInsights(context.Background(), "   ")
	assert.Error(t, err)
}

func TestExtractInsightsWrapsLLMError(t *testing.T) {
	extractor := NewExtractor(&stubLLM{err: errors.New("model overloaded")})

	_, err := extractor.ExtractInsights(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract insights")
}

func TestExtractInsightsRejectsNonJSONReply(t *testing.T) {
	extractor := NewExtractor(&stubLLM{reply: "I cannot do that."})

	_, err := extractor.ExtractInsights(context.Background(), "hello")
	assert.Error(t, err)
}

func TestScoreBehaviorParsesMetrics(t *testing.T) {
	llm := &stubLLM{reply: `{"fluency_score":72,"vocabulary_range":65,"grammar_accuracy":80,"response_latency":"medium","conversation_depth":"moderate","suggested_next_level":"intermediate"}`}
	extractor := NewExtractor(llm)

	scores, err := extractor.ScoreBehavior(context.Background(), "User: namaste")
	require.NoError(t, err)

	assert.InDelta(t, 72, scores.FluencyScore, 1e-9)
	assert.Equal(t, "medium", scores.ResponseLatency)
	assert.Equal(t, "intermediate", scores.SuggestedNextLevel)
}

func TestEvolvePromptTrimsReply(t *testing.T) {
	llm := &stubLLM{reply: "  Learner practiced ordering food. Struggled with numbers. Build on counting next call.  "}
	extractor := NewExtractor(llm)

	summary, err := extractor.EvolvePrompt(context.Background(), "User: ek chai")
	require.NoError(t, err)
	assert.Equal(t, "Learner practiced ordering food. Struggled with numbers. Build on counting next call.", summary)
}
