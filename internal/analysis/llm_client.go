package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// LLMClient is the prompt-in, text-out contract the pipeline needs. The
// pipeline asks for structured JSON and parses the reply itself.
type LLMClient interface {
	Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// GeminiClient implements LLMClient using Google's Gemini API.
type GeminiClient struct {
	client  *genai.Client
	modelID string
}

// NewGeminiClient creates a Gemini-backed LLM client.
func NewGeminiClient(ctx context.Context, apiKey, modelID string) (*GeminiClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("analysis: gemini api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = "gemini-2.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("analysis: failed to create gemini client: %w", err)
	}

	return &GeminiClient{client: client, modelID: modelID}, nil
}

// Complete sends a single-turn completion request to Gemini.
func (c *GeminiClient) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	model := c.client.GenerativeModel(c.modelID)
	if strings.TrimSpace(systemPrompt) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(systemPrompt))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(userPrompt))
	if err != nil {
		return "", fmt.Errorf("analysis: gemini completion failed: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errors.New("analysis: gemini returned no candidates")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", errors.New("analysis: gemini returned empty content")
	}

	var b strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", errors.New("analysis: gemini returned no text parts")
	}
	return b.String(), nil
}

// Close releases the underlying API client.
func (c *GeminiClient) Close() error {
	return c.client.Close()
}

// stripCodeFences removes a surrounding markdown code fence, which Gemini
// adds even when asked for bare JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
