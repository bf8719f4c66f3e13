// Package llm wraps the Google Gemini API behind a small text-in, text-out
// surface. The model name is a per-call argument so callers can walk a
// fallback chain without rebuilding the client.
package llm

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Client is the completion boundary the pipeline calls through. Implemented
// by GeminiClient in production and by fakes in tests.
type Client interface {
	Generate(ctx context.Context, model string, req Request) (string, error)
}

// Request is one completion call.
type Request struct {
	System string
	Prompt string

	// GoogleSearch enables search grounding so the model can cite live
	// sources instead of answering from training data alone.
	GoogleSearch bool

	Temperature float32
}

// GeminiClient talks to the Gemini API via the official genai SDK.
type GeminiClient struct {
	client *genai.Client
	log    *zap.Logger
}

// NewGemini creates a Gemini client.
func NewGemini(ctx context.Context, apiKey string, log *zap.Logger) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	if log == nil {
		log = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GeminiClient{client: client, log: log}, nil
}

// Generate runs one completion against the named model and returns the
// concatenated text of the response. API errors pass through unwrapped so
// their status codes and bodies stay visible to retry classification.
func (c *GeminiClient) Generate(ctx context.Context, model string, req Request) (string, error) {
	if strings.TrimSpace(model) == "" {
		return "", fmt.Errorf("model name is required")
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = genai.NewContentFromText(req.System, genai.RoleUser)
	}
	if req.Temperature > 0 {
		cfg.Temperature = genai.Ptr(req.Temperature)
	}
	if req.GoogleSearch {
		cfg.Tools = []*genai.Tool{
			{GoogleSearch: &genai.GoogleSearch{}},
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromText(req.Prompt, genai.RoleUser),
	}

	c.log.Debug("gemini call",
		zap.String("model", model),
		zap.Bool("google_search", req.GoogleSearch),
		zap.Int("prompt_len", len(req.Prompt)))

	resp, err := c.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("gemini returned an empty response for model %s", model)
	}

	c.log.Debug("gemini response",
		zap.String("model", model),
		zap.Int("response_len", len(text)))

	return text, nil
}
