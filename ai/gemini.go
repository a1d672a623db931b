package ai

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

const defaultTemperature = 0.7

type GeminiClient struct {
	client *genai.Client
	model  string
	config *genai.GenerateContentConfig
	logger *zap.Logger
}

func NewGemini(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GeminiClient, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiClient{
		client: client,
		model:  model,
		config: &genai.GenerateContentConfig{Temperature: genai.Ptr[float32](defaultTemperature)},
		logger: logger,
	}, nil
}

func (g *GeminiClient) Name() string  { return "gemini" }
func (g *GeminiClient) Model() string { return g.model }

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), g.config)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (g *GeminiClient) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	ch := make(chan Chunk)
	go func() {
		defer close(ch)
		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), g.config) {
			if err != nil {
				g.logger.Warn("gemini stream ended with error", zap.Error(err))
				select {
				case ch <- Chunk{Err: fmt.Errorf("gemini stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			text := resp.Text()
			if text == "" {
				continue
			}
			select {
			case ch <- Chunk{Text: text}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}
