package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type OpenAIClient struct {
	api   *openai.Client
	model string
}

// NewOpenAI builds a chat-completions client. baseURL overrides the API
// endpoint when non-empty.
func NewOpenAI(apiKey, model, baseURL string) *OpenAIClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIClient{api: openai.NewClientWithConfig(cfg), model: model}
}

func (c *OpenAIClient) Name() string  { return "openai" }
func (c *OpenAIClient) Model() string { return c.model }

func (c *OpenAIClient) request(prompt string, stream bool) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: defaultTemperature,
		Stream:      stream,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
}

func (c *OpenAIClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.api.CreateChatCompletion(ctx, c.request(prompt, false))
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

func (c *OpenAIClient) Stream(ctx context.Context, prompt string) (<-chan Chunk, error) {
	stream, err := c.api.CreateChatCompletionStream(ctx, c.request(prompt, true))
	if err != nil {
		return nil, fmt.Errorf("openai chat stream: %w", err)
	}

	ch := make(chan Chunk)

	go func() {
		defer stream.Close()
		defer close(ch)
		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				select {
				case ch <- Chunk{Err: fmt.Errorf("openai chat stream: %w", err)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case ch <- Chunk{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}
