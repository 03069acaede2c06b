package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/edgard/herald/internal/config"
)

// DefaultOllamaBaseURL is the OpenAI-compatible endpoint of a local Ollama server.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

type openAIClient struct {
	client      *openai.Client
	log         *slog.Logger
	model       string
	temperature float32
	maxRetries  int
	retryDelay  time.Duration
	now         func() time.Time
}

// NewOpenAIClient creates a client for any OpenAI-compatible chat completion
// endpoint. Without a base URL it targets a local Ollama server.
func NewOpenAIClient(cfg config.AIConfig, log *slog.Logger) (Client, error) {
	if cfg.Model == "" {
		return nil, errors.New("ai model is required")
	}

	aiConfig := openai.DefaultConfig(cfg.APIKey)
	aiConfig.BaseURL = cfg.BaseURL
	if aiConfig.BaseURL == "" {
		aiConfig.BaseURL = DefaultOllamaBaseURL
	}

	logger := log.With("component", "openai_client")
	logger.Info("OpenAI-compatible client initialized successfully", "model", cfg.Model, "base_url", aiConfig.BaseURL)
	return &openAIClient{
		client:      openai.NewClientWithConfig(aiConfig),
		log:         logger,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxRetries:  cfg.MaxRetries,
		retryDelay:  time.Duration(cfg.RetryDelaySeconds) * time.Second,
		now:         time.Now,
	}, nil
}

func (c *openAIClient) complete(ctx context.Context, prompt string, jsonMode bool) (string, error) {
	req := openai.ChatCompletionRequest{
		Model:       c.model,
		Temperature: c.temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	}
	if jsonMode {
		req.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var resp openai.ChatCompletionResponse
	err := withRetries(ctx, c.log, c.maxRetries, c.retryDelay, openAIRetriable, func() error {
		var err error
		resp, err = c.client.CreateChatCompletion(ctx, req)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("chat completion returned empty content")
	}
	return text, nil
}

// openAIRetriable reports whether err is a 500 or 503 from the endpoint.
func openAIRetriable(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusInternalServerError || apiErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusInternalServerError || reqErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	return false
}

func (c *openAIClient) ClassifySentiment(ctx context.Context, text string) (Sentiment, error) {
	out, err := c.complete(ctx, fmt.Sprintf(SentimentPrompt, text), true)
	if err != nil {
		return Sentiment{}, err
	}
	return decodeSentiment(out)
}

func (c *openAIClient) GenerateReply(ctx context.Context, text, emotion string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf(ReplyPrompt, text, emotion), false)
	if err != nil {
		return "", err
	}
	return cleanReply(out), nil
}

func (c *openAIClient) ParseIntent(ctx context.Context, text string, contactNames []string) (*Intent, error) {
	prompt := fmt.Sprintf(IntentPrompt, text, c.now().Format(time.RFC1123), strings.Join(contactNames, ", "))
	out, err := c.complete(ctx, prompt, true)
	if err != nil {
		return nil, err
	}
	return decodeIntent(out)
}

func (c *openAIClient) DraftEmail(ctx context.Context, subject, recipientName string) (string, error) {
	out, err := c.complete(ctx, fmt.Sprintf(EmailPrompt, subject, recipientName), false)
	if err != nil {
		return "", err
	}
	return cleanDraft(out), nil
}
