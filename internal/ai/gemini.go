package ai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/edgard/herald/internal/config"
)

type geminiClient struct {
	genaiClient   *genai.Client
	log           *slog.Logger
	contentConfig *genai.GenerateContentConfig
	modelName     string
	maxRetries    int
	retryDelay    time.Duration
	now           func() time.Time
}

var sentimentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"sentiment": {Type: genai.TypeString, Enum: []string{SentimentPositive, SentimentNeutral, SentimentNegative}},
		"emotion":   {Type: genai.TypeString, Description: "One lowercase word naming the sender's emotion."},
	},
	Required: []string{"sentiment", "emotion"},
}

var intentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"intent": {Type: genai.TypeString, Enum: []string{
			string(ActionSend), string(ActionSchedule), string(ActionReminder), string(ActionTodo), string(ActionShopping), string(ActionEmail),
		}},
		"platform":       {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"recipient_name": {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"body":           {Type: genai.TypeString},
		"subject":        {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"time":           {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"category":       {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"recurring":      {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"priority":       {Type: genai.TypeString, Nullable: genai.Ptr(true)},
		"quantity":       {Type: genai.TypeString, Nullable: genai.Ptr(true)},
	},
	Required: []string{"intent", "body"},
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	temperature := cfg.Temperature
	logger := log.With("component", "gemini_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &geminiClient{
		genaiClient:   gi,
		log:           logger,
		contentConfig: &genai.GenerateContentConfig{Temperature: &temperature},
		modelName:     cfg.Model,
		maxRetries:    cfg.MaxRetries,
		retryDelay:    time.Duration(cfg.RetryDelaySeconds) * time.Second,
		now:           time.Now,
	}, nil
}

func (c *geminiClient) generate(ctx context.Context, prompt string, schema *genai.Schema) (string, error) {
	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	cfg := *c.contentConfig
	if schema != nil {
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = schema
	}

	var resp *genai.GenerateContentResponse
	err := withRetries(ctx, c.log, c.maxRetries, c.retryDelay, geminiRetriable, func() error {
		var err error
		resp, err = c.genaiClient.Models.GenerateContent(ctx, c.modelName, contents, &cfg)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}
	return c.extractText(ctx, resp)
}

// geminiRetriable reports whether err is a 500 or 503 from the API.
func geminiRetriable(err error) bool {
	var apiErr *genai.APIError
	return errors.As(err, &apiErr) && (apiErr.Code == 500 || apiErr.Code == 503)
}

func (c *geminiClient) ClassifySentiment(ctx context.Context, text string) (Sentiment, error) {
	out, err := c.generate(ctx, fmt.Sprintf(SentimentPrompt, text), sentimentSchema)
	if err != nil {
		return Sentiment{}, err
	}
	return decodeSentiment(out)
}

func (c *geminiClient) GenerateReply(ctx context.Context, text, emotion string) (string, error) {
	out, err := c.generate(ctx, fmt.Sprintf(ReplyPrompt, text, emotion), nil)
	if err != nil {
		return "", err
	}
	return cleanReply(out), nil
}

func (c *geminiClient) ParseIntent(ctx context.Context, text string, contactNames []string) (*Intent, error) {
	prompt := fmt.Sprintf(IntentPrompt, text, c.now().Format(time.RFC1123), strings.Join(contactNames, ", "))
	out, err := c.generate(ctx, prompt, intentSchema)
	if err != nil {
		return nil, err
	}
	return decodeIntent(out)
}

func (c *geminiClient) DraftEmail(ctx context.Context, subject, recipientName string) (string, error) {
	out, err := c.generate(ctx, fmt.Sprintf(EmailPrompt, subject, recipientName), nil)
	if err != nil {
		return "", err
	}
	return cleanDraft(out), nil
}

func (c *geminiClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reason := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reason = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "reason", reason)
		return "", fmt.Errorf("blocked by safety filter: %s", reason)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content", "finish_reason", finishReason)
		return "", fmt.Errorf("empty response, finish reason: %s", finishReason)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("empty response text")
	}
	return text, nil
}
