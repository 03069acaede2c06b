// Package ai wraps the language models used for sentiment classification,
// reply drafting and command intent parsing.
package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/herald/internal/config"
)

// Client is the model-backed collaborator used by the inbound pipeline and the assistant.
type Client interface {
	ClassifySentiment(ctx context.Context, text string) (Sentiment, error)

	GenerateReply(ctx context.Context, text, emotion string) (string, error)

	// ParseIntent returns nil without error when the model found no actionable command.
	ParseIntent(ctx context.Context, text string, contactNames []string) (*Intent, error)
	DraftEmail(ctx context.Context, subject, recipientName string) (string, error)
}

// Sentiment labels.
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// Sentiment is the classifier output for one message.
type Sentiment struct {
	Sentiment string `json:"sentiment"`
	Emotion   string `json:"emotion"`
}

// Action is the kind of command an Intent carries.
type Action string

const (
	ActionSend     Action = "send"
	ActionSchedule Action = "schedule"
	ActionReminder Action = "reminder"
	ActionTodo     Action = "todo"
	ActionShopping Action = "shopping"
	ActionEmail    Action = "email"
)

// Intent is a structured command extracted from free text.
// Time is left in natural language; the caller resolves it.
type Intent struct {
	Action     Action `json:"intent"`
	Platform   string `json:"platform"`
	Recipient  string `json:"recipient_name"`
	Body       string `json:"body"`
	Subject    string `json:"subject"`
	Time       string `json:"time"`
	Category   string `json:"category"`
	Recurrence string `json:"recurring"`
	Priority   string `json:"priority"`
	Quantity   string `json:"quantity"`
}

// Providers accepted by NewClient.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// NewClient builds the client for cfg.Provider.
func NewClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderGemini:
		return NewGeminiClient(ctx, cfg, log)
	case ProviderOpenAI, ProviderOllama, "":
		return NewOpenAIClient(cfg, log)
	default:
		return nil, fmt.Errorf("unknown ai provider %q", cfg.Provider)
	}
}

// extractJSON returns the text between the first '{' and the last '}'.
func extractJSON(text string) (string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return "", false
	}
	return text[start : end+1], true
}

// decodeSentiment parses a classifier response and normalises its labels.
func decodeSentiment(text string) (Sentiment, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return Sentiment{}, fmt.Errorf("no JSON object in sentiment response: %q", text)
	}
	var s Sentiment
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return Sentiment{}, fmt.Errorf("invalid sentiment JSON: %w", err)
	}
	return normalizeSentiment(s), nil
}

func normalizeSentiment(s Sentiment) Sentiment {
	switch label := strings.ToLower(strings.TrimSpace(s.Sentiment)); label {
	case SentimentPositive, SentimentNegative, SentimentNeutral:
		s.Sentiment = label
	default:
		s.Sentiment = SentimentNeutral
	}
	s.Emotion = strings.ToLower(strings.TrimSpace(s.Emotion))
	if fields := strings.Fields(s.Emotion); len(fields) > 0 {
		s.Emotion = fields[0]
	}
	if s.Emotion == "" {
		s.Emotion = "unknown"
	}
	return s
}

// decodeIntent parses an intent response. Unknown or missing actions yield nil.
func decodeIntent(text string) (*Intent, error) {
	raw, ok := extractJSON(text)
	if !ok {
		return nil, nil
	}
	var in Intent
	if err := json.Unmarshal([]byte(raw), &in); err != nil {
		return nil, fmt.Errorf("invalid intent JSON: %w", err)
	}

	in.Action = Action(strings.ToLower(strings.TrimSpace(string(in.Action))))
	switch in.Action {
	case ActionSend, ActionSchedule, ActionReminder, ActionTodo, ActionShopping, ActionEmail:
	default:
		return nil, nil
	}
	in.Platform = strings.ToLower(strings.TrimSpace(in.Platform))
	in.Recipient = strings.ToLower(strings.TrimSpace(in.Recipient))
	in.Recurrence = strings.ToLower(strings.TrimSpace(in.Recurrence))
	in.Body = strings.TrimSpace(in.Body)
	in.Subject = strings.TrimSpace(in.Subject)
	in.Time = strings.TrimSpace(in.Time)
	return &in, nil
}

// cleanReply strips the quoting models like to wrap short replies in.
func cleanReply(text string) string {
	return strings.TrimSpace(strings.ReplaceAll(text, `"`, ""))
}

// cleanDraft drops a subject line the model sometimes repeats above the body.
func cleanDraft(text string) string {
	text = strings.TrimSpace(text)
	if first, rest, ok := strings.Cut(text, "\n"); ok && strings.HasPrefix(strings.ToLower(first), "subject:") {
		text = strings.TrimSpace(rest)
	}
	return text
}

// withRetries runs call until it succeeds, fails with a non-retriable error or
// maxRetries extra attempts have been spent.
func withRetries(ctx context.Context, log *slog.Logger, maxRetries int, delay time.Duration, retriable func(error) bool, call func() error) error {
	var err error
	for i := 0; i <= maxRetries; i++ {
		err = call()
		if err == nil {
			return nil
		}

		log.WarnContext(ctx, "Model API call failed, checking for retry", "attempt", i+1, "max_retries", maxRetries, "error", err)

		if !retriable(err) {
			return err
		}
		if i == maxRetries {
			break
		}

		log.InfoContext(ctx, "Retrying model API call", "delay", delay)
		select {
		case <-ctx.Done():
			return errors.Join(err, ctx.Err())
		case <-time.After(delay):
		}
	}
	return fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}
