// Package inbound reacts to messages received on a chat channel: it
// classifies their sentiment, drafts a reply, logs the exchange and, when the
// auto-reply policy allows it, answers the sender on the same channel.
package inbound

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/config"
	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
)

// FallbackReply is used when no reply could be generated.
const FallbackReply = "Received."

var (
	disabledSentiment = ai.Sentiment{Sentiment: ai.SentimentNeutral, Emotion: "neutral"}
	failedSentiment   = ai.Sentiment{Sentiment: ai.SentimentNeutral, Emotion: "unknown"}
)

// Model classifies and answers inbound text.
type Model interface {
	ClassifySentiment(ctx context.Context, text string) (ai.Sentiment, error)
	GenerateReply(ctx context.Context, text, emotion string) (string, error)
}

// ContactLookup resolves a sender id on a platform to a known contact.
type ContactLookup interface {
	FindBySender(platform store.Platform, senderID string) (store.Contact, bool)
}

// Replier sends an auto reply back over the channel a message came from.
type Replier interface {
	Reply(ctx context.Context, platform store.Platform, recipient store.Recipient, body string) dispatch.Result
}

// Message is an inbound chat message.
type Message struct {
	Platform   store.Platform
	SenderID   string
	SenderName string
	Text       string
	ReceivedAt time.Time
}

// LogEntry records one processed inbound message.
type LogEntry struct {
	Platform       store.Platform
	SenderName     string
	SenderID       string
	Text           string
	Sentiment      string
	Emotion        string
	SuggestedReply string
	ReceivedAt     time.Time
}

// ReplyEntry records one auto reply that was delivered.
type ReplyEntry struct {
	ContactName string
	Emotion     string
	ReplyText   string
	SentAt      time.Time
}

// Outcome is what Handle did with a message.
type Outcome struct {
	Sentiment   ai.Sentiment
	Reply       string
	AutoReply   bool
	ReplyResult dispatch.Result
}

// Pipeline processes inbound messages. It is safe for concurrent use.
type Pipeline struct {
	model    Model
	contacts ContactLookup
	replier  Replier
	logger   *slog.Logger
	now      func() time.Time

	classifyTimeout time.Duration
	generateTimeout time.Duration
	replyTimeout    time.Duration

	sentimentEnabled atomic.Bool
	globalAutoReply  atomic.Bool

	mu       sync.Mutex
	capacity int
	log      []LogEntry
	history  []ReplyEntry
}

// NewPipeline wires a pipeline from its collaborators and cfg.
func NewPipeline(model Model, contacts ContactLookup, replier Replier, cfg config.InboundConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	p := &Pipeline{
		model:           model,
		contacts:        contacts,
		replier:         replier,
		logger:          logger.With("component", "inbound"),
		now:             time.Now,
		classifyTimeout: orDefault(cfg.ClassifyTimeout, 20*time.Second),
		generateTimeout: orDefault(cfg.GenerateTimeout, 30*time.Second),
		replyTimeout:    orDefault(cfg.ReplyTimeout, 30*time.Second),
		capacity:        cfg.LogCapacity,
	}
	if p.capacity <= 0 {
		p.capacity = 200
	}
	p.sentimentEnabled.Store(cfg.SentimentEnabled)
	p.globalAutoReply.Store(cfg.GlobalAutoReply)
	return p
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

// SetSentimentEnabled toggles sentiment classification.
func (p *Pipeline) SetSentimentEnabled(v bool) { p.sentimentEnabled.Store(v) }

// SentimentEnabled reports whether sentiment classification is on.
func (p *Pipeline) SentimentEnabled() bool { return p.sentimentEnabled.Load() }

// SetGlobalAutoReply sets the auto-reply default for senders without an override.
func (p *Pipeline) SetGlobalAutoReply(v bool) { p.globalAutoReply.Store(v) }

// GlobalAutoReply reports the auto-reply default.
func (p *Pipeline) GlobalAutoReply() bool { return p.globalAutoReply.Load() }

// Handle runs msg through classification, reply drafting, logging and the
// auto-reply policy, in that order. External failures fall back to defaults,
// so a log entry is always produced.
func (p *Pipeline) Handle(ctx context.Context, msg Message) Outcome {
	if msg.ReceivedAt.IsZero() {
		msg.ReceivedAt = p.now()
	}
	log := p.logger.With("platform", msg.Platform, "sender_id", msg.SenderID)

	sentiment := p.Analyze(ctx, msg.Text)
	reply := p.suggest(ctx, msg.Text, sentiment.Emotion)

	p.appendLog(LogEntry{
		Platform:       msg.Platform,
		SenderName:     msg.SenderName,
		SenderID:       msg.SenderID,
		Text:           msg.Text,
		Sentiment:      sentiment.Sentiment,
		Emotion:        sentiment.Emotion,
		SuggestedReply: reply,
		ReceivedAt:     msg.ReceivedAt,
	})
	log.InfoContext(ctx, "Inbound message processed", "sentiment", sentiment.Sentiment, "emotion", sentiment.Emotion)

	out := Outcome{Sentiment: sentiment, Reply: reply}

	contact, known := p.contacts.FindBySender(msg.Platform, msg.SenderID)
	var override *bool
	if known {
		override = contact.AutoReply
	}
	out.AutoReply = ShouldAutoReply(override, p.globalAutoReply.Load())
	if !out.AutoReply {
		return out
	}

	recipient := senderRecipient(msg)
	name := msg.SenderName
	if known {
		recipient = contact.Recipient()
		name = contact.Name
	}

	replyCtx, cancel := context.WithTimeout(ctx, p.replyTimeout)
	defer cancel()
	out.ReplyResult = p.replier.Reply(replyCtx, msg.Platform, recipient, reply)
	if !out.ReplyResult.Success {
		log.WarnContext(ctx, "Auto reply failed", "detail", out.ReplyResult.Message)
		return out
	}

	p.appendHistory(ReplyEntry{
		ContactName: name,
		Emotion:     sentiment.Emotion,
		ReplyText:   reply,
		SentAt:      p.now(),
	})
	log.InfoContext(ctx, "Auto reply sent", "contact", name)
	return out
}

// Analyze classifies text, or returns a fixed neutral result without calling
// the model when sentiment analysis is disabled.
func (p *Pipeline) Analyze(ctx context.Context, text string) ai.Sentiment {
	if !p.sentimentEnabled.Load() {
		return disabledSentiment
	}

	ctx, cancel := context.WithTimeout(ctx, p.classifyTimeout)
	defer cancel()

	s, err := p.model.ClassifySentiment(ctx, text)
	if err != nil {
		p.logger.WarnContext(ctx, "Sentiment classification failed, using fallback", "error", err)
		return failedSentiment
	}
	return s
}

func (p *Pipeline) suggest(ctx context.Context, text, emotion string) string {
	ctx, cancel := context.WithTimeout(ctx, p.generateTimeout)
	defer cancel()

	reply, err := p.model.GenerateReply(ctx, text, emotion)
	if err != nil {
		p.logger.WarnContext(ctx, "Reply generation failed, using fallback", "error", err)
		return FallbackReply
	}
	if reply = strings.TrimSpace(reply); reply == "" {
		return FallbackReply
	}
	return reply
}

// ShouldAutoReply applies the reply policy: an explicit contact override wins,
// otherwise the global flag decides.
func ShouldAutoReply(override *bool, global bool) bool {
	if override != nil {
		return *override
	}
	return global
}

func senderRecipient(msg Message) store.Recipient {
	r := store.Recipient{Name: msg.SenderName}
	switch msg.Platform {
	case store.PlatformTelegram:
		r.TelegramID = msg.SenderID
	case store.PlatformWhatsApp:
		r.Phone = msg.SenderID
	case store.PlatformEmail:
		r.Email = msg.SenderID
	}
	return r
}

func (p *Pipeline) appendLog(e LogEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.log = prepend(p.log, e, p.capacity)
}

func (p *Pipeline) appendHistory(e ReplyEntry) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.history = prepend(p.history, e, p.capacity)
}

// prepend inserts v at the front, dropping the oldest entries beyond capacity.
func prepend[T any](s []T, v T, capacity int) []T {
	s = append(s, v)
	copy(s[1:], s[:len(s)-1])
	s[0] = v
	if len(s) > capacity {
		s = s[:capacity]
	}
	return s
}

// InboundLog returns the processed messages, newest first.
func (p *Pipeline) InboundLog() []LogEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]LogEntry(nil), p.log...)
}

// AutoReplyHistory returns the delivered auto replies, newest first.
func (p *Pipeline) AutoReplyHistory() []ReplyEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]ReplyEntry(nil), p.history...)
}
