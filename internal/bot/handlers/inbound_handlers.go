package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/edgard/herald/internal/logger"
)

const (
	inboxEntries       = 10
	defaultDeliveries  = 10
	deliveryBodyLength = 60
)

// NewSentimentHandler returns a handler for /sentiment.
func NewSentimentHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "sentiment", sentimentHandler{deps}.run}.Handle
}

type sentimentHandler struct {
	deps HandlerDeps
}

func (h sentimentHandler) run(_ context.Context, args string) string {
	if strings.TrimSpace(args) == "" {
		return "Sentiment analysis is " + enabledText(h.deps.Pipeline.SentimentEnabled())
	}
	v, ok := onOff(args)
	if !ok {
		return usage(h.deps, "/sentiment [on|off]")
	}
	h.deps.Pipeline.SetSentimentEnabled(v)
	return "Sentiment analysis " + enabledText(v)
}

// NewInboxHandler returns a handler for /inbox, which shows the latest
// inbound messages and auto replies.
func NewInboxHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "inbox", inboxHandler{deps}.run}.Handle
}

type inboxHandler struct {
	deps HandlerDeps
}

func (h inboxHandler) run(_ context.Context, _ string) string {
	loc := h.deps.Assistant.Location()
	var b strings.Builder

	b.WriteString("Inbound messages:\n")
	entries := h.deps.Pipeline.InboundLog()
	if len(entries) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, e := range entries {
		if i == inboxEntries {
			break
		}
		fmt.Fprintf(&b, "  %s %s/%s [%s, %s]: %s\n    suggested: %s\n",
			e.ReceivedAt.In(loc).Format("Jan 2 15:04"), e.Platform, e.SenderName,
			e.Sentiment, e.Emotion, e.Text, e.SuggestedReply)
	}

	b.WriteString("Auto replies:\n")
	history := h.deps.Pipeline.AutoReplyHistory()
	if len(history) == 0 {
		b.WriteString("  (none)\n")
	}
	for i, r := range history {
		if i == inboxEntries {
			break
		}
		fmt.Fprintf(&b, "  %s to %s (%s): %s\n", r.SentAt.In(loc).Format("Jan 2 15:04"), r.ContactName, r.Emotion, r.ReplyText)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewDeliveriesHandler returns a handler for /deliveries, which lists the
// latest journaled delivery attempts.
func NewDeliveriesHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "deliveries", deliveriesHandler{deps}.run}.Handle
}

type deliveriesHandler struct {
	deps HandlerDeps
}

func (h deliveriesHandler) run(ctx context.Context, args string) string {
	if h.deps.Journal == nil {
		return "Delivery journal is not configured."
	}

	limit := defaultDeliveries
	if s := strings.TrimSpace(args); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			return usage(h.deps, "/deliveries [count]")
		}
		limit = n
	}

	rows, err := h.deps.Journal.RecentDeliveries(ctx, limit)
	if err != nil {
		h.deps.Logger.ErrorContext(ctx, "Failed to read delivery journal", "error", err)
		return h.deps.Config.Messages.GeneralError
	}
	if len(rows) == 0 {
		return "No deliveries recorded yet."
	}

	loc := h.deps.Assistant.Location()
	var b strings.Builder
	for _, d := range rows {
		status := "ok"
		if !d.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "%s %s %s to %s: %s (%s)\n",
			d.AttemptedAt.In(loc).Format("Jan 2 15:04"), status, d.Platform, d.RecipientName,
			logger.Truncate(d.Body, deliveryBodyLength), d.Detail)
	}
	return strings.TrimRight(b.String(), "\n")
}
