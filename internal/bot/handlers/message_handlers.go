package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
)

const (
	sendSyntax     = "/send [telegram|whatsapp|email] <contact> <message>"
	scheduleSyntax = "/schedule [telegram|whatsapp|email] <contact> <when> | <message>"
	emailSyntax    = "/email <contact> <subject> [| <body>]"
)

// NewSendHandler returns a handler for /send, which delivers immediately.
func NewSendHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "send", sendHandler{deps}.run}.Handle
}

type sendHandler struct {
	deps HandlerDeps
}

func (h sendHandler) run(ctx context.Context, args string) string {
	platform, rest := optionalPlatform(args)
	contact, body := cutField(rest)
	if contact == "" || body == "" {
		return usage(h.deps, sendSyntax)
	}

	res, err := h.deps.Assistant.SendNow(ctx, platform, contact, body)
	if err != nil {
		return userError(h.deps, err)
	}
	return res.Message
}

// NewScheduleHandler returns a handler for /schedule.
func NewScheduleHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "schedule", scheduleHandler{deps}.run}.Handle
}

type scheduleHandler struct {
	deps HandlerDeps
}

func (h scheduleHandler) run(ctx context.Context, args string) string {
	parts := splitPipe(args)
	if len(parts) != 2 || parts[1] == "" {
		return usage(h.deps, scheduleSyntax)
	}
	platform, rest := optionalPlatform(parts[0])
	contact, when := cutField(rest)
	if contact == "" || when == "" {
		return usage(h.deps, scheduleSyntax)
	}

	item, err := h.deps.Assistant.ScheduleMessage(ctx, platform, contact, parts[1], when)
	if err != nil {
		return userError(h.deps, err)
	}
	return fmt.Sprintf("Scheduled %s message #%d to %s for %s",
		item.Platform, item.ID, item.Recipient.Name,
		item.DueAt.In(h.deps.Assistant.Location()).Format("Mon Jan 2 15:04"))
}

// NewEmailHandler returns a handler for /email. Without a body the email is
// drafted from the subject and the draft is echoed back.
func NewEmailHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "email", emailHandler{deps}.run}.Handle
}

type emailHandler struct {
	deps HandlerDeps
}

func (h emailHandler) run(ctx context.Context, args string) string {
	parts := splitPipe(args)
	if len(parts) > 2 {
		return usage(h.deps, emailSyntax)
	}
	contact, subject := cutField(parts[0])
	var body string
	if len(parts) == 2 {
		body = parts[1]
	}
	if contact == "" || (subject == "" && body == "") {
		return usage(h.deps, emailSyntax)
	}

	res, sent, err := h.deps.Assistant.SendEmail(ctx, contact, subject, body)
	if err != nil {
		return userError(h.deps, err)
	}
	if body == "" && res.Success {
		return res.Message + "\n\n" + sent
	}
	return res.Message
}
