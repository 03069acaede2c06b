package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"

	"github.com/edgard/herald/internal/store"
)

const (
	contactSyntax   = "/contact <name> [email=<address>] [phone=<number>] [telegram=<chat id>]"
	autoReplySyntax = "/autoreply [on|off] or /autoreply <contact> on|off|default"
)

// NewContactHandler returns a handler for /contact, which adds or updates an
// address book entry or lists the book when called without arguments.
func NewContactHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "contact", contactHandler{deps}.run}.Handle
}

type contactHandler struct {
	deps HandlerDeps
}

func (h contactHandler) run(_ context.Context, args string) string {
	if strings.TrimSpace(args) == "" {
		var b strings.Builder
		writeContacts(&b, h.deps.Assistant.Contacts())
		return strings.TrimRight(b.String(), "\n")
	}

	name, rest := cutField(args)
	var email, phone, telegramID string
	for _, field := range strings.Fields(rest) {
		key, value, ok := strings.Cut(field, "=")
		if !ok || value == "" {
			return usage(h.deps, contactSyntax)
		}
		switch strings.ToLower(key) {
		case "email":
			email = value
		case "phone":
			phone = value
		case "telegram", "tg":
			telegramID = value
		default:
			return usage(h.deps, contactSyntax)
		}
	}

	c, err := h.deps.Assistant.AddContact(name, email, phone, telegramID)
	if err != nil {
		return "Error: " + err.Error()
	}
	return "Saved contact " + describeContact(c)
}

// NewAutoReplyHandler returns a handler for /autoreply.
func NewAutoReplyHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "autoreply", autoReplyHandler{deps}.run}.Handle
}

type autoReplyHandler struct {
	deps HandlerDeps
}

func (h autoReplyHandler) run(_ context.Context, args string) string {
	first, rest := cutField(args)
	if first == "" {
		return "Global auto-reply is " + enabledText(h.deps.Pipeline.GlobalAutoReply())
	}

	if rest == "" {
		v, ok := onOff(first)
		if !ok {
			return usage(h.deps, autoReplySyntax)
		}
		h.deps.Pipeline.SetGlobalAutoReply(v)
		return "Global auto-reply " + enabledText(v)
	}

	var override *bool
	if strings.ToLower(rest) != "default" {
		v, ok := onOff(rest)
		if !ok {
			return usage(h.deps, autoReplySyntax)
		}
		override = &v
	}
	if err := h.deps.Assistant.SetAutoReply(first, override); err != nil {
		return userError(h.deps, err)
	}
	if override == nil {
		return fmt.Sprintf("Auto-reply for %s follows the global setting", strings.ToLower(first))
	}
	return fmt.Sprintf("Auto-reply for %s %s", strings.ToLower(first), enabledText(*override))
}

func writeContacts(b *strings.Builder, contacts []store.Contact) {
	b.WriteString("Contacts:\n")
	if len(contacts) == 0 {
		b.WriteString("  (empty)\n")
	}
	for _, c := range contacts {
		b.WriteString("  " + describeContact(c) + "\n")
	}
}

func describeContact(c store.Contact) string {
	parts := []string{c.Name}
	if c.TelegramID != "" {
		parts = append(parts, "telegram="+c.TelegramID)
	}
	if c.Phone != "" {
		parts = append(parts, "phone="+c.Phone)
	}
	if c.Email != "" {
		parts = append(parts, "email="+c.Email)
	}
	if c.AutoReply != nil {
		parts = append(parts, "autoreply="+enabledText(*c.AutoReply))
	}
	return strings.Join(parts, " ")
}
