package handlers

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/herald/internal/assistant"
	"github.com/edgard/herald/internal/store"
)

// command adapts a reply-producing function to a Telegram handler.
type command struct {
	deps HandlerDeps
	name string
	run  func(ctx context.Context, args string) string
}

func (h command) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", h.name)

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Command received update with nil message or sender", "update_id", update.ID)
		return
	}

	chatID := update.Message.Chat.ID
	log.InfoContext(ctx, "Handling command", "command", "/"+h.name, "chat_id", chatID, "user_id", update.Message.From.ID)

	respond(ctx, b, log, chatID, h.run(ctx, commandArgs(update.Message.Text)))
}

// usage renders the configured usage template for a command syntax.
func usage(deps HandlerDeps, syntax string) string {
	return fmt.Sprintf(deps.Config.Messages.Usage, syntax)
}

// userError turns a service error into text for the operator. Domain errors
// are shown as is, anything else gets the generic error text.
func userError(deps HandlerDeps, err error) string {
	switch {
	case errors.Is(err, assistant.ErrContactNotFound),
		errors.Is(err, assistant.ErrUnresolvedTime),
		errors.Is(err, assistant.ErrUnknownKind),
		errors.Is(err, assistant.ErrNoPlatform),
		errors.Is(err, assistant.ErrNoEmailBody),
		errors.Is(err, store.ErrNotFound):
		return "Error: " + err.Error()
	case errors.Is(err, assistant.ErrNoIntent):
		return deps.Config.Messages.NotUnderstood
	default:
		return deps.Config.Messages.GeneralError
	}
}

// cutField splits off the first whitespace-separated word.
func cutField(s string) (string, string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " \t\n"); i >= 0 {
		return s[:i], strings.TrimSpace(s[i+1:])
	}
	return s, ""
}

// splitPipe splits "a | b | c" into trimmed parts.
func splitPipe(s string) []string {
	parts := strings.Split(s, "|")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// optionalPlatform consumes a leading platform name if there is one.
func optionalPlatform(s string) (store.Platform, string) {
	first, rest := cutField(s)
	p, err := assistant.ParsePlatform(first)
	if err != nil || p == "" {
		return "", s
	}
	return p, rest
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.TrimSpace(s), "#"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func onOff(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "enable", "enabled":
		return true, true
	case "off", "false", "no", "disable", "disabled":
		return false, true
	}
	return false, false
}

func enabledText(v bool) string {
	if v {
		return "enabled"
	}
	return "disabled"
}
