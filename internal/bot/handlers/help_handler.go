package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewHelpHandler returns a handler for the /help command.
func NewHelpHandler(deps HandlerDeps) bot.HandlerFunc {
	return helpHandler{deps}.Handle
}

type helpHandler struct {
	deps HandlerDeps
}

func (h helpHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "help")

	if update.Message == nil || update.Message.From == nil {
		log.WarnContext(ctx, "Help handler received update with nil message or sender", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /help command", "chat_id", update.Message.Chat.ID, "user_id", update.Message.From.ID)
	respond(ctx, b, log, update.Message.Chat.ID, helpText(isAdmin(h.deps, update.Message.From.ID)))
}

// helpText lists the commands the caller may use.
func helpText(admin bool) string {
	var b strings.Builder
	b.WriteString("Commands:\n")
	for _, c := range Commands() {
		if c.AdminOnly && !admin {
			continue
		}
		b.WriteString("/" + c.Name + " - " + c.Description + "\n")
	}
	if admin {
		b.WriteString("\nAny other text is read as a command, e.g. \"remind me to call mom tomorrow at 6pm\".")
	}
	return strings.TrimRight(b.String(), "\n")
}
