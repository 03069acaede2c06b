package handlers

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/herald/internal/inbound"
	"github.com/edgard/herald/internal/store"
)

// NewDefaultHandler returns the handler for messages no command matched.
// Admin text is run as a natural-language command; private text from anyone
// else goes through the inbound pipeline.
func NewDefaultHandler(deps HandlerDeps) bot.HandlerFunc {
	return defaultHandler{deps}.Handle
}

type defaultHandler struct {
	deps HandlerDeps
}

func (h defaultHandler) Handle(ctx context.Context, b *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "default")

	msg := update.Message
	if msg == nil || msg.From == nil || strings.TrimSpace(msg.Text) == "" {
		return
	}

	if isAdmin(h.deps, msg.From.ID) {
		if _, err := b.SendChatAction(ctx, &bot.SendChatActionParams{ChatID: msg.Chat.ID, Action: models.ChatActionTyping}); err != nil {
			log.DebugContext(ctx, "Failed to send typing action", "error", err)
		}
	}

	if reply, ok := h.route(ctx, msg); ok {
		respond(ctx, b, log, msg.Chat.ID, reply)
	}
}

// route processes msg and returns the text to send back to the chat, if any.
func (h defaultHandler) route(ctx context.Context, msg *models.Message) (string, bool) {
	log := h.deps.Logger.With("handler", "default")
	text := strings.TrimSpace(msg.Text)

	if isAdmin(h.deps, msg.From.ID) {
		if strings.HasPrefix(text, "/") {
			return h.deps.Config.Messages.NotUnderstood + " Send /help for the list of commands.", true
		}
		reply, err := h.deps.Assistant.Execute(ctx, text)
		if err != nil {
			log.WarnContext(ctx, "Failed to execute command", "error", err)
			return userError(h.deps, err), true
		}
		return reply, true
	}

	if msg.Chat.Type != models.ChatTypePrivate || strings.HasPrefix(text, "/") {
		return "", false
	}

	out := h.deps.Pipeline.Handle(ctx, inbound.Message{
		Platform:   store.PlatformTelegram,
		SenderID:   strconv.FormatInt(msg.Chat.ID, 10),
		SenderName: senderName(msg.From),
		Text:       text,
		ReceivedAt: time.Unix(int64(msg.Date), 0),
	})
	log.InfoContext(ctx, "Inbound message processed",
		"chat_id", msg.Chat.ID,
		"sentiment", out.Sentiment.Sentiment,
		"emotion", out.Sentiment.Emotion,
		"auto_reply", out.AutoReply)
	return "", false
}

func senderName(u *models.User) string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" && u.Username != "" {
		name = "@" + u.Username
	}
	return name
}
