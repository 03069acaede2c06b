package dispatch

import (
	"context"
	"errors"
	"strconv"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/herald/internal/store"
)

// MessageSender is the subset of *tgbot.Bot used to deliver text.
type MessageSender interface {
	SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*models.Message, error)
}

// TelegramSender delivers to a chat id through the Bot API.
type TelegramSender struct {
	bot MessageSender
}

// NewTelegramSender wraps a bot client.
func NewTelegramSender(bot MessageSender) *TelegramSender {
	return &TelegramSender{bot: bot}
}

// Send implements Sender.
func (s *TelegramSender) Send(ctx context.Context, recipient store.Recipient, body string) (string, error) {
	if s.bot == nil {
		return "", errors.New("telegram bot is not configured")
	}

	// Numeric ids are chats; anything else is passed through as a @channel username.
	var chatID any = recipient.TelegramID
	if id, err := strconv.ParseInt(recipient.TelegramID, 10, 64); err == nil {
		chatID = id
	}

	if _, err := s.bot.SendMessage(ctx, &tgbot.SendMessageParams{
		ChatID: chatID,
		Text:   body,
	}); err != nil {
		return "", err
	}
	return "Telegram message sent.", nil
}
