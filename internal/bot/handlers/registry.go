package handlers

import (
	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RegisteredHandler is a command handler with its match rules and middleware.
type RegisteredHandler struct {
	HandlerType tgbot.HandlerType
	Pattern     string
	Handler     tgbot.HandlerFunc
	Middleware  []tgbot.Middleware
	MatchType   tgbot.MatchType
}

// CommandInfo describes one bot command.
type CommandInfo struct {
	Name        string
	Description string
	AdminOnly   bool
	New         func(HandlerDeps) tgbot.HandlerFunc
}

// Commands returns the command table, in the order shown by /help.
func Commands() []CommandInfo {
	return []CommandInfo{
		{"start", "Show the welcome message", false, NewStartHandler},
		{"help", "List commands", false, NewHelpHandler},
		{"send", "Send a message now", true, NewSendHandler},
		{"schedule", "Schedule a message: <contact> <when> | <message>", true, NewScheduleHandler},
		{"email", "Email a contact: <contact> <subject> [| <body>]", true, NewEmailHandler},
		{"remind", "Add a reminder: <when> | <title> [| daily|weekly]", true, NewRemindHandler},
		{"todo", "Add a to-do", true, NewTodoHandler},
		{"shop", "Add a shopping item", true, NewShopHandler},
		{"list", "Show messages, reminders, lists and contacts", true, NewListHandler},
		{"done", "Toggle a to-do or shopping item", true, NewDoneHandler},
		{"delete", "Delete or cancel an item", true, NewDeleteHandler},
		{"contact", "Add or update a contact", true, NewContactHandler},
		{"autoreply", "Show or change auto-reply settings", true, NewAutoReplyHandler},
		{"sentiment", "Show or toggle sentiment analysis", true, NewSentimentHandler},
		{"inbox", "Show recent inbound messages and auto replies", true, NewInboxHandler},
		{"deliveries", "Show recent delivery attempts", true, NewDeliveriesHandler},
	}
}

// RegisterAllCommands builds the handler table keyed by "/command".
func RegisterAllCommands(deps HandlerDeps) map[string]RegisteredHandler {
	handlers := make(map[string]RegisteredHandler)
	adminMiddleware := []tgbot.Middleware{AdminOnly(deps)}

	for _, c := range Commands() {
		h := RegisteredHandler{
			HandlerType: tgbot.HandlerTypeMessageText,
			Pattern:     c.Name,
			Handler:     c.New(deps),
			MatchType:   tgbot.MatchTypeCommandStartOnly,
		}
		if c.AdminOnly {
			h.Middleware = adminMiddleware
		}
		handlers["/"+c.Name] = h
	}
	return handlers
}

// BotCommands returns the command menu published to Telegram.
func BotCommands() []models.BotCommand {
	cmds := Commands()
	out := make([]models.BotCommand, 0, len(cmds))
	for _, c := range cmds {
		out = append(out, models.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}
