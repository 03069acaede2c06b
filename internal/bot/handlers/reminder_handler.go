package handlers

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"

	"github.com/edgard/herald/internal/store"
)

const remindSyntax = "/remind <when> | <title> [| daily|weekly] [| category]"

// NewRemindHandler returns a handler for /remind.
func NewRemindHandler(deps HandlerDeps) bot.HandlerFunc {
	return command{deps, "remind", remindHandler{deps}.run}.Handle
}

type remindHandler struct {
	deps HandlerDeps
}

func (h remindHandler) run(ctx context.Context, args string) string {
	parts := splitPipe(args)
	if len(parts) < 2 || len(parts) > 4 || parts[1] == "" {
		return usage(h.deps, remindSyntax)
	}

	rec := store.RecurrenceNone
	if len(parts) >= 3 {
		r, err := store.ParseRecurrence(parts[2])
		if err != nil {
			return "Error: " + err.Error()
		}
		rec = r
	}
	var category string
	if len(parts) == 4 {
		category = parts[3]
	}

	item, resolved, err := h.deps.Assistant.AddReminder(ctx, parts[1], parts[0], category, rec)
	if err != nil {
		return userError(h.deps, err)
	}

	msg := "Reminder added: " + h.deps.Assistant.Describe(item)
	if !resolved {
		msg += fmt.Sprintf("\nCould not understand %q, so it is due now.", parts[0])
	}
	return msg
}
