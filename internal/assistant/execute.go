package assistant

import (
	"context"
	"fmt"
	"strings"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/store"
)

const timeLayout = "Mon Jan 2 15:04"

// Execute parses free text into a command, runs it and returns a short
// confirmation for the operator.
func (s *Service) Execute(ctx context.Context, text string) (string, error) {
	intent, err := s.parser.ParseIntent(ctx, text, s.contacts.Names())
	if err != nil {
		return "", fmt.Errorf("failed to parse command: %w", err)
	}
	if intent == nil {
		return "", ErrNoIntent
	}

	s.logger.DebugContext(ctx, "Executing intent", "action", intent.Action, "recipient", intent.Recipient)

	switch intent.Action {
	case ai.ActionSend, ai.ActionSchedule:
		return s.executeMessage(ctx, text, intent)

	case ai.ActionEmail:
		name := intent.Recipient
		if name == "" {
			name = text
		}
		res, _, err := s.SendEmail(ctx, name, intent.Subject, intent.Body)
		if err != nil {
			return "", err
		}
		return res.Message, nil

	case ai.ActionReminder:
		rec, err := store.ParseRecurrence(intent.Recurrence)
		if err != nil {
			rec = store.RecurrenceNone
		}
		item, resolved, err := s.AddReminder(ctx, intent.Body, intent.Time, intent.Category, rec)
		if err != nil {
			return "", err
		}
		msg := fmt.Sprintf("Reminder set: %s at %s", item.Title, s.format(item))
		if rec != store.RecurrenceNone {
			msg += " (" + string(rec) + ")"
		}
		if !resolved {
			msg += ". I could not understand the time, so it is due now."
		}
		return msg, nil

	case ai.ActionTodo:
		todo, err := s.AddTodo(intent.Body, intent.Priority)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added to your to-do list: %s (%s priority)", todo.Text, todo.Priority), nil

	case ai.ActionShopping:
		item, err := s.AddShopping(intent.Body, intent.Quantity)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Added to your shopping list: %s x%s", item.Text, item.Quantity), nil
	}

	return "", ErrNoIntent
}

func (s *Service) executeMessage(ctx context.Context, text string, intent *ai.Intent) (string, error) {
	platform, err := ParsePlatform(intent.Platform)
	if err != nil {
		return "", err
	}

	// The model may miss the name; fall back to a contact named in the raw text.
	name := intent.Recipient
	if name == "" {
		name = text
	}

	if intent.Action == ai.ActionSend {
		res, err := s.SendNow(ctx, platform, name, intent.Body)
		if err != nil {
			return "", err
		}
		return res.Message, nil
	}

	item, err := s.ScheduleMessage(ctx, platform, name, intent.Body, intent.Time)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Scheduled %s message to %s for %s", item.Platform, item.Recipient.Name, s.format(item)), nil
}

func (s *Service) format(item store.ScheduledItem) string {
	return item.DueAt.In(s.Location()).Format(timeLayout)
}

// Describe renders a scheduled item as one line for listings.
func (s *Service) Describe(item store.ScheduledItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "#%d [%s] %s", item.ID, item.Status, s.format(item))
	if item.Kind == store.KindReminder {
		fmt.Fprintf(&b, " %s", item.Label())
		if item.Recurrence != store.RecurrenceNone {
			fmt.Fprintf(&b, " (%s)", item.Recurrence)
		}
		if item.Category != "" {
			fmt.Fprintf(&b, " #%s", item.Category)
		}
		return b.String()
	}
	fmt.Fprintf(&b, " %s to %s: %s", item.Platform, item.Recipient.Name, item.Body)
	return b.String()
}
