// Package assistant turns operator commands into immediate deliveries or
// stored items for the scheduler to pick up.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
)

var (
	// ErrContactNotFound is returned when a named recipient is not in the address book.
	ErrContactNotFound = store.ErrContactNotFound
	// ErrUnresolvedTime is returned when a delivery time could not be understood.
	ErrUnresolvedTime = errors.New("could not understand the time")
	// ErrUnknownKind is returned for an item kind other than message, reminder, todo or shopping.
	ErrUnknownKind = errors.New("unknown item kind")
	// ErrNoIntent is returned when free text does not contain a recognisable command.
	ErrNoIntent = errors.New("no command found in text")
	// ErrNoPlatform is returned when no delivery channel can be chosen for a contact.
	ErrNoPlatform = errors.New("no delivery platform for contact")
	// ErrNoEmailBody is returned when an email has no body and none can be drafted.
	ErrNoEmailBody = errors.New("email needs a body or a subject to draft from")
)

// TimeResolver turns natural-language time into an instant.
type TimeResolver interface {
	Resolve(text string, now time.Time) (time.Time, bool)
	Location() *time.Location
}

// Sender delivers a message immediately.
type Sender interface {
	Dispatch(ctx context.Context, platform store.Platform, recipient store.Recipient, body string) dispatch.Result
}

// IntentParser extracts a command from free text.
type IntentParser interface {
	ParseIntent(ctx context.Context, text string, contactNames []string) (*ai.Intent, error)
}

// EmailDrafter writes an email body from its subject.
type EmailDrafter interface {
	DraftEmail(ctx context.Context, subject, recipientName string) (string, error)
}

// Deps are the collaborators of a Service.
type Deps struct {
	Messages  *store.Schedule
	Reminders *store.Schedule
	Contacts  *store.Contacts
	Todos     *store.TodoList
	Shopping  *store.ShoppingList
	Resolver  TimeResolver
	Sender    Sender
	Parser    IntentParser
	Drafter   EmailDrafter
	Logger    *slog.Logger
	Now       func() time.Time
}

// Service implements the operator commands.
type Service struct {
	messages  *store.Schedule
	reminders *store.Schedule
	contacts  *store.Contacts
	todos     *store.TodoList
	shopping  *store.ShoppingList
	resolver  TimeResolver
	sender    Sender
	parser    IntentParser
	drafter   EmailDrafter
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Service from deps.
func New(deps Deps) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		messages:  deps.Messages,
		reminders: deps.Reminders,
		contacts:  deps.Contacts,
		todos:     deps.Todos,
		shopping:  deps.Shopping,
		resolver:  deps.Resolver,
		sender:    deps.Sender,
		parser:    deps.Parser,
		drafter:   deps.Drafter,
		logger:    logger.With("component", "assistant"),
		now:       now,
	}
}

// ScheduleMessage stores a pending message to contactName for delivery at when.
// Once stored the request has succeeded; the delivery outcome is only journaled.
func (s *Service) ScheduleMessage(ctx context.Context, platform store.Platform, contactName, body, when string) (store.ScheduledItem, error) {
	contact, platform, err := s.recipient(contactName, platform)
	if err != nil {
		return store.ScheduledItem{}, err
	}

	now := s.now()
	due, ok := s.resolver.Resolve(when, now)
	if !ok {
		return store.ScheduledItem{}, fmt.Errorf("%w: %q", ErrUnresolvedTime, when)
	}

	item, err := s.messages.Add(store.ScheduledItem{
		Platform:  platform,
		Recipient: contact.Recipient(),
		Body:      strings.TrimSpace(body),
		DueAt:     due,
	}, now)
	if err != nil {
		return store.ScheduledItem{}, fmt.Errorf("failed to store message: %w", err)
	}

	s.logger.InfoContext(ctx, "Message scheduled", "item_id", item.ID, "contact", contact.Name, "platform", platform, "due_at", due)
	return item, nil
}

// SendNow delivers body to contactName immediately.
func (s *Service) SendNow(ctx context.Context, platform store.Platform, contactName, body string) (dispatch.Result, error) {
	contact, platform, err := s.recipient(contactName, platform)
	if err != nil {
		return dispatch.Result{}, err
	}
	return s.sender.Dispatch(ctx, platform, contact.Recipient(), strings.TrimSpace(body)), nil
}

// SendEmail emails contactName. An empty body is drafted from subject; the
// body actually sent is returned alongside the delivery result.
func (s *Service) SendEmail(ctx context.Context, contactName, subject, body string) (dispatch.Result, string, error) {
	contact, _, err := s.recipient(contactName, store.PlatformEmail)
	if err != nil {
		return dispatch.Result{}, "", err
	}

	subject = strings.TrimSpace(subject)
	body = strings.TrimSpace(body)
	if body == "" {
		if subject == "" || s.drafter == nil {
			return dispatch.Result{}, "", ErrNoEmailBody
		}
		body, err = s.drafter.DraftEmail(ctx, subject, contact.Name)
		if err != nil {
			return dispatch.Result{}, "", fmt.Errorf("failed to draft email: %w", err)
		}
		if body == "" {
			return dispatch.Result{}, "", ErrNoEmailBody
		}
		s.logger.DebugContext(ctx, "Drafted email body", "contact", contact.Name, "subject", subject)
	}

	res := s.sender.Dispatch(ctx, store.PlatformEmail, contact.Recipient(), dispatch.WithSubject(subject, body))
	return res, body, nil
}

// AddReminder stores a local reminder. An unparseable time falls back to now,
// which is reported through the returned bool.
func (s *Service) AddReminder(ctx context.Context, title, when, category string, recurrence store.Recurrence) (store.ScheduledItem, bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return store.ScheduledItem{}, false, errors.New("reminder title is required")
	}

	now := s.now()
	due, resolved := s.resolver.Resolve(when, now)
	if !resolved {
		s.logger.WarnContext(ctx, "Reminder time not understood, using now", "when", when)
		due = now
	}

	item, err := s.reminders.Add(store.ScheduledItem{
		Title:      title,
		Category:   strings.ToLower(strings.TrimSpace(category)),
		DueAt:      due,
		Recurrence: recurrence,
	}, now)
	if err != nil {
		return store.ScheduledItem{}, resolved, fmt.Errorf("failed to store reminder: %w", err)
	}

	s.logger.InfoContext(ctx, "Reminder added", "item_id", item.ID, "due_at", due, "recurrence", recurrence)
	return item, resolved, nil
}

// AddTodo appends a pending to-do.
func (s *Service) AddTodo(text, priority string) (store.Todo, error) {
	if strings.TrimSpace(text) == "" {
		return store.Todo{}, errors.New("todo text is required")
	}
	return s.todos.Add(text, priority, s.now())
}

// AddShopping appends a pending shopping item.
func (s *Service) AddShopping(text, quantity string) (store.ShoppingItem, error) {
	if strings.TrimSpace(text) == "" {
		return store.ShoppingItem{}, errors.New("shopping item is required")
	}
	return s.shopping.Add(text, quantity, s.now())
}

// ToggleTodo flips a to-do between pending and completed.
func (s *Service) ToggleTodo(id int64) (store.Todo, error) {
	return s.todos.Toggle(id)
}

// ToggleShopping flips a shopping item between pending and completed.
func (s *Service) ToggleShopping(id int64) (store.ShoppingItem, error) {
	return s.shopping.Toggle(id)
}

// Delete removes an item. Deleting a scheduled message or reminder before it
// is due cancels it.
func (s *Service) Delete(kind string, id int64) error {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "message", "messages":
		return s.messages.Remove(id)
	case "reminder", "reminders":
		return s.reminders.Remove(id)
	case "todo", "todos":
		return s.todos.Remove(id)
	case "shopping", "shop":
		return s.shopping.Remove(id)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// AddContact creates or updates an address book entry.
func (s *Service) AddContact(name, email, phone, telegramID string) (store.Contact, error) {
	return s.contacts.Upsert(store.Contact{
		Name:       name,
		Email:      strings.TrimSpace(email),
		Phone:      strings.TrimSpace(phone),
		TelegramID: strings.TrimSpace(telegramID),
	})
}

// SetAutoReply sets or clears (nil) a contact's auto-reply override.
func (s *Service) SetAutoReply(name string, enabled *bool) error {
	return s.contacts.SetAutoReply(name, enabled)
}

// Messages returns the scheduled messages in insertion order.
func (s *Service) Messages() []store.ScheduledItem { return s.messages.All() }

// Reminders returns the reminders in insertion order.
func (s *Service) Reminders() []store.ScheduledItem { return s.reminders.All() }

// Todos returns the to-do list.
func (s *Service) Todos() []store.Todo { return s.todos.All() }

// ShoppingList returns the shopping list.
func (s *Service) ShoppingList() []store.ShoppingItem { return s.shopping.All() }

// Contacts returns the address book.
func (s *Service) Contacts() []store.Contact { return s.contacts.All() }

// Location returns the zone used to display and resolve times.
func (s *Service) Location() *time.Location { return s.resolver.Location() }

// recipient resolves contactName and picks the delivery platform. An empty
// platform selects the first channel the contact has an address for.
func (s *Service) recipient(contactName string, platform store.Platform) (store.Contact, store.Platform, error) {
	contact, ok := s.contacts.FindByName(contactName)
	if !ok {
		return store.Contact{}, "", fmt.Errorf("%w: %q", ErrContactNotFound, contactName)
	}
	if platform != "" && platform != store.PlatformNone {
		return contact, platform, nil
	}
	switch {
	case contact.TelegramID != "":
		return contact, store.PlatformTelegram, nil
	case contact.Phone != "":
		return contact, store.PlatformWhatsApp, nil
	case contact.Email != "":
		return contact, store.PlatformEmail, nil
	}
	return store.Contact{}, "", fmt.Errorf("%w: %s", ErrNoPlatform, contact.Name)
}

// ParsePlatform accepts the user-facing channel names.
func ParsePlatform(s string) (store.Platform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "null", "none":
		return "", nil
	case "telegram", "tg":
		return store.PlatformTelegram, nil
	case "whatsapp", "wa":
		return store.PlatformWhatsApp, nil
	case "email", "mail", "e-mail":
		return store.PlatformEmail, nil
	default:
		return "", fmt.Errorf("unknown platform %q", s)
	}
}
