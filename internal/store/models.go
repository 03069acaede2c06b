package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Kind distinguishes the two flavours of scheduled item.
type Kind string

const (
	KindMessage  Kind = "message"
	KindReminder Kind = "reminder"
)

// Platform is the delivery channel tag stored on an item or used by an inbound message.
type Platform string

const (
	PlatformNone     Platform = "none"
	PlatformTelegram Platform = "telegram"
	PlatformWhatsApp Platform = "whatsapp"
	PlatformEmail    Platform = "email"
)

// Status is the lifecycle state of a scheduled item.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusTriggered Status = "triggered"
)

// Recurrence controls whether a fired reminder is rescheduled.
type Recurrence string

const (
	RecurrenceNone   Recurrence = "none"
	RecurrenceDaily  Recurrence = "daily"
	RecurrenceWeekly Recurrence = "weekly"
)

// Period returns the fixed reschedule interval, or zero for non-recurring items.
func (r Recurrence) Period() time.Duration {
	switch r {
	case RecurrenceDaily:
		return 24 * time.Hour
	case RecurrenceWeekly:
		return 7 * 24 * time.Hour
	default:
		return 0
	}
}

// ParseRecurrence accepts the user-facing spellings of a recurrence rule.
func ParseRecurrence(s string) (Recurrence, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none", "once", "null":
		return RecurrenceNone, nil
	case "daily", "day", "every day":
		return RecurrenceDaily, nil
	case "weekly", "week", "every week":
		return RecurrenceWeekly, nil
	default:
		return "", fmt.Errorf("unknown recurrence %q", s)
	}
}

// Recipient is the contact reference captured when an item was scheduled.
// Only the field matching the item's platform is used at delivery time.
type Recipient struct {
	Name       string `json:"name,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TelegramID string `json:"telegram_id,omitempty"`
	Email      string `json:"email,omitempty"`
}

// ScheduledItem is a message or reminder waiting for its due time.
type ScheduledItem struct {
	ID         int64      `json:"id"`
	Kind       Kind       `json:"kind"`
	Platform   Platform   `json:"platform"`
	Recipient  Recipient  `json:"recipient"`
	Title      string     `json:"title,omitempty"`
	Body       string     `json:"body"`
	Category   string     `json:"category,omitempty"`
	DueAt      time.Time  `json:"due_at"`
	Status     Status     `json:"status"`
	Recurrence Recurrence `json:"recurrence"`
	CreatedAt  time.Time  `json:"created_at,omitempty"`
}

// Label is the text announced when a reminder fires.
func (s ScheduledItem) Label() string {
	if s.Title != "" {
		return s.Title
	}
	return s.Body
}

// naiveLayouts are accepted for due_at values written without an offset.
var naiveLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTimestamp reads an RFC 3339 timestamp, or a naive one in loc.
func parseTimestamp(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, nil
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

// scheduledItemDecoder decodes items whose naive timestamps are in loc and
// rejects records the scheduler cannot act on.
func scheduledItemDecoder(loc *time.Location) func([]byte, *ScheduledItem) error {
	return func(data []byte, s *ScheduledItem) error {
		type alias ScheduledItem
		aux := struct {
			*alias
			DueAt     string `json:"due_at"`
			CreatedAt string `json:"created_at"`
		}{alias: (*alias)(s)}

		if err := json.Unmarshal(data, &aux); err != nil {
			return err
		}

		due, err := parseTimestamp(aux.DueAt, loc)
		if err != nil {
			return fmt.Errorf("item %d: due_at: %w", s.ID, err)
		}
		s.DueAt = due

		if aux.CreatedAt != "" {
			if created, err := parseTimestamp(aux.CreatedAt, loc); err == nil {
				s.CreatedAt = created
			}
		}

		if s.Recurrence == "" {
			s.Recurrence = RecurrenceNone
		}
		if s.Platform == "" {
			s.Platform = PlatformNone
		}
		return s.validate()
	}
}

func (s *ScheduledItem) validate() error {
	switch s.Kind {
	case KindMessage, KindReminder:
	default:
		return fmt.Errorf("item %d: unknown kind %q", s.ID, s.Kind)
	}
	switch s.Status {
	case StatusPending, StatusSent, StatusTriggered:
	default:
		return fmt.Errorf("item %d: unknown status %q", s.ID, s.Status)
	}
	switch s.Recurrence {
	case RecurrenceNone, RecurrenceDaily, RecurrenceWeekly:
	default:
		return fmt.Errorf("item %d: unknown recurrence %q", s.ID, s.Recurrence)
	}
	return nil
}

// Contact is an address book entry. AutoReply, when set, overrides the global auto-reply flag.
type Contact struct {
	Name       string `json:"name"`
	Email      string `json:"email,omitempty"`
	Phone      string `json:"phone,omitempty"`
	TelegramID string `json:"telegram_id,omitempty"`
	AutoReply  *bool  `json:"auto_reply,omitempty"`
}

// Recipient snapshots the contact's addresses for a scheduled item.
func (c Contact) Recipient() Recipient {
	return Recipient{
		Name:       c.Name,
		Phone:      c.Phone,
		TelegramID: c.TelegramID,
		Email:      c.Email,
	}
}

// ItemStatus is the state of a to-do or shopping entry.
type ItemStatus string

const (
	ItemPending   ItemStatus = "pending"
	ItemCompleted ItemStatus = "completed"
)

func (s ItemStatus) toggled() ItemStatus {
	if s == ItemPending {
		return ItemCompleted
	}
	return ItemPending
}

// Todo is a to-do list entry.
type Todo struct {
	ID        int64      `json:"id"`
	Text      string     `json:"text"`
	Priority  string     `json:"priority,omitempty"`
	Status    ItemStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at,omitempty"`
}

// todoDecoder decodes to-dos whose created_at may be naive (read in loc).
// An unreadable created_at is dropped rather than losing the entry.
func todoDecoder(loc *time.Location) func([]byte, *Todo) error {
	return func(data []byte, t *Todo) error {
		type alias Todo
		aux := struct {
			*alias
			Item      string `json:"item"`
			CreatedAt any    `json:"created_at"`
		}{alias: (*alias)(t)}

		if err := json.Unmarshal(data, &aux); err != nil {
			return err
		}
		if t.Text == "" {
			t.Text = aux.Item
		}
		if raw, ok := aux.CreatedAt.(string); ok && raw != "" {
			if created, err := parseTimestamp(raw, loc); err == nil {
				t.CreatedAt = created
			}
		}
		if t.Status == "" {
			t.Status = ItemPending
		}
		return nil
	}
}

// ShoppingItem is a shopping list entry.
type ShoppingItem struct {
	ID       int64      `json:"id"`
	Text     string     `json:"text"`
	Quantity string     `json:"quantity,omitempty"`
	Status   ItemStatus `json:"status"`
}
