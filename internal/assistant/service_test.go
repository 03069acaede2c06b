package assistant

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
	"github.com/edgard/herald/internal/timeparse"
)

var now = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type sentMessage struct {
	platform  store.Platform
	recipient store.Recipient
	body      string
}

type fakeSender struct {
	mu   sync.Mutex
	sent []sentMessage
}

func (f *fakeSender) Dispatch(_ context.Context, p store.Platform, r store.Recipient, body string) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentMessage{p, r, body})
	return dispatch.Result{Success: true, Message: "Telegram message sent."}
}

type fakeParser struct {
	intent *ai.Intent
	err    error
	names  []string
}

func (f *fakeParser) ParseIntent(_ context.Context, _ string, names []string) (*ai.Intent, error) {
	f.names = names
	return f.intent, f.err
}

type fakeDrafter struct {
	err   error
	calls int
}

func (f *fakeDrafter) DraftEmail(_ context.Context, subject, recipientName string) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return "Hi " + recipientName + ",\n\nAbout " + subject + ".", nil
}

func newService(t *testing.T, parser IntentParser) (*Service, *fakeSender) {
	t.Helper()
	dir := t.TempDir()
	contacts := store.NewContacts(filepath.Join(dir, "contacts.json"), nil)
	if _, err := contacts.Upsert(store.Contact{Name: "Mom", TelegramID: "100", Phone: "+15550100"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := contacts.Upsert(store.Contact{Name: "ann", Email: "ann@example.com"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := contacts.Upsert(store.Contact{Name: "ghost"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	sender := &fakeSender{}
	svc := New(Deps{
		Messages:  store.NewSchedule(store.KindMessage, filepath.Join(dir, "messages.json"), time.UTC, nil),
		Reminders: store.NewSchedule(store.KindReminder, filepath.Join(dir, "reminders.json"), time.UTC, nil),
		Contacts:  contacts,
		Todos:     store.NewTodoList(filepath.Join(dir, "todo.json"), time.UTC, nil),
		Shopping:  store.NewShoppingList(filepath.Join(dir, "shopping.json"), nil),
		Resolver:  timeparse.New(time.UTC),
		Sender:    sender,
		Parser:    parser,
		Drafter:   &fakeDrafter{},
		Now:       func() time.Time { return now },
	})
	return svc, sender
}

func TestScheduleMessage(t *testing.T) {
	t.Parallel()

	svc, sender := newService(t, nil)
	item, err := svc.ScheduleMessage(context.Background(), "", "mom", "running late", "2026-05-04 18:30")
	if err != nil {
		t.Fatalf("ScheduleMessage() error = %v", err)
	}

	if item.Kind != store.KindMessage || item.Status != store.StatusPending || item.Platform != store.PlatformTelegram {
		t.Errorf("item = %+v", item)
	}
	if item.Recipient.TelegramID != "100" || item.Recipient.Name != "mom" {
		t.Errorf("recipient = %+v", item.Recipient)
	}
	if want := time.Date(2026, 5, 4, 18, 30, 0, 0, time.UTC); !item.DueAt.Equal(want) {
		t.Errorf("DueAt = %v, want %v", item.DueAt, want)
	}
	if len(sender.sent) != 0 {
		t.Error("scheduling sent a message immediately")
	}
	if got := svc.Messages(); len(got) != 1 {
		t.Errorf("Messages() has %d items, want 1", len(got))
	}
}

func TestScheduleMessageErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		platform store.Platform
		contact  string
		when     string
		wantErr  error
	}{
		{"unknown contact", "", "zed", "tomorrow 9am", ErrContactNotFound},
		{"unparseable time", "", "mom", "blorp flarg", ErrUnresolvedTime},
		{"contact without address", "", "ghost", "tomorrow 9am", ErrNoPlatform},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, _ := newService(t, nil)
			_, err := svc.ScheduleMessage(context.Background(), tt.platform, tt.contact, "hi", tt.when)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ScheduleMessage() error = %v, want %v", err, tt.wantErr)
			}
			if len(svc.Messages()) != 0 {
				t.Error("failed request stored a message")
			}
		})
	}
}

func TestSendNowPicksPlatform(t *testing.T) {
	t.Parallel()

	svc, sender := newService(t, nil)
	if _, err := svc.SendNow(context.Background(), "", "ann", "hello"); err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}
	if _, err := svc.SendNow(context.Background(), store.PlatformWhatsApp, "mom", "hey"); err != nil {
		t.Fatalf("SendNow() error = %v", err)
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d messages, want 2", len(sender.sent))
	}
	if sender.sent[0].platform != store.PlatformEmail || sender.sent[0].recipient.Email != "ann@example.com" {
		t.Errorf("first send = %+v", sender.sent[0])
	}
	if sender.sent[1].platform != store.PlatformWhatsApp || sender.sent[1].recipient.Phone != "+15550100" {
		t.Errorf("second send = %+v", sender.sent[1])
	}
}

func TestSendEmail(t *testing.T) {
	t.Parallel()

	svc, sender := newService(t, nil)
	drafter := &fakeDrafter{}
	svc.drafter = drafter

	_, body, err := svc.SendEmail(context.Background(), "ann", "the invoice", "")
	if err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if body != "Hi ann,\n\nAbout the invoice." || drafter.calls != 1 {
		t.Errorf("drafted body = %q after %d calls", body, drafter.calls)
	}
	if _, _, err := svc.SendEmail(context.Background(), "ann", "", "see you at 5"); err != nil {
		t.Fatalf("SendEmail() error = %v", err)
	}
	if drafter.calls != 1 {
		t.Error("explicit body was drafted")
	}

	if len(sender.sent) != 2 {
		t.Fatalf("sent %d emails, want 2", len(sender.sent))
	}
	first := sender.sent[0]
	if first.platform != store.PlatformEmail || first.recipient.Email != "ann@example.com" {
		t.Errorf("first email = %+v", first)
	}
	if want := dispatch.WithSubject("the invoice", "Hi ann,\n\nAbout the invoice."); first.body != want {
		t.Errorf("first body = %q, want %q", first.body, want)
	}
	if sender.sent[1].body != "see you at 5" {
		t.Errorf("second body = %q", sender.sent[1].body)
	}
}

func TestSendEmailErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		contact string
		subject string
		draft   error
		wantErr error
	}{
		{"unknown contact", "zed", "hello", nil, ErrContactNotFound},
		{"nothing to draft from", "ann", "", nil, ErrNoEmailBody},
		{"draft fails", "ann", "hello", errors.New("model offline"), nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			svc, sender := newService(t, nil)
			svc.drafter = &fakeDrafter{err: tt.draft}
			_, _, err := svc.SendEmail(context.Background(), tt.contact, tt.subject, "")
			if err == nil {
				t.Fatal("SendEmail() expected error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("SendEmail() error = %v, want %v", err, tt.wantErr)
			}
			if len(sender.sent) != 0 {
				t.Error("failed request sent an email")
			}
		})
	}
}

func TestAddReminderFallsBackToNow(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	item, resolved, err := svc.AddReminder(context.Background(), "water plants", "blorp flarg", "Home", store.RecurrenceWeekly)
	if err != nil {
		t.Fatalf("AddReminder() error = %v", err)
	}
	if resolved {
		t.Error("AddReminder() reported an unparseable time as resolved")
	}
	if !item.DueAt.Equal(now) || item.Category != "home" || item.Recurrence != store.RecurrenceWeekly {
		t.Errorf("item = %+v", item)
	}

	item, resolved, err = svc.AddReminder(context.Background(), "standup", "10:00", "", "")
	if err != nil || !resolved {
		t.Fatalf("AddReminder() = %v, %v", resolved, err)
	}
	if want := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC); !item.DueAt.Equal(want) {
		t.Errorf("DueAt = %v, want %v", item.DueAt, want)
	}
}

func TestListsAndDelete(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	todo, err := svc.AddTodo("file taxes", "HIGH")
	if err != nil {
		t.Fatalf("AddTodo() error = %v", err)
	}
	if todo.Priority != "high" {
		t.Errorf("Priority = %q", todo.Priority)
	}
	toggled, err := svc.ToggleTodo(todo.ID)
	if err != nil || toggled.Status != store.ItemCompleted {
		t.Errorf("ToggleTodo() = %+v, %v", toggled, err)
	}

	milk, err := svc.AddShopping("milk", "")
	if err != nil || milk.Quantity != "1" {
		t.Fatalf("AddShopping() = %+v, %v", milk, err)
	}
	if _, err := svc.AddShopping("  ", "2"); err == nil {
		t.Error("AddShopping() accepted empty text")
	}

	if err := svc.Delete("shopping", milk.ID); err != nil {
		t.Errorf("Delete(shopping) error = %v", err)
	}
	if err := svc.Delete("shopping", milk.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("second Delete() error = %v, want ErrNotFound", err)
	}
	if err := svc.Delete("calendar", 1); !errors.Is(err, ErrUnknownKind) {
		t.Errorf("Delete(calendar) error = %v, want ErrUnknownKind", err)
	}

	msg, err := svc.ScheduleMessage(context.Background(), "", "mom", "x", "tomorrow 9am")
	if err != nil {
		t.Fatalf("ScheduleMessage() error = %v", err)
	}
	if err := svc.Delete("message", msg.ID); err != nil {
		t.Errorf("Delete(message) error = %v", err)
	}
	if len(svc.Messages()) != 0 || len(svc.ShoppingList()) != 0 || len(svc.Todos()) != 1 {
		t.Error("unexpected list contents after deletes")
	}
}

func TestExecute(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		intent    *ai.Intent
		wantErr   error
		errText   string
		wantReply string
		check     func(t *testing.T, svc *Service, sender *fakeSender)
	}{
		{
			name:    "no intent",
			wantErr: ErrNoIntent,
		},
		{
			name:      "send now",
			intent:    &ai.Intent{Action: ai.ActionSend, Recipient: "mom", Body: "on my way"},
			wantReply: "Telegram message sent.",
			check: func(t *testing.T, _ *Service, sender *fakeSender) {
				if len(sender.sent) != 1 || sender.sent[0].body != "on my way" {
					t.Errorf("sent = %+v", sender.sent)
				}
			},
		},
		{
			name:      "schedule falls back to name in text",
			intent:    &ai.Intent{Action: ai.ActionSchedule, Platform: "whatsapp", Body: "happy birthday", Time: "2026-05-06 08:00"},
			wantReply: "Scheduled whatsapp message to mom for Wed May 6 08:00",
			check: func(t *testing.T, svc *Service, _ *fakeSender) {
				if len(svc.Messages()) != 1 {
					t.Errorf("Messages() = %+v", svc.Messages())
				}
			},
		},
		{
			name:      "daily reminder",
			intent:    &ai.Intent{Action: ai.ActionReminder, Body: "pills", Time: "2026-05-04 21:00", Recurrence: "daily"},
			wantReply: "Reminder set: pills at Mon May 4 21:00 (daily)",
		},
		{
			name:      "todo",
			intent:    &ai.Intent{Action: ai.ActionTodo, Body: "call plumber"},
			wantReply: "Added to your to-do list: call plumber (medium priority)",
		},
		{
			name:      "shopping",
			intent:    &ai.Intent{Action: ai.ActionShopping, Body: "eggs", Quantity: "12"},
			wantReply: "Added to your shopping list: eggs x12",
		},
		{
			name:      "email drafted from subject",
			intent:    &ai.Intent{Action: ai.ActionEmail, Recipient: "ann", Subject: "lunch friday"},
			wantReply: "Telegram message sent.",
			check: func(t *testing.T, _ *Service, sender *fakeSender) {
				if len(sender.sent) != 1 || sender.sent[0].platform != store.PlatformEmail {
					t.Fatalf("sent = %+v", sender.sent)
				}
				if !strings.HasPrefix(sender.sent[0].body, "Subject: lunch friday\n\nHi ann,") {
					t.Errorf("body = %q", sender.sent[0].body)
				}
			},
		},
		{
			name:    "bad platform",
			intent:  &ai.Intent{Action: ai.ActionSend, Platform: "pigeon", Recipient: "mom", Body: "x"},
			errText: "pigeon",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			parser := &fakeParser{intent: tt.intent}
			svc, sender := newService(t, parser)
			reply, err := svc.Execute(context.Background(), "please text mom happy birthday on wednesday")

			if tt.errText != "" {
				if err == nil || !strings.Contains(err.Error(), tt.errText) {
					t.Errorf("Execute() error = %v, want mention of %q", err, tt.errText)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Execute() error = %v, want %v", err, tt.wantErr)
			}
			if reply != tt.wantReply {
				t.Errorf("Execute() = %q, want %q", reply, tt.wantReply)
			}
			if len(parser.names) != 3 {
				t.Errorf("parser got contact names %v", parser.names)
			}
			if tt.check != nil {
				tt.check(t, svc, sender)
			}
		})
	}
}

func TestExecuteParserError(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, &fakeParser{err: errors.New("model offline")})
	if _, err := svc.Execute(context.Background(), "remind me"); err == nil || errors.Is(err, ErrNoIntent) {
		t.Errorf("Execute() error = %v, want wrapped parser error", err)
	}
}

func TestParsePlatform(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    store.Platform
		wantErr bool
	}{
		{"", "", false},
		{"null", "", false},
		{"TG", store.PlatformTelegram, false},
		{"WhatsApp", store.PlatformWhatsApp, false},
		{"e-mail", store.PlatformEmail, false},
		{"fax", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePlatform(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePlatform(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestDescribe(t *testing.T) {
	t.Parallel()

	svc, _ := newService(t, nil)
	due := time.Date(2026, 5, 4, 7, 5, 0, 0, time.UTC)
	got := svc.Describe(store.ScheduledItem{
		ID: 7, Kind: store.KindReminder, Status: store.StatusPending, Title: "stretch",
		DueAt: due, Recurrence: store.RecurrenceDaily, Category: "health",
	})
	if want := "#7 [pending] Mon May 4 07:05 stretch (daily) #health"; got != want {
		t.Errorf("Describe() = %q, want %q", got, want)
	}
}
