package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/assistant"
	"github.com/edgard/herald/internal/config"
	"github.com/edgard/herald/internal/database"
	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/inbound"
	"github.com/edgard/herald/internal/store"
	"github.com/edgard/herald/internal/timeparse"
)

const adminID = 42

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakeSender) Dispatch(_ context.Context, p store.Platform, r store.Recipient, body string) dispatch.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, string(p)+":"+r.Name+":"+body)
	return dispatch.Result{Success: true, Message: "Sent."}
}

func (f *fakeSender) Reply(ctx context.Context, p store.Platform, r store.Recipient, body string) dispatch.Result {
	return f.Dispatch(ctx, p, r, body)
}

type fakeModel struct{}

func (fakeModel) ClassifySentiment(context.Context, string) (ai.Sentiment, error) {
	return ai.Sentiment{Sentiment: ai.SentimentPositive, Emotion: "happy"}, nil
}

func (fakeModel) GenerateReply(context.Context, string, string) (string, error) {
	return "Glad to hear it!", nil
}

func (fakeModel) DraftEmail(_ context.Context, subject, recipientName string) (string, error) {
	return "Dear " + recipientName + ", re " + subject + ".", nil
}

type fakeParser struct {
	intent *ai.Intent
	err    error
}

func (f fakeParser) ParseIntent(context.Context, string, []string) (*ai.Intent, error) {
	return f.intent, f.err
}

type fixture struct {
	deps    HandlerDeps
	sender  *fakeSender
	journal database.Store
}

func newFixture(t *testing.T, parser assistant.IntentParser) fixture {
	t.Helper()

	dir := t.TempDir()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := &config.Config{}
	cfg.Telegram.AdminUserID = adminID
	cfg.Messages = config.MessagesConfig{
		Welcome:       "hello",
		NotAuthorized: "not authorized",
		GeneralError:  "something went wrong",
		NotUnderstood: "not understood.",
		Usage:         "Usage: %s",
	}

	contacts := store.NewContacts(filepath.Join(dir, "contacts.json"), log)
	if _, err := contacts.Upsert(store.Contact{Name: "mom", TelegramID: "100"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	sender := &fakeSender{}
	svc := assistant.New(assistant.Deps{
		Messages:  store.NewSchedule(store.KindMessage, filepath.Join(dir, "messages.json"), time.UTC, log),
		Reminders: store.NewSchedule(store.KindReminder, filepath.Join(dir, "reminders.json"), time.UTC, log),
		Contacts:  contacts,
		Todos:     store.NewTodoList(filepath.Join(dir, "todo.json"), time.UTC, log),
		Shopping:  store.NewShoppingList(filepath.Join(dir, "shopping.json"), log),
		Resolver:  timeparse.New(time.UTC),
		Sender:    sender,
		Parser:    parser,
		Drafter:   fakeModel{},
		Logger:    log,
		Now:       func() time.Time { return fixedNow },
	})

	db, err := database.NewDB(filepath.Join(dir, "herald.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { database.CloseDB(db) })
	journal := database.NewStore(db, log)

	pipeline := inbound.NewPipeline(fakeModel{}, contacts, sender, config.InboundConfig{SentimentEnabled: true, LogCapacity: 10}, log)

	return fixture{
		deps: HandlerDeps{
			Logger:    log,
			Config:    cfg,
			Assistant: svc,
			Pipeline:  pipeline,
			Journal:   journal,
		},
		sender:  sender,
		journal: journal,
	}
}

func TestCommandArgs(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/send mom hi there":        "mom hi there",
		"/send@herald_bot mom hi":   "mom hi",
		"/list":                     "",
		"  /todo   buy milk  ":      "buy milk",
		"plain text is left intact": "plain text is left intact",
	}
	for in, want := range tests {
		if got := commandArgs(in); got != want {
			t.Errorf("commandArgs(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSplitMessage(t *testing.T) {
	t.Parallel()

	if got := splitMessage("short", 10); len(got) != 1 || got[0] != "short" {
		t.Errorf("splitMessage(short) = %q", got)
	}

	text := "aaaa\nbbbb\ncccc"
	got := splitMessage(text, 10)
	if len(got) != 2 || got[0] != "aaaa\nbbbb" || got[1] != "cccc" {
		t.Errorf("splitMessage(lines) = %q", got)
	}

	long := strings.Repeat("é", 25)
	parts := splitMessage(long, 10)
	if len(parts) != 3 || parts[2] != strings.Repeat("é", 5) {
		t.Errorf("splitMessage(long line) = %q", parts)
	}
}

func TestMessageCommands(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	tests := []struct {
		name string
		run  func(context.Context, string) string
		args string
		want string
	}{
		{"send", sendHandler{f.deps}.run, "mom on my way", "Sent."},
		{"send with platform", sendHandler{f.deps}.run, "telegram mom hi", "Sent."},
		{"send missing body", sendHandler{f.deps}.run, "mom", "Usage: " + sendSyntax},
		{"send unknown contact", sendHandler{f.deps}.run, "zed hi", `Error: contact not found: "zed"`},
		{"schedule", scheduleHandler{f.deps}.run, "mom 2026-06-02 09:30 | good morning", "Scheduled telegram message #"},
		{"schedule no separator", scheduleHandler{f.deps}.run, "mom tomorrow hi", "Usage: " + scheduleSyntax},
		{"schedule bad time", scheduleHandler{f.deps}.run, "mom blorp | hi", "Error: could not understand the time"},
	}
	for _, tt := range tests {
		got := tt.run(ctx, tt.args)
		if !strings.HasPrefix(got, tt.want) {
			t.Errorf("%s: got %q, want prefix %q", tt.name, got, tt.want)
		}
	}

	if len(f.sender.sent) != 2 || f.sender.sent[0] != "telegram:mom:on my way" {
		t.Errorf("sent = %v", f.sender.sent)
	}
	if msgs := f.deps.Assistant.Messages(); len(msgs) != 1 || msgs[0].Body != "good morning" {
		t.Errorf("Messages() = %+v", msgs)
	}
}

func TestEmailCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	run := emailHandler{f.deps}.run

	if got := run(ctx, "mom dinner plans"); got != "Sent.\n\nDear mom, re dinner plans." {
		t.Errorf("drafted email reply = %q", got)
	}
	if got := run(ctx, "mom dinner | see you at 8"); got != "Sent." {
		t.Errorf("email reply = %q", got)
	}
	for _, args := range []string{"", "mom", "mom a | b | c"} {
		if got := run(ctx, args); got != "Usage: "+emailSyntax {
			t.Errorf("email %q = %q, want usage", args, got)
		}
	}
	if got := run(ctx, "zed hello"); got != `Error: contact not found: "zed"` {
		t.Errorf("unknown contact reply = %q", got)
	}

	want := []string{
		"email:mom:Subject: dinner plans\n\nDear mom, re dinner plans.",
		"email:mom:Subject: dinner\n\nsee you at 8",
	}
	if len(f.sender.sent) != len(want) {
		t.Fatalf("sent = %q, want %q", f.sender.sent, want)
	}
	for i := range want {
		if f.sender.sent[i] != want[i] {
			t.Errorf("sent[%d] = %q, want %q", i, f.sender.sent[i], want[i])
		}
	}
}

func TestRemindCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	h := remindHandler{f.deps}

	got := h.run(context.Background(), "2026-06-01 18:00 | stretch | daily | health")
	if want := "Reminder added: #"; !strings.HasPrefix(got, want) || !strings.Contains(got, "stretch (daily) #health") {
		t.Errorf("run() = %q", got)
	}

	got = h.run(context.Background(), "blorp | water plants")
	if !strings.Contains(got, `Could not understand "blorp"`) {
		t.Errorf("run(unparseable) = %q", got)
	}

	if got := h.run(context.Background(), "tomorrow | x | hourly"); !strings.Contains(got, "unknown recurrence") {
		t.Errorf("run(bad recurrence) = %q", got)
	}
	if got := h.run(context.Background(), "tomorrow"); got != "Usage: "+remindSyntax {
		t.Errorf("run(no title) = %q", got)
	}

	reminders := f.deps.Assistant.Reminders()
	if len(reminders) != 2 || reminders[0].Recurrence != store.RecurrenceDaily || !reminders[1].DueAt.Equal(fixedNow) {
		t.Errorf("Reminders() = %+v", reminders)
	}
}

func TestListCommands(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	if got := (todoHandler{f.deps}).run(ctx, "file taxes !high"); !strings.Contains(got, "file taxes (high priority)") {
		t.Errorf("todo = %q", got)
	}
	if got := (todoHandler{f.deps}).run(ctx, "call plumber"); !strings.Contains(got, "(medium priority)") {
		t.Errorf("todo default priority = %q", got)
	}
	if got := (todoHandler{f.deps}).run(ctx, "x !urgent"); got != "Usage: "+todoSyntax {
		t.Errorf("todo bad priority = %q", got)
	}
	if got := (shopHandler{f.deps}).run(ctx, "eggs x12"); !strings.HasSuffix(got, "eggs x12") {
		t.Errorf("shop = %q", got)
	}
	if got := (shopHandler{f.deps}).run(ctx, "xylophone"); !strings.HasSuffix(got, "xylophone x1") {
		t.Errorf("shop without quantity = %q", got)
	}

	todos := f.deps.Assistant.Todos()
	if len(todos) != 2 {
		t.Fatalf("Todos() = %+v", todos)
	}
	id := todos[0].ID

	done := doneHandler{f.deps}
	if got := done.run(ctx, "todo "+itoa(id)); !strings.HasSuffix(got, "is now completed") {
		t.Errorf("done = %q", got)
	}
	if got := done.run(ctx, "todo 1"); !strings.HasPrefix(got, "Error: item not found") {
		t.Errorf("done unknown id = %q", got)
	}
	if got := done.run(ctx, "calendar 5"); got != "Usage: "+doneSyntax {
		t.Errorf("done bad kind = %q", got)
	}

	del := deleteHandler{f.deps}
	if got := del.run(ctx, "todo #"+itoa(id)); got != "Deleted todo #"+itoa(id) {
		t.Errorf("delete = %q", got)
	}
	if got := del.run(ctx, "calendar 5"); !strings.HasPrefix(got, "Error: unknown item kind") {
		t.Errorf("delete bad kind = %q", got)
	}

	list := listHandler{f.deps}.run(ctx, "")
	for _, want := range []string{"Scheduled messages:", "Reminders:", "To-do:", "call plumber", "Shopping:", "eggs x12", "Contacts:", "mom telegram=100"} {
		if !strings.Contains(list, want) {
			t.Errorf("list missing %q:\n%s", want, list)
		}
	}
	if got := (listHandler{f.deps}).run(ctx, "shop"); strings.Contains(got, "To-do:") || !strings.Contains(got, "Shopping:") {
		t.Errorf("list shop = %q", got)
	}
}

func TestContactAndAutoReplyCommands(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()

	contact := contactHandler{f.deps}
	if got := contact.run(ctx, "Ann email=ann@example.com phone=+15550100"); got != "Saved contact ann phone=+15550100 email=ann@example.com" {
		t.Errorf("contact = %q", got)
	}
	if got := contact.run(ctx, "ann fax=1"); got != "Usage: "+contactSyntax {
		t.Errorf("contact bad field = %q", got)
	}

	auto := autoReplyHandler{f.deps}
	if got := auto.run(ctx, ""); got != "Global auto-reply is disabled" {
		t.Errorf("autoreply status = %q", got)
	}
	if got := auto.run(ctx, "on"); got != "Global auto-reply enabled" || !f.deps.Pipeline.GlobalAutoReply() {
		t.Errorf("autoreply on = %q", got)
	}
	if got := auto.run(ctx, "ann off"); got != "Auto-reply for ann disabled" {
		t.Errorf("autoreply contact = %q", got)
	}
	if got := auto.run(ctx, "ann default"); got != "Auto-reply for ann follows the global setting" {
		t.Errorf("autoreply default = %q", got)
	}
	if got := auto.run(ctx, "zed on"); !strings.HasPrefix(got, "Error: contact not found") {
		t.Errorf("autoreply unknown = %q", got)
	}

	sentiment := sentimentHandler{f.deps}
	if got := sentiment.run(ctx, "off"); got != "Sentiment analysis disabled" || f.deps.Pipeline.SentimentEnabled() {
		t.Errorf("sentiment off = %q", got)
	}
	if got := sentiment.run(ctx, ""); got != "Sentiment analysis is disabled" {
		t.Errorf("sentiment status = %q", got)
	}
}

func TestDefaultHandlerRouting(t *testing.T) {
	t.Parallel()

	parser := fakeParser{intent: &ai.Intent{Action: ai.ActionTodo, Body: "renew passport"}}
	f := newFixture(t, parser)
	h := defaultHandler{f.deps}
	ctx := context.Background()

	admin := &models.Message{From: &models.User{ID: adminID}, Chat: models.Chat{ID: adminID, Type: models.ChatTypePrivate}, Text: "remind me to renew my passport"}
	reply, ok := h.route(ctx, admin)
	if !ok || reply != "Added to your to-do list: renew passport (medium priority)" {
		t.Errorf("admin route = %q, %v", reply, ok)
	}

	unknownCmd := &models.Message{From: &models.User{ID: adminID}, Chat: models.Chat{ID: adminID, Type: models.ChatTypePrivate}, Text: "/frobnicate"}
	if reply, ok := h.route(ctx, unknownCmd); !ok || !strings.HasPrefix(reply, "not understood.") {
		t.Errorf("admin unknown command = %q, %v", reply, ok)
	}

	f.deps.Pipeline.SetGlobalAutoReply(true)
	stranger := &models.Message{
		From: &models.User{ID: 100, FirstName: "Mom"},
		Chat: models.Chat{ID: 100, Type: models.ChatTypePrivate},
		Text: "I got the job!",
		Date: int(fixedNow.Unix()),
	}
	if reply, ok := h.route(ctx, stranger); ok {
		t.Errorf("inbound route replied in chat: %q", reply)
	}

	group := &models.Message{From: &models.User{ID: 7}, Chat: models.Chat{ID: -5, Type: models.ChatTypeGroup}, Text: "hello all"}
	if _, ok := h.route(ctx, group); ok {
		t.Error("group message produced a reply")
	}

	entries := f.deps.Pipeline.InboundLog()
	if len(entries) != 1 || entries[0].SenderID != "100" || entries[0].SenderName != "Mom" || entries[0].Sentiment != "positive" {
		t.Fatalf("InboundLog() = %+v", entries)
	}
	if len(f.sender.sent) != 1 || f.sender.sent[0] != "telegram:mom:Glad to hear it!" {
		t.Errorf("auto reply sent = %v", f.sender.sent)
	}

	inbox := inboxHandler{f.deps}.run(ctx, "")
	if !strings.Contains(inbox, "I got the job!") || !strings.Contains(inbox, "to mom (happy): Glad to hear it!") {
		t.Errorf("inbox = %q", inbox)
	}
}

func TestDefaultHandlerExecuteError(t *testing.T) {
	t.Parallel()

	f := newFixture(t, fakeParser{err: errors.New("model offline")})
	admin := &models.Message{From: &models.User{ID: adminID}, Chat: models.Chat{ID: adminID}, Text: "do something"}
	if reply, _ := (defaultHandler{f.deps}).route(context.Background(), admin); reply != "something went wrong" {
		t.Errorf("route() = %q", reply)
	}

	f = newFixture(t, fakeParser{})
	if reply, _ := (defaultHandler{f.deps}).route(context.Background(), admin); reply != "not understood." {
		t.Errorf("route(no intent) = %q", reply)
	}
}

func TestDeliveriesCommand(t *testing.T) {
	t.Parallel()

	f := newFixture(t, nil)
	ctx := context.Background()
	h := deliveriesHandler{f.deps}

	if got := h.run(ctx, ""); got != "No deliveries recorded yet." {
		t.Errorf("empty journal = %q", got)
	}

	for i, ok := range []bool{true, false} {
		err := f.journal.RecordAttempt(ctx, dispatch.Attempt{
			ItemID:    int64(i + 1),
			Kind:      string(store.KindMessage),
			Platform:  store.PlatformTelegram,
			Recipient: store.Recipient{Name: "mom", TelegramID: "100"},
			Body:      "hello",
			Result:    dispatch.Result{Success: ok, Message: "detail"},
			At:        fixedNow.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}

	got := h.run(ctx, "5")
	lines := strings.Split(got, "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "FAILED telegram to mom") || !strings.Contains(lines[1], " ok telegram") {
		t.Errorf("deliveries = %q", got)
	}
	if got := h.run(ctx, "lots"); got != "Usage: /deliveries [count]" {
		t.Errorf("bad count = %q", got)
	}

	f.deps.Journal = nil
	if got := (deliveriesHandler{f.deps}).run(ctx, ""); got != "Delivery journal is not configured." {
		t.Errorf("nil journal = %q", got)
	}
}

func TestHelpTextAndRegistry(t *testing.T) {
	t.Parallel()

	if got := helpText(false); strings.Contains(got, "/send") || !strings.Contains(got, "/help") {
		t.Errorf("non-admin help = %q", got)
	}
	if got := helpText(true); !strings.Contains(got, "/deliveries") {
		t.Errorf("admin help = %q", got)
	}

	f := newFixture(t, nil)
	registered := RegisterAllCommands(f.deps)
	if len(registered) != len(Commands()) || len(BotCommands()) != len(Commands()) {
		t.Fatalf("registered %d handlers for %d commands", len(registered), len(Commands()))
	}
	if len(registered["/start"].Middleware) != 0 || len(registered["/send"].Middleware) != 1 {
		t.Error("admin middleware applied to the wrong commands")
	}
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
