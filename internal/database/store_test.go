package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/store"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewDB() error = %v", err)
	}
	t.Cleanup(func() { CloseDB(db) })
	return NewStore(db, nil)
}

func TestRecordAndListDeliveries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t)
	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	attempts := []dispatch.Attempt{
		{ItemID: 1, Kind: "message", Platform: store.PlatformTelegram, Recipient: store.Recipient{Name: "mom", TelegramID: "42"}, Body: "first", Result: dispatch.Result{Success: true, Message: "Telegram message sent."}, At: base},
		{ItemID: 2, Kind: "message", Platform: store.PlatformWhatsApp, Recipient: store.Recipient{Name: "bob"}, Body: "second", Result: dispatch.Result{Message: "No phone number configured for bob."}, At: base.Add(time.Minute)},
		{Kind: "direct", Platform: store.PlatformEmail, Recipient: store.Recipient{Name: "ann", Email: "ann@example.com"}, Body: "third", Result: dispatch.Result{Success: true, Message: "Email sent."}, At: base.Add(2 * time.Minute)},
	}
	for _, a := range attempts {
		if err := s.RecordAttempt(ctx, a); err != nil {
			t.Fatalf("RecordAttempt() error = %v", err)
		}
	}

	got, err := s.RecentDeliveries(ctx, 2)
	if err != nil {
		t.Fatalf("RecentDeliveries() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("RecentDeliveries() returned %d rows, want 2", len(got))
	}
	if got[0].Body != "third" || got[0].RecipientAddress != "ann@example.com" || !got[0].Success {
		t.Errorf("newest delivery = %+v", got[0])
	}
	if got[1].Body != "second" || got[1].Success || got[1].Detail != "No phone number configured for bob." || got[1].ItemID != 2 {
		t.Errorf("second delivery = %+v", got[1])
	}
	if !got[1].AttemptedAt.Equal(base.Add(time.Minute)) {
		t.Errorf("AttemptedAt = %v, want %v", got[1].AttemptedAt, base.Add(time.Minute))
	}

	n, err := s.PruneDeliveries(ctx, base.Add(90*time.Second))
	if err != nil {
		t.Fatalf("PruneDeliveries() error = %v", err)
	}
	if n != 2 {
		t.Errorf("PruneDeliveries() = %d, want 2", n)
	}
	if err := s.RunSQLMaintenance(ctx); err != nil {
		t.Errorf("RunSQLMaintenance() error = %v", err)
	}

	left, err := s.RecentDeliveries(ctx, 0)
	if err != nil || len(left) != 1 {
		t.Errorf("RecentDeliveries() after prune = %d rows, err %v", len(left), err)
	}
}

func TestNewDBIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 2; i++ {
		db, err := NewDB(path)
		if err != nil {
			t.Fatalf("NewDB() pass %d error = %v", i, err)
		}
		CloseDB(db)
	}
}

func TestExtractDBNameFromPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"herald.db":                    "herald.db",
		"file:herald.db?cache=shared":  "herald.db",
		"file:/tmp/my%20dir/herald.db": "/tmp/my dir/herald.db",
	}
	for in, want := range tests {
		if got := ExtractDBNameFromPath(in); got != want {
			t.Errorf("ExtractDBNameFromPath(%q) = %q, want %q", in, got, want)
		}
	}
}
