package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
telegram:
  token: "123:abc"
  admin_user_id: 42
`

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Logger.Level != "info" || cfg.AI.Provider != "ollama" || cfg.AI.Model != "llama3.2" {
		t.Errorf("unexpected defaults: logger=%+v ai=%+v", cfg.Logger, cfg.AI)
	}
	if cfg.Inbound.LogCapacity != 200 || !cfg.Inbound.SentimentEnabled || cfg.Inbound.GlobalAutoReply {
		t.Errorf("unexpected inbound defaults: %+v", cfg.Inbound)
	}
	if cfg.Database.Retention != 30*24*time.Hour {
		t.Errorf("Retention = %v, want 720h", cfg.Database.Retention)
	}
	if cfg.Channels.SendTimeout != 30*time.Second {
		t.Errorf("SendTimeout = %v, want 30s", cfg.Channels.SendTimeout)
	}

	tasks := cfg.Scheduler.Tasks
	if got := tasks[TaskReminderDelivery].Interval; got != 10*time.Second {
		t.Errorf("reminder interval = %v, want 10s", got)
	}
	if got := tasks[TaskMessageDelivery].Interval; got != time.Minute {
		t.Errorf("message interval = %v, want 1m", got)
	}
	if got := tasks[TaskSQLMaintenance].Schedule; got == "" {
		t.Error("sql maintenance schedule is empty")
	}
	if cfg.Scheduler.Location() != time.Local {
		t.Errorf("Location() = %v, want Local", cfg.Scheduler.Location())
	}
	if got := cfg.Storage.Path(cfg.Storage.ContactsFile); got != filepath.Join("data", "contacts.json") {
		t.Errorf("contacts path = %q", got)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := LoadConfig(writeConfig(t, minimalConfig+`
scheduler:
  timezone: Europe/Lisbon
  tasks:
    reminder_delivery:
      enabled: false
      interval: 5s
storage:
  dir: /var/lib/herald
  todo_file: /tmp/todo.json
`))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Scheduler.Location().String() != "Europe/Lisbon" {
		t.Errorf("Location() = %v", cfg.Scheduler.Location())
	}
	task := cfg.Scheduler.Tasks[TaskReminderDelivery]
	if task.Enabled || task.Interval != 5*time.Second {
		t.Errorf("reminder task = %+v", task)
	}
	if got := cfg.Storage.Path(cfg.Storage.TodoFile); got != "/tmp/todo.json" {
		t.Errorf("absolute todo path = %q", got)
	}
	if got := cfg.Storage.Path(cfg.Storage.ShoppingFile); got != "/var/lib/herald/shopping.json" {
		t.Errorf("shopping path = %q", got)
	}
}

func TestLoadConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"missing token", "telegram:\n  admin_user_id: 1\n", "Token"},
		{"missing admin", "telegram:\n  token: x\n", "AdminUserID"},
		{"bad level", minimalConfig + "logger:\n  level: loud\n", "Level"},
		{"gemini without key", minimalConfig + "ai:\n  provider: gemini\n", "APIKey"},
		{"bad timezone", minimalConfig + "scheduler:\n  timezone: Mars/Olympus\n", "timezone"},
		{"email without sender", minimalConfig + "channels:\n  email:\n    api_key: SG.x\n", "from_email"},
		{"task without timing", minimalConfig + "scheduler:\n  tasks:\n    cleanup:\n      enabled: true\n", "cleanup"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadConfig() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("HERALD_TELEGRAM_TOKEN", "from-env")
	t.Setenv("HERALD_TELEGRAM_ADMIN_USER_ID", "7")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.Telegram.Token != "from-env" || cfg.Telegram.AdminUserID != 7 {
		t.Errorf("telegram = %+v", cfg.Telegram)
	}
}
