// Package config loads the application configuration from a YAML file,
// HERALD_* environment variables and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the root configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	AI        AIConfig        `mapstructure:"ai"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Inbound   InboundConfig   `mapstructure:"inbound"`
	Channels  ChannelsConfig  `mapstructure:"channels"`
	Alert     AlertConfig     `mapstructure:"alert"`
	Messages  MessagesConfig  `mapstructure:"messages"`
}

// LoggerConfig selects the log level and output format.
type LoggerConfig struct {
	Level string `mapstructure:"level" validate:"oneof=debug info warn error"`
	JSON  bool   `mapstructure:"json"`
}

// TelegramConfig holds the bot token and the single operator's user id.
type TelegramConfig struct {
	Token       string `mapstructure:"token" validate:"required"`
	AdminUserID int64  `mapstructure:"admin_user_id" validate:"required,gt=0"`
}

// AIConfig selects and tunes the language model backend.
type AIConfig struct {
	Provider          string  `mapstructure:"provider" validate:"oneof=gemini openai ollama"`
	APIKey            string  `mapstructure:"api_key" validate:"required_if=Provider gemini"`
	BaseURL           string  `mapstructure:"base_url" validate:"omitempty,url"`
	Model             string  `mapstructure:"model" validate:"required"`
	Temperature       float32 `mapstructure:"temperature" validate:"min=0,max=2"`
	MaxRetries        int     `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryDelaySeconds int     `mapstructure:"retry_delay_seconds" validate:"min=0"`
}

// DatabaseConfig points at the delivery journal. Retention bounds how long
// journal rows survive the maintenance task.
type DatabaseConfig struct {
	Path      string        `mapstructure:"path" validate:"required"`
	Retention time.Duration `mapstructure:"retention" validate:"min=0"`
}

// StorageConfig names the JSON files backing the item stores.
// Relative file names are resolved against Dir.
type StorageConfig struct {
	Dir           string `mapstructure:"dir" validate:"required"`
	ContactsFile  string `mapstructure:"contacts_file" validate:"required"`
	MessagesFile  string `mapstructure:"messages_file" validate:"required"`
	RemindersFile string `mapstructure:"reminders_file" validate:"required"`
	TodoFile      string `mapstructure:"todo_file" validate:"required"`
	ShoppingFile  string `mapstructure:"shopping_file" validate:"required"`
}

// Path resolves a storage file name against Dir.
func (s StorageConfig) Path(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.Dir, name)
}

// SchedulerConfig configures the job runner.
type SchedulerConfig struct {
	Timezone string                `mapstructure:"timezone"`
	Tasks    map[string]TaskConfig `mapstructure:"tasks" validate:"dive"`

	location *time.Location
}

// TaskConfig enables a job and sets either its fixed interval or its cron schedule.
type TaskConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"omitempty,min=1s"`
	Schedule string        `mapstructure:"schedule"`
}

// Location returns the zone used to interpret naive timestamps and clock times.
func (s SchedulerConfig) Location() *time.Location {
	if s.location == nil {
		return time.Local
	}
	return s.location
}

// InboundConfig tunes the reactive inbound pipeline.
type InboundConfig struct {
	SentimentEnabled bool          `mapstructure:"sentiment_enabled"`
	GlobalAutoReply  bool          `mapstructure:"global_auto_reply"`
	LogCapacity      int           `mapstructure:"log_capacity" validate:"min=1"`
	ClassifyTimeout  time.Duration `mapstructure:"classify_timeout" validate:"min=1s"`
	GenerateTimeout  time.Duration `mapstructure:"generate_timeout" validate:"min=1s"`
	ReplyTimeout     time.Duration `mapstructure:"reply_timeout" validate:"min=1s"`
}

// ChannelsConfig configures the outbound delivery channels.
// A channel without credentials is simply not registered.
type ChannelsConfig struct {
	SendTimeout time.Duration  `mapstructure:"send_timeout" validate:"min=1s"`
	WhatsApp    WhatsAppConfig `mapstructure:"whatsapp"`
	Email       EmailConfig    `mapstructure:"email"`
}

// WhatsAppConfig points at a WhatsApp HTTP gateway.
type WhatsAppConfig struct {
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
	Token   string `mapstructure:"token"`
}

// EmailConfig holds SendGrid credentials and the sender identity.
type EmailConfig struct {
	APIKey    string `mapstructure:"api_key"`
	FromEmail string `mapstructure:"from_email" validate:"omitempty,email"`
	FromName  string `mapstructure:"from_name"`
	Subject   string `mapstructure:"subject"`
}

// AlertConfig configures the local spoken reminder alert.
type AlertConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Command   string `mapstructure:"command" validate:"required_if=Enabled true"`
	Voice     string `mapstructure:"voice"`
	ChimeFile string `mapstructure:"chime_file"`
}

// MessagesConfig holds user-facing bot texts.
type MessagesConfig struct {
	Welcome       string `mapstructure:"welcome"`
	NotAuthorized string `mapstructure:"not_authorized"`
	GeneralError  string `mapstructure:"general_error"`
	NotUnderstood string `mapstructure:"not_understood"`
	Usage         string `mapstructure:"usage"`
}

// Task names known to the job runner.
const (
	TaskMessageDelivery  = "message_delivery"
	TaskReminderDelivery = "reminder_delivery"
	TaskSQLMaintenance   = "sql_maintenance"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", false)

	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.admin_user_id", 0)

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.model", "llama3.2")
	v.SetDefault("ai.temperature", 0.7)
	v.SetDefault("ai.max_retries", 2)
	v.SetDefault("ai.retry_delay_seconds", 2)

	v.SetDefault("database.path", "herald.db")
	v.SetDefault("database.retention", 30*24*time.Hour)

	v.SetDefault("storage.dir", "data")
	v.SetDefault("storage.contacts_file", "contacts.json")
	v.SetDefault("storage.messages_file", "scheduled_messages.json")
	v.SetDefault("storage.reminders_file", "reminders.json")
	v.SetDefault("storage.todo_file", "todo.json")
	v.SetDefault("storage.shopping_file", "shopping.json")

	v.SetDefault("scheduler.timezone", "Local")
	v.SetDefault("scheduler.tasks", map[string]any{
		TaskMessageDelivery:  map[string]any{"enabled": true, "interval": "60s"},
		TaskReminderDelivery: map[string]any{"enabled": true, "interval": "10s"},
		TaskSQLMaintenance:   map[string]any{"enabled": true, "schedule": "0 3 * * 0"},
	})

	v.SetDefault("inbound.sentiment_enabled", true)
	v.SetDefault("inbound.global_auto_reply", false)
	v.SetDefault("inbound.log_capacity", 200)
	v.SetDefault("inbound.classify_timeout", "20s")
	v.SetDefault("inbound.generate_timeout", "30s")
	v.SetDefault("inbound.reply_timeout", "30s")

	v.SetDefault("channels.send_timeout", "30s")
	v.SetDefault("channels.whatsapp.base_url", "")
	v.SetDefault("channels.whatsapp.token", "")
	v.SetDefault("channels.email.api_key", "")
	v.SetDefault("channels.email.from_email", "")
	v.SetDefault("channels.email.from_name", "Herald")
	v.SetDefault("channels.email.subject", "")

	v.SetDefault("alert.enabled", false)
	v.SetDefault("alert.command", "espeak-ng")
	v.SetDefault("alert.voice", "")
	v.SetDefault("alert.chime_file", "")

	v.SetDefault("messages.welcome", "Herald is running. Send /help for the list of commands.")
	v.SetDefault("messages.not_authorized", "You are not authorized to use this command.")
	v.SetDefault("messages.general_error", "An error occurred. Please try again later.")
	v.SetDefault("messages.not_understood", "Sorry, I could not understand that command.")
	v.SetDefault("messages.usage", "Usage: %s")
}

// LoadConfig reads path (optional when it does not exist), applies HERALD_*
// environment overrides and validates the result.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HERALD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			// SetConfigFile skips viper's search, so a missing file is a plain fs error.
			if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Scheduler.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid scheduler timezone %q: %w", cfg.Scheduler.Timezone, err)
	}
	cfg.Scheduler.location = loc

	if cfg.Channels.Email.APIKey != "" && cfg.Channels.Email.FromEmail == "" {
		return nil, errors.New("channels.email.from_email is required when an api key is set")
	}

	for name, task := range cfg.Scheduler.Tasks {
		if task.Interval == 0 && task.Schedule == "" {
			return nil, fmt.Errorf("task %s needs an interval or a schedule", name)
		}
	}

	return &cfg, nil
}
