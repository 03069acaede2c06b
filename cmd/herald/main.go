// Package main is the herald entrypoint: it loads configuration, opens the
// stores and the delivery journal, and runs the Telegram front end together
// with the delivery scheduler until interrupted.
package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/edgard/herald/internal/ai"
	"github.com/edgard/herald/internal/alert"
	"github.com/edgard/herald/internal/assistant"
	"github.com/edgard/herald/internal/bot"
	"github.com/edgard/herald/internal/bot/handlers"
	"github.com/edgard/herald/internal/bot/tasks"
	"github.com/edgard/herald/internal/config"
	"github.com/edgard/herald/internal/database"
	"github.com/edgard/herald/internal/dispatch"
	"github.com/edgard/herald/internal/inbound"
	"github.com/edgard/herald/internal/logger"
	"github.com/edgard/herald/internal/scheduler"
	"github.com/edgard/herald/internal/store"
	"github.com/edgard/herald/internal/telegram"
	"github.com/edgard/herald/internal/timeparse"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx, os.Args[1:])
	stop()
	os.Exit(exitCode)
}

// stores groups the flat-file collections.
type stores struct {
	messages  *store.Schedule
	reminders *store.Schedule
	contacts  *store.Contacts
	todos     *store.TodoList
	shopping  *store.ShoppingList
}

func run(ctx context.Context, args []string) int {
	flags := pflag.NewFlagSet("herald", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", "./config.yaml", "Path to configuration file")
	envFile := flags.String("env-file", ".env", "Path to a dotenv file loaded before configuration")
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		slog.Error("Failed to parse flags", "error", err)
		return 2
	}

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("Failed to load env file", "path", *envFile, "error", err)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	loc := cfg.Scheduler.Location()

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to open delivery journal", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	journal := database.NewStore(db, log)

	st := openStores(cfg.Storage, loc, log)

	dispatcher := dispatch.New(log,
		dispatch.WithRecorder(journal),
		dispatch.WithSendTimeout(cfg.Channels.SendTimeout),
	)
	registerChannels(dispatcher, cfg.Channels, log)

	aiClient, err := ai.NewClient(ctx, cfg.AI, log)
	if err != nil {
		log.Error("Failed to initialize AI client", "provider", cfg.AI.Provider, "error", err)
		return 1
	}

	pipeline := inbound.NewPipeline(aiClient, st.contacts, dispatcher, cfg.Inbound, log)
	svc := assistant.New(assistant.Deps{
		Messages:  st.messages,
		Reminders: st.reminders,
		Contacts:  st.contacts,
		Todos:     st.todos,
		Shopping:  st.shopping,
		Resolver:  timeparse.New(loc),
		Sender:    dispatcher,
		Parser:    aiClient,
		Drafter:   aiClient,
		Logger:    log,
	})

	var alerter scheduler.Alerter = alert.Nop{}
	if cfg.Alert.Enabled {
		alerter = alert.NewSpeaker(cfg.Alert, log)
	}
	engine := scheduler.NewEngine(dispatcher, alerter, log, st.messages, st.reminders)

	hDeps := handlers.HandlerDeps{
		Logger:    log,
		Config:    cfg,
		Assistant: svc,
		Pipeline:  pipeline,
		Journal:   journal,
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log,
		tgbot.WithMiddlewares(logger.Middleware(log)),
		tgbot.WithDefaultHandler(handlers.NewDefaultHandler(hDeps)),
	)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}
	dispatcher.Register(store.PlatformTelegram, dispatch.NewTelegramSender(tg))

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}
	if err := telegram.PublishCommands(ctx, tg, log); err != nil {
		log.Warn("Failed to publish command menu", "error", err)
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tasks.TaskDeps{
		Logger:  log,
		Engine:  engine,
		Journal: journal,
		Config:  cfg,
	}))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, tg, sched)
	log.Info("Starting herald", "timezone", loc.String(), "platforms", dispatcher.Platforms())
	runErr := app.Run(ctx)

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Herald stopped due to error", "error", runErr)
		return 1
	}

	log.Info("Herald stopped gracefully")
	return 0
}

// openStores loads every collection. Missing or unreadable files start empty.
// Naive timestamps in the files are read in loc.
func openStores(cfg config.StorageConfig, loc *time.Location, log *slog.Logger) stores {
	st := stores{
		messages:  store.NewSchedule(store.KindMessage, cfg.Path(cfg.MessagesFile), loc, log),
		reminders: store.NewSchedule(store.KindReminder, cfg.Path(cfg.RemindersFile), loc, log),
		contacts:  store.NewContacts(cfg.Path(cfg.ContactsFile), log),
		todos:     store.NewTodoList(cfg.Path(cfg.TodoFile), loc, log),
		shopping:  store.NewShoppingList(cfg.Path(cfg.ShoppingFile), log),
	}

	loaded := map[string]store.LoadResult{
		"messages":  st.messages.Load(),
		"reminders": st.reminders.Load(),
		"contacts":  st.contacts.Load(),
		"todo":      st.todos.Load(),
		"shopping":  st.shopping.Load(),
	}
	for name, res := range loaded {
		log.Info("Loaded store", "store", name, "records", res.Loaded, "skipped", res.Skipped, "renumbered", res.Renumbered, "missing", res.Missing, "corrupt", res.Corrupt)
	}
	return st
}

// registerChannels installs the WhatsApp and email senders when configured.
// Telegram is registered once the bot client exists.
func registerChannels(d *dispatch.Dispatcher, cfg config.ChannelsConfig, log *slog.Logger) {
	if cfg.WhatsApp.BaseURL != "" {
		client := &http.Client{Timeout: cfg.SendTimeout + 5*time.Second}
		d.Register(store.PlatformWhatsApp, dispatch.NewWhatsAppSender(cfg.WhatsApp.BaseURL, cfg.WhatsApp.Token, client))
	} else {
		log.Info("WhatsApp channel disabled", "reason", "no gateway base_url")
	}

	if cfg.Email.APIKey != "" {
		d.Register(store.PlatformEmail, dispatch.NewEmailSender(cfg.Email.APIKey, cfg.Email.FromEmail, cfg.Email.FromName, cfg.Email.Subject))
	} else {
		log.Info("Email channel disabled", "reason", "no api_key")
	}
}
