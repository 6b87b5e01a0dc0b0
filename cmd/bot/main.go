package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vyalkov-2002/iat-timetable/internal/app"
	"github.com/vyalkov-2002/iat-timetable/internal/infra/config"
	idb "github.com/vyalkov-2002/iat-timetable/internal/infra/database"
	"github.com/vyalkov-2002/iat-timetable/internal/infra/logger"
	"github.com/vyalkov-2002/iat-timetable/internal/infra/scheduler"
	"github.com/vyalkov-2002/iat-timetable/internal/infra/source"
	itelegram "github.com/vyalkov-2002/iat-timetable/internal/infra/telegram"

	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Timetable notification bot starting...")

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("FATAL: Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Configuration loaded. Driver: %s, Groups file: %s, Check spec: %q", cfg.DatabaseDriver, cfg.GroupsFile, cfg.CronSpecCheck)

	// Initialize Database Connection
	db, err := idb.Open(cfg.DatabaseDriver, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("FATAL: Could not connect to database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("FATAL: Could not apply database schema: %v", err)
	}
	log.Info("Database connection established and schema applied.")

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) { // Global error handler
			entry := log.WithError(err)
			if c != nil && c.Chat() != nil {
				entry = entry.WithField("chat_id", c.Chat().ID)
			}
			entry.Error("telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		log.Fatalf("FATAL: Could not create Telegram bot: %v", err)
	}

	// Wire the pipeline: store → notifier → scheduler.
	transport := itelegram.NewTelebotAdapter(bot)
	notifService := app.NewNotificationService(db, transport, log.WithField("component", "notifier"))
	log.Info("Notification service initialized.")

	tableSource := source.NewFileSource(cfg.GroupsFile, cfg.TimetableDir)
	checkScheduler := scheduler.NewCheckScheduler(
		notifService,
		tableSource,
		log.WithField("component", "scheduler"),
		cfg.CronSpecCheck,
		cfg.WeeksAhead,
	)
	checkScheduler.Start()

	// Register Handlers
	itelegram.RegisterBotCommands(ctx, bot, db.Chats(), checkScheduler, cfg.AdminTelegramID, log.WithField("component", "bot"))
	log.Info("Bot command handlers registered.")

	log.Info("Application setup complete. Bot and scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit // Block until a signal is received

	log.Info("Shutting down application...")
	checkScheduler.Stop()
	bot.Stop()
	log.Info("Application shut down gracefully.")
}
