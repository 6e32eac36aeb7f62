// Package main contains the entrypoint for the Messenger bot application.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kamjony/skittobot/internal/bot"
	"github.com/kamjony/skittobot/internal/bot/tasks"
	"github.com/kamjony/skittobot/internal/config"
	"github.com/kamjony/skittobot/internal/conversation"
	"github.com/kamjony/skittobot/internal/database"
	"github.com/kamjony/skittobot/internal/dialogflow"
	"github.com/kamjony/skittobot/internal/logger"
	"github.com/kamjony/skittobot/internal/messenger"
	"github.com/kamjony/skittobot/internal/server"
	"github.com/kamjony/skittobot/internal/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components (config, logger,
// db, NLU client, Messenger client, conversation engine, HTTP server,
// scheduler), handles graceful shutdown, and returns an exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)
	log.Info("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)

	db, err := database.NewDB(cfg.Database.Path)
	if err != nil {
		log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
		return 1
	}
	defer database.CloseDB(db)
	store := database.NewStore(db, log)

	nluClient, err := dialogflow.NewClient(cfg.Dialogflow, log)
	if err != nil {
		log.Error("Failed to initialize Dialogflow client", "error", err)
		return 1
	}

	msgClient, err := messenger.NewClient(cfg.Messenger, log)
	if err != nil {
		log.Error("Failed to initialize Messenger client", "error", err)
		return 1
	}

	clock := clockwork.NewRealClock()
	sessions := session.NewStore(msgClient, log)
	renderer := conversation.NewRenderer(msgClient, clock, cfg.Conversation.MessageInterval, log)
	dispatcher := conversation.NewDispatcher(
		msgClient, renderer, nluClient, sessions, msgClient, clock,
		cfg.Conversation.FollowUpDelay, cfg.Conversation.Messages, log)
	controller := conversation.NewController(
		sessions, nluClient, msgClient, dispatcher, store, clock,
		cfg.Conversation.ProfileRetryDelay, cfg.Conversation.Messages, log)

	srv := server.New(controller, store, cfg.Messenger, log)

	tDeps := tasks.TaskDeps{
		Logger: log,
		Store:  store,
		Config: cfg,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	app := bot.NewBot(log, cfg, db, store, srv, sched)

	log.Info("Starting bot...")
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	time.Sleep(time.Second)
	return 0
}
