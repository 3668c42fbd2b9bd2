package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	sentry "github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"github.com/mymmrac/telego"

	"newsgram/internal/bot"
	"newsgram/internal/channel"
	"newsgram/internal/config"
	"newsgram/internal/database"
	"newsgram/internal/fanout"
	"newsgram/internal/ingest"
	"newsgram/internal/scheduler"
)

const sentryFlushTimeout = 2 * time.Second

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(log)

	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Error("Failed to load config",
			"error", err)

		return
	}

	if cfg.SentryDSN != "" {
		if err = sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.SentryDSN,
			Environment: cfg.AppEnv,
		}); err != nil {
			log.Error("Failed to initialize Sentry",
				"error", err)

			return
		}
		defer sentry.Flush(sentryFlushTimeout)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.New(ctx, cfg.DBPath, log)
	if err != nil {
		log.Error("Failed to initialize DB",
			"error", err,
			"dbPath", cfg.DBPath)
		sentry.CaptureException(err)

		return
	}
	defer func() {
		if err = db.Close(); err != nil {
			log.Error("Failed to close DB",
				"error", err,
				"dbPath", cfg.DBPath)
		}
	}()
	log.Info("DB is initialized")

	api, err := telego.NewBot(cfg.Token, telego.WithDefaultLogger(false, false))
	if err != nil {
		log.Error("Failed to create Telegram bot",
			"error", err)
		sentry.CaptureException(err)

		return
	}

	transport := fanout.NewTelegramTransport(api)
	dispatcher := fanout.NewDispatcher(db, transport, cfg.DeliveriesPerSecond, cfg.AdminIDs, log)

	client := channel.NewWebClient(log)
	materializer := ingest.NewMaterializer(client, cfg.MediaDir, log)
	coordinator := ingest.NewCoordinator(client, db, materializer, dispatcher, cfg.Channels, log)

	sched := scheduler.New(ctx, coordinator, cfg.PollInterval, cfg.BackfillLimit, log)
	if err = sched.Start(); err != nil {
		log.Error("Failed to start scheduler",
			"error", err)
		sentry.CaptureException(err)

		return
	}
	defer sched.Stop()
	log.Info("Scheduler is started")

	botInst := bot.New(api, db, transport, coordinator, cfg.AdminIDs, cfg.BackfillLimit, log)

	go func() {
		if startErr := botInst.Start(ctx); startErr != nil {
			log.Error("Bot stopped with error",
				"error", startErr)
			sentry.CaptureException(startErr)
			stop()
		}
	}()
	log.Info("Bot is started")

	coordinator.StartLive()

	if len(cfg.Channels) > 0 {
		summary, backfillErr := coordinator.Backfill(ctx, cfg.BackfillLimit)
		if backfillErr != nil {
			log.Error("Initial backfill failed",
				"error", backfillErr,
				"accepted", summary.Accepted)
			sentry.CaptureException(backfillErr)
		} else {
			log.Info("Initial backfill finished",
				"accepted", summary.Accepted,
				"duplicates", summary.Duplicates)
		}
	} else {
		log.Warn("No channels configured; ingestion is idle")
	}

	<-ctx.Done()
	log.Info("Exiting...")

	coordinator.Stop()
	log.Info("Coordinator is stopped")
}
