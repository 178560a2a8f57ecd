package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-intake/cmd/mainconfig"
	"github.com/wolfman30/clinic-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// reminder-worker sweeps due reminders. With REMINDER_QUEUE_URL set it also
// consumes the delivery jobs it enqueues.
func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel).Component("reminder-worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		os.Exit(1)
	}

	app, err := bootstrap.Build(ctx, cfg, awsCfg, logger)
	if err != nil {
		logger.Error("failed to build application", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	app.Worker.Start(ctx, cfg.ReminderPollInterval)
	if app.Queue != nil {
		app.Worker.Consume(ctx, app.Queue, app.Sender)
	}
	logger.Info("reminder worker started", "interval", cfg.ReminderPollInterval, "queue", app.Queue != nil)

	<-ctx.Done()
	logger.Info("reminder worker stopping")
	app.Worker.Wait()
}
