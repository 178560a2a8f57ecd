package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wolfman30/clinic-intake/cmd/mainconfig"
	"github.com/wolfman30/clinic-intake/internal/api/router"
	"github.com/wolfman30/clinic-intake/internal/app/bootstrap"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

func main() {
	_ = godotenv.Load()
	cfg := appconfig.Load()

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting clinic-intake API server",
		"env", cfg.Env,
		"port", cfg.Port,
	)

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

	if runInlineWorker(cfg) {
		logger.Info("reminder worker running in-process", "interval", cfg.ReminderPollInterval)
		app.Worker.Start(ctx, cfg.ReminderPollInterval)
	}

	srv := newServer(cfg, router.New(app.RouterConfig()))
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}
	app.Worker.Wait()

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

func newServer(cfg *appconfig.Config, h http.Handler) *http.Server {
	port := strings.TrimSpace(cfg.Port)
	if port == "" {
		port = "8080"
	}
	return &http.Server{
		Addr:              ":" + port,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// runInlineWorker reports whether reminders are swept by the API process.
// With a queue configured the sweep belongs to cmd/reminder-worker.
func runInlineWorker(cfg *appconfig.Config) bool {
	return strings.TrimSpace(cfg.ReminderQueueURL) == "" && cfg.ReminderPollInterval > 0
}
