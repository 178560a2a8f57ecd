package router

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/clinic-intake/internal/conversation"
	"github.com/wolfman30/clinic-intake/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/clinic-intake/internal/http/middleware"
	"github.com/wolfman30/clinic-intake/internal/webchat"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// HealthCheck reports whether one dependency is reachable.
type HealthCheck func(ctx context.Context) error

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChat             *webchat.Handler
	ClinicHandler       *handlers.ClinicHandler
	ReminderHandler     *handlers.ReminderHandler
	AuditHandler        *handlers.AuditHandler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	RateLimitPerSecond  float64
	RateLimitBurst      int
	HealthChecks        map[string]HealthCheck
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", health(nil))
	r.Get("/ready", health(cfg.HealthChecks))
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	if cfg.WebChat != nil {
		r.Route("/chat", func(chat chi.Router) {
			chat.Get("/ws", cfg.WebChat.HandleWebSocket)
			chat.With(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst)).Post("/message", cfg.WebChat.HandleMessage)
			chat.Get("/history", cfg.WebChat.HandleHistory)
		})
	}

	r.Group(func(api chi.Router) {
		api.Use(httpmiddleware.RateLimit(cfg.RateLimitPerSecond, cfg.RateLimitBurst))
		if cfg.ConversationHandler != nil {
			cfg.ConversationHandler.Routes(api)
		}
		if cfg.ClinicHandler != nil {
			cfg.ClinicHandler.Routes(api)
		}
		if cfg.ReminderHandler != nil {
			cfg.ReminderHandler.Routes(api)
		}
		if cfg.AuditHandler != nil {
			api.Get("/audit/events", cfg.AuditHandler.ListEvents)
		}
	})

	return r
}

func health(checks map[string]HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		resp := map[string]any{"status": "ok"}
		failures := map[string]string{}
		for name, check := range checks {
			if err := check(ctx); err != nil {
				failures[name] = err.Error()
			}
		}
		if len(failures) > 0 {
			status = http.StatusServiceUnavailable
			resp["status"] = "degraded"
			resp["failures"] = failures
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(resp)
	}
}
