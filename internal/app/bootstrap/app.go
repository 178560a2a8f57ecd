package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-intake/internal/api/router"
	"github.com/wolfman30/clinic-intake/internal/audit"
	"github.com/wolfman30/clinic-intake/internal/availability"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/conversation"
	"github.com/wolfman30/clinic-intake/internal/export"
	"github.com/wolfman30/clinic-intake/internal/http/handlers"
	"github.com/wolfman30/clinic-intake/internal/intake"
	"github.com/wolfman30/clinic-intake/internal/llm"
	"github.com/wolfman30/clinic-intake/internal/lookup"
	"github.com/wolfman30/clinic-intake/internal/notify"
	"github.com/wolfman30/clinic-intake/internal/observability/metrics"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/internal/reminders"
	"github.com/wolfman30/clinic-intake/internal/scheduling"
	"github.com/wolfman30/clinic-intake/internal/webchat"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// scheduleKey names the stored schedule when Redis holds it.
const scheduleKey = "default"

// App is the fully wired service shared by the API server and the workers.
type App struct {
	Config        *appconfig.Config
	Logger        *logging.Logger
	Registry      *prometheus.Registry
	Metrics       *metrics.SchedulingMetrics
	Store         records.Store
	Redis         *redis.Client
	Engine        *availability.Engine
	Notifier      *notify.Notifier
	Conversations *conversation.Service
	Transcript    webchat.TranscriptStore
	Reminders     *reminders.Scheduler
	Sender        *reminders.Sender
	Responder     *reminders.Responder
	Worker        *reminders.Worker
	Queue         *reminders.SQSQueue
	Audit         audit.Logger
	AuditService  *audit.Service

	pool    *pgxpool.Pool
	auditDB *sql.DB
}

// Build wires every component from config. Call Close when done.
func Build(ctx context.Context, cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	app := &App{Config: cfg, Logger: logger, Registry: prometheus.NewRegistry()}
	app.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	app.Metrics = metrics.NewSchedulingMetrics(app.Registry)

	store, pool, err := BuildRecordStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	app.Store, app.pool = store, pool

	app.Redis = BuildRedisClient(ctx, cfg, logger, true)

	auditSvc, auditDB, err := BuildAuditService(cfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.AuditService, app.auditDB = auditSvc, auditDB
	app.Audit = audit.Nop{}
	if auditSvc != nil {
		app.Audit = auditSvc
	}

	if app.Engine, err = buildEngine(cfg, app.Store, app.Redis, app.Metrics, logger); err != nil {
		app.Close()
		return nil, err
	}

	app.Notifier = BuildNotifier(cfg, awsCfg, app.Metrics, logger)

	gen, err := BuildTextGenerator(ctx, cfg, awsCfg, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	responder := llm.NewResponder(gen, cfg.LLMTimeout, logger.Component("llm"))
	// canned lines only fit above the slot list; intake keeps its scripted asks
	agentResponder := responder
	if cfg.LLMProvider == "canned" {
		agentResponder = nil
	}

	app.Reminders = reminders.NewScheduler(app.Store, app.Metrics, logger)
	app.Sender = reminders.NewSender(app.Store, app.Notifier, app.Metrics, logger)
	app.Responder = reminders.NewResponder(app.Store, app.Engine)
	var dispatcher reminders.Dispatcher = app.Sender
	if url := strings.TrimSpace(cfg.ReminderQueueURL); url != "" {
		app.Queue = reminders.NewSQSQueue(sqs.NewFromConfig(awsCfg), url)
		dispatcher = app.Queue
		logger.Info("reminders dispatched through sqs", "queue_url", url)
	}
	app.Worker = reminders.NewWorker(app.Store, dispatcher, logger)

	orch := conversation.NewOrchestrator(conversation.Dependencies{
		Intake:      intake.NewIntakeAgent(agentResponder),
		Insurance:   intake.NewInsuranceAgent(agentResponder),
		Lookup:      lookup.NewResolver(app.Store, logger),
		Scheduling:  scheduling.NewAgent(app.Engine, responder, cfg.DaysAhead, logger),
		Patients:    app.Store,
		Reminders:   app.Reminders,
		Exporter:    buildExporter(cfg, awsCfg, logger),
		Notifier:    app.Notifier,
		Audit:       app.Audit,
		Metrics:     app.Metrics,
		Logger:      logger.Component("conversation"),
		ClinicName:  cfg.ClinicName,
		ClinicPhone: cfg.ClinicPhone,
	})

	stateStore, err := buildStateStore(cfg, awsCfg, app.Redis, logger)
	if err != nil {
		app.Close()
		return nil, err
	}
	app.Conversations = conversation.NewService(orch, stateStore, logger)
	app.Transcript = webchat.NewMemoryTranscript()
	if app.Redis != nil {
		app.Conversations.WithLocker(availability.NewRedisLocker(app.Redis, cfg.SlotHoldTTL))
		app.Transcript = webchat.NewRedisTranscript(app.Redis, cfg.StateTTL)
	}
	return app, nil
}

func buildEngine(cfg *appconfig.Config, store records.BookingStore, client *redis.Client, m *metrics.SchedulingMetrics, logger *logging.Logger) (*availability.Engine, error) {
	sched, err := availability.LoadScheduleFile(cfg.ScheduleFile)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load schedule: %w", err)
	}
	var source availability.ScheduleSource = sched
	if client != nil {
		source = availability.NewRedisScheduleStore(client, scheduleKey, sched)
	}
	engine := availability.NewEngine(source, store, logger.Component("availability")).WithMetrics(m)
	if client != nil {
		engine = engine.WithLocker(availability.NewRedisLocker(client, cfg.SlotHoldTTL))
	}
	return engine, nil
}

func buildExporter(cfg *appconfig.Config, awsCfg aws.Config, logger *logging.Logger) export.Exporter {
	if bucket := strings.TrimSpace(cfg.ExportBucket); bucket != "" {
		logger.Info("appointment exports written to s3", "bucket", bucket)
		return export.NewS3Exporter(s3.NewFromConfig(awsCfg), bucket, logger)
	}
	return export.NewDirExporter(cfg.ExportDir, logger)
}

func buildStateStore(cfg *appconfig.Config, awsCfg aws.Config, client *redis.Client, logger *logging.Logger) (conversation.StateStore, error) {
	switch cfg.StateBackend {
	case "redis":
		if client == nil {
			return nil, fmt.Errorf("bootstrap: STATE_BACKEND=redis requires a reachable REDIS_ADDR")
		}
		return conversation.NewRedisStateStore(client, cfg.StateTTL), nil
	case "dynamo", "dynamodb":
		return conversation.NewDynamoStateStore(dynamodb.NewFromConfig(awsCfg), cfg.ConversationTable, cfg.StateTTL, logger), nil
	case "", "memory":
		return conversation.NewMemoryStateStore(), nil
	default:
		return nil, fmt.Errorf("bootstrap: unknown STATE_BACKEND %q", cfg.StateBackend)
	}
}

// HealthChecks pings every external dependency that was configured.
func (a *App) HealthChecks() map[string]router.HealthCheck {
	checks := map[string]router.HealthCheck{}
	if a.pool != nil {
		checks["postgres"] = func(ctx context.Context) error { return a.pool.Ping(ctx) }
	}
	if a.Redis != nil {
		checks["redis"] = func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() }
	}
	if a.auditDB != nil {
		checks["audit_db"] = func(ctx context.Context) error { return a.auditDB.PingContext(ctx) }
	}
	return checks
}

// RouterConfig builds the HTTP surface over the wired components.
func (a *App) RouterConfig() *router.Config {
	cfg := &router.Config{
		Logger:              a.Logger,
		ConversationHandler: conversation.NewHandler(a.Conversations, a.Logger),
		WebChat:             webchat.NewHandler(a.Conversations, a.Transcript, a.Logger.Component("webchat")),
		ClinicHandler:       handlers.NewClinicHandler(a.Engine, a.Store, a.Audit, a.Config.DaysAhead, a.Logger),
		ReminderHandler:     handlers.NewReminderHandler(a.Store, a.Responder, a.Sender, a.Audit, a.Logger),
		MetricsHandler:      promhttp.HandlerFor(a.Registry, promhttp.HandlerOpts{}),
		CORSAllowedOrigins:  a.Config.CORSAllowedOrigins,
		RateLimitPerSecond:  a.Config.RateLimitPerSecond,
		RateLimitBurst:      a.Config.RateLimitBurst,
		HealthChecks:        a.HealthChecks(),
	}
	if a.AuditService != nil {
		cfg.AuditHandler = handlers.NewAuditHandler(a.AuditService, a.Logger)
	}
	return cfg
}

// Close releases pools and clients.
func (a *App) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
	if a.auditDB != nil {
		_ = a.auditDB.Close()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
}
