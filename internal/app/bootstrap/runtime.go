package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-intake/internal/audit"
	appconfig "github.com/wolfman30/clinic-intake/internal/config"
	"github.com/wolfman30/clinic-intake/internal/records"
	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildRecordStore opens the Postgres-backed record store, or an in-memory one
// when no database is configured. The returned pool is nil for the memory store.
func BuildRecordStore(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (records.Store, *pgxpool.Pool, error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if !cfg.UsePostgres() {
		logger.Warn("no database configured; records are kept in memory")
		return records.NewMemoryStore(), nil, nil
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil, fmt.Errorf("bootstrap: STORE_BACKEND=postgres requires DATABASE_URL")
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	logger.Info("using postgres record store")
	return records.NewPostgresStore(pool), pool, nil
}

// BuildAuditService opens the audit trail database. It returns nil when
// auditing is disabled or no database is configured.
func BuildAuditService(cfg *appconfig.Config, logger *logging.Logger) (*audit.Service, *sql.DB, error) {
	if cfg == nil || !cfg.AuditEnabled {
		return nil, nil, nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		logger.Warn("audit enabled but DATABASE_URL is empty; audit trail disabled")
		return nil, nil, nil
	}
	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap: open audit db: %w", err)
	}
	db.SetMaxOpenConns(5)
	logger.Info("audit trail enabled")
	return audit.NewService(db), db, nil
}
