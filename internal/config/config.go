package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port         string
	Env          string
	LogLevel     string
	DatabaseURL  string
	StoreBackend string
	StateBackend string
	ScheduleFile string
	DaysAhead    int

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ConversationTable   string
	ReminderQueueURL    string
	ExportBucket        string
	ExportDir           string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	StateTTL      time.Duration
	SlotHoldTTL   time.Duration

	// Text generation
	LLMProvider    string
	BedrockModelID string
	GeminiAPIKey   string
	GeminiModelID  string
	LLMTimeout     time.Duration

	// Notifications
	EmailProvider     string
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioFromNumber  string
	NotifyTimeout     time.Duration
	ClinicName        string
	ClinicPhone       string

	ReminderPollInterval time.Duration
	AuditEnabled         bool

	CORSAllowedOrigins []string
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:         getEnv("PORT", "8080"),
		Env:          getEnv("ENV", "development"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DatabaseURL:  getEnv("DATABASE_URL", ""),
		StoreBackend: strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", "auto"))),
		StateBackend: strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "memory"))),
		ScheduleFile: getEnv("SCHEDULE_FILE", ""),
		DaysAhead:    getEnvAsInt("DAYS_AHEAD", 14),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationTable:   getEnv("CONVERSATION_TABLE", "conversation_state"),
		ReminderQueueURL:    getEnv("REMINDER_QUEUE_URL", ""),
		ExportBucket:        getEnv("EXPORT_BUCKET", ""),
		ExportDir:           getEnv("EXPORT_DIR", "exports"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		StateTTL:      getEnvAsDuration("STATE_TTL", 24*time.Hour),
		SlotHoldTTL:   getEnvAsDuration("SLOT_HOLD_TTL", 10*time.Second),

		LLMProvider:    strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "canned"))),
		BedrockModelID: getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:  getEnv("GEMINI_MODEL_ID", "gemini-1.5-flash"),
		LLMTimeout:     getEnvAsDuration("LLM_TIMEOUT", 8*time.Second),

		EmailProvider:     strings.ToLower(strings.TrimSpace(getEnv("EMAIL_PROVIDER", "auto"))),
		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "Clinic Scheduling"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		TwilioAccountSID:  getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:   getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber:  getEnv("TWILIO_FROM_NUMBER", ""),
		NotifyTimeout:     getEnvAsDuration("NOTIFY_TIMEOUT", 10*time.Second),
		ClinicName:        getEnv("CLINIC_NAME", "Our Clinic"),
		ClinicPhone:       getEnv("CLINIC_PHONE", ""),

		ReminderPollInterval: getEnvAsDuration("REMINDER_POLL_INTERVAL", 5*time.Minute),
		AuditEnabled:         getEnvAsBool("AUDIT_ENABLED", false),

		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerSecond: getEnvAsFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// UsePostgres reports whether the record store should be backed by Postgres.
func (c *Config) UsePostgres() bool {
	switch c.StoreBackend {
	case "postgres":
		return true
	case "memory":
		return false
	default:
		return strings.TrimSpace(c.DatabaseURL) != ""
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value, err := strconv.ParseFloat(getEnv(key, ""), 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string) []string {
	var out []string
	for _, part := range strings.Split(getEnv(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
