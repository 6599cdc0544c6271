package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevSessionSecret signs sessions when AUTH_SESSION_SECRET is unset. Load
// refuses it outside APP_ENV=development.
const DevSessionSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Realtime     RealtimeConfig
	RateLimit    RateLimitConfig
	AutoReply    AutoReplyConfig
	Notification NotificationConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables the session cache.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines session and privilege parameters.
type AuthConfig struct {
	SessionSecret       string
	SessionTTLMinutes   int
	ProviderKeyHash     string
	TraderIDs           []string
	SessionCachePrefix  string
	SessionCacheEnabled bool
}

// RealtimeConfig tunes the per-ticket message channel.
type RealtimeConfig struct {
	MaxBacklog        int
	HeartbeatSeconds  int
	StreamBufferSize  int
	CloseOnTicketGone bool
}

// RateLimitConfig bounds how fast one identity may post messages.
type RateLimitConfig struct {
	MessagesPerSecond float64
	Burst             int
}

// AutoReplyConfig controls the canned trader acknowledgement.
type AutoReplyConfig struct {
	Enabled bool
	DelayMS int
	Text    string
}

// NotificationConfig holds stub notification endpoints.
type NotificationConfig struct {
	WebhookURL string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	messagesPerSecond, err := strconv.ParseFloat(getEnv("RATE_LIMIT_MESSAGES_PER_SECOND", "2"), 64)
	if err != nil {
		return nil, fmt.Errorf("invalid RATE_LIMIT_MESSAGES_PER_SECOND: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "trade-desk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			SessionSecret:       getEnv("AUTH_SESSION_SECRET", DevSessionSecret),
			SessionTTLMinutes:   getEnvAsInt("AUTH_SESSION_TTL_MINUTES", 720),
			ProviderKeyHash:     os.Getenv("IDENTITY_PROVIDER_KEY_HASH"),
			TraderIDs:           getEnvAsList("TRADER_IDS"),
			SessionCachePrefix:  getEnv("AUTH_SESSION_CACHE_PREFIX", "session:"),
			SessionCacheEnabled: getEnvAsBool("AUTH_SESSION_CACHE_ENABLED", true),
		},
		Realtime: RealtimeConfig{
			MaxBacklog:        getEnvAsInt("REALTIME_MAX_BACKLOG", 256),
			HeartbeatSeconds:  getEnvAsInt("REALTIME_HEARTBEAT_SECONDS", 15),
			StreamBufferSize:  getEnvAsInt("REALTIME_STREAM_BUFFER", 32),
			CloseOnTicketGone: getEnvAsBool("REALTIME_CLOSE_ON_DELETE", true),
		},
		RateLimit: RateLimitConfig{
			MessagesPerSecond: messagesPerSecond,
			Burst:             getEnvAsInt("RATE_LIMIT_BURST", 5),
		},
		AutoReply: AutoReplyConfig{
			Enabled: getEnvAsBool("AUTO_REPLY_ENABLED", false),
			DelayMS: getEnvAsInt("AUTO_REPLY_DELAY_MS", 1000),
			Text:    getEnv("AUTO_REPLY_TEXT", "Thanks for your message. A trader will reply shortly."),
		},
		Notification: NotificationConfig{
			WebhookURL: getEnv("NOTIFY_WEBHOOK_URL", ""),
		},
	}

	if cfg.App.Env != "development" && cfg.Auth.UsesDevSecret() {
		return nil, fmt.Errorf("AUTH_SESSION_SECRET must be set when APP_ENV=%s", cfg.App.Env)
	}

	return cfg, nil
}

// UsesDevSecret reports whether session tokens are signed with the built-in
// development secret.
func (a AuthConfig) UsesDevSecret() bool {
	return a.SessionSecret == DevSessionSecret
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SessionTTL returns how long an issued session token stays valid.
func (a AuthConfig) SessionTTL() time.Duration {
	if a.SessionTTLMinutes <= 0 {
		return 12 * time.Hour
	}
	return time.Duration(a.SessionTTLMinutes) * time.Minute
}

// Heartbeat returns the stream keep-alive interval.
func (r RealtimeConfig) Heartbeat() time.Duration {
	if r.HeartbeatSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(r.HeartbeatSeconds) * time.Second
}

// Delay returns the pause before the acknowledgement is posted.
func (a AutoReplyConfig) Delay() time.Duration {
	if a.DelayMS < 0 {
		return 0
	}
	return time.Duration(a.DelayMS) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
