package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
)

// DevelopmentSecret is the signing key used when AUTH_JWT_SECRET is unset. It
// is refused outside development.
const DevelopmentSecret = "dev-secret"

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Quote        QuoteConfig
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

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values. An empty Addr disables caching.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	JWTSecret              string
	TokenTTLMinutes        int
	BcryptCost             int
	BootstrapAdminEmail    string
	BootstrapAdminName     string
	BootstrapAdminPassword string
}

// QuoteConfig drives the optional description enrichment on task creation.
type QuoteConfig struct {
	Enabled         bool
	APIURL          string
	TimeoutSeconds  int
	CacheTTLSeconds int
}

// NotificationConfig holds stub notification endpoints and the overdue job.
type NotificationConfig struct {
	EmailFrom       string
	OverdueEnabled  bool
	OverdueSchedule string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "task-service"),
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
			JWTSecret:              getEnv("AUTH_JWT_SECRET", DevelopmentSecret),
			TokenTTLMinutes:        getEnvAsInt("AUTH_TOKEN_TTL_MINUTES", 24*60),
			BcryptCost:             getEnvAsInt("AUTH_BCRYPT_COST", 12),
			BootstrapAdminEmail:    getEnv("AUTH_BOOTSTRAP_ADMIN_EMAIL", "admin@example.com"),
			BootstrapAdminName:     getEnv("AUTH_BOOTSTRAP_ADMIN_NAME", "admin"),
			BootstrapAdminPassword: os.Getenv("AUTH_BOOTSTRAP_ADMIN_PASSWORD"),
		},
		Quote: QuoteConfig{
			Enabled:         getEnvAsBool("QUOTE_ENABLED", false),
			APIURL:          getEnv("QUOTE_API_URL", "https://api.adviceslip.com/advice"),
			TimeoutSeconds:  getEnvAsInt("QUOTE_TIMEOUT_SECONDS", 3),
			CacheTTLSeconds: getEnvAsInt("QUOTE_CACHE_TTL_SECONDS", 60),
		},
		Notification: NotificationConfig{
			EmailFrom:       getEnv("NOTIFY_EMAIL_FROM", "task-manager@example.org"),
			OverdueEnabled:  getEnvAsBool("NOTIFY_OVERDUE_ENABLED", false),
			OverdueSchedule: getEnv("NOTIFY_OVERDUE_SCHEDULE", "0 * * * *"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the auth core cannot run safely with.
func (c *Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return errors.New("AUTH_JWT_SECRET must not be empty")
	}
	if c.App.Env == "production" && c.Auth.JWTSecret == DevelopmentSecret {
		return errors.New("AUTH_JWT_SECRET must be set in production")
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		return fmt.Errorf("invalid AUTH_TOKEN_TTL_MINUTES: %d", c.Auth.TokenTTLMinutes)
	}
	if c.Auth.BcryptCost < bcrypt.MinCost || c.Auth.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("invalid AUTH_BCRYPT_COST: %d", c.Auth.BcryptCost)
	}
	return nil
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

// TokenTTL returns the lifetime of issued tokens.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// Timeout returns the outbound quote request timeout.
func (q QuoteConfig) Timeout() time.Duration {
	return time.Duration(q.TimeoutSeconds) * time.Second
}

// CacheTTL returns how long a fetched quote is reused.
func (q QuoteConfig) CacheTTL() time.Duration {
	return time.Duration(q.CacheTTLSeconds) * time.Second
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
