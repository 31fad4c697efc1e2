package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

// Module provides application configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	HTTPAddr string

	LogLevel string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int

	// Scheduler sweeps.
	SchedulerEnabled     bool
	SchedulerInterval    time.Duration
	ReadingRetentionDays int
	PaymentMaxAttempts   int
	OrderConfirmAfter    time.Duration

	RateLimit RateLimitConfig

	SeedDemoTenant bool
}

// RateLimitConfig configures the redis-backed ingest limiter. Disabled when
// no redis address is set.
type RateLimitConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	IngestTenantRate  float64
	IngestTenantBurst int
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		AppName:     getenv("APP_SERVICE", "gridora"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: getenv("ENVIRONMENT", "development"),

		HTTPAddr: getenv("HTTP_ADDR", ":8080"),

		LogLevel: getenv("LOG_LEVEL", "info"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "gridora"),
		DBUser:            getenv("DATABASE_USER", "gridora"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 25),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),

		SchedulerEnabled:     getenvBool("SCHEDULER_ENABLED", true),
		SchedulerInterval:    getenvDuration("SCHEDULER_INTERVAL", time.Minute),
		ReadingRetentionDays: getenvInt("READING_RETENTION_DAYS", 90),
		PaymentMaxAttempts:   getenvInt("PAYMENT_MAX_ATTEMPTS", 3),
		OrderConfirmAfter:    getenvDuration("ORDER_CONFIRM_AFTER", 5*time.Minute),

		RateLimit: RateLimitConfig{
			RedisAddr:         getenv("RATELIMIT_REDIS_ADDR", ""),
			RedisPassword:     getenv("RATELIMIT_REDIS_PASSWORD", ""),
			RedisDB:           getenvInt("RATELIMIT_REDIS_DB", 0),
			IngestTenantRate:  getenvFloat("RATELIMIT_INGEST_TENANT_RATE", 50),
			IngestTenantBurst: getenvInt("RATELIMIT_INGEST_TENANT_BURST", 100),
		},

		SeedDemoTenant: getenvBool("SEED_DEMO_TENANT", false),
	}
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return parsed
}
