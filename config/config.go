package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
	_ "time/tzdata" // scheduler timezones on minimal images

	"github.com/joho/godotenv"
)

// Config holds application configuration loaded from environment.
type Config struct {
	App       AppConfig
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Worker    WorkerConfig
	Scheduler SchedulerConfig
	Metrics   MetricsConfig
}

// AppConfig holds values exposed to clients.
type AppConfig struct {
	Version string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port               string
	ReadTimeout        int
	WriteTimeout       int
	CORSAllowedOrigins string // comma-separated, or "*" for all
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL      string // if set, used as-is
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int
	MinConns        int
	MaxConnIdleTime time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// JWTConfig holds JWT validation settings. Tokens are issued by the identity service.
type JWTConfig struct {
	Secret      string
	ExpireHours int
}

// WorkerConfig holds background job settings.
type WorkerConfig struct {
	Concurrency  int
	JobTimeout   time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
	// Inline runs the job pool inside the HTTP server process.
	Inline bool
}

// SchedulerConfig holds periodic sweep settings.
type SchedulerConfig struct {
	Timezone           string
	EventSweepInterval time.Duration
	CodeSweepInterval  time.Duration
	AgeSweepHour       int
}

// MetricsConfig holds the worker metrics listener.
type MetricsConfig struct {
	Addr string
}

// DSN returns the PostgreSQL connection string.
// If DatabaseConfig.URL is set (e.g. DATABASE_URL env), it is used as-is; otherwise built from components.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

// Location resolves the scheduler timezone, falling back to UTC.
func (c SchedulerConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load reads configuration from environment, with optional .env file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Version: getEnv("APP_VERSION", "dev"),
		},
		Server: ServerConfig{
			Port:               getEnv("PORT", "8080"),
			ReadTimeout:        getEnvInt("READ_TIMEOUT_SEC", 30),
			WriteTimeout:       getEnvInt("WRITE_TIMEOUT_SEC", 30),
			CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),
		},
		Database: DatabaseConfig{
			URL:      getEnv("DATABASE_URL", ""),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", "postgres"),
			DBName:   getEnv("DB_NAME", "blanball"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:      getEnv("JWT_SECRET", "change-me-in-production"),
			ExpireHours: getEnvInt("JWT_EXPIRE_HOURS", 24),
		},
		Worker: WorkerConfig{
			Concurrency:  getEnvInt("WORKER_CONCURRENCY", 4),
			JobTimeout:   getEnvDuration("WORKER_JOB_TIMEOUT", 5*time.Second),
			MaxRetries:   getEnvInt("WORKER_MAX_RETRIES", 3),
			RetryBackoff: getEnvDuration("WORKER_RETRY_BACKOFF", 5*time.Second),
			Inline:       getEnvBool("WORKER_INLINE", true),
		},
		Scheduler: SchedulerConfig{
			Timezone:           getEnv("SCHEDULER_TZ", "UTC"),
			EventSweepInterval: getEnvDuration("EVENT_SWEEP_INTERVAL", time.Minute),
			CodeSweepInterval:  getEnvDuration("CODE_SWEEP_INTERVAL", 10*time.Minute),
			AgeSweepHour:       getEnvInt("AGE_SWEEP_HOUR", 0),
		},
		Metrics: MetricsConfig{
			Addr: getEnv("METRICS_ADDR", ":9090"),
		},
	}
	if cfg.Worker.Concurrency <= 0 {
		return nil, fmt.Errorf("WORKER_CONCURRENCY must be positive, got %d", cfg.Worker.Concurrency)
	}
	if cfg.Database.MinConns > cfg.Database.MaxConns {
		return nil, fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", cfg.Database.MinConns, cfg.Database.MaxConns)
	}
	if cfg.Scheduler.AgeSweepHour < 0 || cfg.Scheduler.AgeSweepHour > 23 {
		return nil, fmt.Errorf("AGE_SWEEP_HOUR must be within 0..23, got %d", cfg.Scheduler.AgeSweepHour)
	}
	return cfg, nil
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
