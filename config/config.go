package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Engine   EngineConfig
	Auth     AuthConfig
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port string
	Host string
}

// EngineConfig holds escalation engine configuration
type EngineConfig struct {
	// WorkerIntervalSeconds is the cadence of the background evaluation pass
	// (0 = default one hour).
	WorkerIntervalSeconds int
	// DedupWindowHours is the rolling window during which a work item cannot
	// be re-escalated for the same trigger type (0 = default 24h).
	DedupWindowHours int
	// PendingMarginHours is the default lookahead margin of the pending
	// endpoint (0 = default 4h). Presentation-layer knob, never used inside
	// the evaluator.
	PendingMarginHours int
	// PoolSize bounds the number of candidates escalated concurrently within
	// a pass (0 = default 4).
	PoolSize int
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	JWTSecret     string
	TokenTTLHours int
}

// Engine defaults applied when the environment leaves a knob unset.
const (
	DefaultWorkerIntervalSeconds = 3600
	DefaultDedupWindowHours      = 24
	DefaultPendingMarginHours    = 4
	DefaultPoolSize              = 4
)

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "127.0.0.1"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: os.Getenv("DB_PASSWORD"),
			DBName:   getEnv("DB_NAME", "munify"),
		},
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("PORT", getEnv("SERVER_PORT", "8080")),
		},
		Engine: EngineConfig{
			WorkerIntervalSeconds: getEnvInt("ESCALATION_WORKER_INTERVAL_SECONDS", 0),
			DedupWindowHours:      getEnvInt("ESCALATION_DEDUP_WINDOW_HOURS", 0),
			PendingMarginHours:    getEnvInt("ESCALATION_PENDING_MARGIN_HOURS", 0),
			PoolSize:              getEnvInt("ESCALATION_POOL_SIZE", 0),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "munify-secret-change-in-production"),
			TokenTTLHours: getEnvInt("JWT_TTL_HOURS", 24),
		},
	}
}

// WorkerInterval returns the effective evaluation cadence.
func (c EngineConfig) WorkerInterval() time.Duration {
	secs := c.WorkerIntervalSeconds
	if secs <= 0 {
		secs = DefaultWorkerIntervalSeconds
	}
	return time.Duration(secs) * time.Second
}

// DedupWindow returns the effective dedup window.
func (c EngineConfig) DedupWindow() time.Duration {
	hours := c.DedupWindowHours
	if hours <= 0 {
		hours = DefaultDedupWindowHours
	}
	return time.Duration(hours) * time.Hour
}

// PendingMargin returns the effective default lookahead margin.
func (c EngineConfig) PendingMargin() time.Duration {
	hours := c.PendingMarginHours
	if hours <= 0 {
		hours = DefaultPendingMarginHours
	}
	return time.Duration(hours) * time.Hour
}

// EffectivePoolSize returns the effective per-pass concurrency bound.
func (c EngineConfig) EffectivePoolSize() int {
	if c.PoolSize <= 0 {
		return DefaultPoolSize
	}
	return c.PoolSize
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
