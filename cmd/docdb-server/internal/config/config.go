package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all server configuration.
type Config struct {
	// HTTP server
	HTTPAddr      string
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	IdleTimeout   time.Duration
	ShutdownGrace time.Duration

	// Query execution limits
	QueryConcurrency    int
	QueryTimeout        time.Duration
	ExecutionIdleTimeout time.Duration
	MaxOpenExecutions   int
	MaxExecPerClient    int

	// Auth
	AuthDisabled bool
	APIKey       string
	JWTSecret    string

	// Observability
	EnableMetrics bool
	LogLevel      string
}

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:          getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:         getDuration("WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:          getDuration("IDLE_TIMEOUT", 120*time.Second),
		ShutdownGrace:        getDuration("SHUTDOWN_GRACE", 30*time.Second),
		QueryConcurrency:     getInt("QUERY_CONCURRENCY", 32),
		QueryTimeout:         getDuration("QUERY_TIMEOUT_MS", 2000*time.Millisecond),
		ExecutionIdleTimeout: getDuration("EXECUTION_IDLE_TIMEOUT_MS", 60000*time.Millisecond),
		MaxOpenExecutions:    getInt("MAX_OPEN_EXECUTIONS", 200),
		MaxExecPerClient:     getInt("MAX_EXEC_PER_CLIENT", 20),
		AuthDisabled:         getBool("AUTH_DISABLED", false),
		APIKey:               os.Getenv("API_KEY"),
		JWTSecret:            os.Getenv("JWT_SECRET"),
		EnableMetrics:        getBool("ENABLE_METRICS", true),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
	}

	if !cfg.AuthDisabled && cfg.APIKey == "" && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("either API_KEY or JWT_SECRET is required when AUTH_DISABLED is false")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if ms, err := strconv.ParseInt(value, 10, 64); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
