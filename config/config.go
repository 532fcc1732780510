package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the pool service's configuration values.
type Config struct {
	// Server
	Env             string
	DebugAddr       string
	GracefulTimeout time.Duration

	// Pool
	Targets       []string
	Capacity      int
	IdleTimeoutMs int64

	// Logging
	LogLevel string
}

// Load reads configuration from environment variables and an optional .env
// file.
func Load() *Config {
	_ = godotenv.Load()

	gracefulSec := getEnvInt("POOL_GRACEFUL_TIMEOUT_SEC", 15)

	return &Config{
		Env:             getEnv("ENV", "development"),
		DebugAddr:       getEnv("POOL_DEBUG_ADDR", ":8090"),
		GracefulTimeout: time.Duration(gracefulSec) * time.Second,
		Targets:         getEnvList("POOL_TARGETS", nil),
		Capacity:        getEnvInt("POOL_CAPACITY", 0),
		IdleTimeoutMs:   int64(getEnvInt("POOL_IDLE_TIMEOUT_MS", 2000)),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

// getEnvList splits a comma-separated env var into a trimmed, non-empty
// slice of target URLs.
func getEnvList(key string, fallback []string) []string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
