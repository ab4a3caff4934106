// Package config loads operational tuning from the environment.
//
// The statement timeout and payload caps are deliberately configuration
// rather than constants; the defaults here are the documented ones and are
// visible in the audit surface through behavior, not guesswork.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fintalk/queryc/internal/spec"
)

// Config holds every tunable of the query compiler core.
type Config struct {
	// DBPath locates the SQLite ledger.
	DBPath string

	// StatementTimeout bounds one statement execution.
	StatementTimeout time.Duration

	// Payload caps applied before structural validation.
	MaxPayloadBytes  int
	MaxPayloadLeaves int
	MaxPayloadDepth  int

	// LogLevel for the structured logger.
	LogLevel slog.Level
}

// Load reads configuration from QUERYC_* environment variables, falling
// back to documented defaults.
func Load() *Config {
	return &Config{
		DBPath:           getEnv("QUERYC_DB_PATH", "./data/ledger.db"),
		StatementTimeout: getEnvDuration("QUERYC_STATEMENT_TIMEOUT", 2*time.Second),
		MaxPayloadBytes:  getEnvInt("QUERYC_MAX_PAYLOAD_BYTES", 4096),
		MaxPayloadLeaves: getEnvInt("QUERYC_MAX_PAYLOAD_LEAVES", 20),
		MaxPayloadDepth:  getEnvInt("QUERYC_MAX_PAYLOAD_DEPTH", 3),
		LogLevel:         getEnvLevel("QUERYC_LOG_LEVEL", slog.LevelInfo),
	}
}

// Validate checks the configuration for values that cannot work.
func (c *Config) Validate() error {
	var problems []string

	if c.DBPath == "" {
		problems = append(problems, "database path must not be empty")
	}
	if c.StatementTimeout <= 0 {
		problems = append(problems, "statement timeout must be positive")
	}
	if c.StatementTimeout > time.Minute {
		problems = append(problems, "statement timeout above one minute defeats the execution budget")
	}
	if c.MaxPayloadBytes < 256 {
		problems = append(problems, "payload byte cap below 256 rejects every realistic spec")
	}
	if c.MaxPayloadLeaves < 1 || c.MaxPayloadDepth < 1 {
		problems = append(problems, "payload leaf and depth caps must be positive")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Caps returns the payload caps in the validator's terms.
func (c *Config) Caps() spec.Caps {
	return spec.Caps{
		MaxBytes:  c.MaxPayloadBytes,
		MaxLeaves: c.MaxPayloadLeaves,
		MaxDepth:  c.MaxPayloadDepth,
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
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

func getEnvLevel(key string, fallback slog.Level) slog.Level {
	switch strings.ToLower(os.Getenv(key)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return fallback
	}
}
