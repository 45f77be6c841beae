package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// Config captures environment driven configuration values for the conference
// core process.
type Config struct {
	SQLiteDSN    string
	BootstrapCSV string
	LogLevel     slog.Level
}

// Load parses configuration values from the current process environment.
//
// Every value has a sensible default; invalid entries are collected and
// reported together so operators fix them in one pass.
func Load() (Config, error) {
	cfg := Config{
		SQLiteDSN: "file:conference.db",
		LogLevel:  slog.LevelInfo,
	}

	invalid := make([]string, 0, 1)

	if dsn := strings.TrimSpace(os.Getenv("CONFERENCE_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if path := strings.TrimSpace(os.Getenv("CONFERENCE_BOOTSTRAP_CSV")); path != "" {
		cfg.BootstrapCSV = path
	}

	if level := strings.TrimSpace(os.Getenv("CONFERENCE_LOG_LEVEL")); level != "" {
		switch strings.ToLower(level) {
		case "debug":
			cfg.LogLevel = slog.LevelDebug
		case "info":
			cfg.LogLevel = slog.LevelInfo
		case "warn":
			cfg.LogLevel = slog.LevelWarn
		case "error":
			cfg.LogLevel = slog.LevelError
		default:
			invalid = append(invalid, "CONFERENCE_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
