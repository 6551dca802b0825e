package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the calendar
// service.
type Config struct {
	SQLiteDSN    string
	PollInterval time.Duration
	PollWindow   time.Duration
	LogLevel     string
}

// Load parses configuration from the process environment, after best-effort
// loading of a local .env file. Defaults cover every value, so an empty
// environment yields a working configuration.
func Load() (Config, error) {
	// A missing .env file is the normal production case.
	_ = godotenv.Load()

	cfg := Config{
		SQLiteDSN:    "file:calendar.db",
		PollInterval: time.Minute,
		PollWindow:   15 * time.Minute,
		LogLevel:     "info",
	}

	invalid := make([]string, 0, 2)

	if dsn := strings.TrimSpace(os.Getenv("CALENDAR_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if value := strings.TrimSpace(os.Getenv("CALENDAR_POLL_INTERVAL")); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, "CALENDAR_POLL_INTERVAL")
		} else {
			cfg.PollInterval = d
		}
	}

	if value := strings.TrimSpace(os.Getenv("CALENDAR_POLL_WINDOW")); value != "" {
		d, err := time.ParseDuration(value)
		if err != nil || d <= 0 {
			invalid = append(invalid, "CALENDAR_POLL_WINDOW")
		} else {
			cfg.PollWindow = d
		}
	}

	if value := strings.TrimSpace(os.Getenv("CALENDAR_LOG_LEVEL")); value != "" {
		switch strings.ToLower(value) {
		case "debug", "info", "warn", "error":
			cfg.LogLevel = strings.ToLower(value)
		default:
			invalid = append(invalid, "CALENDAR_LOG_LEVEL")
		}
	}

	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid environment variable values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
