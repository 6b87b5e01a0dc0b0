package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// AppConfig holds all configuration for the application
type AppConfig struct {
	TelegramToken   string
	AdminTelegramID int64
	DatabaseDriver  string // "sqlite3" or "postgres"
	DatabaseURL     string
	GroupsFile      string
	TimetableDir    string
	CronSpecCheck   string
	WeeksAhead      int
	LogLevel        string
	Environment     string
}

// Load reads configuration from environment variables and .env file (if present).
func Load() (*AppConfig, error) {
	// Attempt to load .env file. Errors are ignored if the file doesn't exist.
	// godotenv.Load will not override existing env variables.
	_ = godotenv.Load()

	cfg := &AppConfig{}
	var err error

	cfg.TelegramToken = os.Getenv("TELEGRAM_TOKEN")
	if cfg.TelegramToken == "" {
		return nil, fmt.Errorf("TELEGRAM_TOKEN is not set")
	}

	adminIDStr := os.Getenv("ADMIN_TELEGRAM_ID")
	if adminIDStr != "" {
		cfg.AdminTelegramID, err = strconv.ParseInt(adminIDStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_TELEGRAM_ID: %w", err)
		}
	}

	cfg.DatabaseDriver = strings.ToLower(os.Getenv("DATABASE_DRIVER"))
	if cfg.DatabaseDriver == "" {
		cfg.DatabaseDriver = "sqlite3"
	}
	if cfg.DatabaseDriver != "sqlite3" && cfg.DatabaseDriver != "postgres" {
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER: %q", cfg.DatabaseDriver)
	}

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		if cfg.DatabaseDriver == "postgres" {
			return nil, fmt.Errorf("DATABASE_URL is not set")
		}
		cfg.DatabaseURL = "timetable.db" // Local SQLite file next to the binary
	}

	cfg.GroupsFile = os.Getenv("GROUPS_FILE")
	if cfg.GroupsFile == "" {
		cfg.GroupsFile = "groups.txt"
	}

	cfg.TimetableDir = os.Getenv("TIMETABLE_DIR")
	if cfg.TimetableDir == "" {
		cfg.TimetableDir = "timetables"
	}

	cfg.CronSpecCheck = os.Getenv("CRON_SPEC_CHECK")
	if cfg.CronSpecCheck == "" {
		cfg.CronSpecCheck = "*/30 * * * *" // Default: every 30 minutes
	}

	weeksAheadStr := os.Getenv("WEEKS_AHEAD")
	if weeksAheadStr == "" {
		cfg.WeeksAhead = 2 // Current week and the next one
	} else {
		cfg.WeeksAhead, err = strconv.Atoi(weeksAheadStr)
		if err != nil || cfg.WeeksAhead < 1 {
			return nil, fmt.Errorf("invalid WEEKS_AHEAD: %q", weeksAheadStr)
		}
	}

	cfg.LogLevel = strings.ToLower(os.Getenv("LOG_LEVEL"))
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info" // Default log level
	}

	cfg.Environment = strings.ToLower(os.Getenv("ENVIRONMENT"))
	if cfg.Environment == "" {
		cfg.Environment = "development" // Default environment
	}

	return cfg, nil
}
