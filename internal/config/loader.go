package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config captures environment driven configuration values for the service.
type Config struct {
	HTTPPort         int
	SQLiteDSN        string
	JWTSecret        string
	TokenTTL         time.Duration
	MediaDir         string
	ReminderInterval time.Duration
}

// Load parses configuration values from the current process environment.
//
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it. Optional fields fall back to
// sensible defaults while required values are validated and reported
// together.
func Load() (Config, error) {
	// godotenv never overwrites variables already set in the environment.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("failed to read .env file: %w", err)
	}

	cfg := Config{
		HTTPPort:         8080,
		SQLiteDSN:        "file:skillsetu.db?_foreign_keys=on",
		TokenTTL:         24 * time.Hour,
		MediaDir:         "uploads/message-uploads",
		ReminderInterval: time.Minute,
	}

	missing := make([]string, 0, 1)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv("SKILLSETU_HTTP_PORT")); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 {
			invalid = append(invalid, "SKILLSETU_HTTP_PORT")
		} else {
			cfg.HTTPPort = port
		}
	}

	if dsn := strings.TrimSpace(os.Getenv("SKILLSETU_SQLITE_DSN")); dsn != "" {
		cfg.SQLiteDSN = dsn
	}

	if secret := strings.TrimSpace(os.Getenv("SKILLSETU_JWT_SECRET")); secret == "" {
		missing = append(missing, "SKILLSETU_JWT_SECRET")
	} else {
		cfg.JWTSecret = secret
	}

	if ttlValue := strings.TrimSpace(os.Getenv("SKILLSETU_TOKEN_TTL")); ttlValue != "" {
		ttl, err := time.ParseDuration(ttlValue)
		if err != nil || ttl <= 0 {
			invalid = append(invalid, "SKILLSETU_TOKEN_TTL")
		} else {
			cfg.TokenTTL = ttl
		}
	}

	if dir := strings.TrimSpace(os.Getenv("SKILLSETU_MEDIA_DIR")); dir != "" {
		cfg.MediaDir = dir
	}

	if intervalValue := strings.TrimSpace(os.Getenv("SKILLSETU_REMINDER_INTERVAL")); intervalValue != "" {
		interval, err := time.ParseDuration(intervalValue)
		if err != nil || interval <= 0 {
			invalid = append(invalid, "SKILLSETU_REMINDER_INTERVAL")
		} else {
			cfg.ReminderInterval = interval
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables are not set: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("environment variables have invalid values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}
