// Package config provides application configuration.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port   string
	AppEnv string

	DBDriver    string // postgres, sqlite, memory
	DatabaseURL string
	SQLitePath  string
	RedisURL    string

	JWTSecret     string
	AdminUsername string
	AdminPassword string

	TelegramBotToken string
	TelegramChatID   string
	AdminPanelURL    string

	LogLevel  string
	LogFormat string
	LogFile   string

	CORSOrigins []string

	BotReplyDelay     time.Duration
	ReconnectDelay    time.Duration
	ReconcileInterval time.Duration

	// Console only.
	APIBaseURL    string
	ConsoleChats  string // Status filter for the console's chat list
	ConsoleQuotes string

	// Warnings lists settings that were missing and replaced by a degraded default.
	Warnings []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:              getEnv("PORT", "8080"),
		AppEnv:            getEnv("APP_ENV", "development"),
		DBDriver:          strings.ToLower(getEnv("DB_DRIVER", "postgres")),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		SQLitePath:        getEnv("SQLITE_PATH", "./data/hekumbi.db"),
		RedisURL:          getEnv("REDIS_URL", ""),
		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPassword:     getEnv("ADMIN_PASSWORD", ""),
		TelegramBotToken:  getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:    getEnv("TELEGRAM_CHAT_ID", ""),
		AdminPanelURL:     getEnv("ADMIN_PANEL_URL", ""),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		LogFormat:         getEnv("LOG_FORMAT", ""),
		LogFile:           getEnv("LOG_FILE", ""),
		CORSOrigins:       getEnvList("CORS_ORIGINS", []string{"*"}),
		BotReplyDelay:     getEnvDuration("BOT_REPLY_DELAY", 1500*time.Millisecond),
		ReconnectDelay:    getEnvDuration("RECONNECT_DELAY", 5*time.Second),
		ReconcileInterval: getEnvDuration("RECONCILE_INTERVAL", 60*time.Second),
		APIBaseURL:        getEnv("API_BASE_URL", "http://localhost:8080"),
		ConsoleChats:      getEnv("CONSOLE_CHAT_STATUS", "all"),
		ConsoleQuotes:     getEnv("CONSOLE_QUOTE_STATUS", "all"),
	}

	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
		if !cfg.IsDevelopment() {
			cfg.LogFormat = "json"
		}
	}

	if cfg.DBDriver == "postgres" && cfg.DatabaseURL == "" {
		cfg.DBDriver = "memory"
		cfg.warn("DATABASE_URL not set: using the in-memory store, data is lost on restart")
	}

	if cfg.JWTSecret == "" {
		secret, err := randomSecret()
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.JWTSecret = secret
		cfg.warn("JWT_SECRET not set: using an ephemeral secret, admin sessions end on restart")
	}

	if cfg.AdminPassword == "" {
		cfg.warn("ADMIN_PASSWORD not set: admin login disabled")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.DBDriver {
	case "postgres", "memory":
	case "sqlite":
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH cannot be empty with DB_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("DB_DRIVER must be postgres, sqlite or memory, got %q", c.DBDriver)
	}
	if c.BotReplyDelay < 0 || c.ReconnectDelay <= 0 || c.ReconcileInterval <= 0 {
		return fmt.Errorf("BOT_REPLY_DELAY, RECONNECT_DELAY and RECONCILE_INTERVAL must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "" || c.AppEnv == "development" || c.AppEnv == "dev"
}

// AdminEnabled reports whether admin credentials were configured.
func (c *Config) AdminEnabled() bool {
	return c.AdminUsername != "" && c.AdminPassword != ""
}

func (c *Config) warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

func randomSecret() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// getEnvDuration accepts Go durations ("1.5s") or plain milliseconds ("1500").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	value = strings.TrimSpace(value)
	if ms, err := strconv.Atoi(value); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
