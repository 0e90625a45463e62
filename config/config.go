// Package config loads application configuration from environment
// variables (optionally seeded from a .env file).
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Alphafeed credentials
	FeedAPIKey     string
	FeedClientID   string
	FeedTOTPSecret string
	FeedRootURL    string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	GatewayAddr   string

	// Scheduler
	Interval             time.Duration
	TickTimeout          time.Duration
	MaxConcurrentFetches int
	HistoryBars          int
	MarketHoursOnly      bool

	// FreshnessWindow bounds how long a cached indicator snapshot may be
	// served; it is the Redis cache TTL.
	FreshnessWindow time.Duration

	// Notifications
	WebhookURL       string
	TelegramBotToken string
	TelegramChatID   string

	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. A .env file in the working directory is applied first if
// present.
func Load() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("[config] loaded .env")
	}

	return &Config{
		FeedAPIKey:     mustEnv("ALPHAFEED_API_KEY"),
		FeedClientID:   mustEnv("ALPHAFEED_CLIENT_ID"),
		FeedTOTPSecret: mustEnv("ALPHAFEED_TOTP_SECRET"),
		FeedRootURL:    getEnv("ALPHAFEED_ROOT_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/alerts.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		GatewayAddr:   getEnv("GATEWAY_ADDR", ":8080"),

		Interval:             durationEnv("MONITOR_INTERVAL", 15*time.Minute),
		TickTimeout:          durationEnv("TICK_TIMEOUT", 5*time.Minute),
		MaxConcurrentFetches: intEnv("MAX_CONCURRENT_FETCHES", 8),
		HistoryBars:          intEnv("HISTORY_BARS", 60),
		MarketHoursOnly:      boolEnv("MARKET_HOURS_ONLY", true),

		FreshnessWindow: durationEnv("FRESHNESS_WINDOW", 15*time.Minute),

		WebhookURL:       getEnv("WEBHOOK_URL", ""),
		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnv("TELEGRAM_CHAT_ID", ""),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("[config] required env var %s not set", key)
	}
	return v
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func intEnv(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func boolEnv(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("[config] invalid %s=%q, using %v", key, v, fallback)
		return fallback
	}
	return b
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
