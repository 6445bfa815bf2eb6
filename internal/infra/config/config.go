package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Config aggregates application configuration values loaded from environment
// variables.
type Config struct {
	Env      string
	HTTPAddr string

	StoreMode string // "mongo" or "memory"
	MongoURI  string
	MongoDB   string

	RedisURL string
	CacheTTL time.Duration

	RetentionWindow time.Duration
	CleanupEnabled  bool
	CleanupCron     string
	StatsCron       string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	TelegramBotToken string
	TelegramAPIBase  string
	WebhookURL       string
}

const (
	StoreModeMongo  = "mongo"
	StoreModeMemory = "memory"
)

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:              getEnv("APP_ENV", "dev"),
		HTTPAddr:         getEnv("HTTP_ADDR", ":8080"),
		StoreMode:        strings.ToLower(getEnv("STORE_MODE", StoreModeMongo)),
		MongoURI:         os.Getenv("MONGO_URI"),
		MongoDB:          getEnv("MONGO_DB", "chatdesk"),
		RedisURL:         os.Getenv("REDIS_URL"),
		CleanupCron:      getEnv("CLEANUP_CRON", "0 2 * * *"),
		StatsCron:        getEnv("STATS_CRON", "0 * * * *"),
		KafkaTopicPrefix: getEnv("KAFKA_TOPIC_PREFIX", ""),
		TelegramBotToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
		TelegramAPIBase:  getEnv("TELEGRAM_API_BASE", "https://api.telegram.org"),
		WebhookURL:       os.Getenv("WEBHOOK_URL"),
	}

	if brokers := getEnv("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	cacheTTL, err := parseDurationEnv("CACHE_TTL", time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.CacheTTL = cacheTTL

	retention, err := parseDurationEnv("RETENTION_WINDOW", 7*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cfg.RetentionWindow = retention

	enabled, err := parseBoolEnv("CLEANUP_ENABLED", true)
	if err != nil {
		return Config{}, err
	}
	cfg.CleanupEnabled = enabled

	switch cfg.StoreMode {
	case StoreModeMongo:
		if cfg.MongoURI == "" {
			return Config{}, fmt.Errorf("MONGO_URI is required when STORE_MODE=%s", StoreModeMongo)
		}
	case StoreModeMemory:
	default:
		return Config{}, fmt.Errorf("invalid STORE_MODE: %q", cfg.StoreMode)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
