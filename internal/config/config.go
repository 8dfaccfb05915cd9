// Package config handles application configuration from environment
// variables, an optional .env file and an optional config.yaml.
package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	TelegramBotToken    string
	DatabasePath        string
	LogLevel            string
	LogFile             string
	AllowedUsers        []int64
	AdminChatID         int64
	MetricsAddr         string
	SupervisorSchedule  string
	SearchURLTemplate   string
	SimilarityThreshold float64
	RetryLimit          int
	ClassifierTimeout   time.Duration
	LoginBackoff        time.Duration
}

var defaults = map[string]string{
	"DATABASE_PATH":        "./data/monitor.db",
	"LOG_LEVEL":            "info",
	"SUPERVISOR_SCHEDULE":  "@every 1m",
	"SEARCH_URL_TEMPLATE":  "https://{network}/search/rss?q={query}",
	"SIMILARITY_THRESHOLD": "0.82",
	"RETRY_LIMIT":          "5",
	"CLASSIFIER_TIMEOUT":   "20s",
	"LOGIN_BACKOFF":        "60s",
}

var keys = []string{
	"TELEGRAM_BOT_TOKEN", "DATABASE_PATH", "LOG_LEVEL", "LOG_FILE",
	"ALLOWED_USERS", "ADMIN_CHAT_ID", "METRICS_ADDR", "SUPERVISOR_SCHEDULE",
	"SEARCH_URL_TEMPLATE", "SIMILARITY_THRESHOLD", "RETRY_LIMIT",
	"CLASSIFIER_TIMEOUT", "LOGIN_BACKOFF",
}

// Load reads configuration. A .env file in the working directory is loaded
// first when present; environment variables override config.yaml values.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AutomaticEnv()
	for _, k := range keys {
		v.SetDefault(k, defaults[k])
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	return parse(v)
}

func parse(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		TelegramBotToken:   strings.TrimSpace(v.GetString("TELEGRAM_BOT_TOKEN")),
		DatabasePath:       v.GetString("DATABASE_PATH"),
		LogLevel:           strings.ToLower(v.GetString("LOG_LEVEL")),
		LogFile:            v.GetString("LOG_FILE"),
		MetricsAddr:        v.GetString("METRICS_ADDR"),
		SupervisorSchedule: v.GetString("SUPERVISOR_SCHEDULE"),
		SearchURLTemplate:  v.GetString("SEARCH_URL_TEMPLATE"),
	}

	if raw := v.GetString("ALLOWED_USERS"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			uid, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid user ID %q in ALLOWED_USERS: %w", s, err)
			}
			cfg.AllowedUsers = append(cfg.AllowedUsers, uid)
		}
	}

	if raw := strings.TrimSpace(v.GetString("ADMIN_CHAT_ID")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_CHAT_ID %q: %w", raw, err)
		}
		cfg.AdminChatID = id
	}

	threshold, err := strconv.ParseFloat(v.GetString("SIMILARITY_THRESHOLD"), 64)
	if err != nil || threshold <= 0 || threshold > 1 {
		return nil, fmt.Errorf("SIMILARITY_THRESHOLD must be in (0,1], got %q", v.GetString("SIMILARITY_THRESHOLD"))
	}
	cfg.SimilarityThreshold = threshold

	limit, err := strconv.Atoi(v.GetString("RETRY_LIMIT"))
	if err != nil || limit < 1 {
		return nil, fmt.Errorf("RETRY_LIMIT must be a positive integer, got %q", v.GetString("RETRY_LIMIT"))
	}
	cfg.RetryLimit = limit

	if cfg.ClassifierTimeout, err = duration(v, "CLASSIFIER_TIMEOUT"); err != nil {
		return nil, err
	}
	if cfg.LoginBackoff, err = duration(v, "LOGIN_BACKOFF"); err != nil {
		return nil, err
	}

	if !strings.Contains(cfg.SearchURLTemplate, "{query}") {
		return nil, fmt.Errorf("SEARCH_URL_TEMPLATE must contain {query}")
	}

	return cfg, nil
}

func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.GetString(key)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration, got %q", key, raw)
	}
	return d, nil
}

// BotEnabled reports whether the Telegram operator bot is configured.
func (c *Config) BotEnabled() bool {
	return c.TelegramBotToken != ""
}

// IsUserAllowed checks whether a user ID is in the allow list.
// Returns true if the allow list is empty (all users permitted).
func (c *Config) IsUserAllowed(userID int64) bool {
	if len(c.AllowedUsers) == 0 {
		return true
	}
	for _, id := range c.AllowedUsers {
		if id == userID {
			return true
		}
	}
	return false
}
