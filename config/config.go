package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string
	DBDriver         string

	TelegramBotToken string
	TelegramChatID   int64
	MessageTemplate  string

	EbayAppID      string
	EbayGlobalID   string
	EbayTimeoutSec int
	EbayRPS        float64

	FuzzyThreshold       int
	MaxVariants          int
	EnableVariants       bool
	SoldCompLimit        int
	ActiveListingLimit   int
	LowVarianceThreshold float64

	VintedBaseURL     string
	ItemsPerQuery     int
	NewItemMaxAgeMin  int
	ScrapeIntervalSec int
	QueueDrainMs      int
	MaxConcurrency    int
	RateLimitMs       int
	MaxRetries        int
	ChromeBin         string

	CSVOutputPath string
	HTTPAddr      string
	LogLevel      string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "monitor"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "monitor123"),
		PostgresDB:       getEnv("POSTGRES_DB", "vinted_monitor"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),
		DBDriver:         getEnv("DB_DRIVER", "postgres"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		TelegramChatID:   getEnvInt64("TELEGRAM_CHAT_ID", 0),
		MessageTemplate:  getEnv("MESSAGE_TEMPLATE", ""),

		EbayAppID:      getEnv("EBAY_APP_ID", getEnv("EBAY_APPID", "")),
		EbayGlobalID:   getEnv("EBAY_GLOBAL_ID", "EBAY-DE"),
		EbayTimeoutSec: getEnvInt("EBAY_TIMEOUT_SEC", 12),
		EbayRPS:        getEnvFloat("EBAY_RPS", 2),

		FuzzyThreshold:       getEnvInt("FUZZY_THRESHOLD", 72),
		MaxVariants:          getEnvInt("MAX_VARIANTS", 5),
		EnableVariants:       getEnvBool("ENABLE_VARIANTS", true),
		SoldCompLimit:        getEnvInt("SOLD_COMP_LIMIT", 5),
		ActiveListingLimit:   getEnvInt("ACTIVE_LISTING_LIMIT", 10),
		LowVarianceThreshold: getEnvFloat("LOW_VARIANCE_THRESHOLD", 0.35),

		VintedBaseURL:     getEnv("VINTED_BASE_URL", "https://www.vinted.fr"),
		ItemsPerQuery:     getEnvInt("ITEMS_PER_QUERY", 20),
		NewItemMaxAgeMin:  getEnvInt("NEW_ITEM_MAX_AGE_MIN", 3),
		ScrapeIntervalSec: getEnvInt("SCRAPE_INTERVAL_SEC", 60),
		QueueDrainMs:      getEnvInt("QUEUE_DRAIN_MS", 100),
		MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 2),
		RateLimitMs:       getEnvInt("RATE_LIMIT_MS", 1500),
		MaxRetries:        getEnvInt("MAX_RETRIES", 3),
		ChromeBin:         getEnv("CHROME_BIN", ""),

		CSVOutputPath: getEnv("CSV_OUTPUT_PATH", "./output/notified_items.csv"),
		HTTPAddr:      getEnv("HTTP_ADDR", ":8080"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
	}
}

// Validate rejects values the monitor cannot run with.
func (c *Config) Validate() error {
	if c.FuzzyThreshold < 0 || c.FuzzyThreshold > 100 {
		return fmt.Errorf("FUZZY_THRESHOLD must be within [0,100], got %d", c.FuzzyThreshold)
	}
	if c.MaxVariants < 1 {
		return fmt.Errorf("MAX_VARIANTS must be at least 1, got %d", c.MaxVariants)
	}
	if c.SoldCompLimit < 1 {
		return fmt.Errorf("SOLD_COMP_LIMIT must be at least 1, got %d", c.SoldCompLimit)
	}
	if c.ActiveListingLimit < 0 {
		return fmt.Errorf("ACTIVE_LISTING_LIMIT cannot be negative, got %d", c.ActiveListingLimit)
	}
	if c.LowVarianceThreshold < 0 {
		return fmt.Errorf("LOW_VARIANCE_THRESHOLD cannot be negative, got %v", c.LowVarianceThreshold)
	}
	if c.ItemsPerQuery < 1 {
		return fmt.Errorf("ITEMS_PER_QUERY must be at least 1, got %d", c.ItemsPerQuery)
	}
	if c.ScrapeIntervalSec < 1 {
		return fmt.Errorf("SCRAPE_INTERVAL_SEC must be at least 1, got %d", c.ScrapeIntervalSec)
	}

	switch c.DBDriver {
	case "postgres", "pgx":
	default:
		return fmt.Errorf("invalid DB_DRIVER: %s (must be postgres or pgx)", c.DBDriver)
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %s (must be debug, info, warn, or error)", c.LogLevel)
	}

	if c.TelegramBotToken != "" && c.TelegramChatID == 0 {
		return errors.New("TELEGRAM_CHAT_ID is required when TELEGRAM_BOT_TOKEN is set")
	}
	return nil
}

// DSN returns the PostgreSQL connection string. Both lib/pq and the pgx
// stdlib driver accept the key/value form.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// EbayTimeout is the per-request timeout of the pricing API client.
func (c *Config) EbayTimeout() time.Duration {
	return time.Duration(c.EbayTimeoutSec) * time.Second
}

// ScrapeInterval is the pause between two scrape cycles.
func (c *Config) ScrapeInterval() time.Duration {
	return time.Duration(c.ScrapeIntervalSec) * time.Second
}

// QueueDrainInterval is the pause between two queue drains.
func (c *Config) QueueDrainInterval() time.Duration {
	return time.Duration(c.QueueDrainMs) * time.Millisecond
}

// NewItemMaxAge is how old a listing may be and still count as new.
func (c *Config) NewItemMaxAge() time.Duration {
	return time.Duration(c.NewItemMaxAgeMin) * time.Minute
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(strings.TrimSpace(val))
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvInt64(key string, fallback int64) int64 {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.ParseInt(strings.TrimSpace(val), 10, 64)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
