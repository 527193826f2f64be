package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Dispatch DispatchConfig
	Redis    RedisConfig
	NATS     NATSConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            string
	Environment     string
	AllowedOrigins  string // Comma-separated list of allowed origins
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// DispatchConfig tunes the offer auction.
//
// OfferTTL bounds one auction round; RetryDelay paces empty rounds; Linger is
// how long a terminal ride keeps its room before teardown.
type DispatchConfig struct {
	BatchSize     int
	MaxRounds     int
	OfferTTL      time.Duration
	DriverStale   time.Duration
	RetryDelay    time.Duration
	Linger        time.Duration
	QuickTestMode bool
}

// RedisConfig holds Redis configuration. Empty Addr disables Redis-backed
// features (chat history, location mirror).
type RedisConfig struct {
	Addr           string
	Password       string
	DB             int
	ChatHistoryTTL time.Duration
}

// Enabled reports whether a Redis backend is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// NATSConfig holds NATS configuration. Empty URL disables event publishing.
type NATSConfig struct {
	URL string
}

// Enabled reports whether a NATS backend is configured.
func (c NATSConfig) Enabled() bool {
	return c.URL != ""
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnv("PORT", "10000"),
			Environment:     getEnv("ENVIRONMENT", "development"),
			AllowedOrigins:  getEnv("ALLOWED_ORIGINS", "*"),
			RequestTimeout:  time.Duration(getEnvAsInt("REQUEST_TIMEOUT_SECONDS", 10)) * time.Second,
			ShutdownTimeout: time.Duration(getEnvAsInt("SHUTDOWN_TIMEOUT_SECONDS", 5)) * time.Second,
		},
		Dispatch: DispatchConfig{
			BatchSize:     getEnvAsInt("BATCH_SIZE", 3),
			MaxRounds:     getEnvAsInt("MAX_ROUNDS", 3),
			OfferTTL:      getEnvAsMillis("OFFER_TTL_MS", 12000),
			DriverStale:   getEnvAsMillis("DRIVER_STALE_MS", 30000),
			RetryDelay:    getEnvAsMillis("RETRY_DELAY_MS", 2000),
			Linger:        getEnvAsMillis("LINGER_MS", 3000),
			QuickTestMode: getEnvAsBool("QUICK_TEST_MODE", false),
		},
		Redis: RedisConfig{
			Addr:           getEnv("REDIS_ADDR", ""),
			Password:       getEnv("REDIS_PASSWORD", ""),
			DB:             getEnvAsInt("REDIS_DB", 0),
			ChatHistoryTTL: time.Duration(getEnvAsInt("CHAT_HISTORY_TTL_HOURS", 24)) * time.Hour,
		},
		NATS: NATSConfig{
			URL: getEnv("NATS_URL", ""),
		},
	}

	if cfg.Dispatch.BatchSize <= 0 {
		cfg.Dispatch.BatchSize = 3
	}
	if cfg.Dispatch.MaxRounds <= 0 {
		cfg.Dispatch.MaxRounds = 3
	}
	if cfg.Dispatch.OfferTTL <= 0 {
		cfg.Dispatch.OfferTTL = 12 * time.Second
	}
	if cfg.Dispatch.RetryDelay <= 0 {
		cfg.Dispatch.RetryDelay = 2 * time.Second
	}
	if cfg.Dispatch.Linger <= 0 {
		cfg.Dispatch.Linger = 3 * time.Second
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}
