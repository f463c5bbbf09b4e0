package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openfolio/pulse/pkg/analytics"
	"github.com/openfolio/pulse/pkg/cache"
	"github.com/openfolio/pulse/pkg/observability"
	"github.com/openfolio/pulse/pkg/store"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Durable store configuration
	Store store.Config

	// Tiered cache configuration
	Cache cache.Config

	// Analytics configuration
	Analytics analytics.Config

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Store:         loadStoreConfig(),
		Cache:         loadCacheConfig(),
		Analytics:     loadAnalyticsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("PULSE_HOST", "0.0.0.0"),
		Port:            getEnv("PULSE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("PULSE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("PULSE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("PULSE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("PULSE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

// loadStoreConfig loads durable store configuration from environment
func loadStoreConfig() store.Config {
	cfg := store.DefaultConfig()

	if redisURL := getEnv("PULSE_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("PULSE_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("PULSE_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if maxRetries := getEnvInt("PULSE_REDIS_MAX_RETRIES", 0); maxRetries > 0 {
		cfg.RedisMaxRetries = maxRetries
	}
	if poolSize := getEnvInt("PULSE_REDIS_POOL_SIZE", 0); poolSize > 0 {
		cfg.RedisPoolSize = poolSize
	}
	if opTimeout := getEnvDuration("PULSE_STORE_OP_TIMEOUT", 0); opTimeout > 0 {
		cfg.OpTimeout = opTimeout
	}

	return cfg
}

// loadCacheConfig loads tiered cache configuration from environment
func loadCacheConfig() cache.Config {
	cfg := cache.DefaultConfig()

	if capacity := getEnvInt("PULSE_CACHE_CAPACITY", 0); capacity > 0 {
		cfg.Capacity = capacity
	}
	if localTTL := getEnvDuration("PULSE_CACHE_LOCAL_TTL", 0); localTTL > 0 {
		cfg.LocalTTL = localTTL
	}

	return cfg
}

// loadAnalyticsConfig loads analytics configuration from environment
func loadAnalyticsConfig() analytics.Config {
	cfg := analytics.DefaultConfig()

	if window := getEnvDuration("PULSE_REALTIME_WINDOW", 0); window > 0 {
		cfg.RealtimeWindow = window
	}
	if ttl := getEnvDuration("PULSE_VISITOR_SET_TTL", 0); ttl > 0 {
		cfg.VisitorSetTTL = ttl
	}
	if retention := getEnvDuration("PULSE_EVENT_RETENTION", 0); retention > 0 {
		cfg.RetentionWindow = retention
	}
	if topK := getEnvInt("PULSE_LINK_HISTOGRAM_TOP_K", 0); topK > 0 {
		cfg.LinkHistogramTopK = topK
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:       parseLogLevel(getEnv("PULSE_LOG_LEVEL", "info")),
		MetricsEnabled: getEnvBool("PULSE_METRICS_ENABLED", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Store.RedisURL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Cache.Capacity <= 0 {
		return fmt.Errorf("cache capacity must be positive")
	}
	if c.Analytics.RealtimeWindow <= 0 {
		return fmt.Errorf("realtime window must be positive")
	}
	if c.Analytics.RetentionWindow < c.Analytics.VisitorSetTTL {
		return fmt.Errorf("event retention must be at least the visitor set TTL")
	}
	return nil
}

// parseLogLevel parses a log level string
func parseLogLevel(level string) observability.LogLevel {
	switch strings.ToLower(level) {
	case "debug":
		return observability.DebugLevel
	case "info":
		return observability.InfoLevel
	case "warn", "warning":
		return observability.WarnLevel
	case "error":
		return observability.ErrorLevel
	default:
		return observability.InfoLevel
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
