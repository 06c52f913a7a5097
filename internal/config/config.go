package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Service configuration
	ServiceHost string
	ServicePort string

	// Database configuration
	DatabaseURL      string
	DatabaseMaxConns int

	// Redis configuration
	RedisURL      string
	RedisMaxConns int

	// Logging configuration
	LogLevel string

	// Metrics configuration
	MetricsPort string

	// Tracing configuration
	TracingEnabled bool

	// Recipe service configuration
	RecipeServiceURL string

	// Background job intervals
	SweepInterval              time.Duration
	IdempotencyCleanupInterval time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{}

	// Service configuration
	cfg.ServiceHost = os.Getenv("PANTRY_SERVICE_HOST")
	if cfg.ServiceHost == "" {
		cfg.ServiceHost = "0.0.0.0"
	}

	cfg.ServicePort = os.Getenv("PANTRY_SERVICE_PORT")
	if cfg.ServicePort == "" {
		cfg.ServicePort = "8080"
	}

	// Database configuration
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	maxConnStr := os.Getenv("DATABASE_MAX_CONNECTIONS")
	if maxConnStr == "" {
		cfg.DatabaseMaxConns = 10
	} else {
		maxConns, err := strconv.Atoi(maxConnStr)
		if err != nil {
			return nil, fmt.Errorf("invalid DATABASE_MAX_CONNECTIONS: %v", err)
		}
		cfg.DatabaseMaxConns = maxConns
	}

	// Redis configuration
	cfg.RedisURL = os.Getenv("REDIS_URL")
	if cfg.RedisURL == "" {
		return nil, fmt.Errorf("REDIS_URL is required")
	}

	redisMaxConnStr := os.Getenv("REDIS_MAX_CONNECTIONS")
	if redisMaxConnStr == "" {
		cfg.RedisMaxConns = 10
	} else {
		redisMaxConns, err := strconv.Atoi(redisMaxConnStr)
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_MAX_CONNECTIONS: %v", err)
		}
		cfg.RedisMaxConns = redisMaxConns
	}

	// Logging configuration
	cfg.LogLevel = os.Getenv("LOG_LEVEL")
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	// Metrics configuration
	cfg.MetricsPort = os.Getenv("METRICS_PORT")
	if cfg.MetricsPort == "" {
		cfg.MetricsPort = "9090"
	}

	// Tracing configuration
	cfg.TracingEnabled = os.Getenv("TRACING_ENABLED") == "true"

	// Recipe service configuration
	cfg.RecipeServiceURL = os.Getenv("RECIPE_SERVICE_URL")
	if cfg.RecipeServiceURL == "" {
		cfg.RecipeServiceURL = "http://recipe-service:8080"
	}

	// Background job intervals
	var err error
	cfg.SweepInterval, err = loadDuration("SWEEP_INTERVAL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg.IdempotencyCleanupInterval, err = loadDuration("IDEMPOTENCY_CLEANUP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}

func loadDuration(name string, fallback time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", name, err)
	}
	return d, nil
}

// Validate performs validation on the configuration
func (c *Config) Validate() error {
	// Validate database URL format
	if !strings.HasPrefix(c.DatabaseURL, "postgresql://") && !strings.HasPrefix(c.DatabaseURL, "postgres://") {
		return fmt.Errorf("DATABASE_URL must start with postgresql:// or postgres://")
	}

	// Validate Redis URL format
	if !strings.HasPrefix(c.RedisURL, "redis://") {
		return fmt.Errorf("REDIS_URL must start with redis://")
	}

	// Validate numeric ranges
	if c.DatabaseMaxConns < 1 || c.DatabaseMaxConns > 100 {
		return fmt.Errorf("DATABASE_MAX_CONNECTIONS must be between 1 and 100")
	}

	if c.RedisMaxConns < 1 || c.RedisMaxConns > 100 {
		return fmt.Errorf("REDIS_MAX_CONNECTIONS must be between 1 and 100")
	}

	// Validate log level
	validLevels := []string{"debug", "info", "warn", "error"}
	validLevel := false
	for _, level := range validLevels {
		if c.LogLevel == level {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("LOG_LEVEL must be one of: %s", strings.Join(validLevels, ", "))
	}

	// Validate recipe service URL format
	if !strings.HasPrefix(c.RecipeServiceURL, "http://") && !strings.HasPrefix(c.RecipeServiceURL, "https://") {
		return fmt.Errorf("RECIPE_SERVICE_URL must start with http:// or https://")
	}

	// Validate job intervals
	if c.SweepInterval < time.Second {
		return fmt.Errorf("SWEEP_INTERVAL must be at least 1s")
	}
	if c.IdempotencyCleanupInterval < time.Second {
		return fmt.Errorf("IDEMPOTENCY_CLEANUP_INTERVAL must be at least 1s")
	}

	return nil
}

// String returns a string representation of the config (for logging, without sensitive data)
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Host: %s, Port: %s, LogLevel: %s, MetricsPort: %s, DB: %s, Redis: %s, Recipes: %s, Sweep: %s}",
		c.ServiceHost, c.ServicePort, c.LogLevel, c.MetricsPort,
		maskURL(c.DatabaseURL), maskURL(c.RedisURL), c.RecipeServiceURL, c.SweepInterval,
	)
}

// maskURL masks sensitive information in URLs
func maskURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			return parts[0][:strings.Index(parts[0], "://")+3] + "***@" + parts[1]
		}
	}
	return url
}
