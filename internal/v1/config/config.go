// Package config validates the gateway's environment configuration at
// startup, failing fast with every problem collected rather than one at
// a time.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration.
type Config struct {
	// Required variables
	Port              string
	TenantManagerAddr string
	OrdererAddr       string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string

	Auth0Domain     string
	Auth0Audience   string
	SkipAuth        bool
	DevelopmentMode bool
	AllowedOrigins  string

	// Throttle rates (ulule/limiter formatted strings, e.g. "100-M")
	ConnectThrottleRate  string
	SubmitOpThrottleRate string

	MaxNumberOfClientsPerDocument int
	MaxTokenLifetimeSeconds       int
	IsTokenExpiryEnabled          bool
}

// ValidateEnv validates all required environment variables and returns a
// Config object. It returns an error collecting every problem found,
// rather than stopping at the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errs []string

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errs = append(errs, "PORT is required")
	} else if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
	}

	cfg.TenantManagerAddr = os.Getenv("TENANT_MANAGER_ADDR")
	if cfg.TenantManagerAddr == "" {
		errs = append(errs, "TENANT_MANAGER_ADDR is required")
	} else if !isValidHostPort(cfg.TenantManagerAddr) {
		errs = append(errs, fmt.Sprintf("TENANT_MANAGER_ADDR must be in format 'host:port' (got '%s')", cfg.TenantManagerAddr))
	}

	cfg.OrdererAddr = os.Getenv("ORDERER_ADDR")
	if cfg.OrdererAddr == "" {
		errs = append(errs, "ORDERER_ADDR is required")
	} else if !isValidHostPort(cfg.OrdererAddr) {
		errs = append(errs, fmt.Sprintf("ORDERER_ADDR must be in format 'host:port' (got '%s')", cfg.OrdererAddr))
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") == "true"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errs = append(errs, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	cfg.Auth0Domain = os.Getenv("AUTH0_DOMAIN")
	cfg.Auth0Audience = os.Getenv("AUTH0_AUDIENCE")
	cfg.SkipAuth = os.Getenv("SKIP_AUTH") == "true"
	cfg.DevelopmentMode = os.Getenv("DEVELOPMENT_MODE") == "true"
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.ConnectThrottleRate = getEnvOrDefault("CONNECT_THROTTLE_RATE", "100-M")
	cfg.SubmitOpThrottleRate = getEnvOrDefault("SUBMIT_OP_THROTTLE_RATE", "1000-M")

	cfg.MaxNumberOfClientsPerDocument = getEnvIntOrDefault("MAX_CLIENTS_PER_DOCUMENT", 1_000_000, &errs)
	cfg.MaxTokenLifetimeSeconds = getEnvIntOrDefault("MAX_TOKEN_LIFETIME_SECONDS", 3600, &errs)
	cfg.IsTokenExpiryEnabled = getEnvOrDefault("TOKEN_EXPIRY_ENABLED", "true") == "true"

	if len(errs) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

// isValidHostPort checks if a string is in the format "host:port".
func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated successfully")
	slog.Info("configuration",
		"port", cfg.Port,
		"tenant_manager_addr", cfg.TenantManagerAddr,
		"orderer_addr", cfg.OrdererAddr,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"development_mode", cfg.DevelopmentMode,
		"max_clients_per_document", cfg.MaxNumberOfClientsPerDocument,
		"max_token_lifetime_seconds", cfg.MaxTokenLifetimeSeconds,
		"token_expiry_enabled", cfg.IsTokenExpiryEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int, errs *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Sprintf("%s must be an integer (got '%s')", key, raw))
		return defaultValue
	}
	return n
}
