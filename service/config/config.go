package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Config holds all application configuration loaded from environment variables.
// All required fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	Port     int
	LogLevel string

	// Upstream Solana RPC endpoints, tried with fallback on transport failure.
	RPCEndpoints []string

	// Tip policy
	TipAccounts    []solana.PublicKey
	MinTipLamports uint64

	// Admission control
	RateLimitRPS int

	// Relay timing
	SubmitTimeout       time.Duration
	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration
	RelayMaxAttempts    int

	// NATS configuration (optional; empty URL disables event publishing)
	NATSURL string
}

// Load reads configuration from environment variables and validates all required fields.
// Returns an error if any required configuration is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{}
	var errs []error

	// Server configuration
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")

	port, err := parseInt("PORT", 3000)
	if err != nil {
		errs = append(errs, err)
	} else if port < 0 || port > 65535 {
		errs = append(errs, fmt.Errorf("PORT: out of range: %d", port))
	} else {
		cfg.Port = port
	}

	// Upstream endpoints
	endpoints := os.Getenv("RPC_ENDPOINTS")
	if endpoints == "" {
		errs = append(errs, fmt.Errorf("RPC_ENDPOINTS is required (comma-separated list of RPC URLs)"))
	} else {
		for _, e := range strings.Split(endpoints, ",") {
			e = strings.TrimSpace(e)
			if e != "" {
				cfg.RPCEndpoints = append(cfg.RPCEndpoints, e)
			}
		}
		if len(cfg.RPCEndpoints) == 0 {
			errs = append(errs, fmt.Errorf("RPC_ENDPOINTS must contain at least one endpoint"))
		}
	}

	// Tip policy
	tipAccounts := os.Getenv("TIP_ACCOUNTS")
	if tipAccounts == "" {
		errs = append(errs, fmt.Errorf("TIP_ACCOUNTS is required (comma-separated list of base58 addresses)"))
	} else {
		for _, a := range strings.Split(tipAccounts, ",") {
			a = strings.TrimSpace(a)
			if a == "" {
				continue
			}
			pk, err := solana.PublicKeyFromBase58(a)
			if err != nil {
				errs = append(errs, fmt.Errorf("TIP_ACCOUNTS: invalid address %q: %w", a, err))
				continue
			}
			cfg.TipAccounts = append(cfg.TipAccounts, pk)
		}
		if len(cfg.TipAccounts) == 0 {
			errs = append(errs, fmt.Errorf("TIP_ACCOUNTS must contain at least one valid address"))
		}
	}

	minTip, err := parseUint64("MIN_TIP_LAMPORTS", 1000)
	if err != nil {
		errs = append(errs, err)
	} else if minTip == 0 {
		errs = append(errs, fmt.Errorf("MIN_TIP_LAMPORTS must be greater than zero"))
	} else {
		cfg.MinTipLamports = minTip
	}

	// Admission control
	rps, err := parseInt("RATE_LIMIT_RPS", 100)
	if err != nil {
		errs = append(errs, err)
	} else if rps < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_RPS must be at least 1"))
	} else {
		cfg.RateLimitRPS = rps
	}

	// Relay timing
	submitTimeout, err := parseDuration("SUBMIT_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.SubmitTimeout = submitTimeout
	}

	confirmTimeout, err := parseDuration("CONFIRM_TIMEOUT", "60s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmTimeout = confirmTimeout
	}

	pollInterval, err := parseDuration("CONFIRM_POLL_INTERVAL", "2s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.ConfirmPollInterval = pollInterval
	}

	if cfg.ConfirmPollInterval > 0 && cfg.ConfirmTimeout > 0 && cfg.ConfirmPollInterval > cfg.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("CONFIRM_POLL_INTERVAL (%v) cannot be greater than CONFIRM_TIMEOUT (%v)",
			cfg.ConfirmPollInterval, cfg.ConfirmTimeout))
	}

	maxAttempts, err := parseInt("RELAY_MAX_ATTEMPTS", 3)
	if err != nil {
		errs = append(errs, err)
	} else if maxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RELAY_MAX_ATTEMPTS must be at least 1"))
	} else {
		cfg.RelayMaxAttempts = maxAttempts
	}

	// NATS configuration (optional)
	cfg.NATSURL = os.Getenv("NATS_URL")

	// Return all validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %v", errs)
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks if the configuration is valid.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if len(c.RPCEndpoints) == 0 {
		errs = append(errs, fmt.Errorf("RPCEndpoints is required"))
	}

	if len(c.TipAccounts) == 0 {
		errs = append(errs, fmt.Errorf("TipAccounts is required"))
	}

	if c.MinTipLamports == 0 {
		errs = append(errs, fmt.Errorf("MinTipLamports must be greater than zero"))
	}

	if c.RateLimitRPS < 1 {
		errs = append(errs, fmt.Errorf("RateLimitRPS must be at least 1"))
	}

	if c.RelayMaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("RelayMaxAttempts must be at least 1"))
	}

	if c.ConfirmPollInterval > c.ConfirmTimeout {
		errs = append(errs, fmt.Errorf("ConfirmPollInterval cannot be greater than ConfirmTimeout"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %v", errs)
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseUint64 parses an unsigned integer from an environment variable or uses a default.
func parseUint64(key string, defaultValue uint64) (uint64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid unsigned integer %q: %w", key, value, err)
	}
	return result, nil
}
