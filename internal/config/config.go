package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	SolanaRPCURL string `envconfig:"SOLANA_RPC_URL"`
	SolanaRPS    int    `envconfig:"SOLANA_RPS" default:"10"`

	ClickHouseHost     string `envconfig:"CLICKHOUSE_HOST" default:"localhost:9000"`
	ClickHouseDatabase string `envconfig:"CLICKHOUSE_DATABASE" default:"default"`
	ClickHouseUser     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	ClickHousePassword string `envconfig:"CLICKHOUSE_PASSWORD"`

	RedisURL string `envconfig:"REDIS_URL" default:"redis://localhost:6379"`

	BatchSize int `envconfig:"INDEXER_BATCH_SIZE" default:"50"`
	DelayMs   int `envconfig:"INDEXER_DELAY_MS" default:"10000"`

	JupiterAPIKey string `envconfig:"JUPITER_API_KEY"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	HTTPPort  int `envconfig:"INDEXER_HTTP_PORT" default:"8080"`
	StopAfter int `envconfig:"INDEXER_STOP_AFTER" default:"0"`
}

// Load reads configuration from .env file (if present) then from environment variables.
// Environment variables override .env values.
func Load() (*Config, error) {
	// godotenv does NOT override already-set env vars, so real environment
	// variables take precedence over .env values.
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("failed to load .env file", "error", err)
		} else {
			slog.Info("loaded .env file")
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.SolanaRPCURL == "" {
		return fmt.Errorf("%w: SOLANA_RPC_URL is required", ErrInvalidConfig)
	}
	if _, err := url.Parse(c.SolanaRPCURL); err != nil {
		return fmt.Errorf("%w: SOLANA_RPC_URL is not a valid URL: %v", ErrInvalidConfig, err)
	}
	if c.SolanaRPS < 1 {
		return fmt.Errorf("%w: SOLANA_RPS must be >= 1, got %d", ErrInvalidConfig, c.SolanaRPS)
	}
	if c.BatchSize < 1 || c.BatchSize > MaxSignaturePageSize {
		return fmt.Errorf("%w: INDEXER_BATCH_SIZE must be 1-%d, got %d", ErrInvalidConfig, MaxSignaturePageSize, c.BatchSize)
	}
	if c.DelayMs < 0 {
		return fmt.Errorf("%w: INDEXER_DELAY_MS must be >= 0, got %d", ErrInvalidConfig, c.DelayMs)
	}
	if c.HTTPPort < 1 || c.HTTPPort > 65535 {
		return fmt.Errorf("%w: INDEXER_HTTP_PORT must be 1-65535, got %d", ErrInvalidConfig, c.HTTPPort)
	}
	if c.StopAfter < 0 {
		return fmt.Errorf("%w: INDEXER_STOP_AFTER must be >= 0, got %d", ErrInvalidConfig, c.StopAfter)
	}
	return nil
}
