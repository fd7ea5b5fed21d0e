package config

import (
	"time"

	"github.com/velia-labs/settler/internal/custody"
	redisclient "github.com/velia-labs/settler/internal/infra/redis"
	"github.com/velia-labs/settler/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server   ServerConfig       `yaml:"server"`
	Chains   []ChainConfig      `yaml:"chains"`
	Custody  custody.Config     `yaml:"custody"`
	Redis    redisclient.Config `yaml:"redis"`
	Logging  LoggingConfig      `yaml:"logging"`
	Database postgres.Config    `yaml:"database"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// ChainConfig holds settings for a reconciled chain.
type ChainConfig struct {
	ChainID       string           `yaml:"id"`
	StartBlock    uint64           `yaml:"start_block"`
	Confirmations uint64           `yaml:"confirmations"`
	PollInterval  time.Duration    `yaml:"poll_interval"`
	BatchSize     uint64           `yaml:"batch_size"`
	MaxAttempts   int              `yaml:"max_attempts"`
	Providers     []ProviderConfig `yaml:"providers"`

	// LiquidityThreshold is the native balance (smallest units) below
	// which the gas monitor raises warnings.
	LiquidityThreshold string        `yaml:"liquidity_threshold"`
	LiquidityInterval  time.Duration `yaml:"liquidity_interval"`
}

// ProviderConfig holds settings for a chain RPC provider.
type ProviderConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}
