package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	for i := range cfg.Chains {
		if cfg.Chains[i].PollInterval == 0 {
			cfg.Chains[i].PollInterval = 10 * time.Second
		}
		if cfg.Chains[i].BatchSize == 0 {
			cfg.Chains[i].BatchSize = 100
		}
		if cfg.Chains[i].Confirmations == 0 {
			cfg.Chains[i].Confirmations = 1
		}
	}

	if cfg.Custody.BaseURL == "" {
		return nil, fmt.Errorf("custody.base_url is required")
	}
	if cfg.Custody.WalletID == "" {
		return nil, fmt.Errorf("custody.wallet_id is required")
	}

	return &cfg, nil
}
