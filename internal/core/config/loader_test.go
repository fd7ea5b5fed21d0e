package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const validConfig = `
server:
  port: 9090
chains:
  - id: testnet
    start_block: 1000
    confirmations: 3
    poll_interval: 5s
    batch_size: 50
    providers:
      - name: primary
        url: https://rpc.example.com
    liquidity_threshold: "1000000000000000000"
custody:
  api_key: ${SETTLER_CUSTODY_KEY}
  base_url: https://custody.example.com
  wallet_id: wallet-1
  platform_account: acct-platform
database:
  url: postgres://localhost/settler
`

func TestLoadValidConfig(t *testing.T) {
	t.Setenv("SETTLER_CUSTODY_KEY", "secret-from-env")
	path := writeConfig(t, validConfig)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if len(cfg.Chains) != 1 {
		t.Fatalf("chains = %d, want 1", len(cfg.Chains))
	}
	c := cfg.Chains[0]
	if c.ChainID != "testnet" || c.StartBlock != 1000 || c.Confirmations != 3 {
		t.Errorf("chain = %+v", c)
	}
	if c.PollInterval != 5*time.Second || c.BatchSize != 50 {
		t.Errorf("chain = %+v", c)
	}
	if len(c.Providers) != 1 || c.Providers[0].URL != "https://rpc.example.com" {
		t.Errorf("providers = %+v", c.Providers)
	}
	if cfg.Custody.APIKey != "secret-from-env" {
		t.Errorf("api key = %q, want env expansion", cfg.Custody.APIKey)
	}
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
chains:
  - id: testnet
custody:
  base_url: https://custody.example.com
  wallet_id: wallet-1
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	c := cfg.Chains[0]
	if c.PollInterval != 10*time.Second {
		t.Errorf("poll interval = %v, want 10s", c.PollInterval)
	}
	if c.BatchSize != 100 {
		t.Errorf("batch size = %d, want 100", c.BatchSize)
	}
	if c.Confirmations != 1 {
		t.Errorf("confirmations = %d, want 1", c.Confirmations)
	}
}

func TestLoadRequiresCustodySettings(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing base_url",
			content: `
custody:
  wallet_id: wallet-1
`,
		},
		{
			name: "missing wallet_id",
			content: `
custody:
  base_url: https://custody.example.com
`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadMalformedYAML(t *testing.T) {
	if _, err := Load(writeConfig(t, "chains: [\n")); err == nil {
		t.Error("expected error for malformed yaml")
	}
}
