package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Genesis describes the one-shot ledger initialization applied when the
// daemon starts against an empty state.
type Genesis struct {
	Admin      string `toml:"Admin"`
	Vault      string `toml:"Vault"`
	Treasury   string `toml:"Treasury"`
	TaxBps     uint16 `toml:"TaxBps"`
	AdminFunds uint64 `toml:"AdminFunds"`
}

type Config struct {
	ListenAddress  string  `toml:"ListenAddress"`
	DataDir        string  `toml:"DataDir"`
	ServiceEnv     string  `toml:"ServiceEnv"`
	LogFile        string  `toml:"LogFile"`
	AdminTokenEnv  string  `toml:"AdminTokenEnv"`
	RequestsPerMin int     `toml:"RequestsPerMin"`
	Genesis        Genesis `toml:"Genesis"`
}

const defaultAdminTokenEnv = "CRASHVAULT_ADMIN_TOKEN"

// Load loads the configuration from the given path, writing a default file
// on first run.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = "127.0.0.1:8645"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./crashvault-data"
	}
	if strings.TrimSpace(cfg.AdminTokenEnv) == "" {
		cfg.AdminTokenEnv = defaultAdminTokenEnv
	}
	if cfg.RequestsPerMin <= 0 {
		cfg.RequestsPerMin = 600
	}
}

func validate(cfg *Config) error {
	if cfg.Genesis.TaxBps > 1000 {
		return fmt.Errorf("Genesis.TaxBps must not exceed 1000, got %d", cfg.Genesis.TaxBps)
	}
	return nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// AdminToken resolves the bearer token guarding admin RPC operations from
// the configured environment variable. Empty means admin RPC is disabled.
func (c *Config) AdminToken() string {
	return strings.TrimSpace(os.Getenv(c.AdminTokenEnv))
}
