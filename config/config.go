package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the daemon's startup settings. Badge administration is gated
// by AdminAddresses; the list is deployment configuration, never compiled in.
type Config struct {
	RPCAddress     string   `toml:"RPCAddress"`
	DataDir        string   `toml:"DataDir"`
	NetworkName    string   `toml:"NetworkName"`
	Environment    string   `toml:"Environment"`
	AdminAddresses []string `toml:"AdminAddresses"`
}

const (
	defaultRPCAddress  = "127.0.0.1:8645"
	defaultDataDir     = "./lockvault-data"
	defaultNetworkName = "lockvault-local"
)

// Load reads the configuration from the given path, creating a default file
// when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = defaultRPCAddress
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = defaultNetworkName
	}
	if c.AdminAddresses == nil {
		c.AdminAddresses = []string{}
	}
}

// Validate checks the settings that cannot be defaulted, in particular that
// every admin entry parses as a 20-byte hex address.
func (c *Config) Validate() error {
	if _, err := c.Admins(); err != nil {
		return err
	}
	return nil
}

// Admins decodes the configured admin allow-list.
func (c *Config) Admins() ([][20]byte, error) {
	admins := make([][20]byte, 0, len(c.AdminAddresses))
	for _, entry := range c.AdminAddresses {
		trimmed := strings.TrimPrefix(strings.TrimSpace(entry), "0x")
		raw, err := hex.DecodeString(trimmed)
		if err != nil {
			return nil, fmt.Errorf("config: admin address %q: %w", entry, err)
		}
		if len(raw) != 20 {
			return nil, fmt.Errorf("config: admin address %q: expected 20 bytes, got %d", entry, len(raw))
		}
		var addr [20]byte
		copy(addr[:], raw)
		admins = append(admins, addr)
	}
	return admins, nil
}

func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	cfg.applyDefaults()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}
