// Package node wires the mock server together: configuration loading, the
// chain engine, the JSON-RPC HTTP server, and live reload of contract
// definitions when the configuration file changes on disk.
package node

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from either a duration string
// ("2s", "500ms") or a bare number of seconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler. The numeric decode runs
// first: yaml.v3 coerces untagged scalars like `3` into strings, so
// trying the string form first would shadow the seconds form.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var secs float64
	if err := value.Decode(&secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	var s string
	if err := value.Decode(&s); err == nil {
		return d.fromString(s)
	}
	return fmt.Errorf("invalid duration: %s", value.Value)
}

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return d.fromString(s)
	}
	var secs float64
	if err := json.Unmarshal(data, &secs); err == nil {
		*d = Duration(time.Duration(secs * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration: %s", string(data))
}

func (d *Duration) fromString(s string) error {
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Std returns the duration as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// ContractConfig declares one simulated contract. The ABI comes either
// inline (any YAML/JSON structure that serializes to a standard ABI array)
// or from a separate file resolved relative to the configuration file.
type ContractConfig struct {
	Name    string      `yaml:"name" json:"name"`
	Address string      `yaml:"address" json:"address"`
	ABI     interface{} `yaml:"abi,omitempty" json:"abi,omitempty"`
	ABIFile string      `yaml:"abiFile,omitempty" json:"abiFile,omitempty"`
}

// HTTPConfig holds the JSON-RPC server listen address.
type HTTPConfig struct {
	Host string `yaml:"host" json:"host"`
	Port int    `yaml:"port" json:"port"`
}

// Addr returns the host:port listen address.
func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Config is the full server configuration.
type Config struct {
	HTTP HTTPConfig `yaml:"http" json:"http"`
	Log  LogConfig  `yaml:"log" json:"log"`

	// ChainID is reported by eth_chainId and net_version.
	ChainID uint64 `yaml:"chainId" json:"chainId"`

	// BlockPeriod selects the mining mode: zero mines a block per
	// transaction, non-zero mines on a timer.
	BlockPeriod Duration `yaml:"blockPeriod" json:"blockPeriod"`

	// Contracts are the simulated contracts.
	Contracts []ContractConfig `yaml:"contracts" json:"contracts"`

	// Overrides pin return values or force reverts for specific calls,
	// keyed by "Name.function" or "Name.function(args)".
	Overrides map[string]interface{} `yaml:"overrides,omitempty" json:"overrides,omitempty"`

	// ProxyURL, when set, forwards reads on unregistered addresses to an
	// upstream node.
	ProxyURL string `yaml:"proxyUrl,omitempty" json:"proxyUrl,omitempty"`

	// Watch enables hot reload of this configuration file.
	Watch bool `yaml:"watch" json:"watch"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		HTTP:    HTTPConfig{Host: "127.0.0.1", Port: 8545},
		Log:     LogConfig{Level: "info", Format: "text"},
		ChainID: 31337,
	}
}

// Validate checks configuration values for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port < 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("config: invalid http port: %d", c.HTTP.Port)
	}
	if c.ChainID == 0 {
		return errors.New("config: chain id must not be zero")
	}
	if c.BlockPeriod < 0 {
		return errors.New("config: block period must not be negative")
	}
	if c.ProxyURL != "" {
		if _, err := url.Parse(c.ProxyURL); err != nil {
			return fmt.Errorf("config: invalid proxy url: %w", err)
		}
	}
	seen := make(map[string]bool, len(c.Contracts))
	for i, ct := range c.Contracts {
		if ct.Name == "" {
			return fmt.Errorf("config: contract %d has no name", i)
		}
		if ct.Address == "" {
			return fmt.Errorf("config: contract %q has no address", ct.Name)
		}
		if ct.ABI == nil && ct.ABIFile == "" {
			return fmt.Errorf("config: contract %q has neither abi nor abiFile", ct.Name)
		}
		if seen[ct.Address] {
			return fmt.Errorf("config: duplicate contract address %s", ct.Address)
		}
		seen[ct.Address] = true
	}
	return nil
}
