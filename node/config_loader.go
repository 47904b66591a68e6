package node

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"gopkg.in/yaml.v3"

	"github.com/ethmock/ethmock/registry"
)

// LoadConfig reads and validates a configuration file. YAML and JSON are
// both accepted; the extension picks the decoder.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := DefaultConfig()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// BuildEntries resolves the configured contracts into registry entries.
// ABIFile paths are resolved relative to baseDir, the directory of the
// configuration file.
func BuildEntries(cfg *Config, baseDir string) ([]registry.Entry, error) {
	entries := make([]registry.Entry, 0, len(cfg.Contracts))
	for _, ct := range cfg.Contracts {
		if !common.IsHexAddress(ct.Address) {
			return nil, fmt.Errorf("contract %q: invalid address %s", ct.Name, ct.Address)
		}

		raw, err := abiBytes(ct, baseDir)
		if err != nil {
			return nil, err
		}
		parsed, err := registry.ParseABI(raw)
		if err != nil {
			return nil, fmt.Errorf("contract %q: %w", ct.Name, err)
		}

		entries = append(entries, registry.Entry{
			Name:    ct.Name,
			Address: common.HexToAddress(ct.Address),
			ABI:     parsed,
		})
	}
	return entries, nil
}

func abiBytes(ct ContractConfig, baseDir string) ([]byte, error) {
	if ct.ABIFile != "" {
		path := ct.ABIFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("contract %q: read abi: %w", ct.Name, err)
		}
		return data, nil
	}

	// Inline ABI: a string holding ABI JSON, or a structure to re-serialize.
	if s, ok := ct.ABI.(string); ok {
		return []byte(s), nil
	}
	data, err := json.Marshal(ct.ABI)
	if err != nil {
		return nil, fmt.Errorf("contract %q: encode inline abi: %w", ct.Name, err)
	}
	return data, nil
}
