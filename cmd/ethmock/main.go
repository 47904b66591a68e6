// Command ethmock runs a mock Ethereum JSON-RPC server that simulates
// contract behavior from ABI definitions alone.
//
// Usage:
//
//	ethmock --config config.yaml [flags]
//
// Flags:
//
//	--config       Path to the YAML/JSON configuration file
//	--http.host    HTTP-RPC listen host (default: 127.0.0.1)
//	--http.port    HTTP-RPC listen port (default: 8545)
//	--chainid      Chain ID reported by eth_chainId (default: 31337)
//	--block-time   Mining interval; 0 mines a block per transaction
//	--watch        Reload contracts when the config file changes
//	--verbosity    Log level 0-5 (default: 3)
//	--log.format   Log format: text, json (default: text)
//	--version      Print version and exit
package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethmock/ethmock/log"
	"github.com/ethmock/ethmock/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string) int {
	opts, exit, code := parseFlags(args)
	if exit {
		return code
	}

	cfg, err := resolveConfig(opts)
	if err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	logger := log.New(levelFor(opts, cfg), parseLogFormat(cfg.Log.Format))
	log.SetDefault(logger)

	logger.Info("ethmock starting", "version", version)
	logger.Info("  chain id", "value", cfg.ChainID)
	logger.Info("  http", "addr", cfg.HTTP.Addr())
	logger.Info("  contracts", "count", len(cfg.Contracts))
	if cfg.ProxyURL != "" {
		logger.Info("  proxy", "url", cfg.ProxyURL)
	}

	n, err := node.New(cfg, opts.configPath, logger)
	if err != nil {
		logger.Error("failed to create node", "err", err)
		return 1
	}
	if err := n.Start(); err != nil {
		logger.Error("failed to start node", "err", err)
		return 1
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if err := n.Stop(); err != nil {
		logger.Error("error during shutdown", "err", err)
		return 1
	}
	logger.Info("shutdown complete")
	return 0
}

// resolveConfig loads the config file when one is given and layers the
// explicitly-set CLI flags on top.
func resolveConfig(opts *options) (*node.Config, error) {
	cfg := node.DefaultConfig()
	if opts.configPath != "" {
		loaded, err := node.LoadConfig(opts.configPath)
		if err != nil {
			return nil, err
		}
		cfg = *loaded
	}
	opts.apply(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// levelFor prefers an explicit --verbosity flag over the config file's log
// level.
func levelFor(opts *options, cfg *node.Config) slog.Level {
	if !opts.set["verbosity"] && cfg.Log.Level != "" {
		if lvl, err := log.ParseLevel(cfg.Log.Level); err == nil {
			return lvl
		}
	}
	return log.VerbosityToLevel(opts.verbosity)
}

func parseLogFormat(s string) log.Format {
	f, err := log.ParseFormat(s)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using text\n", err)
		return log.FormatText
	}
	return f
}
