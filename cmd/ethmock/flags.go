package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ethmock/ethmock/node"
)

// options holds the parsed CLI flags. Flags the user actually passed are
// recorded in set so file-based configuration is only overridden
// explicitly.
type options struct {
	configPath string
	httpHost   string
	httpPort   int
	chainID    uint64
	blockTime  time.Duration
	watch      bool
	verbosity  int
	logFormat  string

	set map[string]bool
}

// parseFlags parses CLI arguments. Returns the options, whether the caller
// should exit immediately, and the exit code.
func parseFlags(args []string) (*options, bool, int) {
	opts := &options{set: make(map[string]bool)}
	fs := flag.NewFlagSet("ethmock", flag.ContinueOnError)

	fs.StringVar(&opts.configPath, "config", "", "path to the configuration file")
	fs.StringVar(&opts.httpHost, "http.host", "127.0.0.1", "HTTP-RPC listen host")
	fs.IntVar(&opts.httpPort, "http.port", 8545, "HTTP-RPC listen port")
	fs.Uint64Var(&opts.chainID, "chainid", 31337, "chain ID reported by eth_chainId")
	fs.DurationVar(&opts.blockTime, "block-time", 0, "mining interval; 0 mines a block per transaction")
	fs.BoolVar(&opts.watch, "watch", false, "reload contracts when the config file changes")
	fs.IntVar(&opts.verbosity, "verbosity", 3, "log level 0-5")
	fs.StringVar(&opts.logFormat, "log.format", "text", "log format: text, json")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return opts, true, 2
	}
	if *showVersion {
		fmt.Printf("ethmock %s (commit %s)\n", version, commit)
		return opts, true, 0
	}

	fs.Visit(func(f *flag.Flag) { opts.set[f.Name] = true })
	return opts, false, 0
}

// apply overlays explicitly-set flags onto a loaded configuration.
func (o *options) apply(cfg *node.Config) {
	if o.set["http.host"] {
		cfg.HTTP.Host = o.httpHost
	}
	if o.set["http.port"] {
		cfg.HTTP.Port = o.httpPort
	}
	if o.set["chainid"] {
		cfg.ChainID = o.chainID
	}
	if o.set["block-time"] {
		cfg.BlockPeriod = node.Duration(o.blockTime)
	}
	if o.set["watch"] {
		cfg.Watch = o.watch
	}
	if o.set["log.format"] {
		cfg.Log.Format = o.logFormat
	}
}
