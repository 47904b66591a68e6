package node

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/ethmock/ethmock/chain"
	"github.com/ethmock/ethmock/log"
	"github.com/ethmock/ethmock/override"
	"github.com/ethmock/ethmock/registry"
	"github.com/ethmock/ethmock/rpc"
)

// Node is the top-level mock server. It owns the chain engine, the
// JSON-RPC HTTP server, and the optional configuration watcher.
type Node struct {
	cfg        *Config
	configPath string
	logger     *log.Logger

	engine  *chain.Engine
	api     *rpc.EthAPI
	httpSrv *http.Server
	watcher *Watcher

	mu      sync.Mutex
	running bool
}

// New creates a node from the given configuration. configPath may be empty
// when the configuration was assembled programmatically; hot reload then
// stays disabled.
func New(cfg *Config, configPath string, logger *log.Logger) (*Node, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = log.Default()
	}

	n := &Node{
		cfg:        cfg,
		configPath: configPath,
		logger:     logger.Module("node"),
	}

	entries, err := BuildEntries(cfg, baseDir(configPath))
	if err != nil {
		return nil, err
	}
	reg := registry.New()
	for _, e := range entries {
		reg.Register(e)
	}

	overrides, err := override.ParseEntries(cfg.Overrides, reg.LookupName)
	if err != nil {
		return nil, fmt.Errorf("parse overrides: %w", err)
	}

	n.engine = chain.NewEngine(chain.Config{
		ChainID:     new(big.Int).SetUint64(cfg.ChainID),
		BlockPeriod: cfg.BlockPeriod.Std(),
		Logger:      logger.Module("chain"),
	}, reg, overrides)
	n.engine.SetOnBlockMined(n.logMinedBlock)

	n.api = rpc.NewEthAPI(n.engine, logger)
	if cfg.ProxyURL != "" {
		n.api.SetProxy(rpc.NewProxy(cfg.ProxyURL, logger))
	}

	if cfg.Watch && configPath != "" {
		w, err := NewWatcher(configPath, n, logger)
		if err != nil {
			return nil, fmt.Errorf("init watcher: %w", err)
		}
		n.watcher = w
	}
	return n, nil
}

// Engine exposes the chain engine, mainly for tests.
func (n *Node) Engine() *chain.Engine { return n.engine }

// Start brings up the HTTP server, the mining loop, and the config
// watcher. It returns once everything is listening.
func (n *Node) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.running {
		return errors.New("node already running")
	}

	mode := "instant"
	if n.cfg.BlockPeriod > 0 {
		mode = n.cfg.BlockPeriod.Std().String()
	}
	n.logger.Info("starting mock server",
		"chainId", n.cfg.ChainID,
		"contracts", n.engine.Registry().Len(),
		"blockPeriod", mode)

	n.httpSrv = &http.Server{
		Addr:    n.cfg.HTTP.Addr(),
		Handler: rpc.NewServer(n.api).Handler(),
	}
	go func() {
		n.logger.Info("JSON-RPC server listening", "addr", n.cfg.HTTP.Addr())
		if err := n.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.logger.Error("http server failed", "err", err)
		}
	}()

	if err := n.engine.StartMining(); err != nil {
		return fmt.Errorf("start mining: %w", err)
	}
	if n.watcher != nil {
		n.watcher.Start()
		n.logger.Info("watching config for changes", "path", n.configPath)
	}

	n.running = true
	return nil
}

// Stop shuts everything down in reverse start order.
func (n *Node) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.running {
		return nil
	}

	if n.watcher != nil {
		n.watcher.Stop()
	}
	n.engine.StopMining()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := n.httpSrv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown http: %w", err)
	}

	n.running = false
	n.logger.Info("mock server stopped")
	return nil
}

// Reload re-reads the configuration file and swaps contracts and overrides
// into the running engine. The block ledger, mempool, and nonce counter
// survive; simulated contract state is reset with the contract set.
func (n *Node) Reload() error {
	if n.configPath == "" {
		return errors.New("no config file to reload")
	}
	cfg, err := LoadConfig(n.configPath)
	if err != nil {
		return err
	}
	entries, err := BuildEntries(cfg, baseDir(n.configPath))
	if err != nil {
		return err
	}

	n.engine.ReplaceContracts(entries)
	overrides, err := override.ParseEntries(cfg.Overrides, n.engine.Registry().LookupName)
	if err != nil {
		return fmt.Errorf("parse overrides: %w", err)
	}
	n.engine.SetOverrides(overrides)

	n.logger.Info("config reloaded",
		"contracts", len(entries),
		"overrides", overrides.Len(),
		"blockNumber", n.engine.BlockNumber())
	return nil
}

// logMinedBlock is the engine's mined-block callback. It prints one line
// per block plus one per transaction with the decoded call, which is the
// main feedback loop when driving the mock from a test suite.
func (n *Node) logMinedBlock(b *chain.Block) {
	if len(b.Transactions) == 0 {
		return
	}
	n.logger.Info("block mined", "number", b.Number, "txs", len(b.Transactions))
	for _, tx := range b.Transactions {
		if tx.Decoded != nil {
			n.logger.Info("  tx",
				"hash", tx.Hash,
				"call", fmt.Sprintf("%s.%s", tx.Decoded.ContractName, tx.Decoded.FunctionName),
				"args", fmt.Sprintf("%v", tx.Decoded.Args))
		} else {
			n.logger.Info("  tx", "hash", tx.Hash, "to", tx.To, "data", fmt.Sprintf("%d bytes", len(tx.Data)))
		}
	}
}

func baseDir(configPath string) string {
	if configPath == "" {
		return "."
	}
	return filepath.Dir(configPath)
}
