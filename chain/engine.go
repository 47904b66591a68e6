package chain

import (
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmock/ethmock/log"
	"github.com/ethmock/ethmock/override"
	"github.com/ethmock/ethmock/registry"
	"github.com/ethmock/ethmock/state"
)

// Config holds the engine's construction parameters.
type Config struct {
	// ChainID is reported by eth_chainId. Defaults to 31337.
	ChainID *big.Int

	// BlockPeriod is the interval-mining period. Zero selects instant
	// mode: every submitted transaction synchronously mines its own
	// block.
	BlockPeriod time.Duration

	// Logger receives engine diagnostics. Defaults to the package-level
	// logger's "chain" module.
	Logger *log.Logger
}

// Engine is the mock blockchain. One Engine owns the block ledger, the
// mempool, the nonce counter, and the simulated contract state; the
// transport layer holds a reference and never touches those directly.
type Engine struct {
	chainID *big.Int
	period  time.Duration
	logger  *log.Logger

	reg   *registry.Registry
	store *state.Store

	mu        sync.RWMutex
	overrides *override.Table
	blocks    []*Block
	byHash    map[common.Hash]*Block
	txs       map[common.Hash]*Transaction
	receipts  map[common.Hash]*Receipt
	pending   []*Transaction
	nextNonce uint64
	onMined   func(*Block)

	miningQuit chan struct{}
}

// NewEngine constructs an engine and mines the genesis block (number 0,
// zero parent hash, no transactions).
func NewEngine(cfg Config, reg *registry.Registry, overrides *override.Table) *Engine {
	chainID := cfg.ChainID
	if chainID == nil {
		chainID = big.NewInt(31337)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default().Module("chain")
	}
	if overrides == nil {
		overrides = override.NewTable()
	}

	e := &Engine{
		chainID:   chainID,
		period:    cfg.BlockPeriod,
		logger:    logger,
		reg:       reg,
		store:     state.NewStore(),
		overrides: overrides,
		byHash:    make(map[common.Hash]*Block),
		txs:       make(map[common.Hash]*Transaction),
		receipts:  make(map[common.Hash]*Receipt),
	}

	genesis := &Block{
		Number:     0,
		Hash:       blockHash(0),
		ParentHash: common.Hash{},
		Time:       uint64(time.Now().Unix()),
	}
	e.blocks = append(e.blocks, genesis)
	e.byHash[genesis.Hash] = genesis
	return e
}

// ChainID returns the configured chain identifier.
func (e *Engine) ChainID() *big.Int {
	return new(big.Int).Set(e.chainID)
}

// Registry exposes the contract registry for the transport layer and the
// config loader.
func (e *Engine) Registry() *registry.Registry {
	return e.reg
}

// SetOnBlockMined installs the block-mined notification callback. The
// callback runs outside the engine lock, after the block is appended.
func (e *Engine) SetOnBlockMined(fn func(*Block)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onMined = fn
}

// SetOverrides atomically swaps the override table. Chain history, mempool,
// and simulated state are untouched.
func (e *Engine) SetOverrides(t *override.Table) {
	if t == nil {
		t = override.NewTable()
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.overrides = t
}

// ReplaceContracts swaps the contract registry contents and wipes the
// simulated state store, preserving the block ledger and mempool. Used on
// config hot reload.
func (e *Engine) ReplaceContracts(entries []registry.Entry) {
	e.reg.Replace(entries)
	e.store.Clear()
}

// StartMining begins the interval-mining loop. In instant mode (period 0)
// it is a no-op: submission drives mining instead.
func (e *Engine) StartMining() error {
	if e.period == 0 {
		return nil
	}
	e.mu.Lock()
	if e.miningQuit != nil {
		e.mu.Unlock()
		return ErrMiningActive
	}
	quit := make(chan struct{})
	e.miningQuit = quit
	e.mu.Unlock()

	go func() {
		ticker := time.NewTicker(e.period)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				e.MineBlock()
			case <-quit:
				return
			}
		}
	}()
	e.logger.Info("interval mining started", "period", e.period)
	return nil
}

// StopMining cancels the interval-mining loop. Stopping twice, or stopping
// an engine that never started, is safe.
func (e *Engine) StopMining() {
	e.mu.Lock()
	quit := e.miningQuit
	e.miningQuit = nil
	e.mu.Unlock()
	if quit != nil {
		close(quit)
		e.logger.Info("interval mining stopped")
	}
}

// IsMining reports whether the interval-mining loop is running. Instant
// mode reports false: blocks are mined on submission, not by a miner.
func (e *Engine) IsMining() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.miningQuit != nil
}

// SendTransaction assigns the next nonce, derives the transaction hash,
// best-effort decodes the calldata for display, and enqueues the
// transaction. In instant mode the transaction's block is mined before the
// call returns, so the receipt is immediately queryable. The target must be
// a registered contract.
func (e *Engine) SendTransaction(from, to common.Address, data []byte, value *big.Int) (common.Hash, error) {
	entry, ok := e.reg.Lookup(to)
	if !ok {
		return common.Hash{}, unknownContract(to)
	}
	if value == nil {
		value = new(big.Int)
	}

	e.mu.Lock()
	nonce := e.nextNonce
	e.nextNonce++
	tx := &Transaction{
		Hash:    txHash(nonce),
		From:    from,
		To:      to,
		Data:    data,
		Value:   value,
		Nonce:   nonce,
		Decoded: decodeCall(entry, data),
	}
	e.pending = append(e.pending, tx)
	e.txs[tx.Hash] = tx

	var mined *Block
	if e.period == 0 {
		mined = e.mineLocked()
	}
	notify := e.onMined
	e.mu.Unlock()

	e.logger.Debug("transaction submitted", "hash", tx.Hash, "to", to, "nonce", nonce)
	if mined != nil && notify != nil {
		notify(mined)
	}
	return tx.Hash, nil
}

// MineBlock drains the entire mempool into a new block, executing each
// transaction in submission order. An empty mempool still produces an empty
// block.
func (e *Engine) MineBlock() *Block {
	e.mu.Lock()
	b := e.mineLocked()
	notify := e.onMined
	e.mu.Unlock()

	if notify != nil {
		notify(b)
	}
	return b
}

// mineLocked is the mining round. Caller holds e.mu.
func (e *Engine) mineLocked() *Block {
	parent := e.blocks[len(e.blocks)-1]
	b := &Block{
		Number:     parent.Number + 1,
		Hash:       blockHash(parent.Number + 1),
		ParentHash: parent.Hash,
		Time:       uint64(time.Now().Unix()),
	}

	txs := e.pending
	e.pending = nil

	var cumulative uint64
	logIndex := uint(0)
	for i, tx := range txs {
		logs := e.executeLocked(tx)
		cumulative += TxGas
		for _, lg := range logs {
			lg.BlockNumber = b.Number
			lg.BlockHash = b.Hash
			lg.TxHash = tx.Hash
			lg.TxIndex = uint(i)
			lg.Index = logIndex
			logIndex++
		}
		rcpt := &Receipt{
			TxHash:            tx.Hash,
			TxIndex:           uint(i),
			BlockNumber:       b.Number,
			BlockHash:         b.Hash,
			From:              tx.From,
			To:                tx.To,
			GasUsed:           TxGas,
			CumulativeGasUsed: cumulative,
			Status:            ReceiptStatusSuccess,
			Logs:              logs,
		}
		b.Transactions = append(b.Transactions, tx)
		b.Receipts = append(b.Receipts, rcpt)
		e.receipts[tx.Hash] = rcpt
	}

	e.blocks = append(e.blocks, b)
	e.byHash[b.Hash] = b
	e.logger.Info("block mined", "number", b.Number, "txs", len(b.Transactions))
	return b
}

// BlockNumber returns the number of the most recently mined block.
func (e *Engine) BlockNumber() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks[len(e.blocks)-1].Number
}

// LatestBlock returns the most recently mined block.
func (e *Engine) LatestBlock() *Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.blocks[len(e.blocks)-1]
}

// GetBlockByNumber returns the mined block with the given number.
func (e *Engine) GetBlockByNumber(n uint64) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if n >= uint64(len(e.blocks)) {
		return nil, false
	}
	return e.blocks[n], true
}

// GetBlockByHash returns the mined block with the given hash.
func (e *Engine) GetBlockByHash(h common.Hash) (*Block, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	b, ok := e.byHash[h]
	return b, ok
}

// PendingBlock synthesizes a virtual block holding the current mempool
// contents. It is never persisted and carries a zero hash.
func (e *Engine) PendingBlock() *Block {
	e.mu.RLock()
	defer e.mu.RUnlock()
	parent := e.blocks[len(e.blocks)-1]
	txs := make([]*Transaction, len(e.pending))
	copy(txs, e.pending)
	return &Block{
		Number:       parent.Number + 1,
		ParentHash:   parent.Hash,
		Time:         uint64(time.Now().Unix()),
		Transactions: txs,
	}
}

// GetTransaction returns a submitted transaction and whether it is still
// pending.
func (e *Engine) GetTransaction(h common.Hash) (tx *Transaction, pending bool, ok bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tx, ok = e.txs[h]
	if !ok {
		return nil, false, false
	}
	_, mined := e.receipts[h]
	return tx, !mined, true
}

// GetTransactionReceipt returns the receipt for a mined transaction, or nil
// while the transaction is pending or unknown (indistinguishable, matching
// real-chain semantics).
func (e *Engine) GetTransactionReceipt(h common.Hash) *Receipt {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.receipts[h]
}

// PendingCount reports the current mempool depth.
func (e *Engine) PendingCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.pending)
}

// NextNonce reports the nonce the next submitted transaction will receive.
func (e *Engine) NextNonce() uint64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.nextNonce
}
