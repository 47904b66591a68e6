package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmock/ethmock/chain"
	"github.com/ethmock/ethmock/registry"
)

// Backend is the engine surface the RPC layer dispatches into. The chain
// engine implements it; tests may substitute their own.
type Backend interface {
	ChainID() *big.Int
	BlockNumber() uint64
	LatestBlock() *chain.Block
	PendingBlock() *chain.Block
	GetBlockByNumber(n uint64) (*chain.Block, bool)
	GetBlockByHash(h common.Hash) (*chain.Block, bool)

	Call(to common.Address, data []byte) ([]byte, error)
	SendTransaction(from, to common.Address, data []byte, value *big.Int) (common.Hash, error)
	GetTransaction(h common.Hash) (tx *chain.Transaction, pending bool, ok bool)
	GetTransactionReceipt(h common.Hash) *chain.Receipt
	GetLogs(q chain.FilterQuery) []*types.Log

	NextNonce() uint64
	IsMining() bool
	Registry() *registry.Registry
}

var _ Backend = (*chain.Engine)(nil)
