// Package chain implements the mock blockchain engine: mempool, block
// mining, transaction execution against the convention-based state store,
// and the layered value-resolution pipeline (override, state, default)
// behind read calls. There is no EVM; execution is an ABI-level simulation.
package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// TxGas is the nominal gas charged to every mock transaction. There is no
// metering; receipts just need a plausible number.
const TxGas uint64 = 21000

// ReceiptStatusSuccess mirrors the canonical post-Byzantium success status.
const ReceiptStatusSuccess uint64 = 1

// DecodedCall is the best-effort decode of a transaction's calldata, kept
// for display and event matching. A failed decode leaves the transaction
// with a nil DecodedCall and is never an error.
type DecodedCall struct {
	ContractName string
	FunctionName string
	Args         []interface{}
}

// Transaction is a submitted mock transaction. The hash derives from the
// engine-wide nonce, not from the payload, so resubmitting identical
// calldata yields distinct transactions.
type Transaction struct {
	Hash    common.Hash
	From    common.Address
	To      common.Address
	Data    []byte
	Value   *big.Int
	Nonce   uint64
	Decoded *DecodedCall
}

// Receipt records the execution of one mined transaction.
type Receipt struct {
	TxHash            common.Hash
	TxIndex           uint
	BlockNumber       uint64
	BlockHash         common.Hash
	From              common.Address
	To                common.Address
	GasUsed           uint64
	CumulativeGasUsed uint64
	Status            uint64
	Logs              []*types.Log
}

// Block is one mined block. Blocks are immutable once appended to the
// ledger; the pending virtual block returned for the "pending" tag is the
// only Block value that is never persisted.
type Block struct {
	Number       uint64
	Hash         common.Hash
	ParentHash   common.Hash
	Time         uint64
	Transactions []*Transaction
	Receipts     []*Receipt
}
