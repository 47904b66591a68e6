package rpc

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmock/ethmock/chain"
)

// Fixed values reported by the simple system methods. There is no gas
// market and no accounts; these just need to look plausible on the wire.
var (
	// fixedGasPrice is 1 gwei.
	fixedGasPrice = big.NewInt(1_000_000_000)
	// fixedBalance is 1000 ether.
	fixedBalance = new(big.Int).Mul(big.NewInt(1000), big.NewInt(1e18))
)

const (
	fixedGasLimit = 30_000_000
	fixedCode     = "0x6080604052"
)

// RPCTransaction is the wire form of a transaction. Block linkage fields
// are null while the transaction is pending.
type RPCTransaction struct {
	Hash             common.Hash     `json:"hash"`
	Nonce            hexutil.Uint64  `json:"nonce"`
	From             common.Address  `json:"from"`
	To               *common.Address `json:"to"`
	Value            *hexutil.Big    `json:"value"`
	Input            hexutil.Bytes   `json:"input"`
	Gas              hexutil.Uint64  `json:"gas"`
	GasPrice         *hexutil.Big    `json:"gasPrice"`
	BlockHash        *common.Hash    `json:"blockHash"`
	BlockNumber      *hexutil.Big    `json:"blockNumber"`
	TransactionIndex *hexutil.Uint64 `json:"transactionIndex"`
}

func newRPCTransaction(tx *chain.Transaction, rcpt *chain.Receipt) *RPCTransaction {
	to := tx.To
	out := &RPCTransaction{
		Hash:     tx.Hash,
		Nonce:    hexutil.Uint64(tx.Nonce),
		From:     tx.From,
		To:       &to,
		Value:    (*hexutil.Big)(tx.Value),
		Input:    tx.Data,
		Gas:      hexutil.Uint64(chain.TxGas),
		GasPrice: (*hexutil.Big)(fixedGasPrice),
	}
	if rcpt != nil {
		bh := rcpt.BlockHash
		bn := new(big.Int).SetUint64(rcpt.BlockNumber)
		idx := hexutil.Uint64(rcpt.TxIndex)
		out.BlockHash = &bh
		out.BlockNumber = (*hexutil.Big)(bn)
		out.TransactionIndex = &idx
	}
	return out
}

// RPCReceipt is the wire form of a transaction receipt.
type RPCReceipt struct {
	TransactionHash   common.Hash    `json:"transactionHash"`
	TransactionIndex  hexutil.Uint64 `json:"transactionIndex"`
	BlockHash         common.Hash    `json:"blockHash"`
	BlockNumber       hexutil.Uint64 `json:"blockNumber"`
	From              common.Address `json:"from"`
	To                common.Address `json:"to"`
	GasUsed           hexutil.Uint64 `json:"gasUsed"`
	CumulativeGasUsed hexutil.Uint64 `json:"cumulativeGasUsed"`
	EffectiveGasPrice *hexutil.Big   `json:"effectiveGasPrice"`
	ContractAddress   *common.Address `json:"contractAddress"`
	Status            hexutil.Uint64 `json:"status"`
	LogsBloom         hexutil.Bytes  `json:"logsBloom"`
	Logs              []*types.Log   `json:"logs"`
}

func newRPCReceipt(r *chain.Receipt) *RPCReceipt {
	logs := r.Logs
	if logs == nil {
		logs = []*types.Log{}
	}
	return &RPCReceipt{
		TransactionHash:   r.TxHash,
		TransactionIndex:  hexutil.Uint64(r.TxIndex),
		BlockHash:         r.BlockHash,
		BlockNumber:       hexutil.Uint64(r.BlockNumber),
		From:              r.From,
		To:                r.To,
		GasUsed:           hexutil.Uint64(r.GasUsed),
		CumulativeGasUsed: hexutil.Uint64(r.CumulativeGasUsed),
		EffectiveGasPrice: (*hexutil.Big)(fixedGasPrice),
		Status:            hexutil.Uint64(r.Status),
		LogsBloom:         make(hexutil.Bytes, types.BloomByteLength),
		Logs:              logs,
	}
}

// RPCBlock is the wire form of a block. The hash is null for the pending
// virtual block.
type RPCBlock struct {
	Number       hexutil.Uint64 `json:"number"`
	Hash         *common.Hash   `json:"hash"`
	ParentHash   common.Hash    `json:"parentHash"`
	Timestamp    hexutil.Uint64 `json:"timestamp"`
	GasLimit     hexutil.Uint64 `json:"gasLimit"`
	GasUsed      hexutil.Uint64 `json:"gasUsed"`
	Miner        common.Address `json:"miner"`
	Difficulty   *hexutil.Big   `json:"difficulty"`
	ExtraData    hexutil.Bytes  `json:"extraData"`
	LogsBloom    hexutil.Bytes  `json:"logsBloom"`
	Transactions []interface{}  `json:"transactions"`
}

func newRPCBlock(b *chain.Block, fullTx bool) *RPCBlock {
	out := &RPCBlock{
		Number:       hexutil.Uint64(b.Number),
		ParentHash:   b.ParentHash,
		Timestamp:    hexutil.Uint64(b.Time),
		GasLimit:     hexutil.Uint64(fixedGasLimit),
		GasUsed:      hexutil.Uint64(chain.TxGas * uint64(len(b.Transactions))),
		Difficulty:   (*hexutil.Big)(new(big.Int)),
		ExtraData:    hexutil.Bytes{},
		LogsBloom:    make(hexutil.Bytes, types.BloomByteLength),
		Transactions: []interface{}{},
	}
	if b.Hash != (common.Hash{}) {
		h := b.Hash
		out.Hash = &h
	}
	for i, tx := range b.Transactions {
		if fullTx {
			var rcpt *chain.Receipt
			if i < len(b.Receipts) {
				rcpt = b.Receipts[i]
			}
			out.Transactions = append(out.Transactions, newRPCTransaction(tx, rcpt))
		} else {
			out.Transactions = append(out.Transactions, tx.Hash)
		}
	}
	return out
}
