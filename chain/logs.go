package chain

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FilterQuery selects logs by block range, emitting address, and positional
// topics. A nil Topics entry matches any value at that position; a non-nil
// entry must equal the log's topic exactly. A nil Address matches every
// contract.
type FilterQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Address   *common.Address
	Topics    []*common.Hash
}

// GetLogs linearly scans the mined blocks in the inclusive range and
// returns every log passing the filter, in chain order.
func (e *Engine) GetLogs(q FilterQuery) []*types.Log {
	e.mu.RLock()
	defer e.mu.RUnlock()

	to := q.ToBlock
	if last := e.blocks[len(e.blocks)-1].Number; to > last {
		to = last
	}

	var out []*types.Log
	for n := q.FromBlock; n <= to && n < uint64(len(e.blocks)); n++ {
		for _, rcpt := range e.blocks[n].Receipts {
			for _, lg := range rcpt.Logs {
				if matchLog(lg, q) {
					out = append(out, lg)
				}
			}
		}
	}
	return out
}

func matchLog(lg *types.Log, q FilterQuery) bool {
	if q.Address != nil && *q.Address != lg.Address {
		return false
	}
	for i, want := range q.Topics {
		if want == nil {
			continue
		}
		if i >= len(lg.Topics) || lg.Topics[i] != *want {
			return false
		}
	}
	return true
}
