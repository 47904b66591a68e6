package chain

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmock/ethmock/registry"
	"github.com/ethmock/ethmock/synth"
)

// decodeCall best-effort decodes calldata against the target's ABI for
// display and matching. Any failure yields nil; submission never fails on
// undecodable calldata.
func decodeCall(entry *registry.Entry, data []byte) *DecodedCall {
	method, args, ok := decodeMethod(entry.ABI, data)
	if !ok {
		return nil
	}
	return &DecodedCall{
		ContractName: entry.Name,
		FunctionName: method.RawName,
		Args:         args,
	}
}

// decodeMethod resolves the selector and unpacks the arguments.
func decodeMethod(contract abi.ABI, data []byte) (*abi.Method, []interface{}, bool) {
	if len(data) < 4 {
		return nil, nil, false
	}
	method, err := contract.MethodById(data[:4])
	if err != nil {
		return nil, nil, false
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, false
	}
	return method, args, true
}

// executeLocked runs one transaction during a mining round: the state-store
// setter convention followed by heuristic event synthesis. There is no EVM,
// so execution cannot fail; undecodable calldata silently performs nothing
// and the transaction still gets a success receipt. Caller holds e.mu.
func (e *Engine) executeLocked(tx *Transaction) []*types.Log {
	entry, ok := e.reg.Lookup(tx.To)
	if !ok {
		// Contract disappeared between submission and mining (hot
		// reload); treat like a decode failure.
		return nil
	}

	method, args, ok := decodeMethod(entry.ABI, tx.Data)
	if !ok {
		e.logger.Debug("undecodable calldata, executing as no-op", "tx", tx.Hash)
		return nil
	}

	// Setter convention: the trailing argument is the stored value, the
	// leading arguments form the key.
	if len(args) > 0 {
		e.store.Set(tx.To, method.RawName, args[:len(args)-1], args[len(args)-1:])
	}

	var logs []*types.Log
	for _, cand := range synth.MatchEvents(entry.ABI, method.RawName) {
		lg, err := synth.BuildLog(tx.To, cand.Event, *method, args, tx.From)
		if err != nil {
			e.logger.Debug("event synthesis failed", "event", cand.Event.RawName, "err", err)
			continue
		}
		logs = append(logs, lg)
	}
	return logs
}
