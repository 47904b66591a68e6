package chain

import (
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmock/ethmock/override"
	"github.com/ethmock/ethmock/synth"
)

// Call executes a read against the target contract without mining or state
// mutation. The return value resolves through strict precedence: a
// configured override first (possibly a simulated revert), then previously
// written state, then synthesized defaults. Undecodable calldata degrades
// to an empty result unless the selector is in the small table of
// well-known fallbacks; probing calls for unsupported selectors are
// routine. Only an unregistered target address is a hard failure.
func (e *Engine) Call(to common.Address, data []byte) ([]byte, error) {
	entry, ok := e.reg.Lookup(to)
	if !ok {
		return nil, unknownContract(to)
	}

	if len(data) < 4 {
		return []byte{}, nil
	}
	method, err := entry.ABI.MethodById(data[:4])
	if err != nil {
		if canned, ok := fallbackResponse(data[:4]); ok {
			return canned, nil
		}
		return []byte{}, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return []byte{}, nil
	}
	if len(method.Outputs) == 0 {
		return []byte{}, nil
	}

	e.mu.RLock()
	overrides := e.overrides
	e.mu.RUnlock()

	// 1. Configured override.
	if ov, ok := overrides.Resolve(to, method.RawName, args); ok {
		if ov.Kind == override.KindRevert {
			return nil, &RevertError{Reason: ov.Revert}
		}
		vals, err := ov.Apply(method.Outputs)
		if err == nil {
			if out, err := method.Outputs.Pack(vals...); err == nil {
				return out, nil
			}
			e.logger.Warn("override values unpackable, falling through", "fn", method.RawName)
		}
	}

	// 2. Previously written state.
	if vals, ok := e.store.Get(to, method.RawName, args); ok {
		if out, err := method.Outputs.Pack(vals...); err == nil {
			return out, nil
		}
		// Stored values no longer fit the outputs (ABI drift under hot
		// reload); degrade to defaults.
		e.logger.Debug("stored state unpackable against outputs", "fn", method.RawName)
	}

	// 3. Synthesized defaults.
	out, err := packDefaults(method)
	if err != nil {
		e.logger.Warn("default synthesis failed", "fn", method.RawName, "err", err)
		return []byte{}, nil
	}
	return out, nil
}

func packDefaults(method *abi.Method) ([]byte, error) {
	return method.Outputs.Pack(synth.DefaultValues(method.Outputs)...)
}
