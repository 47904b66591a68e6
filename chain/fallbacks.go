package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/crypto"
)

// Well-known introspection selectors get canned responses even when the
// target's ABI does not declare them, so ERC-style probes from wallets and
// indexers succeed against any registered contract. This is a fixed
// allowlist, not a configurable mechanism.
var selectorFallbacks map[[4]byte][]byte

func init() {
	selectorFallbacks = make(map[[4]byte][]byte)
	for _, f := range []struct {
		sig  string
		typ  string
		val  interface{}
	}{
		{"decimals()", "uint8", uint8(18)},
		{"symbol()", "string", "MOCK"},
		{"name()", "string", "Mock Token"},
		{"totalSupply()", "uint256", new(big.Int)},
		{"supportsInterface(bytes4)", "bool", true},
	} {
		t, err := abi.NewType(f.typ, "", nil)
		if err != nil {
			panic(err)
		}
		out, err := abi.Arguments{{Type: t}}.Pack(f.val)
		if err != nil {
			panic(err)
		}
		var sel [4]byte
		copy(sel[:], crypto.Keccak256([]byte(f.sig))[:4])
		selectorFallbacks[sel] = out
	}
}

// fallbackResponse returns the canned encoding for a well-known selector.
func fallbackResponse(selector []byte) ([]byte, bool) {
	if len(selector) < 4 {
		return nil, false
	}
	var sel [4]byte
	copy(sel[:], selector[:4])
	out, ok := selectorFallbacks[sel]
	return out, ok
}
