package chain

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

var (
	// ErrUnknownContract is returned when a read or write targets an
	// address with no registered ABI. This is the one failure the engine
	// reports loudly; there is no sensible default response.
	ErrUnknownContract = errors.New("unknown contract")

	// ErrMiningActive is returned when interval mining is started twice.
	ErrMiningActive = errors.New("mining already started")
)

// revertSelector is the 4-byte selector of Error(string), the standard
// Solidity revert payload.
var revertSelector = []byte{0x08, 0xc3, 0x79, 0xa0}

var revertArgs abi.Arguments

func init() {
	stringType, err := abi.NewType("string", "", nil)
	if err != nil {
		panic(err)
	}
	revertArgs = abi.Arguments{{Type: stringType}}
}

// RevertError is a simulated revert raised by a configured override. The
// transport layer maps it to the "execution reverted" JSON-RPC error and
// attaches the ABI-encoded reason as error data.
type RevertError struct {
	Reason string
}

// Error returns the human-readable revert message.
func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// EncodedData returns the hex form of the standard Error(string) revert
// payload carrying the configured reason.
func (e *RevertError) EncodedData() string {
	packed, err := revertArgs.Pack(e.Reason)
	if err != nil {
		return "0x"
	}
	return hexutil.Encode(append(append([]byte{}, revertSelector...), packed...))
}

func unknownContract(addr fmt.Stringer) error {
	return fmt.Errorf("%w: %s", ErrUnknownContract, addr)
}
