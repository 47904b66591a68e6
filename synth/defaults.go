// Package synth produces synthetic ABI values for the mock chain: default
// return values for arbitrary output shapes, canonical string forms used for
// state keys and override matching, and heuristic event-log synthesis.
package synth

import (
	"math/big"
	"reflect"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultAddress is the placeholder returned for address-typed outputs. A
// recognizable non-zero constant so callers can tell a synthesized response
// from real data at a glance.
var DefaultAddress = common.HexToAddress("0x000000000000000000000000000000000000dEaD")

// DefaultString is the placeholder returned for string-typed outputs.
const DefaultString = "mock"

// DefaultValue returns a deterministic default for the given ABI type,
// using the Go representation go-ethereum's ABI packer expects. It is pure
// and total over the ABI type grammar: unknown types yield nil rather than
// panicking.
//
// Scalars: unsigned integers default to 1, signed integers to 0, bool to
// true, address to DefaultAddress, string to DefaultString. Dynamic bytes
// and dynamic arrays are empty, fixed bytes are zero, fixed arrays and
// tuples recurse element-wise.
func DefaultValue(t abi.Type) interface{} {
	switch t.T {
	case abi.UintTy:
		return defaultUint(t.Size, 1)
	case abi.IntTy:
		return defaultInt(t.Size, 0)
	case abi.BoolTy:
		return true
	case abi.AddressTy:
		return DefaultAddress
	case abi.StringTy:
		return DefaultString
	case abi.BytesTy:
		return []byte{}
	case abi.FixedBytesTy, abi.FunctionTy:
		// Zero-valued [N]byte array of the exact reflect type.
		return reflect.New(t.GetType()).Elem().Interface()
	case abi.HashTy:
		return common.Hash{}
	case abi.SliceTy:
		return reflect.MakeSlice(t.GetType(), 0, 0).Interface()
	case abi.ArrayTy:
		if t.Elem == nil {
			return nil
		}
		arr := reflect.New(t.GetType()).Elem()
		for i := 0; i < t.Size; i++ {
			if dv := DefaultValue(*t.Elem); dv != nil {
				arr.Index(i).Set(reflect.ValueOf(dv))
			}
		}
		return arr.Interface()
	case abi.TupleTy:
		if t.TupleType == nil {
			return nil
		}
		v := reflect.New(t.TupleType).Elem()
		for i, elem := range t.TupleElems {
			if i >= v.NumField() || elem == nil {
				break
			}
			if dv := DefaultValue(*elem); dv != nil {
				v.Field(i).Set(reflect.ValueOf(dv))
			}
		}
		return v.Interface()
	default:
		return nil
	}
}

// DefaultValues returns one default per argument, in declared order.
func DefaultValues(args abi.Arguments) []interface{} {
	out := make([]interface{}, len(args))
	for i, arg := range args {
		out[i] = DefaultValue(arg.Type)
	}
	return out
}

// defaultUint returns n in the native Go type the ABI packer expects for an
// unsigned integer of the given bit size. Sizes without a native type use
// *big.Int, matching go-ethereum's reflection mapping.
func defaultUint(size int, n uint64) interface{} {
	switch size {
	case 8:
		return uint8(n)
	case 16:
		return uint16(n)
	case 32:
		return uint32(n)
	case 64:
		return n
	}
	return new(big.Int).SetUint64(n)
}

// defaultInt is the signed counterpart of defaultUint.
func defaultInt(size int, n int64) interface{} {
	switch size {
	case 8:
		return int8(n)
	case 16:
		return int16(n)
	case 32:
		return int32(n)
	case 64:
		return n
	}
	return big.NewInt(n)
}
