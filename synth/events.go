package synth

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

// MatchRank records why an event was considered a candidate for a called
// function, ordered from strongest to weakest signal.
type MatchRank int

const (
	// MatchExact means the event name equals the function name.
	MatchExact MatchRank = iota
	// MatchSuffix means the event name ends with the function name.
	MatchSuffix
	// MatchSubstring means the event name contains the function name.
	MatchSubstring
	// MatchSetterBase means the function is a setFoo-style setter and the
	// event is named after the base (Foo, FooSet, FooUpdated, FooChanged).
	MatchSetterBase
)

// String returns a short label for the rank.
func (r MatchRank) String() string {
	switch r {
	case MatchExact:
		return "exact"
	case MatchSuffix:
		return "suffix"
	case MatchSubstring:
		return "substring"
	case MatchSetterBase:
		return "setter-base"
	default:
		return "unknown"
	}
}

// Candidate is one event that plausibly corresponds to a called function.
type Candidate struct {
	Event abi.Event
	Rank  MatchRank
}

// MatchEvents returns every event in the ABI that heuristically matches the
// called function name, strongest match first (ties broken by event name).
// All name comparisons are case-insensitive. The match is a convenience
// heuristic, not a precise mapping: callers get the full candidate list and
// typically emit one log per candidate.
func MatchEvents(contract abi.ABI, fnName string) []Candidate {
	fn := strings.ToLower(fnName)
	if fn == "" {
		return nil
	}

	var baseTargets []string
	if strings.HasPrefix(fn, "set") && len(fn) > 3 {
		base := fn[3:]
		baseTargets = []string{base, base + "set", base + "updated", base + "changed"}
	}

	var out []Candidate
	for _, ev := range contract.Events {
		name := strings.ToLower(ev.RawName)
		switch {
		case name == fn:
			out = append(out, Candidate{Event: ev, Rank: MatchExact})
		case strings.HasSuffix(name, fn):
			out = append(out, Candidate{Event: ev, Rank: MatchSuffix})
		case strings.Contains(name, fn):
			out = append(out, Candidate{Event: ev, Rank: MatchSubstring})
		default:
			for _, target := range baseTargets {
				if name == target {
					out = append(out, Candidate{Event: ev, Rank: MatchSetterBase})
					break
				}
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Rank != out[j].Rank {
			return out[i].Rank < out[j].Rank
		}
		return out[i].Event.RawName < out[j].Event.RawName
	})
	return out
}

// BuildLog synthesizes a log entry for one matched event. Function argument
// values are mapped onto event parameters by name; the transaction sender
// wins for parameters named "from" or "sender", a small alias table covers
// the common transfer shapes, and anything unmapped gets a default value.
// Block and transaction linkage fields are left for the caller to fill in.
func BuildLog(address common.Address, ev abi.Event, fn abi.Method, args []interface{}, sender common.Address) (*types.Log, error) {
	byName := make(map[string]interface{}, len(fn.Inputs))
	for i, in := range fn.Inputs {
		if i < len(args) {
			byName[strings.ToLower(in.Name)] = args[i]
		}
	}

	values := make([]interface{}, len(ev.Inputs))
	for i, in := range ev.Inputs {
		values[i] = resolveEventParam(in, byName, sender)
	}

	topics := []common.Hash{ev.ID}
	var dataArgs abi.Arguments
	var dataVals []interface{}
	for i, in := range ev.Inputs {
		if in.Indexed {
			// ABI convention allows at most three indexed topics.
			if len(topics) < 4 {
				topics = append(topics, EncodeTopic(values[i], in.Type))
			}
			continue
		}
		dataArgs = append(dataArgs, abi.Argument{Name: in.Name, Type: in.Type})
		dataVals = append(dataVals, coerceValue(values[i], in.Type))
	}

	var data []byte
	if len(dataArgs) > 0 {
		packed, err := dataArgs.Pack(dataVals...)
		if err != nil {
			// Mapped values with incompatible shapes degrade to defaults
			// rather than suppressing the log entirely.
			for i, arg := range dataArgs {
				dataVals[i] = DefaultValue(arg.Type)
			}
			packed, err = dataArgs.Pack(dataVals...)
			if err != nil {
				return nil, fmt.Errorf("pack event %s data: %w", ev.RawName, err)
			}
		}
		data = packed
	}

	return &types.Log{
		Address: address,
		Topics:  topics,
		Data:    data,
	}, nil
}

// resolveEventParam picks the value for one event input per the mapping
// rules in BuildLog's doc comment.
func resolveEventParam(in abi.Argument, byName map[string]interface{}, sender common.Address) interface{} {
	name := strings.ToLower(in.Name)
	if name == "from" || name == "sender" {
		return sender
	}
	if v, ok := byName[name]; ok {
		return v
	}
	var aliases []string
	switch name {
	case "to":
		aliases = []string{"to", "recipient", "dst"}
	case "amount", "value":
		aliases = []string{"amount", "value", "wad"}
	}
	for _, alias := range aliases {
		if v, ok := byName[alias]; ok {
			return v
		}
	}
	return DefaultValue(in.Type)
}

// EncodeTopic encodes one indexed event parameter into a 32-byte topic.
// Addresses, integers and fixed bytes are left-padded big-endian; booleans
// become 1 or 0; dynamic and composite values are content-hashed, matching
// how real chains index complex types.
func EncodeTopic(v interface{}, t abi.Type) common.Hash {
	switch x := v.(type) {
	case common.Address:
		return common.BytesToHash(x.Bytes())
	case common.Hash:
		return x
	case bool:
		if x {
			return common.BytesToHash([]byte{1})
		}
		return common.Hash{}
	case *big.Int:
		return bigToTopic(x)
	case uint8:
		return uintToTopic(uint64(x))
	case uint16:
		return uintToTopic(uint64(x))
	case uint32:
		return uintToTopic(uint64(x))
	case uint64:
		return uintToTopic(x)
	case int8:
		return bigToTopic(big.NewInt(int64(x)))
	case int16:
		return bigToTopic(big.NewInt(int64(x)))
	case int32:
		return bigToTopic(big.NewInt(int64(x)))
	case int64:
		return bigToTopic(big.NewInt(x))
	case []byte:
		if t.T == abi.BytesTy || t.T == abi.StringTy {
			return crypto.Keccak256Hash(x)
		}
		return common.BytesToHash(x)
	case string:
		return crypto.Keccak256Hash([]byte(x))
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		buf := make([]byte, rv.Len())
		reflect.Copy(reflect.ValueOf(buf), rv)
		return common.BytesToHash(buf)
	}
	// Composite values (arrays, tuples) are hashed over their canonical
	// string form.
	return crypto.Keccak256Hash([]byte(CanonicalValue(v)))
}

func uintToTopic(n uint64) common.Hash {
	return common.Hash(uint256.NewInt(n).Bytes32())
}

func bigToTopic(n *big.Int) common.Hash {
	if n == nil {
		return common.Hash{}
	}
	if n.Sign() >= 0 {
		if u, overflow := uint256.FromBig(n); !overflow {
			return common.Hash(u.Bytes32())
		}
	}
	// Negative or oversized values wrap to 256-bit two's complement.
	return common.BytesToHash(math.U256Bytes(new(big.Int).Set(n)))
}

// coerceValue reshapes v so the ABI packer accepts it for type t, falling
// back to the type's default when no safe conversion exists.
func coerceValue(v interface{}, t abi.Type) interface{} {
	if v == nil {
		return DefaultValue(t)
	}
	want := t.GetType()
	rv := reflect.ValueOf(v)
	if rv.Type() == want || rv.Type().AssignableTo(want) {
		return v
	}
	// Numeric shuffles between sized ints and *big.Int.
	bigType := reflect.TypeOf((*big.Int)(nil))
	if want == bigType {
		switch rv.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return new(big.Int).SetUint64(rv.Uint())
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return big.NewInt(rv.Int())
		}
	}
	if b, ok := v.(*big.Int); ok && b != nil {
		switch want.Kind() {
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return reflect.ValueOf(b.Uint64()).Convert(want).Interface()
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			return reflect.ValueOf(b.Int64()).Convert(want).Interface()
		}
	}
	if isNumericKind(rv.Kind()) && isNumericKind(want.Kind()) && rv.Type().ConvertibleTo(want) {
		return rv.Convert(want).Interface()
	}
	return DefaultValue(t)
}

func isNumericKind(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}
