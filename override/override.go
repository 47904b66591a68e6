// Package override implements user-configured forced responses for contract
// functions. An override short-circuits the normal state/default resolution
// on reads: it can force one or more return values, or simulate a revert
// with a configured reason.
package override

import (
	"fmt"
	"math/big"
	"reflect"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/ethmock/ethmock/synth"
)

// Kind distinguishes value overrides from revert overrides.
type Kind int

const (
	// KindValue forces the configured return value(s).
	KindValue Kind = iota
	// KindRevert simulates a revert with the configured reason.
	KindRevert
)

// Override is one resolved override entry.
type Override struct {
	Kind   Kind
	Values []string // positional return values, for KindValue
	Revert string   // revert reason, for KindRevert
}

// NameResolver maps a contract name from the config file to the addresses
// currently registered under that name. One name may map to several
// addresses.
type NameResolver func(name string) []common.Address

// Table holds all configured overrides, keyed by contract address and
// function name, with optional literal-argument signatures. Tables are
// immutable after construction; hot reload swaps the whole table.
type Table struct {
	entries map[string]*Override
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{entries: make(map[string]*Override)}
}

// Len reports the number of configured entries.
func (t *Table) Len() int { return len(t.entries) }

// ParseEntries builds a Table from raw config entries. Keys take the form
// "Target.function" or "Target.function(arg1,arg2)", where Target is a
// literal 0x address or a contract name resolved through resolve. Values
// are a bare string, {value: string|[string]}, {values: [string]}, or
// {revert: string}.
func ParseEntries(raw map[string]interface{}, resolve NameResolver) (*Table, error) {
	t := NewTable()
	for key, val := range raw {
		target, fn, argSig, err := parseKey(key)
		if err != nil {
			return nil, err
		}
		ov, err := parseValue(key, val)
		if err != nil {
			return nil, err
		}

		var addrs []common.Address
		if strings.HasPrefix(strings.ToLower(target), "0x") {
			addrs = []common.Address{common.HexToAddress(target)}
		} else if resolve != nil {
			addrs = resolve(target)
		}
		if len(addrs) == 0 {
			return nil, fmt.Errorf("override %q: unknown contract %q", key, target)
		}
		for _, addr := range addrs {
			t.entries[entryKey(addr, fn, argSig)] = ov
		}
	}
	return t, nil
}

// Resolve looks up the override for a call. An entry whose literal argument
// signature matches the normalized call arguments wins over the generic
// (argument-free) entry for the same address and function.
func (t *Table) Resolve(addr common.Address, fn string, args []interface{}) (*Override, bool) {
	if t == nil || len(t.entries) == 0 {
		return nil, false
	}
	if len(args) > 0 {
		sig := normalizeCallArgs(args)
		if ov, ok := t.entries[entryKey(addr, fn, sig)]; ok {
			return ov, true
		}
	}
	ov, ok := t.entries[entryKey(addr, fn, "")]
	return ov, ok
}

// Apply coerces a value override onto the function's declared outputs. When
// fewer values than outputs are supplied, the remaining outputs are filled
// with synthesized defaults. Calling Apply on a revert override is a
// programming error and yields an error rather than a panic.
func (o *Override) Apply(outputs abi.Arguments) ([]interface{}, error) {
	if o.Kind == KindRevert {
		return nil, fmt.Errorf("cannot apply revert override as value")
	}
	out := make([]interface{}, len(outputs))
	for i, arg := range outputs {
		if i < len(o.Values) {
			out[i] = coerceString(o.Values[i], arg.Type)
		} else {
			out[i] = synth.DefaultValue(arg.Type)
		}
	}
	return out, nil
}

// parseKey splits "Target.function(arg1,arg2)" into its parts. argSig is ""
// for the generic form.
func parseKey(key string) (target, fn, argSig string, err error) {
	dot := strings.Index(key, ".")
	if dot <= 0 || dot == len(key)-1 {
		return "", "", "", fmt.Errorf("override %q: want Target.function", key)
	}
	target = strings.TrimSpace(key[:dot])
	rest := strings.TrimSpace(key[dot+1:])

	if open := strings.Index(rest, "("); open >= 0 {
		if !strings.HasSuffix(rest, ")") {
			return "", "", "", fmt.Errorf("override %q: unterminated argument list", key)
		}
		argSig = normalizeLiteralArgs(rest[open+1 : len(rest)-1])
		rest = rest[:open]
	}
	if rest == "" {
		return "", "", "", fmt.Errorf("override %q: empty function name", key)
	}
	return target, rest, argSig, nil
}

// parseValue interprets the configured value forms.
func parseValue(key string, val interface{}) (*Override, error) {
	switch v := val.(type) {
	case string:
		return &Override{Kind: KindValue, Values: []string{v}}, nil
	case map[string]interface{}:
		if r, ok := v["revert"]; ok {
			return &Override{Kind: KindRevert, Revert: fmt.Sprint(r)}, nil
		}
		if vs, ok := v["values"]; ok {
			list, err := toStringList(vs)
			if err != nil {
				return nil, fmt.Errorf("override %q: %w", key, err)
			}
			return &Override{Kind: KindValue, Values: list}, nil
		}
		if single, ok := v["value"]; ok {
			// An array-valued "value" auto-promotes to multi-value.
			if list, err := toStringList(single); err == nil {
				return &Override{Kind: KindValue, Values: list}, nil
			}
			return &Override{Kind: KindValue, Values: []string{fmt.Sprint(single)}}, nil
		}
		return nil, fmt.Errorf("override %q: want value, values, or revert", key)
	case bool, int, int64, float64, uint64:
		return &Override{Kind: KindValue, Values: []string{fmt.Sprint(v)}}, nil
	default:
		return nil, fmt.Errorf("override %q: unsupported value type %T", key, val)
	}
}

func toStringList(v interface{}) ([]string, error) {
	list, ok := v.([]interface{})
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss, nil
		}
		return nil, fmt.Errorf("want a list, got %T", v)
	}
	out := make([]string, len(list))
	for i, item := range list {
		out[i] = fmt.Sprint(item)
	}
	return out, nil
}

func entryKey(addr common.Address, fn, argSig string) string {
	k := strings.ToLower(addr.Hex()) + "|" + fn
	if argSig != "" {
		k += "(" + argSig + ")"
	}
	return k
}

// normalizeLiteralArgs canonicalizes the literal argument list from a config
// key: whitespace trimmed, hex lower-cased, so it compares equal to the
// normalized form of decoded call arguments.
func normalizeLiteralArgs(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	parts := strings.Split(s, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(strings.ToLower(p), "0x") {
			p = strings.ToLower(p)
		}
		parts[i] = p
	}
	return strings.Join(parts, ",")
}

// normalizeCallArgs renders decoded call arguments into the comparable form
// used by entry keys: big integers as decimal, hex lower-cased, booleans as
// true/false.
func normalizeCallArgs(args []interface{}) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = normalizeCallArg(a)
	}
	return strings.Join(parts, ",")
}

func normalizeCallArg(a interface{}) string {
	switch x := a.(type) {
	case *big.Int, bool, string, common.Address, common.Hash:
		return synth.CanonicalValue(x)
	case []byte:
		return hexutil.Encode(x)
	}
	if rv := reflect.ValueOf(a); rv.Kind() == reflect.Array && rv.Type().Elem().Kind() == reflect.Uint8 {
		return synth.CanonicalValue(a)
	}
	return synth.CanonicalValue(a)
}

// coerceString converts one override value string to the Go representation
// of the target ABI output type. Unparseable values degrade to the type's
// default rather than failing the call.
func coerceString(s string, t abi.Type) interface{} {
	s = strings.TrimSpace(s)
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, ok := new(big.Int).SetString(s, 0)
		if !ok {
			return synth.DefaultValue(t)
		}
		return sizedInt(n, t)
	case abi.BoolTy:
		return s == "true" || s == "1"
	case abi.AddressTy:
		return common.HexToAddress(s)
	case abi.StringTy:
		return s
	case abi.BytesTy:
		b, err := hexutil.Decode(with0x(s))
		if err != nil {
			return []byte{}
		}
		return b
	case abi.FixedBytesTy:
		b, err := hexutil.Decode(with0x(s))
		if err != nil {
			return synth.DefaultValue(t)
		}
		arr := reflect.New(t.GetType()).Elem()
		n := len(b)
		if n > t.Size {
			n = t.Size
		}
		reflect.Copy(arr.Slice(0, n), reflect.ValueOf(b[:n]))
		return arr.Interface()
	default:
		return synth.DefaultValue(t)
	}
}

func with0x(s string) string {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return "0x" + s[2:]
	}
	return "0x" + s
}

// sizedInt converts n to the native Go integer type the packer expects for
// the given bit size.
func sizedInt(n *big.Int, t abi.Type) interface{} {
	if t.T == abi.UintTy {
		switch t.Size {
		case 8:
			return uint8(n.Uint64())
		case 16:
			return uint16(n.Uint64())
		case 32:
			return uint32(n.Uint64())
		case 64:
			return n.Uint64()
		}
		return n
	}
	switch t.Size {
	case 8:
		return int8(n.Int64())
	case 16:
		return int16(n.Int64())
	case 32:
		return int32(n.Int64())
	case 64:
		return n.Int64()
	}
	return n
}
