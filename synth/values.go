package synth

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"reflect"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// CanonicalValue renders a decoded ABI value in a stable, comparable string
// form: big integers as decimal, hex-backed values (addresses, hashes,
// byte strings) as lower-case 0x hex, booleans as "true"/"false", and
// composites recursively. Two values that encode the same ABI datum always
// produce the same string, which is what makes state keys and override
// argument matching work.
func CanonicalValue(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "null"
	case *big.Int:
		if x == nil {
			return "0"
		}
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	case string:
		return x
	case common.Address:
		return strings.ToLower(x.Hex())
	case common.Hash:
		return strings.ToLower(x.Hex())
	case []byte:
		return "0x" + hex.EncodeToString(x)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case int:
		return strconv.Itoa(x)
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Array:
		// Fixed byte arrays render as hex, other arrays element-wise.
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			buf := make([]byte, rv.Len())
			reflect.Copy(reflect.ValueOf(buf), rv)
			return "0x" + hex.EncodeToString(buf)
		}
		return canonicalSequence(rv)
	case reflect.Slice:
		return canonicalSequence(rv)
	case reflect.Struct:
		parts := make([]string, 0, rv.NumField())
		for i := 0; i < rv.NumField(); i++ {
			parts = append(parts, CanonicalValue(rv.Field(i).Interface()))
		}
		return "(" + strings.Join(parts, ",") + ")"
	case reflect.Ptr:
		if rv.IsNil() {
			return "null"
		}
		return CanonicalValue(rv.Elem().Interface())
	}
	return fmt.Sprintf("%v", v)
}

// CanonicalValues renders each value and joins them with commas.
func CanonicalValues(vs []interface{}) string {
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = CanonicalValue(v)
	}
	return strings.Join(parts, ",")
}

func canonicalSequence(rv reflect.Value) string {
	parts := make([]string, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		parts[i] = CanonicalValue(rv.Index(i).Interface())
	}
	return "[" + strings.Join(parts, ",") + "]"
}
