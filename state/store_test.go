package state

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"set", "_default"},
		{"get", "_default"},
		{"setFoo", "foo"},
		{"getFoo", "foo"},
		{"setBalance", "balance"},
		{"getBalance", "balance"},
		{"setX", "x"},
		{"balanceOf", "balanceOf"},
		{"foo", "foo"},
		{"settle", "tle"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeName(tt.in); got != tt.want {
				t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	s := NewStore()
	c := common.HexToAddress("0x1000000000000000000000000000000000000001")
	key := []interface{}{common.HexToAddress("0x2000000000000000000000000000000000000002")}
	val := []interface{}{big.NewInt(42)}

	s.Set(c, "setBalance", key, val)

	// The getter spelling and the bare-name spelling both see the write.
	for _, fn := range []string{"getBalance", "balance"} {
		got, ok := s.Get(c, fn, key)
		if !ok {
			t.Fatalf("Get(%q) not found", fn)
		}
		if got[0].(*big.Int).Cmp(big.NewInt(42)) != 0 {
			t.Errorf("Get(%q) = %v, want 42", fn, got[0])
		}
	}
}

func TestStoreKeyArguments(t *testing.T) {
	s := NewStore()
	c := common.HexToAddress("0x1000000000000000000000000000000000000001")
	k1 := []interface{}{big.NewInt(1)}
	k2 := []interface{}{big.NewInt(2)}

	s.Set(c, "setItem", k1, []interface{}{"first"})
	s.Set(c, "setItem", k2, []interface{}{"second"})

	got, ok := s.Get(c, "getItem", k1)
	if !ok || got[0] != "first" {
		t.Errorf("Get(k1) = %v %v, want first", got, ok)
	}
	got, ok = s.Get(c, "getItem", k2)
	if !ok || got[0] != "second" {
		t.Errorf("Get(k2) = %v %v, want second", got, ok)
	}
	if _, ok := s.Get(c, "getItem", []interface{}{big.NewInt(3)}); ok {
		t.Error("Get(unwritten key) should miss")
	}
}

func TestStoreContractIsolation(t *testing.T) {
	s := NewStore()
	c1 := common.HexToAddress("0x1000000000000000000000000000000000000001")
	c2 := common.HexToAddress("0x2000000000000000000000000000000000000002")

	s.Set(c1, "setValue", nil, []interface{}{big.NewInt(7)})

	if _, ok := s.Get(c2, "getValue", nil); ok {
		t.Error("state leaked across contract addresses")
	}
	if _, ok := s.Get(c1, "getValue", nil); !ok {
		t.Error("own state not visible")
	}
}

func TestStoreAddressCaseInsensitive(t *testing.T) {
	s := NewStore()
	// HexToAddress normalizes casing, so mixed-case inputs land on the
	// same key.
	mixed := common.HexToAddress("0xAb5801a7D398351b8bE11C439e05C5B3259aeC9B")
	lower := common.HexToAddress("0xab5801a7d398351b8be11c439e05c5b3259aec9b")

	s.Set(mixed, "setValue", nil, []interface{}{true})
	if _, ok := s.Get(lower, "getValue", nil); !ok {
		t.Error("case-insensitive address lookup failed")
	}
}

func TestStoreDistinguishesEmptyFromMissing(t *testing.T) {
	s := NewStore()
	c := common.HexToAddress("0x1000000000000000000000000000000000000001")

	s.Set(c, "setFlag", nil, []interface{}{})
	got, ok := s.Get(c, "getFlag", nil)
	if !ok {
		t.Fatal("stored empty value reported as missing")
	}
	if len(got) != 0 {
		t.Errorf("got %v, want empty", got)
	}
}

func TestStoreClear(t *testing.T) {
	s := NewStore()
	c := common.HexToAddress("0x1000000000000000000000000000000000000001")
	s.Set(c, "setValue", nil, []interface{}{big.NewInt(1)})
	s.Clear()
	if s.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", s.Len())
	}
	if _, ok := s.Get(c, "getValue", nil); ok {
		t.Error("value visible after Clear")
	}
}

func TestStoreDefaultBucket(t *testing.T) {
	s := NewStore()
	c := common.HexToAddress("0x1000000000000000000000000000000000000001")
	s.Set(c, "set", nil, []interface{}{big.NewInt(9)})
	got, ok := s.Get(c, "get", nil)
	if !ok || got[0].(*big.Int).Cmp(big.NewInt(9)) != 0 {
		t.Errorf("bare set/get bucket round-trip failed: %v %v", got, ok)
	}
}
