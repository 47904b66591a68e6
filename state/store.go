// Package state implements the simulated contract storage of the mock
// chain. There is no real EVM storage layout: a setter call stores its
// trailing argument(s) under a composite key derived from the contract
// address, a normalized function base name, and the leading (key)
// arguments, and the matching getter reads them back.
package state

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/ethmock/ethmock/synth"
)

// defaultBucket is the shared bucket name for bare set()/get() pairs.
const defaultBucket = "_default"

// NormalizeName maps setter and getter spellings of the same logical slot
// onto one bucket name:
//
//   - "set" and "get" alone share the sentinel bucket "_default"
//   - "setFoo" and "getFoo" both become "foo"
//   - anything else (a bare "foo" getter) is returned unchanged
func NormalizeName(fn string) string {
	if fn == "set" || fn == "get" {
		return defaultBucket
	}
	if len(fn) > 3 && (strings.HasPrefix(fn, "set") || strings.HasPrefix(fn, "get")) {
		rest := fn[3:]
		return strings.ToLower(rest[:1]) + rest[1:]
	}
	return fn
}

// Store holds written values keyed by contract, bucket, and key arguments.
// Values are the decoded Go representations produced by the ABI decoder;
// they are re-encoded against the reading function's outputs at call time.
type Store struct {
	mu      sync.RWMutex
	entries map[string][]interface{}
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{entries: make(map[string][]interface{})}
}

// Set stores values under (contract, normalized fn name, keyArgs).
func (s *Store) Set(contract common.Address, fn string, keyArgs []interface{}, values []interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[compositeKey(contract, fn, keyArgs)] = values
}

// Get returns the values previously stored for (contract, fn, keyArgs).
// The boolean distinguishes "never written" from a stored empty value.
func (s *Store) Get(contract common.Address, fn string, keyArgs []interface{}) ([]interface{}, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	vals, ok := s.entries[compositeKey(contract, fn, keyArgs)]
	return vals, ok
}

// Clear wipes all stored state. Used when the contract registry is rebuilt
// on hot reload; overrides and chain history are unaffected.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string][]interface{})
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// compositeKey builds the lookup key. Addresses compare case-insensitively
// and key arguments use their canonical string form, so any two calls that
// reference the same logical slot collide here.
func compositeKey(contract common.Address, fn string, keyArgs []interface{}) string {
	return strings.ToLower(contract.Hex()) + "|" + NormalizeName(fn) + "|[" + synth.CanonicalValues(keyArgs) + "]"
}
