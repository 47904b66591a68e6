// Package registry maps contract addresses to their human names and parsed
// ABIs. It is the engine's only source of contract knowledge; nothing else
// in the simulator reads ABI files.
package registry

import (
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Entry is one registered contract.
type Entry struct {
	Address common.Address
	Name    string
	ABI     abi.ABI
}

// Registry holds the registered contracts. Lookups are case-insensitive on
// the address. Individual entries are immutable; hot reload replaces the
// whole set atomically via Replace.
type Registry struct {
	mu      sync.RWMutex
	byAddr  map[common.Address]*Entry
	byName  map[string][]common.Address
}

// New creates an empty registry.
func New() *Registry {
	r := &Registry{}
	r.reset()
	return r
}

func (r *Registry) reset() {
	r.byAddr = make(map[common.Address]*Entry)
	r.byName = make(map[string][]common.Address)
}

// Register adds one contract. Registering the same address twice replaces
// the earlier entry.
func (r *Registry) Register(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.register(e)
}

func (r *Registry) register(e Entry) {
	entry := e
	if old, ok := r.byAddr[e.Address]; ok {
		r.dropName(old.Name, e.Address)
	}
	r.byAddr[e.Address] = &entry
	key := strings.ToLower(e.Name)
	r.byName[key] = append(r.byName[key], e.Address)
}

func (r *Registry) dropName(name string, addr common.Address) {
	key := strings.ToLower(name)
	addrs := r.byName[key]
	for i, a := range addrs {
		if a == addr {
			r.byName[key] = append(addrs[:i], addrs[i+1:]...)
			break
		}
	}
	if len(r.byName[key]) == 0 {
		delete(r.byName, key)
	}
}

// Replace swaps in a whole new contract set. Used on hot reload; the maps
// are refilled in place under the lock so readers never observe a partial
// set.
func (r *Registry) Replace(entries []Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reset()
	for _, e := range entries {
		r.register(e)
	}
}

// Lookup returns the contract registered at addr.
func (r *Registry) Lookup(addr common.Address) (*Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byAddr[addr]
	return e, ok
}

// LookupName returns every address registered under the given contract
// name (case-insensitive). One name may map to multiple deployments.
func (r *Registry) LookupName(name string) []common.Address {
	r.mu.RLock()
	defer r.mu.RUnlock()
	addrs := r.byName[strings.ToLower(name)]
	out := make([]common.Address, len(addrs))
	copy(out, addrs)
	return out
}

// Len reports the number of registered contracts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddr)
}

// ParseABI parses contract ABI JSON into its typed form.
func ParseABI(data []byte) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(string(data)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse ABI: %w", err)
	}
	return parsed, nil
}
