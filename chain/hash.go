package chain

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

// Hash derivation is deterministic so tests and clients can predict
// identifiers: transaction hashes derive from the submission nonce, block
// hashes from the block number, each under its own domain prefix.

func deriveHash(domain string, n uint64) common.Hash {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], n)
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(domain))
	h.Write(buf[:])
	return common.BytesToHash(h.Sum(nil))
}

func txHash(nonce uint64) common.Hash {
	return deriveHash("ethmock/tx", nonce)
}

func blockHash(number uint64) common.Hash {
	return deriveHash("ethmock/block", number)
}
