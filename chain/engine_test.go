package chain

import (
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/ethmock/ethmock/override"
	"github.com/ethmock/ethmock/registry"
)

const tokenABI = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setValue","inputs":[{"name":"v","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"value","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"setItem","inputs":[{"name":"key","type":"uint256"},{"name":"val","type":"string"}],"outputs":[]},
	{"type":"function","name":"getItem","stateMutability":"view","inputs":[{"name":"key","type":"uint256"}],"outputs":[{"name":"","type":"string"}]},
	{"type":"function","name":"getInfo","stateMutability":"view","inputs":[],"outputs":[{"name":"label","type":"string"},{"name":"count","type":"uint256"}]},
	{"type":"event","name":"Transfer","inputs":[{"name":"from","type":"address","indexed":true},{"name":"to","type":"address","indexed":true},{"name":"amount","type":"uint256","indexed":false}]},
	{"type":"event","name":"ValueUpdated","inputs":[{"name":"v","type":"uint256","indexed":false}]}
]`

var (
	tokenAddr  = common.HexToAddress("0x1000000000000000000000000000000000000001")
	token2Addr = common.HexToAddress("0x2000000000000000000000000000000000000002")
	sender     = common.HexToAddress("0xAAAA00000000000000000000000000000000AAAA")
	recipient  = common.HexToAddress("0xBBBB00000000000000000000000000000000BBBB")

	transferTopic = common.HexToHash("0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef")
)

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(tokenABI))
	if err != nil {
		t.Fatalf("parse ABI: %v", err)
	}
	r := registry.New()
	r.Register(registry.Entry{Address: tokenAddr, Name: "Token", ABI: parsed})
	r.Register(registry.Entry{Address: token2Addr, Name: "Token", ABI: parsed})
	return r
}

// newManualEngine returns an engine in interval mode with an effectively
// infinite period, so tests drive mining explicitly.
func newManualEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{BlockPeriod: time.Hour}, newTestRegistry(t), nil)
}

func newInstantEngine(t *testing.T) *Engine {
	t.Helper()
	return NewEngine(Config{}, newTestRegistry(t), nil)
}

func calldata(t *testing.T, e *Engine, fn string, args ...interface{}) []byte {
	t.Helper()
	entry, ok := e.Registry().Lookup(tokenAddr)
	if !ok {
		t.Fatal("token not registered")
	}
	method, ok := entry.ABI.Methods[fn]
	if !ok {
		t.Fatalf("method %s not in ABI", fn)
	}
	packed, err := method.Inputs.Pack(args...)
	if err != nil {
		t.Fatalf("pack %s args: %v", fn, err)
	}
	return append(append([]byte{}, method.ID...), packed...)
}

func unpackOutputs(t *testing.T, e *Engine, fn string, data []byte) []interface{} {
	t.Helper()
	entry, _ := e.Registry().Lookup(tokenAddr)
	vals, err := entry.ABI.Methods[fn].Outputs.Unpack(data)
	if err != nil {
		t.Fatalf("unpack %s outputs: %v", fn, err)
	}
	return vals
}

func TestGenesis(t *testing.T) {
	e := newManualEngine(t)
	if e.BlockNumber() != 0 {
		t.Fatalf("genesis number = %d, want 0", e.BlockNumber())
	}
	g := e.LatestBlock()
	if g.ParentHash != (common.Hash{}) {
		t.Errorf("genesis parent = %s, want zero hash", g.ParentHash)
	}
	if len(g.Transactions) != 0 {
		t.Errorf("genesis txs = %d, want 0", len(g.Transactions))
	}
}

func TestMineEmptyBlocksLinkChain(t *testing.T) {
	e := newManualEngine(t)
	for i := 0; i < 3; i++ {
		e.MineBlock()
	}
	if e.BlockNumber() != 3 {
		t.Fatalf("block number = %d, want 3", e.BlockNumber())
	}
	for n := uint64(1); n <= 3; n++ {
		b, ok := e.GetBlockByNumber(n)
		if !ok {
			t.Fatalf("block %d missing", n)
		}
		parent, _ := e.GetBlockByNumber(n - 1)
		if b.ParentHash != parent.Hash {
			t.Errorf("block %d parent = %s, want %s", n, b.ParentHash, parent.Hash)
		}
		if len(b.Transactions) != 0 {
			t.Errorf("block %d txs = %d, want 0", n, len(b.Transactions))
		}
	}
}

func TestTransactionLifecycle_IntervalMode(t *testing.T) {
	e := newManualEngine(t)
	hash, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(42)), nil)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}

	if rcpt := e.GetTransactionReceipt(hash); rcpt != nil {
		t.Fatal("receipt should be nil while pending")
	}
	if _, pending, ok := e.GetTransaction(hash); !ok || !pending {
		t.Fatal("transaction should be known and pending")
	}
	if e.PendingCount() != 1 {
		t.Fatalf("pending count = %d, want 1", e.PendingCount())
	}

	b := e.MineBlock()
	if e.PendingCount() != 0 {
		t.Error("mempool not drained")
	}
	rcpt := e.GetTransactionReceipt(hash)
	if rcpt == nil {
		t.Fatal("receipt missing after mining")
	}
	if rcpt.BlockNumber != b.Number || rcpt.BlockHash != b.Hash {
		t.Errorf("receipt block = %d/%s, want %d/%s", rcpt.BlockNumber, rcpt.BlockHash, b.Number, b.Hash)
	}
	if rcpt.Status != ReceiptStatusSuccess {
		t.Errorf("status = %d, want success", rcpt.Status)
	}
	if _, pending, _ := e.GetTransaction(hash); pending {
		t.Error("transaction still pending after mining")
	}
}

func TestTransactionLifecycle_InstantMode(t *testing.T) {
	e := newInstantEngine(t)
	hash, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(1)), nil)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	rcpt := e.GetTransactionReceipt(hash)
	if rcpt == nil {
		t.Fatal("instant mode should mine before returning")
	}
	if rcpt.BlockNumber != 1 {
		t.Errorf("receipt block = %d, want 1", rcpt.BlockNumber)
	}
	if e.PendingCount() != 0 {
		t.Error("mempool should be empty")
	}
}

func TestSequentialNoncesAndDeterministicHashes(t *testing.T) {
	e := newManualEngine(t)
	h0, _ := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(1)), nil)
	h1, _ := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(2)), nil)
	if h0 == h1 {
		t.Fatal("distinct submissions must have distinct hashes")
	}
	tx0, _, _ := e.GetTransaction(h0)
	tx1, _, _ := e.GetTransaction(h1)
	if tx0.Nonce != 0 || tx1.Nonce != 1 {
		t.Errorf("nonces = %d,%d, want 0,1", tx0.Nonce, tx1.Nonce)
	}

	// Same nonce sequence on a fresh engine derives the same hashes.
	e2 := newManualEngine(t)
	h0b, _ := e2.SendTransaction(sender, tokenAddr, calldata(t, e2, "setValue", big.NewInt(9)), nil)
	if h0 != h0b {
		t.Error("tx hash should derive from nonce alone")
	}
}

func TestCall_DefaultSynthesis(t *testing.T) {
	e := newManualEngine(t)
	out, err := e.Call(tokenAddr, calldata(t, e, "balanceOf", recipient))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	vals := unpackOutputs(t, e, "balanceOf", out)
	if vals[0].(*big.Int).Cmp(big.NewInt(1)) != 0 {
		t.Errorf("default balance = %v, want 1", vals[0])
	}

	out, err = e.Call(tokenAddr, calldata(t, e, "getInfo"))
	if err != nil {
		t.Fatalf("Call getInfo: %v", err)
	}
	vals = unpackOutputs(t, e, "getInfo", out)
	if vals[0] != "mock" {
		t.Errorf("label = %v, want mock", vals[0])
	}
	if vals[1].(*big.Int).Cmp(big.NewInt(1)) != 0 {
		t.Errorf("count = %v, want 1", vals[1])
	}
}

func TestWriteThenRead_StateConvention(t *testing.T) {
	e := newInstantEngine(t)

	if _, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(42)), nil); err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	out, err := e.Call(tokenAddr, calldata(t, e, "value"))
	if err != nil {
		t.Fatalf("Call value: %v", err)
	}
	if got := unpackOutputs(t, e, "value", out)[0].(*big.Int); got.Cmp(big.NewInt(42)) != 0 {
		t.Errorf("value() = %v, want 42", got)
	}

	// Keyed slot: setItem(key, val) / getItem(key).
	if _, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setItem", big.NewInt(7), "hello"), nil); err != nil {
		t.Fatalf("SendTransaction setItem: %v", err)
	}
	out, err = e.Call(tokenAddr, calldata(t, e, "getItem", big.NewInt(7)))
	if err != nil {
		t.Fatalf("Call getItem: %v", err)
	}
	if got := unpackOutputs(t, e, "getItem", out)[0]; got != "hello" {
		t.Errorf("getItem(7) = %v, want hello", got)
	}
	// Unwritten key falls back to the default.
	out, _ = e.Call(tokenAddr, calldata(t, e, "getItem", big.NewInt(8)))
	if got := unpackOutputs(t, e, "getItem", out)[0]; got != "mock" {
		t.Errorf("getItem(8) = %v, want mock", got)
	}

	// Writes are isolated per contract.
	out, _ = e.Call(token2Addr, calldata(t, e, "value"))
	if got := unpackOutputs(t, e, "value", out)[0].(*big.Int); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("other contract value() = %v, want default 1", got)
	}
}

func TestCall_OverridePrecedence(t *testing.T) {
	resolve := func(name string) []common.Address {
		if name == "Token" {
			return []common.Address{tokenAddr}
		}
		return nil
	}
	table, err := override.ParseEntries(map[string]interface{}{
		"Token.value": "500",
		"Token.balanceOf(" + strings.ToLower(recipient.Hex()) + ")": "999",
		"Token.transfer": map[string]interface{}{"revert": "transfers paused"},
	}, resolve)
	if err != nil {
		t.Fatalf("ParseEntries: %v", err)
	}

	e := NewEngine(Config{}, newTestRegistry(t), table)

	// Override beats stored state.
	if _, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(42)), nil); err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	out, err := e.Call(tokenAddr, calldata(t, e, "value"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := unpackOutputs(t, e, "value", out)[0].(*big.Int); got.Cmp(big.NewInt(500)) != 0 {
		t.Errorf("value() = %v, want override 500", got)
	}

	// Argument-specific override.
	out, _ = e.Call(tokenAddr, calldata(t, e, "balanceOf", recipient))
	if got := unpackOutputs(t, e, "balanceOf", out)[0].(*big.Int); got.Cmp(big.NewInt(999)) != 0 {
		t.Errorf("balanceOf(recipient) = %v, want 999", got)
	}
	// Other argument misses the specific entry and there is no generic
	// one, so the default applies.
	out, _ = e.Call(tokenAddr, calldata(t, e, "balanceOf", sender))
	if got := unpackOutputs(t, e, "balanceOf", out)[0].(*big.Int); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("balanceOf(sender) = %v, want default 1", got)
	}

	// Revert override.
	_, err = e.Call(tokenAddr, calldata(t, e, "transfer", recipient, big.NewInt(5)))
	var rev *RevertError
	if !errors.As(err, &rev) {
		t.Fatalf("want RevertError, got %v", err)
	}
	if rev.Reason != "transfers paused" {
		t.Errorf("reason = %q", rev.Reason)
	}
	if !strings.HasPrefix(rev.EncodedData(), "0x08c379a0") {
		t.Errorf("revert data should carry Error(string) selector: %s", rev.EncodedData())
	}
}

func TestUnknownContract(t *testing.T) {
	e := newManualEngine(t)
	stranger := common.HexToAddress("0x9999999999999999999999999999999999999999")

	if _, err := e.Call(stranger, calldata(t, e, "value")); !errors.Is(err, ErrUnknownContract) {
		t.Errorf("Call error = %v, want ErrUnknownContract", err)
	}
	if _, err := e.SendTransaction(sender, stranger, nil, nil); !errors.Is(err, ErrUnknownContract) {
		t.Errorf("SendTransaction error = %v, want ErrUnknownContract", err)
	}
}

func TestUndecodableCalldata(t *testing.T) {
	e := newInstantEngine(t)

	// Write path: garbage calldata still succeeds at the receipt level,
	// with no logs and no state change.
	hash, err := e.SendTransaction(sender, tokenAddr, []byte{0xde, 0xad, 0xbe, 0xef, 0x01}, nil)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	rcpt := e.GetTransactionReceipt(hash)
	if rcpt == nil || rcpt.Status != ReceiptStatusSuccess {
		t.Fatal("undecodable write should still succeed")
	}
	if len(rcpt.Logs) != 0 {
		t.Errorf("logs = %d, want 0", len(rcpt.Logs))
	}
	tx, _, _ := e.GetTransaction(hash)
	if tx.Decoded != nil {
		t.Error("decode should have failed")
	}

	// Read path: unknown selector degrades to an empty result.
	out, err := e.Call(tokenAddr, []byte{0xde, 0xad, 0xbe, 0xef})
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if len(out) != 0 {
		t.Errorf("out = %x, want empty", out)
	}
	// Short calldata too.
	if out, err := e.Call(tokenAddr, []byte{0x01}); err != nil || len(out) != 0 {
		t.Errorf("short calldata: out=%x err=%v", out, err)
	}
}

func TestSelectorFallbacks(t *testing.T) {
	e := newManualEngine(t)

	// decimals() is not in the token ABI, but the canned table answers.
	sel := crypto.Keccak256([]byte("decimals()"))[:4]
	out, err := e.Call(tokenAddr, sel)
	if err != nil {
		t.Fatalf("Call decimals: %v", err)
	}
	if len(out) != 32 || out[31] != 18 {
		t.Errorf("decimals = %x, want uint8 18", out)
	}

	// symbol() likewise.
	sel = crypto.Keccak256([]byte("symbol()"))[:4]
	out, err = e.Call(tokenAddr, sel)
	if err != nil {
		t.Fatalf("Call symbol: %v", err)
	}
	if len(out) == 0 {
		t.Error("symbol fallback returned empty")
	}
}

func TestEventEmission(t *testing.T) {
	e := newInstantEngine(t)
	amount := big.NewInt(12345)
	hash, err := e.SendTransaction(sender, tokenAddr, calldata(t, e, "transfer", recipient, amount), nil)
	if err != nil {
		t.Fatalf("SendTransaction: %v", err)
	}
	rcpt := e.GetTransactionReceipt(hash)
	if len(rcpt.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(rcpt.Logs))
	}
	lg := rcpt.Logs[0]
	if lg.Address != tokenAddr {
		t.Errorf("log address = %s", lg.Address)
	}
	if lg.Topics[0] != transferTopic {
		t.Errorf("topic0 = %s, want Transfer signature", lg.Topics[0])
	}
	if lg.Topics[1] != common.BytesToHash(sender.Bytes()) {
		t.Errorf("topic1 = %s, want padded sender", lg.Topics[1])
	}
	if lg.Topics[2] != common.BytesToHash(recipient.Bytes()) {
		t.Errorf("topic2 = %s, want padded recipient", lg.Topics[2])
	}
	if lg.BlockNumber != rcpt.BlockNumber || lg.TxHash != hash {
		t.Error("log linkage fields wrong")
	}
}

func TestLogIndicesSequentialAcrossBlock(t *testing.T) {
	e := newManualEngine(t)
	e.SendTransaction(sender, tokenAddr, calldata(t, e, "transfer", recipient, big.NewInt(1)), nil)
	e.SendTransaction(sender, tokenAddr, calldata(t, e, "transfer", recipient, big.NewInt(2)), nil)
	b := e.MineBlock()

	var indices []uint
	for _, rcpt := range b.Receipts {
		for _, lg := range rcpt.Logs {
			indices = append(indices, lg.Index)
		}
	}
	if len(indices) != 2 || indices[0] != 0 || indices[1] != 1 {
		t.Errorf("log indices = %v, want [0 1]", indices)
	}
}

func TestGetLogsFiltering(t *testing.T) {
	e := newManualEngine(t)

	// Block 1: transfer on token 1. Block 2: transfer on token 2.
	e.SendTransaction(sender, tokenAddr, calldata(t, e, "transfer", recipient, big.NewInt(1)), nil)
	e.MineBlock()
	e.SendTransaction(sender, token2Addr, calldata(t, e, "transfer", recipient, big.NewInt(2)), nil)
	e.MineBlock()

	logs := e.GetLogs(FilterQuery{FromBlock: 1, ToBlock: 1, Address: &tokenAddr})
	if len(logs) != 1 || logs[0].Address != tokenAddr {
		t.Fatalf("address+range filter returned %d logs", len(logs))
	}

	logs = e.GetLogs(FilterQuery{FromBlock: 1, ToBlock: 2})
	if len(logs) != 2 {
		t.Fatalf("range filter returned %d logs, want 2", len(logs))
	}

	// Topic filter: padded sender at position 1.
	senderTopic := common.BytesToHash(sender.Bytes())
	logs = e.GetLogs(FilterQuery{FromBlock: 1, ToBlock: 2, Topics: []*common.Hash{nil, &senderTopic}})
	if len(logs) != 2 {
		t.Fatalf("topic filter returned %d logs, want 2", len(logs))
	}

	// Absent topic value matches nothing.
	missing := common.HexToHash("0x01")
	logs = e.GetLogs(FilterQuery{FromBlock: 1, ToBlock: 2, Topics: []*common.Hash{&missing}})
	if len(logs) != 0 {
		t.Fatalf("absent topic returned %d logs, want 0", len(logs))
	}
}

func TestPendingBlock(t *testing.T) {
	e := newManualEngine(t)
	e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(1)), nil)

	pb := e.PendingBlock()
	if pb.Number != 1 {
		t.Errorf("pending number = %d, want 1", pb.Number)
	}
	if len(pb.Transactions) != 1 {
		t.Errorf("pending txs = %d, want 1", len(pb.Transactions))
	}
	// The virtual block is never persisted.
	if _, ok := e.GetBlockByNumber(1); ok {
		t.Error("pending block leaked into the ledger")
	}
	if e.BlockNumber() != 0 {
		t.Errorf("block number = %d, want 0", e.BlockNumber())
	}
}

func TestIntervalMiningLoop(t *testing.T) {
	e := NewEngine(Config{BlockPeriod: 10 * time.Millisecond}, newTestRegistry(t), nil)
	if err := e.StartMining(); err != nil {
		t.Fatalf("StartMining: %v", err)
	}
	defer e.StopMining()

	if err := e.StartMining(); !errors.Is(err, ErrMiningActive) {
		t.Errorf("second StartMining = %v, want ErrMiningActive", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for e.BlockNumber() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("no block mined within deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}

	e.StopMining()
	e.StopMining() // idempotent
}

func TestIsMining_TracksIntervalLoop(t *testing.T) {
	// Instant mode has no mining loop to report.
	if newInstantEngine(t).IsMining() {
		t.Error("instant engine reports mining")
	}

	e := newManualEngine(t)
	if e.IsMining() {
		t.Error("mining reported before StartMining")
	}
	if err := e.StartMining(); err != nil {
		t.Fatalf("StartMining: %v", err)
	}
	if !e.IsMining() {
		t.Error("mining not reported while loop runs")
	}
	e.StopMining()
	if e.IsMining() {
		t.Error("mining reported after StopMining")
	}
}

func TestOnBlockMinedCallback(t *testing.T) {
	e := newInstantEngine(t)
	var seen []uint64
	e.SetOnBlockMined(func(b *Block) { seen = append(seen, b.Number) })

	e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(1)), nil)
	if len(seen) != 1 || seen[0] != 1 {
		t.Errorf("callback saw %v, want [1]", seen)
	}
}

func TestHotReloadPreservesChain(t *testing.T) {
	e := newInstantEngine(t)
	e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(42)), nil)
	heightBefore := e.BlockNumber()

	// Reload the same contracts: state clears, ledger survives.
	entry, _ := e.Registry().Lookup(tokenAddr)
	e.ReplaceContracts([]registry.Entry{*entry})

	if e.BlockNumber() != heightBefore {
		t.Errorf("block height changed on reload: %d -> %d", heightBefore, e.BlockNumber())
	}
	out, err := e.Call(tokenAddr, calldata(t, e, "value"))
	if err != nil {
		t.Fatalf("Call: %v", err)
	}
	if got := unpackOutputs(t, e, "value", out)[0].(*big.Int); got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("value() after reload = %v, want default 1", got)
	}
}

func TestSetterEmitsConventionEvent(t *testing.T) {
	// setValue(v) matches ValueUpdated via the setter-base heuristic.
	e := newInstantEngine(t)
	hash, _ := e.SendTransaction(sender, tokenAddr, calldata(t, e, "setValue", big.NewInt(42)), nil)
	rcpt := e.GetTransactionReceipt(hash)
	if len(rcpt.Logs) != 1 {
		t.Fatalf("logs = %d, want 1", len(rcpt.Logs))
	}
	entry, _ := e.Registry().Lookup(tokenAddr)
	if rcpt.Logs[0].Topics[0] != entry.ABI.Events["ValueUpdated"].ID {
		t.Errorf("topic0 = %s, want ValueUpdated signature", rcpt.Logs[0].Topics[0])
	}
}
