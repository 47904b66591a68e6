package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/ethmock/ethmock/chain"
	"github.com/ethmock/ethmock/log"
)

// ClientVersion is reported by web3_clientVersion.
const ClientVersion = "ethmock/v0.1.0"

// EthAPI implements the eth_, net_ and web3_ method namespaces on top of a
// Backend. When a proxy is configured, address-scoped reads against
// contracts the registry does not know are forwarded upstream instead of
// failing.
type EthAPI struct {
	backend Backend
	proxy   *Proxy
	logger  *log.Logger
}

// NewEthAPI creates the RPC method handler for the given backend.
func NewEthAPI(backend Backend, logger *log.Logger) *EthAPI {
	if logger == nil {
		logger = log.Default()
	}
	return &EthAPI{backend: backend, logger: logger.Module("rpc")}
}

// SetProxy installs an upstream forwarder for reads on unregistered
// addresses. A nil proxy disables forwarding.
func (api *EthAPI) SetProxy(p *Proxy) {
	api.proxy = p
}

// CallArgs are the eth_call / eth_sendTransaction transaction arguments.
// Input takes precedence over the legacy Data field when both are set.
type CallArgs struct {
	From  *common.Address `json:"from"`
	To    *common.Address `json:"to"`
	Gas   *hexutil.Uint64 `json:"gas"`
	Value *hexutil.Big    `json:"value"`
	Data  *hexutil.Bytes  `json:"data"`
	Input *hexutil.Bytes  `json:"input"`
}

func (args *CallArgs) data() []byte {
	if args.Input != nil {
		return *args.Input
	}
	if args.Data != nil {
		return *args.Data
	}
	return nil
}

func (args *CallArgs) from() common.Address {
	if args.From != nil {
		return *args.From
	}
	return common.Address{}
}

func (args *CallArgs) value() *big.Int {
	if args.Value != nil {
		return (*big.Int)(args.Value)
	}
	return new(big.Int)
}

// filterArgs is the eth_getLogs filter object.
type filterArgs struct {
	FromBlock *BlockNumber    `json:"fromBlock"`
	ToBlock   *BlockNumber    `json:"toBlock"`
	Address   *common.Address `json:"address"`
	Topics    []*common.Hash  `json:"topics"`
	BlockHash *common.Hash    `json:"blockHash"`
}

// HandleRequest dispatches a single JSON-RPC request and always returns a
// response, mapping handler failures onto the conventional error codes.
func (api *EthAPI) HandleRequest(req *Request) *Response {
	if req.Method == "" {
		return errorResponse(req.ID, ErrCodeInvalidRequest, "missing method")
	}
	api.logger.Debug("rpc request", "method", req.Method)

	result, err := api.dispatch(req)
	if err != nil {
		return api.errorFor(req.ID, err)
	}
	return successResponse(req.ID, result)
}

func (api *EthAPI) dispatch(req *Request) (interface{}, error) {
	switch req.Method {
	case "eth_chainId":
		return (*hexutil.Big)(api.backend.ChainID()), nil
	case "eth_blockNumber":
		return hexutil.Uint64(api.backend.BlockNumber()), nil
	case "eth_call":
		return api.ethCall(req)
	case "eth_sendTransaction":
		return api.ethSendTransaction(req)
	case "eth_sendRawTransaction":
		return api.ethSendRawTransaction(req)
	case "eth_getTransactionReceipt":
		return api.ethGetTransactionReceipt(req)
	case "eth_getTransactionByHash":
		return api.ethGetTransactionByHash(req)
	case "eth_getBlockByNumber":
		return api.ethGetBlockByNumber(req)
	case "eth_getBlockByHash":
		return api.ethGetBlockByHash(req)
	case "eth_getLogs":
		return api.ethGetLogs(req)
	case "eth_getBalance":
		return api.ethGetBalance(req)
	case "eth_getCode":
		return api.ethGetCode(req)
	case "eth_getTransactionCount":
		return api.ethGetTransactionCount(req)
	case "eth_gasPrice":
		return (*hexutil.Big)(fixedGasPrice), nil
	case "eth_estimateGas":
		return hexutil.Uint64(chain.TxGas), nil
	case "eth_accounts":
		return []common.Address{}, nil
	case "eth_syncing":
		return false, nil
	case "eth_mining":
		return api.backend.IsMining(), nil
	case "net_version":
		return api.backend.ChainID().String(), nil
	case "net_listening":
		return true, nil
	case "web3_clientVersion":
		return ClientVersion, nil
	default:
		return nil, &RPCError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("the method %s does not exist/is not available", req.Method)}
	}
}

// errorFor translates engine errors into JSON-RPC error responses. Reverts
// carry the ABI-encoded revert payload in the data field so tooling can
// decode the reason string.
func (api *EthAPI) errorFor(id json.RawMessage, err error) *Response {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return &Response{JSONRPC: "2.0", Error: rpcErr, ID: id}
	}
	var revert *chain.RevertError
	if errors.As(err, &revert) {
		return errorResponseData(id, ErrCodeReverted, "execution reverted: "+revert.Reason, revert.EncodedData())
	}
	if errors.Is(err, chain.ErrUnknownContract) {
		return errorResponse(id, ErrCodeServer, err.Error())
	}
	return errorResponse(id, ErrCodeInternal, err.Error())
}

func invalidParams(format string, args ...interface{}) *RPCError {
	return &RPCError{Code: ErrCodeInvalidParams, Message: fmt.Sprintf(format, args...)}
}

// param decodes the positional parameter at index i into out.
func param(req *Request, i int, out interface{}) error {
	if i >= len(req.Params) {
		return invalidParams("missing required argument %d", i)
	}
	if err := json.Unmarshal(req.Params[i], out); err != nil {
		return invalidParams("invalid argument %d: %v", i, err)
	}
	return nil
}

// optionalParam decodes the parameter at index i if present, reporting
// whether it was.
func optionalParam(req *Request, i int, out interface{}) (bool, error) {
	if i >= len(req.Params) || len(req.Params[i]) == 0 {
		return false, nil
	}
	if string(req.Params[i]) == "null" {
		return false, nil
	}
	if err := json.Unmarshal(req.Params[i], out); err != nil {
		return false, invalidParams("invalid argument %d: %v", i, err)
	}
	return true, nil
}

func (api *EthAPI) ethCall(req *Request) (interface{}, error) {
	var args CallArgs
	if err := param(req, 0, &args); err != nil {
		return nil, err
	}
	if args.To == nil {
		return nil, invalidParams("missing to address")
	}
	if api.forwardable(*args.To) {
		return api.proxy.Forward(req)
	}
	out, err := api.backend.Call(*args.To, args.data())
	if err != nil {
		return nil, err
	}
	return hexutil.Bytes(out), nil
}

func (api *EthAPI) ethSendTransaction(req *Request) (interface{}, error) {
	var args CallArgs
	if err := param(req, 0, &args); err != nil {
		return nil, err
	}
	if args.To == nil {
		return nil, invalidParams("missing to address")
	}
	hash, err := api.backend.SendTransaction(args.from(), *args.To, args.data(), args.value())
	if err != nil {
		return nil, err
	}
	return hash, nil
}

func (api *EthAPI) ethSendRawTransaction(req *Request) (interface{}, error) {
	var raw hexutil.Bytes
	if err := param(req, 0, &raw); err != nil {
		return nil, err
	}
	tx := new(types.Transaction)
	if err := tx.UnmarshalBinary(raw); err != nil {
		return nil, invalidParams("invalid raw transaction: %v", err)
	}
	if tx.To() == nil {
		return nil, invalidParams("contract creation transactions are not supported")
	}
	from, err := types.Sender(types.LatestSignerForChainID(api.backend.ChainID()), tx)
	if err != nil {
		return nil, invalidParams("invalid transaction signature: %v", err)
	}
	hash, err := api.backend.SendTransaction(from, *tx.To(), tx.Data(), tx.Value())
	if err != nil {
		return nil, err
	}
	return hash, nil
}

func (api *EthAPI) ethGetTransactionReceipt(req *Request) (interface{}, error) {
	var hash common.Hash
	if err := param(req, 0, &hash); err != nil {
		return nil, err
	}
	rcpt := api.backend.GetTransactionReceipt(hash)
	if rcpt == nil {
		return nil, nil
	}
	return newRPCReceipt(rcpt), nil
}

func (api *EthAPI) ethGetTransactionByHash(req *Request) (interface{}, error) {
	var hash common.Hash
	if err := param(req, 0, &hash); err != nil {
		return nil, err
	}
	tx, pending, ok := api.backend.GetTransaction(hash)
	if !ok {
		return nil, nil
	}
	if pending {
		return newRPCTransaction(tx, nil), nil
	}
	return newRPCTransaction(tx, api.backend.GetTransactionReceipt(hash)), nil
}

func (api *EthAPI) ethGetBlockByNumber(req *Request) (interface{}, error) {
	var tag BlockNumber
	if err := param(req, 0, &tag); err != nil {
		return nil, err
	}
	fullTx := false
	if _, err := optionalParam(req, 1, &fullTx); err != nil {
		return nil, err
	}
	block := api.blockForTag(tag)
	if block == nil {
		return nil, nil
	}
	return newRPCBlock(block, fullTx), nil
}

func (api *EthAPI) ethGetBlockByHash(req *Request) (interface{}, error) {
	var hash common.Hash
	if err := param(req, 0, &hash); err != nil {
		return nil, err
	}
	fullTx := false
	if _, err := optionalParam(req, 1, &fullTx); err != nil {
		return nil, err
	}
	block, ok := api.backend.GetBlockByHash(hash)
	if !ok {
		return nil, nil
	}
	return newRPCBlock(block, fullTx), nil
}

func (api *EthAPI) blockForTag(tag BlockNumber) *chain.Block {
	switch tag {
	case LatestBlockNumber:
		return api.backend.LatestBlock()
	case PendingBlockNumber:
		return api.backend.PendingBlock()
	default:
		if tag < 0 {
			return nil
		}
		block, ok := api.backend.GetBlockByNumber(uint64(tag))
		if !ok {
			return nil
		}
		return block
	}
}

func (api *EthAPI) ethGetLogs(req *Request) (interface{}, error) {
	var args filterArgs
	if err := param(req, 0, &args); err != nil {
		return nil, err
	}
	query := chain.FilterQuery{
		FromBlock: 0,
		ToBlock:   api.backend.BlockNumber(),
		Address:   args.Address,
		Topics:    args.Topics,
	}
	if args.BlockHash != nil {
		block, ok := api.backend.GetBlockByHash(*args.BlockHash)
		if !ok {
			return nil, invalidParams("unknown block hash %s", args.BlockHash)
		}
		query.FromBlock, query.ToBlock = block.Number, block.Number
	} else {
		if args.FromBlock != nil {
			query.FromBlock = api.resolveBlockNumber(*args.FromBlock)
		}
		if args.ToBlock != nil {
			query.ToBlock = api.resolveBlockNumber(*args.ToBlock)
		}
	}
	logs := api.backend.GetLogs(query)
	if logs == nil {
		logs = []*types.Log{}
	}
	return logs, nil
}

// resolveBlockNumber maps block tags onto concrete heights. Pending maps to
// latest since pending transactions have no logs yet.
func (api *EthAPI) resolveBlockNumber(tag BlockNumber) uint64 {
	if tag < 0 {
		return api.backend.BlockNumber()
	}
	return uint64(tag)
}

func (api *EthAPI) ethGetBalance(req *Request) (interface{}, error) {
	var addr common.Address
	if err := param(req, 0, &addr); err != nil {
		return nil, err
	}
	if api.forwardable(addr) {
		return api.proxy.Forward(req)
	}
	return (*hexutil.Big)(fixedBalance), nil
}

func (api *EthAPI) ethGetCode(req *Request) (interface{}, error) {
	var addr common.Address
	if err := param(req, 0, &addr); err != nil {
		return nil, err
	}
	if _, ok := api.backend.Registry().Lookup(addr); ok {
		return fixedCode, nil
	}
	if api.proxy != nil {
		return api.proxy.Forward(req)
	}
	return "0x", nil
}

func (api *EthAPI) ethGetTransactionCount(req *Request) (interface{}, error) {
	var addr common.Address
	if err := param(req, 0, &addr); err != nil {
		return nil, err
	}
	if api.forwardable(addr) {
		return api.proxy.Forward(req)
	}
	return hexutil.Uint64(api.backend.NextNonce()), nil
}

// forwardable reports whether a request scoped to addr should go upstream
// instead of being answered locally.
func (api *EthAPI) forwardable(addr common.Address) bool {
	if api.proxy == nil {
		return false
	}
	_, registered := api.backend.Registry().Lookup(addr)
	return !registered
}
