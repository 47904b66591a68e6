// Package rpc provides JSON-RPC 2.0 types and the Ethereum-compatible
// JSON-RPC surface (eth_, net_, web3_ namespaces) of the mock server.
package rpc

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// BlockNumber represents a block number parameter in JSON-RPC.
type BlockNumber int64

const (
	LatestBlockNumber   BlockNumber = -1
	PendingBlockNumber  BlockNumber = -2
	EarliestBlockNumber BlockNumber = 0
)

// UnmarshalJSON implements json.Unmarshaler for block number.
func (bn *BlockNumber) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		// Try as integer.
		var n int64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("invalid block number: %s", string(data))
		}
		*bn = BlockNumber(n)
		return nil
	}
	switch s {
	case "latest", "safe", "finalized":
		*bn = LatestBlockNumber
	case "pending":
		*bn = PendingBlockNumber
	case "earliest":
		*bn = EarliestBlockNumber
	default:
		// Parse hex string.
		n, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return fmt.Errorf("invalid block number: %s", s)
		}
		*bn = BlockNumber(n)
	}
	return nil
}

// Request is a JSON-RPC 2.0 request.
type Request struct {
	JSONRPC string            `json:"jsonrpc"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
	ID      json.RawMessage   `json:"id"`
}

// Response is a JSON-RPC 2.0 response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  interface{}     `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error.
type RPCError struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// Error implements the error interface.
func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// JSON-RPC error codes. ErrCodeReverted is the conventional code clients
// expect for "execution reverted"; ErrCodeServer covers engine failures
// like unknown contract addresses.
const (
	ErrCodeParse          = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
	ErrCodeReverted       = 3
)

func successResponse(id json.RawMessage, result interface{}) *Response {
	return &Response{JSONRPC: "2.0", Result: result, ID: id}
}

func errorResponse(id json.RawMessage, code int, message string) *Response {
	return &Response{JSONRPC: "2.0", Error: &RPCError{Code: code, Message: message}, ID: id}
}

func errorResponseData(id json.RawMessage, code int, message string, data interface{}) *Response {
	return &Response{JSONRPC: "2.0", Error: &RPCError{Code: code, Message: message, Data: data}, ID: id}
}
