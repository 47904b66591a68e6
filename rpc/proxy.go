package rpc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethmock/ethmock/log"
)

// Proxy forwards individual JSON-RPC requests to an upstream node. It is
// used to answer reads against contract addresses the local registry does
// not know, so a mock can sit in front of a real network.
type Proxy struct {
	url    string
	client *http.Client
	logger *log.Logger
}

// NewProxy creates a forwarder for the given upstream HTTP endpoint.
func NewProxy(url string, logger *log.Logger) *Proxy {
	if logger == nil {
		logger = log.Default()
	}
	return &Proxy{
		url:    url,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger.Module("proxy"),
	}
}

// URL returns the upstream endpoint.
func (p *Proxy) URL() string {
	return p.url
}

// Forward sends the request upstream and returns the upstream result. An
// upstream error response is surfaced unchanged so the caller sees the same
// code and message a direct client would.
func (p *Proxy) Forward(req *Request) (json.RawMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal proxy request: %w", err)
	}
	p.logger.Debug("forwarding upstream", "method", req.Method, "url", p.url)

	resp, err := p.client.Post(p.url, "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Result json.RawMessage `json:"result"`
		Error  *RPCError       `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode upstream response: %w", err)
	}
	if parsed.Error != nil {
		return nil, parsed.Error
	}
	return parsed.Result, nil
}
