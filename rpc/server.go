package rpc

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/cors"

	"github.com/ethmock/ethmock/log"
)

// Server is a JSON-RPC HTTP server that dispatches requests to the EthAPI.
// Batch requests are answered as batches; CORS is wide open since the mock
// runs on developer machines and in CI.
type Server struct {
	api     *EthAPI
	handler http.Handler
}

// NewServer creates a new JSON-RPC server around the given API handler.
func NewServer(api *EthAPI) *Server {
	s := &Server{api: api}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleRPC)
	s.handler = cors.AllowAll().Handler(mux)
	return s
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, nil, ErrCodeParse, "failed to read request body")
		return
	}

	if isBatch(body) {
		var reqs []Request
		if err := json.Unmarshal(body, &reqs); err != nil {
			writeError(w, nil, ErrCodeParse, "invalid JSON")
			return
		}
		resps := make([]*Response, len(reqs))
		for i := range reqs {
			resps[i] = s.api.HandleRequest(&reqs[i])
		}
		writeJSON(w, resps)
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, nil, ErrCodeParse, "invalid JSON")
		return
	}
	writeJSON(w, s.api.HandleRequest(&req))
}

// isBatch reports whether the payload is a JSON array.
func isBatch(body []byte) bool {
	for _, c := range body {
		switch c {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return c == '['
	}
	return false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Default().Module("rpc").Error("failed to write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, id json.RawMessage, code int, message string) {
	writeJSON(w, &Response{
		JSONRPC: "2.0",
		Error:   &RPCError{Code: code, Message: message},
		ID:      id,
	})
}
