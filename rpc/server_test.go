package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

func postJSON(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", bytes.NewReader([]byte(body)))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	return resp
}

func TestServer_SingleRequest(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(NewServer(api).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL, `{"jsonrpc":"2.0","method":"eth_chainId","id":1}`)
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Fatalf("want json content type, got %s", ct)
	}
	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != nil {
		t.Fatalf("unexpected error: %s", out.Error.Message)
	}
	if out.Result != "0x7a69" {
		t.Fatalf("want chain id 0x7a69, got %v", out.Result)
	}
}

func TestServer_BatchRequest(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(NewServer(api).Handler())
	defer srv.Close()

	body := `[
		{"jsonrpc":"2.0","method":"eth_chainId","id":1},
		{"jsonrpc":"2.0","method":"eth_blockNumber","id":2}
	]`
	resp := postJSON(t, srv.URL, body)
	defer resp.Body.Close()

	var out []Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("want 2 responses, got %d", len(out))
	}
	if string(out[0].ID) != "1" || string(out[1].ID) != "2" {
		t.Fatalf("ids not propagated: %s, %s", out[0].ID, out[1].ID)
	}
	if out[1].Result != "0x0" {
		t.Fatalf("want block number 0x0, got %v", out[1].Result)
	}
}

func TestServer_RejectsNonPost(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(NewServer(api).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("want 405, got %d", resp.StatusCode)
	}
}

func TestServer_InvalidJSON(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(NewServer(api).Handler())
	defer srv.Close()

	resp := postJSON(t, srv.URL, `{"jsonrpc":`)
	defer resp.Body.Close()

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error == nil || out.Error.Code != ErrCodeParse {
		t.Fatalf("want parse error, got %+v", out.Error)
	}
}

func TestServer_CORSHeaders(t *testing.T) {
	api, _ := newTestAPI(t)
	srv := httptest.NewServer(NewServer(api).Handler())
	defer srv.Close()

	req, _ := http.NewRequest(http.MethodOptions, srv.URL, nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("want wildcard allow-origin, got %q", got)
	}
}

func TestProxy_ForwardsUnregisteredReads(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("upstream decode: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		switch req.Method {
		case "eth_getCode":
			w.Write([]byte(`{"jsonrpc":"2.0","result":"0xdeadbeef","id":1}`))
		default:
			w.Write([]byte(`{"jsonrpc":"2.0","error":{"code":-32601,"message":"nope"},"id":1}`))
		}
	}))
	defer upstream.Close()

	api, _ := newTestAPI(t)
	api.SetProxy(NewProxy(upstream.URL, nil))

	// Unregistered address goes upstream.
	resp := callRPC(t, api, "eth_getCode", strayAddr, "latest")
	var code string
	decodeResult(t, resp, &code)
	if code != "0xdeadbeef" {
		t.Fatalf("want upstream code, got %s", code)
	}

	// Registered address is answered locally.
	resp = callRPC(t, api, "eth_getCode", tokenAddr, "latest")
	decodeResult(t, resp, &code)
	if code != fixedCode {
		t.Fatalf("want local marker code, got %s", code)
	}

	// Upstream errors surface with their original code.
	resp = callRPC(t, api, "eth_call", map[string]interface{}{
		"to":   strayAddr,
		"data": hexutil.Bytes{0x01, 0x02, 0x03, 0x04},
	}, "latest")
	if resp.Error == nil || resp.Error.Code != -32601 {
		t.Fatalf("want upstream error surfaced, got %+v", resp.Error)
	}
}
