package lsp

import "encoding/json"

// JSON-RPC error codes used by the server.
const (
	codeInvalidParams  = -32602
	codeMethodNotFound = -32601
	codeInvalidRequest = -32600
)

type rpcMessage struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// initializeParams is the part of the initialize request the server reads;
// client capabilities are ignored.
type initializeParams struct {
	ClientInfo *struct {
		Name    string `json:"name"`
		Version string `json:"version,omitempty"`
	} `json:"clientInfo,omitempty"`
	RootURI *string `json:"rootUri"`
}

// statsParams asks for the last cycle of one document.
type statsParams struct {
	TextDocument struct {
		URI string `json:"uri"`
	} `json:"textDocument"`
}
