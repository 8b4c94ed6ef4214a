// Package lsp serves open documents over stdio JSON-RPC: text sync with
// incremental reparse, published diagnostics, folding ranges and per-cycle
// metrics.
package lsp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"perlsense/internal/cancel"
	"perlsense/internal/document"
	"perlsense/internal/logging"
	"perlsense/internal/lspedit"
	"perlsense/internal/version"
)

var (
	// ErrExit signals a graceful shutdown after receiving "exit".
	ErrExit = errors.New("lsp exit")
	// ErrExitWithoutShutdown signals an "exit" without a preceding "shutdown".
	ErrExitWithoutShutdown = errors.New("lsp exit without shutdown")
)

// MethodStats is the custom request returning the last cycle's metrics.
const MethodStats = "perlsense/stats"

const defaultDebounce = 150 * time.Millisecond

type ServerOptions struct {
	Store *document.Store
	// Debounce delays the reparse after a change; 0 means the default.
	Debounce       time.Duration
	MaxDiagnostics int // 0 publishes all
}

// Server handles one client. Edits are recorded on the read loop; reparses
// run on debounce timers and a newer change cancels the cycle in flight.
type Server struct {
	in    *bufio.Reader
	out   *writer
	store *document.Store

	mu                sync.Mutex
	timers            map[string]*time.Timer
	shutdownRequested bool

	debounce       time.Duration
	maxDiagnostics int
	baseCtx        context.Context
	log            *log.Logger
}

func NewServer(in io.Reader, out io.Writer, opts ServerOptions) *Server {
	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	store := opts.Store
	if store == nil {
		store = document.NewStore(document.Options{})
	}
	return &Server{
		in:             bufio.NewReader(in),
		out:            &writer{out: bufio.NewWriter(out)},
		store:          store,
		timers:         make(map[string]*time.Timer),
		debounce:       debounce,
		maxDiagnostics: opts.MaxDiagnostics,
		baseCtx:        context.Background(),
		log:            logging.Default(),
	}
}

// Run serves requests until exit or EOF. Pending reparses are stopped on
// return.
func (s *Server) Run(ctx context.Context) error {
	s.baseCtx = ctx
	s.log = logging.FromContext(ctx).WithPrefix("lsp")
	defer s.stopTimers()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		payload, err := readMessage(s.in)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var msg rpcMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			s.log.Warn("failed to parse message", logging.FieldError, err)
			continue
		}
		if msg.Method == "" {
			continue // ответ клиента на наш запрос
		}
		if err := s.handleMessage(&msg); err != nil {
			return err
		}
	}
}

func (s *Server) handleMessage(msg *rpcMessage) error {
	s.mu.Lock()
	down := s.shutdownRequested
	s.mu.Unlock()
	if down && msg.Method != "exit" {
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeInvalidRequest, "server is shutting down")
		}
		return nil
	}

	switch msg.Method {
	case "initialize":
		return s.handleInitialize(msg)
	case "initialized", "$/cancelRequest", "$/setTrace":
		return nil
	case "shutdown":
		return s.handleShutdown(msg)
	case "exit":
		if down {
			return ErrExit
		}
		return ErrExitWithoutShutdown
	case "textDocument/didOpen":
		return s.handleDidOpen(msg)
	case "textDocument/didChange":
		return s.handleDidChange(msg)
	case "textDocument/didClose":
		return s.handleDidClose(msg)
	case "textDocument/foldingRange":
		return s.handleFoldingRange(msg)
	case MethodStats:
		return s.handleStats(msg)
	default:
		if len(msg.ID) > 0 {
			return s.sendError(msg.ID, codeMethodNotFound, "method not found")
		}
		return nil
	}
}

func (s *Server) handleInitialize(msg *rpcMessage) error {
	var params initializeParams
	if len(msg.Params) > 0 {
		if err := json.Unmarshal(msg.Params, &params); err != nil {
			return s.sendError(msg.ID, codeInvalidParams, "invalid params")
		}
	}
	if params.ClientInfo != nil {
		s.log.Info("client connected", "client", params.ClientInfo.Name, "version", params.ClientInfo.Version)
	}
	openClose := true
	change := protocol.TextDocumentSyncKindIncremental
	v := version.Version
	return s.sendResponse(msg.ID, protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: protocol.TextDocumentSyncOptions{
				OpenClose: &openClose,
				Change:    &change,
			},
			FoldingRangeProvider: true,
		},
		ServerInfo: &protocol.InitializeResultServerInfo{Name: "perlsense", Version: &v},
	})
}

func (s *Server) handleShutdown(msg *rpcMessage) error {
	s.mu.Lock()
	s.shutdownRequested = true
	s.mu.Unlock()
	s.stopTimers()
	for _, uri := range s.store.URIs() {
		s.store.Cancel(uri)
	}
	return s.sendResponse(msg.ID, nil)
}

func (s *Server) handleDidOpen(msg *rpcMessage) error {
	var params protocol.DidOpenTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	if uri == "" {
		return nil
	}
	s.stopTimer(uri)
	doc, err := s.store.Open(s.baseCtx, uri, []byte(params.TextDocument.Text))
	if err != nil {
		s.log.Error("open failed", logging.FieldURI, uri, logging.FieldError, err)
		return nil
	}
	doc.SetVersion(params.TextDocument.Version)
	return s.publish(doc)
}

// handleDidChange records the changes right away, so later notifications
// see the new text, and leaves the reparse to the debounce timer.
func (s *Server) handleDidChange(msg *rpcMessage) error {
	var params protocol.DidChangeTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	doc, ok := s.store.Get(uri)
	if !ok {
		s.log.Warn("change for a document that is not open", logging.FieldURI, uri)
		return nil
	}
	if err := lspedit.Apply(doc, params.ContentChanges); err != nil {
		// рассинхронизация с клиентом: берём текст заново при следующем didOpen
		s.log.Error("rejected change", logging.FieldURI, uri, logging.FieldError, err)
		return nil
	}
	doc.SetVersion(params.TextDocument.Version)
	s.store.Cancel(uri)
	s.schedule(uri)
	return nil
}

func (s *Server) handleDidClose(msg *rpcMessage) error {
	var params protocol.DidCloseTextDocumentParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return err
	}
	uri := params.TextDocument.URI
	s.stopTimer(uri)
	if !s.store.Close(s.baseCtx, uri) {
		return nil
	}
	return s.sendNotification("textDocument/publishDiagnostics", protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
}

func (s *Server) handleStats(msg *rpcMessage) error {
	var params statsParams
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		return s.sendError(msg.ID, codeInvalidParams, "invalid params")
	}
	doc, ok := s.store.Get(params.TextDocument.URI)
	if !ok {
		return s.sendError(msg.ID, codeInvalidParams, "document not open")
	}
	return s.sendResponse(msg.ID, doc.LastStats().Metrics())
}

func (s *Server) schedule(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
	}
	s.timers[uri] = time.AfterFunc(s.debounce, func() { s.reparse(uri) })
}

func (s *Server) stopTimer(uri string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[uri]; ok {
		t.Stop()
		delete(s.timers, uri)
	}
}

func (s *Server) stopTimers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for uri, t := range s.timers {
		t.Stop()
		delete(s.timers, uri)
	}
}

// reparse runs one cycle and publishes its diagnostics. A cancelled cycle
// publishes nothing: the change that cancelled it has scheduled another.
func (s *Server) reparse(uri string) {
	_, err := s.store.Reparse(s.baseCtx, uri)
	switch {
	case errors.Is(err, cancel.ErrCancelled), errors.Is(err, document.ErrNotOpen), errors.Is(err, document.ErrClosed):
		return
	case err != nil:
		s.log.Error("reparse failed", logging.FieldURI, uri, logging.FieldError, err)
		return
	}
	doc, ok := s.store.Get(uri)
	if !ok {
		return
	}
	if err := s.publish(doc); err != nil {
		s.log.Error("publish failed", logging.FieldURI, uri, logging.FieldError, err)
	}
}

func (s *Server) publish(doc *document.Document) error {
	params := protocol.PublishDiagnosticsParams{
		URI:         doc.URI(),
		Diagnostics: lspedit.Diagnostics(doc.URI(), doc.CurrentTree(), s.maxDiagnostics),
	}
	if v := doc.Version(); v >= 0 {
		uv := protocol.UInteger(v) // #nosec G115 -- v >= 0
		params.Version = &uv
	}
	return s.sendNotification("textDocument/publishDiagnostics", params)
}

func (s *Server) sendResponse(id json.RawMessage, result any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"result":  result,
	})
}

func (s *Server) sendError(id json.RawMessage, code int, message string) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"id":      id,
		"error":   rpcError{Code: code, Message: message},
	})
}

func (s *Server) sendNotification(method string, params any) error {
	return s.send(map[string]any{
		"jsonrpc": "2.0",
		"method":  method,
		"params":  params,
	})
}

func (s *Server) send(msg any) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return s.out.write(payload)
}
