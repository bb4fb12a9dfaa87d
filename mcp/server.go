// Package mcp serves the tool catalog over JSON-RPC 2.0 on newline-delimited
// stdio, the MCP stdio transport. The host may issue several tools/call
// requests before earlier ones finish, so every call runs in its own
// goroutine and responses serialize through a guarded encoder.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/naparnik-ai/copilot/core"
	"github.com/naparnik-ai/copilot/obs"
	"github.com/naparnik-ai/copilot/tools"
)

// Gateway is the remote-call seam the tool catalog depends on.
type Gateway interface {
	Ask(ctx context.Context, req core.AskRequest) (*core.Answer, error)
	Close() error
}

// GatewayFactory builds the gateway on first use. Construction is deferred
// so a server without a credential still answers initialize and tools/list;
// the configuration error surfaces per call and is retried on the next one.
type GatewayFactory func() (Gateway, error)

// Server hosts the tool catalog on a newline-delimited JSON-RPC transport.
type Server struct {
	name    string
	version string
	logger  *slog.Logger
	factory GatewayFactory

	toolsByName map[string]tools.Handle
	toolOrder   []tools.Handle

	gatewayMu sync.Mutex
	gateway   Gateway

	stateMu     sync.Mutex
	initialized bool
}

// ServerOption customizes server construction.
type ServerOption func(*Server)

// WithLogger attaches a structured logger. The server logs to stderr-bound
// handlers only; stdout belongs to the protocol.
func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version advertised during initialize.
func WithVersion(version string) ServerOption {
	return func(s *Server) { s.version = version }
}

// NewServer builds a server exposing the standard catalog backed by the
// gateway the factory produces.
func NewServer(factory GatewayFactory, opts ...ServerOption) *Server {
	s := &Server{
		name:    "onec-ai-1c-enterprise",
		version: "0.1.0",
		logger:  slog.Default(),
		factory: factory,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(slog.String("component", "mcp"))

	for _, handle := range Catalog(s.resolveGateway) {
		s.register(handle)
	}
	return s
}

func (s *Server) register(handle tools.Handle) {
	if s.toolsByName == nil {
		s.toolsByName = make(map[string]tools.Handle)
	}
	s.toolsByName[handle.Name()] = handle
	s.toolOrder = append(s.toolOrder, handle)
}

// resolveGateway returns the shared gateway, constructing it on first use.
// A failed construction is not sticky: the next call tries again.
func (s *Server) resolveGateway() (Gateway, error) {
	s.gatewayMu.Lock()
	defer s.gatewayMu.Unlock()
	if s.gateway != nil {
		return s.gateway, nil
	}
	gw, err := s.factory()
	if err != nil {
		return nil, err
	}
	s.gateway = gw
	return gw, nil
}

// Run processes requests from input until EOF or context cancellation,
// writing responses to output. In-flight tool calls are drained before Run
// returns; cancelling ctx cancels them.
func (s *Server) Run(ctx context.Context, input io.Reader, output io.Writer) error {
	scanner := bufio.NewScanner(input)
	// Tool arguments can carry whole code listings.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	writer := &lockedEncoder{enc: json.NewEncoder(output)}
	defer s.closeGateway()
	var inFlight sync.WaitGroup
	defer inFlight.Wait()

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req request
		if err := json.Unmarshal(line, &req); err != nil {
			if werr := writer.writeError(json.RawMessage("null"), codeParseError, "parse error: "+err.Error()); werr != nil {
				return fmt.Errorf("write parse error response: %w", werr)
			}
			continue
		}
		if req.JSONRPC != "2.0" {
			if !req.isNotification() {
				if werr := writer.writeError(req.ID, codeInvalidRequest, "unsupported JSON-RPC version"); werr != nil {
					return fmt.Errorf("write version error response: %w", werr)
				}
			}
			continue
		}
		if req.isNotification() {
			continue
		}

		if err := s.dispatch(ctx, writer, &req, &inFlight); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func (s *Server) dispatch(ctx context.Context, writer *lockedEncoder, req *request, inFlight *sync.WaitGroup) error {
	switch req.Method {
	case "initialize":
		return s.handleInitialize(writer, req)
	case "ping":
		return writer.writeResult(req.ID, map[string]any{})
	case "tools/list":
		if !s.isInitialized() {
			return writer.writeError(req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsList(writer, req)
	case "tools/call":
		if !s.isInitialized() {
			return writer.writeError(req.ID, codeInvalidRequest, "server not initialized (call initialize first)")
		}
		return s.handleToolsCall(ctx, writer, req, inFlight)
	default:
		return writer.writeError(req.ID, codeMethodNotFound, "unknown method: "+req.Method)
	}
}

func (s *Server) handleInitialize(writer *lockedEncoder, req *request) error {
	if len(req.Params) == 0 {
		return writer.writeError(req.ID, codeInvalidParams, "params required for initialize")
	}
	var params initializeParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writer.writeError(req.ID, codeInvalidParams, "invalid initialize params: "+err.Error())
	}

	s.stateMu.Lock()
	s.initialized = true
	s.stateMu.Unlock()

	s.logger.Info("client initialized",
		slog.String("client", params.ClientInfo.Name),
		slog.String("client_version", params.ClientInfo.Version),
		slog.String("requested_protocol", params.ProtocolVersion))

	return writer.writeResult(req.ID, initializeResult{
		ProtocolVersion: protocolVersion,
		Capabilities:    serverCapabilities{Tools: &toolCapability{}},
		ServerInfo:      serverInfo{Name: s.name, Version: s.version},
	})
}

func (s *Server) handleToolsList(writer *lockedEncoder, req *request) error {
	descriptions := make([]toolDescription, 0, len(s.toolOrder))
	for _, handle := range s.toolOrder {
		descriptions = append(descriptions, toolDescription{
			Name:        handle.Name(),
			Description: handle.Description(),
			InputSchema: handle.InputSchema(),
		})
	}
	return writer.writeResult(req.ID, toolsListResult{Tools: descriptions})
}

func (s *Server) handleToolsCall(ctx context.Context, writer *lockedEncoder, req *request, inFlight *sync.WaitGroup) error {
	if len(req.Params) == 0 {
		return writer.writeError(req.ID, codeInvalidParams, "params required for tools/call")
	}
	var params toolsCallParams
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return writer.writeError(req.ID, codeInvalidParams, "invalid tools/call params: "+err.Error())
	}

	handle, ok := s.toolsByName[params.Name]
	if !ok {
		return writer.writeResult(req.ID, textResult("Неизвестный инструмент: "+params.Name, true))
	}
	if err := handle.ValidateArgs(params.Arguments); err != nil {
		return writer.writeError(req.ID, codeInvalidParams,
			fmt.Sprintf("invalid arguments for %s: %v", params.Name, err))
	}

	callID := uuid.NewString()
	id := append(json.RawMessage(nil), req.ID...)
	args := append(json.RawMessage(nil), params.Arguments...)

	inFlight.Add(1)
	go func() {
		defer inFlight.Done()
		result := s.executeTool(ctx, handle, args, callID)
		if err := writer.writeResult(id, result); err != nil {
			s.logger.Error("write tools/call response",
				slog.String("tool", handle.Name()),
				slog.String("call_id", callID),
				slog.String("error", err.Error()))
		}
	}()
	return nil
}

func (s *Server) executeTool(ctx context.Context, handle tools.Handle, args json.RawMessage, callID string) (result toolsCallResult) {
	ctx, recorder := obs.StartRequest(ctx, "mcp.tools.call",
		attribute.String("mcp.tool", handle.Name()),
		attribute.String("mcp.call_id", callID),
	)

	out, err := handle.Execute(ctx, args, tools.Meta{CallID: callID})
	recorder.End(err)
	if err != nil {
		s.logger.Error("tool call failed",
			slog.String("tool", handle.Name()),
			slog.String("call_id", callID),
			slog.String("error", err.Error()))
		return textResult(userMessage(err), true)
	}
	return textResult(out, false)
}

// userMessage renders an error as the text shown to the host, matching the
// taxonomy: configuration problems carry a setup hint, remote failures pass
// the service message through verbatim, validation errors speak for
// themselves.
func userMessage(err error) string {
	var ae *core.AdapterError
	if !errors.As(err, &ae) {
		return "Произошла неожиданная ошибка: " + err.Error()
	}
	switch ae.Code {
	case core.ErrConfig:
		return fmt.Sprintf("Ошибка конфигурации: %s\nУстановите переменную окружения ONEC_AI_TOKEN", ae.Error())
	case core.ErrEmptyInput:
		return "Ошибка: " + ae.Message
	case core.ErrRemote, core.ErrTimeout, core.ErrCanceled:
		return "Ошибка при обращении к 1С.ai: " + ae.Error()
	default:
		return "Произошла неожиданная ошибка: " + ae.Error()
	}
}

func (s *Server) isInitialized() bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.initialized
}

func (s *Server) closeGateway() {
	s.gatewayMu.Lock()
	defer s.gatewayMu.Unlock()
	if s.gateway != nil {
		if err := s.gateway.Close(); err != nil {
			s.logger.Warn("close gateway", slog.String("error", err.Error()))
		}
		s.gateway = nil
	}
}

// lockedEncoder serializes concurrent response writes onto one stream.
type lockedEncoder struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func (w *lockedEncoder) writeResult(id json.RawMessage, result any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(response{JSONRPC: "2.0", ID: id, Result: result})
}

func (w *lockedEncoder) writeError(id json.RawMessage, code int, message string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.enc.Encode(response{JSONRPC: "2.0", ID: id, Error: &rpcError{Code: code, Message: message}})
}
