// Package rpc serves the git command surface as JSON over HTTP.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/jayteealao/gitsvc/internal/auth"
	"github.com/jayteealao/gitsvc/internal/errors"
	"github.com/jayteealao/gitsvc/internal/service"
)

const maxRequestBodySize = 1 << 20

// Executor runs a named command. *service.Service implements it.
type Executor interface {
	Execute(ctx context.Context, verb string, ws service.Workspace, raw json.RawMessage) (any, error)
}

var _ Executor = (*service.Service)(nil)

// ServerConfig holds configuration for creating a new Server.
type ServerConfig struct {
	Addr     string // TCP listen address, e.g. "127.0.0.1:7420"
	Root     string // workspace used when a request names none
	Executor Executor
	Logger   *slog.Logger
}

// Server is the HTTP front end of the command service.
type Server struct {
	addr       string
	handler    *Handler
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates a new RPC server.
func NewServer(config ServerConfig) (*Server, error) {
	if config.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler := NewHandler(config.Executor, config.Root, logger)
	return &Server{
		addr:    config.Addr,
		handler: handler,
		httpServer: &http.Server{
			Handler:           handler.Routes(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
		},
		logger: logger,
	}, nil
}

// Serve accepts connections on l until Shutdown is called.
func (s *Server) Serve(l net.Listener) error {
	s.logger.Info("rpc server listening", "addr", l.Addr().String())
	if err := s.httpServer.Serve(l); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(l)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// Handler decodes requests and encodes results and errors.
type Handler struct {
	exec   Executor
	root   string
	logger *slog.Logger
}

// NewHandler creates a handler. root is the default workspace.
func NewHandler(exec Executor, root string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{exec: exec, root: root, logger: logger}
}

// Routes returns the request multiplexer.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /rpc/git/{verb}", h.HandleCommand)
	mux.HandleFunc("GET /healthz", h.HandleHealth)
	return mux
}

// Response is the body of every command reply. Exactly one field is set.
type Response struct {
	Result json.RawMessage `json:"result,omitempty"`
	Error  *ErrorBody      `json:"error,omitempty"`
}

// ErrorBody describes a failed command.
type ErrorBody struct {
	Kind      errors.Kind     `json:"kind"`
	Message   string          `json:"message"`
	Challenge *auth.Challenge `json:"challenge,omitempty"`
}

// HandleHealth reports liveness.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleCommand runs the verb named in the path with the JSON body as
// arguments. A "workspace" member selects the repository.
func (h *Handler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	verb := r.PathValue("verb")
	start := time.Now()

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		if strings.Contains(err.Error(), "http: request body too large") {
			h.sendError(w, fmt.Errorf("%w: request body too large", errors.ErrInvalidArgument))
			return
		}
		h.sendError(w, fmt.Errorf("%w: invalid request body: %v", errors.ErrInvalidArgument, err))
		return
	}

	var envelope struct {
		Workspace string `json:"workspace"`
	}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &envelope); err != nil {
			h.sendError(w, fmt.Errorf("%w: request body must be a JSON object", errors.ErrInvalidArgument))
			return
		}
	}
	ws := envelope.Workspace
	if ws == "" {
		ws = h.root
	}

	result, err := h.exec.Execute(r.Context(), verb, service.Dir(ws), raw)
	h.logger.Debug("rpc command",
		"verb", verb,
		"workspace", ws,
		"duration", time.Since(start),
		"kind", errors.KindOf(err),
	)
	if err != nil {
		h.sendError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"result": result})
}

func (h *Handler) sendError(w http.ResponseWriter, err error) {
	body := &ErrorBody{Kind: errors.KindOf(err), Message: err.Error()}
	if c, ok := auth.AsChallenge(err); ok && body.Kind == errors.KindAuthRequired {
		body.Challenge = &c
	}
	h.writeJSON(w, StatusFor(body.Kind), map[string]any{"error": body})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

// StatusFor maps an error kind to an HTTP status code.
func StatusFor(kind errors.Kind) int {
	switch kind {
	case errors.KindValidation:
		return http.StatusBadRequest
	case errors.KindAuthRequired, errors.KindAuthCancelled, errors.KindAuthFailed:
		return http.StatusUnauthorized
	case errors.KindNotFound:
		return http.StatusNotFound
	case errors.KindRepositoryState:
		return http.StatusConflict
	case errors.KindRemoteTransport:
		return http.StatusBadGateway
	case errors.KindRemoteTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
