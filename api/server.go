// Package api exposes the conversation engine over HTTP: a synchronous
// JSON chat endpoint, an SSE streaming variant, and health probes.
//
// Authentication is out of scope here; the permitted-file set on each
// request is expected to be stamped by an upstream auth layer.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/briefing/internal/chain"
	"github.com/koopa0/briefing/internal/graph"
	"github.com/koopa0/briefing/internal/log"
)

// Runner executes one conversation request. *graph.Graph satisfies it; tests
// substitute their own.
type Runner interface {
	Run(ctx context.Context, q chain.Query, opts ...graph.RunOption) (chain.State, error)
}

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      log.Logger
	Runner      Runner         // Required
	Settings    chain.Settings // Per-request engine settings
	Pool        *pgxpool.Pool  // Optional: nil disables the DB check in /ready
	CORSOrigins []string
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates an API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Runner == nil {
		return nil, errors.New("runner is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	ch := &chatHandler{
		runner:   cfg.Runner,
		settings: cfg.Settings,
		logger:   logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v1/chat", ch.send)
	mux.HandleFunc("POST /api/v1/chat/stream", ch.stream)

	// Middleware stack, outermost first:
	//   Recovery -> RequestID -> Logging -> CORS -> Routes
	var handler http.Handler = mux
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
