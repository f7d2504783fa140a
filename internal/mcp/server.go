// Package mcp implements the MCP protocol server for shell-parse-mcp.
package mcp

import (
	"log/slog"
	"sync"

	"github.com/mark3labs/mcp-go/server"

	"github.com/acolita/shell-parse-mcp/internal/config"
	"github.com/acolita/shell-parse-mcp/internal/session"
)

// Server wraps the MCP server implementation.
type Server struct {
	mcpServer      *server.MCPServer
	sessionManager *session.Manager

	mu     sync.RWMutex
	config *config.Config
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithSessionManager sets the session manager used by the Server (for testing).
func WithSessionManager(m *session.Manager) ServerOption {
	return func(s *Server) {
		s.sessionManager = m
	}
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	mcpServer := server.NewMCPServer(
		"shell-parse-mcp",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithLogging(),
	)

	s := &Server{
		mcpServer:      mcpServer,
		sessionManager: session.NewManager(cfg),
		config:         cfg,
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio transport.
func (s *Server) Run() error {
	slog.Info("starting MCP server on stdio transport")
	return server.ServeStdio(s.mcpServer)
}

// Shutdown closes all sessions.
func (s *Server) Shutdown() {
	if err := s.sessionManager.CloseAll(); err != nil {
		slog.Warn("closing sessions", slog.String("error", err.Error()))
	}
}

// UpdateConfig applies a new configuration at runtime. Existing sessions
// keep their limits; new sessions pick up the new ones.
func (s *Server) UpdateConfig(cfg *config.Config) {
	slog.Debug("applying config update")

	s.mu.Lock()
	s.config = cfg
	s.mu.Unlock()

	s.sessionManager.UpdateConfig(cfg)
}
