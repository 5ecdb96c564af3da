// Package mcp exposes the query service as MCP tools over streamable HTTP.
package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/mcp/tools"
)

// Service is what the tools call. *orchestrator.Orchestrator satisfies it.
type Service interface {
	tools.QueryService
	tools.StatusReporter
}

// Server wraps the mcp-go MCPServer.
type Server struct {
	mcp    *server.MCPServer
	logger *zap.Logger
}

// NewServer creates a new MCP server instance with no tools.
func NewServer(name, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	mcpServer := server.NewMCPServer(
		name,
		version,
		server.WithToolCapabilities(true),
	)

	return &Server{
		mcp:    mcpServer,
		logger: logger.Named("mcp"),
	}
}

// NewQueryServer creates a server with the health, validate_sql and
// ask_database tools registered against svc.
func NewQueryServer(version string, svc Service, logger *zap.Logger) *Server {
	s := NewServer("sqlgate", version, logger)
	tools.RegisterHealthTool(s.mcp, version, svc)
	tools.RegisterQueryTools(s.mcp, svc, s.logger)
	return s
}

// MCP returns the underlying MCPServer for tool registration.
func (s *Server) MCP() *server.MCPServer {
	return s.mcp
}

// NewStreamableHTTPServer creates an HTTP transport server wrapping this MCP server.
// The HTTP mux handles routing to /mcp, so no endpoint path is configured here.
func (s *Server) NewStreamableHTTPServer() *server.StreamableHTTPServer {
	return server.NewStreamableHTTPServer(
		s.mcp,
		server.WithStateLess(true),
	)
}

// RegisterTool is a convenience wrapper for registering a tool.
func (s *Server) RegisterTool(tool mcp.Tool, handler server.ToolHandlerFunc) {
	s.mcp.AddTool(tool, handler)
}
