package tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/ekaya-inc/sqlgate/pkg/orchestrator"
)

// StatusReporter exposes service status. *orchestrator.Orchestrator satisfies it.
type StatusReporter interface {
	Status() orchestrator.Status
}

type healthResult struct {
	Status  string               `json:"status"`
	Version string               `json:"version"`
	Details *orchestrator.Status `json:"details,omitempty"`
}

// RegisterHealthTool adds a health check tool to the MCP server.
// The tool returns the server status and version, plus schema and generator
// details when status is non-nil.
func RegisterHealthTool(s *server.MCPServer, version string, status StatusReporter) {
	tool := mcp.NewTool(
		"health",
		mcp.WithDescription("Returns server health status and version"),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithIdempotentHintAnnotation(true),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		res := healthResult{Status: "ok", Version: version}
		if status != nil {
			st := status.Status()
			res.Details = &st
			if !st.Healthy() {
				res.Status = "degraded"
			}
		}

		result, err := jsonResult(res)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal health result: %w", err)
		}
		return result, nil
	})
}
