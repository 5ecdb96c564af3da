package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/models"
	"github.com/ekaya-inc/sqlgate/pkg/orchestrator"
)

// QueryService answers questions and checks SQL.
// *orchestrator.Orchestrator satisfies it.
type QueryService interface {
	Answer(ctx context.Context, question string) *models.QueryResponse
	Check(sqlQuery string) orchestrator.CheckResult
}

// RegisterQueryTools adds ask_database and validate_sql to the MCP server.
func RegisterQueryTools(s *server.MCPServer, svc QueryService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	registerAskDatabaseTool(s, svc, logger)
	registerValidateSQLTool(s, svc)
}

func registerAskDatabaseTool(s *server.MCPServer, svc QueryService, logger *zap.Logger) {
	tool := mcp.NewTool(
		"ask_database",
		mcp.WithDescription(
			"Answer a natural-language question from the connected database. "+
				"The question is translated to a single SELECT statement, checked against the schema "+
				"and its foreign keys, and executed read-only. "+
				"The response includes the result, the SQL that ran, and how many retries were needed.",
		),
		mcp.WithString(
			"question",
			mcp.Required(),
			mcp.Description("The question to answer, e.g. 'How many tracks are longer than five minutes?'"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(false),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		question, err := req.RequireString("question")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		question = strings.TrimSpace(question)
		if question == "" {
			return NewErrorResult("invalid_parameters", "question must not be empty"), nil
		}

		resp := svc.Answer(ctx, question)
		if !resp.Success {
			logger.Debug("ask_database returned failure",
				zap.String("request_id", resp.RequestID),
				zap.String("termination_reason", resp.Metadata.TerminationReason))

			message := "query failed"
			if resp.Result != nil && resp.Result.Message != "" {
				message = resp.Result.Message
			}
			return NewErrorResultWithDetails(resp.Metadata.TerminationReason, message, resp), nil
		}

		result, err := jsonResult(resp)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal query response: %w", err)
		}
		return result, nil
	})
}

func registerValidateSQLTool(s *server.MCPServer, svc QueryService) {
	tool := mcp.NewTool(
		"validate_sql",
		mcp.WithDescription(
			"Check a SQL statement without running it. "+
				"Rejects anything but a single SELECT or WITH statement, comments, unknown tables and columns, "+
				"joins that do not follow a declared foreign key, and join sets that are not connected. "+
				"A rejection is classified as terminal or retryable.",
		),
		mcp.WithString(
			"sql",
			mcp.Required(),
			mcp.Description("The SQL statement to check"),
		),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithIdempotentHintAnnotation(true),
		mcp.WithOpenWorldHintAnnotation(false),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sqlQuery, err := req.RequireString("sql")
		if err != nil {
			return NewErrorResult("invalid_parameters", err.Error()), nil
		}
		if strings.TrimSpace(sqlQuery) == "" {
			return NewErrorResult("invalid_parameters", "sql must not be empty"), nil
		}

		result, err := jsonResult(svc.Check(sqlQuery))
		if err != nil {
			return nil, fmt.Errorf("failed to marshal validation result: %w", err)
		}
		return result, nil
	})
}
