package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// QueryExecutor provides SQL Server query execution.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueryExecutor creates a SQL Server query executor with its own connection.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	return &QueryExecutor{db: db, logger: logger}, nil
}

// Query runs a SELECT statement and returns at most limit rows.
// The statement is not wrapped in a TOP subquery because SQL Server rejects
// a WITH clause inside a derived table; reading stops at the limit instead.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	result, err := datasource.CollectRows(rows, limit)
	if err != nil {
		return nil, err
	}

	for i := range result.Columns {
		result.Columns[i].Type = mapSQLServerType(result.Columns[i].Type)
	}

	return result, nil
}

// Close releases the connection.
func (e *QueryExecutor) Close() error {
	return e.db.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
