package mysql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// QueryExecutor provides MySQL query execution.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueryExecutor opens a connection and verifies it.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return &QueryExecutor{db: db, logger: logger}, nil
}

// Query runs a SQL query and returns at most limit rows.
func (e *QueryExecutor) Query(ctx context.Context, sqlQuery string, limit int) (*datasource.QueryExecutionResult, error) {
	rows, err := e.db.QueryContext(ctx, sqlQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return datasource.CollectRows(rows, limit)
}

// Close releases the connection.
func (e *QueryExecutor) Close() error {
	return e.db.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
