package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// QueryExecutor provides SQLite query execution.
type QueryExecutor struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewQueryExecutor opens the database file and verifies the connection.
func NewQueryExecutor(ctx context.Context, cfg *Config, logger *zap.Logger) (*QueryExecutor, error) {
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewQueryExecutorFromDB(db, logger), nil
}

// NewQueryExecutorFromDB wraps an already-open database handle.
// The executor takes ownership and closes db on Close.
func NewQueryExecutorFromDB(db *sql.DB, logger *zap.Logger) *QueryExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueryExecutor{db: db, logger: logger}
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

// Close releases the database handle.
func (e *QueryExecutor) Close() error {
	return e.db.Close()
}

var _ datasource.QueryExecutor = (*QueryExecutor)(nil)
var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
