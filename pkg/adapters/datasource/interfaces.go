package datasource

import "context"

// SchemaDiscoverer discovers database schema for the schema catalog.
// Each implementation owns its connection and must be closed when done.
type SchemaDiscoverer interface {
	// DiscoverTables returns all user tables (excludes system schemas and tables).
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key relationships between user tables.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// Close releases the database connection.
	Close() error
}

// DefaultQueryLimit is used when Query is called with limit <= 0.
const DefaultQueryLimit = 1000

// QueryExecutor executes validated SELECT statements against a datasource.
// Each implementation owns its connection and must be closed when done.
type QueryExecutor interface {
	// Query runs a SELECT statement and returns at most limit rows.
	// The statement is sent unmodified; rows beyond limit are not read and
	// Truncated is set on the result.
	//
	// Limit behavior:
	//   - limit <= 0: uses DefaultQueryLimit (1000)
	//   - otherwise: uses specified limit
	Query(ctx context.Context, sqlQuery string, limit int) (*QueryExecutionResult, error)

	// Close releases any resources held by the executor.
	Close() error
}

// ColumnInfo describes a result column with database-agnostic type information.
type ColumnInfo struct {
	Name string `json:"name"`
	Type string `json:"type"` // Database type name (e.g., "TEXT", "INT4", "VARCHAR")
}

// QueryExecutionResult holds the results from executing a query.
// Rows are keyed by column name; Columns preserves the driver's column order.
type QueryExecutionResult struct {
	Columns   []ColumnInfo     `json:"columns"`
	Rows      []map[string]any `json:"rows"`
	RowCount  int              `json:"row_count"`
	Truncated bool             `json:"truncated"`
}

// ColumnNames returns the result column names in order.
func (r *QueryExecutionResult) ColumnNames() []string {
	names := make([]string, len(r.Columns))
	for i, c := range r.Columns {
		names[i] = c.Name
	}
	return names
}

// EffectiveLimit applies DefaultQueryLimit to non-positive limits.
func EffectiveLimit(limit int) int {
	if limit <= 0 {
		return DefaultQueryLimit
	}
	return limit
}
