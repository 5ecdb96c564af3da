package mssql

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// SchemaDiscoverer reads the catalog of one SQL Server schema from the
// sys.* catalog views.
type SchemaDiscoverer struct {
	db     *sql.DB
	schema string
	logger *zap.Logger
}

// NewSchemaDiscoverer creates a SQL Server schema discoverer with its own connection.
// If logger is nil, a no-op logger is used.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, logger *zap.Logger) (*SchemaDiscoverer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	db, err := openDB(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	schema := cfg.Schema
	if schema == "" {
		schema = DefaultSchema()
	}
	return &SchemaDiscoverer{db: db, schema: schema, logger: logger}, nil
}

// Close releases the connection.
func (d *SchemaDiscoverer) Close() error {
	return d.db.Close()
}

// DiscoverTables returns the user tables of the configured schema.
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT s.name, t.name
		FROM sys.tables t
		JOIN sys.schemas s ON s.schema_id = t.schema_id
		WHERE t.is_ms_shipped = 0
		  AND s.name = @schema
		ORDER BY t.name
	`

	rows, err := d.db.QueryContext(ctx, query, sql.Named("schema", d.schema))
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	d.logger.Debug("Discovered SQL Server tables",
		zap.String("schema", d.schema),
		zap.Int("count", len(tables)))
	return tables, nil
}

// DiscoverColumns returns columns for a specific table. Type names are
// mapped onto the PostgreSQL names the catalog uses for every datasource.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, schemaName, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.name,
			ty.name,
			c.is_nullable,
			CAST(CASE WHEN pk.column_id IS NULL THEN 0 ELSE 1 END AS bit),
			c.column_id
		FROM sys.columns c
		JOIN sys.types ty ON ty.user_type_id = c.user_type_id
		LEFT JOIN (
			SELECT ic.object_id, ic.column_id
			FROM sys.index_columns ic
			JOIN sys.indexes i ON i.object_id = ic.object_id AND i.index_id = ic.index_id
			WHERE i.is_primary_key = 1
		) pk ON pk.object_id = c.object_id AND pk.column_id = c.column_id
		WHERE c.object_id = OBJECT_ID(QUOTENAME(@schema) + N'.' + QUOTENAME(@table))
		ORDER BY c.column_id
	`

	if schemaName == "" {
		schemaName = d.schema
	}

	rows, err := d.db.QueryContext(ctx, query,
		sql.Named("schema", schemaName),
		sql.Named("table", tableName))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.DataType = mapSQLServerType(c.DataType)
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns the foreign keys declared on tables of the
// configured schema, one row per column pair.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			fk.name,
			ss.name, st.name, sc.name,
			ts.name, tt.name, tc.name
		FROM sys.foreign_keys fk
		JOIN sys.foreign_key_columns fkc ON fkc.constraint_object_id = fk.object_id
		JOIN sys.tables st ON st.object_id = fk.parent_object_id
		JOIN sys.schemas ss ON ss.schema_id = st.schema_id
		JOIN sys.columns sc ON sc.object_id = fkc.parent_object_id AND sc.column_id = fkc.parent_column_id
		JOIN sys.tables tt ON tt.object_id = fk.referenced_object_id
		JOIN sys.schemas ts ON ts.schema_id = tt.schema_id
		JOIN sys.columns tc ON tc.object_id = fkc.referenced_object_id AND tc.column_id = fkc.referenced_column_id
		WHERE fk.is_ms_shipped = 0
		  AND ss.name = @schema
		ORDER BY st.name, fk.name, fkc.constraint_column_id
	`

	rows, err := d.db.QueryContext(ctx, query, sql.Named("schema", d.schema))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	return fks, nil
}

var _ datasource.SchemaDiscoverer = (*SchemaDiscoverer)(nil)
