package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/ekaya-inc/sqlgate/pkg/adapters/datasource"
)

// SchemaDiscoverer provides SQLite schema discovery via sqlite_master and PRAGMAs.
type SchemaDiscoverer struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSchemaDiscoverer opens the database file and verifies the connection.
// If logger is nil, a no-op logger is used.
func NewSchemaDiscoverer(ctx context.Context, cfg *Config, logger *zap.Logger) (*SchemaDiscoverer, error) {
	db, err := open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewSchemaDiscovererFromDB(db, logger), nil
}

// NewSchemaDiscovererFromDB wraps an already-open database handle.
// The discoverer takes ownership and closes db on Close.
func NewSchemaDiscovererFromDB(db *sql.DB, logger *zap.Logger) *SchemaDiscoverer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchemaDiscoverer{db: db, logger: logger}
}

func open(ctx context.Context, cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite", cfg.dsn())
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("connect to sqlite: %w", err)
	}
	return db, nil
}

// Close releases the database handle.
func (d *SchemaDiscoverer) Close() error {
	return d.db.Close()
}

// DiscoverTables returns all user tables (excludes sqlite_ internal tables).
func (d *SchemaDiscoverer) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT name
		FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name
	`

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.TableName); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		t.SchemaName = "main"
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table using PRAGMA table_info.
// The schema name is ignored; SQLite has a single main schema.
func (d *SchemaDiscoverer) DiscoverColumns(ctx context.Context, _ string, tableName string) ([]datasource.ColumnMetadata, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdentifier(tableName)))
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var (
			cid          int
			name, typ    string
			notNull, pk  int
			defaultValue sql.NullString
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultValue, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, datasource.ColumnMetadata{
			ColumnName:      name,
			DataType:        typ,
			IsNullable:      notNull == 0,
			IsPrimaryKey:    pk > 0,
			OrdinalPosition: cid + 1,
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key relationships using PRAGMA foreign_key_list.
// A constraint written without a target column ("REFERENCES artists") points at
// the referenced table's primary key, which is resolved here.
func (d *SchemaDiscoverer) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	tables, err := d.DiscoverTables(ctx)
	if err != nil {
		return nil, err
	}

	var fks []datasource.ForeignKeyMetadata
	for _, t := range tables {
		tableFKs, err := d.foreignKeysFor(ctx, t.TableName)
		if err != nil {
			return nil, fmt.Errorf("foreign keys for %s: %w", t.TableName, err)
		}
		fks = append(fks, tableFKs...)
	}

	return fks, nil
}

func (d *SchemaDiscoverer) foreignKeysFor(ctx context.Context, tableName string) ([]datasource.ForeignKeyMetadata, error) {
	rows, err := d.db.QueryContext(ctx, fmt.Sprintf("PRAGMA foreign_key_list(%s)", quoteIdentifier(tableName)))
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}

	type rawFK struct {
		id, seq int
		target  string
		from    string
		to      sql.NullString
	}
	var raw []rawFK
	for rows.Next() {
		var (
			r                         rawFK
			onUpdate, onDelete, match string
		)
		if err := rows.Scan(&r.id, &r.seq, &r.target, &r.from, &r.to, &onUpdate, &onDelete, &match); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		raw = append(raw, r)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}
	rows.Close()

	fks := make([]datasource.ForeignKeyMetadata, 0, len(raw))
	for _, r := range raw {
		targetColumn := r.to.String
		if !r.to.Valid || targetColumn == "" {
			targetColumn, err = d.primaryKeyColumn(ctx, r.target, r.seq)
			if err != nil {
				return nil, err
			}
		}
		fks = append(fks, datasource.ForeignKeyMetadata{
			ConstraintName: fmt.Sprintf("%s_fk_%d", tableName, r.id),
			SourceSchema:   "main",
			SourceTable:    tableName,
			SourceColumn:   r.from,
			TargetSchema:   "main",
			TargetTable:    r.target,
			TargetColumn:   targetColumn,
		})
	}

	return fks, nil
}

// primaryKeyColumn returns the seq-th primary key column of tableName.
func (d *SchemaDiscoverer) primaryKeyColumn(ctx context.Context, tableName string, seq int) (string, error) {
	columns, err := d.DiscoverColumns(ctx, "", tableName)
	if err != nil {
		return "", err
	}

	var pks []string
	for _, c := range columns {
		if c.IsPrimaryKey {
			pks = append(pks, c.ColumnName)
		}
	}
	if seq >= len(pks) {
		return "", fmt.Errorf("foreign key references %s without a matching primary key column", tableName)
	}
	return pks[seq], nil
}

// quoteIdentifier double-quotes an identifier, escaping embedded quotes.
func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
