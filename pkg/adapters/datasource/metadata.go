package datasource

// TableMetadata represents a discovered database table.
type TableMetadata struct {
	SchemaName string
	TableName  string
}

// ColumnMetadata represents a discovered database column.
type ColumnMetadata struct {
	ColumnName      string
	DataType        string
	IsNullable      bool
	IsPrimaryKey    bool
	OrdinalPosition int
}

// ForeignKeyMetadata represents a discovered foreign key constraint.
// Composite constraints are reported as one row per column pair.
type ForeignKeyMetadata struct {
	ConstraintName string
	SourceSchema   string
	SourceTable    string
	SourceColumn   string
	TargetSchema   string
	TargetTable    string
	TargetColumn   string
}
