package mssql

import "strings"

// sqlServerTypes maps SQL Server type names onto the names the PostgreSQL
// adapter reports, so result columns look the same across datasources.
var sqlServerTypes = map[string]string{
	"INT":              "INTEGER",
	"DECIMAL":          "NUMERIC",
	"NUMERIC":          "NUMERIC",
	"MONEY":            "MONEY",
	"SMALLMONEY":       "MONEY",
	"FLOAT":            "DOUBLE PRECISION",
	"REAL":             "REAL",
	"CHAR":             "CHAR",
	"NCHAR":            "CHAR",
	"VARCHAR":          "VARCHAR",
	"NVARCHAR":         "VARCHAR",
	"TEXT":             "TEXT",
	"NTEXT":            "TEXT",
	"BINARY":           "BYTEA",
	"VARBINARY":        "BYTEA",
	"IMAGE":            "BLOB",
	"DATETIME":         "TIMESTAMP",
	"DATETIME2":        "TIMESTAMP",
	"SMALLDATETIME":    "TIMESTAMP",
	"DATETIMEOFFSET":   "TIMESTAMP WITH TIME ZONE",
	"BIT":              "BOOLEAN",
	"UNIQUEIDENTIFIER": "UUID",
}

func mapSQLServerType(name string) string {
	name = strings.ToUpper(name)
	if mapped, ok := sqlServerTypes[name]; ok {
		return mapped
	}
	return name
}
