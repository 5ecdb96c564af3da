package datasource

import (
	"database/sql"
	"fmt"
	"time"
)

// CollectRows reads at most limit rows from a database/sql result set into a
// QueryExecutionResult. Values are normalized to JSON-representable scalars.
// The caller still owns rows and must close it.
func CollectRows(rows *sql.Rows, limit int) (*QueryExecutionResult, error) {
	limit = EffectiveLimit(limit)

	colTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("failed to read column types: %w", err)
	}

	columns := make([]ColumnInfo, len(colTypes))
	for i, ct := range colTypes {
		columns[i] = ColumnInfo{
			Name: ct.Name(),
			Type: ct.DatabaseTypeName(),
		}
	}

	result := &QueryExecutionResult{
		Columns: columns,
		Rows:    make([]map[string]any, 0),
	}

	for rows.Next() {
		if len(result.Rows) >= limit {
			result.Truncated = true
			break
		}

		values := make([]any, len(columns))
		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}
		if err := rows.Scan(scanArgs...); err != nil {
			return nil, fmt.Errorf("failed to read row values: %w", err)
		}

		rowMap := make(map[string]any, len(columns))
		for i, col := range columns {
			rowMap[col.Name] = NormalizeValue(values[i])
		}
		result.Rows = append(result.Rows, rowMap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	result.RowCount = len(result.Rows)
	return result, nil
}

// NormalizeValue converts driver values into JSON-friendly scalars.
// Byte slices become strings; times are rendered as RFC 3339.
func NormalizeValue(v any) any {
	switch val := v.(type) {
	case []byte:
		return string(val)
	case time.Time:
		return val.Format(time.RFC3339Nano)
	default:
		return val
	}
}
