// Package result shapes executed query rows into the response payload and
// turns failure reasons into messages fit for end users.
package result

import (
	"fmt"
	"strings"

	"github.com/ekaya-inc/sqlgate/pkg/models"
)

// Output types.
const (
	TypeScalar        = "scalar"
	TypeList          = "list"
	TypeTable         = "table"
	TypeTimeSeries    = "time_series"
	TypeError         = "error"
	TypeClarification = "clarification"
)

// Table is the column-major rendering of a result set.
type Table struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Classify picks the output type from the result shape:
// one row and one column is a scalar, several rows of one column a list,
// two columns where one is named like a date or time a time series,
// anything else (including no rows) a table.
func Classify(columns []string, rows []map[string]any) string {
	if len(rows) == 0 {
		return TypeTable
	}
	if len(columns) == 1 {
		if len(rows) == 1 {
			return TypeScalar
		}
		return TypeList
	}
	if len(columns) == 2 {
		for _, c := range columns {
			name := strings.ToLower(c)
			if strings.Contains(name, "date") || strings.Contains(name, "time") {
				return TypeTimeSeries
			}
		}
	}
	return TypeTable
}

// VisualizationHint suggests how a client might render an output type.
// Lists get no suggestion.
func VisualizationHint(outputType string) map[string]any {
	switch outputType {
	case TypeScalar:
		return map[string]any{"recommended": []string{"metric_card"}}
	case TypeTimeSeries:
		return map[string]any{"recommended": []string{"line_chart", "area_chart"}}
	case TypeTable:
		return map[string]any{"recommended": []string{"data_table", "bar_chart"}}
	}
	return nil
}

// FormatTable orders each row's values by columns.
func FormatTable(columns []string, rows []map[string]any) Table {
	out := Table{
		Columns: append([]string{}, columns...),
		Rows:    make([][]any, 0, len(rows)),
	}
	for _, row := range rows {
		values := make([]any, len(columns))
		for i, c := range columns {
			values[i] = row[c]
		}
		out.Rows = append(out.Rows, values)
	}
	return out
}

// Build shapes executed rows into a result payload. columns gives the
// driver's column order, which the row maps do not preserve.
func Build(sqlQuery string, columns []string, rows []map[string]any) (*models.QueryResult, error) {
	outputType := Classify(columns, rows)

	res := &models.QueryResult{
		Type:          outputType,
		SQL:           sqlQuery,
		Visualization: VisualizationHint(outputType),
	}

	switch outputType {
	case TypeScalar:
		res.Data = rows[0][columns[0]]
	case TypeList:
		values := make([]any, len(rows))
		for i, row := range rows {
			values[i] = row[columns[0]]
		}
		res.Data = values
	case TypeTimeSeries:
		res.Data = rows
	default:
		res.Data = FormatTable(columns, rows)
		csv, err := ExportCSV(columns, rows)
		if err != nil {
			return nil, fmt.Errorf("export csv: %w", err)
		}
		res.CSV = csv
	}

	return res, nil
}

// Clarification is the result for questions that do not need the database.
func Clarification(message string) *models.QueryResult {
	return &models.QueryResult{Type: TypeClarification, Message: message}
}
