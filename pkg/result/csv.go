package result

import (
	"encoding/csv"
	"fmt"
	"strings"
)

// ExportCSV renders rows as CSV with a header line. No rows yields "".
func ExportCSV(columns []string, rows []map[string]any) (string, error) {
	if len(rows) == 0 {
		return "", nil
	}

	var b strings.Builder
	w := csv.NewWriter(&b)

	if err := w.Write(columns); err != nil {
		return "", err
	}

	record := make([]string, len(columns))
	for _, row := range rows {
		for i, c := range columns {
			record[i] = csvValue(row[c])
		}
		if err := w.Write(record); err != nil {
			return "", err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return b.String(), nil
}

func csvValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case []byte:
		return string(val)
	default:
		return fmt.Sprint(val)
	}
}
