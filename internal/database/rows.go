package database

import (
	"fmt"

	"github.com/jackc/pgx/v5"
)

// RowMaps drains rows into one map per row keyed by column name, along with
// the column names in result order. rows is closed on return.
func RowMaps(rows pgx.Rows) ([]map[string]any, []string, error) {
	defer rows.Close()

	fieldDescriptions := rows.FieldDescriptions()
	columns := make([]string, len(fieldDescriptions))
	for i, field := range fieldDescriptions {
		columns[i] = field.Name
	}

	results := []map[string]any{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(map[string]any, len(columns))
		for i, name := range columns {
			row[name] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("row iteration error: %w", err)
	}
	return results, columns, nil
}
