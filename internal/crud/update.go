package crud

import (
	"context"
	"fmt"
	"strings"
)

// setClause renders "a = $1, b = $2" for the sorted columns of values and
// returns the matching arguments.
func setClause(values map[string]any) (string, []any) {
	columns := sortedKeys(values)
	parts := make([]string, len(columns))
	args := make([]any, len(columns))
	for i, col := range columns {
		parts[i] = fmt.Sprintf("%s = $%d", col, i+1)
		args[i] = values[col]
	}
	return strings.Join(parts, ", "), args
}

// UpdateRecord updates the row whose idColumn equals id. No match is a
// warning.
func (m *Manager) UpdateRecord(ctx context.Context, table string, id any, idColumn string, values map[string]any) *Result {
	return m.run(ctx, "update_record", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(idColumn); err != nil {
			return nil, err
		}
		if err := ValidateValues(values); err != nil {
			return nil, err
		}

		set, args := setClause(values)
		query := fmt.Sprintf("UPDATE %s SET %s WHERE %s = $%d", table, set, idColumn, len(args)+1)
		tag, err := m.db.Exec(ctx, query, append(args, id)...)
		if err != nil {
			return nil, err
		}

		if tag.RowsAffected() == 0 {
			return &Result{Status: StatusWarning, Message: fmt.Sprintf("No records found with %s=%v", idColumn, id)}, nil
		}
		return success(tag.RowsAffected(), fmt.Sprintf("Updated %d record(s) in '%s'", tag.RowsAffected(), table), nil), nil
	})
}

// UpdateRecordsBatch applies values to every row matching the filter. The
// filter is required; no match is a warning.
func (m *Manager) UpdateRecordsBatch(ctx context.Context, table string, f Filter, values map[string]any) *Result {
	return m.run(ctx, "update_records_batch", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if strings.TrimSpace(f.Where) == "" {
			return nil, invalid("where_clause is required for batch updates")
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}
		if err := ValidateValues(values); err != nil {
			return nil, err
		}

		set, args := setClause(values)
		query := fmt.Sprintf("UPDATE %s SET %s%s", table, set, f.clause(len(args)))
		tag, err := m.db.Exec(ctx, query, append(args, f.args()...)...)
		if err != nil {
			return nil, err
		}

		n := tag.RowsAffected()
		if n == 0 {
			return &Result{Status: StatusWarning, Message: "No records matched WHERE clause"}, nil
		}
		return success(n, fmt.Sprintf("Updated %d record(s)", n), nil), nil
	})
}

// UpdateColumn sets one column on every row matching the optional filter.
// Without a filter every row is updated and a warning is attached.
func (m *Manager) UpdateColumn(ctx context.Context, table, column string, value any, f Filter) *Result {
	return m.run(ctx, "update_column", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(column); err != nil {
			return nil, err
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}

		var warnings []string
		if strings.TrimSpace(f.Where) == "" {
			warnings = append(warnings, "WARNING: No WHERE clause specified - will update ALL records in table!")
		}

		query := fmt.Sprintf("UPDATE %s SET %s = $1%s", table, column, f.clause(1))
		tag, err := m.db.Exec(ctx, query, append([]any{value}, f.args()...)...)
		if err != nil {
			return nil, err
		}

		res := success(tag.RowsAffected(), fmt.Sprintf("Updated %d record(s)", tag.RowsAffected()), nil)
		res.Warnings = warnings
		return res, nil
	})
}

// RenameTable renames a table.
func (m *Manager) RenameTable(ctx context.Context, oldName, newName string) *Result {
	return m.run(ctx, "rename_table", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(oldName); err != nil {
			return nil, err
		}
		if err := ValidateTableName(newName); err != nil {
			return nil, err
		}
		if _, err := m.db.Exec(ctx, fmt.Sprintf("ALTER TABLE %s RENAME TO %s", oldName, newName)); err != nil {
			return nil, err
		}
		return success(0, fmt.Sprintf("Table '%s' renamed to '%s'", oldName, newName), nil), nil
	})
}

// RenameColumn renames a column of a table.
func (m *Manager) RenameColumn(ctx context.Context, table, oldColumn, newColumn string) *Result {
	return m.run(ctx, "rename_column", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(oldColumn); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(newColumn); err != nil {
			return nil, err
		}
		query := fmt.Sprintf("ALTER TABLE %s RENAME COLUMN %s TO %s", table, oldColumn, newColumn)
		if _, err := m.db.Exec(ctx, query); err != nil {
			return nil, err
		}
		return success(0, fmt.Sprintf("Column '%s' renamed to '%s' in '%s'", oldColumn, newColumn, table), nil), nil
	})
}
