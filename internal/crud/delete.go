package crud

import (
	"context"
	"fmt"
	"strings"
)

// DeleteRecord deletes the row whose idColumn equals id. No match is a
// warning.
func (m *Manager) DeleteRecord(ctx context.Context, table string, id any, idColumn string) *Result {
	return m.run(ctx, "delete_record", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(idColumn); err != nil {
			return nil, err
		}

		tag, err := m.db.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE %s = $1", table, idColumn), id)
		if err != nil {
			return nil, err
		}

		if tag.RowsAffected() == 0 {
			return &Result{Status: StatusWarning, Message: fmt.Sprintf("No records found with %s=%v", idColumn, id)}, nil
		}
		return success(tag.RowsAffected(), fmt.Sprintf("Deleted %d record(s) from '%s'", tag.RowsAffected(), table), nil), nil
	})
}

// DeleteRecords deletes every row matching the required filter.
func (m *Manager) DeleteRecords(ctx context.Context, table string, f Filter) *Result {
	return m.run(ctx, "delete_records", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if strings.TrimSpace(f.Where) == "" {
			return nil, invalid("where_clause is required for batch deletes")
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}

		tag, err := m.db.Exec(ctx, "DELETE FROM "+table+f.clause(0), f.args()...)
		if err != nil {
			return nil, err
		}

		n := tag.RowsAffected()
		if n == 0 {
			return &Result{Status: StatusWarning, Message: "No records matched WHERE clause"}, nil
		}
		return success(n, fmt.Sprintf("Deleted %d record(s)", n), nil), nil
	})
}

// TruncateTable removes all rows of a table.
func (m *Manager) TruncateTable(ctx context.Context, table string) *Result {
	return m.run(ctx, "truncate_table", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if _, err := m.db.Exec(ctx, "TRUNCATE TABLE "+table); err != nil {
			return nil, err
		}

		res := success(0, fmt.Sprintf("Truncated table '%s' - all data deleted", table), nil)
		res.Warnings = []string{
			"WARNING: TRUNCATE deleted all data from table!",
			"This operation cannot be rolled back in some configurations.",
		}
		return res, nil
	})
}

// DropTable drops a table. cascade also drops dependent objects.
func (m *Manager) DropTable(ctx context.Context, table string, cascade bool) *Result {
	return m.run(ctx, "drop_table", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}

		mode := "RESTRICT"
		if cascade {
			mode = "CASCADE"
		}
		if _, err := m.db.Exec(ctx, fmt.Sprintf("DROP TABLE %s %s", table, mode)); err != nil {
			return nil, err
		}

		res := success(0, fmt.Sprintf("Table '%s' dropped", table), nil)
		res.Warnings = []string{
			fmt.Sprintf("CRITICAL: Table '%s' has been permanently dropped!", table),
			"This operation cannot be undone.",
		}
		return res, nil
	})
}
