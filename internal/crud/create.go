package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// ColumnDef describes a column for CreateTable. Nullable defaults to true.
type ColumnDef struct {
	Name       string     `json:"name"`
	Type       string     `json:"type"`
	Nullable   *bool      `json:"nullable,omitempty"`
	References *Reference `json:"references,omitempty"`
}

// Reference is an inline foreign key on a created column.
type Reference struct {
	Table    string `json:"table"`
	Column   string `json:"column"`
	OnDelete string `json:"on_delete,omitempty"`
	OnUpdate string `json:"on_update,omitempty"`
}

// CreateRecord inserts one row.
func (m *Manager) CreateRecord(ctx context.Context, table string, values map[string]any) *Result {
	return m.run(ctx, "create_record", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateValues(values); err != nil {
			return nil, err
		}

		columns := sortedKeys(values)
		args := make([]any, len(columns))
		for i, col := range columns {
			args[i] = values[col]
		}

		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(1, len(columns)))
		tag, err := m.db.Exec(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		return success(tag.RowsAffected(), fmt.Sprintf("Record inserted successfully into '%s'", table), nil), nil
	})
}

// CreateRecordsBatch inserts every record in one transaction. All records
// must share the first record's columns.
func (m *Manager) CreateRecordsBatch(ctx context.Context, table string, records []map[string]any) *Result {
	return m.run(ctx, "create_records_batch", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateRecords(records); err != nil {
			return nil, err
		}

		columns := sortedKeys(records[0])
		query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", table, strings.Join(columns, ", "), placeholders(1, len(columns)))

		batch := &pgx.Batch{}
		for _, record := range records {
			args := make([]any, len(columns))
			for i, col := range columns {
				args[i] = record[col]
			}
			batch.Queue(query, args...)
		}

		tx, err := m.db.BeginTx(ctx, pgx.TxOptions{})
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		results := tx.SendBatch(ctx, batch)
		var inserted int64
		for i := range records {
			tag, err := results.Exec()
			if err != nil {
				results.Close()
				return nil, fmt.Errorf("record %d: %w", i, err)
			}
			inserted += tag.RowsAffected()
		}
		if err := results.Close(); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, fmt.Errorf("failed to commit transaction: %w", err)
		}

		return success(inserted, fmt.Sprintf("Batch inserted %d records into '%s'", inserted, table), nil), nil
	})
}

// CreateTable creates a table from column definitions and an optional
// primary key.
func (m *Manager) CreateTable(ctx context.Context, table string, columns []ColumnDef, primaryKey []string) *Result {
	return m.run(ctx, "create_table", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return nil, invalid("Columns must be a non-empty list")
		}

		defs := make([]string, 0, len(columns)+1)
		for _, col := range columns {
			if err := ValidateColumnName(col.Name); err != nil {
				return nil, err
			}
			if err := ValidateColumnType(col.Type); err != nil {
				return nil, err
			}

			def := col.Name + " " + col.Type
			if col.Nullable != nil && !*col.Nullable {
				def += " NOT NULL"
			}
			if ref := col.References; ref != nil {
				if err := ValidateReference(*ref); err != nil {
					return nil, err
				}
				def += fmt.Sprintf(" REFERENCES %s(%s)", ref.Table, ref.Column)
				if ref.OnDelete != "" {
					def += " ON DELETE " + strings.ToUpper(ref.OnDelete)
				}
				if ref.OnUpdate != "" {
					def += " ON UPDATE " + strings.ToUpper(ref.OnUpdate)
				}
			}
			defs = append(defs, def)
		}

		if len(primaryKey) > 0 {
			if err := ValidatePrimaryKey(primaryKey); err != nil {
				return nil, err
			}
			defs = append(defs, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(primaryKey, ", ")))
		}

		query := fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", table, strings.Join(defs, ",\n  "))
		if _, err := m.db.Exec(ctx, query); err != nil {
			return nil, err
		}

		return success(0, fmt.Sprintf("Table '%s' created successfully", table), map[string]any{
			"columns":         len(columns),
			"has_primary_key": len(primaryKey) > 0,
		}), nil
	})
}

// CreateView creates, or with replace re-creates, a view over selectQuery.
func (m *Manager) CreateView(ctx context.Context, view, selectQuery string, replace bool) *Result {
	return m.run(ctx, "create_view", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(view); err != nil {
			return nil, err
		}
		if strings.TrimSpace(selectQuery) == "" {
			return nil, invalid("select_query must be a non-empty string")
		}

		verb := "CREATE"
		if replace {
			verb = "CREATE OR REPLACE"
		}
		if _, err := m.db.Exec(ctx, fmt.Sprintf("%s VIEW %s AS %s", verb, view, selectQuery)); err != nil {
			return nil, err
		}
		return success(0, fmt.Sprintf("View '%s' created successfully", view), nil), nil
	})
}

// CreateIndex creates a single or composite index.
func (m *Manager) CreateIndex(ctx context.Context, index, table string, columns []string, unique bool) *Result {
	return m.run(ctx, "create_index", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(index); err != nil {
			return nil, err
		}
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if len(columns) == 0 {
			return nil, invalid("Columns must be a non-empty list")
		}
		for _, col := range columns {
			if err := ValidateColumnName(col); err != nil {
				return nil, err
			}
		}

		uniqueStr := ""
		if unique {
			uniqueStr = "UNIQUE "
		}
		cols := strings.Join(columns, ", ")
		if _, err := m.db.Exec(ctx, fmt.Sprintf("CREATE %sINDEX %s ON %s (%s)", uniqueStr, index, table, cols)); err != nil {
			return nil, err
		}

		return success(0, fmt.Sprintf("Index '%s' created on '%s(%s)'", index, table, cols), map[string]any{
			"unique":       unique,
			"column_count": len(columns),
		}), nil
	})
}
