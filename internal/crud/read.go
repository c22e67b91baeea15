package crud

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/prasanna00019/MCP-ToolHub/internal/database"
)

// Pagination describes one page of PaginateData.
type Pagination struct {
	CurrentPage  int   `json:"current_page"`
	PageSize     int   `json:"page_size"`
	TotalRecords int64 `json:"total_records"`
	TotalPages   int64 `json:"total_pages"`
	HasNext      bool  `json:"has_next"`
	HasPrevious  bool  `json:"has_previous"`
}

func (f Filter) clause(offset int) string {
	if strings.TrimSpace(f.Where) == "" {
		return ""
	}
	return " WHERE " + bindPlaceholders(f.Where, offset)
}

func (f Filter) args() []any {
	if f.Params == nil {
		return []any{}
	}
	return f.Params
}

func limitOffset(limit, offset *int) string {
	var s string
	if limit != nil {
		s += fmt.Sprintf(" LIMIT %d", *limit)
	}
	if offset != nil {
		s += fmt.Sprintf(" OFFSET %d", *offset)
	}
	return s
}

// QueryData runs a caller-supplied query inside a read-only transaction with
// optional LIMIT and OFFSET appended.
func (m *Manager) QueryData(ctx context.Context, query string, params []any, limit, offset *int) *Result {
	return m.run(ctx, "query_data", func(ctx context.Context) (*Result, error) {
		if strings.TrimSpace(query) == "" {
			return nil, invalid("Query must be a non-empty string")
		}
		if err := ValidateLimitOffset(limit, offset); err != nil {
			return nil, err
		}
		if err := ValidatePlaceholders(query); err != nil {
			return nil, err
		}

		sql := bindPlaceholders(strings.TrimRight(strings.TrimSpace(query), ";"), 0) + limitOffset(limit, offset)

		tx, err := m.db.BeginTx(ctx, pgx.TxOptions{AccessMode: pgx.ReadOnly})
		if err != nil {
			return nil, fmt.Errorf("failed to begin transaction: %w", err)
		}
		defer tx.Rollback(ctx)

		rows, err := tx.Query(ctx, sql, params...)
		if err != nil {
			return nil, err
		}
		results, columns, err := database.RowMaps(rows)
		if err != nil {
			return nil, err
		}

		return success(int64(len(results)), fmt.Sprintf("Query returned %d rows", len(results)), map[string]any{
			"rows":    results,
			"columns": columns,
		}), nil
	})
}

// GetRecords selects rows of a table with optional filter, ordering and
// paging.
func (m *Manager) GetRecords(ctx context.Context, table string, f Filter, orderBy string, limit, offset *int) *Result {
	return m.run(ctx, "get_records", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}
		if err := ValidateLimitOffset(limit, offset); err != nil {
			return nil, err
		}
		if err := ValidateOrderBy(orderBy); err != nil {
			return nil, err
		}

		query := "SELECT * FROM " + table + f.clause(0)
		if orderBy != "" {
			query += " ORDER BY " + orderBy
		}
		query += limitOffset(limit, offset)

		rows, err := m.db.Query(ctx, query, f.args()...)
		if err != nil {
			return nil, err
		}
		records, columns, err := database.RowMaps(rows)
		if err != nil {
			return nil, err
		}

		return success(int64(len(records)), fmt.Sprintf("Retrieved %d records from '%s'", len(records), table), map[string]any{
			"records": records,
			"columns": columns,
		}), nil
	})
}

// GetRecordCount counts rows matching the optional filter.
func (m *Manager) GetRecordCount(ctx context.Context, table string, f Filter) *Result {
	return m.run(ctx, "get_record_count", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}

		count, err := m.count(ctx, table, f)
		if err != nil {
			return nil, err
		}
		return success(0, fmt.Sprintf("Table '%s' has %d records", table, count), map[string]any{"count": count}), nil
	})
}

func (m *Manager) count(ctx context.Context, table string, f Filter) (int64, error) {
	var count int64
	err := m.db.QueryRow(ctx, "SELECT COUNT(*) FROM "+table+f.clause(0), f.args()...).Scan(&count)
	return count, err
}

// DistinctValues lists the distinct values of a column in sorted order. A
// zero or nil limit returns all of them.
func (m *Manager) DistinctValues(ctx context.Context, table, column string, limit *int) *Result {
	return m.run(ctx, "distinct_values", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if err := ValidateColumnName(column); err != nil {
			return nil, err
		}
		if err := ValidateLimitOffset(limit, nil); err != nil {
			return nil, err
		}

		query := fmt.Sprintf("SELECT DISTINCT %s FROM %s ORDER BY %s", column, table, column)
		if limit != nil && *limit > 0 {
			query += fmt.Sprintf(" LIMIT %d", *limit)
		}

		rows, err := m.db.Query(ctx, query)
		if err != nil {
			return nil, err
		}
		values, err := pgx.CollectRows(rows, pgx.RowTo[any])
		if err != nil {
			return nil, err
		}
		if values == nil {
			values = []any{}
		}

		return success(int64(len(values)), fmt.Sprintf("Found %d distinct values in '%s.%s'", len(values), table, column), map[string]any{
			"values": values,
			"count":  len(values),
		}), nil
	})
}

// PaginateData returns one 1-indexed page of a table plus totals.
func (m *Manager) PaginateData(ctx context.Context, table string, page, pageSize int, orderBy string, f Filter) *Result {
	return m.run(ctx, "paginate_data", func(ctx context.Context) (*Result, error) {
		if err := ValidateTableName(table); err != nil {
			return nil, err
		}
		if page < 1 {
			return nil, invalid("Page must be a positive integer")
		}
		if pageSize < 1 {
			return nil, invalid("Page size must be a positive integer")
		}
		if err := ValidateWhereClause(f.Where); err != nil {
			return nil, err
		}
		if err := ValidateOrderBy(orderBy); err != nil {
			return nil, err
		}

		total, err := m.count(ctx, table, f)
		if err != nil {
			return nil, err
		}

		query := "SELECT * FROM " + table + f.clause(0)
		if orderBy != "" {
			query += " ORDER BY " + orderBy
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", pageSize, (page-1)*pageSize)

		rows, err := m.db.Query(ctx, query, f.args()...)
		if err != nil {
			return nil, err
		}
		records, _, err := database.RowMaps(rows)
		if err != nil {
			return nil, err
		}

		totalPages := (total + int64(pageSize) - 1) / int64(pageSize)
		return success(int64(len(records)), fmt.Sprintf("Page %d of %d (%d records)", page, totalPages, len(records)), map[string]any{
			"records": records,
			"pagination": Pagination{
				CurrentPage:  page,
				PageSize:     pageSize,
				TotalRecords: total,
				TotalPages:   totalPages,
				HasNext:      int64(page) < totalPages,
				HasPrevious:  page > 1,
			},
		}), nil
	})
}
