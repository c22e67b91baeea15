package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/prasanna00019/MCP-ToolHub/internal/database"
)

// Relation is an entry of information_schema.tables.
type Relation struct {
	Name string `json:"table_name"`
	Type string `json:"table_type"`
}

// ColumnDetail is the full information_schema view of a column.
type ColumnDetail struct {
	Name       string  `json:"column_name"`
	DataType   string  `json:"data_type"`
	MaxLength  *int32  `json:"max_length,omitempty"`
	IsNullable string  `json:"is_nullable"`
	Default    *string `json:"default,omitempty"`
}

// Constraint is one row per constrained column.
type Constraint struct {
	Name              string  `json:"constraint_name"`
	Type              string  `json:"constraint_type"`
	ColumnName        *string `json:"column_name,omitempty"`
	ForeignTableName  *string `json:"foreign_table_name,omitempty"`
	ForeignColumnName *string `json:"foreign_column_name,omitempty"`
	UpdateRule        *string `json:"update_rule,omitempty"`
	DeleteRule        *string `json:"delete_rule,omitempty"`
	CheckClause       *string `json:"check_clause,omitempty"`
}

// IndexColumn is one row per indexed column.
type IndexColumn struct {
	IndexName      string `json:"index_name"`
	IndexType      string `json:"index_type"`
	IsUnique       bool   `json:"is_unique"`
	IsPrimary      bool   `json:"is_primary"`
	ColumnName     string `json:"column_name"`
	ColumnPosition int    `json:"column_position"`
	Definition     string `json:"index_definition"`
}

// ListRelations lists tables, and views when includeViews is set.
func ListRelations(ctx context.Context, q Querier, schemaName string, includeViews bool) ([]Relation, error) {
	query := `
		SELECT table_name::text, table_type::text
		FROM information_schema.tables
		WHERE table_schema = $1
		AND (table_type = 'BASE TABLE' OR $2)
		ORDER BY table_name
	`
	rows, err := q.Query(ctx, query, schemaOrDefault(schemaName), includeViews)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	defer rows.Close()

	relations := []Relation{}
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.Name, &r.Type); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		relations = append(relations, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return relations, nil
}

// DescribeColumns returns column details of a table in ordinal order.
func DescribeColumns(ctx context.Context, q Querier, schemaName, table string) ([]ColumnDetail, error) {
	query := `
		SELECT
			column_name::text,
			data_type::text,
			character_maximum_length::int,
			is_nullable::text,
			column_default::text
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`

	rows, err := q.Query(ctx, query, schemaOrDefault(schemaName), table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table schema: %w", err)
	}
	defer rows.Close()

	cols := []ColumnDetail{}
	for rows.Next() {
		var c ColumnDetail
		if err := rows.Scan(&c.Name, &c.DataType, &c.MaxLength, &c.IsNullable, &c.Default); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cols, nil
}

// Constraints returns primary key, foreign key, unique and check constraints.
func Constraints(ctx context.Context, q Querier, schemaName, table string) ([]Constraint, error) {
	query := `
		SELECT
			tc.constraint_name::text,
			tc.constraint_type::text,
			kcu.column_name::text,
			ccu.table_name::text AS foreign_table_name,
			ccu.column_name::text AS foreign_column_name,
			rc.update_rule::text,
			rc.delete_rule::text,
			cc.check_clause::text
		FROM information_schema.table_constraints tc
		LEFT JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		LEFT JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		LEFT JOIN information_schema.referential_constraints rc
			ON tc.constraint_name = rc.constraint_name
			AND tc.table_schema = rc.constraint_schema
		LEFT JOIN information_schema.check_constraints cc
			ON tc.constraint_name = cc.constraint_name
			AND tc.table_schema = cc.constraint_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2
		ORDER BY tc.constraint_type, tc.constraint_name, kcu.ordinal_position
	`

	rows, err := q.Query(ctx, query, schemaOrDefault(schemaName), table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table constraints: %w", err)
	}
	defer rows.Close()

	constraints := []Constraint{}
	for rows.Next() {
		var c Constraint
		if err := rows.Scan(&c.Name, &c.Type, &c.ColumnName, &c.ForeignTableName, &c.ForeignColumnName,
			&c.UpdateRule, &c.DeleteRule, &c.CheckClause); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		constraints = append(constraints, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return constraints, nil
}

// Indexes returns one entry per index column.
func Indexes(ctx context.Context, q Querier, schemaName, table string) ([]IndexColumn, error) {
	query := `
		SELECT
			i.indexname::text,
			i.indexdef,
			a.amname::text AS index_type,
			idx.indisunique AS is_unique,
			idx.indisprimary AS is_primary,
			pg_get_indexdef(idx.indexrelid, k + 1, true) AS column_name,
			k AS column_position
		FROM pg_indexes i
		JOIN pg_namespace n ON n.nspname = i.schemaname
		JOIN pg_class c ON c.relname = i.indexname AND c.relnamespace = n.oid
		JOIN pg_index idx ON idx.indexrelid = c.oid
		JOIN pg_am a ON a.oid = c.relam
		CROSS JOIN LATERAL generate_series(0, idx.indnatts - 1) AS k
		WHERE i.schemaname = $1 AND i.tablename = $2
		ORDER BY i.indexname, k
	`

	rows, err := q.Query(ctx, query, schemaOrDefault(schemaName), table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table indexes: %w", err)
	}
	defer rows.Close()

	indexes := []IndexColumn{}
	for rows.Next() {
		var ix IndexColumn
		if err := rows.Scan(&ix.IndexName, &ix.Definition, &ix.IndexType, &ix.IsUnique, &ix.IsPrimary,
			&ix.ColumnName, &ix.ColumnPosition); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		indexes = append(indexes, ix)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return indexes, nil
}

// ExplainOptions mirrors the EXPLAIN option list. Nil pointers take the
// defaults: analyze, costs, timing and summary on; verbose and buffers off.
type ExplainOptions struct {
	Analyze *bool
	Verbose *bool
	Costs   *bool
	Buffers *bool
	Timing  *bool
	Summary *bool
	Format  string
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}

var explainFormats = map[string]bool{"text": true, "json": true, "xml": true, "yaml": true}

// Clause renders the parenthesised option list and the effective format.
func (o ExplainOptions) Clause() (string, string) {
	analyze := boolOr(o.Analyze, true)
	format := strings.ToLower(o.Format)
	if !explainFormats[format] {
		format = "json"
	}

	options := []string{
		fmt.Sprintf("ANALYZE %t", analyze),
		fmt.Sprintf("COSTS %t", boolOr(o.Costs, true)),
		fmt.Sprintf("SUMMARY %t", boolOr(o.Summary, true)),
		fmt.Sprintf("FORMAT %s", strings.ToUpper(format)),
	}
	if boolOr(o.Verbose, false) {
		options = append(options, "VERBOSE true")
	}
	if boolOr(o.Buffers, false) {
		options = append(options, "BUFFERS true")
	}
	if analyze {
		options = append(options, fmt.Sprintf("TIMING %t", boolOr(o.Timing, true)))
	}
	return "(" + strings.Join(options, ", ") + ")", format
}

// Explain runs EXPLAIN on query inside a transaction that is always rolled
// back. JSON output is returned as row maps, other formats as plain text.
func Explain(ctx context.Context, q Querier, query string, opts ExplainOptions) (any, error) {
	clause, format := opts.Clause()

	tx, err := q.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	// always rollback, no inserts / updates / any side effects should be enabled
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, "EXPLAIN "+clause+" "+query)
	if err != nil {
		return nil, err
	}

	if format == "json" {
		results, _, err := database.RowMaps(rows)
		return results, err
	}

	defer rows.Close()
	var output strings.Builder
	for rows.Next() {
		var line string
		if err := rows.Scan(&line); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		output.WriteString(line)
		output.WriteString("\n")
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return output.String(), nil
}
