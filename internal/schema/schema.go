// Package schema extracts table structure from a PostgreSQL database.
package schema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the subset of a pgx pool used for introspection.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

// DefaultSchema is used when callers leave the schema name empty.
const DefaultSchema = "public"

// Column is a table column as seen by the analysis and diagram code.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// ForeignKey is a single-column reference to another table. Nullable mirrors
// the nullability of the local column.
type ForeignKey struct {
	Column           string `json:"column"`
	ReferencesTable  string `json:"references_table"`
	ReferencesColumn string `json:"references_column"`
	Nullable         bool   `json:"nullable"`
}

// Table describes one base table.
type Table struct {
	Name        string       `json:"-"`
	Columns     []Column     `json:"columns"`
	PrimaryKey  []string     `json:"primary_key"`
	ForeignKeys []ForeignKey `json:"foreign_keys"`
}

// Schema is the ordered set of tables in one PostgreSQL schema.
type Schema struct {
	Tables []Table
}

// Table returns the named table.
func (s *Schema) Table(name string) (*Table, bool) {
	for i := range s.Tables {
		if s.Tables[i].Name == name {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// Has reports whether the schema contains the named table.
func (s *Schema) Has(name string) bool {
	_, ok := s.Table(name)
	return ok
}

// MarshalJSON encodes the schema as an object keyed by table name.
func (s Schema) MarshalJSON() ([]byte, error) {
	m := make(map[string]Table, len(s.Tables))
	for _, t := range s.Tables {
		m[t.Name] = t
	}
	return json.Marshal(m)
}

// ColumnNullable returns the nullability of the named column, true when the
// column is unknown.
func (t *Table) ColumnNullable(name string) bool {
	for _, c := range t.Columns {
		if c.Name == name {
			return c.Nullable
		}
	}
	return true
}

func schemaOrDefault(name string) string {
	if name == "" {
		return DefaultSchema
	}
	return name
}

// Extract reads every base table in schemaName together with its columns,
// primary key and foreign keys.
func Extract(ctx context.Context, q Querier, schemaName string) (*Schema, error) {
	schemaName = schemaOrDefault(schemaName)

	names, err := ListBaseTables(ctx, q, schemaName)
	if err != nil {
		return nil, err
	}

	s := &Schema{Tables: make([]Table, 0, len(names))}
	for _, name := range names {
		table := Table{
			Name:        name,
			Columns:     []Column{},
			PrimaryKey:  []string{},
			ForeignKeys: []ForeignKey{},
		}

		if table.Columns, err = columns(ctx, q, schemaName, name); err != nil {
			return nil, err
		}
		if table.PrimaryKey, err = primaryKey(ctx, q, schemaName, name); err != nil {
			return nil, err
		}
		if table.ForeignKeys, err = foreignKeys(ctx, q, schemaName, &table); err != nil {
			return nil, err
		}
		s.Tables = append(s.Tables, table)
	}
	return s, nil
}

// ListBaseTables returns the names of the base tables in schemaName, sorted.
func ListBaseTables(ctx context.Context, q Querier, schemaName string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT table_name::text
		FROM information_schema.tables
		WHERE table_schema = $1
		AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`, schemaOrDefault(schemaName))
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan table name: %w", err)
	}
	return names, nil
}

func columns(ctx context.Context, q Querier, schemaName, table string) ([]Column, error) {
	rows, err := q.Query(ctx, `
		SELECT column_name::text, data_type::text, is_nullable::text
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close()

	cols := []Column{}
	for rows.Next() {
		var name, dataType, isNullable string
		if err := rows.Scan(&name, &dataType, &isNullable); err != nil {
			return nil, fmt.Errorf("failed to scan column: %w", err)
		}
		cols = append(cols, Column{Name: name, Type: dataType, Nullable: isNullable == "YES"})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return cols, nil
}

func primaryKey(ctx context.Context, q Querier, schemaName, table string) ([]string, error) {
	rows, err := q.Query(ctx, `
		SELECT a.attname::text
		FROM pg_index i
		JOIN pg_attribute a ON a.attrelid = i.indrelid
			AND a.attnum = ANY(i.indkey)
		WHERE i.indrelid = format('%I.%I', $1::text, $2::text)::regclass
		AND i.indisprimary
		ORDER BY array_position(i.indkey::int2[], a.attnum)
	`, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read primary key of %s: %w", table, err)
	}
	pk, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan primary key column: %w", err)
	}
	if pk == nil {
		pk = []string{}
	}
	return pk, nil
}

func foreignKeys(ctx context.Context, q Querier, schemaName string, table *Table) ([]ForeignKey, error) {
	rows, err := q.Query(ctx, `
		SELECT
			kcu.column_name::text,
			ccu.table_name::text,
			ccu.column_name::text
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name
			AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = $1
			AND tc.table_name = $2
		ORDER BY tc.constraint_name, kcu.ordinal_position
	`, schemaName, table.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to read foreign keys of %s: %w", table.Name, err)
	}
	defer rows.Close()

	fks := []ForeignKey{}
	for rows.Next() {
		var fk ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencesTable, &fk.ReferencesColumn); err != nil {
			return nil, fmt.Errorf("failed to scan foreign key: %w", err)
		}
		fk.Nullable = table.ColumnNullable(fk.Column)
		fks = append(fks, fk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return fks, nil
}
