package diagram

import (
	"fmt"
	"strings"

	"github.com/prasanna00019/MCP-ToolHub/internal/analysis"
	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

// Markdown documents the whole schema: an overview, a table index and one
// section per table.
func Markdown(s *schema.Schema) string {
	var b strings.Builder

	relationships := 0
	for _, t := range s.Tables {
		relationships += len(t.ForeignKeys)
	}

	b.WriteString("# Database Documentation\n\n")
	b.WriteString("## Overview\n\n")
	fmt.Fprintf(&b, "- Tables: %d\n", len(s.Tables))
	fmt.Fprintf(&b, "- Foreign key relationships: %d\n", relationships)
	if junctions := analysis.DetectJunctionTables(s); len(junctions) > 0 {
		fmt.Fprintf(&b, "- Junction tables: %s\n", strings.Join(junctions, ", "))
	}
	b.WriteString("\n")

	if len(s.Tables) == 0 {
		b.WriteString("_No tables found._\n")
		return b.String()
	}

	b.WriteString("## Tables\n\n")
	for _, t := range s.Tables {
		fmt.Fprintf(&b, "- [%s](#table-%s)\n", t.Name, strings.ReplaceAll(t.Name, "_", "-"))
	}
	b.WriteString("\n")

	for _, t := range s.Tables {
		b.WriteString(TableDocumentation(t))
		b.WriteString("\n")
	}
	return b.String()
}

// TableDocumentation documents a single table.
func TableDocumentation(t schema.Table) string {
	var b strings.Builder

	pk := make(map[string]bool, len(t.PrimaryKey))
	for _, c := range t.PrimaryKey {
		pk[c] = true
	}
	fks := make(map[string]schema.ForeignKey, len(t.ForeignKeys))
	for _, fk := range t.ForeignKeys {
		fks[fk.Column] = fk
	}

	fmt.Fprintf(&b, "### Table: %s\n\n", t.Name)
	b.WriteString("| Column | Type | Nullable | Key |\n")
	b.WriteString("|--------|------|----------|-----|\n")
	for _, col := range t.Columns {
		nullable := "NO"
		if col.Nullable {
			nullable = "YES"
		}
		var keys []string
		if pk[col.Name] {
			keys = append(keys, "PK")
		}
		if fk, ok := fks[col.Name]; ok {
			keys = append(keys, fmt.Sprintf("FK -> %s.%s", fk.ReferencesTable, fk.ReferencesColumn))
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", col.Name, col.Type, nullable, strings.Join(keys, ", "))
	}
	b.WriteString("\n")

	if len(t.PrimaryKey) > 0 {
		fmt.Fprintf(&b, "**Primary key:** %s\n\n", strings.Join(t.PrimaryKey, ", "))
	} else {
		b.WriteString("**Primary key:** none\n\n")
	}

	if len(t.ForeignKeys) > 0 {
		b.WriteString("**Foreign keys:**\n\n")
		for _, fk := range t.ForeignKeys {
			optional := ""
			if fk.Nullable {
				optional = " (optional)"
			}
			fmt.Fprintf(&b, "- `%s` references `%s.%s`%s\n", fk.Column, fk.ReferencesTable, fk.ReferencesColumn, optional)
		}
		b.WriteString("\n")
	}
	return b.String()
}
