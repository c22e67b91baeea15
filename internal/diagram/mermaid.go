// Package diagram turns an extracted schema into Mermaid diagrams and
// Markdown documentation, and renders diagrams to image files.
package diagram

import (
	"fmt"
	"strings"

	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

var erdTypes = map[string]string{
	"integer":                     "int",
	"bigint":                      "long",
	"smallint":                    "short",
	"numeric":                     "decimal",
	"decimal":                     "decimal",
	"real":                        "float",
	"double precision":            "double",
	"character varying":           "string",
	"varchar":                     "string",
	"char":                        "char",
	"text":                        "text",
	"boolean":                     "bool",
	"date":                        "date",
	"time":                        "time",
	"timestamp":                   "datetime",
	"timestamp without time zone": "datetime",
	"json":                        "json",
	"jsonb":                       "json",
	"uuid":                        "uuid",
}

// erdType maps a PostgreSQL type to a short Mermaid attribute type. Unknown
// types keep their name with spaces replaced.
func erdType(pgType string) string {
	t := strings.ToLower(pgType)
	if mapped, ok := erdTypes[t]; ok {
		return mapped
	}
	return strings.ReplaceAll(t, " ", "_")
}

// MermaidERD renders s as an erDiagram. Relationships use ||--o| for
// nullable foreign keys and ||--| otherwise, labelled with the column.
func MermaidERD(s *schema.Schema) string {
	lines := []string{"erDiagram"}

	for _, t := range s.Tables {
		lines = append(lines, fmt.Sprintf("  %s {", t.Name))
		for _, col := range t.Columns {
			lines = append(lines, fmt.Sprintf("    %s %s", erdType(col.Type), col.Name))
		}
		lines = append(lines, "  }")
	}

	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			rel := "||--|"
			if fk.Nullable {
				rel = "||--o|"
			}
			lines = append(lines, fmt.Sprintf("  %s %s %s : %q", t.Name, rel, fk.ReferencesTable, fk.Column))
		}
	}

	return strings.Join(lines, "\n")
}

// MermaidFlowchart renders s as a left-to-right graph with one node per
// table and one labelled edge per foreign key.
func MermaidFlowchart(s *schema.Schema) string {
	lines := []string{"graph LR"}

	for _, t := range s.Tables {
		lines = append(lines, fmt.Sprintf("  %s[<b>%s</b>]", t.Name, t.Name))
		for _, fk := range t.ForeignKeys {
			lines = append(lines, fmt.Sprintf("  %s -->|%s| %s", t.Name, fk.Column, fk.ReferencesTable))
		}
	}

	return strings.Join(lines, "\n")
}
