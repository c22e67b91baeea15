// Package analysis derives relationship hints from an extracted schema.
package analysis

import (
	"fmt"
	"strings"

	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

// Join types chosen from foreign key nullability.
const (
	InnerJoin = "INNER JOIN"
	LeftJoin  = "LEFT JOIN"
)

// Join is a suggested join along a declared foreign key.
type Join struct {
	LeftTable     string `json:"left_table"`
	RightTable    string `json:"right_table"`
	JoinCondition string `json:"join_condition"`
	JoinType      string `json:"join_type"`
}

// ImplicitRelationship is a *_id column that names an existing table but has
// no declared foreign key.
type ImplicitRelationship struct {
	Table                    string `json:"table"`
	Column                   string `json:"column"`
	PotentialReferences      string `json:"potential_references"`
	PotentialReferenceColumn string `json:"potential_reference_column"`
}

// Report bundles every heuristic for one schema.
type Report struct {
	JunctionTables        []string               `json:"junction_tables"`
	ImplicitRelationships []ImplicitRelationship `json:"implicit_relationships"`
	SuggestedJoins        []Join                 `json:"suggested_joins"`
}

// Analyze runs all heuristics over s.
func Analyze(s *schema.Schema) Report {
	return Report{
		JunctionTables:        DetectJunctionTables(s),
		ImplicitRelationships: DetectImplicitRelationships(s),
		SuggestedJoins:        SuggestJoins(s),
	}
}

// DetectJunctionTables returns tables with exactly two foreign keys and at
// most four columns, in schema order.
func DetectJunctionTables(s *schema.Schema) []string {
	junctions := []string{}
	for _, t := range s.Tables {
		if len(t.ForeignKeys) == 2 && len(t.Columns) <= 4 {
			junctions = append(junctions, t.Name)
		}
	}
	return junctions
}

// SuggestJoins returns one join per foreign key. Nullable columns get a LEFT
// JOIN so rows without a reference survive.
func SuggestJoins(s *schema.Schema) []Join {
	joins := []Join{}
	for _, t := range s.Tables {
		for _, fk := range t.ForeignKeys {
			joinType := InnerJoin
			if fk.Nullable {
				joinType = LeftJoin
			}
			joins = append(joins, Join{
				LeftTable:     t.Name,
				RightTable:    fk.ReferencesTable,
				JoinCondition: fmt.Sprintf("%s.%s = %s.%s", t.Name, fk.Column, fk.ReferencesTable, fk.ReferencesColumn),
				JoinType:      joinType,
			})
		}
	}
	return joins
}

// DetectImplicitRelationships finds columns named <table>_id where <table>
// exists and the column is not already a declared foreign key.
func DetectImplicitRelationships(s *schema.Schema) []ImplicitRelationship {
	rels := []ImplicitRelationship{}
	for _, t := range s.Tables {
		for _, col := range t.Columns {
			target, ok := strings.CutSuffix(col.Name, "_id")
			if !ok || target == "" || !s.Has(target) || isForeignKey(t, col.Name) {
				continue
			}
			rels = append(rels, ImplicitRelationship{
				Table:                    t.Name,
				Column:                   col.Name,
				PotentialReferences:      target,
				PotentialReferenceColumn: "id",
			})
		}
	}
	return rels
}

func isForeignKey(t schema.Table, column string) bool {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return true
		}
	}
	return false
}
