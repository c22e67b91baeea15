package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

func cols(names ...string) []schema.Column {
	out := make([]schema.Column, len(names))
	for i, n := range names {
		out[i] = schema.Column{Name: n, Type: "integer"}
	}
	return out
}

func marketplace() *schema.Schema {
	return &schema.Schema{Tables: []schema.Table{
		{
			Name:       "category",
			Columns:    cols("id", "name"),
			PrimaryKey: []string{"id"},
		},
		{
			Name:       "listings",
			Columns:    cols("id", "user_id", "buyer_id", "category_id", "title"),
			PrimaryKey: []string{"id"},
			ForeignKeys: []schema.ForeignKey{
				{Column: "user_id", ReferencesTable: "users", ReferencesColumn: "id", Nullable: false},
				{Column: "buyer_id", ReferencesTable: "users", ReferencesColumn: "id", Nullable: true},
			},
		},
		{
			Name:       "post_tags",
			Columns:    cols("post_id", "tag_id"),
			PrimaryKey: []string{"post_id", "tag_id"},
			ForeignKeys: []schema.ForeignKey{
				{Column: "post_id", ReferencesTable: "posts", ReferencesColumn: "id"},
				{Column: "tag_id", ReferencesTable: "tags", ReferencesColumn: "id"},
			},
		},
		{
			Name:    "posts",
			Columns: cols("id", "user_id", "title"),
			ForeignKeys: []schema.ForeignKey{
				{Column: "user_id", ReferencesTable: "users", ReferencesColumn: "id"},
			},
		},
		{Name: "tags", Columns: cols("id", "name")},
		{Name: "users", Columns: cols("id", "username")},
	}}
}

func TestDetectJunctionTables(t *testing.T) {
	tests := []struct {
		name   string
		schema *schema.Schema
		want   []string
	}{
		{name: "empty schema", schema: &schema.Schema{}, want: []string{}},
		{name: "two fks and few columns", schema: marketplace(), want: []string{"post_tags"}},
		{
			name: "five columns is too wide",
			schema: &schema.Schema{Tables: []schema.Table{{
				Name:    "friendships",
				Columns: cols("id", "user_id", "friend_id", "status", "created_at"),
				ForeignKeys: []schema.ForeignKey{
					{Column: "user_id", ReferencesTable: "users", ReferencesColumn: "id"},
					{Column: "friend_id", ReferencesTable: "users", ReferencesColumn: "id"},
				},
			}}},
			want: []string{},
		},
		{
			name: "four columns still counts",
			schema: &schema.Schema{Tables: []schema.Table{{
				Name:    "enrollments",
				Columns: cols("id", "student_id", "course_id", "enrolled_at"),
				ForeignKeys: []schema.ForeignKey{
					{Column: "student_id", ReferencesTable: "students", ReferencesColumn: "id"},
					{Column: "course_id", ReferencesTable: "courses", ReferencesColumn: "id"},
				},
			}}},
			want: []string{"enrollments"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectJunctionTables(tt.schema))
		})
	}
}

func TestSuggestJoins(t *testing.T) {
	joins := SuggestJoins(marketplace())
	assert.Len(t, joins, 5, "one join per foreign key")

	assert.Equal(t, Join{
		LeftTable:     "listings",
		RightTable:    "users",
		JoinCondition: "listings.user_id = users.id",
		JoinType:      InnerJoin,
	}, joins[0])
	assert.Equal(t, Join{
		LeftTable:     "listings",
		RightTable:    "users",
		JoinCondition: "listings.buyer_id = users.id",
		JoinType:      LeftJoin,
	}, joins[1])
	assert.Equal(t, "post_tags.tag_id = tags.id", joins[3].JoinCondition)

	assert.Empty(t, SuggestJoins(&schema.Schema{}))
}

func TestDetectImplicitRelationships(t *testing.T) {
	rels := DetectImplicitRelationships(marketplace())

	assert.Equal(t, []ImplicitRelationship{{
		Table:                    "listings",
		Column:                   "category_id",
		PotentialReferences:      "category",
		PotentialReferenceColumn: "id",
	}}, rels, "declared fks and unknown targets are skipped")

	t.Run("bare suffix is ignored", func(t *testing.T) {
		s := &schema.Schema{Tables: []schema.Table{{Name: "odd", Columns: cols("id", "_id")}}}
		assert.Empty(t, DetectImplicitRelationships(s))
	})
}

func TestAnalyze(t *testing.T) {
	r := Analyze(marketplace())
	assert.Equal(t, []string{"post_tags"}, r.JunctionTables)
	assert.Len(t, r.ImplicitRelationships, 1)
	assert.Len(t, r.SuggestedJoins, 5)
}
