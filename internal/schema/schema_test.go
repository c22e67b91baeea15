package schema

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasanna00019/MCP-ToolHub/internal/testdb"
)

var db *testdb.DB

func TestMain(m *testing.M) {
	var err error
	db, err = testdb.Start(5561)
	if err != nil {
		log.Fatalf("Failed to start test database: %v", err)
	}

	code := m.Run()

	if err := db.Close(); err != nil {
		log.Printf("Failed to stop test database: %v", err)
	}
	os.Exit(code)
}

func TestExtract(t *testing.T) {
	ctx := context.Background()

	s, err := Extract(ctx, db.Pool, "")
	require.NoError(t, err)

	names := make([]string, len(s.Tables))
	for i, tbl := range s.Tables {
		names[i] = tbl.Name
	}
	assert.Equal(t, testdb.Tables, names, "base tables sorted, views excluded")

	t.Run("columns in ordinal order", func(t *testing.T) {
		users, ok := s.Table("users")
		require.True(t, ok)

		var cols []string
		for _, c := range users.Columns {
			cols = append(cols, c.Name)
		}
		assert.Equal(t, []string{"id", "username", "email", "first_name", "last_name", "bio", "created_at"}, cols)
		assert.False(t, users.ColumnNullable("username"))
		assert.True(t, users.ColumnNullable("bio"))
		assert.Equal(t, []string{"id"}, users.PrimaryKey)
		assert.Empty(t, users.ForeignKeys)
	})

	t.Run("composite primary key", func(t *testing.T) {
		postTags, ok := s.Table("post_tags")
		require.True(t, ok)
		assert.Equal(t, []string{"post_id", "tag_id"}, postTags.PrimaryKey)
		assert.Len(t, postTags.ForeignKeys, 2)
	})

	t.Run("foreign key nullability follows the column", func(t *testing.T) {
		listings, ok := s.Table("listings")
		require.True(t, ok)

		byColumn := map[string]ForeignKey{}
		for _, fk := range listings.ForeignKeys {
			byColumn[fk.Column] = fk
		}
		require.Len(t, byColumn, 2, "category_id carries no declared foreign key")

		assert.Equal(t, ForeignKey{Column: "user_id", ReferencesTable: "users", ReferencesColumn: "id", Nullable: false}, byColumn["user_id"])
		assert.Equal(t, ForeignKey{Column: "buyer_id", ReferencesTable: "users", ReferencesColumn: "id", Nullable: true}, byColumn["buyer_id"])
	})

	t.Run("json keyed by table name", func(t *testing.T) {
		data, err := json.Marshal(s)
		require.NoError(t, err)

		var decoded map[string]map[string]any
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Len(t, decoded, len(testdb.Tables))
		assert.Contains(t, decoded["posts"], "foreign_keys")
	})

	t.Run("unknown schema is empty", func(t *testing.T) {
		empty, err := Extract(ctx, db.Pool, "does_not_exist")
		require.NoError(t, err)
		assert.Empty(t, empty.Tables)
		assert.False(t, empty.Has("users"))
	})
}

func TestListRelations(t *testing.T) {
	ctx := context.Background()

	tables, err := ListRelations(ctx, db.Pool, "public", false)
	require.NoError(t, err)
	assert.Len(t, tables, len(testdb.Tables))

	withViews, err := ListRelations(ctx, db.Pool, "public", true)
	require.NoError(t, err)
	assert.Len(t, withViews, len(testdb.Tables)+1)

	found := false
	for _, r := range withViews {
		if r.Name == "post_stats" {
			found = true
			assert.Equal(t, "VIEW", r.Type)
		}
	}
	assert.True(t, found, "post_stats view should be listed")
}

func TestDescribeColumns(t *testing.T) {
	ctx := context.Background()

	cols, err := DescribeColumns(ctx, db.Pool, "", "listings")
	require.NoError(t, err)
	require.Len(t, cols, 8)

	title := cols[4]
	assert.Equal(t, "title", title.Name)
	assert.Equal(t, "character varying", title.DataType)
	require.NotNil(t, title.MaxLength)
	assert.EqualValues(t, 200, *title.MaxLength)
	assert.Equal(t, "NO", title.IsNullable)

	require.NotNil(t, cols[0].Default)
	assert.Contains(t, *cols[0].Default, "nextval")

	missing, err := DescribeColumns(ctx, db.Pool, "", "nonexistent_table")
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestConstraints(t *testing.T) {
	ctx := context.Background()

	constraints, err := Constraints(ctx, db.Pool, "public", "friendships")
	require.NoError(t, err)

	types := map[string]int{}
	var checks []string
	for _, c := range constraints {
		types[c.Type]++
		if c.Type == "CHECK" && c.CheckClause != nil {
			checks = append(checks, *c.CheckClause)
		}
	}
	assert.Positive(t, types["PRIMARY KEY"])
	assert.Positive(t, types["FOREIGN KEY"])
	assert.Positive(t, types["UNIQUE"])

	joined := strings.Join(checks, " ")
	assert.Contains(t, joined, "friend_id")
}

func TestIndexes(t *testing.T) {
	ctx := context.Background()

	indexes, err := Indexes(ctx, db.Pool, "public", "users")
	require.NoError(t, err)

	byName := map[string]IndexColumn{}
	for _, ix := range indexes {
		byName[ix.IndexName] = ix
	}

	require.Contains(t, byName, "users_pkey")
	assert.True(t, byName["users_pkey"].IsPrimary)
	assert.Equal(t, "btree", byName["users_pkey"].IndexType)

	require.Contains(t, byName, "idx_users_email")
	assert.Equal(t, "email", byName["idx_users_email"].ColumnName)
	assert.False(t, byName["idx_users_email"].IsUnique)
}

func TestExplainOptionsClause(t *testing.T) {
	no := false
	yes := true

	tests := []struct {
		name   string
		opts   ExplainOptions
		clause string
		format string
	}{
		{
			name:   "defaults",
			opts:   ExplainOptions{},
			clause: "(ANALYZE true, COSTS true, SUMMARY true, FORMAT JSON, TIMING true)",
			format: "json",
		},
		{
			name:   "plain explain drops timing",
			opts:   ExplainOptions{Analyze: &no, Format: "text"},
			clause: "(ANALYZE false, COSTS true, SUMMARY true, FORMAT TEXT)",
			format: "text",
		},
		{
			name:   "verbose and buffers",
			opts:   ExplainOptions{Verbose: &yes, Buffers: &yes, Timing: &no, Format: "YAML"},
			clause: "(ANALYZE true, COSTS true, SUMMARY true, FORMAT YAML, VERBOSE true, BUFFERS true, TIMING false)",
			format: "yaml",
		},
		{
			name:   "unknown format falls back to json",
			opts:   ExplainOptions{Format: "html"},
			clause: "(ANALYZE true, COSTS true, SUMMARY true, FORMAT JSON, TIMING true)",
			format: "json",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clause, format := tt.opts.Clause()
			assert.Equal(t, tt.clause, clause)
			assert.Equal(t, tt.format, format)
		})
	}
}

func TestExplain(t *testing.T) {
	ctx := context.Background()

	t.Run("json plan", func(t *testing.T) {
		out, err := Explain(ctx, db.Pool, "SELECT * FROM users WHERE id = 1", ExplainOptions{})
		require.NoError(t, err)

		rows, ok := out.([]map[string]any)
		require.True(t, ok)
		require.Len(t, rows, 1)
		assert.Contains(t, rows[0], "QUERY PLAN")
	})

	t.Run("text plan", func(t *testing.T) {
		no := false
		out, err := Explain(ctx, db.Pool, "SELECT count(*) FROM posts", ExplainOptions{Analyze: &no, Format: "text"})
		require.NoError(t, err)

		text, ok := out.(string)
		require.True(t, ok)
		assert.Contains(t, text, "Aggregate")
	})

	t.Run("analyzed writes are rolled back", func(t *testing.T) {
		_, err := Explain(ctx, db.Pool, "DELETE FROM comments", ExplainOptions{})
		require.NoError(t, err)

		var count int
		require.NoError(t, db.Pool.QueryRow(ctx, "SELECT count(*) FROM comments").Scan(&count))
		assert.Equal(t, testdb.NumComments, count)
	})

	t.Run("invalid sql", func(t *testing.T) {
		_, err := Explain(ctx, db.Pool, "SELECT * FROM nowhere", ExplainOptions{})
		assert.Error(t, err)
	})
}
