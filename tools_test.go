package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasanna00019/MCP-ToolHub/internal/agent"
	"github.com/prasanna00019/MCP-ToolHub/internal/config"
	"github.com/prasanna00019/MCP-ToolHub/internal/crud"
	"github.com/prasanna00019/MCP-ToolHub/internal/logging"
	"github.com/prasanna00019/MCP-ToolHub/internal/testdb"
	"github.com/prasanna00019/MCP-ToolHub/internal/toolhost"
)

var (
	db      *testdb.DB
	srv     *server
	diagDir string
)

const testModel = "llama3"

// fakeOllama answers /api/tags with the test model and /api/generate with
// a JSON analysis.
func fakeOllama() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/tags", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"` + testModel + `"},{"name":"mistral"}]}`))
	})
	mux.HandleFunc("/api/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"response":"{\"business_explanation\":\"A small social marketplace\"}"}`))
	})
	return mux
}

// fakeMermaid echoes the decoded diagram source back as the image body.
func fakeMermaid() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)
		if len(parts) != 2 {
			http.NotFound(w, r)
			return
		}
		source, err := base64.RawURLEncoding.DecodeString(parts[1])
		if err != nil {
			http.Error(w, "bad encoding", http.StatusBadRequest)
			return
		}
		w.Write(source)
	})
}

func TestMain(m *testing.M) {
	var err error
	db, err = testdb.Start(5563)
	if err != nil {
		log.Fatalf("Failed to start test database: %v", err)
	}

	ollama := httptest.NewServer(fakeOllama())
	mermaid := httptest.NewServer(fakeMermaid())

	diagDir, err = os.MkdirTemp("", "schemaintel-diagrams-*")
	if err != nil {
		log.Fatalf("Failed to create diagram dir: %v", err)
	}

	cfg := config.Default()
	cfg.Ollama.BaseURL = ollama.URL
	cfg.Ollama.Model = testModel
	cfg.Diagrams = config.DiagramConfig{OutputDir: diagDir, APIBase: mermaid.URL, DisableCLI: true}
	srv = newServer(db.Pool, cfg, logging.Discard())

	code := m.Run()

	ollama.Close()
	mermaid.Close()
	os.RemoveAll(diagDir)
	if err := db.Close(); err != nil {
		log.Printf("Failed to stop embedded postgres: %v", err)
	}
	os.Exit(code)
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[0])
	return text.Text
}

func decodeObject(t *testing.T, res *mcp.CallToolResult, err error) map[string]any {
	t.Helper()
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func decodeList(t *testing.T, res *mcp.CallToolResult, err error) []map[string]any {
	t.Helper()
	require.NoError(t, err)
	var out []map[string]any
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
	return out
}

func boolPtr(b bool) *bool { return &b }

func TestListTables(t *testing.T) {
	ctx := context.Background()

	t.Run("base tables", func(t *testing.T) {
		res, _, err := srv.listTables(ctx, nil, TableListArgs{})
		out := decodeObject(t, res, err)

		assert.Equal(t, "success", out["status"])
		assert.Equal(t, "public", out["schema"])
		assert.EqualValues(t, len(testdb.Tables), out["count"])

		var names []string
		for _, v := range out["tables"].([]any) {
			names = append(names, v.(string))
		}
		assert.Equal(t, testdb.Tables, names)
	})

	t.Run("with views", func(t *testing.T) {
		res, _, err := srv.listTables(ctx, nil, TableListArgs{IncludeViews: true})
		out := decodeObject(t, res, err)

		assert.EqualValues(t, len(testdb.Tables)+1, out["count"])
		types := map[string]string{}
		for _, v := range out["tables"].([]any) {
			rel := v.(map[string]any)
			types[rel["table_name"].(string)] = rel["table_type"].(string)
		}
		assert.Equal(t, "VIEW", types["post_stats"])
		assert.Equal(t, "BASE TABLE", types["users"])
	})

	t.Run("unknown schema", func(t *testing.T) {
		res, _, err := srv.listTables(ctx, nil, TableListArgs{Schema: "nonexistent"})
		out := decodeObject(t, res, err)
		assert.EqualValues(t, 0, out["count"])
		assert.Empty(t, out["tables"])
	})
}

func TestAnalyzeDatabase(t *testing.T) {
	res, _, err := srv.analyzeDatabase(context.Background(), nil, noArgs{})
	out := decodeObject(t, res, err)
	assert.False(t, res.IsError)

	assert.Equal(t, "success", out["status"])
	assert.Equal(t, []any{"post_tags"}, out["junction_tables"])

	sch := out["schema"].(map[string]any)
	assert.Len(t, sch, len(testdb.Tables))
	users := sch["users"].(map[string]any)
	assert.Equal(t, []any{"id"}, users["primary_key"])

	implicit := out["implicit_relationships"].([]any)
	require.Len(t, implicit, 1)
	assert.Equal(t, map[string]any{
		"table":                      "listings",
		"column":                     "category_id",
		"potential_references":       "category",
		"potential_reference_column": "id",
	}, implicit[0])

	var buyerJoin map[string]any
	for _, j := range out["suggested_joins"].([]any) {
		join := j.(map[string]any)
		if join["join_condition"] == "listings.buyer_id = users.id" {
			buyerJoin = join
		}
	}
	require.NotNil(t, buyerJoin)
	assert.Equal(t, "LEFT JOIN", buyerJoin["join_type"])

	assert.True(t, strings.HasPrefix(out["mermaid_erd"].(string), "erDiagram"))
	assert.True(t, strings.HasPrefix(out["mermaid_flowchart"].(string), "graph LR"))
	assert.Contains(t, out["markdown_documentation"], "# Database Documentation")
}

func TestGetTableDetails(t *testing.T) {
	ctx := context.Background()

	res, _, err := srv.getTableDetails(ctx, nil, TableNameArgs{TableName: "listings"})
	out := decodeObject(t, res, err)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "listings", out["table_name"])
	assert.Contains(t, out["documentation"], "### Table: listings")

	info := out["info"].(map[string]any)
	assert.Len(t, info["foreign_keys"], 2)

	res, _, err = srv.getTableDetails(ctx, nil, TableNameArgs{TableName: "ghosts"})
	out = decodeObject(t, res, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, "Table 'ghosts' not found", out["error"])
}

func TestCheckOllamaStatus(t *testing.T) {
	res, _, err := srv.checkOllamaStatus(context.Background(), nil, noArgs{})
	out := decodeObject(t, res, err)

	assert.Equal(t, "success", out["status"])
	assert.Equal(t, true, out["ollama_available"])
	assert.Equal(t, testModel, out["configured_model"])
	assert.Equal(t, []any{testModel, "mistral"}, out["available_models"])
	assert.Equal(t, true, out["model_available"])
}

func TestCheckOllamaStatusUnreachable(t *testing.T) {
	down := httptest.NewServer(http.NotFoundHandler())
	down.Close()

	cfg := config.Default()
	cfg.Ollama.BaseURL = down.URL
	s := newServer(db.Pool, cfg, logging.Discard())

	res, _, err := s.checkOllamaStatus(context.Background(), nil, noArgs{})
	out := decodeObject(t, res, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "error", out["status"])
	assert.Equal(t, false, out["ollama_available"])
	assert.NotEmpty(t, out["error"])
}

func TestExplainDatabase(t *testing.T) {
	res, _, err := srv.explainDatabase(context.Background(), nil, noArgs{})
	out := decodeObject(t, res, err)

	assert.Equal(t, "success", out["status"])
	analysis := out["llm_analysis"].(map[string]any)
	assert.Equal(t, "A small social marketplace", analysis["business_explanation"])
}

func TestExplainDatabaseModelMissing(t *testing.T) {
	ollama := httptest.NewServer(fakeOllama())
	defer ollama.Close()

	cfg := config.Default()
	cfg.Ollama.BaseURL = ollama.URL
	cfg.Ollama.Model = "not-installed"
	s := newServer(db.Pool, cfg, logging.Discard())

	res, _, err := s.explainDatabase(context.Background(), nil, noArgs{})
	out := decodeObject(t, res, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Ollama model 'not-installed' not available at "+ollama.URL, out["error"])
}

func TestRenderDatabaseDiagrams(t *testing.T) {
	ctx := context.Background()

	res, _, err := srv.renderDatabaseDiagrams(ctx, nil, RenderDiagramsArgs{})
	out := decodeObject(t, res, err)
	assert.Equal(t, "success", out["status"])
	assert.Equal(t, "svg", out["output_format"])

	diagrams := out["diagrams"].(map[string]any)
	assert.Equal(t, filepath.Join(diagDir, "erd_svg.svg"), diagrams["erd_svg"])
	assert.Equal(t, filepath.Join(diagDir, "flowchart_svg.svg"), diagrams["flowchart_svg"])

	erd, err := os.ReadFile(filepath.Join(diagDir, "erd_svg.svg"))
	require.NoError(t, err)
	assert.Contains(t, string(erd), "users {")

	res, _, err = srv.renderDatabaseDiagrams(ctx, nil, RenderDiagramsArgs{OutputFormat: "gif"})
	out = decodeObject(t, res, err)
	assert.True(t, res.IsError)
	assert.Contains(t, out["error"], "unsupported output format")
}

func TestRenderDatabaseDiagramsUnavailable(t *testing.T) {
	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer broken.Close()

	cfg := config.Default()
	cfg.Diagrams = config.DiagramConfig{OutputDir: t.TempDir(), APIBase: broken.URL, DisableCLI: true}
	s := newServer(db.Pool, cfg, logging.Discard())

	res, _, err := s.renderDatabaseDiagrams(context.Background(), nil, RenderDiagramsArgs{OutputFormat: "png"})
	out := decodeObject(t, res, err)
	assert.False(t, res.IsError)
	assert.Equal(t, "warning", out["status"])
	assert.Contains(t, out["installation_hint"], "npm install -g @mermaid-js/mermaid-cli")
	assert.Equal(t, []any{"erd_png", "flowchart_png"}, out["requested_diagrams"])
}

func TestGetTableSchema(t *testing.T) {
	res, _, err := srv.getTableSchema(context.Background(), nil, TableSchemaArgs{TableName: "users"})
	columns := decodeList(t, res, err)

	require.Len(t, columns, 7)
	assert.Equal(t, "id", columns[0]["column_name"])
	assert.Equal(t, "integer", columns[0]["data_type"])
	assert.Equal(t, "NO", columns[0]["is_nullable"])
	assert.Contains(t, columns[0]["default"], "nextval")

	assert.Equal(t, "username", columns[1]["column_name"])
	assert.EqualValues(t, 50, columns[1]["max_length"])

	res, _, err = srv.getTableSchema(context.Background(), nil, TableSchemaArgs{TableName: "ghosts"})
	assert.Empty(t, decodeList(t, res, err))
}

func TestGetTableConstraints(t *testing.T) {
	res, _, err := srv.getTableConstraints(context.Background(), nil, TableSchemaArgs{TableName: "friendships"})
	constraints := decodeList(t, res, err)

	types := map[string]int{}
	for _, c := range constraints {
		types[c["constraint_type"].(string)]++
	}
	assert.Positive(t, types["PRIMARY KEY"])
	assert.Positive(t, types["UNIQUE"])
	assert.Positive(t, types["CHECK"])
	assert.Equal(t, 2, types["FOREIGN KEY"])
}

func TestGetTableIndexes(t *testing.T) {
	res, _, err := srv.getTableIndexes(context.Background(), nil, TableSchemaArgs{TableName: "users"})
	indexes := decodeList(t, res, err)

	names := map[string]bool{}
	for _, idx := range indexes {
		names[idx["index_name"].(string)] = true
		assert.Equal(t, "btree", idx["index_type"])
	}
	assert.True(t, names["users_pkey"])
	assert.True(t, names["idx_users_email"])
	assert.True(t, names["idx_users_created_at"])
}

func TestExplainQuery(t *testing.T) {
	ctx := context.Background()

	t.Run("json plan", func(t *testing.T) {
		res, _, err := srv.explainQuery(ctx, nil, ExplainQueryArgs{Query: "SELECT * FROM users WHERE id = 1"})
		rows := decodeList(t, res, err)
		require.Len(t, rows, 1)
		assert.Contains(t, rows[0], "QUERY PLAN")
	})

	t.Run("text plan", func(t *testing.T) {
		res, _, err := srv.explainQuery(ctx, nil, ExplainQueryArgs{
			Query:   "SELECT count(*) FROM posts",
			Analyze: boolPtr(false),
			Format:  "text",
		})
		require.NoError(t, err)
		assert.Contains(t, resultText(t, res), "Aggregate")
	})

	t.Run("writes are rolled back", func(t *testing.T) {
		res, _, err := srv.explainQuery(ctx, nil, ExplainQueryArgs{Query: "DELETE FROM comments"})
		require.NoError(t, err)
		assert.False(t, res.IsError)

		var n int
		require.NoError(t, db.Pool.QueryRow(ctx, "SELECT count(*) FROM comments").Scan(&n))
		assert.Equal(t, testdb.NumComments, n)
	})

	t.Run("invalid query", func(t *testing.T) {
		res, _, err := srv.explainQuery(ctx, nil, ExplainQueryArgs{Query: "SELECT * FROM ghosts"})
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.True(t, strings.HasPrefix(resultText(t, res), "EXPLAIN error:"))
	})
}

func TestCRUDTools(t *testing.T) {
	ctx := context.Background()

	t.Run("count", func(t *testing.T) {
		res, _, err := srv.getRecordCount(ctx, nil, GetRecordCountArgs{TableName: "users"})
		out := decodeObject(t, res, err)
		assert.Equal(t, "success", out["status"])
		assert.Equal(t, "get_record_count", out["operation"])
		assert.EqualValues(t, testdb.NumUsers, out["result"].(map[string]any)["count"])
	})

	t.Run("filtered records", func(t *testing.T) {
		limit := 3
		res, _, err := srv.getRecords(ctx, nil, GetRecordsArgs{
			TableName:   "posts",
			WhereClause: "user_id = %s",
			WhereParams: []any{float64(1)},
			OrderBy:     "id ASC",
			Limit:       &limit,
		})
		out := decodeObject(t, res, err)
		records := out["result"].(map[string]any)["records"].([]any)
		assert.Len(t, records, 3)
		for _, r := range records {
			assert.EqualValues(t, 1, r.(map[string]any)["user_id"])
		}
	})

	t.Run("pagination defaults", func(t *testing.T) {
		res, _, err := srv.paginateData(ctx, nil, PaginateDataArgs{TableName: "tags"})
		out := decodeObject(t, res, err)
		result := out["result"].(map[string]any)
		assert.Len(t, result["records"], testdb.NumTags)
		pagination := result["pagination"].(map[string]any)
		assert.EqualValues(t, 1, pagination["current_page"])
		assert.EqualValues(t, 10, pagination["page_size"])
		assert.Equal(t, false, pagination["has_next"])
	})

	t.Run("validation errors are flagged", func(t *testing.T) {
		res, _, err := srv.getRecords(ctx, nil, GetRecordsArgs{TableName: "users; DROP TABLE users"})
		out := decodeObject(t, res, err)
		assert.True(t, res.IsError)
		assert.Equal(t, "error", out["status"])
		assert.Contains(t, out["message"], "Invalid table name")
	})

	t.Run("write lifecycle", func(t *testing.T) {
		res, _, err := srv.createTable(ctx, nil, CreateTableArgs{
			TableName: "tool_scratch",
			Columns: []crud.ColumnDef{
				{Name: "id", Type: "SERIAL"},
				{Name: "label", Type: "TEXT"},
			},
			PrimaryKey: []string{"id"},
		})
		assert.Equal(t, "success", decodeObject(t, res, err)["status"])

		res, _, err = srv.createRecord(ctx, nil, CreateRecordArgs{TableName: "tool_scratch", Values: map[string]any{"label": "a"}})
		assert.Equal(t, "success", decodeObject(t, res, err)["status"])

		res, _, err = srv.updateRecord(ctx, nil, UpdateRecordArgs{TableName: "tool_scratch", RecordID: float64(1), Values: map[string]any{"label": "b"}})
		out := decodeObject(t, res, err)
		assert.Equal(t, "success", out["status"])
		assert.EqualValues(t, 1, out["rows_affected"])

		res, _, err = srv.deleteRecord(ctx, nil, DeleteRecordArgs{TableName: "tool_scratch", RecordID: float64(42)})
		assert.Equal(t, "warning", decodeObject(t, res, err)["status"])

		res, _, err = srv.dropTable(ctx, nil, DropTableArgs{TableName: "tool_scratch"})
		out = decodeObject(t, res, err)
		assert.Equal(t, "success", out["status"])
		assert.Len(t, out["warnings"], 2)
	})
}

// connectSession serves the full tool set over in-memory transports.
func connectSession(t *testing.T) *toolhost.Session {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	serverSession, err := srv.mcpServer().Connect(ctx, serverTransport, nil)
	require.NoError(t, err)

	session, err := toolhost.Connect(ctx, clientTransport, logging.Discard())
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = session.Close()
		_ = serverSession.Close()
		cancel()
	})
	return session
}

func TestToolRegistration(t *testing.T) {
	session := connectSession(t)

	tools, err := session.ListTools(context.Background())
	require.NoError(t, err)

	names := map[string]bool{}
	for _, tool := range tools {
		names[tool.Name] = true
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Len(t, tools, 6+4+19)
	for _, name := range []string{
		"analyze_database", "explain_database", "get_table_details", "list_tables",
		"check_ollama_status", "render_database_diagrams",
		"get_table_schema", "get_table_constraints", "get_table_indexes", "explain_query",
		"crud_create_record", "crud_paginate_data", "crud_drop_table",
	} {
		assert.True(t, names[name], name)
	}
}

func TestSessionCallsOverProtocol(t *testing.T) {
	session := connectSession(t)
	ctx := context.Background()

	res, err := session.CallTool(ctx, "crud_get_record_count", map[string]any{"table_name": "tags"})
	require.NoError(t, err)
	assert.False(t, res.IsError)
	var out map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.Content), &out))
	assert.EqualValues(t, testdb.NumTags, out["result"].(map[string]any)["count"])

	res, err = session.CallTool(ctx, "crud_delete_records", map[string]any{"table_name": "tags", "where_clause": ""})
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Contains(t, res.Content, `"status": "error"`)
}

// scriptedModel replies with each entry of replies in turn.
type scriptedModel struct {
	replies  []string
	requests []*agent.ModelRequest
}

func (m *scriptedModel) Complete(ctx context.Context, req *agent.ModelRequest) (*agent.Completion, error) {
	m.requests = append(m.requests, req)
	reply := m.replies[0]
	if len(m.replies) > 1 {
		m.replies = m.replies[1:]
	}
	return &agent.Completion{Text: reply}, nil
}

func TestAgentEndToEnd(t *testing.T) {
	session := connectSession(t)

	model := &scriptedModel{replies: []string{
		`Let me count them. [TOOL: crud_get_record_count with args: {"table_name": "users"}]`,
		"There are 100 users.",
	}}
	opts := agent.OptionsFromConfig(config.Default().Agent)
	a := agent.New(model, session, opts, logging.Discard())

	answer, err := a.Process(context.Background(), "How many users are there?")
	require.NoError(t, err)

	assert.Equal(t, agent.StopComplete, answer.StopReason)
	assert.Equal(t, 2, answer.Iterations)
	assert.Equal(t, "Let me count them.\nThere are 100 users.", answer.Text)
	require.Len(t, answer.Calls, 1)
	assert.True(t, answer.Calls[0].OK)

	require.Len(t, model.requests, 2)
	assert.Contains(t, model.requests[0].Messages[0].Content, "- crud_get_record_count:")
	fed := model.requests[1].Messages
	last := fed[len(fed)-1]
	assert.Equal(t, agent.RoleUser, last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "Tool 'crud_get_record_count' result: "))
	assert.Contains(t, last.Content, `"count": 100`)
}
