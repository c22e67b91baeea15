package llm

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

func testSchema() *schema.Schema {
	return &schema.Schema{Tables: []schema.Table{
		{
			Name:       "users",
			Columns:    []schema.Column{{Name: "id", Type: "integer"}, {Name: "email", Type: "text"}},
			PrimaryKey: []string{"id"},
		},
	}}
}

func TestExplainSchemaJSON(t *testing.T) {
	f := &fakeOllama{generate: `{"business_explanation": "user accounts", "insights": ["small"]}`}
	a := NewAnalyzer(newTestClient(t, f, nil))

	out, err := a.ExplainSchema(context.Background(), testSchema())
	require.NoError(t, err)
	assert.Equal(t, "user accounts", out["business_explanation"])
	assert.Equal(t, []any{"small"}, out["insights"])

	require.Len(t, f.prompts, 1)
	assert.Contains(t, f.prompts[0].Prompt, "You are a senior database architect.")
	assert.Contains(t, f.prompts[0].Prompt, `"users"`)
}

func TestExplainSchemaFenced(t *testing.T) {
	f := &fakeOllama{generate: "```json\n{\"business_explanation\": \"blog\"}\n```"}
	a := NewAnalyzer(newTestClient(t, f, nil))

	out, err := a.ExplainSchema(context.Background(), testSchema())
	require.NoError(t, err)
	assert.Equal(t, "blog", out["business_explanation"])
}

func TestExplainSchemaPlainText(t *testing.T) {
	f := &fakeOllama{generate: "This looks like a user directory."}
	a := NewAnalyzer(newTestClient(t, f, nil))

	out, err := a.ExplainSchema(context.Background(), testSchema())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"llm_analysis": "This looks like a user directory."}, out)
}

func TestExplainSchemaUnavailable(t *testing.T) {
	a := NewAnalyzer(newTestClient(t, &fakeOllama{status: http.StatusNotFound}, nil))

	_, err := a.ExplainSchema(context.Background(), testSchema())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to call Ollama")
}

func TestIsAvailable(t *testing.T) {
	assert.True(t, NewAnalyzer(newTestClient(t, &fakeOllama{models: []string{"llama3"}}, nil)).IsAvailable(context.Background()))
	assert.False(t, NewAnalyzer(newTestClient(t, &fakeOllama{models: []string{"mistral"}}, nil)).IsAvailable(context.Background()))
	assert.False(t, NewAnalyzer(newTestClient(t, &fakeOllama{status: http.StatusBadGateway}, nil)).IsAvailable(context.Background()))
}

func TestStripFence(t *testing.T) {
	tests := map[string]string{
		"{}":                  "{}",
		"```\n{\"a\":1}\n```": `{"a":1}`,
		"```json {} ```":      "{}",
		"  plain  ":           "plain",
		"```":                 "```",
	}
	for in, want := range tests {
		assert.Equal(t, want, stripFence(in), in)
	}
}
