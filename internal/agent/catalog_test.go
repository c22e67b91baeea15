package agent

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sampleTools() []ToolDescriptor {
	return []ToolDescriptor{
		{
			Name:        "list_tables",
			Description: "List tables in a schema",
			InputSchema: map[string]any{
				"type":       "object",
				"properties": map[string]any{"schema": map[string]any{"type": "string"}},
			},
		},
		{
			Name:        "crud_get_records",
			Description: "Read rows",
			InputSchema: json.RawMessage(`{"type":"object","required":["table_name"]}`),
		},
		{Name: "check_ollama_status", Description: "Model status"},
	}
}

func TestBuildCatalog(t *testing.T) {
	got := BuildCatalog(sampleTools())

	want := strings.Join([]string{
		`- list_tables: List tables in a schema`,
		`  Input schema: {"properties":{"schema":{"type":"string"}},"type":"object"}`,
		`- crud_get_records: Read rows`,
		`  Input schema: {"type":"object","required":["table_name"]}`,
		`- check_ollama_status: Model status`,
		`  Input schema: {}`,
	}, "\n")
	assert.Equal(t, want, got)
}

func TestBuildCatalogKeepsOrderAndIsStable(t *testing.T) {
	tools := sampleTools()
	first := BuildCatalog(tools)
	assert.Equal(t, first, BuildCatalog(tools))

	reversed := []ToolDescriptor{tools[2], tools[1], tools[0]}
	out := BuildCatalog(reversed)
	assert.Less(t, strings.Index(out, "check_ollama_status"), strings.Index(out, "list_tables"))

	assert.Empty(t, BuildCatalog(nil))
}

func TestSystemPrompt(t *testing.T) {
	prompt := SystemPrompt(sampleTools())

	assert.True(t, strings.HasPrefix(prompt, "You are a helpful assistant with access to the following tools:\n\n- list_tables:"))
	assert.Contains(t, prompt, "format it as: [TOOL: tool_name with args: {json_args}]")
	assert.True(t, strings.HasSuffix(prompt, "answer user questions accurately."))
}
