package agent

import (
	"encoding/json"
	"fmt"
	"strings"
)

const systemPromptTemplate = `You are a helpful assistant with access to the following tools:

%s

When you need to use a tool, format it as: [TOOL: tool_name with args: {json_args}]
After using a tool, you will receive the result and can continue your response.
Always try to use the appropriate tools to answer user questions accurately.`

// BuildCatalog renders one entry per tool in the order given:
//
//	- name: description
//	  Input schema: {...}
func BuildCatalog(tools []ToolDescriptor) string {
	entries := make([]string, len(tools))
	for i, t := range tools {
		entries[i] = fmt.Sprintf("- %s: %s\n  Input schema: %s", t.Name, t.Description, schemaText(t.InputSchema))
	}
	return strings.Join(entries, "\n")
}

// SystemPrompt returns the system message that introduces the catalog and
// the directive syntax.
func SystemPrompt(tools []ToolDescriptor) string {
	return fmt.Sprintf(systemPromptTemplate, BuildCatalog(tools))
}

func schemaText(schema any) string {
	switch v := schema.(type) {
	case nil:
		return "{}"
	case string:
		return v
	case json.RawMessage:
		return string(v)
	}
	b, err := json.Marshal(schema)
	if err != nil {
		return fmt.Sprintf("%v", schema)
	}
	return string(b)
}
