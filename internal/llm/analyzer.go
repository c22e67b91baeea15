package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

const explainPrompt = `You are a senior database architect.

Analyze the following PostgreSQL schema JSON.

Tasks:
1. Explain what this database likely does in business terms.
2. Identify relationships (explicit or implicit).
3. Detect possible foreign keys based on column naming like *_id.
4. Suggest join types (INNER vs LEFT).
5. Generate an improved Mermaid ER diagram.
6. Provide insights about structure quality.

Return response in structured JSON with keys:
- business_explanation (string)
- detected_relationships (list of dicts)
- join_recommendations (list of dicts)
- mermaid_erd (string)
- insights (list of strings)

Schema:
%s
`

// Analyzer asks the model to explain a schema.
type Analyzer struct {
	client *Client
}

// NewAnalyzer returns an analyzer backed by client.
func NewAnalyzer(client *Client) *Analyzer {
	return &Analyzer{client: client}
}

// Client returns the underlying Ollama client.
func (a *Analyzer) Client() *Client {
	return a.client
}

// ExplainSchema returns the model's structured analysis of s. Answers that
// are not a JSON object come back as {"llm_analysis": text}.
func (a *Analyzer) ExplainSchema(ctx context.Context, s *schema.Schema) (map[string]any, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}

	text, err := a.client.Generate(ctx, fmt.Sprintf(explainPrompt, data))
	if err != nil {
		return nil, fmt.Errorf("failed to call Ollama: %w", err)
	}

	var analysis map[string]any
	if err := json.Unmarshal([]byte(stripFence(text)), &analysis); err != nil || analysis == nil {
		return map[string]any{"llm_analysis": text}, nil
	}
	return analysis, nil
}

// IsAvailable reports whether the server answers and has the configured
// model installed.
func (a *Analyzer) IsAvailable(ctx context.Context) bool {
	models, err := a.client.Models(ctx)
	if err != nil {
		return false
	}
	return slices.Contains(models, a.client.Model())
}

// stripFence removes a surrounding ``` or ```json fence.
func stripFence(text string) string {
	t := strings.TrimSpace(text)
	if !strings.HasPrefix(t, "```") || !strings.HasSuffix(t, "```") || len(t) < 6 {
		return t
	}
	t = strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```")
	t = strings.TrimPrefix(t, "json")
	return strings.TrimSpace(t)
}
