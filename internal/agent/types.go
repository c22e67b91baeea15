// Package agent runs the tool-calling loop between a language model and a
// tool host. The model answers in text; tool requests are either structured
// calls or [TOOL: name with args: {...}] directives embedded in that text.
package agent

import "context"

// Role tags a transcript message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type (
	// Message is one entry of the conversation transcript.
	Message struct {
		Role    Role
		Content string
		// ToolCalls holds the structured calls an assistant turn requested.
		ToolCalls []ToolCall
	}

	// ToolDescriptor is a tool advertised by the host.
	ToolDescriptor struct {
		Name        string
		Description string
		InputSchema any
	}

	// ToolCall is a request to run a tool with decoded arguments.
	ToolCall struct {
		Name string
		Args map[string]any
	}

	// ToolResult is the text content produced by a tool. IsError is set when
	// the host reported a tool-level failure but still produced content.
	ToolResult struct {
		Content string
		IsError bool
	}

	// ModelRequest is sent to the model on every iteration. Tools is only
	// populated in native mode.
	ModelRequest struct {
		Messages []Message
		Tools    []ToolDescriptor
	}

	// Completion is the model's answer. When ToolCalls is empty the Text is
	// scanned for directives.
	Completion struct {
		Text      string
		ToolCalls []ToolCall
	}
)

// Model produces a completion for a transcript.
type Model interface {
	Complete(ctx context.Context, req *ModelRequest) (*Completion, error)
}

// ToolHost lists and runs tools.
type ToolHost interface {
	ListTools(ctx context.Context) ([]ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error)
}
