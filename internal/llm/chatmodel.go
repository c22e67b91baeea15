package llm

import (
	"context"

	"github.com/prasanna00019/MCP-ToolHub/internal/agent"
)

// ChatModel adapts Client to the agent's Model interface.
type ChatModel struct {
	client *Client
}

// NewChatModel returns a model backed by client.
func NewChatModel(client *Client) *ChatModel {
	return &ChatModel{client: client}
}

// Complete sends the transcript to /api/chat. Descriptors in req.Tools are
// advertised as native function tools.
func (m *ChatModel) Complete(ctx context.Context, req *agent.ModelRequest) (*agent.Completion, error) {
	messages := make([]Message, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = Message{Role: string(msg.Role), Content: msg.Content}
		for _, call := range msg.ToolCalls {
			var tc ToolCall
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Args
			messages[i].ToolCalls = append(messages[i].ToolCalls, tc)
		}
	}

	var tools []Tool
	for _, d := range req.Tools {
		params := d.InputSchema
		if params == nil {
			params = map[string]any{"type": "object"}
		}
		tools = append(tools, Tool{
			Type:     "function",
			Function: ToolFunction{Name: d.Name, Description: d.Description, Parameters: params},
		})
	}

	reply, err := m.client.Chat(ctx, messages, tools)
	if err != nil {
		return nil, err
	}

	out := &agent.Completion{Text: reply.Content}
	for _, tc := range reply.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, agent.ToolCall{Name: tc.Function.Name, Args: tc.Function.Arguments})
	}
	return out, nil
}
