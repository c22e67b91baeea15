// Package toolhost connects to the tool server over MCP and exposes it to
// the agent as a ToolHost.
package toolhost

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"os/exec"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prasanna00019/MCP-ToolHub/internal/agent"
)

const clientName = "schemaintel-client"

// Session is an initialized MCP client session.
type Session struct {
	session *mcp.ClientSession
	logger  *slog.Logger
}

// Transport builds the client transport for target: an http(s) URL selects the
// streamable HTTP transport, anything else is a command line started over
// stdio.
func Transport(ctx context.Context, target string) (mcp.Transport, error) {
	target = strings.TrimSpace(target)
	if target == "" {
		return nil, fmt.Errorf("server target is empty")
	}

	lowered := strings.ToLower(target)
	if strings.HasPrefix(lowered, "http://") || strings.HasPrefix(lowered, "https://") {
		u, err := url.Parse(target)
		if err != nil {
			return nil, fmt.Errorf("invalid server URL: %w", err)
		}
		if u.Host == "" {
			return nil, fmt.Errorf("invalid server URL %q: missing host", target)
		}
		return &mcp.StreamableClientTransport{Endpoint: u.String()}, nil
	}

	parts := strings.Fields(target)
	return &mcp.CommandTransport{Command: exec.CommandContext(ctx, parts[0], parts[1:]...)}, nil
}

// Dial starts or contacts the server described by target and initializes a
// session.
func Dial(ctx context.Context, target string, logger *slog.Logger) (*Session, error) {
	transport, err := Transport(ctx, target)
	if err != nil {
		return nil, err
	}
	logger.Info("connecting to tool server", "server", target)
	return Connect(ctx, transport, logger)
}

// Connect initializes a session over transport.
func Connect(ctx context.Context, transport mcp.Transport, logger *slog.Logger) (*Session, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: clientName, Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session: %w", err)
	}
	return &Session{session: session, logger: logger}, nil
}

// ListTools returns every advertised tool in server order.
func (s *Session) ListTools(ctx context.Context) ([]agent.ToolDescriptor, error) {
	var tools []agent.ToolDescriptor
	for tool, err := range s.session.Tools(ctx, nil) {
		if err != nil {
			return nil, fmt.Errorf("failed to list tools: %w", err)
		}
		tools = append(tools, agent.ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	s.logger.Debug("listed tools", "count", len(tools))
	return tools, nil
}

// CallTool runs a tool and joins its text content. Results the server marks
// as errors are returned with IsError set, not as Go errors.
func (s *Session) CallTool(ctx context.Context, name string, args map[string]any) (*agent.ToolResult, error) {
	if args == nil {
		args = map[string]any{}
	}
	res, err := s.session.CallTool(ctx, &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		return nil, err
	}

	var parts []string
	for _, c := range res.Content {
		if text, ok := c.(*mcp.TextContent); ok {
			parts = append(parts, text.Text)
		}
	}
	return &agent.ToolResult{Content: strings.Join(parts, "\n"), IsError: res.IsError}, nil
}

// Close ends the session; for command transports it also stops the server
// process.
func (s *Session) Close() error {
	return s.session.Close()
}
