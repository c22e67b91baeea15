package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/prasanna00019/MCP-ToolHub/internal/config"
)

// Stop reasons reported in Answer.
const (
	StopComplete      = "complete"
	StopMaxIterations = "max_iterations"
)

const (
	noResponseText  = "No response from model"
	toolFailureText = "Tool execution failed"
)

// Options tune the loop.
type Options struct {
	UseTools bool
	// Native passes descriptors to the model as structured tools in addition
	// to the catalog in the system prompt.
	Native        bool
	MaxIterations int
	ModelTimeout  time.Duration
	ToolTimeout   time.Duration
	// ReportToolErrors feeds "Tool '<name>' error: <msg>" lines back to the
	// model instead of dropping failed calls.
	ReportToolErrors bool
	ValidateArgs     bool
	KeepHistory      bool
}

// OptionsFromConfig maps the agent section of the configuration.
func OptionsFromConfig(c config.AgentConfig) Options {
	return Options{
		UseTools:         c.UseTools,
		Native:           c.Mode == config.ModeNative,
		MaxIterations:    c.MaxIterations,
		ModelTimeout:     c.ModelTimeout,
		ToolTimeout:      c.ToolTimeout,
		ReportToolErrors: c.ReportToolErrors,
		ValidateArgs:     c.ValidateArgs,
		KeepHistory:      c.KeepHistory,
	}
}

// CallRecord describes one attempted tool call.
type CallRecord struct {
	Tool  string         `json:"tool"`
	Args  map[string]any `json:"args,omitempty"`
	OK    bool           `json:"ok"`
	Error string         `json:"error,omitempty"`
}

// Answer is the outcome of one query.
type Answer struct {
	QueryID    string       `json:"query_id"`
	Text       string       `json:"text"`
	StopReason string       `json:"stop_reason"`
	Iterations int          `json:"iterations"`
	Calls      []CallRecord `json:"calls"`
}

// Agent processes queries one at a time. It is not safe for concurrent use.
type Agent struct {
	model  Model
	host   ToolHost
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	history []Message
	// compiled schemas keyed by their JSON text
	schemas map[string]*jsonschema.Schema
}

// New returns an agent. A non-positive MaxIterations falls back to 15.
func New(model Model, host ToolHost, opts Options, logger *slog.Logger) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = 15
	}
	return &Agent{
		model:   model,
		host:    host,
		opts:    opts,
		logger:  logger,
		tracer:  otel.Tracer("github.com/prasanna00019/MCP-ToolHub/internal/agent"),
		schemas: make(map[string]*jsonschema.Schema),
	}
}

// Reset forgets the conversation history kept between queries.
func (a *Agent) Reset() {
	a.history = nil
}

// Process answers query, running requested tools until the model stops
// asking for them or the iteration ceiling is hit. Only model and tool
// listing failures are returned as errors.
func (a *Agent) Process(ctx context.Context, query string) (*Answer, error) {
	ans := &Answer{QueryID: uuid.NewString(), Calls: []CallRecord{}}
	logger := a.logger.With("query_id", ans.QueryID)

	ctx, span := a.tracer.Start(ctx, "agent.query", trace.WithAttributes(
		attribute.String("agent.query_id", ans.QueryID),
		attribute.Bool("agent.use_tools", a.opts.UseTools),
	))
	defer span.End()

	logger.Info("processing query", "event", "query", "query", query, "use_tools", a.opts.UseTools)

	var err error
	if a.opts.UseTools {
		err = a.runTools(ctx, logger, query, ans)
	} else {
		err = a.runPlain(ctx, logger, query, ans)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "query failed")
		return nil, err
	}

	span.SetAttributes(
		attribute.String("agent.stop_reason", ans.StopReason),
		attribute.Int("agent.iterations", ans.Iterations),
	)
	if a.opts.KeepHistory {
		a.history = append(a.history, Message{Role: RoleUser, Content: query}, Message{Role: RoleAssistant, Content: ans.Text})
	}
	return ans, nil
}

func (a *Agent) runPlain(ctx context.Context, logger *slog.Logger, query string, ans *Answer) error {
	messages := append(append([]Message{}, a.history...), Message{Role: RoleUser, Content: query})

	ans.Iterations = 1
	completion, err := a.complete(ctx, logger, &ModelRequest{Messages: messages}, 1)
	if err != nil {
		return err
	}

	ans.Text = completion.Text
	if ans.Text == "" {
		ans.Text = noResponseText
	}
	ans.StopReason = StopComplete
	logger.Info("query complete", "event", "completion", "iterations", 1)
	return nil
}

func (a *Agent) runTools(ctx context.Context, logger *slog.Logger, query string, ans *Answer) error {
	tools, err := a.host.ListTools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tools: %w", err)
	}
	advertised := make(map[string]ToolDescriptor, len(tools))
	for _, t := range tools {
		advertised[t.Name] = t
	}

	messages := make([]Message, 0, len(a.history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: SystemPrompt(tools)})
	messages = append(messages, a.history...)
	messages = append(messages, Message{Role: RoleUser, Content: query})

	req := &ModelRequest{}
	if a.opts.Native {
		req.Tools = tools
	}

	var buffer []string
	ans.StopReason = StopMaxIterations
	for ans.Iterations < a.opts.MaxIterations {
		ans.Iterations++
		iteration := ans.Iterations
		logger.Debug("starting iteration", "event", "iteration", "iteration", iteration)

		req.Messages = messages
		completion, err := a.complete(ctx, logger, req, iteration)
		if err != nil {
			return err
		}

		directives, display := a.detect(completion)
		if len(directives) == 0 {
			buffer = append(buffer, completion.Text)
			ans.StopReason = StopComplete
			break
		}
		logger.Info("tool calls detected", "event", "tool_detect", "iteration", iteration, "count", len(directives))
		if display != "" {
			buffer = append(buffer, display)
		}

		var lines []string
		for _, d := range directives {
			line, rec := a.execute(ctx, logger, advertised, d)
			ans.Calls = append(ans.Calls, rec)
			if line != "" {
				lines = append(lines, line)
			}
		}

		feedback := toolFailureText
		if len(lines) > 0 {
			feedback = strings.Join(lines, "\n")
		}
		messages = append(messages,
			Message{Role: RoleAssistant, Content: completion.Text, ToolCalls: completion.ToolCalls},
			Message{Role: RoleUser, Content: feedback},
		)
	}

	ans.Text = strings.Join(buffer, "\n")
	if ans.StopReason == StopMaxIterations {
		logger.Warn("iteration ceiling reached", "event", "max_iterations", "iterations", ans.Iterations)
	} else {
		logger.Info("query complete", "event", "completion", "iterations", ans.Iterations, "tool_calls", len(ans.Calls))
	}
	return nil
}

// detect returns the tool requests of a completion. Structured calls take
// precedence over directives in the text.
func (a *Agent) detect(c *Completion) ([]Directive, string) {
	if len(c.ToolCalls) > 0 {
		directives := make([]Directive, len(c.ToolCalls))
		for i, call := range c.ToolCalls {
			args := call.Args
			if args == nil {
				args = map[string]any{}
			}
			directives[i] = Directive{Tool: call.Name, Args: args}
		}
		return directives, strings.TrimSpace(c.Text)
	}
	parsed := ParseDirectives(c.Text)
	return parsed.Directives, parsed.Display
}

func (a *Agent) complete(ctx context.Context, logger *slog.Logger, req *ModelRequest, iteration int) (*Completion, error) {
	ctx, span := a.tracer.Start(ctx, "agent.model_call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Int("agent.iteration", iteration),
			attribute.Int("agent.messages", len(req.Messages)),
		),
	)
	defer span.End()

	if a.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ModelTimeout)
		defer cancel()
	}

	start := time.Now()
	c, err := a.model.Complete(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "model call failed")
		logger.Error("model call failed", "iteration", iteration, "error", err)
		return nil, &ModelError{Iteration: iteration, Err: err}
	}
	if c == nil {
		c = &Completion{}
	}

	span.SetStatus(codes.Ok, "ok")
	logger.Debug("model responded", "event", "model_response", "iteration", iteration,
		"duration", time.Since(start), "chars", len(c.Text), "tool_calls", len(c.ToolCalls))
	return c, nil
}

// execute runs one directive and returns the line fed back to the model,
// empty when the call failed and errors are not reported.
func (a *Agent) execute(ctx context.Context, logger *slog.Logger, advertised map[string]ToolDescriptor, d Directive) (string, CallRecord) {
	rec := CallRecord{Tool: d.Tool, Args: d.Args}

	err := d.Err
	var res *ToolResult
	if err == nil {
		res, err = a.call(ctx, logger, advertised, d)
	}
	if err != nil {
		rec.Error = err.Error()
		logger.Warn("tool call failed", "event", "tool_result", "tool", d.Tool, "error", err)
		if a.opts.ReportToolErrors {
			return fmt.Sprintf("Tool '%s' error: %s", d.Tool, err), rec
		}
		return "", rec
	}

	rec.OK = true
	logger.Info("tool call succeeded", "event", "tool_result", "tool", d.Tool, "is_error", res.IsError, "chars", len(res.Content))
	return fmt.Sprintf("Tool '%s' result: %s", d.Tool, res.Content), rec
}

func (a *Agent) call(ctx context.Context, logger *slog.Logger, advertised map[string]ToolDescriptor, d Directive) (*ToolResult, error) {
	ctx, span := a.tracer.Start(ctx, "agent.tool_call",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("agent.tool", d.Tool)),
	)
	defer span.End()

	logger.Info("calling tool", "event", "tool_call", "tool", d.Tool, "args", d.Args)

	fail := func(err error) (*ToolResult, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "tool call failed")
		return nil, &ToolExecutionError{Tool: d.Tool, Err: err}
	}

	if a.opts.ValidateArgs {
		desc, ok := advertised[d.Tool]
		if !ok {
			return fail(fmt.Errorf("tool is not advertised by the host"))
		}
		if err := a.validate(desc, d.Args); err != nil {
			return fail(err)
		}
	}

	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	res, err := a.host.CallTool(ctx, d.Tool, d.Args)
	if err != nil {
		return fail(err)
	}
	if res == nil {
		res = &ToolResult{}
	}
	if res.IsError {
		span.SetStatus(codes.Error, "tool reported an error")
	} else {
		span.SetStatus(codes.Ok, "ok")
	}
	return res, nil
}

// validate checks args against the tool's input schema. Tools without a
// schema accept anything.
func (a *Agent) validate(desc ToolDescriptor, args map[string]any) error {
	if desc.InputSchema == nil {
		return nil
	}
	schemaJSON, err := json.Marshal(desc.InputSchema)
	if err != nil {
		return fmt.Errorf("marshal input schema: %w", err)
	}

	sch, ok := a.schemas[string(schemaJSON)]
	if !ok {
		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
		if err != nil {
			return fmt.Errorf("unmarshal input schema: %w", err)
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource("schema.json", doc); err != nil {
			return fmt.Errorf("add schema resource: %w", err)
		}
		if sch, err = c.Compile("schema.json"); err != nil {
			return fmt.Errorf("compile schema: %w", err)
		}
		a.schemas[string(schemaJSON)] = sch
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal arguments: %w", err)
	}
	v, err := jsonschema.UnmarshalJSON(bytes.NewReader(argsJSON))
	if err != nil {
		return fmt.Errorf("unmarshal arguments: %w", err)
	}
	if err := sch.Validate(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}
