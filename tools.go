package main

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prasanna00019/MCP-ToolHub/internal/analysis"
	"github.com/prasanna00019/MCP-ToolHub/internal/diagram"
	"github.com/prasanna00019/MCP-ToolHub/internal/schema"
)

const (
	statusSuccess = "success"
	statusWarning = "warning"
	statusError   = "error"
)

func (s *server) schemaName(override string) string {
	if override != "" {
		return override
	}
	if s.schema != "" {
		return s.schema
	}
	return schema.DefaultSchema
}

// returnJSONResult renders data as indented JSON text content.
func returnJSONResult(data any, isError bool) (*mcp.CallToolResult, any, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to marshal results: %w", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(jsonData)},
		},
		IsError: isError,
	}, nil, nil
}

// returnStatus renders a status object. Error statuses are flagged on the
// result so clients can tell them apart without parsing.
func returnStatus(status string, fields map[string]any) (*mcp.CallToolResult, any, error) {
	out := map[string]any{"status": status}
	for k, v := range fields {
		out[k] = v
	}
	return returnJSONResult(out, status == statusError)
}

func (s *server) returnError(tool string, err error) (*mcp.CallToolResult, any, error) {
	s.logger.Warn("tool failed", "tool", tool, "error", err)
	return returnStatus(statusError, map[string]any{"error": err.Error()})
}

type noArgs struct{}

type TableNameArgs struct {
	TableName string `json:"table_name" jsonschema:"Name of the table"`
}

type TableListArgs struct {
	Schema       string `json:"schema,omitempty" jsonschema:"Schema name (default: public)"`
	IncludeViews bool   `json:"include_views,omitempty" jsonschema:"Also list views with their table type (default: false)"`
}

type RenderDiagramsArgs struct {
	OutputFormat string `json:"output_format,omitempty" jsonschema:"Output format: svg, png or pdf (default: svg)"`
}

func (s *server) registerAnalysisTools(m *mcp.Server) {
	mcp.AddTool(m, &mcp.Tool{
		Name:        "analyze_database",
		Description: "Analyze the database schema: tables, columns, keys, junction tables, implicit relationships, join recommendations, Mermaid ER diagram and flowchart, and Markdown documentation",
	}, s.analyzeDatabase)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "explain_database",
		Description: "Use the configured Ollama model to explain the business purpose, relationships, join recommendations and quality of the database",
	}, s.explainDatabase)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "get_table_details",
		Description: "Get the structure, relationships and Markdown documentation of a single table",
	}, s.getTableDetails)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "list_tables",
		Description: "List all tables in the specified schema (default: public)",
	}, s.listTables)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "check_ollama_status",
		Description: "Check whether the Ollama service is reachable and the configured model is installed",
	}, s.checkOllamaStatus)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "render_database_diagrams",
		Description: "Render the ER diagram and flowchart of the database to image files (svg recommended; png/pdf may not be supported via the API)",
	}, s.renderDatabaseDiagrams)
}

func (s *server) analyzeDatabase(ctx context.Context, req *mcp.CallToolRequest, args noArgs) (*mcp.CallToolResult, any, error) {
	sch, err := schema.Extract(ctx, s.pool, s.schemaName(""))
	if err != nil {
		return s.returnError("analyze_database", err)
	}

	report := analysis.Analyze(sch)
	return returnStatus(statusSuccess, map[string]any{
		"schema":                 sch,
		"junction_tables":        report.JunctionTables,
		"implicit_relationships": report.ImplicitRelationships,
		"suggested_joins":        report.SuggestedJoins,
		"mermaid_erd":            diagram.MermaidERD(sch),
		"mermaid_flowchart":      diagram.MermaidFlowchart(sch),
		"markdown_documentation": diagram.Markdown(sch),
	})
}

func (s *server) explainDatabase(ctx context.Context, req *mcp.CallToolRequest, args noArgs) (*mcp.CallToolResult, any, error) {
	sch, err := schema.Extract(ctx, s.pool, s.schemaName(""))
	if err != nil {
		return s.returnError("explain_database", err)
	}

	client := s.analyzer.Client()
	if !s.analyzer.IsAvailable(ctx) {
		return s.returnError("explain_database",
			fmt.Errorf("Ollama model '%s' not available at %s", client.Model(), client.BaseURL()))
	}

	result, err := s.analyzer.ExplainSchema(ctx, sch)
	if err != nil {
		return s.returnError("explain_database", err)
	}
	return returnStatus(statusSuccess, map[string]any{"llm_analysis": result})
}

func (s *server) getTableDetails(ctx context.Context, req *mcp.CallToolRequest, args TableNameArgs) (*mcp.CallToolResult, any, error) {
	sch, err := schema.Extract(ctx, s.pool, s.schemaName(""))
	if err != nil {
		return s.returnError("get_table_details", err)
	}

	table, ok := sch.Table(args.TableName)
	if !ok {
		return s.returnError("get_table_details", fmt.Errorf("Table '%s' not found", args.TableName))
	}
	return returnStatus(statusSuccess, map[string]any{
		"table_name":    table.Name,
		"info":          table,
		"documentation": diagram.TableDocumentation(*table),
	})
}

func (s *server) listTables(ctx context.Context, req *mcp.CallToolRequest, args TableListArgs) (*mcp.CallToolResult, any, error) {
	schemaName := s.schemaName(args.Schema)

	if args.IncludeViews {
		relations, err := schema.ListRelations(ctx, s.pool, schemaName, true)
		if err != nil {
			return s.returnError("list_tables", err)
		}
		return returnStatus(statusSuccess, map[string]any{
			"schema": schemaName,
			"tables": relations,
			"count":  len(relations),
		})
	}

	tables, err := schema.ListBaseTables(ctx, s.pool, schemaName)
	if err != nil {
		return s.returnError("list_tables", err)
	}
	return returnStatus(statusSuccess, map[string]any{
		"schema": schemaName,
		"tables": tables,
		"count":  len(tables),
	})
}

func (s *server) checkOllamaStatus(ctx context.Context, req *mcp.CallToolRequest, args noArgs) (*mcp.CallToolResult, any, error) {
	client := s.analyzer.Client()

	models, err := client.Models(ctx)
	if err != nil {
		s.logger.Warn("ollama unreachable", "base_url", client.BaseURL(), "error", err)
		return returnStatus(statusError, map[string]any{
			"ollama_available": false,
			"base_url":         client.BaseURL(),
			"error":            err.Error(),
		})
	}

	return returnStatus(statusSuccess, map[string]any{
		"ollama_available": true,
		"base_url":         client.BaseURL(),
		"configured_model": client.Model(),
		"available_models": models,
		"model_available":  slices.Contains(models, client.Model()),
	})
}

func (s *server) renderDatabaseDiagrams(ctx context.Context, req *mcp.CallToolRequest, args RenderDiagramsArgs) (*mcp.CallToolResult, any, error) {
	format := strings.ToLower(strings.TrimSpace(args.OutputFormat))
	if format == "" {
		format = "svg"
	}
	if !diagram.ValidFormat(format) {
		return s.returnError("render_database_diagrams",
			fmt.Errorf("unsupported output format %q, expected one of %s", format, strings.Join(diagram.Formats, ", ")))
	}

	sch, err := schema.Extract(ctx, s.pool, s.schemaName(""))
	if err != nil {
		return s.returnError("render_database_diagrams", err)
	}

	diagrams := s.renderer.RenderAll(ctx, sch, []string{format})
	if len(diagrams) == 0 {
		return returnStatus(statusWarning, map[string]any{
			"message":            "Diagrams could not be rendered. Check if mermaid-cli is installed.",
			"installation_hint":  "Install mermaid-cli: npm install -g @mermaid-js/mermaid-cli",
			"fallback":           "Use analyze_database() for Mermaid syntax instead",
			"output_directory":   s.renderer.OutputDir(),
			"requested_diagrams": []string{"erd_" + format, "flowchart_" + format},
		})
	}
	return returnStatus(statusSuccess, map[string]any{
		"diagrams":      diagrams,
		"output_format": format,
		"message":       fmt.Sprintf("Diagrams rendered successfully in %s format", format),
	})
}

type TableSchemaArgs struct {
	TableName string `json:"table_name" jsonschema:"Name of the table"`
	Schema    string `json:"schema,omitempty" jsonschema:"Schema name (default: public)"`
}

type ExplainQueryArgs struct {
	Query   string `json:"query" jsonschema:"SQL query to explain"`
	Analyze *bool  `json:"analyze,omitempty" jsonschema:"Run ANALYZE to get actual execution statistics (default: true)"`
	Verbose *bool  `json:"verbose,omitempty" jsonschema:"Include verbose output with additional details (default: false)"`
	Costs   *bool  `json:"costs,omitempty" jsonschema:"Include estimated startup and total costs (default: true)"`
	Buffers *bool  `json:"buffers,omitempty" jsonschema:"Include buffer usage statistics (default: false)"`
	Timing  *bool  `json:"timing,omitempty" jsonschema:"Include actual timing information (default: true)"`
	Summary *bool  `json:"summary,omitempty" jsonschema:"Include summary information (default: true)"`
	Format  string `json:"format,omitempty" jsonschema:"Output format: text, json, xml, or yaml (default: json)"`
}

func (s *server) registerIntrospectionTools(m *mcp.Server) {
	mcp.AddTool(m, &mcp.Tool{
		Name:        "get_table_schema",
		Description: "Get the schema information (columns, data types, etc.) for a specific table",
	}, s.getTableSchema)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "get_table_constraints",
		Description: "Get all constraints (primary key, foreign key, unique, check) for a specific table",
	}, s.getTableConstraints)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "get_table_indexes",
		Description: "Get all indexes for a specific table including index type and columns",
	}, s.getTableIndexes)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "explain_query",
		Description: "Run EXPLAIN on a query inside a rolled-back transaction to get the execution plan. Supports options for analyze, verbose, costs, buffers, timing, summary, and output format (text, json, xml, yaml)",
	}, s.explainQuery)
}

func (s *server) getTableSchema(ctx context.Context, req *mcp.CallToolRequest, args TableSchemaArgs) (*mcp.CallToolResult, any, error) {
	columns, err := schema.DescribeColumns(ctx, s.pool, s.schemaName(args.Schema), args.TableName)
	if err != nil {
		return s.returnError("get_table_schema", err)
	}
	return returnJSONResult(columns, false)
}

func (s *server) getTableConstraints(ctx context.Context, req *mcp.CallToolRequest, args TableSchemaArgs) (*mcp.CallToolResult, any, error) {
	constraints, err := schema.Constraints(ctx, s.pool, s.schemaName(args.Schema), args.TableName)
	if err != nil {
		return s.returnError("get_table_constraints", err)
	}
	return returnJSONResult(constraints, false)
}

func (s *server) getTableIndexes(ctx context.Context, req *mcp.CallToolRequest, args TableSchemaArgs) (*mcp.CallToolResult, any, error) {
	indexes, err := schema.Indexes(ctx, s.pool, s.schemaName(args.Schema), args.TableName)
	if err != nil {
		return s.returnError("get_table_indexes", err)
	}
	return returnJSONResult(indexes, false)
}

func (s *server) explainQuery(ctx context.Context, req *mcp.CallToolRequest, args ExplainQueryArgs) (*mcp.CallToolResult, any, error) {
	plan, err := schema.Explain(ctx, s.pool, args.Query, schema.ExplainOptions{
		Analyze: args.Analyze,
		Verbose: args.Verbose,
		Costs:   args.Costs,
		Buffers: args.Buffers,
		Timing:  args.Timing,
		Summary: args.Summary,
		Format:  args.Format,
	})
	if err != nil {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("EXPLAIN error: %v", err)},
			},
			IsError: true,
		}, nil, nil
	}

	if text, ok := plan.(string); ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: text},
			},
		}, nil, nil
	}
	return returnJSONResult(plan, false)
}
