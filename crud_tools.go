package main

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/prasanna00019/MCP-ToolHub/internal/crud"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	defaultIDColumn = "id"
)

// returnEnvelope renders a CRUD result. Error envelopes are flagged on the
// tool result.
func returnEnvelope(res *crud.Result) (*mcp.CallToolResult, any, error) {
	return returnJSONResult(res, res.Status == crud.StatusError)
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func idColumnOr(name string) string {
	if name == "" {
		return defaultIDColumn
	}
	return name
}

// Create

type CreateRecordArgs struct {
	TableName string         `json:"table_name" jsonschema:"Name of the table"`
	Values    map[string]any `json:"values" jsonschema:"Column values to insert"`
}

type CreateRecordsBatchArgs struct {
	TableName string           `json:"table_name" jsonschema:"Name of the table"`
	Records   []map[string]any `json:"records" jsonschema:"Records to insert; every record must have the same columns"`
}

type CreateTableArgs struct {
	TableName  string           `json:"table_name" jsonschema:"Name of the new table"`
	Columns    []crud.ColumnDef `json:"columns" jsonschema:"Column definitions, e.g. {\"name\": \"email\", \"type\": \"VARCHAR(255)\", \"nullable\": false}"`
	PrimaryKey []string         `json:"primary_key,omitempty" jsonschema:"Primary key columns"`
}

type CreateViewArgs struct {
	ViewName        string `json:"view_name" jsonschema:"Name of the view"`
	SelectQuery     string `json:"select_query" jsonschema:"SELECT statement defining the view"`
	ReplaceIfExists bool   `json:"replace_if_exists,omitempty" jsonschema:"Use CREATE OR REPLACE VIEW (default: false)"`
}

type CreateIndexArgs struct {
	IndexName string   `json:"index_name" jsonschema:"Name of the index"`
	TableName string   `json:"table_name" jsonschema:"Name of the table"`
	Columns   []string `json:"columns" jsonschema:"Indexed columns in order"`
	Unique    bool     `json:"unique,omitempty" jsonschema:"Create a unique index (default: false)"`
}

// Read

type QueryDataArgs struct {
	Query  string `json:"query" jsonschema:"SELECT query; use %s or $1 for parameters, e.g. SELECT * FROM users WHERE age > %s"`
	Params []any  `json:"params,omitempty" jsonschema:"Query parameters in placeholder order"`
	Limit  *int   `json:"limit,omitempty" jsonschema:"Maximum number of rows"`
	Offset *int   `json:"offset,omitempty" jsonschema:"Number of rows to skip"`
}

type GetRecordsArgs struct {
	TableName   string `json:"table_name" jsonschema:"Name of the table"`
	WhereClause string `json:"where_clause,omitempty" jsonschema:"Filter without the WHERE keyword, e.g. age > %s AND city = %s"`
	WhereParams []any  `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
	Limit       *int   `json:"limit,omitempty" jsonschema:"Maximum number of rows"`
	Offset      *int   `json:"offset,omitempty" jsonschema:"Number of rows to skip"`
	OrderBy     string `json:"order_by,omitempty" jsonschema:"Sort order, e.g. name ASC, age DESC"`
}

type GetRecordCountArgs struct {
	TableName   string `json:"table_name" jsonschema:"Name of the table"`
	WhereClause string `json:"where_clause,omitempty" jsonschema:"Filter without the WHERE keyword"`
	WhereParams []any  `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
}

type DistinctValuesArgs struct {
	TableName  string `json:"table_name" jsonschema:"Name of the table"`
	ColumnName string `json:"column_name" jsonschema:"Name of the column"`
	Limit      *int   `json:"limit,omitempty" jsonschema:"Maximum number of values"`
}

type PaginateDataArgs struct {
	TableName   string `json:"table_name" jsonschema:"Name of the table"`
	Page        *int   `json:"page,omitempty" jsonschema:"Page number starting at 1 (default: 1)"`
	PageSize    *int   `json:"page_size,omitempty" jsonschema:"Rows per page (default: 10)"`
	OrderBy     string `json:"order_by,omitempty" jsonschema:"Sort order"`
	WhereClause string `json:"where_clause,omitempty" jsonschema:"Filter without the WHERE keyword"`
	WhereParams []any  `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
}

// Update

type UpdateRecordArgs struct {
	TableName string         `json:"table_name" jsonschema:"Name of the table"`
	RecordID  any            `json:"record_id" jsonschema:"Value of the id column of the record"`
	IDColumn  string         `json:"id_column,omitempty" jsonschema:"Name of the id column (default: id)"`
	Values    map[string]any `json:"values" jsonschema:"Columns to update"`
}

type UpdateRecordsBatchArgs struct {
	TableName   string         `json:"table_name" jsonschema:"Name of the table"`
	WhereClause string         `json:"where_clause" jsonschema:"Required filter, e.g. age > %s AND city = %s"`
	WhereParams []any          `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
	Values      map[string]any `json:"values" jsonschema:"Columns to update"`
}

type UpdateColumnArgs struct {
	TableName   string `json:"table_name" jsonschema:"Name of the table"`
	ColumnName  string `json:"column_name" jsonschema:"Column to update"`
	NewValue    any    `json:"new_value" jsonschema:"New value"`
	WhereClause string `json:"where_clause,omitempty" jsonschema:"Filter; without it ALL rows are updated"`
	WhereParams []any  `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
}

type RenameTableArgs struct {
	OldName string `json:"old_name" jsonschema:"Current table name"`
	NewName string `json:"new_name" jsonschema:"New table name"`
}

type RenameColumnArgs struct {
	TableName string `json:"table_name" jsonschema:"Name of the table"`
	OldColumn string `json:"old_column" jsonschema:"Current column name"`
	NewColumn string `json:"new_column" jsonschema:"New column name"`
}

// Delete

type DeleteRecordArgs struct {
	TableName string `json:"table_name" jsonschema:"Name of the table"`
	RecordID  any    `json:"record_id" jsonschema:"Value of the id column of the record"`
	IDColumn  string `json:"id_column,omitempty" jsonschema:"Name of the id column (default: id)"`
}

type DeleteRecordsArgs struct {
	TableName   string `json:"table_name" jsonschema:"Name of the table"`
	WhereClause string `json:"where_clause" jsonschema:"Required filter"`
	WhereParams []any  `json:"where_params,omitempty" jsonschema:"Values for the filter placeholders"`
}

type DropTableArgs struct {
	TableName string `json:"table_name" jsonschema:"Name of the table"`
	Cascade   bool   `json:"cascade,omitempty" jsonschema:"Also drop dependent objects such as views (default: false)"`
}

func (s *server) registerCRUDTools(m *mcp.Server) {
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_create_record",
		Description: "Insert a single record into a table (parameterized for SQL injection safety)",
	}, s.createRecord)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_create_records_batch",
		Description: "Insert multiple records in one transaction",
	}, s.createRecordsBatch)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_create_table",
		Description: "Create a new table with the given columns, optional inline foreign key references and primary key",
	}, s.createTable)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_create_view",
		Description: "Create a database view from a SELECT query",
	}, s.createView)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_create_index",
		Description: "Create a single or composite index on table columns",
	}, s.createIndex)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_query_data",
		Description: "Execute a read-only SELECT query with optional parameters and pagination",
	}, s.queryData)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_get_records",
		Description: "Get records from a table with filtering and sorting",
	}, s.getRecords)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_get_record_count",
		Description: "Count records in a table with optional filtering",
	}, s.getRecordCount)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_distinct_values",
		Description: "Get distinct values of a column",
	}, s.distinctValues)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_paginate_data",
		Description: "Get one page of records with total page metadata",
	}, s.paginateData)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_update_record",
		Description: "Update a single record by id",
	}, s.updateRecord)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_update_records_batch",
		Description: "Update every record matching a required WHERE clause",
	}, s.updateRecordsBatch)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_update_column",
		Description: "Set one column on matching records. WARNING: without a WHERE clause ALL records are updated",
	}, s.updateColumn)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_rename_table",
		Description: "Rename a table",
	}, s.renameTable)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_rename_column",
		Description: "Rename a column of a table",
	}, s.renameColumn)

	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_delete_record",
		Description: "Delete a single record by id",
	}, s.deleteRecord)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_delete_records",
		Description: "Delete every record matching a required WHERE clause",
	}, s.deleteRecords)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_truncate_table",
		Description: "Remove all rows from a table. WARNING: this deletes all data",
	}, s.truncateTable)
	mcp.AddTool(m, &mcp.Tool{
		Name:        "crud_drop_table",
		Description: "Drop a table permanently. cascade also drops dependent objects",
	}, s.dropTable)
}

func (s *server) createRecord(ctx context.Context, req *mcp.CallToolRequest, args CreateRecordArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.CreateRecord(ctx, args.TableName, args.Values))
}

func (s *server) createRecordsBatch(ctx context.Context, req *mcp.CallToolRequest, args CreateRecordsBatchArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.CreateRecordsBatch(ctx, args.TableName, args.Records))
}

func (s *server) createTable(ctx context.Context, req *mcp.CallToolRequest, args CreateTableArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.CreateTable(ctx, args.TableName, args.Columns, args.PrimaryKey))
}

func (s *server) createView(ctx context.Context, req *mcp.CallToolRequest, args CreateViewArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.CreateView(ctx, args.ViewName, args.SelectQuery, args.ReplaceIfExists))
}

func (s *server) createIndex(ctx context.Context, req *mcp.CallToolRequest, args CreateIndexArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.CreateIndex(ctx, args.IndexName, args.TableName, args.Columns, args.Unique))
}

func (s *server) queryData(ctx context.Context, req *mcp.CallToolRequest, args QueryDataArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.QueryData(ctx, args.Query, args.Params, args.Limit, args.Offset))
}

func (s *server) getRecords(ctx context.Context, req *mcp.CallToolRequest, args GetRecordsArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	return returnEnvelope(s.crud.GetRecords(ctx, args.TableName, f, args.OrderBy, args.Limit, args.Offset))
}

func (s *server) getRecordCount(ctx context.Context, req *mcp.CallToolRequest, args GetRecordCountArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	return returnEnvelope(s.crud.GetRecordCount(ctx, args.TableName, f))
}

func (s *server) distinctValues(ctx context.Context, req *mcp.CallToolRequest, args DistinctValuesArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.DistinctValues(ctx, args.TableName, args.ColumnName, args.Limit))
}

func (s *server) paginateData(ctx context.Context, req *mcp.CallToolRequest, args PaginateDataArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	page := intOr(args.Page, defaultPage)
	pageSize := intOr(args.PageSize, defaultPageSize)
	return returnEnvelope(s.crud.PaginateData(ctx, args.TableName, page, pageSize, args.OrderBy, f))
}

func (s *server) updateRecord(ctx context.Context, req *mcp.CallToolRequest, args UpdateRecordArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.UpdateRecord(ctx, args.TableName, args.RecordID, idColumnOr(args.IDColumn), args.Values))
}

func (s *server) updateRecordsBatch(ctx context.Context, req *mcp.CallToolRequest, args UpdateRecordsBatchArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	return returnEnvelope(s.crud.UpdateRecordsBatch(ctx, args.TableName, f, args.Values))
}

func (s *server) updateColumn(ctx context.Context, req *mcp.CallToolRequest, args UpdateColumnArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	return returnEnvelope(s.crud.UpdateColumn(ctx, args.TableName, args.ColumnName, args.NewValue, f))
}

func (s *server) renameTable(ctx context.Context, req *mcp.CallToolRequest, args RenameTableArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.RenameTable(ctx, args.OldName, args.NewName))
}

func (s *server) renameColumn(ctx context.Context, req *mcp.CallToolRequest, args RenameColumnArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.RenameColumn(ctx, args.TableName, args.OldColumn, args.NewColumn))
}

func (s *server) deleteRecord(ctx context.Context, req *mcp.CallToolRequest, args DeleteRecordArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.DeleteRecord(ctx, args.TableName, args.RecordID, idColumnOr(args.IDColumn)))
}

func (s *server) deleteRecords(ctx context.Context, req *mcp.CallToolRequest, args DeleteRecordsArgs) (*mcp.CallToolResult, any, error) {
	f := crud.Filter{Where: args.WhereClause, Params: args.WhereParams}
	return returnEnvelope(s.crud.DeleteRecords(ctx, args.TableName, f))
}

func (s *server) truncateTable(ctx context.Context, req *mcp.CallToolRequest, args TableNameArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.TruncateTable(ctx, args.TableName))
}

func (s *server) dropTable(ctx context.Context, req *mcp.CallToolRequest, args DropTableArgs) (*mcp.CallToolResult, any, error) {
	return returnEnvelope(s.crud.DropTable(ctx, args.TableName, args.Cascade))
}
