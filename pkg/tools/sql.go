package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/comigor/nl2sql-go/internal/database"
)

const (
	ListTablesToolName = "sql_db_list_tables"
	SchemaToolName     = "sql_db_schema"
	QueryToolName      = "sql_db_query"
)

// Catalog is what the schema tools need from the database layer.
type Catalog interface {
	ListTables(ctx context.Context) ([]string, error)
	GetSchema(ctx context.Context, tables []string) string
}

// QueryRunner is what the query tool needs from the database layer.
type QueryRunner interface {
	Run(ctx context.Context, query string, limit int) (*database.Rows, error)
}

// ListTablesTool lists the tables of the connected database.
// No arguments are required.
type ListTablesTool struct {
	catalog Catalog
}

func NewListTablesTool(c Catalog) *ListTablesTool { return &ListTablesTool{catalog: c} }

func (t *ListTablesTool) Name() string { return ListTablesToolName }

func (t *ListTablesTool) Description() string {
	return "Input is an empty string, output is a comma-separated list of tables in the database."
}

func (t *ListTablesTool) Params() any { return &struct{}{} }

// Run returns the table names comma separated.
func (t *ListTablesTool) Run(ctx context.Context, _ map[string]any) (string, error) {
	tables, err := t.catalog.ListTables(ctx)
	if err != nil {
		return "", err
	}
	return strings.Join(tables, ", "), nil
}

// SchemaArgs are the arguments of the schema tool.
type SchemaArgs struct {
	TableNames string `json:"table_names" jsonschema_description:"A comma-separated list of the table names for which to return the schema. Example input: 'table1, table2, table3'"`
}

// SchemaTool describes the requested tables.
type SchemaTool struct {
	catalog Catalog
}

func NewSchemaTool(c Catalog) *SchemaTool { return &SchemaTool{catalog: c} }

func (t *SchemaTool) Name() string { return SchemaToolName }

func (t *SchemaTool) Description() string {
	return "Input to this tool is a comma-separated list of tables, output is the schema and sample rows for those tables. " +
		"Be sure that the tables actually exist by calling " + ListTablesToolName + " first!"
}

func (t *SchemaTool) Params() any { return &SchemaArgs{} }

func (t *SchemaTool) Run(ctx context.Context, args map[string]any) (string, error) {
	a, err := decodeArgs[SchemaArgs](args)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a.TableNames) == "" {
		return "", errors.New("table_names is required")
	}
	return t.catalog.GetSchema(ctx, strings.Split(a.TableNames, ",")), nil
}

// QueryArgs are the arguments of the query tool.
type QueryArgs struct {
	Query string `json:"query" jsonschema_description:"A detailed and correct SQL query."`
}

// QueryTool executes a read-only query capped at limit rows.
type QueryTool struct {
	runner QueryRunner
	limit  int
}

func NewQueryTool(r QueryRunner, limit int) *QueryTool {
	return &QueryTool{runner: r, limit: limit}
}

func (t *QueryTool) Name() string { return QueryToolName }

func (t *QueryTool) Description() string {
	return "Execute a SQL query against the database and get back the result. " +
		"If the query is not correct, an error message will be returned. " +
		"If an error is returned, rewrite the query, check the query, and try again. " +
		"If you encounter an issue with Unknown column 'xxxx' in 'field list', use " +
		SchemaToolName + " to query the correct table fields."
}

func (t *QueryTool) Params() any { return &QueryArgs{} }

func (t *QueryTool) Run(ctx context.Context, args map[string]any) (string, error) {
	a, err := decodeArgs[QueryArgs](args)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(a.Query) == "" {
		return "", errors.New("query is required")
	}
	rows, err := t.runner.Run(ctx, a.Query, t.limit)
	if err != nil {
		return "", err
	}
	return rows.String(), nil
}
