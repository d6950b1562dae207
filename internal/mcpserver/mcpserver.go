// Package mcpserver exposes the agent as an MCP tool server over stdio.
package mcpserver

import (
	"context"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/comigor/nl2sql-go/internal/agent"
	"github.com/comigor/nl2sql-go/internal/logger"
)

const (
	AskToolName        = "ask_database"
	ListTablesToolName = "list_tables"
)

type Processor interface {
	Process(ctx context.Context, question string) (*agent.Result, error)
}

type TableLister interface {
	ListTables(ctx context.Context) ([]string, error)
}

type Server struct {
	proc   Processor
	tables TableLister
}

func New(proc Processor, tables TableLister) *Server {
	return &Server{proc: proc, tables: tables}
}

// MCPServer registers the tools on a fresh mcp-go server.
func (s *Server) MCPServer(version string) *server.MCPServer {
	srv := server.NewMCPServer("nl2sql", version, server.WithToolCapabilities(false))

	srv.AddTool(mcp.NewTool(AskToolName,
		mcp.WithDescription("Answer a natural-language question by querying the connected SQL database read-only."),
		mcp.WithString("question",
			mcp.Required(),
			mcp.Description("The question to answer, e.g. 'Which country's customers spent the most?'"),
		),
	), s.handleAsk)

	srv.AddTool(mcp.NewTool(ListTablesToolName,
		mcp.WithDescription("List the tables of the connected SQL database."),
	), s.handleListTables)

	return srv
}

// ServeStdio blocks serving MCP requests on stdin/stdout.
func (s *Server) ServeStdio(version string) error {
	return server.ServeStdio(s.MCPServer(version))
}

func (s *Server) handleAsk(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	question, err := request.RequireString("question")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	res, err := s.proc.Process(ctx, question)
	if err != nil {
		logger.L.Error("MCP ask failed", "error", err)
		if errors.Is(err, agent.ErrEmptyQuestion) {
			return mcp.NewToolResultError("Please enter a question."), nil
		}
		return mcp.NewToolResultError(err.Error()), nil
	}
	if res.Outcome == agent.OutcomeFailed || res.Outcome == agent.OutcomeExhausted {
		return mcp.NewToolResultError(res.Answer), nil
	}
	return mcp.NewToolResultText(res.Answer), nil
}

func (s *Server) handleListTables(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	tables, err := s.tables.ListTables(ctx)
	if err != nil {
		logger.L.Error("MCP list tables failed", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(strings.Join(tables, ", ")), nil
}
