package mcpserver

import (
	"context"
	"errors"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"

	"github.com/comigor/nl2sql-go/internal/agent"
)

type mockProcessor struct {
	result *agent.Result
	err    error
}

func (m *mockProcessor) Process(context.Context, string) (*agent.Result, error) {
	return m.result, m.err
}

type mockTables struct {
	tables []string
	err    error
}

func (m mockTables) ListTables(context.Context) ([]string, error) { return m.tables, m.err }

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	tc, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return tc.Text
}

func TestHandleAsk(t *testing.T) {
	s := New(&mockProcessor{result: &agent.Result{Answer: "59 customers", Outcome: agent.OutcomeAnswered}}, mockTables{})

	res, err := s.handleAsk(context.Background(), callRequest(AskToolName, map[string]any{"question": "How many customers?"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "59 customers", text(t, res))
}

func TestHandleAsk_MissingQuestion(t *testing.T) {
	s := New(&mockProcessor{}, mockTables{})

	res, err := s.handleAsk(context.Background(), callRequest(AskToolName, map[string]any{}))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestHandleAsk_Failures(t *testing.T) {
	s := New(&mockProcessor{result: &agent.Result{Answer: agent.FailureNotice, Outcome: agent.OutcomeExhausted}}, mockTables{})
	res, err := s.handleAsk(context.Background(), callRequest(AskToolName, map[string]any{"question": "q"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, agent.FailureNotice, text(t, res))

	s = New(&mockProcessor{err: agent.ErrEmptyQuestion}, mockTables{})
	res, err = s.handleAsk(context.Background(), callRequest(AskToolName, map[string]any{"question": " "}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Equal(t, "Please enter a question.", text(t, res))
}

func TestHandleListTables(t *testing.T) {
	s := New(&mockProcessor{}, mockTables{tables: []string{"Album", "Artist"}})
	res, err := s.handleListTables(context.Background(), callRequest(ListTablesToolName, nil))
	require.NoError(t, err)
	require.Equal(t, "Album, Artist", text(t, res))

	s = New(&mockProcessor{}, mockTables{err: errors.New("database connection error")})
	res, err = s.handleListTables(context.Background(), callRequest(ListTablesToolName, nil))
	require.NoError(t, err)
	require.True(t, res.IsError)
}

func TestMCPServer_RegistersTools(t *testing.T) {
	srv := New(&mockProcessor{}, mockTables{}).MCPServer("test")
	require.NotNil(t, srv)
}
