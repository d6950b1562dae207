package agent

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comigor/nl2sql-go/internal/config"
	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

var testAgentConfig = config.AgentConfig{
	RowLimit:       5,
	MaxRowLimit:    100,
	MaxSteps:       10,
	FallbackTables: 3,
	SampleRows:     3,
	MaxSessions:    2,
}

// newStore writes a sqlite database with 50 customers and a few invoices and
// opens it read-only.
func newStore(t *testing.T) *database.SQLDatabase {
	t.Helper()
	path := filepath.Join(t.TempDir(), "store.db")

	raw, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT NOT NULL, country TEXT)`)
	require.NoError(t, err)
	_, err = raw.Exec(`CREATE TABLE invoices (id INTEGER PRIMARY KEY, customer_id INTEGER NOT NULL, total REAL NOT NULL)`)
	require.NoError(t, err)
	for i := 1; i <= 50; i++ {
		_, err = raw.Exec(`INSERT INTO customers (id, name, country) VALUES (?, ?, ?)`,
			i, fmt.Sprintf("Customer %02d", i), []string{"Brazil", "Canada", "USA"}[i%3])
		require.NoError(t, err)
	}
	_, err = raw.Exec(`INSERT INTO invoices (id, customer_id, total) VALUES (1, 1, 9.9), (2, 2, 1.98)`)
	require.NoError(t, err)
	require.NoError(t, raw.Close())

	db, err := database.Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path, MaxOpenConns: 2})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

// countingDB records every statement that reaches the database.
type countingDB struct {
	database.DB
	mu       sync.Mutex
	queries  []string
	queryErr error
	listErr  error
}

func (c *countingDB) ListTables(ctx context.Context) ([]string, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.DB.ListTables(ctx)
}

func (c *countingDB) Query(ctx context.Context, query string) (*database.Rows, error) {
	c.mu.Lock()
	c.queries = append(c.queries, query)
	c.mu.Unlock()
	if c.queryErr != nil {
		return nil, c.queryErr
	}
	return c.DB.Query(ctx, query)
}

func (c *countingDB) Queries() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.queries)
}

type modelCall struct {
	msgs    []conversation.Message
	allowed []string
}

// fakeModel routes each generation request by what is being asked: a schema
// request offers only the schema tool, a review opens with the check prompt,
// everything else is a draft.
type fakeModel struct {
	mu     sync.Mutex
	calls  []modelCall
	drafts int

	schema func() (conversation.Message, error)
	draft  func(n int, c modelCall) (conversation.Message, error)
	review func(query string) (conversation.Message, error)
}

func (f *fakeModel) Generate(_ context.Context, msgs []conversation.Message, allowed []tools.Definition) (conversation.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c := modelCall{msgs: slices.Clone(msgs)}
	for _, d := range allowed {
		c.allowed = append(c.allowed, d.Name)
	}
	f.calls = append(f.calls, c)

	switch {
	case isReview(msgs):
		query := msgs[len(msgs)-1].Content
		if f.review == nil {
			return queryCall(query), nil
		}
		return f.review(query)
	case slices.Equal(c.allowed, []string{tools.SchemaToolName}):
		if f.schema == nil {
			return conversation.NewAssistant("", conversation.ToolCall{
				ID:   conversation.NewCallID(),
				Name: tools.SchemaToolName,
				Args: map[string]any{"table_names": "customers, invoices"},
			}), nil
		}
		return f.schema()
	default:
		f.drafts++
		if f.draft == nil {
			return conversation.NewAssistant("I don't know."), nil
		}
		return f.draft(f.drafts, c)
	}
}

func (f *fakeModel) Calls() []modelCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

func isReview(msgs []conversation.Message) bool {
	return len(msgs) > 0 && msgs[0].Role == conversation.RoleSystem && strings.Contains(msgs[0].Content, "Double check")
}

func queryCall(q string) conversation.Message {
	return conversation.NewAssistant("", conversation.ToolCall{
		ID:   conversation.NewCallID(),
		Name: tools.QueryToolName,
		Args: map[string]any{"query": q},
	})
}

func states(steps []Step) []FSMState {
	out := make([]FSMState, len(steps))
	for i, s := range steps {
		out[i] = s.State
	}
	return out
}

// dataRows counts the body rows of a rendered pipe table.
func dataRows(table string) int {
	n := 0
	for i, line := range strings.Split(table, "\n") {
		if i > 1 && strings.HasPrefix(line, "| ") {
			n++
		}
	}
	return n
}
