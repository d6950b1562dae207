package agent

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/llm"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

var sqlFence = regexp.MustCompile("(?is)```(?:sql)?\\s*(.+?)```")

// Reviewer double checks a drafted query against a fixed list of pitfalls and
// re-expresses it as a single query tool call.
type Reviewer struct {
	gen     llm.Generator
	dialect database.Dialect
	timeout time.Duration
}

// Review returns the message that replaces draft. A draft without a query
// passes through unchanged. The replacement keeps the draft's call ID and
// names the draft in Supersedes. If the review call fails, a terminal message
// carrying the error is returned instead.
func (r *Reviewer) Review(ctx context.Context, log *slog.Logger, draft conversation.Message, queryTool tools.Definition) conversation.Message {
	if !draft.HasToolCalls() {
		return draft
	}
	call := draft.ToolCalls[0]
	query, ok := call.StringArg("query")
	if call.Name != tools.QueryToolName || !ok || strings.TrimSpace(query) == "" {
		return draft
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	resp, err := r.gen.Generate(ctx, []conversation.Message{
		conversation.NewSystem(checkQueryPrompt(r.dialect)),
		conversation.NewHuman(query),
	}, []tools.Definition{queryTool})
	if err != nil {
		log.Error("query check failed", "error", err)
		return conversation.NewAssistant(fmt.Sprintf("Error in query checking: %v", generationError(err)))
	}

	revised := database.Normalize(revisedQuery(resp, query))
	if revised != database.Normalize(query) {
		log.Info("query rewritten by review", "before", query, "after", revised)
	}

	out := conversation.NewAssistant(draft.Content, conversation.ToolCall{
		ID:   call.ID,
		Name: tools.QueryToolName,
		Args: map[string]any{"query": revised},
	})
	out.Supersedes = draft.ID
	return out
}

// revisedQuery prefers the reviewer's tool call, then a fenced SQL block in
// its prose, then the original query.
func revisedQuery(resp conversation.Message, original string) string {
	for _, c := range resp.ToolCalls {
		if c.Name != tools.QueryToolName {
			continue
		}
		if q, ok := c.StringArg("query"); ok && strings.TrimSpace(q) != "" {
			return q
		}
	}
	if m := sqlFence.FindStringSubmatch(resp.Content); m != nil && strings.TrimSpace(m[1]) != "" {
		return m[1]
	}
	return original
}
