package agent

import (
	"context"
	"log/slog"
	"time"

	"github.com/comigor/nl2sql-go/internal/conversation"
	"github.com/comigor/nl2sql-go/internal/database"
	"github.com/comigor/nl2sql-go/internal/llm"
	"github.com/comigor/nl2sql-go/pkg/tools"
)

// Drafter asks the model which tables to inspect and drafts queries. A failing
// generation call never ends the session; it degrades to deterministic text.
type Drafter struct {
	gen            llm.Generator
	catalog        *database.Catalog
	timeout        time.Duration
	rowLimit       int
	fallbackTables int
}

// RequestSchema lets the model pick tables through the schema tool only.
// It reports whether the fallback path produced the message.
func (d *Drafter) RequestSchema(ctx context.Context, log *slog.Logger, history []conversation.Message, schemaTool tools.Definition) (conversation.Message, bool) {
	msg, err := d.generate(ctx, history, []tools.Definition{schemaTool})
	if err != nil {
		log.Warn("schema request failed; using schema fallback", "error", err)
		return d.schemaFallback(ctx), true
	}
	return msg, false
}

// Draft produces either a terminal answer or exactly one query tool call.
func (d *Drafter) Draft(ctx context.Context, log *slog.Logger, history []conversation.Message, queryTool tools.Definition) (conversation.Message, bool) {
	prompt := generateQueryPrompt(d.catalog.Dialect(), d.rowLimit)
	msgs := append([]conversation.Message{conversation.NewSystem(prompt)}, history...)

	msg, err := d.generate(ctx, msgs, []tools.Definition{queryTool})
	if err == nil {
		if len(msg.ToolCalls) > 1 {
			log.Warn("model proposed several tool calls; keeping the first", "count", len(msg.ToolCalls))
			msg.ToolCalls = msg.ToolCalls[:1]
		}
		return msg, false
	}
	log.Warn("query generation failed; retrying without tools", "error", err)

	msgs[0] = conversation.NewSystem(prompt + directQueryHint)
	msg, err = d.generate(ctx, msgs, nil)
	if err == nil {
		msg.ToolCalls = nil
		return msg, true
	}
	log.Warn("query generation failed again; using schema fallback", "error", err)

	return d.schemaFallback(ctx), true
}

// schemaFallback reports the schema of the first few tables as plain text.
func (d *Drafter) schemaFallback(ctx context.Context) conversation.Message {
	tables, err := d.catalog.ListTables(ctx)
	if err != nil {
		return conversation.NewAssistant("Schema information unavailable: " + err.Error())
	}
	if len(tables) > d.fallbackTables {
		tables = tables[:d.fallbackTables]
	}
	return conversation.NewAssistant("Schema information: " + d.catalog.GetSchema(ctx, tables))
}

func (d *Drafter) generate(ctx context.Context, msgs []conversation.Message, allowed []tools.Definition) (conversation.Message, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}
	msg, err := d.gen.Generate(ctx, msgs, allowed)
	if err != nil {
		return conversation.Message{}, generationError(err)
	}
	return msg, nil
}
