package database

import (
	"context"
	"errors"

	"github.com/comigor/nl2sql-go/internal/logger"
)

// Executor runs drafted queries. Every statement passes the read-only guard
// before it reaches the database and is capped to the requested row count.
type Executor struct {
	db DB
}

func NewExecutor(db DB) *Executor {
	return &Executor{db: db}
}

// Run executes query returning at most limit rows (limit <= 0 disables the
// cap). Failures come back as *ExecutionError carrying the raw message.
func (e *Executor) Run(ctx context.Context, query string, limit int) (*Rows, error) {
	q := Normalize(query)
	if q == "" {
		return nil, &ExecutionError{Query: query, Err: errors.New("empty query")}
	}
	if err := CheckReadOnly(q); err != nil {
		logger.L.Warn("rejected statement", "query", q, "error", err)
		return nil, &ExecutionError{Query: q, Err: err}
	}

	stmt := q
	if limit > 0 {
		stmt = CapRows(q, limit)
	}

	rows, err := e.db.Query(ctx, stmt)
	if err != nil {
		var execErr *ExecutionError
		if errors.As(err, &execErr) {
			return nil, execErr
		}
		return nil, &ExecutionError{Query: stmt, Err: err}
	}

	if limit > 0 && rows.Len() > limit {
		rows.Values = rows.Values[:limit]
	}
	logger.L.Debug("query executed", "query", q, "rows", rows.Len(), "limit", limit)
	return rows, nil
}
