package database

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Catalog is the schema accessor handed to the agent: table listing and
// per-table schema text for requested tables only.
type Catalog struct {
	db         DB
	sampleRows int
}

func NewCatalog(db DB, sampleRows int) *Catalog {
	return &Catalog{db: db, sampleRows: sampleRows}
}

func (c *Catalog) Dialect() Dialect { return c.db.Dialect() }

// ListTables fails with ErrConnection when the database is unreachable.
func (c *Catalog) ListTables(ctx context.Context) ([]string, error) {
	return c.db.ListTables(ctx)
}

// GetSchema describes the requested tables. A table that cannot be described
// gets an inline note instead of failing the whole call.
func (c *Catalog) GetSchema(ctx context.Context, tables []string) string {
	names := make([]string, 0, len(tables))
	for _, t := range tables {
		if t = strings.TrimSpace(t); t != "" {
			names = append(names, t)
		}
	}
	slices.Sort(names)
	names = slices.Compact(names)
	if len(names) == 0 {
		return "No tables requested."
	}

	parts := make([]string, 0, len(names))
	for _, t := range names {
		ddl, err := c.db.TableSchema(ctx, t, c.sampleRows)
		if err != nil {
			parts = append(parts, fmt.Sprintf("-- could not fetch schema for table %q: %v", t, err))
			continue
		}
		parts = append(parts, ddl)
	}
	return strings.Join(parts, "\n\n")
}
