package database

import (
	"fmt"
	"strings"
	"time"
)

// Rows is a fully materialized query result.
type Rows struct {
	Columns []string
	Values  [][]any
}

func (r *Rows) Len() int {
	if r == nil {
		return 0
	}
	return len(r.Values)
}

// String renders the rows as a pipe table, the shape the drafting model is
// asked to present answers in.
func (r *Rows) String() string {
	if r == nil || len(r.Columns) == 0 {
		return "(no rows)"
	}

	var b strings.Builder
	b.WriteString("| " + strings.Join(r.Columns, " | ") + " |\n")
	b.WriteString("|" + strings.Repeat(" --- |", len(r.Columns)))
	for _, row := range r.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		b.WriteString("\n| " + strings.Join(cells, " | ") + " |")
	}
	if len(r.Values) == 0 {
		b.WriteString("\n(no rows)")
	}
	return b.String()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return strings.ReplaceAll(x, "|", `\|`)
	case []byte:
		return strings.ReplaceAll(string(x), "|", `\|`)
	case time.Time:
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}
