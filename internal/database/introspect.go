package database

import (
	"context"
	"fmt"
	"strings"
)

// TableSchema describes one table as DDL followed by a few sample rows.
func (d *SQLDatabase) TableSchema(ctx context.Context, table string, sampleRows int) (string, error) {
	var ddl string
	var err error
	switch d.dialect {
	case DialectSQLite:
		ddl, err = d.sqliteDDL(ctx, table)
	default:
		ddl, err = d.postgresDDL(ctx, table)
	}
	if err != nil {
		return "", err
	}
	if sampleRows <= 0 {
		return ddl, nil
	}

	sample, err := d.Query(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), sampleRows))
	if err != nil {
		return ddl + fmt.Sprintf("\n\n/*\nsample rows unavailable for %s table: %v\n*/", table, err), nil
	}
	return ddl + "\n\n" + sampleBlock(table, sample), nil
}

func (d *SQLDatabase) sqliteDDL(ctx context.Context, table string) (string, error) {
	var ddl string
	err := d.db.QueryRowContext(ctx,
		`SELECT sql FROM sqlite_master WHERE type IN ('table', 'view') AND name = ?`, table,
	).Scan(&ddl)
	if isNoRows(err) {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", table, err)
	}
	return strings.TrimSpace(ddl), nil
}

func (d *SQLDatabase) postgresDDL(ctx context.Context, table string) (string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return "", fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ, nullable string
		if err := rows.Scan(&name, &typ, &nullable); err != nil {
			return "", fmt.Errorf("describe %s: %w", table, err)
		}
		col := "\t" + quoteIdent(name) + " " + strings.ToUpper(typ)
		if nullable == "NO" {
			col += " NOT NULL"
		}
		cols = append(cols, col)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("describe %s: %w", table, err)
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownTable, table)
	}

	pk, err := d.postgresPrimaryKey(ctx, table)
	if err != nil {
		return "", err
	}
	if len(pk) > 0 {
		cols = append(cols, "\tPRIMARY KEY ("+strings.Join(pk, ", ")+")")
	}

	return fmt.Sprintf("CREATE TABLE %s (\n%s\n)", quoteIdent(table), strings.Join(cols, ",\n")), nil
}

func (d *SQLDatabase) postgresPrimaryKey(ctx context.Context, table string) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = current_schema() AND tc.table_name = $1
		ORDER BY kcu.ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("primary key of %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("primary key of %s: %w", table, err)
		}
		cols = append(cols, quoteIdent(name))
	}
	return cols, rows.Err()
}

func sampleBlock(table string, rows *Rows) string {
	var b strings.Builder
	fmt.Fprintf(&b, "/*\n%d rows from %s table:\n", rows.Len(), table)
	b.WriteString(strings.Join(rows.Columns, "\t"))
	for _, row := range rows.Values {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatValue(v)
		}
		b.WriteString("\n" + strings.Join(cells, "\t"))
	}
	b.WriteString("\n*/")
	return b.String()
}
