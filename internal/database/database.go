// Package database talks to the relational database questions are answered
// from. It provides the catalog accessor, the guarded query executor and the
// database/sql implementation both sit on.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/comigor/nl2sql-go/internal/config"
)

// Dialect names the SQL variant spoken by the connected database.
type Dialect string

const (
	DialectPostgres Dialect = "postgresql"
	DialectSQLite   Dialect = "sqlite"
)

// DB is the database collaborator: introspection and raw statement execution.
type DB interface {
	Dialect() Dialect
	ListTables(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string, sampleRows int) (string, error)
	Query(ctx context.Context, query string) (*Rows, error)
}

// SQLDatabase implements DB over a database/sql pool. The pool is safe for
// concurrent sessions; each statement borrows its own connection.
type SQLDatabase struct {
	db      *sql.DB
	dialect Dialect
}

// Open connects using cfg and verifies the database is reachable.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*SQLDatabase, error) {
	var driver string
	var dialect Dialect
	switch cfg.Driver {
	case config.DriverPostgres:
		driver, dialect = "pgx", DialectPostgres
	case config.DriverSQLite:
		driver, dialect = "sqlite", DialectSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	db, err := sql.Open(driver, cfg.URL())
	if err != nil {
		return nil, connectionError("open", err)
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	d := NewSQLDatabase(db, dialect)
	if err := d.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return d, nil
}

// NewSQLDatabase wraps an already opened pool.
func NewSQLDatabase(db *sql.DB, dialect Dialect) *SQLDatabase {
	return &SQLDatabase{db: db, dialect: dialect}
}

func (d *SQLDatabase) Dialect() Dialect { return d.dialect }

func (d *SQLDatabase) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return connectionError("ping", err)
	}
	// sqlite opens lazily; touching the catalog surfaces a missing file.
	if d.dialect == DialectSQLite {
		if _, err := d.db.ExecContext(ctx, "SELECT count(*) FROM sqlite_master"); err != nil {
			return connectionError("ping", err)
		}
	}
	return nil
}

func (d *SQLDatabase) Close() error {
	return d.db.Close()
}

func (d *SQLDatabase) ListTables(ctx context.Context) ([]string, error) {
	var query string
	switch d.dialect {
	case DialectSQLite:
		query = `SELECT name FROM sqlite_master
			WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
			ORDER BY name`
	default:
		query = `SELECT table_name FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_type IN ('BASE TABLE', 'VIEW')
			ORDER BY table_name`
	}

	rows, err := d.db.QueryContext(ctx, query)
	if err != nil {
		return nil, connectionError("list tables", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, connectionError("list tables", err)
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, connectionError("list tables", err)
	}
	return tables, nil
}

// Query runs a statement and collects every returned row. On PostgreSQL the
// statement runs inside a READ ONLY transaction that is always rolled back.
func (d *SQLDatabase) Query(ctx context.Context, query string) (*Rows, error) {
	if d.dialect != DialectPostgres {
		rows, err := d.db.QueryContext(ctx, query)
		if err != nil {
			return nil, &ExecutionError{Query: query, Err: err}
		}
		return collect(query, rows)
	}

	tx, err := d.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}
	return collect(query, rows)
}

func collect(query string, rows *sql.Rows) (*Rows, error) {
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}

	out := &Rows{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ExecutionError{Query: query, Err: err}
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		out.Values = append(out.Values, values)
	}
	if err := rows.Err(); err != nil {
		return nil, &ExecutionError{Query: query, Err: err}
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
