package dialect

import (
	"context"
	"fmt"
	"strings"
)

// Dialect identifies the target SQL flavor. A single Dialect value governs
// every string produced for a given connection's lifetime.
type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"

	// MSSQL and MongoDB are named by the value tree's dialect enum but are
	// not implemented: any attempt to render SQL for them panics, per
	// spec.md's Non-goals ("supporting MSSQL or MongoDB (enum present but
	// panics)").
	MSSQL   Dialect = "mssql"
	MongoDB Dialect = "mongodb"
)

// QuoteChar returns the identifier quote character for the dialect:
// backtick for MySQL/SQLite, double-quote for PostgreSQL.
func (d Dialect) QuoteChar() byte {
	switch d {
	case Postgres:
		return '"'
	case MySQL, SQLite:
		return '`'
	default:
		panic(fmt.Sprintf("dialect: unsupported dialect %q", d))
	}
}

// Escape wraps a possibly-dotted identifier in the dialect's quote
// character. If the input already contains the quote char it is passed
// through unchanged (it is assumed pre-escaped); otherwise each
// dot-separated segment is individually quoted.
func (d Dialect) Escape(name string) string {
	q := d.QuoteChar()
	if strings.IndexByte(name, q) >= 0 {
		return name
	}
	segments := strings.Split(name, ".")
	for i, s := range segments {
		segments[i] = string(q) + s + string(q)
	}
	return strings.Join(segments, ".")
}

func (d Dialect) IsMySQL() bool    { return d == MySQL }
func (d Dialect) IsPostgres() bool { return d == Postgres }
func (d Dialect) IsSQLite() bool   { return d == SQLite }

// NoLimitSentinel is the value used as LIMIT when only OFFSET was
// requested (no take/pageSize given alongside skip).
func (d Dialect) NoLimitSentinel() uint64 {
	if d == MySQL {
		return 18446744073709551615
	}
	return 9223372036854775806
}

// Driver is the pooled-driver contract this module consumes; it mirrors
// database/sql.DB's blocking surface but routes rendered SQL text (no
// placeholders — see spec.md §6 "Wire/DDL output").
type Driver interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
	Tx(ctx context.Context) (Tx, error)
	Close() error
	Dialect() string
}

// Tx extends Driver with commit/rollback, representing an owned
// transaction borrowed from a pooled connection.
type Tx interface {
	Driver
	Commit() error
	Rollback() error
}

// ExecQuerier is implemented by both Driver and Tx.
type ExecQuerier interface {
	Exec(ctx context.Context, query string, args, v any) error
	Query(ctx context.Context, query string, args, v any) error
}
