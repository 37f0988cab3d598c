// Package sql provides the pooled driver wrapper and session-variable
// plumbing shared by every dialect. It sits directly on top of
// database/sql: Driver/Conn/Tx here are thin wrappers that add dialect
// tagging and per-statement SET/RESET session variables.
//
// Unlike a placeholder-based query builder, every statement this module
// sends across this layer is a fully rendered literal string — there are
// no driver-level parameters to bind. The query builder, encoder and
// decoder that produce those strings live in the query, encode and
// decode subpackages; this package only knows how to run rendered SQL
// against a dialect-tagged connection.
//
// # Dialects
//
//	import "github.com/polysql/polysql/dialect"
//
//	drv, err := sql.Open(string(dialect.Postgres), dsn)
//	drv, err := sql.Open(string(dialect.MySQL), dsn)
//	drv, err := sql.Open(string(dialect.SQLite), dsn)
//
// # Session variables
//
// A caller that needs a statement to run under a particular session
// setting (e.g. a Postgres search_path, or a MySQL sql_mode) attaches it
// to the context rather than splicing it into the rendered SQL:
//
//	ctx = sql.WithVar(ctx, "search_path", schemaName)
//	return drv.Query(ctx, renderedSQL, nil, rows)
//
// The wrapped Conn checks out a dedicated *sql.Conn, issues SET before
// the real statement and RESET (or SET ... = NULL) after, so the
// variable never leaks to a connection returned to the pool.
package sql
