// Package dialect provides the database dialect abstraction for this module.
//
// This package defines the interfaces and types used for database-specific
// operations, allowing the module to support multiple database backends including
// PostgreSQL, MySQL, and SQLite.
//
// # Supported Dialects
//
// The following dialects are supported:
//
//   - Postgres: PostgreSQL database
//   - MySQL: MySQL/MariaDB database
//   - SQLite: SQLite database
//
// # Dialect Constants
//
// Each dialect is identified by a constant string:
//
//	dialect.Postgres = "postgres"
//	dialect.MySQL    = "mysql"
//	dialect.SQLite   = "sqlite"
//
// # Driver Interface
//
// The package defines the Driver interface for database operations:
//
//	type Driver interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	    Tx(ctx context.Context) (Tx, error)
//	    Close() error
//	    Dialect() string
//	}
//
// # Transaction Interface
//
// The Tx interface extends Driver with transaction methods:
//
//	type Tx interface {
//	    Driver
//	    Commit() error
//	    Rollback() error
//	}
//
// # ExecQuerier Interface
//
// The ExecQuerier interface is implemented by both Driver and Tx:
//
//	type ExecQuerier interface {
//	    Exec(ctx context.Context, query string, args, v any) error
//	    Query(ctx context.Context, query string, args, v any) error
//	}
//
// # Usage
//
// Opening a database connection:
//
//	import (
//	    "github.com/polysql/polysql/dialect"
//	    "github.com/polysql/polysql/dialect/sql"
//	)
//
//	db, err := sql.Open(string(dialect.Postgres), "postgres://...")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
// # Sub-packages
//
// The dialect package contains several sub-packages:
//
//   - dialect/sql: database/sql-backed driver implementation
//   - dialect/sql/encode, dialect/sql/decode: value literal encoding and row decoding
//   - dialect/sql/query: SQL rendering of the query value tree
//   - dialect/sql/schema: Schema introspection and migration
//   - dialect/sql/sqlgraph: Nested include execution (eager loading)
package dialect
