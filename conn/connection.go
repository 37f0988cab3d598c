// Package conn is the top-level entrypoint (C8): it turns a connection URL
// into a pooled dialect.Driver, creating the target database first when
// asked to, and hands out txn.Transaction handles — either a fresh owned
// SQL transaction, or a bare pooled-connection handle with none. SQLite's
// ":memory:" database only exists for the lifetime of one connection, so
// every caller sharing a ":memory:" URL is funneled onto a single
// persistent transaction instead, grounded on original_source's
// connector/connection.rs (SQLConnection::sqlite_memory_transaction /
// UNIQUE_TRANSACTION).
package conn

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/polysql/polysql/dialect"
	sqldriver "github.com/polysql/polysql/dialect/sql"
	"github.com/polysql/polysql/txn"
)

// Connection pools one dialect.Driver and mints transactions against it.
type Connection struct {
	d          dialect.Dialect
	driver     *sqldriver.Driver
	memoryMode bool
}

// New parses rawURL's scheme into a dialect, opens a pooled driver for it,
// and — when reset or the target database does not yet exist — creates
// the database first. SQLite never needs this step: the file (or
// ":memory:" handle) is created implicitly on first connect.
func New(ctx context.Context, rawURL string, reset bool) (*Connection, error) {
	d, driverName, dsn, dbName, err := parseURL(rawURL)
	if err != nil {
		return nil, err
	}
	if d != dialect.SQLite {
		if err := createDatabaseIfNeeded(ctx, d, driverName, dsn, dbName, reset); err != nil {
			return nil, err
		}
	}
	drv, err := sqldriver.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("conn: open %s: %w", d, err)
	}
	return &Connection{
		d:          d,
		driver:     drv,
		memoryMode: d == dialect.SQLite && strings.Contains(rawURL, ":memory:"),
	}, nil
}

// Transaction opens a fresh owned SQL transaction against the pool. For a
// ":memory:" SQLite connection it instead returns the single shared
// transaction every caller of this process funnels through, since closing
// the last connection to an in-memory database discards it.
func (c *Connection) Transaction(ctx context.Context) (txn.Transaction, error) {
	if c.memoryMode {
		return sqliteMemoryTransaction(ctx, c)
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("conn: begin transaction: %w", err)
	}
	return txn.New(c.d, c.driver, tx), nil
}

// NoTransaction returns a Transaction handle over the pooled connection
// with no owned SQL transaction: every statement it runs auto-commits.
// A ":memory:" SQLite connection still funnels through the shared
// transaction, the same as Transaction, since there is no other way to
// see the database's contents across calls.
func (c *Connection) NoTransaction() txn.Transaction {
	if c.memoryMode {
		t, err := sqliteMemoryTransaction(context.Background(), c)
		if err == nil {
			return t
		}
	}
	return txn.New(c.d, c.driver, nil)
}

// Dialect reports the connection's dialect.
func (c *Connection) Dialect() dialect.Dialect { return c.d }

// Close releases the pooled driver's underlying *sql.DB.
func (c *Connection) Close() error { return c.driver.Close() }

var (
	memoryMu  sync.Mutex
	memoryTxn txn.Transaction
)

func sqliteMemoryTransaction(ctx context.Context, c *Connection) (txn.Transaction, error) {
	memoryMu.Lock()
	defer memoryMu.Unlock()
	if memoryTxn != nil {
		return memoryTxn, nil
	}
	tx, err := c.driver.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("conn: open sqlite memory transaction: %w", err)
	}
	memoryTxn = txn.New(dialect.SQLite, c.driver, tx)
	return memoryTxn, nil
}

// parseURL resolves rawURL's scheme to a dialect plus the database/sql
// driver name and DSN that dialect's registered driver expects, and (for
// MySQL/Postgres) the bare database name for the create-database step.
func parseURL(rawURL string) (d dialect.Dialect, driverName, dsn, dbName string, err error) {
	scheme, _, ok := strings.Cut(rawURL, "://")
	if !ok {
		return "", "", "", "", fmt.Errorf("conn: malformed connection url %q", rawURL)
	}
	switch scheme {
	case "mysql":
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", "", "", fmt.Errorf("conn: parse mysql url: %w", err)
		}
		host := u.Host
		if host == "" {
			host = "127.0.0.1:3306"
		}
		dbName := strings.TrimPrefix(u.Path, "/")
		dsn := mysqlDSN(u, host, dbName)
		return dialect.MySQL, "mysql", dsn, dbName, nil
	case "postgres", "postgresql":
		u, err := url.Parse(rawURL)
		if err != nil {
			return "", "", "", "", fmt.Errorf("conn: parse postgres url: %w", err)
		}
		return dialect.Postgres, "postgres", rawURL, strings.TrimPrefix(u.Path, "/"), nil
	case "sqlite", "file":
		return dialect.SQLite, "sqlite", strings.TrimPrefix(rawURL, scheme+"://"), "", nil
	default:
		return "", "", "", "", fmt.Errorf("conn: unsupported connection scheme %q", scheme)
	}
}

func mysqlDSN(u *url.URL, host, dbName string) string {
	var userinfo string
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			userinfo = fmt.Sprintf("%s:%s@", u.User.Username(), pw)
		} else {
			userinfo = fmt.Sprintf("%s@", u.User.Username())
		}
	}
	dsn := fmt.Sprintf("%stcp(%s)/%s", userinfo, host, dbName)
	if u.RawQuery != "" {
		dsn += "?" + u.RawQuery
	}
	return dsn
}

// createDatabaseIfNeeded opens a maintenance connection to the server
// (MySQL with no database selected, Postgres's "postgres" database)
// and creates dbName, dropping it first when reset asks for a clean slate.
func createDatabaseIfNeeded(ctx context.Context, d dialect.Dialect, driverName, dsn, dbName string, reset bool) error {
	if dbName == "" {
		return nil
	}
	maintenanceDSN, err := maintenanceDSN(d, dsn)
	if err != nil {
		return err
	}
	admin, err := sqldriver.Open(driverName, maintenanceDSN)
	if err != nil {
		return fmt.Errorf("conn: open maintenance connection: %w", err)
	}
	defer admin.Close()

	if reset {
		stmt := fmt.Sprintf("DROP DATABASE IF EXISTS %s", d.Escape(dbName))
		if err := admin.Exec(ctx, stmt, nil, nil); err != nil {
			return fmt.Errorf("conn: drop database %s: %w", dbName, err)
		}
	}

	switch d {
	case dialect.MySQL:
		stmt := fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", d.Escape(dbName))
		if err := admin.Exec(ctx, stmt, nil, nil); err != nil {
			return fmt.Errorf("conn: create database %s: %w", dbName, err)
		}
	case dialect.Postgres:
		stmt := fmt.Sprintf("CREATE DATABASE %s", d.Escape(dbName))
		if err := admin.Exec(ctx, stmt, nil, nil); err != nil && !strings.Contains(err.Error(), "already exists") {
			return fmt.Errorf("conn: create database %s: %w", dbName, err)
		}
	}
	return nil
}

// maintenanceDSN rewrites dsn to point at a system database that always
// exists, so the real target database can be created without already
// being connected to it.
func maintenanceDSN(d dialect.Dialect, dsn string) (string, error) {
	switch d {
	case dialect.MySQL:
		idx := strings.LastIndex(dsn, "/")
		if idx < 0 {
			return "", fmt.Errorf("conn: malformed mysql dsn %q", dsn)
		}
		return dsn[:idx+1], nil
	case dialect.Postgres:
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("conn: parse postgres dsn: %w", err)
		}
		u.Path = "/postgres"
		return u.String(), nil
	default:
		return dsn, nil
	}
}
