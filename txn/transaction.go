// Package txn implements the runtime Transaction contract over a pooled
// SQL connection plus an optional owned SQL transaction: save/delete/find/
// count/aggregate/group-by/raw/commit/abort/spawn, grounded on the
// teacher's dialect/sql driver wrapper and on original_source's
// connector/transaction.rs.
package txn

import (
	"context"
	"fmt"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	sqldriver "github.com/polysql/polysql/dialect/sql"
	"github.com/polysql/polysql/dialect/sql/decode"
	"github.com/polysql/polysql/dialect/sql/encode"
	"github.com/polysql/polysql/dialect/sql/query"
	"github.com/polysql/polysql/dialect/sql/schema"
	"github.com/polysql/polysql/dialect/sql/sqlgraph"
	"github.com/polysql/polysql/runtime"
)

// Transaction is the contract the surrounding runtime drives the SQL
// backend through. A single Transaction wraps one pooled connection; a
// Spawn'd Transaction shares that connection but owns a nested SQL
// transaction of its own.
type Transaction interface {
	Migrate(ctx context.Context, models []*catalog.Model, resetDatabase bool) error
	Purge(ctx context.Context, models []*catalog.Model) error
	QueryRaw(ctx context.Context, sql string) (any, error)

	Save(ctx context.Context, obj runtime.Object, keyPath []any) error
	Delete(ctx context.Context, obj runtime.Object, keyPath []any) error

	FindUnique(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (map[string]any, error)
	FindMany(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) ([]map[string]any, error)

	Count(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (int64, error)
	CountObjects(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (int64, error)
	CountFields(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, fields []string) (map[string]int64, error)

	Aggregate(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (map[string]decode.AggregateBucket, error)
	GroupBy(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) ([]map[string]any, error)

	IsCommitted() bool
	IsTransaction() bool
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	Spawn(ctx context.Context) (Transaction, error)
}

// sqlTransaction is the Transaction implementation over a pooled
// dialect.Driver connection plus an optional owned dialect.Tx.
type sqlTransaction struct {
	d         dialect.Dialect
	conn      dialect.Driver
	tran      dialect.Tx // nil when running without an owned transaction
	committed bool
	spawnSeq  int
}

var _ Transaction = (*sqlTransaction)(nil)

// savepointTransaction is a Spawn'd Postgres transaction: it shares its
// parent's owned dialect.Tx but scopes Commit/Abort to a SAVEPOINT instead
// of the real COMMIT/ROLLBACK, per original_source's connector.rs nested
// transaction handling.
type savepointTransaction struct {
	*sqlTransaction
	name      string
	committed bool
}

var _ Transaction = (*savepointTransaction)(nil)

// IsCommitted and Commit shadow the embedded sqlTransaction's own fields:
// a savepoint's lifecycle is independent of the owning transaction it
// shares tran/conn with.
func (s *savepointTransaction) IsCommitted() bool { return s.committed }

func (s *savepointTransaction) Commit(ctx context.Context) error {
	if err := execNoResult(ctx, s.tran, fmt.Sprintf("RELEASE SAVEPOINT %s", s.name)); err != nil {
		return fmt.Errorf("txn: release savepoint %s: %w", s.name, err)
	}
	s.committed = true
	return nil
}

func (s *savepointTransaction) Abort(ctx context.Context) error {
	return execNoResult(ctx, s.tran, fmt.Sprintf("ROLLBACK TO SAVEPOINT %s", s.name))
}

// New wraps conn (and, if non-nil, an owned transaction tran) as a
// Transaction handle for d.
func New(d dialect.Dialect, conn dialect.Driver, tran dialect.Tx) Transaction {
	return &sqlTransaction{d: d, conn: conn, tran: tran}
}

// queryable returns the owned transaction if one is active, otherwise the
// pooled connection itself.
func (t *sqlTransaction) queryable() dialect.ExecQuerier {
	if t.tran != nil {
		return t.tran
	}
	return t.conn
}

func (t *sqlTransaction) IsTransaction() bool { return t.tran != nil }
func (t *sqlTransaction) IsCommitted() bool   { return t.committed }

func (t *sqlTransaction) Commit(ctx context.Context) error {
	if t.tran == nil {
		t.committed = true
		return nil
	}
	if err := t.tran.Commit(); err != nil {
		return fmt.Errorf("txn: commit: %w", err)
	}
	t.committed = true
	return nil
}

func (t *sqlTransaction) Abort(ctx context.Context) error {
	if t.tran == nil {
		return nil
	}
	return t.tran.Rollback()
}

// Spawn starts a nested transaction scope. Postgres supports real nested
// transactions via SAVEPOINT, so a Spawn of an already-owned Postgres
// transaction issues one instead of opening a second dialect.Tx (which
// Postgres's driver does not allow over the same connection). Every other
// dialect, and the no-owned-transaction case, keeps the original
// conn.Tx(ctx) behavior.
func (t *sqlTransaction) Spawn(ctx context.Context) (Transaction, error) {
	if t.d.IsPostgres() && t.tran != nil {
		t.spawnSeq++
		name := fmt.Sprintf("polysql_spawn_%d", t.spawnSeq)
		if err := execNoResult(ctx, t.tran, fmt.Sprintf("SAVEPOINT %s", name)); err != nil {
			return nil, fmt.Errorf("txn: spawn savepoint %s: %w", name, err)
		}
		return &savepointTransaction{sqlTransaction: t, name: name}, nil
	}
	tx, err := t.conn.Tx(ctx)
	if err != nil {
		return nil, fmt.Errorf("txn: spawn: %w", err)
	}
	return &sqlTransaction{d: t.d, conn: t.conn, tran: tx}, nil
}

func (t *sqlTransaction) Migrate(ctx context.Context, models []*catalog.Model, resetDatabase bool) error {
	return schema.Migrate(ctx, t.d, t.queryable(), models)
}

func (t *sqlTransaction) Purge(ctx context.Context, models []*catalog.Model) error {
	for _, model := range models {
		stmt := fmt.Sprintf("DELETE FROM %s", t.d.Escape(model.TableName))
		if err := execNoResult(ctx, t.queryable(), stmt); err != nil {
			return &UnknownDatabaseWriteError{KeyPath: []any{model.Name}, Cause: err}
		}
	}
	return nil
}

func (t *sqlTransaction) QueryRaw(ctx context.Context, sqlText string) (any, error) {
	columns, rows, err := runQuery(ctx, t.queryable(), sqlText)
	if err != nil {
		return nil, &InvalidSQLQueryError{Message: err.Error(), Cause: err}
	}
	if len(rows) == 0 {
		return nil, nil
	}
	out := make([]map[string]any, len(rows))
	for i, row := range rows {
		m := make(map[string]any, len(columns))
		for j, c := range columns {
			m[c] = row[j]
		}
		out[i] = m
	}
	return out, nil
}

// Save dispatches to Create or Update by obj.IsNew, per original_source's
// save_object.
func (t *sqlTransaction) Save(ctx context.Context, obj runtime.Object, keyPath []any) error {
	if obj.IsNew() {
		return t.create(ctx, obj, keyPath)
	}
	return t.update(ctx, obj, keyPath)
}

func (t *sqlTransaction) create(ctx context.Context, obj runtime.Object, keyPath []any) error {
	model := obj.Model()
	var columns []string
	var literals []string
	for _, key := range obj.KeysForSave() {
		if f, ok := model.Field(key); ok {
			val, _ := obj.GetValue(key)
			if f.AutoIncrement && val == nil {
				continue
			}
			columns = append(columns, f.ColumnName)
			literals = append(literals, encode.Value(val, f.LogicalType, f.Optional, t.d))
			continue
		}
		if p, ok := model.Property(key); ok {
			val, err := obj.GetPropertyValue(ctx, key)
			if err != nil {
				continue
			}
			columns = append(columns, p.ColumnName)
			literals = append(literals, encode.Value(val, p.LogicalType, p.Optional, t.d))
		}
	}
	autoKeys := model.AutoKeys()

	stmt := buildInsert(model.TableName, columns, literals, autoKeys, t.d)
	if t.d.IsPostgres() && len(autoKeys) > 0 {
		cols, rows, err := runQuery(ctx, t.queryable(), stmt)
		if err != nil {
			return classifyWriteErr(err, keyPath)
		}
		if len(rows) == 0 {
			return &UnknownDatabaseWriteError{KeyPath: keyPath, Cause: fmt.Errorf("insert returned no row")}
		}
		decoded, err := decode.Row(obj.Namespace(), model, cols, rows[0], t.d)
		if err != nil {
			return &UnknownDatabaseWriteError{KeyPath: keyPath, Cause: err}
		}
		obj.SetFromDatabaseResultValue(decoded, nil, nil)
		return nil
	}

	lastInsertID, err := execReturningID(ctx, t.queryable(), stmt)
	if err != nil {
		return classifyWriteErr(err, keyPath)
	}
	for _, key := range autoKeys {
		f, _ := model.Field(key)
		if f.LogicalType.Scalar == catalog.ScalarInt64 {
			_ = obj.SetValue(key, lastInsertID)
		} else {
			_ = obj.SetValue(key, int(lastInsertID))
		}
	}
	return nil
}

func (t *sqlTransaction) update(ctx context.Context, obj runtime.Object, keyPath []any) error {
	model := obj.Model()
	var sets []string
	for _, key := range obj.KeysForSave() {
		f, ok := model.Field(key)
		if !ok {
			if p, ok := model.Property(key); ok {
				val, err := obj.GetPropertyValue(ctx, key)
				if err != nil {
					continue
				}
				sets = append(sets, fmt.Sprintf("%s = %s", t.d.Escape(p.ColumnName), encode.Value(val, p.LogicalType, p.Optional, t.d)))
			}
			continue
		}
		col := t.d.Escape(f.ColumnName)
		if updator, ok := obj.GetAtomicUpdator(key); ok {
			lit := encode.Value(updator.Value, f.LogicalType, false, t.d)
			switch updator.Op {
			case "increment":
				sets = append(sets, fmt.Sprintf("%s = %s + %s", col, col, lit))
			case "decrement":
				sets = append(sets, fmt.Sprintf("%s = %s - %s", col, col, lit))
			case "multiply":
				sets = append(sets, fmt.Sprintf("%s = %s * %s", col, col, lit))
			case "divide":
				sets = append(sets, fmt.Sprintf("%s = %s / %s", col, col, lit))
			case "push":
				sets = append(sets, fmt.Sprintf("%s = ARRAY_APPEND(%s, %s)", col, col, lit))
			default:
				return fmt.Errorf("txn: unhandled atomic updator %q", updator.Op)
			}
			continue
		}
		val, _ := obj.GetValue(key)
		sets = append(sets, fmt.Sprintf("%s = %s", col, encode.Value(val, f.LogicalType, f.Optional, t.d)))
	}

	if len(sets) > 0 {
		where := query.WhereFromIdentifier(model, obj.PreviousIdentifier(), t.d)
		stmt := fmt.Sprintf("UPDATE %s SET %s WHERE %s", t.d.Escape(model.TableName), joinComma(sets), where)
		if err := execNoResult(ctx, t.queryable(), stmt); err != nil {
			return classifyWriteErr(err, keyPath)
		}
	}

	rows, err := t.FindMany(ctx, obj.Namespace(), model, map[string]any{
		"where": obj.Identifier(),
		"take":  1,
	})
	if err != nil {
		return &UnknownDatabaseWriteError{KeyPath: keyPath, Cause: err}
	}
	if len(rows) == 0 {
		return &NotFoundError{KeyPath: keyPath}
	}
	obj.SetFromDatabaseResultValue(rows[0], nil, nil)
	return nil
}

func (t *sqlTransaction) Delete(ctx context.Context, obj runtime.Object, keyPath []any) error {
	if obj.IsNew() {
		return &ObjectNotSavedError{KeyPath: keyPath}
	}
	model := obj.Model()
	where := query.WhereFromIdentifier(model, obj.Identifier(), t.d)
	stmt := fmt.Sprintf("DELETE FROM %s WHERE %s", t.d.Escape(model.TableName), where)
	if err := execNoResult(ctx, t.queryable(), stmt); err != nil {
		return classifyWriteErr(err, keyPath)
	}
	return nil
}

func (t *sqlTransaction) FindUnique(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (map[string]any, error) {
	rows, err := t.FindMany(ctx, ns, model, withTake(finder, 1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// FindMany routes every finder-shaped read through sqlgraph.QueryObjects,
// which builds the base SELECT, restores order after a negative-take
// reversal, and recursively resolves finder["include"].
func (t *sqlTransaction) FindMany(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) ([]map[string]any, error) {
	rows, err := sqlgraph.QueryObjects(ctx, t.runner(), ns, model, finder, t.d)
	if err != nil {
		return nil, &UnknownDatabaseFindError{Cause: err}
	}
	return rows, nil
}

// runner adapts the transaction's pooled/owned connection into the
// sqlgraph.Querier shape.
func (t *sqlTransaction) runner() sqlgraph.Querier {
	return func(ctx context.Context, stmt string) ([]string, [][]any, error) {
		return runQuery(ctx, t.queryable(), stmt)
	}
}

func (t *sqlTransaction) Count(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (int64, error) {
	if _, hasSelect := finder["select"]; hasSelect {
		fields, _ := finder["select"].([]string)
		counts, err := t.CountFields(ctx, ns, model, finder, fields)
		if err != nil {
			return 0, err
		}
		var total int64
		for _, c := range counts {
			total += c
		}
		return total, nil
	}
	return t.CountObjects(ctx, ns, model, finder)
}

func (t *sqlTransaction) CountObjects(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (int64, error) {
	n, err := sqlgraph.QueryCount(ctx, t.runner(), ns, model, finder, t.d)
	if err != nil {
		return 0, &UnknownDatabaseFindError{Cause: err}
	}
	return n, nil
}

// CountFields counts non-NULL values per field independently, the way the
// runtime asks when a finder's "select" names specific fields to count
// rather than whole objects.
func (t *sqlTransaction) CountFields(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, fields []string) (map[string]int64, error) {
	out := make(map[string]int64, len(fields))
	for _, field := range fields {
		f, ok := model.Field(field)
		if !ok {
			continue
		}
		aggFinder := map[string]any{}
		for k, v := range finder {
			aggFinder[k] = v
		}
		aggFinder["_count"] = map[string]any{field: true}
		buckets, err := sqlgraph.QueryAggregate(ctx, t.runner(), ns, model, aggFinder, t.d)
		if err != nil {
			return nil, &UnknownDatabaseFindError{Cause: err}
		}
		if v, ok := buckets["_count"][field].(int64); ok {
			out[f.Name] = v
		} else {
			out[f.Name] = 0
		}
	}
	return out, nil
}

func (t *sqlTransaction) Aggregate(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) (map[string]decode.AggregateBucket, error) {
	buckets, err := sqlgraph.QueryAggregate(ctx, t.runner(), ns, model, finder, t.d)
	if err != nil {
		return nil, &UnknownDatabaseFindError{Cause: err}
	}
	return buckets, nil
}

func (t *sqlTransaction) GroupBy(ctx context.Context, ns *catalog.Namespace, model *catalog.Model, finder map[string]any) ([]map[string]any, error) {
	rows, err := sqlgraph.QueryGroupBy(ctx, t.runner(), ns, model, finder, t.d)
	if err != nil {
		return nil, &UnknownDatabaseFindError{Cause: err}
	}
	return rows, nil
}

func withTake(finder map[string]any, n int) map[string]any {
	out := make(map[string]any, len(finder)+1)
	for k, v := range finder {
		out[k] = v
	}
	out["take"] = n
	return out
}

func joinComma(parts []string) string {
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}

func buildInsert(table string, columns, literals []string, autoKeys []string, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	colNames := make([]string, len(columns))
	for i, c := range columns {
		colNames[i] = q + c + q
	}
	stmt := fmt.Sprintf("INSERT INTO %s%s%s (%s) VALUES (%s)", q, table, q, joinComma(colNames), joinComma(literals))
	if d.IsPostgres() && len(autoKeys) > 0 {
		returning := make([]string, len(autoKeys))
		for i := range autoKeys {
			returning[i] = q + autoKeys[i] + q
		}
		stmt += " RETURNING " + joinComma(returning)
	}
	return stmt
}

func runQuery(ctx context.Context, eq dialect.ExecQuerier, stmt string) ([]string, [][]any, error) {
	var rows sqldriver.Rows
	if err := eq.Query(ctx, stmt, []any{}, &rows); err != nil {
		return nil, nil, err
	}
	defer rows.Close()
	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]any
	for rows.Next() {
		raw := make([]any, len(cols))
		dest := make([]any, len(cols))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, nil, err
		}
		out = append(out, raw)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	return cols, out, nil
}

func execNoResult(ctx context.Context, eq dialect.ExecQuerier, stmt string) error {
	return eq.Exec(ctx, stmt, []any{}, nil)
}

func execReturningID(ctx context.Context, eq dialect.ExecQuerier, stmt string) (int64, error) {
	var res sqldriver.Result
	if err := eq.Exec(ctx, stmt, []any{}, &res); err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
