package schema

import (
	"context"
	"fmt"
	"strings"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	sqldriver "github.com/polysql/polysql/dialect/sql"
)

// ReferenceOption names a foreign key's ON DELETE behavior.
type ReferenceOption string

const (
	NoAction   ReferenceOption = "NO ACTION"
	Restrict   ReferenceOption = "RESTRICT"
	Cascade    ReferenceOption = "CASCADE"
	SetNull    ReferenceOption = "SET NULL"
	SetDefault ReferenceOption = "SET DEFAULT"
)

// Column is one table column, either introspected from a live database or
// derived from a catalog.Model's fields via ModelToTable. Type is the
// already-rendered DDL type text (e.g. "VARCHAR(255)") rather than the
// structured catalog.Type, since catalog.Type embeds slice fields
// (MySQLType.Variants) that make it incomparable with ==/!=, and
// ValidateDiff needs a plain equality check between the current and
// desired column type.
type Column struct {
	Name      string
	Type      string
	Nullable  bool
	Default   any
	Size      int
	Unique    bool
	Increment bool
}

// Index is a table index: a primary key, a unique constraint, or a plain
// index. Sorts, when non-nil, gives the per-column sort direction in the
// same order as Columns; a nil Sorts means every column sorts ascending.
type Index struct {
	Name    string
	Unique  bool
	Columns []*Column
	Sorts   []catalog.Sort
}

// ForeignKey is an inline foreign key declared on a table's CREATE
// statement. This migration engine does not diff foreign keys after table
// creation — original_source's migrate.rs never manipulates them post
// creation either, only columns and indexes.
type ForeignKey struct {
	Symbol     string
	Columns    []*Column
	RefTable   *Table
	RefColumns []*Column
	OnDelete   ReferenceOption
}

// Table is a database table, either the live (introspected) shape or the
// desired (model-derived) shape.
type Table struct {
	Name        string
	Columns     []*Column
	PrimaryKey  []*Column
	Indexes     []*Index
	ForeignKeys []*ForeignKey
}

func (t *Table) column(name string) (*Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return nil, false
}

// ModelToTable derives the desired table shape for model: column
// definitions from its fields, the primary key and secondary indexes from
// its declared indexes, and inline foreign keys from its direct
// (non-join-table) relations. ns, if non-nil, is used to resolve each
// relation's referenced table for the foreign key's RefTable/RefColumns;
// a relation whose referenced table cannot be resolved (including every
// relation when ns is nil) gets no foreign key at all.
func ModelToTable(ns *catalog.Namespace, model *catalog.Model, d dialect.Dialect) *Table {
	t := &Table{Name: model.TableName}
	byName := make(map[string]*Column, len(model.Fields))
	for _, f := range model.Fields {
		c := &Column{
			Name:      f.ColumnName,
			Type:      RenderType(f.DBType),
			Nullable:  f.Optional,
			Default:   f.Default,
			Size:      columnSize(f.DBType),
			Unique:    f.Unique,
			Increment: f.AutoIncrement,
		}
		t.Columns = append(t.Columns, c)
		byName[f.Name] = c
	}
	if idx, ok := model.PrimaryIndex(); ok {
		for _, item := range idx.Items {
			if c, ok := byName[item.Field]; ok {
				t.PrimaryKey = append(t.PrimaryKey, c)
			}
		}
	}
	for _, idx := range model.Indexes {
		if idx.Kind == catalog.IndexKindPrimary {
			continue
		}
		sec := &Index{Name: idx.Name, Unique: idx.Kind == catalog.IndexKindUnique}
		for _, item := range idx.Items {
			if c, ok := byName[item.Field]; ok {
				sec.Columns = append(sec.Columns, c)
				sec.Sorts = append(sec.Sorts, item.Sort)
			}
		}
		t.Indexes = append(t.Indexes, sec)
	}
	for _, rel := range model.Relations {
		if rel.HasJoinTable() || len(rel.Fields) == 0 {
			continue
		}
		fk := &ForeignKey{
			Symbol:   fmt.Sprintf("%s_%s", model.TableName, rel.Name),
			OnDelete: Cascade,
		}
		for _, fname := range rel.Fields {
			if c, ok := byName[fname]; ok {
				fk.Columns = append(fk.Columns, c)
			}
		}
		if ns != nil {
			if opposite, _ := ns.ModelAt(rel.ModelPath); opposite != nil {
				fk.RefTable = &Table{Name: opposite.TableName}
				for _, rfname := range rel.References {
					if f, ok := opposite.Field(rfname); ok {
						fk.RefColumns = append(fk.RefColumns, &Column{Name: f.ColumnName})
					}
				}
			}
		}
		if fk.RefTable == nil || len(fk.Columns) == 0 {
			// ValidateSchema dereferences fk.RefTable.Name unconditionally;
			// without a resolved opposite model (ns is nil, or the relation's
			// namespace path didn't resolve) there is nothing safe to validate
			// or emit DDL for, so the foreign key is dropped rather than kept
			// half-built.
			continue
		}
		t.ForeignKeys = append(t.ForeignKeys, fk)
	}
	return t
}

func columnSize(t catalog.Type) int {
	switch t.Kind {
	case catalog.KindMySQL:
		if t.MySQL.Len != nil {
			return int(*t.MySQL.Len)
		}
	case catalog.KindPostgres:
		if t.Postgres.Len != nil {
			return int(*t.Postgres.Len)
		}
	}
	return 0
}

// CreateTableSQL renders CREATE TABLE for t, including an inline PRIMARY
// KEY clause (except where the sole auto-increment column already declares
// it, per dialect convention) and inline FOREIGN KEY clauses.
func CreateTableSQL(t *Table, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	var parts []string
	for _, c := range t.Columns {
		parts = append(parts, columnDDL(c, t, d))
	}
	if len(t.PrimaryKey) > 0 && !inlinesPrimaryKey(t, d) {
		names := make([]string, len(t.PrimaryKey))
		for i, c := range t.PrimaryKey {
			names[i] = q + c.Name + q
		}
		parts = append(parts, fmt.Sprintf("PRIMARY KEY (%s)", strings.Join(names, ", ")))
	}
	for _, fk := range t.ForeignKeys {
		if fk.RefTable == nil || len(fk.RefColumns) == 0 {
			continue
		}
		parts = append(parts, foreignKeyDDL(fk, d))
	}
	return fmt.Sprintf("CREATE TABLE %s%s%s (%s)", q, t.Name, q, strings.Join(parts, ", "))
}

// inlinesPrimaryKey reports whether t's primary key is already expressed
// inline on its sole auto-increment column, so CreateTableSQL should not
// additionally emit a trailing PRIMARY KEY(...) clause.
func inlinesPrimaryKey(t *Table, d dialect.Dialect) bool {
	return d.IsSQLite() && len(t.PrimaryKey) == 1 && t.PrimaryKey[0].Increment
}

func columnDDL(c *Column, t *Table, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	typ := c.Type
	var mods []string
	if c.Increment && d.IsSQLite() && len(t.PrimaryKey) == 1 && t.PrimaryKey[0] == c {
		typ = "INTEGER"
		mods = append(mods, "PRIMARY KEY AUTOINCREMENT")
	} else {
		if !c.Nullable {
			mods = append(mods, "NOT NULL")
		}
		if c.Increment && d.IsMySQL() {
			mods = append(mods, "AUTO_INCREMENT")
		}
		if c.Increment && d.IsPostgres() {
			mods = append(mods, "GENERATED BY DEFAULT AS IDENTITY")
		}
		if c.Default != nil {
			mods = append(mods, "DEFAULT "+defaultLiteral(c.Default))
		}
		if c.Unique {
			mods = append(mods, "UNIQUE")
		}
	}
	return strings.TrimSpace(fmt.Sprintf("%s%s%s %s %s", q, c.Name, q, typ, strings.Join(mods, " ")))
}

func defaultLiteral(v any) string {
	switch val := v.(type) {
	case string:
		return "'" + strings.ReplaceAll(val, "'", "''") + "'"
	case bool:
		if val {
			return "TRUE"
		}
		return "FALSE"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func foreignKeyDDL(fk *ForeignKey, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	cols := make([]string, len(fk.Columns))
	for i, c := range fk.Columns {
		cols[i] = q + c.Name + q
	}
	refCols := make([]string, len(fk.RefColumns))
	for i, c := range fk.RefColumns {
		refCols[i] = q + c.Name + q
	}
	onDelete := fk.OnDelete
	if onDelete == "" {
		onDelete = NoAction
	}
	return fmt.Sprintf("CONSTRAINT %s%s%s FOREIGN KEY (%s) REFERENCES %s%s%s(%s) ON DELETE %s",
		q, fk.Symbol, q, strings.Join(cols, ", "), q, fk.RefTable.Name, q, strings.Join(refCols, ", "), onDelete)
}

func indexCreateSQL(idx *Index, table string, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	unique := ""
	if idx.Unique {
		unique = " UNIQUE"
	}
	items := make([]string, len(idx.Columns))
	for i, c := range idx.Columns {
		sort := catalog.Asc
		if i < len(idx.Sorts) {
			sort = idx.Sorts[i]
		}
		items[i] = fmt.Sprintf("%s%s%s %s", q, c.Name, q, sort.String())
	}
	return fmt.Sprintf("CREATE%s INDEX %s%s%s ON %s%s%s(%s)", unique, q, idx.Name, q, q, table, q, strings.Join(items, ", "))
}

func indexDropSQL(idx *Index, table string, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	if d.IsPostgres() {
		return fmt.Sprintf("DROP INDEX %s%s%s", q, idx.Name, q)
	}
	return fmt.Sprintf("DROP INDEX %s%s%s ON %s%s%s", q, idx.Name, q, q, table, q)
}

// ManipulationKind enumerates the column/index operations the diff engine
// can emit, mirroring original_source's ColumnManipulation enum.
type ManipulationKind int

const (
	ManipCreateIndex ManipulationKind = iota
	ManipDropIndex
	ManipAddColumn
	ManipAlterColumn
	ManipRemoveColumn
)

// Manipulation is one step of a migration plan.
type Manipulation struct {
	Kind       ManipulationKind
	Index      *Index  // CreateIndex, DropIndex
	Column     *Column // AddColumn (desired shape), RemoveColumn (current shape)
	OldColumn  *Column // AlterColumn: current shape
	NewColumn  *Column // AlterColumn: desired shape
	AddDefault any     // AddColumn: an override default distinct from Column.Default
}

// IsAddColumnNonNull reports whether m adds a NOT NULL column with no
// default, the case original_source's migrate() refuses to run against a
// populated table without an explicit drop-and-recreate opt-in.
func (m Manipulation) IsAddColumnNonNull() bool {
	return m.Kind == ManipAddColumn && !m.Column.Nullable && m.AddDefault == nil && m.Column.Default == nil
}

// diffColumnsAndIndexes compares the live (current) and desired table
// shapes, producing an ordered manipulation plan: index drops and creates
// first, then column adds/alters/removes. Column renames are not detected
// here — this module's catalog.Field carries no previous-column-name
// metadata (only catalog.Model.PreviousTableNames exists, for table
// rename), so a renamed field surfaces as an add plus a remove.
func diffColumnsAndIndexes(current, desired *Table) []Manipulation {
	var plan []Manipulation

	desiredIdx := make(map[string]*Index, len(desired.Indexes))
	for _, idx := range desired.Indexes {
		desiredIdx[idx.Name] = idx
	}
	currentIdx := make(map[string]*Index, len(current.Indexes))
	for _, idx := range current.Indexes {
		currentIdx[idx.Name] = idx
	}
	for name, idx := range currentIdx {
		if _, ok := desiredIdx[name]; !ok {
			plan = append(plan, Manipulation{Kind: ManipDropIndex, Index: idx})
		}
	}
	for name, idx := range desiredIdx {
		if _, ok := currentIdx[name]; !ok {
			plan = append(plan, Manipulation{Kind: ManipCreateIndex, Index: idx})
		}
	}

	currentCols := make(map[string]*Column, len(current.Columns))
	for _, c := range current.Columns {
		currentCols[c.Name] = c
	}
	desiredCols := make(map[string]*Column, len(desired.Columns))
	for _, c := range desired.Columns {
		desiredCols[c.Name] = c
	}
	for _, c := range desired.Columns {
		old, ok := currentCols[c.Name]
		if !ok {
			plan = append(plan, Manipulation{Kind: ManipAddColumn, Column: c})
			continue
		}
		if columnsDiffer(old, c) {
			plan = append(plan, Manipulation{Kind: ManipAlterColumn, OldColumn: old, NewColumn: c})
		}
	}
	for _, c := range current.Columns {
		if _, ok := desiredCols[c.Name]; !ok {
			plan = append(plan, Manipulation{Kind: ManipRemoveColumn, Column: c})
		}
	}
	return plan
}

func columnsDiffer(a, b *Column) bool {
	return a.Type != b.Type || a.Nullable != b.Nullable || a.Unique != b.Unique
}

func needsAlter(plan []Manipulation) bool {
	for _, m := range plan {
		if m.Kind == ManipAlterColumn {
			return true
		}
	}
	return false
}

// psqlAlterClauses renders one ALTER TABLE ... ALTER COLUMN statement per
// changed property (type, default), since Postgres rejects a single
// combined ALTER COLUMN clause list the way MySQL/SQLite's MODIFY accepts.
func psqlAlterClauses(table string, old, new *Column) []string {
	var out []string
	q := string(dialect.Postgres.QuoteChar())
	name := new.Name
	if old.Type != new.Type {
		out = append(out, fmt.Sprintf("ALTER TABLE %s%s%s ALTER COLUMN %s%s%s TYPE %s", q, table, q, q, name, q, new.Type))
	}
	switch {
	case old.Default == nil && new.Default != nil:
		out = append(out, fmt.Sprintf("ALTER TABLE %s%s%s ALTER COLUMN %s%s%s SET DEFAULT %s", q, table, q, q, name, q, defaultLiteral(new.Default)))
	case old.Default != nil && new.Default == nil:
		out = append(out, fmt.Sprintf("ALTER TABLE %s%s%s ALTER COLUMN %s%s%s DROP DEFAULT", q, table, q, q, name, q))
	case old.Default != nil && new.Default != nil:
		if old.Default != new.Default {
			out = append(out, fmt.Sprintf("ALTER TABLE %s%s%s ALTER COLUMN %s%s%s SET DEFAULT %s", q, table, q, q, name, q, defaultLiteral(new.Default)))
		}
	}
	return out
}

// Migrate reconciles the live database schema behind eq with the desired
// shape of models: it creates missing tables (detecting a rename via each
// model's PreviousTableNames before falling back to CREATE TABLE), diffs
// and alters existing tables column-by-column and index-by-index, and
// finally drops any table no model claims. Grounded directly on
// original_source's migration/migrate.rs SQLMigration::migrate.
func Migrate(ctx context.Context, d dialect.Dialect, eq dialect.ExecQuerier, models []*catalog.Model) error {
	ns := catalog.NewNamespace(models...)
	dbTables, err := userTables(ctx, eq, d)
	if err != nil {
		return fmt.Errorf("schema: listing tables: %w", err)
	}

	for _, model := range models {
		tableName := model.TableName
		if !containsString(dbTables, tableName) {
			for _, oldName := range model.PreviousTableNames {
				if containsString(dbTables, oldName) {
					if err := renameTable(ctx, eq, d, oldName, tableName); err != nil {
						return fmt.Errorf("schema: renaming table %q to %q: %w", oldName, tableName, err)
					}
					dbTables = replaceString(dbTables, oldName, tableName)
					break
				}
			}
		}

		if !containsString(dbTables, tableName) {
			if err := createTable(ctx, eq, d, ModelToTable(ns, model, d)); err != nil {
				return fmt.Errorf("schema: creating table %q: %w", tableName, err)
			}
			continue
		}
		dbTables = removeString(dbTables, tableName)

		desired := ModelToTable(ns, model, d)
		current, err := introspectTable(ctx, eq, d, tableName)
		if err != nil {
			return fmt.Errorf("schema: introspecting table %q: %w", tableName, err)
		}
		plan := diffColumnsAndIndexes(current, desired)
		if len(plan) == 0 {
			continue
		}
		if needsAlter(plan) && d.IsSQLite() {
			return fmt.Errorf("schema: SQLite does not support altering columns (table %q)", tableName)
		}

		hasNonNullAdd := false
		for _, m := range plan {
			if m.IsAddColumnNonNull() {
				hasNonNullAdd = true
				break
			}
		}
		if hasNonNullAdd {
			hasRecords, err := tableHasRecords(ctx, eq, d, tableName)
			if err != nil {
				return fmt.Errorf("schema: checking records on %q: %w", tableName, err)
			}
			if hasRecords {
				if !model.AllowsDropWhenMigrate {
					return fmt.Errorf("schema: cannot add a NOT NULL column without a default to table %q: it has records and does not allow drop on migrate", tableName)
				}
				if err := dropTable(ctx, eq, d, tableName); err != nil {
					return fmt.Errorf("schema: dropping table %q: %w", tableName, err)
				}
				if err := createTable(ctx, eq, d, desired); err != nil {
					return fmt.Errorf("schema: recreating table %q: %w", tableName, err)
				}
				continue
			}
		}

		if err := applyPlan(ctx, eq, d, tableName, plan); err != nil {
			return fmt.Errorf("schema: migrating table %q: %w", tableName, err)
		}
	}

	for _, leftover := range dbTables {
		if err := dropTable(ctx, eq, d, leftover); err != nil {
			return fmt.Errorf("schema: dropping orphaned table %q: %w", leftover, err)
		}
	}
	return nil
}

func applyPlan(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, table string, plan []Manipulation) error {
	for _, m := range plan {
		switch m.Kind {
		case ManipCreateIndex:
			if err := execNoResult(ctx, eq, indexCreateSQL(m.Index, table, d)); err != nil {
				return err
			}
		case ManipDropIndex:
			if err := execNoResult(ctx, eq, indexDropSQL(m.Index, table, d)); err != nil {
				return err
			}
		case ManipAddColumn:
			col := m.Column
			if m.AddDefault != nil {
				clone := *col
				clone.Default = m.AddDefault
				col = &clone
			}
			stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s", d.Escape(table), columnDDL(col, &Table{}, d))
			if err := execNoResult(ctx, eq, stmt); err != nil {
				return err
			}
		case ManipRemoveColumn:
			q := string(d.QuoteChar())
			stmt := fmt.Sprintf("ALTER TABLE %s DROP COLUMN %s%s%s", d.Escape(table), q, m.Column.Name, q)
			if err := execNoResult(ctx, eq, stmt); err != nil {
				return err
			}
		case ManipAlterColumn:
			if d.IsPostgres() {
				for _, clause := range psqlAlterClauses(table, m.OldColumn, m.NewColumn) {
					if err := execNoResult(ctx, eq, clause); err != nil {
						return err
					}
				}
				continue
			}
			stmt := fmt.Sprintf("ALTER TABLE %s MODIFY COLUMN %s", d.Escape(table), columnDDL(m.NewColumn, &Table{}, d))
			if err := execNoResult(ctx, eq, stmt); err != nil {
				return err
			}
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func removeString(list []string, s string) []string {
	out := make([]string, 0, len(list))
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return out
}

func replaceString(list []string, old, new string) []string {
	out := make([]string, len(list))
	for i, v := range list {
		if v == old {
			out[i] = new
		} else {
			out[i] = v
		}
	}
	return out
}

func createTable(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, t *Table) error {
	if err := execNoResult(ctx, eq, CreateTableSQL(t, d)); err != nil {
		return err
	}
	for _, idx := range t.Indexes {
		if err := execNoResult(ctx, eq, indexCreateSQL(idx, t.Name, d)); err != nil {
			return err
		}
	}
	return nil
}

func dropTable(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, table string) error {
	q := string(d.QuoteChar())
	return execNoResult(ctx, eq, fmt.Sprintf("DROP TABLE %s%s%s", q, table, q))
}

func renameTable(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, oldName, newName string) error {
	q := string(d.QuoteChar())
	return execNoResult(ctx, eq, fmt.Sprintf("ALTER TABLE %s%s%s RENAME TO %s%s%s", q, oldName, q, q, newName, q))
}

func tableHasRecords(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, table string) (bool, error) {
	q := string(d.QuoteChar())
	_, rows, err := runQuery(ctx, eq, fmt.Sprintf("SELECT * FROM %s%s%s LIMIT 1", q, table, q))
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}

func userTables(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect) ([]string, error) {
	var stmt string
	switch {
	case d.IsMySQL():
		stmt = "SHOW TABLES"
	case d.IsPostgres():
		stmt = "SELECT tablename FROM pg_catalog.pg_tables WHERE schemaname != 'pg_catalog' AND schemaname != 'information_schema'"
	case d.IsSQLite():
		stmt = "SELECT name FROM sqlite_master WHERE type in ('table') AND name not like 'sqlite?_%' escape '?'"
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", d)
	}
	_, rows, err := runQuery(ctx, eq, stmt)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf("%v", r[0]))
	}
	return out, nil
}

func introspectTable(ctx context.Context, eq dialect.ExecQuerier, d dialect.Dialect, tableName string) (*Table, error) {
	switch {
	case d.IsMySQL():
		return introspectMySQL(ctx, eq, tableName)
	case d.IsPostgres():
		return introspectPostgres(ctx, eq, tableName)
	case d.IsSQLite():
		return introspectSQLite(ctx, eq, tableName)
	default:
		return nil, fmt.Errorf("schema: unsupported dialect %q", d)
	}
}

func columnIndexMap(cols []string) map[string]int {
	m := make(map[string]int, len(cols))
	for i, c := range cols {
		m[c] = i
	}
	return m
}

func introspectMySQL(ctx context.Context, eq dialect.ExecQuerier, table string) (*Table, error) {
	_, rows, err := runQuery(ctx, eq, fmt.Sprintf("DESCRIBE `%s`", table))
	if err != nil {
		return nil, err
	}
	t := &Table{Name: table}
	for _, r := range rows {
		field := fmt.Sprintf("%v", r[0])
		typ := RenderType(ParseType(fmt.Sprintf("%v", r[1]), dialect.MySQL))
		key := fmt.Sprintf("%v", r[3])
		extra := fmt.Sprintf("%v", r[5])
		c := &Column{
			Name:      field,
			Type:      typ,
			Nullable:  fmt.Sprintf("%v", r[2]) == "YES",
			Default:   r[4],
			Unique:    key == "UNI",
			Increment: strings.Contains(extra, "auto_increment"),
		}
		t.Columns = append(t.Columns, c)
		if key == "PRI" {
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
	}
	idxs, err := introspectMySQLIndexes(ctx, eq, table, t)
	if err != nil {
		return nil, err
	}
	t.Indexes = idxs
	return t, nil
}

// introspectMySQLIndexes groups SHOW INDEX FROM rows by Key_name, mirroring
// original_source's mysql_db_indices. The primary key is reported through
// DESCRIBE instead (see introspectMySQL), so "PRIMARY" is skipped here.
func introspectMySQLIndexes(ctx context.Context, eq dialect.ExecQuerier, table string, t *Table) ([]*Index, error) {
	cols, rows, err := runQuery(ctx, eq, fmt.Sprintf("SHOW INDEX FROM `%s`", table))
	if err != nil {
		return nil, err
	}
	colIdx := columnIndexMap(cols)
	var order []string
	byName := make(map[string]*Index)
	for _, r := range rows {
		keyName := fmt.Sprintf("%v", r[colIdx["Key_name"]])
		if keyName == "PRIMARY" {
			continue
		}
		idx, ok := byName[keyName]
		if !ok {
			idx = &Index{Name: keyName, Unique: fmt.Sprintf("%v", r[colIdx["Non_unique"]]) == "0"}
			byName[keyName] = idx
			order = append(order, keyName)
		}
		col, _ := t.column(fmt.Sprintf("%v", r[colIdx["Column_name"]]))
		idx.Columns = append(idx.Columns, col)
		idx.Sorts = append(idx.Sorts, sortFromMySQL(fmt.Sprintf("%v", r[colIdx["Collation"]])))
	}
	out := make([]*Index, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func introspectPostgres(ctx context.Context, eq dialect.ExecQuerier, table string) (*Table, error) {
	cols, rows, err := runQuery(ctx, eq, fmt.Sprintf(
		`SELECT column_name, data_type, is_nullable, column_default
		 FROM information_schema.columns WHERE table_name = '%s' ORDER BY ordinal_position`, table))
	if err != nil {
		return nil, err
	}
	colIdx := columnIndexMap(cols)
	t := &Table{Name: table}
	for _, r := range rows {
		c := &Column{
			Name:     fmt.Sprintf("%v", r[colIdx["column_name"]]),
			Type:     RenderType(ParseType(fmt.Sprintf("%v", r[colIdx["data_type"]]), dialect.Postgres)),
			Nullable: fmt.Sprintf("%v", r[colIdx["is_nullable"]]) == "YES",
			Default:  r[colIdx["column_default"]],
		}
		t.Columns = append(t.Columns, c)
	}
	pkCols, err := postgresPrimaryKeyColumns(ctx, eq, table)
	if err != nil {
		return nil, err
	}
	for _, name := range pkCols {
		if c, ok := t.column(name); ok {
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
	}
	idxs, err := introspectPostgresIndexes(ctx, eq, table, t)
	if err != nil {
		return nil, err
	}
	t.Indexes = idxs
	return t, nil
}

func postgresPrimaryKeyColumns(ctx context.Context, eq dialect.ExecQuerier, table string) ([]string, error) {
	_, rows, err := runQuery(ctx, eq, fmt.Sprintf(
		`SELECT a.attname FROM pg_index i
		 JOIN pg_attribute a ON a.attrelid = i.indrelid AND a.attnum = ANY(i.indkey)
		 WHERE i.indrelid = '%s'::regclass AND i.indisprimary
		 ORDER BY array_position(i.indkey, a.attnum)`, table))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, fmt.Sprintf("%v", r[0]))
	}
	return out, nil
}

// introspectPostgresIndexes mirrors original_source's psql_db_indices: a
// pg_index/pg_class/pg_namespace/pg_attribute join decoding each index's
// column order and per-column sort direction from indoption's low bit.
func introspectPostgresIndexes(ctx context.Context, eq dialect.ExecQuerier, table string, t *Table) ([]*Index, error) {
	query := fmt.Sprintf(`
		SELECT ic.relname AS index_name, i.indisunique AS is_unique, i.indisprimary AS is_primary,
		       a.attname AS column_name, o.n AS column_position,
		       CASE o.option & 1 WHEN 1 THEN 'DESC' ELSE 'ASC' END AS sort
		FROM pg_index i
		JOIN pg_class ic ON ic.oid = i.indexrelid
		JOIN pg_class tc ON tc.oid = i.indrelid
		JOIN pg_namespace n ON n.oid = tc.relnamespace
		JOIN LATERAL unnest(i.indkey, i.indoption) WITH ORDINALITY AS o(attnum, option, n) ON true
		JOIN pg_attribute a ON a.attrelid = tc.oid AND a.attnum = o.attnum
		WHERE tc.relname = '%s' AND n.nspname NOT IN ('pg_catalog', 'information_schema')
		ORDER BY index_name, column_position`, table)
	cols, rows, err := runQuery(ctx, eq, query)
	if err != nil {
		return nil, err
	}
	colIdx := columnIndexMap(cols)
	var order []string
	byName := make(map[string]*Index)
	for _, r := range rows {
		name := fmt.Sprintf("%v", r[colIdx["index_name"]])
		if fmt.Sprintf("%v", r[colIdx["is_primary"]]) == "true" {
			continue
		}
		idx, ok := byName[name]
		if !ok {
			idx = &Index{Name: name, Unique: fmt.Sprintf("%v", r[colIdx["is_unique"]]) == "true"}
			byName[name] = idx
			order = append(order, name)
		}
		col, _ := t.column(fmt.Sprintf("%v", r[colIdx["column_name"]]))
		idx.Columns = append(idx.Columns, col)
		idx.Sorts = append(idx.Sorts, sortFromDesc(fmt.Sprintf("%v", r[colIdx["sort"]]) == "DESC"))
	}
	out := make([]*Index, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
}

func introspectSQLite(ctx context.Context, eq dialect.ExecQuerier, table string) (*Table, error) {
	cols, rows, err := runQuery(ctx, eq, fmt.Sprintf("pragma table_info('%s')", table))
	if err != nil {
		return nil, err
	}
	colIdx := columnIndexMap(cols)
	t := &Table{Name: table}
	for _, r := range rows {
		c := &Column{
			Name:     fmt.Sprintf("%v", r[colIdx["name"]]),
			Type:     RenderType(ParseType(fmt.Sprintf("%v", r[colIdx["type"]]), dialect.SQLite)),
			Nullable: fmt.Sprintf("%v", r[colIdx["notnull"]]) == "0",
			Default:  r[colIdx["dflt_value"]],
		}
		t.Columns = append(t.Columns, c)
		if fmt.Sprintf("%v", r[colIdx["pk"]]) != "0" {
			t.PrimaryKey = append(t.PrimaryKey, c)
		}
	}
	if len(t.PrimaryKey) == 1 {
		t.PrimaryKey[0].Increment = true
	}
	idxs, err := introspectSQLiteIndexes(ctx, eq, table, t)
	if err != nil {
		return nil, err
	}
	t.Indexes = idxs
	return t, nil
}

// introspectSQLiteIndexes mirrors original_source's sqlite_db_indices,
// joining sqlite_master against pragma_index_list/pragma_index_xinfo. The
// synthesized rowid-alias primary index never appears here since SQLite
// only auto-creates one for multi-column or non-INTEGER primary keys, a
// case this module does not currently model.
func introspectSQLiteIndexes(ctx context.Context, eq dialect.ExecQuerier, table string, t *Table) ([]*Index, error) {
	query := fmt.Sprintf(`
		SELECT m.name AS index_name, l."unique" AS is_unique, l.origin AS origin,
		       x.name AS column_name, x.seqno AS column_position, x.desc AS is_desc
		FROM sqlite_master m
		JOIN pragma_index_list(m.name) l
		JOIN pragma_index_xinfo(l.name) x ON x.key = 1
		WHERE m.type = 'index' AND m.tbl_name = '%s'
		ORDER BY index_name, column_position`, table)
	cols, rows, err := runQuery(ctx, eq, query)
	if err != nil {
		return nil, err
	}
	colIdx := columnIndexMap(cols)
	var order []string
	byName := make(map[string]*Index)
	for _, r := range rows {
		name := fmt.Sprintf("%v", r[colIdx["index_name"]])
		if fmt.Sprintf("%v", r[colIdx["origin"]]) == "pk" {
			continue
		}
		idx, ok := byName[name]
		if !ok {
			idx = &Index{Name: name, Unique: fmt.Sprintf("%v", r[colIdx["is_unique"]]) == "1"}
			byName[name] = idx
			order = append(order, name)
		}
		col, _ := t.column(fmt.Sprintf("%v", r[colIdx["column_name"]]))
		idx.Columns = append(idx.Columns, col)
		idx.Sorts = append(idx.Sorts, sortFromDesc(fmt.Sprintf("%v", r[colIdx["is_desc"]]) == "1"))
	}
	out := make([]*Index, 0, len(order))
	for _, name := range order {
		out = append(out, byName[name])
	}
	return out, nil
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
