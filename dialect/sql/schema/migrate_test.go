package schema

import (
	"testing"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userModel() *catalog.Model {
	m := &catalog.Model{
		Name:      "User",
		TableName: "users",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt), AutoIncrement: true, Primary: true},
			{Name: "email", ColumnName: "email", DBType: catalog.MySQL("varchar"), LogicalType: catalog.Scalar(catalog.ScalarString), Unique: true},
			{Name: "name", ColumnName: "name", DBType: catalog.MySQL("varchar"), LogicalType: catalog.Scalar(catalog.ScalarString), Optional: true},
		},
		Indexes: []*catalog.Index{
			{Kind: catalog.IndexKindPrimary, Name: "PRIMARY", Items: []catalog.IndexItem{{Field: "id"}}},
			{Kind: catalog.IndexKindUnique, Name: "idx_users_email", Items: []catalog.IndexItem{{Field: "email"}}},
		},
	}
	return m.Build()
}

func TestModelToTableColumnsAndPrimaryKey(t *testing.T) {
	table := ModelToTable(nil, userModel(), dialect.MySQL)
	assert.Equal(t, "users", table.Name)
	require.Len(t, table.Columns, 3)
	require.Len(t, table.PrimaryKey, 1)
	assert.Equal(t, "id", table.PrimaryKey[0].Name)
	assert.True(t, table.PrimaryKey[0].Increment)

	email, ok := table.column("email")
	require.True(t, ok)
	assert.True(t, email.Unique)
	assert.False(t, email.Nullable)

	name, ok := table.column("name")
	require.True(t, ok)
	assert.True(t, name.Nullable)
}

func TestModelToTableSecondaryIndexExcludesPrimary(t *testing.T) {
	table := ModelToTable(nil, userModel(), dialect.MySQL)
	require.Len(t, table.Indexes, 1)
	assert.Equal(t, "idx_users_email", table.Indexes[0].Name)
	assert.True(t, table.Indexes[0].Unique)
}

func TestModelToTableSkipsUnresolvedForeignKey(t *testing.T) {
	m := &catalog.Model{
		Name:      "Post",
		TableName: "posts",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), Primary: true, AutoIncrement: true},
			{Name: "authorId", ColumnName: "author_id", DBType: catalog.MySQL("int")},
		},
		Relations: []*catalog.Relation{
			{Name: "author", Fields: []string{"authorId"}, References: []string{"id"}, ModelPath: []string{"User"}},
		},
	}
	m.Build()
	table := ModelToTable(nil, m, dialect.MySQL)
	assert.Empty(t, table.ForeignKeys)
}

func TestModelToTableResolvesForeignKeyThroughNamespace(t *testing.T) {
	user := userModel()
	post := &catalog.Model{
		Name:      "Post",
		TableName: "posts",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), Primary: true, AutoIncrement: true},
			{Name: "authorId", ColumnName: "author_id", DBType: catalog.MySQL("int")},
		},
		Relations: []*catalog.Relation{
			{Name: "author", Fields: []string{"authorId"}, References: []string{"id"}, ModelPath: []string{"User"}},
		},
	}
	post.Build()
	ns := catalog.NewNamespace(user, post)

	table := ModelToTable(ns, post, dialect.MySQL)
	require.Len(t, table.ForeignKeys, 1)
	fk := table.ForeignKeys[0]
	assert.Equal(t, "users", fk.RefTable.Name)
	require.Len(t, fk.RefColumns, 1)
	assert.Equal(t, "id", fk.RefColumns[0].Name)
	assert.Equal(t, Cascade, fk.OnDelete)
}

func TestCreateTableSQLMySQLInlinesAutoIncrementPrimaryKey(t *testing.T) {
	table := ModelToTable(nil, userModel(), dialect.MySQL)
	stmt := CreateTableSQL(table, dialect.MySQL)
	assert.Contains(t, stmt, "CREATE TABLE `users`")
	assert.Contains(t, stmt, "AUTO_INCREMENT")
	assert.Contains(t, stmt, "PRIMARY KEY (`id`)")
	assert.Contains(t, stmt, "UNIQUE")
}

func TestCreateTableSQLSQLiteInlinesRowidPrimaryKey(t *testing.T) {
	table := ModelToTable(nil, userModel(), dialect.SQLite)
	stmt := CreateTableSQL(table, dialect.SQLite)
	assert.Contains(t, stmt, "INTEGER PRIMARY KEY AUTOINCREMENT")
	assert.NotContains(t, stmt, "PRIMARY KEY (`id`)")
}

func TestDiffColumnsAndIndexesDetectsAddAndRemove(t *testing.T) {
	current := &Table{
		Name: "users",
		Columns: []*Column{
			{Name: "id", Type: "INT", Increment: true},
			{Name: "legacy", Type: "VARCHAR(255)", Nullable: true},
		},
	}
	desired := &Table{
		Name: "users",
		Columns: []*Column{
			{Name: "id", Type: "INT", Increment: true},
			{Name: "email", Type: "VARCHAR(255)"},
		},
	}
	plan := diffColumnsAndIndexes(current, desired)

	var added, removed bool
	for _, m := range plan {
		switch m.Kind {
		case ManipAddColumn:
			added = m.Column.Name == "email"
		case ManipRemoveColumn:
			removed = m.Column.Name == "legacy"
		}
	}
	assert.True(t, added, "expected email to be added")
	assert.True(t, removed, "expected legacy to be removed")
}

func TestDiffColumnsAndIndexesDetectsTypeChange(t *testing.T) {
	current := &Table{Columns: []*Column{{Name: "age", Type: "SMALLINT"}}}
	desired := &Table{Columns: []*Column{{Name: "age", Type: "BIGINT"}}}
	plan := diffColumnsAndIndexes(current, desired)
	require.Len(t, plan, 1)
	assert.Equal(t, ManipAlterColumn, plan[0].Kind)
	assert.Equal(t, "SMALLINT", plan[0].OldColumn.Type)
	assert.Equal(t, "BIGINT", plan[0].NewColumn.Type)
}

func TestDiffColumnsAndIndexesNoChangeIsEmpty(t *testing.T) {
	current := &Table{Columns: []*Column{{Name: "age", Type: "INT"}}}
	desired := &Table{Columns: []*Column{{Name: "age", Type: "INT"}}}
	assert.Empty(t, diffColumnsAndIndexes(current, desired))
}

func TestIsAddColumnNonNull(t *testing.T) {
	m := Manipulation{Kind: ManipAddColumn, Column: &Column{Name: "phone", Nullable: false}}
	assert.True(t, m.IsAddColumnNonNull())

	m.Column.Default = "n/a"
	assert.False(t, m.IsAddColumnNonNull())

	m.Column.Default = nil
	m.AddDefault = "n/a"
	assert.False(t, m.IsAddColumnNonNull())
}

func TestPsqlAlterClausesTypeChange(t *testing.T) {
	clauses := psqlAlterClauses("users", &Column{Name: "age", Type: "SMALLINT"}, &Column{Name: "age", Type: "BIGINT"})
	require.Len(t, clauses, 1)
	assert.Contains(t, clauses[0], `ALTER COLUMN "age" TYPE BIGINT`)
}

func TestPsqlAlterClausesSetDefaultWhenAdded(t *testing.T) {
	clauses := psqlAlterClauses("users", &Column{Name: "role", Type: "TEXT"}, &Column{Name: "role", Type: "TEXT", Default: "member"})
	require.Len(t, clauses, 1)
	assert.Contains(t, clauses[0], "SET DEFAULT 'member'")
}

func TestPsqlAlterClausesDropDefaultWhenRemoved(t *testing.T) {
	clauses := psqlAlterClauses("users", &Column{Name: "role", Type: "TEXT", Default: "member"}, &Column{Name: "role", Type: "TEXT"})
	require.Len(t, clauses, 1)
	assert.Contains(t, clauses[0], "DROP DEFAULT")
}

func TestIndexCreateAndDropSQL(t *testing.T) {
	idx := &Index{Name: "idx_users_email", Unique: true, Columns: []*Column{{Name: "email"}}}
	create := indexCreateSQL(idx, "users", dialect.Postgres)
	assert.Equal(t, `CREATE UNIQUE INDEX "idx_users_email" ON "users"("email" ASC)`, create)

	drop := indexDropSQL(idx, "users", dialect.Postgres)
	assert.Equal(t, `DROP INDEX "idx_users_email"`, drop)

	dropMySQL := indexDropSQL(idx, "users", dialect.MySQL)
	assert.Equal(t, "DROP INDEX `idx_users_email` ON `users`", dropMySQL)
}
