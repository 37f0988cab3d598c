package schema

import (
	"testing"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/stretchr/testify/assert"
)

func int32p(n int32) *int32 { return &n }

func TestRenderTypeMySQL(t *testing.T) {
	assert.Equal(t, "VARCHAR(191)", RenderType(catalog.Type{Kind: catalog.KindMySQL, MySQL: catalog.MySQLType{Name: "varchar", Len: int32p(191)}}))
	assert.Equal(t, "INT() UNSIGNED", RenderType(catalog.Type{Kind: catalog.KindMySQL, MySQL: catalog.MySQLType{Name: "int"}}))
	assert.Equal(t, "BIGINT(20)", RenderType(catalog.Type{Kind: catalog.KindMySQL, MySQL: catalog.MySQLType{Name: "bigint", Len: int32p(20), Signed: true}}))
	assert.Equal(t, "DECIMAL(10, 2)", RenderType(catalog.Type{Kind: catalog.KindMySQL, MySQL: catalog.MySQLType{Name: "decimal", Len: int32p(10), Len2: int32p(2)}}))
	// The missing-E "DATATIME" spelling is reproduced verbatim from the
	// source this type codec is ported from.
	assert.Equal(t, "DATATIME(3)", RenderType(catalog.Type{Kind: catalog.KindMySQL, MySQL: catalog.MySQLType{Name: "datetime", Len: int32p(3)}}))
}

func TestRenderTypePostgres(t *testing.T) {
	assert.Equal(t, "TIMESTAMP(3) WITH TIMEZONE", RenderType(catalog.Type{Kind: catalog.KindPostgres, Postgres: catalog.PostgresType{Name: "timestamp", Len: int32p(3), WithTZ: true}}))
	inner := catalog.PostgresType{Name: "integer"}
	assert.Equal(t, "INTEGER[]", RenderType(catalog.Type{Kind: catalog.KindPostgres, Postgres: catalog.PostgresType{Name: "array", Element: &inner}}))
}

func TestRenderTypeSQLite(t *testing.T) {
	assert.Equal(t, "INTEGER", RenderType(catalog.Type{Kind: catalog.KindSQLite, SQLite: catalog.SQLiteType{Name: "integer"}}))
}

func TestParseTypeMySQLRoundTrips(t *testing.T) {
	got := ParseType("int(11) unsigned", dialect.MySQL)
	assert.Equal(t, catalog.KindMySQL, got.Kind)
	assert.Equal(t, "int", got.MySQL.Name)
	assert.Equal(t, int32(11), *got.MySQL.Len)
	assert.False(t, got.MySQL.Signed)

	got = ParseType("varchar(255)", dialect.MySQL)
	assert.Equal(t, "varchar", got.MySQL.Name)
	assert.Equal(t, int32(255), *got.MySQL.Len)

	got = ParseType("decimal(10,2)", dialect.MySQL)
	assert.Equal(t, int32(10), *got.MySQL.Len)
	assert.Equal(t, int32(2), *got.MySQL.Len2)

	got = ParseType("enum('a','b')", dialect.MySQL)
	assert.Equal(t, []string{"a", "b"}, got.MySQL.Variants)
}

func TestParseTypePostgresArray(t *testing.T) {
	got := ParseType("array|integer", dialect.Postgres)
	assert.Equal(t, "array", got.Postgres.Name)
	assert.Equal(t, "integer", got.Postgres.Element.Name)
}

func TestParseTypeSQLite(t *testing.T) {
	got := ParseType("INTEGER", dialect.SQLite)
	assert.Equal(t, "integer", got.SQLite.Name)
}
