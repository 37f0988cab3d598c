package decode

import (
	"testing"
	"time"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScalarString(t *testing.T) {
	v, err := Scalar([]byte("hello"), catalog.Scalar(catalog.ScalarString), false, dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)
}

func TestScalarNullOptional(t *testing.T) {
	v, err := Scalar(nil, catalog.Scalar(catalog.ScalarString), true, dialect.MySQL)
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestScalarNullRequiredErrors(t *testing.T) {
	_, err := Scalar(nil, catalog.Scalar(catalog.ScalarString), false, dialect.MySQL)
	assert.Error(t, err)
}

func TestScalarDateTimeSQLite(t *testing.T) {
	v, err := Scalar([]byte("2024-03-15T10:30:00.500Z"), catalog.Scalar(catalog.ScalarDateTime), false, dialect.SQLite)
	require.NoError(t, err)
	got := v.(time.Time)
	assert.Equal(t, 2024, got.Year())
	assert.Equal(t, time.Month(3), got.Month())
}

func TestRowDecodesFieldsAndRelationColumns(t *testing.T) {
	user := (&catalog.Model{
		Name: "User", TableName: "users",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", LogicalType: catalog.Scalar(catalog.ScalarInt)},
			{Name: "name", ColumnName: "name", LogicalType: catalog.Scalar(catalog.ScalarString)},
		},
		Relations: []*catalog.Relation{
			{Name: "posts", ModelPath: []string{"Post"}, Fields: []string{"id"}, References: []string{"authorId"}, Vec: true},
		},
	}).Build()
	post := (&catalog.Model{
		Name: "Post", TableName: "posts",
		Fields: []*catalog.Field{
			{Name: "title", ColumnName: "title", LogicalType: catalog.Scalar(catalog.ScalarString)},
		},
	}).Build()
	ns := catalog.NewNamespace(user, post)

	columns := []string{"id", "name", "posts.title", "c.id"}
	values := []any{int64(1), []byte("ada"), []byte("hello world"), []byte("1")}
	got, err := Row(ns, user, columns, values, dialect.Postgres)
	require.NoError(t, err)
	assert.Equal(t, 1, got["id"])
	assert.Equal(t, "ada", got["name"])
	assert.Equal(t, "hello world", got["posts.title"])
	_, hasCursor := got["c.id"]
	assert.False(t, hasCursor)
}
