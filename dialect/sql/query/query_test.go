package query

import (
	"testing"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userModel() *catalog.Model {
	return (&catalog.Model{
		Name:      "User",
		TableName: "users",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", LogicalType: catalog.Scalar(catalog.ScalarInt), Primary: true, AutoIncrement: true},
			{Name: "name", ColumnName: "name", LogicalType: catalog.Scalar(catalog.ScalarString)},
			{Name: "age", ColumnName: "age", LogicalType: catalog.Scalar(catalog.ScalarInt)},
			{Name: "nickname", ColumnName: "nickname", LogicalType: catalog.Scalar(catalog.ScalarString), Optional: true},
		},
		Relations: []*catalog.Relation{
			{Name: "posts", ModelPath: []string{"Post"}, Fields: []string{"id"}, References: []string{"authorId"}, Vec: true},
		},
		Indexes: []*catalog.Index{
			{Kind: catalog.IndexKindPrimary, Items: []catalog.IndexItem{{Field: "id"}}},
		},
	}).Build()
}

func postModel() *catalog.Model {
	return (&catalog.Model{
		Name:      "Post",
		TableName: "posts",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", LogicalType: catalog.Scalar(catalog.ScalarInt), Primary: true},
			{Name: "authorId", ColumnName: "author_id", LogicalType: catalog.Scalar(catalog.ScalarInt)},
		},
		Indexes: []*catalog.Index{
			{Kind: catalog.IndexKindPrimary, Items: []catalog.IndexItem{{Field: "id"}}},
		},
	}).Build()
}

func testNamespace() *catalog.Namespace {
	return catalog.NewNamespace(userModel(), postModel())
}

func TestWhereEntryItemShorthandEquals(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{"name": "ada"}, dialect.Postgres, "")
	assert.Equal(t, `"name" = 'ada'`, got)
}

func TestWhereEntryItemOperators(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"age": map[string]any{"gte": 18},
	}, dialect.Postgres, "")
	assert.Equal(t, `("age" >= 18)`, got)
}

func TestWhereInEmptyArrayIsFalse(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"name": map[string]any{"in": []any{}},
	}, dialect.Postgres, "")
	assert.Equal(t, "(FALSE)", got)
}

func TestWhereNotInEmptyArrayIsTrue(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"name": map[string]any{"notIn": []any{}},
	}, dialect.Postgres, "")
	assert.Equal(t, "(TRUE)", got)
}

func TestWhereAndCombinator(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"AND": []map[string]any{
			{"name": "ada"},
			{"age": map[string]any{"gt": 10}},
		},
	}, dialect.Postgres, "")
	assert.Equal(t, `(("name" = 'ada') AND (("age" > 10)))`, got)
}

func TestWhereNullEquals(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"nickname": map[string]any{"equals": nil},
	}, dialect.Postgres, "")
	assert.Equal(t, `("nickname" IS NULL)`, got)
}

func TestWhereContainsInsensitive(t *testing.T) {
	model := userModel()
	got := Where(testNamespace(), model, map[string]any{
		"name": map[string]any{"contains": "da", "mode": "insensitive"},
	}, dialect.MySQL, "")
	assert.Equal(t, "(LOWER(`name`) LIKE LOWER('%da%'))", got)
}

func TestOrderByNegativeTakeSwapsDirection(t *testing.T) {
	model := userModel()
	ob := []map[string]any{{"id": "asc"}}
	assert.Equal(t, "id ASC", OrderBy(model, ob, dialect.Postgres, false))
	assert.Equal(t, "id DESC", OrderBy(model, ob, dialect.Postgres, true))
}

func TestBuildSimpleSelect(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	sql, err := Build(ns, model, map[string]any{
		"where": map[string]any{"name": "ada"},
	}, dialect.Postgres, Options{})
	require.NoError(t, err)
	assert.Equal(t, `SELECT * FROM "users" WHERE "name" = 'ada'`, sql)
}

func TestBuildWithSkipTake(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	sql, err := Build(ns, model, map[string]any{
		"skip": 5,
		"take": 10,
	}, dialect.Postgres, Options{})
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 10 OFFSET 5")
}

func TestBuildWithPageSizePageNumber(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	sql, err := Build(ns, model, map[string]any{
		"pageSize":   10,
		"pageNumber": 3,
	}, dialect.Postgres, Options{})
	require.NoError(t, err)
	assert.Contains(t, sql, "LIMIT 10 OFFSET 20")
}

func TestBuildForCountWraps(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	sql, err := BuildForCount(ns, model, map[string]any{}, dialect.Postgres, Options{})
	require.NoError(t, err)
	assert.Contains(t, sql, "SELECT COUNT(*) FROM (SELECT * FROM")
}

func TestWhereRelationSome(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	got := Where(ns, model, map[string]any{
		"posts": map[string]any{
			"some": map[string]any{},
		},
	}, dialect.Postgres, "")
	assert.Contains(t, got, "IN (SELECT")
	assert.Contains(t, got, `INNER JOIN "posts" AS j`)
}

func TestWhereRelationNoneUsesNotIn(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	got := Where(ns, model, map[string]any{
		"posts": map[string]any{
			"none": map[string]any{},
		},
	}, dialect.Postgres, "")
	assert.Contains(t, got, "NOT IN (SELECT")
}

func TestBuildForAggregateCount(t *testing.T) {
	ns := testNamespace()
	model := userModel()
	sql, err := BuildForAggregate(ns, model, map[string]any{
		"_count": map[string]any{"_all": true},
	}, dialect.Postgres)
	require.NoError(t, err)
	assert.Contains(t, sql, "COUNT(*)")
}
