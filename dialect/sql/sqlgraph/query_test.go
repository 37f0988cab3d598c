package sqlgraph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// fakeQuerier replays one canned (columns, rows) result per call, in order,
// so tests can assert on the stitched-together object graph without a real
// driver — sqlgraph.Querier is exactly narrow enough to fake this way.
type fakeQuerier struct {
	calls   int
	results [][2]any // columns []string, rows [][]any
}

func (f *fakeQuerier) run(ctx context.Context, stmt string) ([]string, [][]any, error) {
	r := f.results[f.calls]
	f.calls++
	cols := r[0].([]string)
	rows := r[1].([][]any)
	return cols, rows, nil
}

func userModel() *catalog.Model {
	m := &catalog.Model{
		Name:      "User",
		TableName: "users",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt), Primary: true},
			{Name: "name", ColumnName: "name", DBType: catalog.MySQL("varchar"), LogicalType: catalog.Scalar(catalog.ScalarString)},
		},
	}
	return m.Build()
}

func postModel() *catalog.Model {
	m := &catalog.Model{
		Name:      "Post",
		TableName: "posts",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt), Primary: true},
			{Name: "authorId", ColumnName: "author_id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt), Optional: true},
			{Name: "title", ColumnName: "title", DBType: catalog.MySQL("varchar"), LogicalType: catalog.Scalar(catalog.ScalarString)},
		},
		Relations: []*catalog.Relation{
			{Name: "author", Fields: []string{"authorId"}, References: []string{"id"}, ModelPath: []string{"User"}},
		},
	}
	return m.Build()
}

func tagModel() *catalog.Model {
	m := &catalog.Model{
		Name:      "Tag",
		TableName: "tags",
		Fields: []*catalog.Field{
			{Name: "id", ColumnName: "id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt), Primary: true},
			{Name: "name", ColumnName: "name", DBType: catalog.MySQL("varchar"), LogicalType: catalog.Scalar(catalog.ScalarString)},
		},
	}
	return m.Build()
}

func postTagModel() *catalog.Model {
	m := &catalog.Model{
		Name:      "PostTag",
		TableName: "post_tags",
		Fields: []*catalog.Field{
			{Name: "postId", ColumnName: "post_id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt)},
			{Name: "tagId", ColumnName: "tag_id", DBType: catalog.MySQL("int"), LogicalType: catalog.Scalar(catalog.ScalarInt)},
		},
		Relations: []*catalog.Relation{
			{Name: "post", Fields: []string{"postId"}, References: []string{"id"}, ModelPath: []string{"Post"}},
			{Name: "tag", Fields: []string{"tagId"}, References: []string{"id"}, ModelPath: []string{"Tag"}},
		},
	}
	return m.Build()
}

func postWithTagsModel() *catalog.Model {
	m := postModel()
	m.Relations = append(m.Relations, &catalog.Relation{
		Name: "tags", ModelPath: []string{"Tag"}, ThroughPath: []string{"PostTag"}, Vec: true,
	})
	return m.Build()
}

func TestQueryObjectsDirectRelationInclude(t *testing.T) {
	post, user := postModel(), userModel()
	ns := catalog.NewNamespace(post, user)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{
			{1, 10, "hello"},
			{2, 10, "world"},
			{3, 20, "foo"},
		}},
		{[]string{"id", "name"}, [][]any{
			{10, "Alice"},
			{20, "Bob"},
		}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{
		"include": map[string]any{"author": map[string]any{}},
	}, dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 2, fq.calls)

	author0, ok := rows[0]["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Alice", author0["name"])

	author2, ok := rows[2]["author"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Bob", author2["name"])
}

func TestQueryObjectsIncludeWithNoMatch(t *testing.T) {
	post, user := postModel(), userModel()
	ns := catalog.NewNamespace(post, user)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{
			{1, nil, "orphan"},
		}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{
		"include": map[string]any{"author": map[string]any{}},
	}, dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// authorId was NULL, so the relation fetch never ran: only the base query executed.
	assert.Equal(t, 1, fq.calls)
	assert.Nil(t, rows[0]["author"])
}

func TestQueryObjectsJoinTableInclude(t *testing.T) {
	post, tag, through := postWithTagsModel(), tagModel(), postTagModel()
	ns := catalog.NewNamespace(post, tag, through)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{
			{1, 10, "hello"},
			{2, 10, "world"},
		}},
		{[]string{"id", "name", "__bucket_0"}, [][]any{
			{100, "go", 1},
			{101, "rust", 1},
			{100, "go", 2},
		}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{
		"include": map[string]any{"tags": map[string]any{}},
	}, dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	tags0, ok := rows[0]["tags"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tags0, 2)

	tags1, ok := rows[1]["tags"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, tags1, 1)
	assert.Equal(t, "go", tags1[0]["name"])
}

func TestQueryObjectsJoinTableNoMatches(t *testing.T) {
	post, tag, through := postWithTagsModel(), tagModel(), postTagModel()
	ns := catalog.NewNamespace(post, tag, through)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{
		"include": map[string]any{"tags": map[string]any{}},
	}, dialect.MySQL)
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Equal(t, 1, fq.calls)
}

func TestQueryObjectsNegativeTakeReversesRows(t *testing.T) {
	post := postModel()
	ns := catalog.NewNamespace(post)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{
			{3, 1, "c"},
			{2, 1, "b"},
			{1, 1, "a"},
		}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{"take": -3}, dialect.MySQL)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, 1, rows[0]["id"])
	assert.Equal(t, 2, rows[1]["id"])
	assert.Equal(t, 3, rows[2]["id"])
}

func TestQueryObjectsDistinctAppliesBeforePaging(t *testing.T) {
	post := postModel()
	ns := catalog.NewNamespace(post)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"id", "author_id", "title"}, [][]any{
			{1, 10, "a"},
			{2, 10, "a"},
			{3, 20, "b"},
			{4, 30, "c"},
			{5, 30, "c"},
		}},
	}}

	rows, err := QueryObjects(context.Background(), fq.run, ns, post, map[string]any{
		"distinct": []string{"title"},
		"skip":     1,
		"take":     2,
	}, dialect.MySQL)
	require.NoError(t, err)
	// Distinct over "title" keeps the first occurrence of each: ids 1, 3, 4.
	// Paging (skip 1, take 2) over that deduped set leaves ids 3 and 4.
	require.Len(t, rows, 2)
	assert.Equal(t, 3, rows[0]["id"])
	assert.Equal(t, 4, rows[1]["id"])
}

func TestQueryCount(t *testing.T) {
	post := postModel()
	ns := catalog.NewNamespace(post)

	fq := &fakeQuerier{results: [][2]any{
		{[]string{"count"}, [][]any{{int64(7)}}},
	}}

	n, err := QueryCount(context.Background(), fq.run, ns, post, map[string]any{}, dialect.MySQL)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
