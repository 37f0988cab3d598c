package dataloader

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/txn"
)

// FieldLoader batches resolution of one relation field: each Load call takes
// the full set of keys to resolve and runs a single FindMany against an
// IN-list rather than one query per requested row. It does not collect keys
// between calls.
type FieldLoader struct {
	t          txn.Transaction
	ns         *catalog.Namespace
	model      *catalog.Model
	keyField   string
	baseFinder map[string]any
}

// NewFieldLoader builds a loader that resolves model rows by keyField.
func NewFieldLoader(t txn.Transaction, ns *catalog.Namespace, model *catalog.Model, keyField string, baseFinder map[string]any) *FieldLoader {
	return &FieldLoader{t: t, ns: ns, model: model, keyField: keyField, baseFinder: baseFinder}
}

// Load runs one FindMany covering every key in keys and returns the matching
// rows grouped by keyField, in arbitrary order within each group.
func (l *FieldLoader) Load(ctx context.Context, keys []any) (map[any][]map[string]any, error) {
	finder := make(map[string]any, len(l.baseFinder)+1)
	for k, v := range l.baseFinder {
		finder[k] = v
	}
	where, _ := finder["where"].(map[string]any)
	if where == nil {
		where = map[string]any{}
	}
	where[l.keyField] = map[string]any{"in": keys}
	finder["where"] = where

	rows, err := l.t.FindMany(ctx, l.ns, l.model, finder)
	if err != nil {
		return nil, err
	}
	return GroupByKey(rows, func(r map[string]any) any { return r[l.keyField] }), nil
}

// LoadAll runs several FieldLoaders concurrently, the way a single GraphQL
// response resolving several sibling relations in parallel would, and
// returns each loader's grouped rows in the same order as loaders. A
// failure in any loader cancels the rest via the shared errgroup context.
func LoadAll(ctx context.Context, loaders []*FieldLoader, keys [][]any) ([]map[any][]map[string]any, error) {
	results := make([]map[any][]map[string]any, len(loaders))
	g, gctx := errgroup.WithContext(ctx)
	for i := range loaders {
		i := i
		g.Go(func() error {
			grouped, err := loaders[i].Load(gctx, keys[i])
			if err != nil {
				return err
			}
			results[i] = grouped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
