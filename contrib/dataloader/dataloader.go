// Package dataloader batches per-request field resolution over
// txn.Transaction.FindMany: a caller resolving a relation one row at a time
// (e.g. a GraphQL field resolver) collects the requested keys and runs one
// FindMany against an IN-list instead of one query per row, complementing
// sqlgraph's own include executor for callers that can't express their
// fetch as a single finder up front.
//
// # Basic Usage
//
// Define a loader function for a model:
//
//	func userBatchFn(ctx context.Context, t txn.Transaction, ns *catalog.Namespace, ids []int64) ([]map[string]any, []error) {
//	    rows, err := t.FindMany(ctx, ns, userModel, map[string]any{"where": map[string]any{"id": map[string]any{"in": ids}}})
//	    if err != nil {
//	        return nil, []error{err}
//	    }
//	    return dataloader.OrderByKeys(ids, rows, func(r map[string]any) int64 { return r["id"].(int64) })
//	}
//
// # Key Extraction
//
// Use KeyFunc to extract IDs from decoded rows:
//
//	keyFn := func(r map[string]any) int64 { return r["id"].(int64) }
//	ordered := dataloader.OrderByKeys(ids, rows, keyFn)
package dataloader

import (
	"context"
	"errors"
)

// ErrNotFound is returned when an entity is not found in a batch result.
var ErrNotFound = errors.New("dataloader: entity not found")

// KeyFunc extracts a key from an entity.
type KeyFunc[K comparable, V any] func(V) K

// BatchFunc is a function that loads a batch of entities by their keys.
type BatchFunc[K comparable, V any] func(ctx context.Context, keys []K) ([]V, []error)

// OrderByKeys reorders entities to match the order of requested keys.
// Missing entities are represented as zero values with corresponding errors.
//
// This is essential for DataLoader because the result slice must:
//   - Have the same length as the input keys
//   - Have results in the same order as the input keys
//
// Example:
//
//	rows, _ := t.FindMany(ctx, ns, userModel, map[string]any{"where": map[string]any{"id": map[string]any{"in": ids}}})
//	ordered, errs := OrderByKeys(ids, rows, func(r map[string]any) int64 { return r["id"].(int64) })
func OrderByKeys[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) ([]V, []error) {
	// Build lookup map
	lookup := make(map[K]V, len(values))
	for _, v := range values {
		lookup[keyFn(v)] = v
	}

	// Build ordered result
	result := make([]V, len(keys))
	errs := make([]error, len(keys))
	for i, key := range keys {
		if v, ok := lookup[key]; ok {
			result[i] = v
		} else {
			errs[i] = ErrNotFound
		}
	}
	return result, errs
}

// OrderByKeysNoError reorders entities to match the order of requested keys.
// Returns zero values for missing entities without errors.
// Use this when missing entities are acceptable (e.g., optional relationships).
func OrderByKeysNoError[K comparable, V any](keys []K, values []V, keyFn KeyFunc[K, V]) []V {
	result, _ := OrderByKeys(keys, values, keyFn)
	return result
}

// GroupByKey groups entities by a key function.
// Useful for one-to-many relationships where multiple entities share the same foreign key.
//
// Example:
//
//	// Load all posts for multiple users
//	rows, _ := t.FindMany(ctx, ns, postModel, map[string]any{"where": map[string]any{"userId": map[string]any{"in": userIDs}}})
//	grouped := GroupByKey(rows, func(r map[string]any) int64 { return r["userId"].(int64) })
//	// grouped[userID] contains all posts for that user
func GroupByKey[K comparable, V any](values []V, keyFn KeyFunc[K, V]) map[K][]V {
	result := make(map[K][]V)
	for _, v := range values {
		key := keyFn(v)
		result[key] = append(result[key], v)
	}
	return result
}

// OrderGroupsByKeys reorders grouped entities to match the order of requested keys.
// Returns a slice of slices where each inner slice contains entities for that key.
//
// Example:
//
//	rows, _ := t.FindMany(ctx, ns, postModel, map[string]any{"where": map[string]any{"userId": map[string]any{"in": userIDs}}})
//	grouped := GroupByKey(rows, func(r map[string]any) int64 { return r["userId"].(int64) })
//	ordered := OrderGroupsByKeys(userIDs, grouped)
//	// ordered[i] contains all posts for userIDs[i]
func OrderGroupsByKeys[K comparable, V any](keys []K, groups map[K][]V) [][]V {
	result := make([][]V, len(keys))
	for i, key := range keys {
		result[i] = groups[key]
	}
	return result
}

// CachePrimer primes a DataLoader cache with known values.
// This is useful after mutations to update the cache.
type CachePrimer[K comparable, V any] interface {
	Prime(key K, value V)
}

// PrimeMany primes multiple values into a cache.
func PrimeMany[K comparable, V any](cache CachePrimer[K, V], values []V, keyFn KeyFunc[K, V]) {
	for _, v := range values {
		cache.Prime(keyFn(v), v)
	}
}

// CacheClearer clears values from a DataLoader cache.
type CacheClearer[K comparable] interface {
	Clear(key K)
}

// ClearMany clears multiple keys from a cache.
func ClearMany[K comparable](cache CacheClearer[K], keys []K) {
	for _, key := range keys {
		cache.Clear(key)
	}
}

// ctxKey is the context key for storing DataLoaders.
type ctxKey struct{}

// WithLoaders injects a request-scoped Loaders value into the context, for
// callers (GraphQL resolvers, REST handlers) that resolve one relation field
// at a time and need the same batch window shared across a single request.
//
// Example:
//
//	ctx := dataloader.WithLoaders(ctx, NewLoaders(t, ns))
func WithLoaders[T any](ctx context.Context, loaders T) context.Context {
	return context.WithValue(ctx, ctxKey{}, loaders)
}

// For extracts DataLoaders from context.
//
// Example:
//
//	loaders := dataloader.For[*Loaders](ctx)
//	user, err := loaders.UserLoader.Load(ctx, userID)()
func For[T any](ctx context.Context) T {
	v, _ := ctx.Value(ctxKey{}).(T)
	return v
}

// BatchResult represents the result of a batch load operation.
type BatchResult[V any] struct {
	Value V
	Error error
}

// NewBatchResult creates a new BatchResult.
func NewBatchResult[V any](value V, err error) BatchResult[V] {
	return BatchResult[V]{Value: value, Error: err}
}

// Results converts separate value and error slices into BatchResult slice.
func Results[V any](values []V, errs []error) []BatchResult[V] {
	results := make([]BatchResult[V], len(values))
	for i := range values {
		var err error
		if i < len(errs) {
			err = errs[i]
		}
		results[i] = BatchResult[V]{Value: values[i], Error: err}
	}
	return results
}
