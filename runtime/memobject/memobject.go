// Package memobject is an in-memory runtime.Object implementation — a
// stand-in for the generated entity structs a real runtime would provide,
// just enough of one to drive txn.Transaction and the nested include
// executor. No test in this module imports it.
package memobject

import (
	"context"
	"fmt"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/runtime"
)

// Object is a plain map-backed runtime.Object.
type Object struct {
	model     *catalog.Model
	ns        *catalog.Namespace
	values    map[string]any
	updators  map[string]runtime.AtomicUpdator
	isNew     bool
	prevIdent map[string]any
}

var _ runtime.Object = (*Object)(nil)

// New creates a new, unsaved Object for model.
func New(ns *catalog.Namespace, model *catalog.Model) *Object {
	return &Object{model: model, ns: ns, values: map[string]any{}, isNew: true}
}

// Load wraps an already-persisted row (as returned by dialect/sql/decode.Row)
// as an existing Object.
func Load(ns *catalog.Namespace, model *catalog.Model, values map[string]any) *Object {
	return &Object{model: model, ns: ns, values: cloneMap(values), isNew: false}
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (o *Object) Model() *catalog.Model         { return o.model }
func (o *Object) Namespace() *catalog.Namespace { return o.ns }
func (o *Object) IsNew() bool                   { return o.isNew }

func (o *Object) KeysForSave() []string { return o.model.SaveKeys() }

func (o *Object) GetValue(key string) (any, bool) {
	v, ok := o.values[key]
	return v, ok
}

// Set assigns a plain (non-atomic) pending value, the way application code
// populates a new or mutated object before Save.
func (o *Object) Set(key string, value any) {
	o.values[key] = value
}

// SetAtomicUpdator records a pending atomic updator for key instead of a
// plain value, e.g. SetAtomicUpdator("score", runtime.AtomicUpdator{Op: "increment", Value: 3}).
func (o *Object) SetAtomicUpdator(key string, updator runtime.AtomicUpdator) {
	if o.updators == nil {
		o.updators = map[string]runtime.AtomicUpdator{}
	}
	o.updators[key] = updator
}

func (o *Object) SetValue(key string, value any) error {
	if _, ok := o.model.Field(key); !ok {
		if _, ok := o.model.Property(key); !ok {
			return fmt.Errorf("memobject: unknown field or property %q", key)
		}
	}
	o.values[key] = value
	return nil
}

func (o *Object) GetPropertyValue(ctx context.Context, key string) (any, error) {
	v, ok := o.values[key]
	if !ok {
		return nil, fmt.Errorf("memobject: property %q has no cached value", key)
	}
	return v, nil
}

func (o *Object) GetAtomicUpdator(key string) (runtime.AtomicUpdator, bool) {
	u, ok := o.updators[key]
	return u, ok
}

func (o *Object) Identifier() map[string]any {
	idx, ok := o.model.PrimaryIndex()
	if !ok {
		return nil
	}
	out := make(map[string]any, len(idx.Items))
	for _, item := range idx.Items {
		out[item.Field] = o.values[item.Field]
	}
	return out
}

// SnapshotIdentifier freezes the object's current identifier as its
// "previous" identifier — call this right before mutating key fields on an
// existing object, the way an application layer would before calling Save.
func (o *Object) SnapshotIdentifier() {
	o.prevIdent = o.Identifier()
}

func (o *Object) PreviousIdentifier() map[string]any {
	if o.prevIdent != nil {
		return o.prevIdent
	}
	return o.Identifier()
}

func (o *Object) SetFromDatabaseResultValue(value map[string]any, selectTree, include any) {
	for k, v := range value {
		o.values[k] = v
	}
	o.isNew = false
	o.updators = nil
	o.prevIdent = nil
}
