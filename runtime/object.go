// Package runtime declares the minimal object-facade contract this module
// consumes from the surrounding ORM runtime. It owns no persistence logic
// itself — txn.Transaction reads and writes through this interface so the
// SQL layer never needs to know how the runtime represents an in-memory
// model instance.
package runtime

import (
	"context"

	"github.com/polysql/polysql/catalog"
)

// AtomicUpdator describes a field's pending atomic write, e.g.
// {"increment": 3} or {"push": "tag"}. Op is one of
// "increment"/"decrement"/"multiply"/"divide"/"push".
type AtomicUpdator struct {
	Op    string
	Value any
}

// Object is the facade over one model instance that txn.Transaction reads
// and writes through. It mirrors the teacher's generated entity type but,
// unlike a compile-time-generated struct, is satisfied by any runtime
// object representation (see runtime/memobject for a test double).
type Object interface {
	Model() *catalog.Model
	Namespace() *catalog.Namespace

	// KeysForSave returns the field/property names that should be written
	// on create or update, in declaration order.
	KeysForSave() []string

	// IsNew reports whether this object has never been persisted.
	IsNew() bool

	// GetValue returns a field's current in-memory value. ok is false if
	// the field was never set.
	GetValue(key string) (value any, ok bool)

	// SetValue assigns a field's in-memory value, e.g. after a generated
	// primary key comes back from an INSERT.
	SetValue(key string, value any) error

	// GetPropertyValue computes a cached-property value (may run a getter
	// that itself queries the database).
	GetPropertyValue(ctx context.Context, key string) (any, error)

	// GetAtomicUpdator returns the pending atomic updator for key, if the
	// caller requested one (e.g. {"increment": 3}) instead of a plain
	// value assignment.
	GetAtomicUpdator(key string) (AtomicUpdator, bool)

	// Identifier returns the field→value map that uniquely locates this
	// object's current row (normally its primary key).
	Identifier() map[string]any

	// PreviousIdentifier returns the identifier as it was before any
	// pending changes to key fields — the row to target in UPDATE's WHERE
	// clause, since the in-memory identifier may already reflect an
	// unsaved key change.
	PreviousIdentifier() map[string]any

	// SetFromDatabaseResultValue hydrates the object's fields from a
	// decoded row (see dialect/sql/decode.Row), optionally scoped by a
	// select/include tree. Passing nil select/include hydrates every
	// column present in value.
	SetFromDatabaseResultValue(value map[string]any, selectTree, include any)
}
