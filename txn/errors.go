package txn

import (
	"errors"
	"fmt"
	"strings"

	"github.com/polysql/polysql/dialect/sql/sqlgraph"
)

// DatabaseConstraint identifies which constraint a UniqueValueDuplicated
// error names: either a list of field names (a composite unique, or a
// single-field unique reporting one name) or a bare index name.
type DatabaseConstraint struct {
	Fields []string
	Index  string
}

func (c DatabaseConstraint) String() string {
	if c.Index != "" {
		return c.Index
	}
	return strings.Join(c.Fields, ",")
}

// UniqueValueDuplicatedError reports a unique-constraint violation on
// create or update. KeyPath is the caller-supplied key path at which the
// write was attempted.
type UniqueValueDuplicatedError struct {
	KeyPath    []any
	Constraint DatabaseConstraint
}

func (e *UniqueValueDuplicatedError) Error() string {
	return fmt.Sprintf("txn: unique value duplicated for %s at %v", e.Constraint, e.KeyPath)
}

// NotFoundError reports that an update or a find-one-required operation
// matched zero rows.
type NotFoundError struct {
	KeyPath []any
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("txn: not found at %v", e.KeyPath)
}

// ObjectNotSavedError reports Delete called on an object that was never
// persisted.
type ObjectNotSavedError struct {
	KeyPath []any
}

func (e *ObjectNotSavedError) Error() string {
	return fmt.Sprintf("txn: object is not saved, cannot be deleted (at %v)", e.KeyPath)
}

// UnknownDatabaseWriteError wraps any other driver failure on a write path.
type UnknownDatabaseWriteError struct {
	KeyPath []any
	Cause   error
}

func (e *UnknownDatabaseWriteError) Error() string {
	return fmt.Sprintf("txn: unknown database write error at %v: %v", e.KeyPath, e.Cause)
}

func (e *UnknownDatabaseWriteError) Unwrap() error { return e.Cause }

// UnknownDatabaseFindError wraps any other driver failure on a read path.
type UnknownDatabaseFindError struct {
	KeyPath []any
	Cause   error
}

func (e *UnknownDatabaseFindError) Error() string {
	return fmt.Sprintf("txn: unknown database find error at %v: %v", e.KeyPath, e.Cause)
}

func (e *UnknownDatabaseFindError) Unwrap() error { return e.Cause }

// InvalidSQLQueryError wraps a query_raw failure, carrying the driver's
// original message.
type InvalidSQLQueryError struct {
	Message string
	Cause   error
}

func (e *InvalidSQLQueryError) Error() string {
	return fmt.Sprintf("txn: invalid sql query: %s", e.Message)
}

func (e *InvalidSQLQueryError) Unwrap() error { return e.Cause }

// MigrationFatalError reports a schema change the migration engine refuses
// to perform (e.g. SQLite ALTER COLUMN, or an unsafe NOT NULL add).
type MigrationFatalError struct {
	Reason string
}

func (e *MigrationFatalError) Error() string {
	return fmt.Sprintf("txn: migration fatal: %s", e.Reason)
}

// classifyWriteErr converts a raw driver error from a create/update/delete
// path into the taxonomy above, classifying unique-constraint violations by
// inspecting the error text through sqlgraph's dialect-aware detectors.
func classifyWriteErr(err error, keyPath []any) error {
	if err == nil {
		return nil
	}
	if sqlgraph.IsUniqueConstraintError(err) {
		return &UniqueValueDuplicatedError{
			KeyPath:    keyPath,
			Constraint: constraintFromErr(err),
		}
	}
	return &UnknownDatabaseWriteError{KeyPath: keyPath, Cause: err}
}

// constraintFromErr best-effort extracts the offending field/index name
// from a unique-constraint error's message. Drivers vary widely in how much
// structure they expose here; when none is recoverable the bare message is
// reported as the index name so the caller at least sees something
// actionable.
func constraintFromErr(err error) DatabaseConstraint {
	msg := err.Error()
	if idx := strings.Index(msg, "constraint \""); idx >= 0 {
		rest := msg[idx+len("constraint \""):]
		if end := strings.IndexByte(rest, '"'); end >= 0 {
			return DatabaseConstraint{Index: rest[:end]}
		}
	}
	return DatabaseConstraint{Index: msg}
}

// IsUniqueValueDuplicated reports whether err (or something it wraps) is a
// UniqueValueDuplicatedError.
func IsUniqueValueDuplicated(err error) bool {
	var e *UniqueValueDuplicatedError
	return errors.As(err, &e)
}

// IsNotFound reports whether err (or something it wraps) is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}
