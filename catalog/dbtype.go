// Package catalog holds the plain-data metadata contracts this module
// consumes from an external model metadata store: models, fields,
// relations, indexes, properties and the namespace that resolves relation
// endpoints across them. Everything here is data, not behavior — the
// store that builds these values lives outside this module.
package catalog

import "fmt"

// DBKind identifies which SQL flavor a Type payload belongs to.
type DBKind int

const (
	KindUndetermined DBKind = iota
	KindMySQL
	KindPostgres
	KindSQLite
)

// Type is the database-type AST produced by the metadata store and
// consumed by the type codec (dialect/sql/schema) for DDL rendering, and
// produced in the other direction by schema.ParseType during introspection.
type Type struct {
	Kind    DBKind
	MySQL   MySQLType
	Postgres PostgresType
	SQLite  SQLiteType
}

// MySQLType enumerates the MySQL column type payloads the codec renders.
type MySQLType struct {
	Name     string // "varchar", "text", "int", "decimal", "datetime", "json", "enum", ...
	Len      *int32
	Len2     *int32 // second arg, e.g. decimal(p,s)
	Signed   bool
	Variants []string // populated when Name == "enum"
}

// PostgresType enumerates the PostgreSQL column type payloads.
type PostgresType struct {
	Name    string
	Len     *int32
	Len2    *int32
	WithTZ  bool
	Element *PostgresType // for Array
}

// SQLiteType enumerates the SQLite column type payloads.
type SQLiteType struct {
	Name string // "text", "integer", "real", "decimal", "blob"
}

func MySQL(name string) Type    { return Type{Kind: KindMySQL, MySQL: MySQLType{Name: name}} }
func Postgres(name string) Type { return Type{Kind: KindPostgres, Postgres: PostgresType{Name: name}} }
func SQLite(name string) Type   { return Type{Kind: KindSQLite, SQLite: SQLiteType{Name: name}} }

func (t Type) String() string {
	switch t.Kind {
	case KindMySQL:
		return fmt.Sprintf("mysql:%s", t.MySQL.Name)
	case KindPostgres:
		return fmt.Sprintf("postgres:%s", t.Postgres.Name)
	case KindSQLite:
		return fmt.Sprintf("sqlite:%s", t.SQLite.Name)
	default:
		return "undetermined"
	}
}

// ScalarKind classifies a Type for the value encoder, independent of
// dialect — it answers "what Go-side shape does a value of this column
// have", not "what DDL spelling does it render as".
type ScalarKind int

const (
	ScalarString ScalarKind = iota
	ScalarBool
	ScalarInt
	ScalarInt64
	ScalarFloat
	ScalarDecimal
	ScalarDate
	ScalarDateTime
	ScalarEnum
	ScalarArray
	ScalarBytes
)

// FieldType describes the logical (dialect-independent) type of a field or
// property, as the value encoder needs it. The metadata store is expected
// to carry one of these per field alongside the column's Type (DDL shape).
type FieldType struct {
	Scalar  ScalarKind
	Element *FieldType // set when Scalar == ScalarArray
}

func Scalar(k ScalarKind) FieldType { return FieldType{Scalar: k} }
func ArrayOf(el FieldType) FieldType {
	return FieldType{Scalar: ScalarArray, Element: &el}
}
