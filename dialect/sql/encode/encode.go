// Package encode renders catalog-typed values as SQL literal text. Nothing
// produced here is ever bound as a driver parameter — every call returns a
// string meant to be spliced directly into a rendered statement, matching
// the no-placeholder wire contract the rest of this module follows.
package encode

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// Value renders v, whose logical shape is described by ft, as a SQL literal
// for the given dialect. optional controls whether a nil v becomes NULL;
// if ft is not optional and v is nil the caller has violated the schema
// and Value panics.
func Value(v any, ft catalog.FieldType, optional bool, d dialect.Dialect) string {
	if optional && v == nil {
		return "NULL"
	}
	switch ft.Scalar {
	case catalog.ScalarString, catalog.ScalarEnum:
		return String(v.(string), d)
	case catalog.ScalarBool:
		return Bool(v.(bool))
	case catalog.ScalarInt, catalog.ScalarInt64, catalog.ScalarFloat:
		return Number(v)
	case catalog.ScalarDecimal:
		return Decimal(v.(string), d)
	case catalog.ScalarDate:
		return Date(v.(time.Time), d)
	case catalog.ScalarDateTime:
		return DateTime(v.(time.Time), d)
	case catalog.ScalarArray:
		vals := v.([]any)
		if len(vals) == 0 {
			return "array[]"
		}
		parts := make([]string, len(vals))
		for i, el := range vals {
			parts[i] = Value(el, *ft.Element, ft.Element.Scalar == catalog.ScalarArray && el == nil, d)
		}
		return "array[" + strings.Join(parts, ", ") + "]"
	default:
		panic(fmt.Sprintf("encode: unhandled field type %v", ft.Scalar))
	}
}

// ArrayArg renders v the way array-argument contexts need it: nested
// Date/DateTime/Decimal values are rendered WITHOUT quoting or dialect
// suffixes (their plain Go string form), and array elements are joined
// with a bare comma instead of ", ". This mirrors to_sql_string_array_arg,
// which backs the has/hasEvery/hasSome operators' element encoding.
func ArrayArg(v any, ft catalog.FieldType, optional bool, d dialect.Dialect) string {
	if optional && v == nil {
		return "NULL"
	}
	switch ft.Scalar {
	case catalog.ScalarString, catalog.ScalarEnum:
		return String(v.(string), d)
	case catalog.ScalarBool:
		return Bool(v.(bool))
	case catalog.ScalarInt, catalog.ScalarInt64, catalog.ScalarFloat:
		return Number(v)
	case catalog.ScalarDecimal:
		return v.(string)
	case catalog.ScalarDate:
		return v.(time.Time).Format("2006-01-02")
	case catalog.ScalarDateTime:
		return v.(time.Time).Format("2006-01-02 15:04:05.000")
	case catalog.ScalarArray:
		vals := v.([]any)
		parts := make([]string, len(vals))
		for i, el := range vals {
			parts[i] = ArrayArg(el, *ft.Element, ft.Element.Scalar == catalog.ScalarArray && el == nil, d)
		}
		return WrapInArray(strings.Join(parts, ","))
	default:
		panic(fmt.Sprintf("encode: unhandled field type %v", ft.Scalar))
	}
}

// PostgresArrayLiteral renders a Go slice as a Postgres array[...] literal,
// using elementPostgresName for the empty-array typed-cast form
// (array[]::text[]) since Postgres requires an explicit element type for
// an empty array.
func PostgresArrayLiteral(vals []any, ft catalog.FieldType, d dialect.Dialect, elementPostgresName string) string {
	if len(vals) == 0 {
		return fmt.Sprintf("array[]::%s[]", elementPostgresName)
	}
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = scalarLiteral(v, d)
	}
	return fmt.Sprintf("array[%s]", strings.Join(parts, ","))
}

// scalarLiteral renders a single already-typed Go scalar the way
// ToSQLString renders a bare Value: used for the elements of a Postgres
// array[...] literal, where nesting is always exactly one level deep.
func scalarLiteral(v any, d dialect.Dialect) string {
	switch val := v.(type) {
	case nil:
		return "NULL"
	case string:
		return String(val, d)
	case bool:
		return Bool(val)
	case time.Time:
		return DateTime(val, d)
	default:
		return Number(v)
	}
}

// String quotes s as a SQL string literal, escaping embedded quotes the
// dialect-appropriate way: MySQL backslash-escapes, everything else
// doubles the quote.
func String(s string, d dialect.Dialect) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('\'')
	for _, ch := range s {
		if ch == '\'' {
			if d.IsMySQL() {
				b.WriteString(`\'`)
			} else {
				b.WriteString("''")
			}
			continue
		}
		b.WriteRune(ch)
	}
	b.WriteByte('\'')
	return b.String()
}

// Bool renders a boolean as the bare SQL keyword.
func Bool(b bool) string {
	if b {
		return "TRUE"
	}
	return "FALSE"
}

// Number renders an int, int32, int64, float32 or float64 as its decimal
// text form, with no quoting.
func Number(v any) string {
	switch n := v.(type) {
	case int:
		return strconv.Itoa(n)
	case int32:
		return strconv.FormatInt(int64(n), 10)
	case int64:
		return strconv.FormatInt(n, 10)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	default:
		panic(fmt.Sprintf("encode: unhandled numeric type %T", v))
	}
}

// Decimal quotes a pre-normalized decimal string, suffixing ::numeric for
// Postgres so the literal isn't mistaken for a plain string column.
func Decimal(s string, d dialect.Dialect) string {
	lit := String(s, d)
	if d == dialect.Postgres {
		return lit + "::numeric"
	}
	return lit
}

// Date quotes a date as YYYY-MM-DD, suffixing ::date for Postgres.
func Date(t time.Time, d dialect.Dialect) string {
	lit := String(t.Format("2006-01-02"), d)
	if d == dialect.Postgres {
		return lit + "::date"
	}
	return lit
}

// DateTime quotes a timestamp. SQLite gets millisecond-precision RFC3339
// (it has no native timestamp type and stores these as text); every other
// dialect gets "YYYY-MM-DD HH:MM:SS.sss", suffixed ::timestamp for
// Postgres.
func DateTime(t time.Time, d dialect.Dialect) string {
	if d == dialect.SQLite {
		return String(t.UTC().Format("2006-01-02T15:04:05.000Z07:00"), d)
	}
	lit := String(t.UTC().Format("2006-01-02 15:04:05.000"), d)
	if d == dialect.Postgres {
		return lit + "::timestamp"
	}
	return lit
}

// Wrapped parenthesizes s.
func Wrapped(s string) string { return "(" + s + ")" }

// IMode wraps col in LOWER(...) when caseInsensitive is set, for the
// "mode: insensitive" query operator.
func IMode(col string, caseInsensitive bool) string {
	if caseInsensitive {
		return "LOWER(" + col + ")"
	}
	return col
}

// Like inserts a % just inside the opening and/or closing quote character
// of an already-quoted string literal, for the contains/startsWith/
// endsWith operators. lit must be a quoted literal (its first and last
// bytes are the quote character).
func Like(lit string, left, right bool) string {
	var b strings.Builder
	b.Grow(len(lit) + 2)
	runes := []rune(lit)
	b.WriteRune(runes[0])
	if left {
		b.WriteByte('%')
	}
	b.WriteString(string(runes[1 : len(runes)-1]))
	if right {
		b.WriteByte('%')
	}
	b.WriteRune(runes[len(runes)-1])
	return b.String()
}

// WrapInArray wraps already-encoded, comma-joined elements as a
// single-quoted Postgres curly-brace array literal — '{a,b,c}' — the form
// the has/hasEvery/hasSome operators compare against with @> and &&,
// distinct from the array[...] bracket form used for plain array values.
func WrapInArray(joined string) string {
	return "'{" + joined + "}'"
}

// Escape quotes an identifier in the dialect's identifier quote character
// via dialect.Dialect.Escape, so a dotted path is quoted segment by
// segment.
func Escape(name string, d dialect.Dialect) string {
	return d.Escape(name)
}
