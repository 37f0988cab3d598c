// Package decode turns a driver-scanned SQL row back into the plain Go
// values the rest of this module works with: a flat map keyed by field,
// property, or "relation.field" column alias, the way C6's nested include
// executor and the aggregate/group-by readers expect them.
package decode

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// Scalar converts a single driver-returned column value (as handed back by
// database/sql — []byte, int64, float64, bool, time.Time, or nil) into the
// Go value shape matching ft. optional controls whether a SQL NULL is
// accepted (returned as nil) or an error.
func Scalar(raw any, ft catalog.FieldType, optional bool, d dialect.Dialect) (any, error) {
	if raw == nil {
		if optional {
			return nil, nil
		}
		return nil, fmt.Errorf("decode: unexpected NULL for required field")
	}
	switch ft.Scalar {
	case catalog.ScalarString, catalog.ScalarEnum:
		return asString(raw), nil
	case catalog.ScalarBool:
		return asBool(raw), nil
	case catalog.ScalarInt:
		n, err := asInt64(raw)
		if err != nil {
			return nil, err
		}
		return int(n), nil
	case catalog.ScalarInt64:
		return asInt64(raw)
	case catalog.ScalarFloat:
		return asFloat64(raw)
	case catalog.ScalarDecimal:
		return decodeDecimal(raw)
	case catalog.ScalarDate, catalog.ScalarDateTime:
		return asTime(raw, d)
	case catalog.ScalarBytes:
		return asBytes(raw), nil
	case catalog.ScalarArray:
		return decodeArray(raw, *ft.Element, d)
	default:
		return nil, fmt.Errorf("decode: unhandled scalar kind %v", ft.Scalar)
	}
}

// Serial decodes an auto-increment primary key column. Postgres returns
// these as a true int64/int32 from a RETURNING clause, same as any other
// integer column, so Serial is just Scalar with a forced non-optional
// Int64/Int read — kept as a distinct entrypoint because the caller
// (C7's create_object) needs to special-case it independent of the
// field's declared logical type for int32-vs-int64 sizing.
func Serial(raw any, isInt64 bool, d dialect.Dialect) (any, error) {
	n, err := asInt64(raw)
	if err != nil {
		return nil, err
	}
	if isInt64 {
		return n, nil
	}
	return int(n), nil
}

func asString(raw any) string {
	switch v := raw.(type) {
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}

func asBytes(raw any) []byte {
	switch v := raw.(type) {
	case []byte:
		return v
	case string:
		return []byte(v)
	default:
		return nil
	}
}

func asBool(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case []byte:
		s := string(v)
		return s == "1" || strings.EqualFold(s, "true") || strings.EqualFold(s, "t")
	case string:
		return v == "1" || strings.EqualFold(v, "true") || strings.EqualFold(v, "t")
	default:
		return false
	}
}

func asInt64(raw any) (int64, error) {
	switch v := raw.(type) {
	case int64:
		return v, nil
	case int32:
		return int64(v), nil
	case int:
		return int64(v), nil
	case float64:
		return int64(v), nil
	case []byte:
		return strconv.ParseInt(string(v), 10, 64)
	case string:
		return strconv.ParseInt(v, 10, 64)
	default:
		return 0, fmt.Errorf("decode: cannot read %T as int64", raw)
	}
}

func asFloat64(raw any) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case []byte:
		return strconv.ParseFloat(string(v), 64)
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("decode: cannot read %T as float64", raw)
	}
}

func decodeDecimal(raw any) (*big.Rat, error) {
	s := asString(raw)
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("decode: invalid decimal literal %q", s)
	}
	return r, nil
}

// asTime parses a date/timestamp column. SQLite stores these as text
// (RFC3339 with millisecond precision, per encode.DateTime); MySQL/Postgres
// drivers normally hand back a time.Time already.
func asTime(raw any, d dialect.Dialect) (time.Time, error) {
	if t, ok := raw.(time.Time); ok {
		return t, nil
	}
	s := asString(raw)
	layouts := []string{
		"2006-01-02T15:04:05.000Z07:00",
		time.RFC3339,
		"2006-01-02 15:04:05.000",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, fmt.Errorf("decode: cannot parse time %q: %w", s, lastErr)
}

// decodeArray decodes a Postgres array literal ("{1,2,3}") into a slice of
// decoded elements. Only Postgres emits array-typed columns.
func decodeArray(raw any, elementType catalog.FieldType, d dialect.Dialect) ([]any, error) {
	s := strings.Trim(asString(raw), "{}")
	if s == "" {
		return []any{}, nil
	}
	parts := strings.Split(s, ",")
	out := make([]any, len(parts))
	for i, p := range parts {
		v, err := Scalar(strings.Trim(p, `"`), elementType, false, d)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// Row decodes a full result row into the field/property/relation map this
// module's object materialisation expects: columns named after a
// model field or property decode under that name; columns shaped
// "relation.field" decode under the opposite model's field type, keyed by
// the full dotted name; the reserved cursor alias "c.*" is silently
// dropped (it exists only to drive keyset pagination, never to populate
// an object).
func Row(ns *catalog.Namespace, model *catalog.Model, columns []string, values []any, d dialect.Dialect) (map[string]any, error) {
	out := make(map[string]any, len(columns))
	for i, col := range columns {
		if f, ok := model.FieldByColumnName(col); ok {
			v, err := Scalar(values[i], f.LogicalType, f.Optional, d)
			if err != nil {
				return nil, fmt.Errorf("decode: column %q: %w", col, err)
			}
			out[f.Name] = v
			continue
		}
		if p, ok := model.PropertyByColumnName(col); ok {
			v, err := Scalar(values[i], p.LogicalType, p.Optional, d)
			if err != nil {
				return nil, fmt.Errorf("decode: column %q: %w", col, err)
			}
			out[p.Name] = v
			continue
		}
		if idx := strings.IndexByte(col, '.'); idx >= 0 {
			relationName, fieldName := col[:idx], col[idx+1:]
			if relationName == "c" {
				continue // cursor-fetch sentinel column, not part of the object
			}
			rel, ok := model.Relation(relationName)
			if !ok {
				return nil, fmt.Errorf("decode: unknown relation %q in column %q", relationName, col)
			}
			opposite, _ := ns.ModelAt(rel.ModelPath)
			if opposite == nil {
				return nil, fmt.Errorf("decode: unresolved opposite model for relation %q", relationName)
			}
			of, ok := opposite.Field(fieldName)
			if !ok {
				return nil, fmt.Errorf("decode: unknown field %q on relation %q", fieldName, relationName)
			}
			v, err := Scalar(values[i], of.LogicalType, of.Optional, d)
			if err != nil {
				return nil, fmt.Errorf("decode: column %q: %w", col, err)
			}
			out[col] = v
			continue
		}
		return nil, fmt.Errorf("decode: unhandled column %q", col)
	}
	return out, nil
}

// AggregateBucket is one "_count"/"_sum"/"_avg"/"_min"/"_max" bucket of an
// aggregate row, keyed by field name (or "_all" under _count).
type AggregateBucket map[string]any

// AggregateRow decodes an aggregate/group-by result row: dotted columns
// ("group.field") are bucketed by group name and type-coerced per C5's
// aggregate rules (count forced int64; sum/avg forced float, optional;
// min/max keep the field's declared type); bare columns (the "by" grouping
// keys) decode directly against the model.
func AggregateRow(model *catalog.Model, columns []string, values []any, d dialect.Dialect) (map[string]AggregateBucket, map[string]any, error) {
	buckets := make(map[string]AggregateBucket)
	plain := make(map[string]any)
	for i, col := range columns {
		idx := strings.IndexByte(col, '.')
		if idx < 0 {
			if f, ok := model.FieldByColumnName(col); ok {
				v, err := Scalar(values[i], f.LogicalType, f.Optional, d)
				if err != nil {
					return nil, nil, err
				}
				plain[f.Name] = v
				continue
			}
			return nil, nil, fmt.Errorf("decode: unknown aggregate grouping column %q", col)
		}
		group, field := col[:idx], col[idx+1:]
		bucket, ok := buckets[group]
		if !ok {
			bucket = make(AggregateBucket)
			buckets[group] = bucket
		}
		switch group {
		case "_count":
			v, err := asInt64(values[i])
			if err != nil {
				return nil, nil, err
			}
			bucket[field] = v
		case "_avg", "_sum":
			if values[i] == nil {
				bucket[field] = nil
				continue
			}
			v, err := asFloat64(values[i])
			if err != nil {
				return nil, nil, err
			}
			bucket[field] = v
		case "_min", "_max":
			f, ok := model.Field(field)
			if !ok {
				return nil, nil, fmt.Errorf("decode: unknown field %q in aggregate bucket %q", field, group)
			}
			v, err := Scalar(values[i], f.LogicalType, true, d)
			if err != nil {
				return nil, nil, err
			}
			bucket[field] = v
		default:
			return nil, nil, fmt.Errorf("decode: unhandled aggregate bucket %q", group)
		}
	}
	return buckets, plain, nil
}
