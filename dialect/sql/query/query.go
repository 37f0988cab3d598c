// Package query renders the recursive JSON-like query value tree — where,
// orderBy, select, include, skip/take, cursor, pageSize/pageNumber,
// distinct, by/having and the aggregate buckets — into literal SQL text.
// Every statement produced here is fully rendered: there are no driver
// placeholders, per this module's no-prepared-statements contract. Values
// are encoded in-literal by the dialect/sql/encode package.
package query

import (
	"fmt"
	"strings"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/polysql/polysql/dialect/sql/encode"
)

// sqlAggregateFunc maps an aggregate bucket key to its SQL function name.
var sqlAggregateFunc = map[string]string{
	"_count": "COUNT",
	"_sum":   "SUM",
	"_avg":   "AVG",
	"_min":   "MIN",
	"_max":   "MAX",
}

func escapeIdent(name string, d dialect.Dialect) string {
	q := string(d.QuoteChar())
	return q + name + q
}

// whereItem renders "lhs op rhs".
func whereItem(lhs, op, rhs string) string {
	return fmt.Sprintf("%s %s %s", lhs, op, rhs)
}

func whereAnd(parts []string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " AND ")
}

func whereOr(parts []string) string {
	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " OR ")
}

func whereNot(inner string) string {
	if inner == "" {
		return ""
	}
	return "NOT " + inner
}

func wrapped(s string) string { return "(" + s + ")" }

// WhereFromIdentifier renders an equality WHERE clause from a flat
// field→value identifier map (e.g. a primary key), used by the
// transaction layer to target a single row for UPDATE/DELETE/refresh.
func WhereFromIdentifier(model *catalog.Model, identifier map[string]any, d dialect.Dialect) string {
	parts := make([]string, 0, len(identifier))
	for key, value := range identifier {
		f, ok := model.Field(key)
		if !ok {
			panic(fmt.Sprintf("query: unknown identifier field %q", key))
		}
		lit := encode.Value(value, f.LogicalType, false, d)
		parts = append(parts, fmt.Sprintf("%s = %s", escapeIdent(f.ColumnName, d), lit))
	}
	return whereAnd(parts)
}

// whereEntryArray renders the parenthesized, comma-joined literal list
// used by IN/NOT IN.
func whereEntryArray(columnName string, ft catalog.FieldType, optional bool, arr []any, op string, d dialect.Dialect) string {
	parts := make([]string, len(arr))
	for i, v := range arr {
		parts[i] = encode.Value(v, ft, optional, d)
	}
	return whereItem(columnName, op, wrapped(strings.Join(parts, ", ")))
}

// whereEntryItem is the per-field operator compiler: it switches on every
// key of a field's predicate dictionary (equals/not/gt/gte/lt/lte/in/
// notIn/contains/startsWith/endsWith/matches/mode/has/hasEvery/hasSome/
// isEmpty/length/_count/_avg/_sum/_min/_max) and ANDs the results
// together, wrapped in parens. A non-dictionary value is shorthand for
// {"equals": value}.
func whereEntryItem(columnName string, ft catalog.FieldType, optional bool, value any, d dialect.Dialect) string {
	columnName = escapeWisdom(columnName, d)
	dict, isDict := value.(map[string]any)
	if !isDict {
		return whereItem(columnName, "=", encode.Value(value, ft, optional, d))
	}
	var result []string
	for key, v := range dict {
		switch key {
		case "equals":
			if v == nil {
				result = append(result, whereItem(columnName, "IS", "NULL"))
			} else {
				result = append(result, whereItem(columnName, "=", encode.Value(v, ft, optional, d)))
			}
		case "not":
			if v == nil {
				result = append(result, whereItem(columnName, "IS NOT", "NULL"))
			} else {
				result = append(result, whereItem(columnName, "<>", encode.Value(v, ft, optional, d)))
			}
		case "gt":
			result = append(result, whereItem(columnName, ">", encode.Value(v, ft, false, d)))
		case "gte":
			result = append(result, whereItem(columnName, ">=", encode.Value(v, ft, false, d)))
		case "lt":
			result = append(result, whereItem(columnName, "<", encode.Value(v, ft, false, d)))
		case "lte":
			result = append(result, whereItem(columnName, "<=", encode.Value(v, ft, false, d)))
		case "in":
			arr := v.([]any)
			if len(arr) > 0 {
				result = append(result, whereEntryArray(columnName, ft, optional, arr, "IN", d))
			} else {
				result = append(result, "FALSE")
			}
		case "notIn":
			arr := v.([]any)
			if len(arr) > 0 {
				result = append(result, whereEntryArray(columnName, ft, optional, arr, "NOT IN", d))
			} else {
				result = append(result, "TRUE")
			}
		case "contains":
			iMode := hasIMode(dict)
			lit := encode.Like(encode.Value(v, ft, false, d), true, true)
			result = append(result, whereItem(encode.IMode(columnName, iMode), "LIKE", encode.IMode(lit, iMode)))
		case "startsWith":
			iMode := hasIMode(dict)
			lit := encode.Like(encode.Value(v, ft, false, d), false, true)
			result = append(result, whereItem(encode.IMode(columnName, iMode), "LIKE", encode.IMode(lit, iMode)))
		case "endsWith":
			iMode := hasIMode(dict)
			lit := encode.Like(encode.Value(v, ft, false, d), true, false)
			result = append(result, whereItem(encode.IMode(columnName, iMode), "LIKE", encode.IMode(lit, iMode)))
		case "matches":
			iMode := hasIMode(dict)
			lit := encode.Value(v, ft, false, d)
			result = append(result, whereItem(encode.IMode(columnName, iMode), "REGEXP", encode.IMode(lit, iMode)))
		case "mode":
			// consumed by the sibling keys above via hasIMode.
		case "has":
			el := *ft.Element
			arg := encode.ArrayArg(v, el, false, d)
			result = append(result, whereItem(columnName, "@>", encode.WrapInArray(arg)))
		case "hasEvery":
			result = append(result, whereItem(columnName, "@>", encode.ArrayArg(v, ft, false, d)))
		case "hasSome":
			result = append(result, whereItem(columnName, "&&", encode.ArrayArg(v, ft, false, d)))
		case "isEmpty":
			result = append(result, whereItem(fmt.Sprintf("ARRAY_LENGTH(%s)", columnName), "=", "0"))
		case "length":
			n := encode.Value(v, catalog.Scalar(catalog.ScalarInt64), false, d)
			result = append(result, whereItem(fmt.Sprintf("ARRAY_LENGTH(%s)", columnName), "=", n))
		case "_count":
			result = append(result, whereEntryItem(fmt.Sprintf("COUNT(%s)", columnName), catalog.Scalar(catalog.ScalarInt64), false, v, d))
		case "_avg", "_sum":
			fn := strings.ToUpper(key[1:])
			result = append(result, whereEntryItem(fmt.Sprintf("%s(%s)", fn, columnName), catalog.Scalar(catalog.ScalarFloat), true, v, d))
		case "_min", "_max":
			fn := strings.ToUpper(key[1:])
			result = append(result, whereEntryItem(fmt.Sprintf("%s(%s)", fn, columnName), ft, optional, v, d))
		default:
			panic(fmt.Sprintf("query: unhandled predicate key %q", key))
		}
	}
	return wrapped(whereAnd(result))
}

func hasIMode(dict map[string]any) bool {
	mode, ok := dict["mode"]
	if !ok {
		return false
	}
	s, _ := mode.(string)
	return s == "insensitive"
}

// Where recursively renders a where value tree against model, optionally
// qualifying plain field columns with tableAlias (used when the caller
// has aliased the model's table, e.g. "t"). AND/OR/NOT combinators and
// relation filters (some/is/none/isNot/every) are handled alongside plain
// field predicates.
func Where(ns *catalog.Namespace, model *catalog.Model, where map[string]any, d dialect.Dialect, tableAlias string) string {
	var retval []string
	for key, value := range where {
		switch key {
		case "AND":
			arr := value.([]map[string]any)
			parts := make([]string, len(arr))
			for i, w := range arr {
				parts[i] = wrapped(Where(ns, model, w, d, tableAlias))
			}
			retval = append(retval, wrapped(whereAnd(parts)))
		case "OR":
			arr := value.([]map[string]any)
			parts := make([]string, len(arr))
			for i, w := range arr {
				parts[i] = wrapped(Where(ns, model, w, d, tableAlias))
			}
			retval = append(retval, wrapped(whereOr(parts)))
		case "NOT":
			inner := whereNot(Where(ns, model, value.(map[string]any), d, tableAlias))
			retval = append(retval, wrapped(inner))
		default:
			if f, ok := model.Field(key); ok {
				columnName := f.ColumnName
				if tableAlias != "" {
					columnName = tableAlias + "." + columnName
				}
				retval = append(retval, whereEntryItem(columnName, f.LogicalType, f.Optional, value, d))
			} else if rel, ok := model.Relation(key); ok {
				retval = append(retval, whereRelation(ns, model, rel, value.(map[string]any), d)...)
			}
		}
	}
	return whereAnd(retval)
}

// whereRelation renders the some/is/none/isNot/every sub-clauses of one
// relation key into an IN/NOT IN clause against a correlated inner SELECT
// over the opposite model.
func whereRelation(ns *catalog.Namespace, model *catalog.Model, rel *catalog.Relation, subClauses map[string]any, d dialect.Dialect) []string {
	hasJoinTable := rel.HasJoinTable()
	primaryIdx, _ := model.PrimaryIndex()
	idColumns := make([]string, len(primaryIdx.Items))
	for i, item := range primaryIdx.Items {
		f, _ := model.Field(item.Field)
		idColumns[i] = f.ColumnName
	}
	idColumnsEscaped := make([]string, len(idColumns))
	idColumnsPrefixed := make([]string, len(idColumns))
	for i, c := range idColumns {
		idColumnsEscaped[i] = escapeIdent(c, d)
		idColumnsPrefixed[i] = "t." + escapeIdent(c, d)
	}
	idColumnsString := wrapped(strings.Join(idColumnsEscaped, ","))

	opposite, _ := ns.ModelAt(rel.ModelPath)

	var throughColumns []string
	if hasJoinTable {
		throughModel, throughRel := ns.ThroughRelation(rel)
		for _, f := range throughRel.Fields {
			tf, _ := throughModel.Field(f)
			throughColumns = append(throughColumns, "t."+escapeIdent(tf.ColumnName, d))
		}
	}

	var result []string
	for key, subWhereAny := range subClauses {
		subWhere, _ := subWhereAny.(map[string]any)
		var from string
		if !hasJoinTable {
			from = fmt.Sprintf("%s AS t", escapeIdent(model.TableName, d))
		} else {
			throughModel, _ := ns.ThroughRelation(rel)
			from = fmt.Sprintf("%s AS t", escapeIdent(throughModel.TableName, d))
		}

		var on string
		if hasJoinTable {
			_, oppositeRel := ns.OppositeRelation(rel)
			joinModel, joinRel := ns.ThroughRelation(oppositeRel)
			var parts []string
			for _, pair := range joinRel.Pairs() {
				f, r := pair[0], pair[1]
				jf, _ := joinModel.Field(f)
				of, _ := opposite.Field(r)
				parts = append(parts, fmt.Sprintf("j.%s = t.%s", escapeIdent(of.ColumnName, d), escapeIdent(jf.ColumnName, d)))
			}
			on = strings.Join(parts, ",")
		} else {
			var parts []string
			for _, pair := range rel.Pairs() {
				f, r := pair[0], pair[1]
				mf, _ := model.Field(f)
				of, _ := opposite.Field(r)
				parts = append(parts, fmt.Sprintf("j.%s = t.%s", escapeIdent(of.ColumnName, d), escapeIdent(mf.ColumnName, d)))
			}
			on = strings.Join(parts, ",")
		}

		var additionWhere string
		if hasJoinTable {
			throughModel, throughRel := ns.ThroughRelation(rel)
			var parts []string
			for _, pair := range throughRel.Pairs() {
				f := pair[0]
				tf, _ := throughModel.Field(f)
				parts = append(parts, fmt.Sprintf("t.%s IS NOT NULL", escapeIdent(tf.ColumnName, d)))
			}
			additionWhere = strings.Join(parts, " AND ")
		} else {
			var parts []string
			for _, pair := range rel.Pairs() {
				f := pair[0]
				mf, _ := model.Field(f)
				parts = append(parts, fmt.Sprintf("t.%s IS NOT NULL", escapeIdent(mf.ColumnName, d)))
			}
			additionWhere = strings.Join(parts, " AND ")
		}

		innerWhere := Where(ns, opposite, subWhere, d, "j")
		if key == "every" {
			innerWhere = wrapped(whereNot(wrapped(innerWhere)))
		}
		if innerWhere == "" {
			innerWhere = additionWhere
		} else {
			innerWhere = whereAnd([]string{innerWhere, additionWhere})
		}

		selectCols := idColumnsPrefixed
		if hasJoinTable {
			selectCols = throughColumns
		}
		innerStmt := wrapped(fmt.Sprintf(
			"SELECT %s FROM %s INNER JOIN %s AS j ON %s WHERE %s",
			strings.Join(selectCols, ","), from, escapeIdent(opposite.TableName, d), on, innerWhere,
		))

		switch key {
		case "some", "is":
			result = append(result, fmt.Sprintf("%s IN %s", idColumnsString, innerStmt))
		case "none", "isNot", "every":
			result = append(result, fmt.Sprintf("%s NOT IN %s", idColumnsString, innerStmt))
		default:
			panic(fmt.Sprintf("query: unhandled relation key %q", key))
		}
	}
	return result
}

// OrderBy renders an orderBy array. negativeTake swaps asc/desc (take=-N
// asks the database for the reverse order so LIMIT N keeps the *last* N
// rows; the caller reverses the in-memory result afterward).
func OrderBy(model *catalog.Model, orderBy []map[string]any, d dialect.Dialect, negativeTake bool) string {
	ascLabel, descLabel := "ASC", "DESC"
	if negativeTake {
		ascLabel, descLabel = "DESC", "ASC"
	}
	var parts []string
	for _, item := range orderBy {
		for key, value := range item {
			f, ok := model.Field(key)
			if !ok {
				continue
			}
			switch value {
			case "asc":
				parts = append(parts, fmt.Sprintf("%s %s", f.ColumnName, ascLabel))
			case "desc":
				parts = append(parts, fmt.Sprintf("%s %s", f.ColumnName, descLabel))
			default:
				panic(fmt.Sprintf("query: unhandled orderBy direction %v", value))
			}
		}
	}
	return strings.Join(parts, ",")
}

func defaultDescOrder(model *catalog.Model) []map[string]any {
	idx, _ := model.PrimaryIndex()
	out := make([]map[string]any, len(idx.Items))
	for i, item := range idx.Items {
		out[i] = map[string]any{item.Field: "desc"}
	}
	return out
}

// escapeWisdom quotes a possibly-dotted column reference, passing it
// through unchanged if it already contains the dialect's quote char (it
// is assumed pre-escaped, e.g. an aggregate expression like COUNT("age")
// on Postgres).
func escapeWisdom(s string, d dialect.Dialect) string {
	return d.Escape(s)
}

// Options carries the extra plumbing the nested include executor (C6)
// and transaction layer (C7) thread through Build beyond the finder's own
// where/orderBy/paging keys.
type Options struct {
	AdditionalWhere     string
	HasAdditionalWhere  bool
	AdditionalLeftJoin  string
	HasAdditionalLeftJoin bool
	JoinTableResults    []string
	ForceNegativeTake   bool
}

// Build renders one finder value (where/orderBy/pageSize/pageNumber/skip/
// take/cursor) into a full SELECT statement.
func Build(ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect, opts Options) (string, error) {
	whereVal, _ := finder["where"].(map[string]any)
	orderByRaw, hasOrderBy := finder["orderBy"]
	pageSize, hasPageSize := finder["pageSize"]
	pageNumber, hasPageNumber := finder["pageNumber"]
	skip, hasSkip := finder["skip"]
	take, hasTake := finder["take"]
	cursorVal, hasCursor := finder["cursor"].(map[string]any)

	negativeTake := opts.ForceNegativeTake
	if hasTake {
		negativeTake = toInt64(take) < 0
	}

	tableName := escapeIdent(model.TableName, d)
	aliasedTableName := tableName
	if opts.HasAdditionalLeftJoin {
		aliasedTableName = tableName + " AS t"
	}

	var columns []string
	if opts.HasAdditionalLeftJoin {
		for _, k := range model.SaveKeys() {
			f, ok := model.Field(k)
			if !ok {
				continue
			}
			col := escapeIdent(f.ColumnName, d)
			columns = append(columns, fmt.Sprintf("t.%s AS %s", col, col))
		}
	}
	columns = append(columns, opts.JoinTableResults...)

	var orderBy []map[string]any
	if hasOrderBy {
		orderBy = toOrderBy(orderByRaw)
	}

	from := aliasedTableName
	if hasCursor {
		if !hasOrderBy || len(orderBy) == 0 {
			return "", fmt.Errorf("query: cursor is invalid without orderBy")
		}
		cursorKey := firstKey(orderBy[0])
		cf, _ := model.Field(cursorKey)
		columnKey := cf.ColumnName
		aliasQuote := "`"
		if d == dialect.Postgres {
			aliasQuote = `"`
		}
		var cursorCols []string
		for range cursorVal {
			cursorCols = append(cursorCols, fmt.Sprintf("%s AS %sc.%s%s", columnKey, aliasQuote, columnKey, aliasQuote))
		}
		subWhere := Where(ns, model, cursorVal, d, "")
		subSelect := fmt.Sprintf("SELECT %s FROM %s", strings.Join(cursorCols, ","), aliasedTableName)
		if subWhere != "" {
			subSelect += " WHERE " + subWhere
		}
		from = fmt.Sprintf("%s, (%s) AS c", aliasedTableName, subSelect)
	}

	var whereClause string
	if whereVal != nil && len(whereVal) > 0 {
		whereClause = Where(ns, model, whereVal, d, "")
	}
	if opts.HasAdditionalWhere {
		if whereClause != "" {
			whereClause = whereAnd([]string{whereClause, opts.AdditionalWhere})
		} else {
			whereClause = opts.AdditionalWhere
		}
	}
	if hasCursor {
		cursorKey := firstKey(orderBy[0])
		dir, _ := orderBy[0][cursorKey].(string)
		op := "<="
		wantAsc := "asc"
		if negativeTake {
			wantAsc = "desc"
		}
		if dir == wantAsc {
			op = ">="
		}
		cf, _ := model.Field(cursorKey)
		aliasQuote := "`"
		if d == dialect.Postgres {
			aliasQuote = `"`
		}
		cursorWhere := whereItem(cf.ColumnName, op, aliasQuote+"c."+cf.ColumnName+aliasQuote)
		if whereClause != "" {
			whereClause = whereAnd([]string{whereClause, cursorWhere})
		} else {
			whereClause = cursorWhere
		}
	}

	var orderClause string
	if hasOrderBy {
		orderClause = OrderBy(model, orderBy, d, negativeTake)
	} else if negativeTake {
		orderClause = OrderBy(model, defaultDescOrder(model), d, false)
	}

	var limitClause string
	switch {
	case hasPageSize && hasPageNumber:
		skipN := (toInt64(pageNumber) - 1) * toInt64(pageSize)
		limitClause = fmt.Sprintf("LIMIT %d OFFSET %d", toInt64(pageSize), skipN)
	case hasSkip || hasTake:
		skipN := int64(0)
		if hasSkip {
			skipN = toInt64(skip)
		}
		var limitN uint64
		if hasTake {
			n := toInt64(take)
			if n < 0 {
				n = -n
			}
			limitN = uint64(n)
		} else {
			limitN = d.NoLimitSentinel()
		}
		limitClause = fmt.Sprintf("LIMIT %d OFFSET %d", limitN, skipN)
	}

	selectCols := "*"
	if len(columns) > 0 {
		selectCols = strings.Join(columns, ", ")
	}
	var b strings.Builder
	fmt.Fprintf(&b, "SELECT %s FROM %s", selectCols, from)
	if whereClause != "" {
		b.WriteString(" WHERE ")
		b.WriteString(whereClause)
	}
	if opts.HasAdditionalLeftJoin {
		b.WriteString(" LEFT JOIN ")
		b.WriteString(opts.AdditionalLeftJoin)
	}
	if orderClause != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(orderClause)
	}
	if limitClause != "" {
		b.WriteByte(' ')
		b.WriteString(limitClause)
	}
	return b.String(), nil
}

// BuildForCount wraps Build as "SELECT COUNT(*) FROM (...) AS _".
func BuildForCount(ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect, opts Options) (string, error) {
	inner, err := Build(ns, model, finder, d, opts)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS _", inner), nil
}

// BuildForAggregate renders the _count/_sum/_avg/_min/_max bucket
// projections (plus any "by" grouping columns) over the plain Build of
// the finder's where/orderBy/paging keys.
func BuildForAggregate(ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) (string, error) {
	escape := string(d.QuoteChar())
	var results []string
	for _, bucketKey := range []string{"_count", "_sum", "_avg", "_min", "_max"} {
		bucket, ok := finder[bucketKey].(map[string]any)
		if !ok {
			continue
		}
		for field, want := range bucket {
			wantBool, _ := want.(bool)
			if !wantBool {
				continue
			}
			if field == "_all" {
				results = append(results, fmt.Sprintf("COUNT(*) as %s_count._all%s", escape, escape))
				continue
			}
			f, ok := model.Field(field)
			if !ok {
				panic(fmt.Sprintf("query: unknown aggregate field %q", field))
			}
			fn := sqlAggregateFunc[bucketKey]
			expr := fmt.Sprintf("%s(%s)", fn, f.ColumnName)
			if bucketKey == "_avg" || bucketKey == "_sum" {
				expr = fmt.Sprintf("CAST(%s AS DOUBLE)", expr)
			}
			results = append(results, fmt.Sprintf("%s as %s%s.%s%s", expr, escape, bucketKey, field, escape))
		}
	}
	if by, ok := finder["by"].([]string); ok {
		for _, field := range by {
			f, ok := model.Field(field)
			if !ok {
				panic(fmt.Sprintf("query: unknown group-by field %q", field))
			}
			results = append(results, f.ColumnName)
		}
	}
	inner, err := Build(ns, model, finder, d, Options{})
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("SELECT %s FROM (%s) AS _", strings.Join(results, ","), inner), nil
}

// BuildForGroupBy appends GROUP BY (and an optional HAVING) to
// BuildForAggregate.
func BuildForGroupBy(ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) (string, error) {
	aggregate, err := BuildForAggregate(ns, model, finder, d)
	if err != nil {
		return "", err
	}
	by, _ := finder["by"].([]string)
	byCols := make([]string, len(by))
	for i, field := range by {
		f, _ := model.Field(field)
		byCols[i] = f.ColumnName
	}
	having := ""
	if havingVal, ok := finder["having"].(map[string]any); ok {
		having = " HAVING (" + Where(ns, model, havingVal, d, "") + ")"
	}
	return fmt.Sprintf("%s GROUP BY %s%s", aggregate, strings.Join(byCols, ","), having), nil
}

func firstKey(m map[string]any) string {
	for k := range m {
		return k
	}
	return ""
}

func toInt64(v any) int64 {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case int64:
		return n
	case float64:
		return int64(n)
	default:
		panic(fmt.Sprintf("query: expected a number, got %T", v))
	}
}

func toOrderBy(raw any) []map[string]any {
	switch v := raw.(type) {
	case []map[string]any:
		return v
	case []any:
		out := make([]map[string]any, len(v))
		for i, el := range v {
			out[i] = el.(map[string]any)
		}
		return out
	default:
		panic(fmt.Sprintf("query: unhandled orderBy shape %T", raw))
	}
}
