// Package sqlgraph is the nested-include query executor (C6): given a
// finder that names "include" relations, it runs the base SELECT, then
// issues exactly one extra SELECT per included relation (never one per
// parent row) and stitches each relation's rows back onto their owning
// parent by foreign key or, for many-to-many relations, by join-table
// link. It is also the single place txn routes FindMany/Count/Aggregate/
// GroupBy through, so every finder-shaped read passes through one query
// compiler regardless of whether it asks for includes.
package sqlgraph

import (
	"context"
	"fmt"
	"strings"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
	"github.com/polysql/polysql/dialect/sql/decode"
	"github.com/polysql/polysql/dialect/sql/encode"
	"github.com/polysql/polysql/dialect/sql/query"
)

// Querier runs literal SQL text and returns its columns and rows. txn
// supplies this as a thin wrapper over its pooled dialect.ExecQuerier.
type Querier func(ctx context.Context, stmt string) (columns []string, rows [][]any, err error)

// QueryObjects is the top-level C6 entrypoint: build+run+decode finder's
// own query, restore natural row order when a negative take asked the
// database for the tail of the set, apply distinct/skip/take in memory
// when SQL could not do it before paging, then recurse into
// finder["include"] and splice each relation's rows onto their parent.
func QueryObjects(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) ([]map[string]any, error) {
	res, err := fetchFlat(ctx, run, ns, model, finder, d, query.Options{}, nil)
	if err != nil {
		return nil, err
	}
	if err := processIncludes(ctx, run, ns, model, res.rows, finder["include"], d); err != nil {
		return nil, err
	}
	return res.rows, nil
}

// QueryCount runs finder as a BuildForCount statement.
func QueryCount(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) (int64, error) {
	stmt, err := query.BuildForCount(ns, model, finder, d, query.Options{})
	if err != nil {
		return 0, fmt.Errorf("sqlgraph: build count %s: %w", model.Name, err)
	}
	_, rows, err := run(ctx, stmt)
	if err != nil {
		return 0, fmt.Errorf("sqlgraph: count %s: %w", model.Name, err)
	}
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := decode.Serial(rows[0][0], true, d)
	if err != nil {
		return 0, err
	}
	return n.(int64), nil
}

// QueryAggregate runs finder's _count/_sum/_avg/_min/_max buckets.
func QueryAggregate(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) (map[string]decode.AggregateBucket, error) {
	stmt, err := query.BuildForAggregate(ns, model, finder, d)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: build aggregate %s: %w", model.Name, err)
	}
	cols, rows, err := run(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: aggregate %s: %w", model.Name, err)
	}
	if len(rows) == 0 {
		return map[string]decode.AggregateBucket{}, nil
	}
	buckets, _, err := decode.AggregateRow(model, cols, rows[0], d)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: decode aggregate %s: %w", model.Name, err)
	}
	return buckets, nil
}

// QueryGroupBy runs finder's "by" grouping plus bucket projections.
func QueryGroupBy(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect) ([]map[string]any, error) {
	stmt, err := query.BuildForGroupBy(ns, model, finder, d)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: build group by %s: %w", model.Name, err)
	}
	cols, rawRows, err := run(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("sqlgraph: group by %s: %w", model.Name, err)
	}
	out := make([]map[string]any, len(rawRows))
	for i, r := range rawRows {
		buckets, plain, err := decode.AggregateRow(model, cols, r, d)
		if err != nil {
			return nil, fmt.Errorf("sqlgraph: decode group by %s: %w", model.Name, err)
		}
		row := make(map[string]any, len(plain)+len(buckets))
		for k, v := range plain {
			row[k] = v
		}
		for k, v := range buckets {
			row[k] = v
		}
		out[i] = row
	}
	return out, nil
}

// bucketColumn is a synthetic SELECT projection carrying a join-table link
// column through to the decoder, kept out of the decoded row itself and
// resolved back into a parent-matching key by fetchFlat's caller.
type bucketColumn struct {
	alias      string
	index      int
	fieldType  catalog.FieldType
	selectExpr string
}

type fetchResult struct {
	rows    []map[string]any
	buckets [][]any // buckets[i] is the join-key tuple for rows[i]; nil unless bucketCols was non-empty
}

// fetchFlat builds and runs one finder against model, decoding rows with
// decode.Row and pulling any bucketCols out as raw key tuples first. It
// restores the caller's intended order after a negative-take reversal and,
// when finder asks for "distinct", defers skip/take/pageSize/pageNumber to
// an in-memory pass applied after dedup so distinct always runs before
// paging regardless of what the database could push down.
func fetchFlat(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, finder map[string]any, d dialect.Dialect, opts query.Options, bucketCols []bucketColumn) (fetchResult, error) {
	distinctFields, hasDistinct := toStringSlice(finder["distinct"])
	sqlFinder := finder
	if hasDistinct {
		sqlFinder = withoutPaging(finder)
	}

	negativeTake := false
	if !hasDistinct {
		if tv, ok := finder["take"]; ok {
			negativeTake = toInt64Loose(tv) < 0
		}
	}

	if len(bucketCols) > 0 {
		exprs := make([]string, len(bucketCols))
		for _, bc := range bucketCols {
			exprs[bc.index] = bc.selectExpr
		}
		opts.JoinTableResults = append(append([]string{}, opts.JoinTableResults...), exprs...)
	}

	stmt, err := query.Build(ns, model, sqlFinder, d, opts)
	if err != nil {
		return fetchResult{}, fmt.Errorf("sqlgraph: build %s: %w", model.Name, err)
	}
	cols, rawRows, err := run(ctx, stmt)
	if err != nil {
		return fetchResult{}, fmt.Errorf("sqlgraph: query %s: %w", model.Name, err)
	}

	byAlias := make(map[string]bucketColumn, len(bucketCols))
	for _, bc := range bucketCols {
		byAlias[bc.alias] = bc
	}

	rows := make([]map[string]any, len(rawRows))
	var buckets [][]any
	if len(bucketCols) > 0 {
		buckets = make([][]any, len(rawRows))
	}
	for i, raw := range rawRows {
		realCols := make([]string, 0, len(cols))
		realVals := make([]any, 0, len(cols))
		var bucket []any
		if len(bucketCols) > 0 {
			bucket = make([]any, len(bucketCols))
		}
		for j, c := range cols {
			if bc, ok := byAlias[c]; ok {
				v, err := decode.Scalar(raw[j], bc.fieldType, true, d)
				if err != nil {
					return fetchResult{}, fmt.Errorf("sqlgraph: bucket column %q: %w", c, err)
				}
				bucket[bc.index] = v
				continue
			}
			realCols = append(realCols, c)
			realVals = append(realVals, raw[j])
		}
		decoded, err := decode.Row(ns, model, realCols, realVals, d)
		if err != nil {
			return fetchResult{}, fmt.Errorf("sqlgraph: decode %s: %w", model.Name, err)
		}
		rows[i] = decoded
		if bucket != nil {
			buckets[i] = bucket
		}
	}

	if negativeTake {
		reverseRows(rows, buckets)
	}

	if hasDistinct {
		rows, buckets = applyDistinct(rows, buckets, distinctFields)
		rows, buckets = applyPaging(rows, buckets, finder)
	}

	return fetchResult{rows: rows, buckets: buckets}, nil
}

// processIncludes walks finder's "include" map (if any) and, for each
// relation, fetches and splices its rows onto parentRows.
func processIncludes(ctx context.Context, run Querier, ns *catalog.Namespace, model *catalog.Model, parentRows []map[string]any, includeAny any, d dialect.Dialect) error {
	include, ok := toStringAnyMap(includeAny)
	if !ok || len(include) == 0 || len(parentRows) == 0 {
		return nil
	}
	for relName, subAny := range include {
		rel, ok := model.Relation(relName)
		if !ok {
			return fmt.Errorf("sqlgraph: unknown relation %q on %s", relName, model.Name)
		}
		subFinder, ok := toStringAnyMap(subAny)
		if !ok {
			subFinder = map[string]any{}
		}
		if err := fetchInclude(ctx, run, ns, model, rel, parentRows, subFinder, d); err != nil {
			return fmt.Errorf("sqlgraph: include %q: %w", relName, err)
		}
	}
	return nil
}

// fetchInclude resolves one included relation (direct foreign key or
// many-to-many through a join table), fetches the opposite model's
// matching rows in a single query, recurses into its own nested includes,
// and splices the result onto each row of parentRows under rel.Name.
func fetchInclude(ctx context.Context, run Querier, ns *catalog.Namespace, parent *catalog.Model, rel *catalog.Relation, parentRows []map[string]any, subFinder map[string]any, d dialect.Dialect) error {
	opposite, ok := ns.ModelAt(rel.ModelPath)
	if !ok || opposite == nil {
		return fmt.Errorf("unresolved opposite model for relation %q", rel.Name)
	}

	if !rel.HasJoinTable() {
		parentFields := fieldsFor(parent, rel.Fields)
		oppositeFields := fieldsFor(opposite, rel.References)
		tuples := dedupeTuples(collectTuples(parentRows, parentFields))
		if len(tuples) == 0 {
			setEmptyRelation(parentRows, rel)
			return nil
		}
		where := tupleWhereClause(oppositeFields, tuples, d)
		res, err := fetchFlat(ctx, run, ns, opposite, subFinder, d, query.Options{HasAdditionalWhere: true, AdditionalWhere: where}, nil)
		if err != nil {
			return err
		}
		if err := processIncludes(ctx, run, ns, opposite, res.rows, subFinder["include"], d); err != nil {
			return err
		}
		bucketByFields(parentRows, parentFields, res.rows, oppositeFields, rel)
		return nil
	}

	through, ok := ns.ModelAt(rel.ThroughPath)
	if !ok || through == nil {
		return fmt.Errorf("unresolved join table for relation %q", rel.Name)
	}
	toParent, toOpposite := throughLinks(ns, parent, through, opposite)
	if toParent == nil || toOpposite == nil {
		return fmt.Errorf("join table %q declares no relation back to %q and %q", through.Name, parent.Name, opposite.Name)
	}

	parentPKFields := fieldsFor(parent, toParent.References)
	tuples := dedupeTuples(collectTuples(parentRows, parentPKFields))
	if len(tuples) == 0 {
		setEmptyRelation(parentRows, rel)
		return nil
	}

	joinFKFields := fieldsFor(through, toParent.Fields)
	where := tupleWhereClause(joinFKFields, tuples, d)

	onParts := make([]string, len(toOpposite.Fields))
	for i := range toOpposite.Fields {
		jf, _ := through.Field(toOpposite.Fields[i])
		of, _ := opposite.Field(toOpposite.References[i])
		onParts[i] = fmt.Sprintf("j.%s = t.%s", d.Escape(jf.ColumnName), d.Escape(of.ColumnName))
	}

	bucketCols := make([]bucketColumn, len(toParent.Fields))
	for i, fname := range toParent.Fields {
		jf, _ := through.Field(fname)
		alias := fmt.Sprintf("__bucket_%d", i)
		bucketCols[i] = bucketColumn{
			alias:      alias,
			index:      i,
			fieldType:  parentPKFields[i].LogicalType,
			selectExpr: fmt.Sprintf("j.%s AS %s", d.Escape(jf.ColumnName), d.Escape(alias)),
		}
	}

	opts := query.Options{
		HasAdditionalLeftJoin: true,
		AdditionalLeftJoin:    fmt.Sprintf("%s AS j ON %s", d.Escape(through.TableName), strings.Join(onParts, " AND ")),
		HasAdditionalWhere:    true,
		AdditionalWhere:       where,
	}
	res, err := fetchFlat(ctx, run, ns, opposite, subFinder, d, opts, bucketCols)
	if err != nil {
		return err
	}
	if err := processIncludes(ctx, run, ns, opposite, res.rows, subFinder["include"], d); err != nil {
		return err
	}
	bucketByTuples(parentRows, toParent.References, res.rows, res.buckets, rel)
	return nil
}

// throughLinks finds the join-table model's own two relations: the one
// pointing back at parent and the one pointing at opposite, matched by
// ModelPath rather than by field-name equality, since a join table's own
// FK column names have no reason to mirror the names declared on either
// side of the many-to-many relation itself.
func throughLinks(ns *catalog.Namespace, parent, through, opposite *catalog.Model) (toParent, toOpposite *catalog.Relation) {
	for _, r := range through.Relations {
		if r.HasJoinTable() {
			continue
		}
		m, ok := ns.ModelAt(r.ModelPath)
		if !ok {
			continue
		}
		switch m {
		case parent:
			toParent = r
		case opposite:
			toOpposite = r
		}
	}
	return toParent, toOpposite
}

func fieldsFor(model *catalog.Model, names []string) []*catalog.Field {
	out := make([]*catalog.Field, len(names))
	for i, n := range names {
		out[i], _ = model.Field(n)
	}
	return out
}

func collectTuples(rows []map[string]any, fields []*catalog.Field) [][]any {
	var out [][]any
	for _, r := range rows {
		t := make([]any, len(fields))
		complete := true
		for i, f := range fields {
			v, ok := r[f.Name]
			if !ok || v == nil {
				complete = false
				break
			}
			t[i] = v
		}
		if complete {
			out = append(out, t)
		}
	}
	return out
}

func dedupeTuples(tuples [][]any) [][]any {
	seen := make(map[string]bool, len(tuples))
	out := make([][]any, 0, len(tuples))
	for _, t := range tuples {
		k := tupleKey(t...)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	return out
}

func tupleKey(vals ...any) string {
	return fmt.Sprint(vals)
}

// tupleWhereClause renders "col IN (...)" for a single-column key, or an
// OR-of-ANDs tuple comparison for a composite one.
func tupleWhereClause(fields []*catalog.Field, tuples [][]any, d dialect.Dialect) string {
	if len(fields) == 1 {
		col := d.Escape(fields[0].ColumnName)
		lits := make([]string, len(tuples))
		for i, t := range tuples {
			lits[i] = encode.Value(t[0], fields[0].LogicalType, false, d)
		}
		return fmt.Sprintf("%s IN (%s)", col, strings.Join(lits, ", "))
	}
	ors := make([]string, len(tuples))
	for i, t := range tuples {
		ands := make([]string, len(fields))
		for j, f := range fields {
			ands[j] = fmt.Sprintf("%s = %s", d.Escape(f.ColumnName), encode.Value(t[j], f.LogicalType, false, d))
		}
		ors[i] = "(" + strings.Join(ands, " AND ") + ")"
	}
	return strings.Join(ors, " OR ")
}

func bucketByFields(parentRows []map[string]any, parentFields []*catalog.Field, childRows []map[string]any, oppositeFields []*catalog.Field, rel *catalog.Relation) {
	byKey := make(map[string][]map[string]any, len(childRows))
	for _, c := range childRows {
		vals := make([]any, len(oppositeFields))
		for i, f := range oppositeFields {
			vals[i] = c[f.Name]
		}
		k := tupleKey(vals...)
		byKey[k] = append(byKey[k], c)
	}
	for _, p := range parentRows {
		vals := make([]any, len(parentFields))
		ok := true
		for i, f := range parentFields {
			v, present := p[f.Name]
			if !present || v == nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			setRelationValue(p, rel, nil)
			continue
		}
		setRelationValue(p, rel, byKey[tupleKey(vals...)])
	}
}

func bucketByTuples(parentRows []map[string]any, pkFieldNames []string, childRows []map[string]any, childBuckets [][]any, rel *catalog.Relation) {
	byKey := make(map[string][]map[string]any, len(childRows))
	for i, c := range childRows {
		byKey[tupleKey(childBuckets[i]...)] = append(byKey[tupleKey(childBuckets[i]...)], c)
	}
	for _, p := range parentRows {
		vals := make([]any, len(pkFieldNames))
		ok := true
		for i, n := range pkFieldNames {
			v, present := p[n]
			if !present || v == nil {
				ok = false
				break
			}
			vals[i] = v
		}
		if !ok {
			setRelationValue(p, rel, nil)
			continue
		}
		setRelationValue(p, rel, byKey[tupleKey(vals...)])
	}
}

func setRelationValue(row map[string]any, rel *catalog.Relation, matches []map[string]any) {
	if rel.Vec {
		if matches == nil {
			matches = []map[string]any{}
		}
		row[rel.Name] = matches
		return
	}
	if len(matches) == 0 {
		row[rel.Name] = nil
		return
	}
	row[rel.Name] = matches[0]
}

func setEmptyRelation(rows []map[string]any, rel *catalog.Relation) {
	for _, r := range rows {
		setRelationValue(r, rel, nil)
	}
}

func withoutPaging(finder map[string]any) map[string]any {
	out := make(map[string]any, len(finder))
	for k, v := range finder {
		switch k {
		case "skip", "take", "pageSize", "pageNumber", "distinct", "include":
			continue
		}
		out[k] = v
	}
	return out
}

func reverseRows(rows []map[string]any, buckets [][]any) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
		if buckets != nil {
			buckets[i], buckets[j] = buckets[j], buckets[i]
		}
	}
}

func applyDistinct(rows []map[string]any, buckets [][]any, fields []string) ([]map[string]any, [][]any) {
	seen := make(map[string]bool, len(rows))
	outRows := make([]map[string]any, 0, len(rows))
	var outBuckets [][]any
	hasBuckets := buckets != nil
	for i, r := range rows {
		vals := make([]any, len(fields))
		for j, f := range fields {
			vals[j] = r[f]
		}
		k := tupleKey(vals...)
		if seen[k] {
			continue
		}
		seen[k] = true
		outRows = append(outRows, r)
		if hasBuckets {
			outBuckets = append(outBuckets, buckets[i])
		}
	}
	return outRows, outBuckets
}

// applyPaging re-implements query.Build's own skip/take/pageSize/pageNumber
// arithmetic over an already-fetched, already-ordered, ascending slice: a
// negative take here means "the last N of what's left", computed directly
// rather than by asking the database to reverse order and reversing back.
func applyPaging(rows []map[string]any, buckets [][]any, finder map[string]any) ([]map[string]any, [][]any) {
	n := len(rows)
	start, end := 0, n
	if pageSizeVal, ok := finder["pageSize"]; ok {
		pageSize := int(toInt64Loose(pageSizeVal))
		pageNumber := int64(1)
		if pv, ok := finder["pageNumber"]; ok {
			pageNumber = toInt64Loose(pv)
		}
		start = int((pageNumber - 1) * int64(pageSize))
		end = start + pageSize
	} else {
		skip := 0
		if sv, ok := finder["skip"]; ok {
			skip = int(toInt64Loose(sv))
		}
		if tv, ok := finder["take"]; ok {
			take := toInt64Loose(tv)
			if take < 0 {
				end = n - skip
				start = end - int(-take)
			} else {
				start = skip
				end = start + int(take)
			}
		} else {
			start = skip
		}
	}
	if start < 0 {
		start = 0
	}
	if start > n {
		start = n
	}
	if end > n {
		end = n
	}
	if end < start {
		end = start
	}
	outBuckets := buckets
	if buckets != nil {
		outBuckets = buckets[start:end]
	}
	return rows[start:end], outBuckets
}

func toStringSlice(v any) ([]string, bool) {
	switch s := v.(type) {
	case []string:
		return s, true
	case []any:
		out := make([]string, len(s))
		for i, e := range s {
			out[i], _ = e.(string)
		}
		return out, true
	default:
		return nil, false
	}
}

func toStringAnyMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func toInt64Loose(v any) int64 {
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
		return 0
	}
}
