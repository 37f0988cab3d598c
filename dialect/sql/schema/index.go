package schema

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// indexJoinedNames joins an index's field names with underscores, the
// building block for every non-primary index's generated SQL name.
func indexJoinedNames(idx *catalog.Index) string {
	return strings.Join(idx.FieldNames(), "_")
}

func indexPSQLSuffix(idx *catalog.Index) string {
	if idx.Kind == catalog.IndexKindPrimary {
		return "pkey"
	}
	return "idx"
}

// IndexSQLName computes the SQL-visible name for an index, per dialect:
// the primary index gets each dialect's implicit name (MySQL: "PRIMARY",
// SQLite: "sqlite_autoindex_{table}_1", Postgres: "{table}_pkey");
// every other index is named "{table}_{fields}_idx" on Postgres,
// "{table}_{name}" on SQLite, and the bare declared name on MySQL.
func IndexSQLName(idx *catalog.Index, table string, d dialect.Dialect) string {
	if idx.Kind == catalog.IndexKindPrimary {
		switch {
		case d.IsMySQL():
			return "PRIMARY"
		case d.IsSQLite():
			return fmt.Sprintf("sqlite_autoindex_%s_1", table)
		case d.IsPostgres():
			return normalizeNamePostgres(idx, table)
		}
	}
	if d.IsPostgres() {
		return normalizeNamePostgres(idx, table)
	}
	if d.IsSQLite() {
		return fmt.Sprintf("%s_%s", table, idx.Name)
	}
	return idx.Name
}

func normalizeNamePostgres(idx *catalog.Index, table string) string {
	suffix := indexPSQLSuffix(idx)
	if idx.Kind == catalog.IndexKindPrimary {
		return fmt.Sprintf("%s_%s", table, suffix)
	}
	return fmt.Sprintf("%s_%s_%s", table, indexJoinedNames(idx), suffix)
}

// PostgresPrimaryToUnique synthesizes a mirror UNIQUE index for a primary
// key so the migration diff engine can reconcile Postgres's implicit
// unique index alongside its explicit ones.
func PostgresPrimaryToUnique(idx *catalog.Index, table string) *catalog.Index {
	return &catalog.Index{
		Kind:  catalog.IndexKindUnique,
		Name:  fmt.Sprintf("%s_%s_pkey", table, indexJoinedNames(idx)),
		Items: append([]catalog.IndexItem(nil), idx.Items...),
	}
}

// IndexDropSQL renders DROP INDEX for the given dialect. Postgres indexes
// are schema-scoped (no "ON table" clause); MySQL and SQLite indexes are
// table-scoped.
func IndexDropSQL(idx *catalog.Index, table string, d dialect.Dialect) string {
	name := IndexSQLName(idx, table, d)
	q := string(d.QuoteChar())
	if d.IsPostgres() {
		return fmt.Sprintf("DROP INDEX %s%s%s", q, name, q)
	}
	return fmt.Sprintf("DROP INDEX %s%s%s ON %s%s%s", q, name, q, q, table, q)
}

// IndexCreateSQL renders CREATE [UNIQUE] INDEX for the given dialect.
func IndexCreateSQL(idx *catalog.Index, table string, d dialect.Dialect) string {
	name := IndexSQLName(idx, table, d)
	q := string(d.QuoteChar())
	unique := ""
	if idx.Kind == catalog.IndexKindUnique {
		unique = " UNIQUE"
	}
	items := make([]string, len(idx.Items))
	for i, item := range idx.Items {
		items[i] = formatIndexItem(d, item, false)
	}
	return fmt.Sprintf("CREATE%s INDEX %s%s%s ON %s%s%s(%s)", unique, q, name, q, q, table, q, strings.Join(items, ", "))
}

// formatIndexItem renders one column participating in an index. A prefix
// length is only meaningful for MySQL; tableCreateMode suppresses the
// ASC/DESC suffix for Postgres inline (CREATE TABLE ... ) column
// definitions, where Postgres does not accept a sort direction.
func formatIndexItem(d dialect.Dialect, item catalog.IndexItem, tableCreateMode bool) string {
	q := string(d.QuoteChar())
	name := fmt.Sprintf("%s%s%s", q, item.Field, q)
	lenSuffix := ""
	if d.IsMySQL() && item.Length != nil {
		lenSuffix = "(" + strconv.Itoa(*item.Length) + ")"
	}
	if tableCreateMode && d.IsPostgres() {
		return name
	}
	return fmt.Sprintf("%s%s %s", name, lenSuffix, item.Sort.String())
}
