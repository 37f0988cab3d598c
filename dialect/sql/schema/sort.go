package schema

import "github.com/polysql/polysql/catalog"

// sortFromDesc maps a boolean "is descending" flag (as reported by
// Postgres's indoption bitmask) to a catalog.Sort.
func sortFromDesc(desc bool) catalog.Sort {
	if desc {
		return catalog.Desc
	}
	return catalog.Asc
}

// sortFromMySQL maps SHOW INDEX's Collation column ("A"/"D"/NULL) to a
// catalog.Sort, defaulting to Asc when the column is absent (MySQL omits
// it for some index types).
func sortFromMySQL(s string) catalog.Sort {
	if s == "D" {
		return catalog.Desc
	}
	return catalog.Asc
}
