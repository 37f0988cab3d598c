package schema

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// RenderType renders a catalog.Type as the DDL column-type spelling for its
// own dialect. It panics on catalog.KindUndetermined, mirroring the
// original's unconditional panic for that case — an undetermined type
// reaching the DDL layer is a metadata-store bug, not a recoverable one.
func RenderType(t catalog.Type) string {
	switch t.Kind {
	case catalog.KindMySQL:
		return renderMySQL(t.MySQL)
	case catalog.KindPostgres:
		return renderPostgres(t.Postgres)
	case catalog.KindSQLite:
		return renderSQLite(t.SQLite)
	default:
		panic("schema: cannot render an undetermined database type")
	}
}

func renderMySQL(t catalog.MySQLType) string {
	switch t.Name {
	case "varchar":
		return fmt.Sprintf("VARCHAR(%d)", intOf(t.Len))
	case "text":
		return "TEXT"
	case "char":
		return fmt.Sprintf("CHAR(%d)", intOf(t.Len))
	case "tinytext":
		return "TINYTEXT"
	case "mediumtext":
		return "MEDIUMTEXT"
	case "longtext":
		return "LONGTEXT"
	case "bit":
		return fmt.Sprintf("BIT(%d)", intOf(t.Len))
	case "tinyint":
		return fmt.Sprintf("TINYINT(%d)%s", intOf(t.Len), unsignedSuffix(t.Signed))
	case "int":
		return fmt.Sprintf("INT(%s)%s", optionalLen(t.Len), unsignedSuffix(t.Signed))
	case "smallint":
		return fmt.Sprintf("SMALLINT(%s)%s", optionalLen(t.Len), unsignedSuffix(t.Signed))
	case "mediumint":
		return fmt.Sprintf("MEDIUMINT(%s)%s", optionalLen(t.Len), unsignedSuffix(t.Signed))
	case "bigint":
		return fmt.Sprintf("BIGINT(%s)%s", optionalLen(t.Len), unsignedSuffix(t.Signed))
	case "year":
		panic("schema: MySQL YEAR type is not supported")
	case "float":
		return "FLOAT"
	case "double":
		return "DOUBLE"
	case "decimal":
		return fmt.Sprintf("DECIMAL(%d, %d)", intOf(t.Len), intOf(t.Len2))
	case "datetime":
		// NOTE: the grounding source renders this as "DATATIME", a
		// missing-E typo in teodevgroup/teo-sql-connector. Reproduced
		// verbatim here since this is a wire-compatibility surface, not
		// a place to silently diverge from the system being ported.
		return fmt.Sprintf("DATATIME(%d)", intOf(t.Len))
	case "date":
		return "DATE"
	case "time":
		panic("schema: MySQL TIME type is not supported")
	case "timestamp":
		return fmt.Sprintf("TIMESTAMP(%d)", intOf(t.Len))
	case "json":
		return "JSON"
	case "longblob":
		return "LONGBLOB"
	case "binary":
		return "BINARY"
	case "varbinary":
		return "VARBINARY"
	case "tinyblob":
		return "TINYBLOB"
	case "blob":
		return "BLOB"
	case "mediumblob":
		return "MEDIUMBLOB"
	case "enum":
		choices := make([]string, len(t.Variants))
		for i, c := range t.Variants {
			choices[i] = "'" + c + "'"
		}
		return fmt.Sprintf("ENUM (%s)", strings.Join(choices, ","))
	default:
		panic(fmt.Sprintf("schema: unhandled MySQL type %q", t.Name))
	}
}

func renderPostgres(t catalog.PostgresType) string {
	switch t.Name {
	case "text":
		return "TEXT"
	case "char":
		return fmt.Sprintf("CHAR(%d)", intOf(t.Len))
	case "varchar":
		return fmt.Sprintf("VARCHAR(%d)", intOf(t.Len))
	case "bit":
		return fmt.Sprintf("BIT(%d)", intOf(t.Len))
	case "varbit":
		return "BIT VARYING"
	case "uuid":
		return "UUID"
	case "xml":
		return "XML"
	case "inet":
		return "INET"
	case "boolean":
		return "BOOLEAN"
	case "integer":
		return "INTEGER"
	case "smallint":
		return "SMALLINT"
	case "int":
		return "INT"
	case "bigint":
		return "BIGINT"
	case "oid":
		return "OID"
	case "double precision":
		return "DOUBLE PRECISION"
	case "real":
		return "REAL"
	case "decimal":
		return fmt.Sprintf("DECIMAL(%d, %d)", intOf(t.Len), intOf(t.Len2))
	case "money":
		return "MONEY"
	case "date":
		return "DATE"
	case "timestamp":
		tz := ""
		if t.WithTZ {
			tz = " WITH TIMEZONE"
		}
		return fmt.Sprintf("TIMESTAMP(%d)%s", intOf(t.Len), tz)
	case "time":
		tz := ""
		if t.WithTZ {
			tz = " WITH TIMEZONE"
		}
		return "TIME" + tz
	case "json":
		return "JSON"
	case "jsonb":
		return "JSONB"
	case "bytea":
		return "BYTEA"
	case "array":
		return renderPostgres(*t.Element) + "[]"
	default:
		panic(fmt.Sprintf("schema: unhandled Postgres type %q", t.Name))
	}
}

func renderSQLite(t catalog.SQLiteType) string {
	switch t.Name {
	case "text":
		return "TEXT"
	case "integer":
		return "INTEGER"
	case "real":
		return "REAL"
	case "decimal":
		return "DECIMAL"
	case "blob":
		return "BLOB"
	default:
		panic(fmt.Sprintf("schema: unhandled SQLite type %q", t.Name))
	}
}

func intOf(p *int32) int32 {
	if p == nil {
		return 0
	}
	return *p
}

func optionalLen(p *int32) string {
	if p == nil {
		return ""
	}
	return strconv.FormatInt(int64(*p), 10)
}

func unsignedSuffix(signed bool) string {
	if signed {
		return ""
	}
	return " UNSIGNED"
}

// typeDecodeRe splits a lowercased introspection type string into its bare
// name, an optional parenthesized argument list, and an optional trailing
// word (MySQL's "unsigned" marker).
var typeDecodeRe = regexp.MustCompile(`^([^ ()]+)(\((.+)\))?( (.+))?$`)

// ParseType decodes a database-reported column type string (as returned by
// DESCRIBE, information_schema, or pragma_table_info) back into a
// catalog.Type for the given dialect.
func ParseType(typeStr string, d dialect.Dialect) catalog.Type {
	switch {
	case d.IsMySQL():
		return catalog.Type{Kind: catalog.KindMySQL, MySQL: parseMySQLType(typeStr)}
	case d.IsPostgres():
		return catalog.Type{Kind: catalog.KindPostgres, Postgres: parsePostgresType(typeStr)}
	case d.IsSQLite():
		return catalog.Type{Kind: catalog.KindSQLite, SQLite: parseSQLiteType(typeStr)}
	default:
		panic(fmt.Sprintf("schema: unsupported dialect %q for type introspection", d))
	}
}

func parseMySQLType(typeStr string) catalog.MySQLType {
	lower := strings.ToLower(typeStr)
	m := typeDecodeRe.FindStringSubmatch(lower)
	if m == nil {
		panic(fmt.Sprintf("schema: unhandled database type %q", typeStr))
	}
	name, trailing1, arg := m[1], m[5], m[3]
	switch name {
	case "bit":
		return catalog.MySQLType{Name: "bit", Len: optArg(arg)}
	case "tinyint":
		return catalog.MySQLType{Name: "tinyint", Len: optArg(arg), Signed: !strings.Contains(trailing1, "unsigned")}
	case "smallint":
		return catalog.MySQLType{Name: "smallint", Len: optArg(arg), Signed: !strings.Contains(trailing1, "unsigned")}
	case "mediumint":
		return catalog.MySQLType{Name: "mediumint", Len: optArg(arg), Signed: !strings.Contains(trailing1, "unsigned")}
	case "int":
		return catalog.MySQLType{Name: "int", Len: optArg(arg), Signed: !strings.Contains(trailing1, "unsigned")}
	case "bigint":
		return catalog.MySQLType{Name: "bigint", Len: optArg(arg), Signed: !strings.Contains(trailing1, "unsigned")}
	case "float":
		return catalog.MySQLType{Name: "float"}
	case "double":
		return catalog.MySQLType{Name: "double"}
	case "char":
		return catalog.MySQLType{Name: "char", Len: mustArg(arg)}
	case "varchar":
		return catalog.MySQLType{Name: "varchar", Len: mustArg(arg)}
	case "text":
		return catalog.MySQLType{Name: "text"}
	case "mediumtext":
		return catalog.MySQLType{Name: "mediumtext"}
	case "longtext":
		return catalog.MySQLType{Name: "longtext"}
	case "date":
		return catalog.MySQLType{Name: "date"}
	case "datetime":
		return catalog.MySQLType{Name: "datetime", Len: mustArg(arg)}
	case "decimal":
		p, s := splitPair(arg)
		return catalog.MySQLType{Name: "decimal", Len: &p, Len2: &s}
	case "enum":
		variants := strings.Split(arg, ",")
		for i, v := range variants {
			variants[i] = unescapeQuoted(v)
		}
		return catalog.MySQLType{Name: "enum", Variants: variants}
	default:
		panic(fmt.Sprintf("schema: unhandled type %q (trailing %q, arg %q)", name, trailing1, arg))
	}
}

func parsePostgresType(typeStr string) catalog.PostgresType {
	lower := strings.ToLower(typeStr)
	switch lower {
	case "integer", "int4":
		return catalog.PostgresType{Name: "integer"}
	case "text":
		return catalog.PostgresType{Name: "text"}
	case "timestamp with time zone":
		p := int32(3)
		return catalog.PostgresType{Name: "timestamp", Len: &p, WithTZ: true}
	case "timestamp without time zone", "timestamp":
		p := int32(3)
		return catalog.PostgresType{Name: "timestamp", Len: &p, WithTZ: false}
	case "boolean", "bool":
		return catalog.PostgresType{Name: "boolean"}
	case "bigint", "int8":
		return catalog.PostgresType{Name: "bigint"}
	case "double precision", "float8":
		return catalog.PostgresType{Name: "double precision"}
	case "real", "float4":
		return catalog.PostgresType{Name: "real"}
	case "date":
		return catalog.PostgresType{Name: "date"}
	case "numeric":
		p, s := int32(65), int32(30)
		return catalog.PostgresType{Name: "decimal", Len: &p, Len2: &s}
	default:
		if strings.HasPrefix(lower, "array|") {
			inner := parsePostgresType(lower[len("array|"):])
			return catalog.PostgresType{Name: "array", Element: &inner}
		}
		panic(fmt.Sprintf("schema: unhandled database type %q", typeStr))
	}
}

func parseSQLiteType(typeStr string) catalog.SQLiteType {
	lower := strings.ToLower(typeStr)
	m := typeDecodeRe.FindStringSubmatch(lower)
	if m == nil {
		panic(fmt.Sprintf("schema: unhandled database type %q", typeStr))
	}
	switch m[1] {
	case "integer":
		return catalog.SQLiteType{Name: "integer"}
	case "text":
		return catalog.SQLiteType{Name: "text"}
	case "real", "double":
		return catalog.SQLiteType{Name: "real"}
	case "decimal":
		return catalog.SQLiteType{Name: "decimal"}
	default:
		panic(fmt.Sprintf("schema: unhandled type %q", m[1]))
	}
}

func optArg(arg string) *int32 {
	if arg == "" {
		return nil
	}
	return mustArg(arg)
}

func mustArg(arg string) *int32 {
	n, err := strconv.ParseInt(arg, 10, 32)
	if err != nil {
		panic(fmt.Sprintf("schema: invalid type argument %q: %v", arg, err))
	}
	v := int32(n)
	return &v
}

func splitPair(arg string) (int32, int32) {
	parts := strings.Split(arg, ",")
	if len(parts) != 2 {
		panic(fmt.Sprintf("schema: expected two comma-separated args, got %q", arg))
	}
	a, err := strconv.ParseInt(strings.TrimSpace(parts[0]), 10, 32)
	if err != nil {
		panic(err)
	}
	b, err := strconv.ParseInt(strings.TrimSpace(parts[1]), 10, 32)
	if err != nil {
		panic(err)
	}
	return int32(a), int32(b)
}

// unescapeQuoted strips a pair of matching quote characters and resolves
// common backslash escapes, mirroring the shell-quoting unescape applied
// to MySQL ENUM choice literals during introspection.
func unescapeQuoted(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 2 {
		first, last := s[0], s[len(s)-1]
		if (first == '\'' || first == '"') && first == last {
			s = s[1 : len(s)-1]
		}
	}
	s = strings.ReplaceAll(s, `\'`, `'`)
	s = strings.ReplaceAll(s, `\"`, `"`)
	s = strings.ReplaceAll(s, `\\`, `\`)
	return s
}
