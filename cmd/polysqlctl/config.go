package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/polysql/polysql/catalog"
	"github.com/polysql/polysql/dialect"
)

// ModelsConfig is the yaml.v3-decoded shape of a --models file: a flat list
// of table declarations, each listing its columns, its primary/secondary
// indexes, and its foreign keys to other declared tables. It is a plain
// subset of catalog.Model — enough to drive Migrate — not a general
// metadata-store format.
type ModelsConfig struct {
	Models []ModelConfig `yaml:"models"`
}

type ModelConfig struct {
	Name                   string          `yaml:"name"`
	Table                  string          `yaml:"table"`
	PreviousTableNames     []string        `yaml:"previousTableNames"`
	AllowsDropWhenMigrate  bool            `yaml:"allowsDropWhenMigrate"`
	Fields                 []FieldConfig   `yaml:"fields"`
	Indexes                []IndexConfig   `yaml:"indexes"`
	Relations              []RelationConfig `yaml:"relations"`
}

type FieldConfig struct {
	Name          string `yaml:"name"`
	Column        string `yaml:"column"`
	Type          string `yaml:"type"` // string|text|int|int64|float|decimal|bool|datetime|date|json|bytes
	Optional      bool   `yaml:"optional"`
	AutoIncrement bool   `yaml:"autoIncrement"`
	Primary       bool   `yaml:"primary"`
	Unique        bool   `yaml:"unique"`
	Default       any    `yaml:"default"`
	Comment       string `yaml:"comment"`
}

type IndexConfig struct {
	Kind   string   `yaml:"kind"` // primary|unique|index
	Name   string   `yaml:"name"`
	Fields []string `yaml:"fields"`
}

type RelationConfig struct {
	Name       string   `yaml:"name"`
	Fields     []string `yaml:"fields"`
	References []string `yaml:"references"`
	Model      []string `yaml:"model"`      // namespace path to the opposite model
	Through    []string `yaml:"through"`    // namespace path to the join table, omitted for direct FKs
	Many       bool     `yaml:"many"`
}

// LoadModelsConfig reads and decodes a --models yaml file.
func LoadModelsConfig(path string) (*ModelsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("polysqlctl: read models file %s: %w", path, err)
	}
	var cfg ModelsConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("polysqlctl: parse models file %s: %w", path, err)
	}
	return &cfg, nil
}

// Build turns the decoded config into the catalog.Model slice schema.Migrate
// and txn.Transaction.Migrate expect, resolving each field's yaml type name
// to its DBType/LogicalType pair via fieldType.
func (c *ModelsConfig) Build(d dialect.Dialect) ([]*catalog.Model, error) {
	models := make([]*catalog.Model, 0, len(c.Models))
	for _, mc := range c.Models {
		m := &catalog.Model{
			Name:                  mc.Name,
			TableName:             mc.Table,
			PreviousTableNames:    mc.PreviousTableNames,
			AllowsDropWhenMigrate: mc.AllowsDropWhenMigrate,
		}
		for _, fc := range mc.Fields {
			dbType, logical, err := fieldType(d, fc.Type)
			if err != nil {
				return nil, fmt.Errorf("polysqlctl: model %s field %s: %w", mc.Name, fc.Name, err)
			}
			m.Fields = append(m.Fields, &catalog.Field{
				Name:          fc.Name,
				ColumnName:    columnOrField(fc.Column, fc.Name),
				DBType:        dbType,
				LogicalType:   logical,
				Optional:      fc.Optional,
				AutoIncrement: fc.AutoIncrement,
				Primary:       fc.Primary,
				Unique:        fc.Unique,
				Default:       fc.Default,
				Comment:       fc.Comment,
			})
		}
		for _, ic := range mc.Indexes {
			kind, err := indexKind(ic.Kind)
			if err != nil {
				return nil, fmt.Errorf("polysqlctl: model %s index %s: %w", mc.Name, ic.Name, err)
			}
			idx := &catalog.Index{Kind: kind, Name: ic.Name}
			for _, f := range ic.Fields {
				idx.Items = append(idx.Items, catalog.IndexItem{Field: f, Sort: catalog.Asc})
			}
			m.Indexes = append(m.Indexes, idx)
		}
		for _, rc := range mc.Relations {
			m.Relations = append(m.Relations, &catalog.Relation{
				Name:        rc.Name,
				Fields:      rc.Fields,
				References:  rc.References,
				ModelPath:   rc.Model,
				ThroughPath: rc.Through,
				Vec:         rc.Many,
			})
		}
		models = append(models, m.Build())
	}
	return models, nil
}

func columnOrField(column, name string) string {
	if column != "" {
		return column
	}
	return name
}

func indexKind(kind string) (catalog.IndexKind, error) {
	switch kind {
	case "", "index":
		return catalog.IndexKindIndex, nil
	case "unique":
		return catalog.IndexKindUnique, nil
	case "primary":
		return catalog.IndexKindPrimary, nil
	default:
		return 0, fmt.Errorf("unknown index kind %q", kind)
	}
}

// fieldType maps a config file's dialect-independent type name to the
// dialect-specific catalog.Type DDL payload plus its FieldType scalar kind.
func fieldType(d dialect.Dialect, name string) (catalog.Type, catalog.FieldType, error) {
	switch name {
	case "string":
		return dbTypeFor(d, "varchar", "text", "text"), catalog.Scalar(catalog.ScalarString), nil
	case "text":
		return dbTypeFor(d, "text", "text", "text"), catalog.Scalar(catalog.ScalarString), nil
	case "int":
		return dbTypeFor(d, "int", "integer", "integer"), catalog.Scalar(catalog.ScalarInt), nil
	case "int64":
		return dbTypeFor(d, "bigint", "bigint", "integer"), catalog.Scalar(catalog.ScalarInt64), nil
	case "float":
		return dbTypeFor(d, "double", "double precision", "real"), catalog.Scalar(catalog.ScalarFloat), nil
	case "decimal":
		return dbTypeFor(d, "decimal", "numeric", "decimal"), catalog.Scalar(catalog.ScalarDecimal), nil
	case "bool":
		return dbTypeFor(d, "tinyint", "boolean", "integer"), catalog.Scalar(catalog.ScalarBool), nil
	case "date":
		return dbTypeFor(d, "date", "date", "text"), catalog.Scalar(catalog.ScalarDate), nil
	case "datetime":
		return dbTypeFor(d, "datetime", "timestamp", "text"), catalog.Scalar(catalog.ScalarDateTime), nil
	case "json":
		return dbTypeFor(d, "json", "jsonb", "text"), catalog.Scalar(catalog.ScalarString), nil
	case "bytes":
		return dbTypeFor(d, "blob", "bytea", "blob"), catalog.Scalar(catalog.ScalarBytes), nil
	default:
		return catalog.Type{}, catalog.FieldType{}, fmt.Errorf("unknown field type %q", name)
	}
}

func dbTypeFor(d dialect.Dialect, mysqlName, postgresName, sqliteName string) catalog.Type {
	switch {
	case d.IsPostgres():
		return catalog.Postgres(postgresName)
	case d.IsSQLite():
		return catalog.SQLite(sqliteName)
	default:
		return catalog.MySQL(mysqlName)
	}
}
