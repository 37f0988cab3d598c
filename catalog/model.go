package catalog

// Sort is the column ordering direction used by indexes and orderBy.
type Sort int

const (
	Asc Sort = iota
	Desc
)

func (s Sort) String() string {
	if s == Desc {
		return "DESC"
	}
	return "ASC"
}

// IndexKind distinguishes the three index flavors the migration engine
// reconciles.
type IndexKind int

const (
	IndexKindPrimary IndexKind = iota
	IndexKindUnique
	IndexKindIndex
)

// IndexItem is one ordered column participating in an index.
type IndexItem struct {
	Field  string // model field name, not column name
	Sort   Sort
	Length *int // optional prefix length (MySQL)
}

// Index is a declared index on a model: a primary key, a unique
// constraint, or a plain index.
type Index struct {
	Kind  IndexKind
	Name  string
	Items []IndexItem
}

func (i Index) FieldNames() []string {
	names := make([]string, len(i.Items))
	for idx, it := range i.Items {
		names[idx] = it.Field
	}
	return names
}

// Field is a declared column-backed field on a model.
type Field struct {
	Name          string
	ColumnName    string
	DBType        Type
	LogicalType   FieldType
	Optional      bool
	AutoIncrement bool
	Primary       bool
	Unique        bool
	Default       any // literal default value, or nil
	Comment       string
}

// Property is a computed/cached value stored in its own column but not a
// relation — same shape needs as Field for encode/decode purposes.
type Property struct {
	Name        string
	ColumnName  string
	DBType      Type
	LogicalType FieldType
	Optional    bool
}

// Relation describes a foreign-key or join-table relationship from this
// model to another.
type Relation struct {
	Name       string
	Fields     []string // local field names (FK columns), in order
	References []string // opposite model's referenced field names, in order
	ModelPath  []string // namespace path to the opposite model
	ThroughPath []string // namespace path to the join-table model, nil if direct
	Vec        bool      // true for to-many, false for to-one
}

func (r Relation) HasJoinTable() bool { return len(r.ThroughPath) > 0 }

// Pairs returns the (local field, opposite reference) pairs in order.
func (r Relation) Pairs() [][2]string {
	n := len(r.Fields)
	if len(r.References) < n {
		n = len(r.References)
	}
	out := make([][2]string, n)
	for i := 0; i < n; i++ {
		out[i] = [2]string{r.Fields[i], r.References[i]}
	}
	return out
}

// Model is the resolved, static shape of one entity: its table, fields,
// relations, indexes and properties, plus the migration-affecting flags
// the engine needs (previous table names for rename detection, and whether
// a destructive drop+recreate is allowed when a non-null column would
// otherwise be rejected).
type Model struct {
	Name                   string
	TableName              string
	PreviousTableNames     []string
	Fields                 []*Field
	Relations              []*Relation
	Indexes                []*Index
	Properties             []*Property
	AllowsDropWhenMigrate  bool

	fieldByName     map[string]*Field
	fieldByColumn   map[string]*Field
	relationByName  map[string]*Relation
	propertyByName  map[string]*Property
	propertyByCol   map[string]*Property
}

// Build indexes the model's lookup maps. Callers constructing a Model by
// hand must call Build before use; metadata stores that assemble models
// programmatically should call it once after populating the slices.
func (m *Model) Build() *Model {
	m.fieldByName = make(map[string]*Field, len(m.Fields))
	m.fieldByColumn = make(map[string]*Field, len(m.Fields))
	for _, f := range m.Fields {
		m.fieldByName[f.Name] = f
		m.fieldByColumn[f.ColumnName] = f
	}
	m.relationByName = make(map[string]*Relation, len(m.Relations))
	for _, r := range m.Relations {
		m.relationByName[r.Name] = r
	}
	m.propertyByName = make(map[string]*Property, len(m.Properties))
	m.propertyByCol = make(map[string]*Property, len(m.Properties))
	for _, p := range m.Properties {
		m.propertyByName[p.Name] = p
		m.propertyByCol[p.ColumnName] = p
	}
	return m
}

func (m *Model) Field(name string) (*Field, bool) {
	f, ok := m.fieldByName[name]
	return f, ok
}

func (m *Model) FieldByColumnName(column string) (*Field, bool) {
	f, ok := m.fieldByColumn[column]
	return f, ok
}

func (m *Model) Relation(name string) (*Relation, bool) {
	r, ok := m.relationByName[name]
	return r, ok
}

func (m *Model) Property(name string) (*Property, bool) {
	p, ok := m.propertyByName[name]
	return p, ok
}

func (m *Model) PropertyByColumnName(column string) (*Property, bool) {
	p, ok := m.propertyByCol[column]
	return p, ok
}

// PrimaryIndex returns the model's primary-key index, if declared.
func (m *Model) PrimaryIndex() (*Index, bool) {
	for _, idx := range m.Indexes {
		if idx.Kind == IndexKindPrimary {
			return idx, true
		}
	}
	return nil, false
}

// SaveKeys returns the column names written on create/update: every
// non-relation field and property, in declaration order.
func (m *Model) SaveKeys() []string {
	keys := make([]string, 0, len(m.Fields)+len(m.Properties))
	for _, f := range m.Fields {
		keys = append(keys, f.Name)
	}
	for _, p := range m.Properties {
		keys = append(keys, p.Name)
	}
	return keys
}

// AutoKeys returns the field names that are auto-increment primary keys.
func (m *Model) AutoKeys() []string {
	var keys []string
	for _, f := range m.Fields {
		if f.AutoIncrement {
			keys = append(keys, f.Name)
		}
	}
	return keys
}

// Namespace resolves relation endpoints across a flat set of models. The
// real metadata store may nest namespaces (hence []string paths); this
// module only needs flat lookup by path, so Namespace treats a path as a
// single model name.
type Namespace struct {
	modelsByName map[string]*Model
}

func NewNamespace(models ...*Model) *Namespace {
	ns := &Namespace{modelsByName: make(map[string]*Model, len(models))}
	for _, m := range models {
		ns.modelsByName[m.Name] = m
	}
	return ns
}

func (ns *Namespace) ModelAt(path []string) (*Model, bool) {
	if len(path) == 0 {
		return nil, false
	}
	m, ok := ns.modelsByName[path[len(path)-1]]
	return m, ok
}

// OppositeRelation returns the opposite model and, if declared, the
// relation on that model pointing back at r's owner.
func (ns *Namespace) OppositeRelation(r *Relation) (*Model, *Relation) {
	opposite, _ := ns.ModelAt(r.ModelPath)
	if opposite == nil {
		return nil, nil
	}
	for _, or := range opposite.Relations {
		if sameFields(or.References, r.Fields) && sameFields(or.Fields, r.References) {
			return opposite, or
		}
	}
	return opposite, nil
}

// ThroughRelation returns the join-table model and the relation declared
// on it that points at r's owner model.
func (ns *Namespace) ThroughRelation(r *Relation) (*Model, *Relation) {
	through, _ := ns.ModelAt(r.ThroughPath)
	if through == nil {
		return nil, nil
	}
	for _, tr := range through.Relations {
		if sameFields(tr.Fields, r.Fields) {
			return through, tr
		}
	}
	return through, nil
}

// ThroughOppositeRelation returns the join-table model and the relation
// declared on it that points at the opposite model.
func (ns *Namespace) ThroughOppositeRelation(r *Relation) (*Model, *Relation) {
	through, _ := ns.ModelAt(r.ThroughPath)
	if through == nil {
		return nil, nil
	}
	for _, tr := range through.Relations {
		if sameFields(tr.References, r.References) {
			return through, tr
		}
	}
	return through, nil
}

func sameFields(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
