// Package tracker implements the change-tracking persistence engine: a
// working set of tracked entities whose in-memory mutations are reconciled
// with a store as one ordered, all-or-nothing batch of statements.
package tracker

import (
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Model holds the registered type descriptors. Register every type once,
// principals and base types first, before creating engines over the model.
// A Model is read-only after registration and may be shared by engines.
type Model struct {
	types map[reflect.Type]*entityType
	order []*entityType
}

// NewModel returns an empty model.
func NewModel() *Model {
	return &Model{types: make(map[reflect.Type]*entityType)}
}

// entityType is a registered descriptor with its resolved mapping.
type entityType struct {
	desc     types.Descriptor
	typ      reflect.Type // struct type
	base     *entityType
	baseIdx  []int // field index of the embedded base struct
	strategy types.KeyStrategy
	rank     int

	tables  []*tableMap // root table first, own table last
	columns []*column   // every column of the hierarchy, key columns first
	byName  map[string]*column
	key     []*column

	checks    []types.CheckConstraint
	defaults  []types.DefaultRule
	filter    []types.Predicate
	relations []*relation // this type as dependent, inherited ones included

	dependents []*relation // this type as principal
}

type tableMap struct {
	name    string
	columns []*column // key columns first
}

type column struct {
	name      string
	table     string
	index     []int
	key       bool
	generated bool
}

type relation struct {
	rel       types.Relationship
	dependent *entityType
	principal *entityType
	fk        *column
	// origin is the declared relation; inherited copies point at it.
	origin *relation
}

func (r *relation) name() string {
	if r.rel.Name != "" {
		return r.rel.Name
	}
	return r.principal.typ.Name() + "_" + r.dependent.typ.Name()
}

// Register adds a descriptor to the model. It returns ErrInvalidDescriptor
// for malformed descriptors and ErrAlreadyRegistered for repeated types.
func (m *Model) Register(d types.Descriptor) error {
	typ, err := structType(d.Entity)
	if err != nil {
		return err
	}
	if _, ok := m.types[typ]; ok {
		return fmt.Errorf("%w: %s", types.ErrAlreadyRegistered, typ)
	}
	if d.Table == "" {
		return invalid(typ, "table name is empty")
	}

	et := &entityType{desc: d, typ: typ, byName: make(map[string]*column)}

	if d.Base != nil {
		baseTyp, err := structType(d.Base)
		if err != nil {
			return err
		}
		base, ok := m.types[baseTyp]
		if !ok {
			return invalid(typ, "base type %s is not registered", baseTyp)
		}
		et.base = base
	}

	if err := et.mapColumns(); err != nil {
		return err
	}
	if err := et.resolveKey(); err != nil {
		return err
	}
	if err := et.resolveRules(); err != nil {
		return err
	}
	if err := m.resolveRelations(et); err != nil {
		return err
	}

	m.types[typ] = et
	m.order = append(m.order, et)
	return nil
}

// Tables returns the table names of the registered types in dependency
// order: base and principal tables precede the tables that reference them.
func (m *Model) Tables() []string {
	var names []string
	seen := make(map[string]bool)
	for rank := 0; len(seen) < m.tableCount(); rank++ {
		for _, et := range m.order {
			if et.rank != rank {
				continue
			}
			for _, tm := range et.tables {
				if !seen[tm.name] {
					seen[tm.name] = true
					names = append(names, tm.name)
				}
			}
		}
	}
	return names
}

func (m *Model) tableCount() int {
	n := make(map[string]bool)
	for _, et := range m.order {
		for _, tm := range et.tables {
			n[tm.name] = true
		}
	}
	return len(n)
}

// lookup returns the registered type of entity, which must be a non-nil
// pointer to a registered struct.
func (m *Model) lookup(entity any) (*entityType, reflect.Value, error) {
	v := reflect.ValueOf(entity)
	if !v.IsValid() || v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, reflect.Value{}, fmt.Errorf("%w: %T", types.ErrUnknownType, entity)
	}
	et, ok := m.types[v.Elem().Type()]
	if !ok {
		return nil, reflect.Value{}, fmt.Errorf("%w: %T", types.ErrUnknownType, entity)
	}
	return et, v.Elem(), nil
}

// typeOf resolves a pointer prototype such as (*Product)(nil).
func (m *Model) typeOf(prototype any) (*entityType, error) {
	typ, err := structType(prototype)
	if err != nil {
		return nil, err
	}
	et, ok := m.types[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownType, typ)
	}
	return et, nil
}

func structType(prototype any) (reflect.Type, error) {
	t := reflect.TypeOf(prototype)
	if t == nil || t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: entity prototype must be a struct pointer, got %T", types.ErrInvalidDescriptor, prototype)
	}
	return t.Elem(), nil
}

func invalid(typ reflect.Type, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", types.ErrInvalidDescriptor, typ, fmt.Sprintf(format, args...))
}

// mapColumns builds the table layout from db struct tags. Columns of an
// embedded base struct belong to the base tables; the rest go to the own table.
func (et *entityType) mapColumns() error {
	own := &tableMap{name: et.desc.Table}
	var ownCols []*column
	foundBase := et.base == nil

	var walk func(t reflect.Type, prefix []int) error
	walk = func(t reflect.Type, prefix []int) error {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			index := append(append([]int(nil), prefix...), i)
			if f.Anonymous && et.base != nil && f.Type == et.base.typ {
				et.inheritBase(index)
				et.baseIdx = index
				foundBase = true
				continue
			}
			tag := f.Tag.Get("db")
			if tag == "-" {
				continue
			}
			if tag == "" {
				if f.Anonymous && f.Type.Kind() == reflect.Struct {
					if err := walk(f.Type, index); err != nil {
						return err
					}
				}
				continue
			}
			if !f.IsExported() {
				return invalid(et.typ, "field %s is tagged but unexported", f.Name)
			}
			if _, dup := et.byName[tag]; dup {
				return invalid(et.typ, "column %q is mapped twice", tag)
			}
			c := &column{name: tag, table: own.name, index: index}
			et.byName[tag] = c
			ownCols = append(ownCols, c)
		}
		return nil
	}
	if err := walk(et.typ, nil); err != nil {
		return err
	}
	if !foundBase {
		return invalid(et.typ, "struct does not embed base %s", et.base.typ)
	}

	if et.base != nil {
		for _, k := range et.base.key {
			own.columns = append(own.columns, et.byName[k.name])
		}
	}
	own.columns = append(own.columns, ownCols...)
	et.tables = append(et.tables, own)
	for _, tm := range et.tables {
		for _, c := range tm.columns {
			if !containsColumn(et.columns, c) {
				et.columns = append(et.columns, c)
			}
		}
	}
	return nil
}

// inheritBase copies the base hierarchy's tables and columns, re-rooting
// their field indexes at the embedded field.
func (et *entityType) inheritBase(index []int) {
	copied := make(map[*column]*column)
	for _, c := range et.base.columns {
		nc := *c
		nc.index = append(append([]int(nil), index...), c.index...)
		copied[c] = &nc
		et.byName[nc.name] = &nc
	}
	for _, tm := range et.base.tables {
		ntm := &tableMap{name: tm.name}
		for _, c := range tm.columns {
			ntm.columns = append(ntm.columns, copied[c])
		}
		et.tables = append(et.tables, ntm)
	}
}

func containsColumn(cols []*column, c *column) bool {
	for _, x := range cols {
		if x == c {
			return true
		}
	}
	return false
}

func (et *entityType) resolveKey() error {
	d := et.desc
	if et.base != nil {
		if len(d.Key) > 0 && !sameStrings(d.Key, et.base.desc.Key) {
			return invalid(et.typ, "subtype key %v differs from base key %v", d.Key, et.base.desc.Key)
		}
		for _, k := range et.base.desc.Key {
			et.key = append(et.key, et.byName[k])
		}
		et.strategy = et.base.strategy
		et.desc.Key = et.base.desc.Key
		et.desc.KeyStrategy = et.strategy
		et.desc.NewKey = et.base.desc.NewKey
		return nil
	}

	if len(d.Key) == 0 {
		return invalid(et.typ, "no key columns")
	}
	for _, k := range d.Key {
		c, ok := et.byName[k]
		if !ok {
			return invalid(et.typ, "key column %q is not mapped", k)
		}
		c.key = true
		et.key = append(et.key, c)
	}
	et.strategy = d.KeyStrategy
	if et.strategy == "" {
		et.strategy = types.KeyAuto
	}
	switch et.strategy {
	case types.KeyAuto:
		if len(et.key) != 1 {
			return invalid(et.typ, "auto keys must have exactly one column")
		}
	case types.KeyClient:
		if d.NewKey == nil {
			return invalid(et.typ, "client keys need NewKey")
		}
	case types.KeyAssigned:
	default:
		return invalid(et.typ, "unknown key strategy %q", et.strategy)
	}

	// Move key columns to the front of the table.
	tm := et.tables[0]
	ordered := append([]*column(nil), et.key...)
	for _, c := range tm.columns {
		if !c.key {
			ordered = append(ordered, c)
		}
	}
	tm.columns = ordered
	et.columns = append([]*column(nil), ordered...)
	return nil
}

func (et *entityType) resolveRules() error {
	d := et.desc
	if et.base != nil {
		et.checks = append(et.checks, et.base.checks...)
		et.defaults = append(et.defaults, et.base.defaults...)
		et.filter = append(et.filter, et.base.filter...)
	}
	for _, g := range d.Generated {
		c, ok := et.byName[g]
		if !ok {
			return invalid(et.typ, "generated column %q is not mapped", g)
		}
		c.generated = true
	}
	for _, r := range d.Defaults {
		if _, ok := et.byName[r.Column]; !ok {
			return invalid(et.typ, "default rule column %q is not mapped", r.Column)
		}
		if r.Value == nil || r.When == 0 {
			return invalid(et.typ, "default rule for %q needs a trigger and a value", r.Column)
		}
	}
	for _, ck := range d.Checks {
		if ck.Valid == nil || len(ck.Columns) == 0 {
			return invalid(et.typ, "check %q needs columns and a rule", ck.Name)
		}
		for _, col := range ck.Columns {
			if _, ok := et.byName[col]; !ok {
				return invalid(et.typ, "check %q column %q is not mapped", ck.Name, col)
			}
		}
	}
	for _, p := range d.Filter {
		if _, ok := et.byName[p.Column]; !ok {
			return invalid(et.typ, "filter column %q is not mapped", p.Column)
		}
	}
	et.checks = append(et.checks, d.Checks...)
	et.defaults = append(et.defaults, d.Defaults...)
	et.filter = append(et.filter, d.Filter...)
	return nil
}

func (m *Model) resolveRelations(et *entityType) error {
	if et.base != nil {
		et.rank = et.base.rank + 1
		for _, r := range et.base.relations {
			inherited := *r
			inherited.dependent = et
			inherited.fk = et.byName[r.fk.name]
			et.relations = append(et.relations, &inherited)
		}
	}
	var own []*relation
	for _, rel := range et.desc.Relationships {
		ptyp, err := structType(rel.Principal)
		if err != nil {
			return err
		}
		principal, ok := m.types[ptyp]
		if !ok {
			return invalid(et.typ, "principal %s is not registered", ptyp)
		}
		if len(principal.key) != 1 {
			return invalid(et.typ, "principal %s must have a single-column key", ptyp)
		}
		fk, ok := et.byName[rel.ForeignKey]
		if !ok {
			return invalid(et.typ, "foreign key column %q is not mapped", rel.ForeignKey)
		}
		switch rel.OnDelete {
		case "":
			rel.OnDelete = types.DeleteRestrict
		case types.DeleteRestrict, types.DeleteCascadeStore, types.DeleteCascadeTracked:
		default:
			return invalid(et.typ, "unknown delete behavior %q", rel.OnDelete)
		}
		r := &relation{rel: rel, dependent: et, principal: principal, fk: fk}
		r.origin = r
		own = append(own, r)
		if principal.rank+1 > et.rank {
			et.rank = principal.rank + 1
		}
	}
	// Inherited relations are found through the base type, so principals
	// only index the relations declared here.
	for _, r := range own {
		r.principal.dependents = append(r.principal.dependents, r)
	}
	et.relations = append(et.relations, own...)
	return nil
}

// isA reports whether et is other or derives from it.
func (et *entityType) isA(other *entityType) bool {
	for t := et; t != nil; t = t.base {
		if t == other {
			return true
		}
	}
	return false
}

// dependentRelations returns the relations in which et, or one of its
// bases, is the principal.
func (et *entityType) dependentRelations() []*relation {
	var rels []*relation
	for t := et; t != nil; t = t.base {
		rels = append(rels, t.dependents...)
	}
	return rels
}

// tableOf returns the name of the table that stores col.
func (et *entityType) tableOf(col string) string {
	if c, ok := et.byName[col]; ok {
		return c.table
	}
	return et.desc.Table
}

func sameStrings(a, b []string) bool {
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
