package tracker

import (
	"fmt"
	"reflect"
	"slices"

	"github.com/juju/clock"
	"github.com/juju/loggo"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

var defaultLogger = loggo.GetLogger("tracker.engine")

// Engine is one unit of work: a working set of tracked entities reconciled
// with a store by Persist. An Engine is not safe for concurrent use; create
// one per unit of work.
type Engine struct {
	store   types.Store
	model   *Model
	clock   clock.Clock
	logger  loggo.Logger
	metrics *Metrics
	entries map[any]*Entry
	seq     uint64
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock sets the clock used by default-value rules. The default is the
// wall clock.
func WithClock(c clock.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithLogger sets the logger; the default is the "tracker.engine" logger.
func WithLogger(l loggo.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics makes the engine record statement and persist metrics.
func WithMetrics(m *Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// New creates an engine over store using the descriptors registered in model.
func New(store types.Store, model *Model, opts ...Option) *Engine {
	e := &Engine{
		store:   store,
		model:   model,
		clock:   clock.WallClock,
		logger:  defaultLogger,
		entries: make(map[any]*Entry),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Track registers an existing, presumed persisted entity as unchanged and
// snapshots its current values. The entity's key must be set.
func (e *Engine) Track(entity any) (*Entry, error) {
	if en, ok := e.tracked(entity); ok {
		return nil, &types.DuplicateTrackingError{Entity: entity, State: en.state}
	}
	et, v, err := e.model.lookup(entity)
	if err != nil {
		return nil, err
	}
	if et.keyIsZero(v) {
		return nil, fmt.Errorf("%w: %T", types.ErrMissingKey, entity)
	}
	en := e.newEntry(entity, et, v, types.StateUnchanged)
	en.snapshot = et.values(v)
	e.logger.Tracef("track %T key=%v", entity, et.keyValues(v))
	return en, nil
}

// Add registers a new entity as added. Untracked entities reachable through
// a relationship's Children navigation are added with it.
func (e *Engine) Add(entity any) (*Entry, error) {
	if en, ok := e.tracked(entity); ok {
		return nil, &types.DuplicateTrackingError{Entity: entity, State: en.state}
	}
	graph, err := e.collectGraph(entity)
	if err != nil {
		return nil, err
	}
	var root *Entry
	for _, node := range graph {
		en := e.newEntry(node.entity, node.et, node.value, types.StateAdded)
		if root == nil {
			root = en
		}
		e.logger.Tracef("add %T", node.entity)
	}
	return root, nil
}

type graphNode struct {
	entity any
	et     *entityType
	value  reflect.Value
}

// collectGraph returns entity and its untracked descendants, principals
// before dependents.
func (e *Engine) collectGraph(entity any) ([]graphNode, error) {
	var nodes []graphNode
	seen := make(map[any]bool)
	var visit func(x any) error
	visit = func(x any) error {
		et, v, err := e.model.lookup(x)
		if err != nil {
			return err
		}
		if seen[x] {
			return nil
		}
		seen[x] = true
		nodes = append(nodes, graphNode{entity: x, et: et, value: v})
		for _, r := range et.dependentRelations() {
			if r.rel.Children == nil {
				continue
			}
			for _, child := range r.rel.Children(x) {
				if isNilEntity(child) {
					continue
				}
				if _, tracked := e.tracked(child); tracked {
					continue
				}
				if err := visit(child); err != nil {
					return err
				}
			}
		}
		return nil
	}
	if err := visit(entity); err != nil {
		return nil, err
	}
	return nodes, nil
}

// tracked returns the entry of entity. Only non-nil pointers can be tracked,
// so other values are reported untracked without indexing the working set.
func (e *Engine) tracked(entity any) (*Entry, bool) {
	if !isEntityPointer(entity) {
		return nil, false
	}
	en, ok := e.entries[entity]
	return en, ok
}

func (e *Engine) newEntry(entity any, et *entityType, v reflect.Value, state types.EntityState) *Entry {
	e.seq++
	en := &Entry{entity: entity, value: v, et: et, state: state, seq: e.seq}
	e.entries[entity] = en
	return en
}

// MarkRemoved marks a tracked entity as deleted. An added entity is dropped
// from the working set without any statement. Tracked dependents of
// cascade-tracked relationships are marked too.
func (e *Engine) MarkRemoved(entity any) error {
	en, ok := e.tracked(entity)
	if !ok {
		return &types.UntrackedEntityError{Entity: entity}
	}
	e.markRemoved(en, e.links())
	return nil
}

func (e *Engine) markRemoved(en *Entry, idx linkIndex) {
	if en.state == types.StateDeleted {
		return
	}
	var cascade []*Entry
	for _, r := range en.et.dependentRelations() {
		if r.rel.OnDelete == types.DeleteCascadeTracked {
			cascade = append(cascade, e.dependentsOf(en, r, idx)...)
		}
	}

	if en.state == types.StateAdded {
		delete(e.entries, en.entity)
		en.state = types.StateDetached
		e.logger.Tracef("drop added %T", en.entity)
	} else {
		en.state = types.StateDeleted
		e.logger.Tracef("remove %T key=%v", en.entity, en.snapshotKey())
	}
	for _, d := range cascade {
		e.markRemoved(d, idx)
	}
}

// MarkModified flags a tracked entity as modified regardless of snapshot
// differences. The next Persist writes all of its non-key columns.
func (e *Engine) MarkModified(entity any) error {
	en, ok := e.tracked(entity)
	if !ok {
		return &types.UntrackedEntityError{Entity: entity}
	}
	switch en.state {
	case types.StateUnchanged, types.StateModified:
		en.state = types.StateModified
		en.forced = true
		return nil
	default:
		return fmt.Errorf("%T is %s and cannot be marked modified", entity, en.state)
	}
}

// Detach removes an entity from the working set without touching the store.
func (e *Engine) Detach(entity any) error {
	en, ok := e.tracked(entity)
	if !ok {
		return &types.UntrackedEntityError{Entity: entity}
	}
	delete(e.entries, entity)
	en.state = types.StateDetached
	return nil
}

// Entry returns the tracking record of entity.
func (e *Engine) Entry(entity any) (*Entry, bool) {
	return e.tracked(entity)
}

// State returns the state of entity; untracked entities are detached.
func (e *Engine) State(entity any) types.EntityState {
	if en, ok := e.tracked(entity); ok {
		return en.state
	}
	return types.StateDetached
}

// Entries returns the working set in tracking order.
func (e *Engine) Entries() []*Entry {
	entries := make([]*Entry, 0, len(e.entries))
	for _, en := range e.entries {
		entries = append(entries, en)
	}
	slices.SortFunc(entries, func(a, b *Entry) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	return entries
}

// DetectChanges copies principal keys into foreign keys that follow a
// navigation, then marks every unchanged entity whose values differ from its
// snapshot as modified. An unchanged entity pointing at an added principal
// without a key is marked modified too; Persist writes the foreign key once
// the principal is inserted. It is idempotent.
func (e *Engine) DetectChanges() {
	idx := e.links()
	for _, en := range e.Entries() {
		if en.state == types.StateDeleted {
			continue
		}
		if err := e.fixup(en, idx, nil); err != nil {
			e.logger.Warningf("relationship fix-up for %T: %v", en.entity, err)
		}
		if en.state != types.StateUnchanged {
			continue
		}
		if len(en.ChangedColumns()) > 0 || en.keyChanged() != "" || e.awaitsPrincipalKey(en, idx) {
			en.state = types.StateModified
			e.logger.Tracef("%T modified: %v", en.entity, en.ChangedColumns())
		}
	}
}

// awaitsPrincipalKey reports whether a navigation of en names an added
// principal whose key is only known after its insert.
func (e *Engine) awaitsPrincipalKey(en *Entry, idx linkIndex) bool {
	for _, r := range en.et.relations {
		if r.fk.key {
			continue
		}
		p := e.principalOf(en, r.origin, idx)
		if p == nil {
			continue
		}
		pe, ok := e.tracked(p)
		if !ok || pe.state != types.StateAdded {
			continue
		}
		if pe.et.keyIsZero(pe.value) {
			return true
		}
	}
	return false
}

// Close releases the working set. Entities still tracked become detached.
// The store stays open; it belongs to the caller.
func (e *Engine) Close() error {
	for entity, en := range e.entries {
		en.state = types.StateDetached
		delete(e.entries, entity)
	}
	return nil
}

// linkIndex maps a dependent entity to the tracked principal listing it in
// a Children navigation, per declared relation.
type linkIndex map[any]map[*relation]*Entry

func (e *Engine) links() linkIndex {
	idx := make(linkIndex)
	for _, p := range e.Entries() {
		for _, r := range p.et.dependentRelations() {
			if r.rel.Children == nil {
				continue
			}
			for _, child := range r.rel.Children(p.entity) {
				if !isEntityPointer(child) {
					continue
				}
				m := idx[child]
				if m == nil {
					m = make(map[*relation]*Entry)
					idx[child] = m
				}
				m[r] = p
			}
		}
	}
	return idx
}

// principalOf returns the principal a dependent points at through the
// declared relation o, or nil when no navigation names one.
func (e *Engine) principalOf(d *Entry, o *relation, idx linkIndex) any {
	if o.rel.Parent != nil {
		if p := o.rel.Parent(d.entity); !isNilEntity(p) {
			return p
		}
	}
	if p, ok := idx[d.entity][o]; ok {
		return p.entity
	}
	return nil
}

// principalKey returns the key of a principal entity and whether it is set.
func (e *Engine) principalKey(p any) (any, bool, error) {
	pet, pv, err := e.model.lookup(p)
	if err != nil {
		return nil, false, err
	}
	return pet.key[0].get(pv), !pet.keyIsZero(pv), nil
}

// fixup copies principal keys into the dependent's foreign keys.
func (e *Engine) fixup(d *Entry, idx linkIndex, undo *undoLog) error {
	for _, r := range d.et.relations {
		p := e.principalOf(d, r.origin, idx)
		if p == nil {
			continue
		}
		key, ok, err := e.principalKey(p)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if valuesEqual(r.fk.get(d.value), key) {
			continue
		}
		if err := undo.set(d, r.fk, key); err != nil {
			return err
		}
	}
	return nil
}

// dependentsOf returns the tracked dependents of principal p through the
// declared relation o.
func (e *Engine) dependentsOf(p *Entry, o *relation, idx linkIndex) []*Entry {
	var deps []*Entry
	pkey := p.et.key[0].get(p.value)
	keySet := !p.et.keyIsZero(p.value)
	for _, d := range e.Entries() {
		if d == p || !d.et.isA(o.dependent) {
			continue
		}
		if x := e.principalOf(d, o, idx); x != nil {
			if x == p.entity {
				deps = append(deps, d)
			}
			continue
		}
		if keySet && valuesEqual(d.et.byName[o.fk.name].get(d.value), pkey) {
			deps = append(deps, d)
		}
	}
	return deps
}

// undoLog records field assignments made during Persist so that a failed
// batch leaves entities as they were.
type undoLog []func()

func (u *undoLog) set(en *Entry, c *column, val any) error {
	if u != nil {
		field := en.value.FieldByIndex(c.index)
		saved := reflect.New(field.Type()).Elem()
		saved.Set(field)
		*u = append(*u, func() { en.value.FieldByIndex(c.index).Set(saved) })
	}
	return c.set(en.value, val)
}

func (u undoLog) revert() {
	for i := len(u) - 1; i >= 0; i-- {
		u[i]()
	}
}
