package tracker

import (
	"reflect"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Entry is the tracking record of one entity: the entity reference, its
// lifecycle state, and the snapshot of its last persisted values.
type Entry struct {
	entity   any
	value    reflect.Value // the struct the entity points to
	et       *entityType
	state    types.EntityState
	snapshot types.Values
	forced   bool // set by MarkModified; the update writes every column
	seq      uint64
}

// Entity returns the tracked entity reference.
func (e *Entry) Entity() any { return e.entity }

// State returns the current lifecycle state.
func (e *Entry) State() types.EntityState { return e.state }

// Table returns the table of the entity's own type.
func (e *Entry) Table() string { return e.et.desc.Table }

// Snapshot returns a copy of the last persisted values, or nil for added
// entities.
func (e *Entry) Snapshot() types.Values {
	if e.snapshot == nil {
		return nil
	}
	cp := make(types.Values, len(e.snapshot))
	for k, v := range e.snapshot {
		cp[k] = v
	}
	return cp
}

// Current returns the entity's current column values.
func (e *Entry) Current() types.Values {
	return e.et.values(e.value)
}

// ChangedColumns returns the non-key columns whose current value differs
// from the snapshot, in mapping order.
func (e *Entry) ChangedColumns() []string {
	if e.snapshot == nil {
		return nil
	}
	var changed []string
	for _, c := range e.et.columns {
		if c.key {
			continue
		}
		if !valuesEqual(c.get(e.value), e.snapshot[c.name]) {
			changed = append(changed, c.name)
		}
	}
	return changed
}

// keyChanged reports whether a key column differs from the snapshot.
func (e *Entry) keyChanged() string {
	for _, c := range e.et.key {
		if !valuesEqual(c.get(e.value), e.snapshot[c.name]) {
			return c.name
		}
	}
	return ""
}

func (e *Entry) snapshotKey() []any {
	keys := make([]any, len(e.et.key))
	for i, c := range e.et.key {
		keys[i] = e.snapshot[c.name]
	}
	return keys
}

func (e *Entry) accept() {
	e.state = types.StateUnchanged
	e.snapshot = e.et.values(e.value)
	e.forced = false
}
