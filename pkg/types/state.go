package types

// EntityState is the lifecycle state of an entity with respect to a working set.
type EntityState string

// Entity states. An entity tracked by an engine has exactly one of these
// states at any instant; an entity outside the working set is Detached.
const (
	StateDetached  EntityState = "detached"
	StateAdded     EntityState = "added"
	StateUnchanged EntityState = "unchanged"
	StateModified  EntityState = "modified"
	StateDeleted   EntityState = "deleted"
)

// validStates is the set of recognized state values.
var validStates = map[EntityState]bool{
	StateDetached:  true,
	StateAdded:     true,
	StateUnchanged: true,
	StateModified:  true,
	StateDeleted:   true,
}

// Valid reports whether s is one of the EntityState constants.
func (s EntityState) Valid() bool {
	return validStates[s]
}

// HasSnapshot reports whether an entity in state s carries a snapshot of its
// last persisted values. Added and Detached entities have none.
func (s EntityState) HasSnapshot() bool {
	return s == StateUnchanged || s == StateModified || s == StateDeleted
}

func (s EntityState) String() string {
	return string(s)
}
