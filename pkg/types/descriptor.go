package types

import "time"

// KeyStrategy controls where the primary key value of a new entity comes from.
type KeyStrategy string

// Key strategies.
const (
	// KeyAuto keys are generated by the store on insert and read back.
	// Only single-column keys may use KeyAuto.
	KeyAuto KeyStrategy = "auto"
	// KeyClient keys are produced by Descriptor.NewKey when the key is zero.
	KeyClient KeyStrategy = "client"
	// KeyAssigned keys are set by the caller, or by relationship fix-up when
	// the key doubles as a foreign key (shared primary key).
	KeyAssigned KeyStrategy = "assigned"
)

// DeleteBehavior says what happens to dependents when their principal is
// deleted. The choice is declared per relationship.
type DeleteBehavior string

// Delete behaviors.
const (
	// DeleteRestrict refuses to delete a principal that still has live
	// dependents.
	DeleteRestrict DeleteBehavior = "restrict"
	// DeleteCascadeStore relies on the store's ON DELETE CASCADE rule. Tracked
	// dependents are detached after the principal is deleted.
	DeleteCascadeStore DeleteBehavior = "cascade-store"
	// DeleteCascadeTracked makes the engine mark every tracked dependent as
	// deleted together with the principal.
	DeleteCascadeTracked DeleteBehavior = "cascade-tracked"
)

// Trigger selects when a DefaultRule applies.
type Trigger uint8

// Triggers. Combine with |.
const (
	OnInsert Trigger = 1 << iota
	OnUpdate
)

// Values holds column values of one entity keyed by column name.
type Values map[string]any

// DefaultRule assigns a value to a column before the entity is written.
type DefaultRule struct {
	Column string
	When   Trigger
	// IfZero limits the rule to columns whose current value is the zero value.
	IfZero bool
	// Value computes the value; now comes from the engine's clock.
	Value func(now time.Time) any
}

// CheckConstraint is validated client-side before any statement is sent.
// The same rule should exist in the store schema.
type CheckConstraint struct {
	Name string
	// Columns lists the columns the check reads. The first one is reported
	// as the offending field.
	Columns []string
	Valid   func(v Values) bool
}

// Relationship links a dependent type to its principal through a foreign
// key column on the dependent. It is declared on the dependent's descriptor.
type Relationship struct {
	Name string
	// Principal is a pointer prototype of the principal type, e.g. (*Category)(nil).
	Principal any
	// ForeignKey is the dependent column holding the principal's key. When it
	// equals the dependent's key the two share a primary key.
	ForeignKey string
	OnDelete   DeleteBehavior
	// Parent returns the principal referenced by a dependent, or nil.
	Parent func(dependent any) any
	// Children returns the dependents referenced by a principal.
	Children func(principal any) []any
	// Optional dependents may have a zero foreign key.
	Optional bool
}

// Descriptor is the static metadata of one entity type. Columns are read from
// `db:"name"` struct tags on the entity struct; fields without a tag are
// navigation properties and are not persisted.
type Descriptor struct {
	// Entity is a pointer prototype of the entity type, e.g. (*Product)(nil).
	Entity any
	Table  string
	Key    []string
	// KeyStrategy defaults to KeyAuto.
	KeyStrategy KeyStrategy
	// NewKey produces a key value for KeyClient descriptors.
	NewKey func() any
	// Base is the pointer prototype of the base type for table-per-type
	// mapping. The entity struct must embed the base struct, and its table
	// holds the shared key plus the subtype's own columns.
	Base any
	// Generated lists store-computed columns. They are left out of inserts
	// while zero and read back after the insert.
	Generated     []string
	Defaults      []DefaultRule
	Checks        []CheckConstraint
	Relationships []Relationship
	// Filter is applied to every query through the engine unless bypassed.
	Filter []Predicate
}
