package types

import (
	"errors"
	"fmt"
)

// Working set errors.
var (
	ErrDuplicateTracking = errors.New("entity is already tracked")
	ErrUntrackedEntity   = errors.New("entity is not tracked")
	ErrUnknownType       = errors.New("entity type is not registered")
	ErrMissingKey        = errors.New("entity key is not set")
)

// Persistence errors.
var (
	ErrConstraintViolation = errors.New("constraint violation")
	ErrConcurrencyConflict = errors.New("concurrency conflict")
)

// Model errors.
var (
	ErrInvalidDescriptor = errors.New("invalid type descriptor")
	ErrAlreadyRegistered = errors.New("entity type already registered")
	ErrUnknownColumn     = errors.New("column is not mapped")
)

// ConstraintKind names the rule a ConstraintViolationError broke.
type ConstraintKind string

// Constraint kinds.
const (
	ConstraintCheck      ConstraintKind = "check"
	ConstraintForeignKey ConstraintKind = "foreign-key"
	ConstraintUnique     ConstraintKind = "unique"
	ConstraintNotNull    ConstraintKind = "not-null"
	ConstraintRestrict   ConstraintKind = "restrict"
	ConstraintPrincipal  ConstraintKind = "principal"
	ConstraintOther      ConstraintKind = "other"
)

// DuplicateTrackingError is returned by Add and Track when the entity
// reference is already in the working set.
type DuplicateTrackingError struct {
	Entity any
	State  EntityState
}

func (e *DuplicateTrackingError) Error() string {
	return fmt.Sprintf("%s: %T (%s)", ErrDuplicateTracking, e.Entity, e.State)
}

func (e *DuplicateTrackingError) Unwrap() error { return ErrDuplicateTracking }

// UntrackedEntityError is returned when an operation names an entity that is
// not in the working set.
type UntrackedEntityError struct {
	Entity any
}

func (e *UntrackedEntityError) Error() string {
	return fmt.Sprintf("%s: %T", ErrUntrackedEntity, e.Entity)
}

func (e *UntrackedEntityError) Unwrap() error { return ErrUntrackedEntity }

// ConstraintViolationError reports a broken constraint, found either by
// client-side validation or by the store. Entity is set by the engine.
type ConstraintViolationError struct {
	Entity     any
	Table      string
	Column     string
	Constraint string
	Kind       ConstraintKind
	Err        error
}

func (e *ConstraintViolationError) Error() string {
	msg := fmt.Sprintf("%s (%s)", ErrConstraintViolation, e.Kind)
	if e.Constraint != "" {
		msg += " " + e.Constraint
	}
	if e.Table != "" || e.Column != "" {
		msg += fmt.Sprintf(" on %s.%s", e.Table, e.Column)
	}
	if e.Entity != nil {
		msg += fmt.Sprintf(" for %T", e.Entity)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches ErrConstraintViolation.
func (e *ConstraintViolationError) Is(target error) bool {
	return target == ErrConstraintViolation
}

func (e *ConstraintViolationError) Unwrap() error { return e.Err }

// ConcurrencyConflictError is returned when an update or delete affects no
// rows: the row changed or vanished since the snapshot was taken.
type ConcurrencyConflictError struct {
	Entity any
	Table  string
	Op     Op
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("%s: %s on %s affected no rows for %T", ErrConcurrencyConflict, e.Op, e.Table, e.Entity)
}

func (e *ConcurrencyConflictError) Unwrap() error { return ErrConcurrencyConflict }
