package types

import "context"

// Store is the transactional data store consumed by the engine. It is
// agnostic to the concrete SQL dialect behind it.
type Store interface {
	// Begin starts a transaction. Every statement of one Persist runs in it.
	Begin(ctx context.Context) (Tx, error)

	// Query returns the rows matching q, one Row per result with values in
	// the order of q.Columns.
	Query(ctx context.Context, q Query) ([]Row, error)

	// Close releases the store's resources.
	Close() error
}

// Tx is a store transaction.
type Tx interface {
	// Exec runs one statement. Constraint failures are reported as
	// *ConstraintViolationError.
	Exec(ctx context.Context, stmt Statement) (Result, error)
	Commit() error
	Rollback() error
}

// Op is a data-modification statement kind.
type Op string

// Statement kinds.
const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Statement describes one data-modification statement on one table.
// Columns and Values are parallel; Key and KeyValues are parallel.
type Statement struct {
	Op        Op
	Table     string
	Columns   []string
	Values    []any
	Key       []string
	KeyValues []any
	// Returning lists columns whose stored values the insert should report.
	Returning []string
}

// Result reports the outcome of a Statement.
type Result struct {
	RowsAffected int64
	// Returned holds the values of Statement.Returning, in order.
	Returned []any
}

// ColumnRef is a table-qualified column.
type ColumnRef struct {
	Table  string
	Column string
}

// Join adds a table joined to the query's base table on a shared key.
type Join struct {
	Table string
	Key   []string
}

// Query is a read against one table, optionally joined to subtype tables.
type Query struct {
	Table   string
	Joins   []Join
	Columns []ColumnRef
	Where   []Condition
	OrderBy []ColumnRef
}

// Condition is a predicate bound to a table.
type Condition struct {
	Table string
	Predicate
}

// Row is one query result, aligned with Query.Columns.
type Row []any
