// Package sqldb implements types.Store over database/sql. A Dialect supplies
// the placeholder syntax, value binding, and constraint error mapping of the
// database behind it.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/juju/loggo"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

var logger = loggo.GetLogger("tracker.sqldb")

// Dialect adapts rendering and errors to one database.
type Dialect interface {
	// Name identifies the dialect in logs and errors.
	Name() string
	// Placeholder returns the marker of the n-th argument, starting at 1.
	Placeholder(n int) string
	// Bind converts a value before it is passed to the driver.
	Bind(v any) any
	// MapError converts a driver constraint error on table into a
	// *types.ConstraintViolationError and returns other errors unchanged.
	MapError(err error, table string) error
}

var _ types.Store = (*Store)(nil)

// Store is a types.Store backed by a *sql.DB.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps db. The Store owns db and closes it on Close.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, dialect: d}
}

// DB returns the underlying database handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect { return s.dialect }

// Begin starts a transaction.
func (s *Store) Begin(ctx context.Context) (types.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: begin: %w", s.dialect.Name(), err)
	}
	return &Tx{tx: tx, dialect: s.dialect}, nil
}

// Query runs q outside any transaction.
func (s *Store) Query(ctx context.Context, q types.Query) ([]types.Row, error) {
	query, args, err := RenderQuery(s.dialect, q)
	if err != nil {
		return nil, err
	}
	logger.Debugf("%s %v", query, args)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying %s: %w", q.Table, err)
	}
	defer rows.Close()

	var out []types.Row
	for rows.Next() {
		row := make(types.Row, len(q.Columns))
		if err := rows.Scan(scanTargets(row)...); err != nil {
			return nil, fmt.Errorf("scanning %s: %w", q.Table, err)
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", q.Table, err)
	}
	return out, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func scanTargets(row []any) []any {
	dest := make([]any, len(row))
	for i := range row {
		dest[i] = &row[i]
	}
	return dest
}

// Tx is a types.Tx over *sql.Tx.
type Tx struct {
	tx      *sql.Tx
	dialect Dialect
}

// Exec renders and runs one statement. Inserts with Returning columns read
// the stored values back in the same round trip.
func (t *Tx) Exec(ctx context.Context, stmt types.Statement) (types.Result, error) {
	query, args, err := RenderStatement(t.dialect, stmt)
	if err != nil {
		return types.Result{}, err
	}
	logger.Debugf("%s %v", query, args)

	if len(stmt.Returning) > 0 {
		returned := make([]any, len(stmt.Returning))
		err := t.tx.QueryRowContext(ctx, query, args...).Scan(scanTargets(returned)...)
		if errors.Is(err, sql.ErrNoRows) {
			return types.Result{}, nil
		}
		if err != nil {
			return types.Result{}, t.dialect.MapError(err, stmt.Table)
		}
		return types.Result{RowsAffected: 1, Returned: returned}, nil
	}

	res, err := t.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return types.Result{}, t.dialect.MapError(err, stmt.Table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return types.Result{}, fmt.Errorf("%s %s: rows affected: %w", stmt.Op, stmt.Table, err)
	}
	return types.Result{RowsAffected: n}, nil
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}
