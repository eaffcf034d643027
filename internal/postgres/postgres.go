// Package postgres implements the Postgres store over the pgx database/sql
// driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/mesh-intelligence/tracker/internal/sqldb"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// DriverName is the database/sql driver registered by pgx.
const DriverName = "pgx"

// SQLSTATE codes of integrity constraint violations (class 23).
const (
	codeNotNull    = "23502"
	codeForeignKey = "23503"
	codeUnique     = "23505"
	codeCheck      = "23514"
)

var sqlOpen = sql.Open

// Dialect is the Postgres sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

// Name returns "postgres".
func (Dialect) Name() string { return types.BackendPostgres }

// Placeholder returns "$n".
func (Dialect) Placeholder(n int) string { return "$" + strconv.Itoa(n) }

// Bind passes values through; pgx encodes them natively.
func (Dialect) Bind(v any) any { return v }

// MapError converts SQLSTATE class 23 errors.
func (Dialect) MapError(err error, table string) error {
	var pe *pgconn.PgError
	if !errors.As(err, &pe) || len(pe.Code) < 2 || pe.Code[:2] != "23" {
		return err
	}
	cv := &types.ConstraintViolationError{
		Table:      table,
		Column:     pe.ColumnName,
		Constraint: pe.ConstraintName,
		Kind:       types.ConstraintOther,
		Err:        err,
	}
	if pe.TableName != "" {
		cv.Table = pe.TableName
	}
	switch pe.Code {
	case codeNotNull:
		cv.Kind = types.ConstraintNotNull
	case codeForeignKey:
		cv.Kind = types.ConstraintForeignKey
	case codeUnique:
		cv.Kind = types.ConstraintUnique
	case codeCheck:
		cv.Kind = types.ConstraintCheck
	}
	return cv
}

// Open connects to the Postgres database named by dsn.
func Open(ctx context.Context, dsn string) (*sqldb.Store, error) {
	if dsn == "" {
		return nil, types.ErrConnectionStringEmpty
	}
	db, err := sqlOpen(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return sqldb.New(db, Dialect{}), nil
}
