// Package sqlite implements the SQLite store: the dialect, the opener, and
// the mapping of SQLite constraint result codes to constraint violations.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mesh-intelligence/tracker/internal/sqldb"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// Dialect is the SQLite sqldb.Dialect.
type Dialect struct{}

var _ sqldb.Dialect = Dialect{}

// Name returns "sqlite".
func (Dialect) Name() string { return types.BackendSQLite }

// Placeholder returns "?".
func (Dialect) Placeholder(int) string { return "?" }

// Bind stores times as UTC RFC 3339 text so they sort and compare lexically.
func (Dialect) Bind(v any) any {
	switch t := v.(type) {
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	case *time.Time:
		if t == nil {
			return nil
		}
		return t.UTC().Format(time.RFC3339Nano)
	}
	return v
}

// MapError converts SQLITE_CONSTRAINT errors.
func (Dialect) MapError(err error, table string) error {
	var se *sqlite.Error
	if !errors.As(err, &se) || se.Code()&0xff != sqlite3.SQLITE_CONSTRAINT {
		return err
	}
	cv := &types.ConstraintViolationError{Table: table, Kind: types.ConstraintOther, Err: err}
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		cv.Kind = types.ConstraintCheck
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		cv.Kind = types.ConstraintForeignKey
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		cv.Kind = types.ConstraintUnique
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		cv.Kind = types.ConstraintNotNull
	}
	detail := constraintDetail(se.Error())
	switch cv.Kind {
	case types.ConstraintCheck:
		cv.Constraint = detail
	case types.ConstraintUnique, types.ConstraintNotNull:
		// detail is "table.column[, table.column]"
		first, _, _ := strings.Cut(detail, ",")
		if tbl, col, ok := strings.Cut(strings.TrimSpace(first), "."); ok {
			cv.Table, cv.Column = tbl, col
		}
	}
	return cv
}

// constraintDetail extracts the text after "constraint failed: " in a
// SQLite message, without the trailing result code.
func constraintDetail(msg string) string {
	const marker = "constraint failed: "
	i := strings.LastIndex(msg, marker)
	if i < 0 {
		return ""
	}
	detail := msg[i+len(marker):]
	if j := strings.LastIndex(detail, " ("); j >= 0 {
		if _, err := strconv.Atoi(strings.TrimSuffix(detail[j+2:], ")")); err == nil {
			detail = detail[:j]
		}
	}
	return strings.TrimSpace(detail)
}

// DSN builds a connection string for the database file at path with foreign
// key enforcement on.
func DSN(path string) string {
	return path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// withForeignKeys adds the foreign_keys pragma to dsn unless it already
// sets one.
func withForeignKeys(dsn string) string {
	_, query, ok := strings.Cut(dsn, "?")
	if strings.Contains(query, "foreign_keys") {
		return dsn
	}
	if !ok {
		return dsn + "?_pragma=foreign_keys(1)"
	}
	if query == "" {
		return dsn + "_pragma=foreign_keys(1)"
	}
	return dsn + "&_pragma=foreign_keys(1)"
}

// Open opens the SQLite database named by dsn. A bare file path gets its
// parent directory created and the default pragmas. Every connection,
// in-memory ones and those with their own parameters included, enforces
// foreign keys.
func Open(dsn string) (*sqldb.Store, error) {
	if dsn == "" {
		return nil, types.ErrConnectionStringEmpty
	}
	switch {
	case dsn == ":memory:":
	case !strings.Contains(dsn, "?") && !strings.HasPrefix(dsn, "file:"):
		if err := os.MkdirAll(filepath.Dir(dsn), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		dsn = DSN(dsn)
	}
	dsn = withForeignKeys(dsn)
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps pragmas and in-memory databases consistent.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	return sqldb.New(db, Dialect{}), nil
}
