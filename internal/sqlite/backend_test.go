package sqlite

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tracker/internal/sqldb"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

const testSchema = `
CREATE TABLE groups (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	code TEXT NOT NULL UNIQUE
);
CREATE TABLE items (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	name     TEXT NOT NULL,
	qty      INTEGER NOT NULL CONSTRAINT CK_Item_Qty CHECK (qty >= 0),
	group_id INTEGER NOT NULL REFERENCES groups(id) ON DELETE CASCADE,
	created  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	seen     TEXT
);`

func openTestStore(t *testing.T) *sqldb.Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	_, err = s.DB().Exec(testSchema)
	require.NoError(t, err)
	return s
}

func TestOpen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dir")
	s, err := Open(filepath.Join(dir, "tracker.db"))
	require.NoError(t, err)
	defer s.Close()

	_, err = os.Stat(filepath.Join(dir, "tracker.db"))
	assert.NoError(t, err)
	assert.Equal(t, types.BackendSQLite, s.Dialect().Name())

	var fk int
	require.NoError(t, s.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk))
	assert.Equal(t, 1, fk)

	_, err = Open("")
	assert.ErrorIs(t, err, types.ErrConnectionStringEmpty)

	mem, err := Open(":memory:")
	require.NoError(t, err)
	mem.Close()
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "/tmp/x.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", DSN("/tmp/x.db"))
}

func TestWithForeignKeys(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{":memory:", ":memory:?_pragma=foreign_keys(1)"},
		{"/tmp/x.db?", "/tmp/x.db?_pragma=foreign_keys(1)"},
		{"/tmp/x.db?_pragma=busy_timeout(100)", "/tmp/x.db?_pragma=busy_timeout(100)&_pragma=foreign_keys(1)"},
		{"/tmp/x.db?_pragma=foreign_keys(0)", "/tmp/x.db?_pragma=foreign_keys(0)"},
		{DSN("/tmp/x.db"), DSN("/tmp/x.db")},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.want, withForeignKeys(tt.dsn))
		})
	}
}

func TestOpenEnforcesForeignKeys(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		dsn  string
	}{
		{"in memory", ":memory:"},
		{"own parameters", filepath.Join(dir, "params.db") + "?_pragma=busy_timeout(100)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := Open(tt.dsn)
			require.NoError(t, err)
			defer s.Close()
			_, err = s.DB().Exec(testSchema)
			require.NoError(t, err)

			_, err = s.DB().Exec(`INSERT INTO groups (code) VALUES ('a')`)
			require.NoError(t, err)
			_, err = s.DB().Exec(`INSERT INTO items (name, qty, group_id) VALUES ('pen', 1, 1)`)
			require.NoError(t, err)
			_, err = s.DB().Exec(`DELETE FROM groups WHERE id = 1`)
			require.NoError(t, err)

			var items int
			require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM items`).Scan(&items))
			assert.Zero(t, items, "delete cascades to items")

			_, err = s.DB().Exec(`INSERT INTO items (name, qty, group_id) VALUES ('orphan', 1, 42)`)
			assert.Error(t, err, "missing principal is rejected")
		})
	}
}

func TestBind(t *testing.T) {
	local := time.Date(2026, 10, 15, 11, 30, 0, 0, time.FixedZone("CEST", 2*3600))
	var nilTime *time.Time

	tests := []struct {
		name string
		in   any
		want any
	}{
		{"time is utc text", local, "2026-10-15T09:30:00Z"},
		{"time pointer", &local, "2026-10-15T09:30:00Z"},
		{"nil time pointer", nilTime, nil},
		{"other values pass through", int64(4), int64(4)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Dialect{}.Bind(tt.in))
		})
	}
}

func TestConstraintDetail(t *testing.T) {
	tests := []struct {
		msg  string
		want string
	}{
		{"CHECK constraint failed: CK_Item_Qty (275)", "CK_Item_Qty"},
		{"constraint failed: UNIQUE constraint failed: groups.code (2067)", "groups.code"},
		{"NOT NULL constraint failed: items.name", "items.name"},
		{"FOREIGN KEY constraint failed (787)", ""},
		{"disk I/O error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			assert.Equal(t, tt.want, constraintDetail(tt.msg))
		})
	}
}

func TestMapError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, err := s.DB().Exec(`INSERT INTO groups (code) VALUES ('a')`)
	require.NoError(t, err)

	tests := []struct {
		name       string
		stmt       types.Statement
		kind       types.ConstraintKind
		table      string
		column     string
		constraint string
	}{
		{
			name: "check",
			stmt: types.Statement{Op: types.OpInsert, Table: "items",
				Columns: []string{"name", "qty", "group_id"}, Values: []any{"x", -1, 1}},
			kind:       types.ConstraintCheck,
			table:      "items",
			constraint: "CK_Item_Qty",
		},
		{
			name: "foreign key",
			stmt: types.Statement{Op: types.OpInsert, Table: "items",
				Columns: []string{"name", "qty", "group_id"}, Values: []any{"x", 1, 99}},
			kind:  types.ConstraintForeignKey,
			table: "items",
		},
		{
			name: "unique",
			stmt: types.Statement{Op: types.OpInsert, Table: "groups",
				Columns: []string{"code"}, Values: []any{"a"}},
			kind:   types.ConstraintUnique,
			table:  "groups",
			column: "code",
		},
		{
			name: "not null",
			stmt: types.Statement{Op: types.OpInsert, Table: "items",
				Columns: []string{"name", "qty", "group_id"}, Values: []any{nil, 1, 1}},
			kind:   types.ConstraintNotNull,
			table:  "items",
			column: "name",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx, err := s.Begin(ctx)
			require.NoError(t, err)
			defer tx.Rollback()

			_, err = tx.Exec(ctx, tt.stmt)
			require.Error(t, err)
			assert.ErrorIs(t, err, types.ErrConstraintViolation)
			var cv *types.ConstraintViolationError
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, tt.kind, cv.Kind)
			assert.Equal(t, tt.table, cv.Table)
			assert.Equal(t, tt.column, cv.Column)
			assert.Equal(t, tt.constraint, cv.Constraint)
		})
	}

	plain := errors.New("boom")
	assert.Same(t, plain, Dialect{}.MapError(plain, "items"))
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	seen := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	res, err := tx.Exec(ctx, types.Statement{
		Op: types.OpInsert, Table: "groups",
		Columns: []string{"code"}, Values: []any{"g"},
		Returning: []string{"id"},
	})
	require.NoError(t, err)
	require.Len(t, res.Returned, 1)
	groupID := res.Returned[0]

	res, err = tx.Exec(ctx, types.Statement{
		Op: types.OpInsert, Table: "items",
		Columns: []string{"name", "qty", "group_id", "seen"}, Values: []any{"bolt", 3, groupID, seen},
		Returning: []string{"id", "created"},
	})
	require.NoError(t, err)
	require.Len(t, res.Returned, 2)
	assert.EqualValues(t, 1, res.Returned[0])
	assert.NotEmpty(t, res.Returned[1])

	res, err = tx.Exec(ctx, types.Statement{
		Op: types.OpUpdate, Table: "items",
		Columns: []string{"qty"}, Values: []any{4},
		Key: []string{"id"}, KeyValues: []any{int64(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.RowsAffected)

	res, err = tx.Exec(ctx, types.Statement{
		Op: types.OpDelete, Table: "items",
		Key: []string{"id"}, KeyValues: []any{int64(42)},
	})
	require.NoError(t, err)
	assert.Zero(t, res.RowsAffected)
	require.NoError(t, tx.Commit())

	rows, err := s.Query(ctx, types.Query{
		Table: "items",
		Columns: []types.ColumnRef{
			{Table: "items", Column: "id"},
			{Table: "items", Column: "qty"},
			{Table: "items", Column: "seen"},
		},
		Where:   []types.Condition{{Table: "items", Predicate: types.Eq("name", "bolt")}},
		OrderBy: []types.ColumnRef{{Table: "items", Column: "id"}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.EqualValues(t, 4, rows[0][1])
	assert.Equal(t, "2026-10-15T09:30:00Z", rows[0][2])
}

func TestStoreRollback(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	tx, err := s.Begin(ctx)
	require.NoError(t, err)
	_, err = tx.Exec(ctx, types.Statement{Op: types.OpInsert, Table: "groups", Columns: []string{"code"}, Values: []any{"g"}})
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())

	var n int
	require.NoError(t, s.DB().QueryRow(`SELECT COUNT(*) FROM groups`).Scan(&n))
	assert.Zero(t, n)
}
