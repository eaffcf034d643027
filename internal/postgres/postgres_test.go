package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tracker/internal/sqldb"
	"github.com/mesh-intelligence/tracker/pkg/types"
)

func TestPlaceholder(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, "$1", d.Placeholder(1))
	assert.Equal(t, "$12", d.Placeholder(12))
	assert.Equal(t, types.BackendPostgres, d.Name())

	sql, _, err := sqldb.RenderStatement(d, types.Statement{
		Op: types.OpUpdate, Table: "products",
		Columns: []string{"name"}, Values: []any{"Pen"},
		Key: []string{"id"}, KeyValues: []any{int64(1)},
	})
	require.NoError(t, err)
	assert.Equal(t, `UPDATE "products" SET "name" = $1 WHERE "id" = $2`, sql)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name   string
		pe     *pgconn.PgError
		kind   types.ConstraintKind
		table  string
		column string
	}{
		{
			name:  "check",
			pe:    &pgconn.PgError{Code: "23514", ConstraintName: "CK_Product_Price", TableName: "products"},
			kind:  types.ConstraintCheck,
			table: "products",
		},
		{
			name:  "foreign key",
			pe:    &pgconn.PgError{Code: "23503", ConstraintName: "FK_Students_Teachers"},
			kind:  types.ConstraintForeignKey,
			table: "statement_table",
		},
		{
			name:  "unique",
			pe:    &pgconn.PgError{Code: "23505", ConstraintName: "ix_categories_name"},
			kind:  types.ConstraintUnique,
			table: "statement_table",
		},
		{
			name:   "not null",
			pe:     &pgconn.PgError{Code: "23502", TableName: "people", ColumnName: "first_name"},
			kind:   types.ConstraintNotNull,
			table:  "people",
			column: "first_name",
		},
		{
			name:  "exclusion",
			pe:    &pgconn.PgError{Code: "23P01"},
			kind:  types.ConstraintOther,
			table: "statement_table",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Dialect{}.MapError(fmt.Errorf("exec: %w", tt.pe), "statement_table")
			assert.ErrorIs(t, err, types.ErrConstraintViolation)
			var cv *types.ConstraintViolationError
			require.ErrorAs(t, err, &cv)
			assert.Equal(t, tt.kind, cv.Kind)
			assert.Equal(t, tt.table, cv.Table)
			assert.Equal(t, tt.column, cv.Column)
			assert.Equal(t, tt.pe.ConstraintName, cv.Constraint)

			var pe *pgconn.PgError
			assert.ErrorAs(t, err, &pe)
		})
	}

	other := &pgconn.PgError{Code: "40001"}
	assert.Same(t, other, Dialect{}.MapError(other, "products"))
	plain := errors.New("boom")
	assert.Same(t, plain, Dialect{}.MapError(plain, "products"))
}

func TestOpen(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.ErrorIs(t, err, types.ErrConnectionStringEmpty)

	openErr := errors.New("bad driver")
	sqlOpen = func(string, string) (*sql.DB, error) { return nil, openErr }
	t.Cleanup(func() { sqlOpen = sql.Open })
	_, err = Open(context.Background(), "postgres://localhost/tracker")
	assert.ErrorIs(t, err, openErr)
}
