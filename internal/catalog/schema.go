package catalog

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// SQLite table DDL in dependency order.
const (
	sqliteCategories = `CREATE TABLE IF NOT EXISTS categories (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL
)`

	sqliteProducts = `CREATE TABLE IF NOT EXISTS products (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    name TEXT NOT NULL,
    price NUMERIC NOT NULL,
    discount_price NUMERIC NOT NULL DEFAULT 0,
    created_date TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now')),
    updated_date TEXT,
    is_deleted INTEGER NOT NULL DEFAULT 0,
    category_id INTEGER NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    CONSTRAINT CK_Product_Price CHECK (price > discount_price)
)`

	sqliteProductFeatures = `CREATE TABLE IF NOT EXISTS product_features (
    id INTEGER PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    color TEXT NOT NULL
)`

	sqlitePersons = `CREATE TABLE IF NOT EXISTS persons (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    first_name TEXT NOT NULL,
    last_name TEXT NOT NULL,
    CONSTRAINT CK_Person_FirstName CHECK (length(first_name) <= 50)
)`

	sqliteManagers = `CREATE TABLE IF NOT EXISTS managers (
    id INTEGER PRIMARY KEY REFERENCES persons(id) ON DELETE CASCADE,
    grade INTEGER NOT NULL
)`

	sqliteEmployees = `CREATE TABLE IF NOT EXISTS employees (
    id INTEGER PRIMARY KEY REFERENCES persons(id) ON DELETE CASCADE,
    salary NUMERIC NOT NULL
)`

	sqliteTeachers = `CREATE TABLE IF NOT EXISTS teachers (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL
)`

	sqliteStudents = `CREATE TABLE IF NOT EXISTS students (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    teacher_id TEXT NOT NULL REFERENCES teachers(id)
)`

	sqliteIdxProductsName = `CREATE INDEX IF NOT EXISTS ix_products_name ON products(name, price, created_date)`
	sqliteIdxStudents     = `CREATE INDEX IF NOT EXISTS ix_students_teacher ON students(teacher_id)`
)

// Postgres table DDL in dependency order.
const (
	pgCategories = `CREATE TABLE IF NOT EXISTS categories (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL
)`

	pgProducts = `CREATE TABLE IF NOT EXISTS products (
    id BIGSERIAL PRIMARY KEY,
    name TEXT NOT NULL,
    price NUMERIC(18,2) NOT NULL,
    discount_price NUMERIC(18,2) NOT NULL DEFAULT 0,
    created_date TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_date TIMESTAMPTZ,
    is_deleted BOOLEAN NOT NULL DEFAULT FALSE,
    category_id BIGINT NOT NULL REFERENCES categories(id) ON DELETE CASCADE,
    CONSTRAINT "CK_Product_Price" CHECK (price > discount_price)
)`

	pgProductFeatures = `CREATE TABLE IF NOT EXISTS product_features (
    id BIGINT PRIMARY KEY REFERENCES products(id) ON DELETE CASCADE,
    width INTEGER NOT NULL,
    height INTEGER NOT NULL,
    color TEXT NOT NULL
)`

	pgPersons = `CREATE TABLE IF NOT EXISTS persons (
    id BIGSERIAL PRIMARY KEY,
    first_name VARCHAR(50) NOT NULL,
    last_name TEXT NOT NULL
)`

	pgManagers = `CREATE TABLE IF NOT EXISTS managers (
    id BIGINT PRIMARY KEY REFERENCES persons(id) ON DELETE CASCADE,
    grade INTEGER NOT NULL
)`

	pgEmployees = `CREATE TABLE IF NOT EXISTS employees (
    id BIGINT PRIMARY KEY REFERENCES persons(id) ON DELETE CASCADE,
    salary NUMERIC(18,2) NOT NULL
)`

	pgTeachers = `CREATE TABLE IF NOT EXISTS teachers (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL
)`

	pgStudents = `CREATE TABLE IF NOT EXISTS students (
    id UUID PRIMARY KEY,
    name TEXT NOT NULL,
    teacher_id UUID NOT NULL REFERENCES teachers(id)
)`

	pgIdxProductsName = `CREATE INDEX IF NOT EXISTS ix_products_name ON products(name) INCLUDE (price, created_date)`
	pgIdxStudents     = `CREATE INDEX IF NOT EXISTS ix_students_teacher ON students(teacher_id)`
)

var sqliteSchema = []string{
	sqliteCategories,
	sqliteProducts,
	sqliteProductFeatures,
	sqlitePersons,
	sqliteManagers,
	sqliteEmployees,
	sqliteTeachers,
	sqliteStudents,
	sqliteIdxProductsName,
	sqliteIdxStudents,
}

var postgresSchema = []string{
	pgCategories,
	pgProducts,
	pgProductFeatures,
	pgPersons,
	pgManagers,
	pgEmployees,
	pgTeachers,
	pgStudents,
	pgIdxProductsName,
	pgIdxStudents,
}

// Schema returns the DDL statements of the catalog for backend.
func Schema(backend string) ([]string, error) {
	switch backend {
	case types.BackendSQLite:
		return sqliteSchema, nil
	case types.BackendPostgres:
		return postgresSchema, nil
	default:
		return nil, fmt.Errorf("%w: %q", types.ErrBackendUnknown, backend)
	}
}

// Migrate creates the catalog tables and indexes that do not exist yet, in
// one transaction.
func Migrate(ctx context.Context, db *sql.DB, backend string) error {
	ddl, err := Schema(backend)
	if err != nil {
		return err
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range ddl {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration: %w", err)
	}
	return nil
}
