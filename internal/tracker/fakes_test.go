package tracker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/juju/clock/testclock"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

var (
	testNow     = time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	testCreated = time.Date(2026, 10, 15, 9, 29, 0, 0, time.UTC)
)

// Author is the principal of books (store cascade) and notes (restrict).
type Author struct {
	ID    int64   `db:"id"`
	Name  string  `db:"name"`
	Books []*Book
}

// Book is soft-deletable through Hidden and has a store-generated Created.
type Book struct {
	ID       int64      `db:"id"`
	Title    string     `db:"title"`
	Price    int        `db:"price"`
	Discount int        `db:"discount"`
	AuthorID int64      `db:"author_id"`
	Updated  *time.Time `db:"updated"`
	Created  time.Time  `db:"created"`
	Hidden   bool       `db:"hidden"`

	Author *Author
	Cover  *Cover
}

// Cover shares its key with its book.
type Cover struct {
	ID    int64  `db:"id"`
	Color string `db:"color"`
}

type Animal struct {
	ID   int64  `db:"id"`
	Name string `db:"name"`
}

type Dog struct {
	Animal
	Breed string `db:"breed"`
}

// Note has client-generated keys.
type Note struct {
	ID       string `db:"id"`
	Text     string `db:"text"`
	AuthorID int64  `db:"author_id"`
}

func testDescriptors() []types.Descriptor {
	var noteSeq int
	return []types.Descriptor{
		{Entity: (*Author)(nil), Table: "authors", Key: []string{"id"}},
		{
			Entity:    (*Book)(nil),
			Table:     "books",
			Key:       []string{"id"},
			Generated: []string{"created"},
			Defaults: []types.DefaultRule{{
				Column: "updated",
				When:   types.OnInsert | types.OnUpdate,
				Value:  func(now time.Time) any { return now },
			}},
			Checks: []types.CheckConstraint{{
				Name:    "CK_Book_Price",
				Columns: []string{"price", "discount"},
				Valid:   func(v types.Values) bool { return v["price"].(int) > v["discount"].(int) },
			}},
			Filter: []types.Predicate{types.Eq("hidden", false)},
			Relationships: []types.Relationship{{
				Principal:  (*Author)(nil),
				ForeignKey: "author_id",
				OnDelete:   types.DeleteCascadeStore,
				Parent:     func(x any) any { return x.(*Book).Author },
				Children: func(x any) []any {
					var out []any
					for _, b := range x.(*Author).Books {
						out = append(out, b)
					}
					return out
				},
			}},
		},
		{
			Entity:      (*Cover)(nil),
			Table:       "covers",
			Key:         []string{"id"},
			KeyStrategy: types.KeyAssigned,
			Relationships: []types.Relationship{{
				Principal:  (*Book)(nil),
				ForeignKey: "id",
				OnDelete:   types.DeleteCascadeTracked,
				Children: func(x any) []any {
					if c := x.(*Book).Cover; c != nil {
						return []any{c}
					}
					return nil
				},
			}},
		},
		{Entity: (*Animal)(nil), Table: "animals", Key: []string{"id"}},
		{Entity: (*Dog)(nil), Base: (*Animal)(nil), Table: "dogs"},
		{
			Entity:      (*Note)(nil),
			Table:       "notes",
			Key:         []string{"id"},
			KeyStrategy: types.KeyClient,
			NewKey: func() any {
				noteSeq++
				return fmt.Sprintf("n-%d", noteSeq)
			},
			Relationships: []types.Relationship{{
				Name:       "FK_Notes_Authors",
				Principal:  (*Author)(nil),
				ForeignKey: "author_id",
			}},
		},
	}
}

func newTestModel(t *testing.T) *Model {
	t.Helper()
	m := NewModel()
	for _, d := range testDescriptors() {
		require.NoError(t, m.Register(d))
	}
	return m
}

func newTestEngine(t *testing.T, opts ...Option) (*Engine, *fakeStore) {
	t.Helper()
	s := newFakeStore()
	opts = append([]Option{WithClock(testclock.NewClock(testNow))}, opts...)
	e := New(s, newTestModel(t), opts...)
	t.Cleanup(func() { e.Close() })
	return e, s
}

// fakeStore records statements. Inserts return sequential ids for "id" and
// testCreated, formatted as text, for any other returning column.
type fakeStore struct {
	stmts     []types.Statement
	queries   []types.Query
	rows      map[string][]types.Row
	begins    int
	commits   int
	rollbacks int
	nextID    int64

	// fail, when set, may reject a statement.
	fail func(types.Statement) error
	// zeroRows makes updates and deletes affect no rows.
	zeroRows bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string][]types.Row)}
}

func (s *fakeStore) Begin(context.Context) (types.Tx, error) {
	s.begins++
	return &fakeTx{s: s}, nil
}

func (s *fakeStore) Query(_ context.Context, q types.Query) ([]types.Row, error) {
	s.queries = append(s.queries, q)
	return s.rows[q.Table], nil
}

func (s *fakeStore) Close() error { return nil }

type fakeTx struct {
	s *fakeStore
}

func (tx *fakeTx) Exec(_ context.Context, stmt types.Statement) (types.Result, error) {
	s := tx.s
	s.stmts = append(s.stmts, stmt)
	if s.fail != nil {
		if err := s.fail(stmt); err != nil {
			return types.Result{}, err
		}
	}
	if stmt.Op != types.OpInsert {
		if s.zeroRows {
			return types.Result{}, nil
		}
		return types.Result{RowsAffected: 1}, nil
	}
	res := types.Result{RowsAffected: 1}
	for _, col := range stmt.Returning {
		if col == "id" {
			s.nextID++
			res.Returned = append(res.Returned, s.nextID)
			continue
		}
		res.Returned = append(res.Returned, testCreated.Format(time.RFC3339))
	}
	return res, nil
}

func (tx *fakeTx) Commit() error {
	tx.s.commits++
	return nil
}

func (tx *fakeTx) Rollback() error {
	tx.s.rollbacks++
	return nil
}

// ops summarizes statements as "op table".
func (s *fakeStore) ops() []string {
	out := make([]string, len(s.stmts))
	for i, st := range s.stmts {
		out[i] = string(st.Op) + " " + st.Table
	}
	return out
}

// valueOf returns the value a statement writes to col.
func valueOf(t *testing.T, stmt types.Statement, col string) any {
	t.Helper()
	for i, c := range stmt.Columns {
		if c == col {
			return stmt.Values[i]
		}
	}
	t.Fatalf("statement %s %s does not write %s", stmt.Op, stmt.Table, col)
	return nil
}
