package tracker

import (
	"context"
	"fmt"
	"reflect"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Query loads the entities of the prototype's type that match preds and the
// type's filter, and tracks them as unchanged. A row whose key matches a
// tracked entity yields that instance with its local edits. A row tracked
// as a subtype yields the subtype's embedded base struct, and a row marked
// removed is left out. Querying a base type otherwise returns base entities.
func (e *Engine) Query(ctx context.Context, prototype any, preds ...types.Predicate) ([]any, error) {
	et, err := e.model.typeOf(prototype)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, et, append(append([]types.Predicate(nil), et.filter...), preds...))
}

// QueryUnfiltered is Query without the type's filter.
func (e *Engine) QueryUnfiltered(ctx context.Context, prototype any, preds ...types.Predicate) ([]any, error) {
	et, err := e.model.typeOf(prototype)
	if err != nil {
		return nil, err
	}
	return e.query(ctx, et, preds)
}

// Select is Query typed by its result.
func Select[T any](ctx context.Context, e *Engine, preds ...types.Predicate) ([]*T, error) {
	found, err := e.Query(ctx, (*T)(nil), preds...)
	if err != nil {
		return nil, err
	}
	return typed[T](found), nil
}

// SelectUnfiltered is QueryUnfiltered typed by its result.
func SelectUnfiltered[T any](ctx context.Context, e *Engine, preds ...types.Predicate) ([]*T, error) {
	found, err := e.QueryUnfiltered(ctx, (*T)(nil), preds...)
	if err != nil {
		return nil, err
	}
	return typed[T](found), nil
}

func typed[T any](found []any) []*T {
	out := make([]*T, len(found))
	for i, x := range found {
		out[i] = x.(*T)
	}
	return out
}

func (e *Engine) query(ctx context.Context, et *entityType, preds []types.Predicate) ([]any, error) {
	q, err := buildQuery(et, preds)
	if err != nil {
		return nil, err
	}
	rows, err := e.store.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", et.desc.Table, err)
	}

	results := make([]any, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(et.columns) {
			return nil, fmt.Errorf("query %s: row has %d values, want %d", et.desc.Table, len(row), len(et.columns))
		}
		key := make([]any, len(et.key))
		ptr := reflect.New(et.typ)
		for i, c := range et.columns {
			if err := c.set(ptr.Elem(), row[i]); err != nil {
				return nil, fmt.Errorf("query %s: %w", et.desc.Table, err)
			}
		}
		for i, c := range et.key {
			key[i] = c.get(ptr.Elem())
		}
		if view, tracked := e.trackedByKey(et, key); tracked != nil {
			if tracked.state != types.StateDeleted {
				results = append(results, view)
			}
			continue
		}
		en := e.newEntry(ptr.Interface(), et, ptr.Elem(), types.StateUnchanged)
		en.snapshot = et.values(en.value)
		results = append(results, en.entity)
	}
	e.logger.Debugf("query %s: %d rows", et.desc.Table, len(rows))
	return results, nil
}

// trackedByKey returns the tracked entry of type et, or of a subtype of et,
// whose persisted key is key, together with its value as an et. Added
// entities have no persisted key and never match.
func (e *Engine) trackedByKey(et *entityType, key []any) (any, *Entry) {
	for _, en := range e.entries {
		if en.snapshot == nil || !en.et.isA(et) || !keysEqual(en.snapshotKey(), key) {
			continue
		}
		v := en.value
		for t := en.et; t != et; t = t.base {
			v = v.FieldByIndex(t.baseIdx)
		}
		return v.Addr().Interface(), en
	}
	return nil, nil
}

// buildQuery selects every column of et, joining the subtype tables to the
// root table on the key.
func buildQuery(et *entityType, preds []types.Predicate) (types.Query, error) {
	root := et.tables[0].name
	q := types.Query{Table: root}
	keyNames := make([]string, len(et.key))
	for i, c := range et.key {
		keyNames[i] = c.name
		q.OrderBy = append(q.OrderBy, types.ColumnRef{Table: root, Column: c.name})
	}
	for _, tm := range et.tables[1:] {
		q.Joins = append(q.Joins, types.Join{Table: tm.name, Key: keyNames})
	}
	for _, c := range et.columns {
		table := c.table
		if c.key {
			table = root
		}
		q.Columns = append(q.Columns, types.ColumnRef{Table: table, Column: c.name})
	}
	for _, p := range preds {
		c, ok := et.byName[p.Column]
		if !ok {
			return types.Query{}, fmt.Errorf("%w: %s.%s", types.ErrUnknownColumn, et.desc.Table, p.Column)
		}
		table := c.table
		if c.key {
			table = root
		}
		q.Where = append(q.Where, types.Condition{Table: table, Predicate: p})
	}
	return q, nil
}
