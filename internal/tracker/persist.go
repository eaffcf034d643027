package tracker

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

var errKeyChanged = errors.New("key columns cannot change")

// Persist reconciles the store with the working set and returns the number
// of entities written. All statements run in one transaction: on any error
// the transaction is rolled back and the working set is left as it was, so
// the caller may fix the data and call Persist again.
//
// Inserts run principal and base tables first; deletes run dependents first.
// Updates write only the columns that differ from the snapshot.
func (e *Engine) Persist(ctx context.Context) (n int, err error) {
	start := e.clock.Now()
	defer func() {
		e.metrics.observePersist(n, err, e.clock.Now().Sub(start))
	}()

	e.DetectChanges()
	added, modified, deleted := e.partition()
	total := len(added) + len(modified) + len(deleted)
	if total == 0 {
		e.logger.Debugf("persist: no changes")
		return 0, nil
	}

	var undo undoLog
	if err := e.prepare(added, modified, deleted, &undo); err != nil {
		undo.revert()
		return 0, err
	}
	idx := e.links()

	tx, err := e.store.Begin(ctx)
	if err != nil {
		undo.revert()
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	fail := func(err error) (int, error) {
		if rbErr := tx.Rollback(); rbErr != nil {
			e.logger.Errorf("rollback: %v", rbErr)
		}
		undo.revert()
		e.logger.Debugf("persist rolled back: %v", err)
		return 0, err
	}

	for _, en := range added {
		if err := e.insert(ctx, tx, en, idx, &undo); err != nil {
			return fail(err)
		}
	}
	for _, en := range modified {
		if err := e.update(ctx, tx, en, idx, &undo); err != nil {
			return fail(err)
		}
	}
	for _, en := range deleted {
		if err := e.remove(ctx, tx, en); err != nil {
			return fail(err)
		}
	}
	if err := tx.Commit(); err != nil {
		undo.revert()
		return 0, fmt.Errorf("commit: %w", err)
	}

	e.accept(added, modified, deleted, idx)
	e.logger.Infof("persisted %d entities (%d added, %d modified, %d deleted)",
		total, len(added), len(modified), len(deleted))
	return total, nil
}

// partition splits the working set by state. Added entities are ordered
// principals first, deleted entities dependents first.
func (e *Engine) partition() (added, modified, deleted []*Entry) {
	for _, en := range e.Entries() {
		switch en.state {
		case types.StateAdded:
			added = append(added, en)
		case types.StateModified:
			modified = append(modified, en)
		case types.StateDeleted:
			deleted = append(deleted, en)
		}
	}
	byRank := func(a, b *Entry) int { return a.et.rank - b.et.rank }
	slices.SortStableFunc(added, byRank)
	slices.SortStableFunc(modified, byRank)
	slices.SortStableFunc(deleted, func(a, b *Entry) int { return b.et.rank - a.et.rank })
	return added, modified, deleted
}

// prepare applies default rules and validates the batch. Default values are
// recorded in undo so that a rejected batch leaves entities untouched.
func (e *Engine) prepare(added, modified, deleted []*Entry, undo *undoLog) error {
	now := e.clock.Now()
	for _, en := range added {
		if err := e.applyDefaults(en, types.OnInsert, now, undo); err != nil {
			return err
		}
	}
	for _, en := range modified {
		if err := e.applyDefaults(en, types.OnUpdate, now, undo); err != nil {
			return err
		}
	}
	return e.validate(added, modified, deleted, e.links())
}

func (e *Engine) applyDefaults(en *Entry, when types.Trigger, now time.Time, undo *undoLog) error {
	for _, rule := range en.et.defaults {
		if rule.When&when == 0 {
			continue
		}
		c := en.et.byName[rule.Column]
		if rule.IfZero && !c.isZero(en.value) {
			continue
		}
		if err := undo.set(en, c, rule.Value(now)); err != nil {
			return fmt.Errorf("default for %T: %w", en.entity, err)
		}
	}
	return nil
}

// validate checks every rule that can be decided without the store.
func (e *Engine) validate(added, modified, deleted []*Entry, idx linkIndex) error {
	for _, en := range slices.Concat(added, modified) {
		vals := en.Current()
		for _, ck := range en.et.checks {
			if ck.Valid(vals) {
				continue
			}
			col := ck.Columns[0]
			return &types.ConstraintViolationError{
				Entity:     en.entity,
				Table:      en.et.tableOf(col),
				Column:     col,
				Constraint: ck.Name,
				Kind:       types.ConstraintCheck,
			}
		}
	}

	for _, en := range modified {
		if col := en.keyChanged(); col != "" {
			return &types.ConstraintViolationError{
				Entity: en.entity,
				Table:  en.et.tableOf(col),
				Column: col,
				Kind:   types.ConstraintOther,
				Err:    errKeyChanged,
			}
		}
	}

	for _, en := range modified {
		if err := e.validatePrincipals(en, idx); err != nil {
			return err
		}
	}
	for _, en := range added {
		if err := e.validatePrincipals(en, idx); err != nil {
			return err
		}
		if en.et.strategy == types.KeyAssigned && en.et.keyIsZero(en.value) && !e.keyFromPrincipal(en) {
			return fmt.Errorf("%w: %T", types.ErrMissingKey, en.entity)
		}
	}

	for _, en := range deleted {
		for _, r := range en.et.dependentRelations() {
			if r.rel.OnDelete != types.DeleteRestrict {
				continue
			}
			for _, d := range e.dependentsOf(en, r, idx) {
				if d.state == types.StateDeleted {
					continue
				}
				return &types.ConstraintViolationError{
					Entity:     en.entity,
					Table:      r.dependent.desc.Table,
					Column:     r.fk.name,
					Constraint: r.name(),
					Kind:       types.ConstraintRestrict,
					Err:        fmt.Errorf("tracked dependent %T is %s", d.entity, d.state),
				}
			}
		}
	}
	return nil
}

// validatePrincipals checks that every required foreign key of an added or
// modified entity is set or will be set from a principal inserted earlier.
func (e *Engine) validatePrincipals(en *Entry, idx linkIndex) error {
	for _, r := range en.et.relations {
		if r.rel.Optional {
			continue
		}
		violation := &types.ConstraintViolationError{
			Entity:     en.entity,
			Table:      r.fk.table,
			Column:     r.fk.name,
			Constraint: r.name(),
			Kind:       types.ConstraintPrincipal,
		}
		p := e.principalOf(en, r.origin, idx)
		if p == nil {
			if r.fk.isZero(en.value) {
				violation.Err = errors.New("no principal")
				return violation
			}
			continue
		}
		if _, set, err := e.principalKey(p); err != nil {
			return err
		} else if set {
			continue
		}
		pe, tracked := e.tracked(p)
		if !tracked || pe.state != types.StateAdded {
			violation.Err = fmt.Errorf("principal %T has no key and is not being added", p)
			return violation
		}
	}
	return nil
}

// keyFromPrincipal reports whether a key column doubles as a foreign key.
func (e *Engine) keyFromPrincipal(en *Entry) bool {
	for _, r := range en.et.relations {
		if r.fk.key {
			return true
		}
	}
	return false
}

func (e *Engine) insert(ctx context.Context, tx types.Tx, en *Entry, idx linkIndex, undo *undoLog) error {
	if err := e.fixup(en, idx, undo); err != nil {
		return err
	}
	if en.et.strategy == types.KeyClient && en.et.keyIsZero(en.value) {
		if err := undo.set(en, en.et.key[0], en.et.desc.NewKey()); err != nil {
			return err
		}
	}
	if en.et.strategy != types.KeyAuto && en.et.keyIsZero(en.value) {
		return fmt.Errorf("%w: %T", types.ErrMissingKey, en.entity)
	}

	for i, tm := range en.et.tables {
		stmt := types.Statement{Op: types.OpInsert, Table: tm.name}
		var returned []*column
		for _, c := range tm.columns {
			if i == 0 && c.key && en.et.strategy == types.KeyAuto {
				stmt.Returning = append(stmt.Returning, c.name)
				returned = append(returned, c)
				continue
			}
			if c.generated && c.isZero(en.value) {
				stmt.Returning = append(stmt.Returning, c.name)
				returned = append(returned, c)
				continue
			}
			stmt.Columns = append(stmt.Columns, c.name)
			stmt.Values = append(stmt.Values, c.get(en.value))
		}
		res, err := e.exec(ctx, tx, en, stmt)
		if err != nil {
			return err
		}
		if len(res.Returned) != len(returned) {
			return fmt.Errorf("insert into %s: store returned %d values, want %d", tm.name, len(res.Returned), len(returned))
		}
		for j, c := range returned {
			if err := undo.set(en, c, res.Returned[j]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (e *Engine) update(ctx context.Context, tx types.Tx, en *Entry, idx linkIndex, undo *undoLog) error {
	if err := e.fixup(en, idx, undo); err != nil {
		return err
	}
	changed := make(map[string]bool)
	for _, col := range en.ChangedColumns() {
		changed[col] = true
	}

	for _, tm := range en.et.tables {
		stmt := types.Statement{Op: types.OpUpdate, Table: tm.name}
		for _, c := range tm.columns {
			if c.key {
				stmt.Key = append(stmt.Key, c.name)
				stmt.KeyValues = append(stmt.KeyValues, en.snapshot[c.name])
				continue
			}
			if en.forced || changed[c.name] {
				stmt.Columns = append(stmt.Columns, c.name)
				stmt.Values = append(stmt.Values, c.get(en.value))
			}
		}
		if len(stmt.Columns) == 0 {
			continue
		}
		res, err := e.exec(ctx, tx, en, stmt)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return &types.ConcurrencyConflictError{Entity: en.entity, Table: tm.name, Op: types.OpUpdate}
		}
	}
	return nil
}

func (e *Engine) remove(ctx context.Context, tx types.Tx, en *Entry) error {
	for i := len(en.et.tables) - 1; i >= 0; i-- {
		tm := en.et.tables[i]
		stmt := types.Statement{Op: types.OpDelete, Table: tm.name}
		for _, c := range en.et.key {
			stmt.Key = append(stmt.Key, c.name)
			stmt.KeyValues = append(stmt.KeyValues, en.snapshot[c.name])
		}
		res, err := e.exec(ctx, tx, en, stmt)
		if err != nil {
			return err
		}
		if res.RowsAffected == 0 {
			return &types.ConcurrencyConflictError{Entity: en.entity, Table: tm.name, Op: types.OpDelete}
		}
	}
	return nil
}

// exec runs one statement and attributes store constraint failures to the
// entity being written.
func (e *Engine) exec(ctx context.Context, tx types.Tx, en *Entry, stmt types.Statement) (types.Result, error) {
	e.logger.Debugf("%s %s columns=%v key=%v", stmt.Op, stmt.Table, stmt.Columns, stmt.KeyValues)
	res, err := tx.Exec(ctx, stmt)
	e.metrics.observeStatement(stmt, err)
	if err != nil {
		var cv *types.ConstraintViolationError
		if errors.As(err, &cv) {
			cv.Entity = en.entity
			return res, cv
		}
		return res, fmt.Errorf("%s %s for %T: %w", stmt.Op, stmt.Table, en.entity, err)
	}
	return res, nil
}

// accept moves the working set to its post-commit state.
func (e *Engine) accept(added, modified, deleted []*Entry, idx linkIndex) {
	for _, en := range added {
		en.accept()
	}
	for _, en := range modified {
		en.accept()
	}
	var gone []*Entry
	for _, en := range deleted {
		for _, r := range en.et.dependentRelations() {
			if r.rel.OnDelete == types.DeleteCascadeStore {
				gone = append(gone, e.cascadedByStore(en, r, idx)...)
			}
		}
	}
	for _, en := range deleted {
		delete(e.entries, en.entity)
		en.state = types.StateDetached
	}
	for _, en := range gone {
		if _, ok := e.entries[en.entity]; ok {
			delete(e.entries, en.entity)
			en.state = types.StateDetached
			e.logger.Tracef("detach %T removed by store cascade", en.entity)
		}
	}
}

// cascadedByStore returns the tracked dependents the store deleted along
// with principal p. Below the first level every relation counts: a row the
// store cascaded away cannot have kept dependents of its own.
func (e *Engine) cascadedByStore(p *Entry, o *relation, idx linkIndex) []*Entry {
	var out []*Entry
	for _, d := range e.dependentsOf(p, o, idx) {
		out = append(out, d)
		for _, r := range d.et.dependentRelations() {
			out = append(out, e.cascadedByStore(d, r, idx)...)
		}
	}
	return out
}
