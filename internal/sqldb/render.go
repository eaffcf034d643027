package sqldb

import (
	"fmt"
	"strings"

	"github.com/mesh-intelligence/tracker/pkg/types"
)

// Quote quotes an identifier. SQLite and Postgres both accept double quotes.
func Quote(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

type builder struct {
	d    Dialect
	sb   strings.Builder
	args []any
}

func (b *builder) arg(v any) string {
	b.args = append(b.args, b.d.Bind(v))
	return b.d.Placeholder(len(b.args))
}

func (b *builder) where(keys []string, values []any) {
	b.sb.WriteString(" WHERE ")
	for i, k := range keys {
		if i > 0 {
			b.sb.WriteString(" AND ")
		}
		fmt.Fprintf(&b.sb, "%s = %s", Quote(k), b.arg(values[i]))
	}
}

// RenderStatement renders stmt in dialect d.
func RenderStatement(d Dialect, stmt types.Statement) (string, []any, error) {
	if len(stmt.Columns) != len(stmt.Values) || len(stmt.Key) != len(stmt.KeyValues) {
		return "", nil, fmt.Errorf("%s %s: mismatched columns and values", stmt.Op, stmt.Table)
	}
	b := &builder{d: d}
	switch stmt.Op {
	case types.OpInsert:
		fmt.Fprintf(&b.sb, "INSERT INTO %s", Quote(stmt.Table))
		if len(stmt.Columns) == 0 {
			b.sb.WriteString(" DEFAULT VALUES")
		} else {
			cols := make([]string, len(stmt.Columns))
			marks := make([]string, len(stmt.Columns))
			for i, c := range stmt.Columns {
				cols[i] = Quote(c)
				marks[i] = b.arg(stmt.Values[i])
			}
			fmt.Fprintf(&b.sb, " (%s) VALUES (%s)", strings.Join(cols, ", "), strings.Join(marks, ", "))
		}
		if len(stmt.Returning) > 0 {
			cols := make([]string, len(stmt.Returning))
			for i, c := range stmt.Returning {
				cols[i] = Quote(c)
			}
			fmt.Fprintf(&b.sb, " RETURNING %s", strings.Join(cols, ", "))
		}
	case types.OpUpdate:
		if len(stmt.Columns) == 0 || len(stmt.Key) == 0 {
			return "", nil, fmt.Errorf("update %s: needs columns and a key", stmt.Table)
		}
		fmt.Fprintf(&b.sb, "UPDATE %s SET ", Quote(stmt.Table))
		for i, c := range stmt.Columns {
			if i > 0 {
				b.sb.WriteString(", ")
			}
			fmt.Fprintf(&b.sb, "%s = %s", Quote(c), b.arg(stmt.Values[i]))
		}
		b.where(stmt.Key, stmt.KeyValues)
	case types.OpDelete:
		if len(stmt.Key) == 0 {
			return "", nil, fmt.Errorf("delete %s: needs a key", stmt.Table)
		}
		fmt.Fprintf(&b.sb, "DELETE FROM %s", Quote(stmt.Table))
		b.where(stmt.Key, stmt.KeyValues)
	default:
		return "", nil, fmt.Errorf("unknown statement kind %q", stmt.Op)
	}
	return b.sb.String(), b.args, nil
}

func qualified(c types.ColumnRef) string {
	return Quote(c.Table) + "." + Quote(c.Column)
}

// RenderQuery renders q in dialect d.
func RenderQuery(d Dialect, q types.Query) (string, []any, error) {
	if len(q.Columns) == 0 {
		return "", nil, fmt.Errorf("query %s: no columns", q.Table)
	}
	b := &builder{d: d}
	cols := make([]string, len(q.Columns))
	for i, c := range q.Columns {
		cols[i] = qualified(c)
	}
	fmt.Fprintf(&b.sb, "SELECT %s FROM %s", strings.Join(cols, ", "), Quote(q.Table))
	for _, j := range q.Joins {
		fmt.Fprintf(&b.sb, " JOIN %s ON ", Quote(j.Table))
		for i, k := range j.Key {
			if i > 0 {
				b.sb.WriteString(" AND ")
			}
			fmt.Fprintf(&b.sb, "%s = %s",
				qualified(types.ColumnRef{Table: j.Table, Column: k}),
				qualified(types.ColumnRef{Table: q.Table, Column: k}))
		}
	}
	for i, c := range q.Where {
		if i == 0 {
			b.sb.WriteString(" WHERE ")
		} else {
			b.sb.WriteString(" AND ")
		}
		col := qualified(types.ColumnRef{Table: c.Table, Column: c.Column})
		switch c.Operator {
		case types.OpIsNull:
			fmt.Fprintf(&b.sb, "%s IS NULL", col)
		case types.OpEq, types.OpNe, types.OpLt, types.OpLe, types.OpGt, types.OpGe, types.OpLike:
			fmt.Fprintf(&b.sb, "%s %s %s", col, c.Operator, b.arg(c.Value))
		default:
			return "", nil, fmt.Errorf("query %s: unknown operator %q", q.Table, c.Operator)
		}
	}
	if len(q.OrderBy) > 0 {
		order := make([]string, len(q.OrderBy))
		for i, c := range q.OrderBy {
			order[i] = qualified(c)
		}
		fmt.Fprintf(&b.sb, " ORDER BY %s", strings.Join(order, ", "))
	}
	return b.sb.String(), b.args, nil
}
