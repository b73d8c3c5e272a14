package sqlstore

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/common"
)

// builder accumulates SQL text and positional arguments.
type builder struct {
	dialect Dialect
	sb      strings.Builder
	args    []any
}

func (b *builder) write(parts ...string) {
	for _, p := range parts {
		b.sb.WriteString(p)
	}
}

func (b *builder) bind(v any) {
	b.args = append(b.args, b.value(v))
	if b.dialect == Postgres {
		b.sb.WriteString("$" + strconv.Itoa(len(b.args)))
		return
	}
	b.sb.WriteString("?")
}

// value adapts Go values to the driver. SQLite stores timestamps as
// fixed-width text so they compare lexically.
func (b *builder) value(v any) any {
	if b.dialect != SQLite {
		return v
	}
	switch x := v.(type) {
	case time.Time:
		return common.Timestamp(x)
	case *time.Time:
		if x == nil {
			return nil
		}
		return common.Timestamp(*x)
	}
	return v
}

func (b *builder) String() string { return b.sb.String() }

func sortedColumns(row datastore.Row) ([]string, error) {
	cols := make([]string, 0, len(row))
	for c := range row {
		if !datastore.ValidIdentifier(c) {
			return nil, fmt.Errorf("invalid column %q", c)
		}
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols, nil
}

func (b *builder) where(filters []datastore.Filter) {
	if len(filters) == 0 {
		return
	}
	b.write(" WHERE ")
	for i, f := range filters {
		if i > 0 {
			b.write(" AND ")
		}
		b.condition(f)
	}
}

var comparison = map[datastore.Op]string{
	datastore.OpEq:  "=",
	datastore.OpNeq: "<>",
	datastore.OpGt:  ">",
	datastore.OpGte: ">=",
	datastore.OpLt:  "<",
	datastore.OpLte: "<=",
}

func (b *builder) condition(f datastore.Filter) {
	if f.Op == datastore.OpIn {
		vals := f.Value.([]any)
		if len(vals) == 0 {
			b.write("1 = 0")
			return
		}
		b.write(f.Column, " IN (")
		for i, v := range vals {
			if i > 0 {
				b.write(", ")
			}
			b.bind(v)
		}
		b.write(")")
		return
	}
	if f.Value == nil {
		switch f.Op {
		case datastore.OpEq:
			b.write(f.Column, " IS NULL")
			return
		case datastore.OpNeq:
			b.write(f.Column, " IS NOT NULL")
			return
		}
	}
	b.write(f.Column, " ", comparison[f.Op], " ")
	b.bind(f.Value)
}

func buildSelect(d Dialect, table string, q datastore.Query) (string, []any) {
	b := &builder{dialect: d}
	cols := "*"
	if len(q.Columns) > 0 {
		cols = strings.Join(q.Columns, ", ")
	}
	b.write("SELECT ", cols, " FROM ", table)
	b.where(q.Filters)
	if len(q.Order) > 0 {
		b.write(" ORDER BY ")
		for i, o := range q.Order {
			if i > 0 {
				b.write(", ")
			}
			b.write(o.Column)
			if o.Descending {
				b.write(" DESC")
			} else {
				b.write(" ASC")
			}
		}
	}
	if q.Limit > 0 {
		b.write(" LIMIT ", strconv.Itoa(q.Limit))
	}
	return b.String(), b.args
}

func buildInsert(d Dialect, table string, row datastore.Row, onConflict string) (string, []any, error) {
	cols, err := sortedColumns(row)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("insert into %s has no columns", table)
	}
	b := &builder{dialect: d}
	b.write("INSERT INTO ", table, " (", strings.Join(cols, ", "), ") VALUES (")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.bind(row[c])
	}
	b.write(")")
	if onConflict != "" {
		b.write(" ON CONFLICT (", onConflict, ") DO UPDATE SET ")
		set := make([]string, 0, len(cols))
		for _, c := range cols {
			if c != onConflict {
				set = append(set, c+" = excluded."+c)
			}
		}
		if len(set) == 0 {
			set = append(set, onConflict+" = excluded."+onConflict)
		}
		b.write(strings.Join(set, ", "))
	}
	b.write(" RETURNING *")
	return b.String(), b.args, nil
}

func buildUpdate(d Dialect, table string, values datastore.Row, filters []datastore.Filter) (string, []any, error) {
	cols, err := sortedColumns(values)
	if err != nil {
		return "", nil, err
	}
	if len(cols) == 0 {
		return "", nil, fmt.Errorf("update of %s has no columns", table)
	}
	b := &builder{dialect: d}
	b.write("UPDATE ", table, " SET ")
	for i, c := range cols {
		if i > 0 {
			b.write(", ")
		}
		b.write(c, " = ")
		b.bind(values[c])
	}
	b.where(filters)
	b.write(" RETURNING *")
	return b.String(), b.args, nil
}

func buildDelete(d Dialect, table string, filters []datastore.Filter) (string, []any) {
	b := &builder{dialect: d}
	b.write("DELETE FROM ", table)
	b.where(filters)
	b.write(" RETURNING *")
	return b.String(), b.args
}
