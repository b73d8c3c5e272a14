package datastore

import "fmt"

// Op is a filter comparison operator, named after its PostgREST spelling.
type Op string

const (
	OpEq  Op = "eq"
	OpNeq Op = "neq"
	OpGt  Op = "gt"
	OpGte Op = "gte"
	OpLt  Op = "lt"
	OpLte Op = "lte"
	OpIn  Op = "in"
)

// Filter restricts a statement to rows where Column Op Value holds.
// For OpIn, Value is a []any.
type Filter struct {
	Column string
	Op     Op
	Value  any
}

func Eq(column string, value any) Filter  { return Filter{Column: column, Op: OpEq, Value: value} }
func Neq(column string, value any) Filter { return Filter{Column: column, Op: OpNeq, Value: value} }
func Gt(column string, value any) Filter  { return Filter{Column: column, Op: OpGt, Value: value} }
func Gte(column string, value any) Filter { return Filter{Column: column, Op: OpGte, Value: value} }
func Lt(column string, value any) Filter  { return Filter{Column: column, Op: OpLt, Value: value} }
func Lte(column string, value any) Filter { return Filter{Column: column, Op: OpLte, Value: value} }

// In matches rows whose column equals any of values.
func In[T any](column string, values []T) Filter {
	vs := make([]any, len(values))
	for i, v := range values {
		vs[i] = v
	}
	return Filter{Column: column, Op: OpIn, Value: vs}
}

// Order sorts a selection.
type Order struct {
	Column     string
	Descending bool
}

// Query describes a selection. Empty Columns means all columns; zero Limit
// means no limit.
type Query struct {
	Columns []string
	Filters []Filter
	Order   []Order
	Limit   int
}

// Where returns a copy of q with filters appended.
func (q Query) Where(filters ...Filter) Query {
	q.Filters = append(append([]Filter(nil), q.Filters...), filters...)
	return q
}

// OrderBy returns a copy of q with one more sort key.
func (q Query) OrderBy(column string, descending bool) Query {
	q.Order = append(append([]Order(nil), q.Order...), Order{Column: column, Descending: descending})
	return q
}

// Validate checks identifiers and operators before anything hits the wire.
func (q Query) Validate() error {
	for _, c := range q.Columns {
		if !ValidIdentifier(c) {
			return fmt.Errorf("invalid column %q", c)
		}
	}
	if err := ValidateFilters(q.Filters); err != nil {
		return err
	}
	for _, o := range q.Order {
		if !ValidIdentifier(o.Column) {
			return fmt.Errorf("invalid order column %q", o.Column)
		}
	}
	if q.Limit < 0 {
		return fmt.Errorf("invalid limit %d", q.Limit)
	}
	return nil
}

// ValidateFilters checks filter columns and operators.
func ValidateFilters(filters []Filter) error {
	for _, f := range filters {
		if !ValidIdentifier(f.Column) {
			return fmt.Errorf("invalid filter column %q", f.Column)
		}
		switch f.Op {
		case OpEq, OpNeq, OpGt, OpGte, OpLt, OpLte:
		case OpIn:
			if _, ok := f.Value.([]any); !ok {
				return fmt.Errorf("filter %s.in expects a list", f.Column)
			}
		default:
			return fmt.Errorf("unsupported operator %q", f.Op)
		}
	}
	return nil
}
