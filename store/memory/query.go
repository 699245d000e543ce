package memory

import (
	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/valuecmp"
)

type predicate func(adapter.Record) bool

// Query is the memory store's native builder. Predicates are ANDed.
type Query struct {
	collection adapter.Collection
	preds      []predicate
	sorts      []adapter.Sort
	offset     int
	limit      int
}

// Where adds a comparison on field.
func (q *Query) Where(field string, c adapter.Comparison, value any) adapter.QueryBuilder {
	return q.WhereFunc(field, func(v any) bool { return compare(v, c, value) })
}

// WhereFunc adds an arbitrary predicate on field, for custom operators.
func (q *Query) WhereFunc(field string, match func(v any) bool) *Query {
	q.preds = append(q.preds, func(r adapter.Record) bool { return match(r[field]) })
	return q
}

// OrderBy appends a sort clause.
func (q *Query) OrderBy(field string, desc bool) adapter.QueryBuilder {
	q.sorts = append(q.sorts, adapter.Sort{Field: field, Desc: desc})
	return q
}

// Offset skips the first n matches.
func (q *Query) Offset(n int) adapter.QueryBuilder {
	q.offset = n
	return q
}

// Limit caps the number of matches returned.
func (q *Query) Limit(n int) adapter.QueryBuilder {
	q.limit = n
	return q
}

// Sorts returns the sort clauses in application order.
func (q *Query) Sorts() []adapter.Sort {
	return q.sorts
}

func (q *Query) matches(r adapter.Record) bool {
	for _, p := range q.preds {
		if !p(r) {
			return false
		}
	}
	return true
}

func compare(v any, c adapter.Comparison, want any) bool {
	if c == adapter.Equal {
		return valuecmp.Equal(v, want)
	}
	n, ok := valuecmp.Compare(v, want)
	if !ok || v == nil {
		return false
	}
	switch c {
	case adapter.Greater:
		return n > 0
	case adapter.GreaterOrEqual:
		return n >= 0
	case adapter.Less:
		return n < 0
	case adapter.LessOrEqual:
		return n <= 0
	}
	return false
}
