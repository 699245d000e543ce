package sqlite

import (
	"fmt"
	"strings"
	"time"

	"github.com/jacentio/lattice/adapter"
)

// Query builds a SELECT over a kind's JSON documents. Conditions are ANDed.
type Query struct {
	kind   string
	table  string
	conds  []string
	args   []any
	order  []string
	oargs  []any
	limit  *int
	offset int
	err    error
}

// Where adds a comparison on a top-level document field.
func (q *Query) Where(field string, c adapter.Comparison, value any) adapter.QueryBuilder {
	if value == nil && c == adapter.Equal {
		return q.WhereRaw("json_extract(data, ?) IS NULL", jsonPath(field))
	}
	v, err := bindValue(value)
	if err != nil {
		q.err = fmt.Errorf("where %s: %w", field, err)
		return q
	}
	return q.WhereRaw(fmt.Sprintf("json_extract(data, ?) %s ?", c), jsonPath(field), v)
}

// WhereRaw adds a raw SQL condition, for custom operators.
func (q *Query) WhereRaw(cond string, args ...any) *Query {
	q.conds = append(q.conds, "("+cond+")")
	q.args = append(q.args, args...)
	return q
}

// OrderBy appends a sort clause.
func (q *Query) OrderBy(field string, desc bool) adapter.QueryBuilder {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.order = append(q.order, "json_extract(data, ?) "+dir)
	q.oargs = append(q.oargs, jsonPath(field))
	return q
}

// Offset skips the first n rows.
func (q *Query) Offset(n int) adapter.QueryBuilder {
	q.offset = n
	return q
}

// Limit caps the number of rows.
func (q *Query) Limit(n int) adapter.QueryBuilder {
	q.limit = &n
	return q
}

// SQL renders the statement and its arguments.
func (q *Query) SQL() (string, []any) {
	var b strings.Builder
	args := make([]any, 0, len(q.args)+len(q.oargs)+2)

	fmt.Fprintf(&b, "SELECT data FROM %s", quoteIdent(q.table))
	if len(q.conds) > 0 {
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(q.conds, " AND "))
		args = append(args, q.args...)
	}
	b.WriteString(" ORDER BY ")
	for _, o := range q.order {
		b.WriteString(o)
		b.WriteString(", ")
	}
	b.WriteString("rowid ASC")
	args = append(args, q.oargs...)

	switch {
	case q.limit != nil:
		b.WriteString(" LIMIT ?")
		args = append(args, *q.limit)
	case q.offset > 0:
		b.WriteString(" LIMIT -1")
	}
	if q.offset > 0 {
		b.WriteString(" OFFSET ?")
		args = append(args, q.offset)
	}
	return b.String(), args
}

func jsonPath(field string) string {
	return `$."` + strings.ReplaceAll(field, `"`, `\"`) + `"`
}

// bindValue converts comparands to the representation json_extract yields.
func bindValue(v any) (any, error) {
	switch t := v.(type) {
	case time.Time:
		return t.Format(time.RFC3339Nano), nil
	case bool:
		if t {
			return 1, nil
		}
		return 0, nil
	case string, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return t, nil
	}
	return nil, fmt.Errorf("unsupported comparand type %T", v)
}
