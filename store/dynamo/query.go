package dynamo

import (
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/lattice/adapter"
)

// Query accumulates a Scan filter plus client-side ordering and pagination.
type Query struct {
	table  string
	kind   string
	filter []string
	names  map[string]string
	values map[string]types.AttributeValue
	sorts  []adapter.Sort
	offset int
	limit  int
	err    error
}

func newQuery(table, kind string) *Query {
	return &Query{
		table:  table,
		kind:   kind,
		names:  make(map[string]string),
		values: make(map[string]types.AttributeValue),
		limit:  -1,
	}
}

// Where adds a comparison on a top-level attribute.
func (q *Query) Where(field string, c adapter.Comparison, value any) adapter.QueryBuilder {
	n := len(q.filter)
	name := fmt.Sprintf("#f%d", n)

	if value == nil && c == adapter.Equal {
		null := fmt.Sprintf(":null%d", n)
		return q.WhereExpr(
			fmt.Sprintf("attribute_not_exists(%s) OR attribute_type(%s, %s)", name, name, null),
			map[string]string{name: field},
			map[string]types.AttributeValue{null: &types.AttributeValueMemberS{Value: "NULL"}},
		)
	}

	av, err := attributevalue.Marshal(value)
	if err != nil {
		q.err = fmt.Errorf("where %s.%s: %w", q.kind, field, err)
		return q
	}
	val := fmt.Sprintf(":v%d", n)
	return q.WhereExpr(
		fmt.Sprintf("%s %s %s", name, c, val),
		map[string]string{name: field},
		map[string]types.AttributeValue{val: av},
	)
}

// WhereExpr adds a raw filter condition, for custom operators. Placeholders
// must not use the #fN / :vN / :nullN forms generated by Where.
func (q *Query) WhereExpr(expr string, names map[string]string, values map[string]types.AttributeValue) *Query {
	q.filter = append(q.filter, "("+expr+")")
	for k, v := range names {
		q.names[k] = v
	}
	for k, v := range values {
		q.values[k] = v
	}
	return q
}

// OrderBy appends a sort clause, applied after the scan.
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

// Expression returns the filter expression and its placeholders. The maps are
// nil when empty.
func (q *Query) Expression() (string, map[string]string, map[string]types.AttributeValue) {
	return strings.Join(q.filter, " AND "), mergeExprNames(q.names), mergeExprValues(q.values)
}
