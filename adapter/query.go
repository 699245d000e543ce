package adapter

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
)

// Query is a backend-neutral selection:
//
//	{
//	    "where":   {"age": {">": 30}, "name": "bob"},
//	    "orderBy": [["age", "desc"], "name"],
//	    "limit":   10,
//	    "skip":    20,
//	    "status":  "active", // shorthand for where.status == "active"
//	}
//
// "sort" and "offset" are accepted as aliases of "orderBy" and "skip"; a
// canonical key that is present but nil falls back to its alias.
//
// An absent or nil "limit" means no limit. An explicit "limit": 0 is applied
// and matches no records. "skip": 0 skips nothing.
//
// Criteria may be any map with string keys; anything else is a value to
// compare for equality.
type Query map[string]any

var reservedKeys = map[string]bool{
	"where":   true,
	"orderBy": true,
	"sort":    true,
	"limit":   true,
	"skip":    true,
	"offset":  true,
}

// Clause is one operator/comparand pair.
type Clause struct {
	Operator Operator
	Value    any
}

// Criteria groups the clauses applied to one field.
type Criteria struct {
	Field   string
	Clauses []Clause
}

// Sort is one ordering clause.
type Sort struct {
	Field string
	Desc  bool
}

// Selection is a normalized Query. Limit and Skip are nil when unset.
type Selection struct {
	Where   []Criteria
	OrderBy []Sort
	Limit   *int
	Skip    *int
}

// Normalize folds shorthand fields into where, canonicalizes aliases and
// parses ordering and pagination. The input is not modified.
//
// Fields are visited in lexical order, as are operators within a field.
func Normalize(q Query) (Selection, error) {
	var sel Selection

	where := make(map[string]any)
	if raw, ok := q["where"]; ok && raw != nil {
		m, ok := toMap(raw)
		if !ok {
			return sel, fmt.Errorf("%w: where must be a mapping, got %T", ErrInvalidQuery, raw)
		}
		for k, v := range m {
			where[k] = v
		}
	}
	for k, v := range q {
		if reservedKeys[k] {
			continue
		}
		where[k] = v
	}

	fields := make([]string, 0, len(where))
	for f := range where {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		sel.Where = append(sel.Where, Criteria{Field: f, Clauses: clausesFor(where[f])})
	}

	orderBy, ok := q["orderBy"]
	if !ok || orderBy == nil {
		orderBy = q["sort"]
	}
	sorts, err := parseOrderBy(orderBy)
	if err != nil {
		return sel, err
	}
	sel.OrderBy = sorts

	if sel.Limit, err = intParam(q, "limit"); err != nil {
		return sel, err
	}
	if v, ok := q["skip"]; ok && v != nil {
		sel.Skip, err = intParam(q, "skip")
	} else {
		sel.Skip, err = intParam(q, "offset")
	}
	if err != nil {
		return sel, err
	}
	return sel, nil
}

func clausesFor(criteria any) []Clause {
	m, ok := toMap(criteria)
	if !ok {
		return []Clause{{Operator: OpEq, Value: criteria}}
	}
	ops := make([]string, 0, len(m))
	for op := range m {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	clauses := make([]Clause, 0, len(ops))
	for _, op := range ops {
		clauses = append(clauses, Clause{Operator: Operator(op), Value: m[op]})
	}
	return clauses
}

func parseOrderBy(v any) ([]Sort, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return []Sort{{Field: t}}, nil
	case Sort:
		return []Sort{t}, nil
	case []Sort:
		return append([]Sort(nil), t...), nil
	case []string:
		sorts := make([]Sort, 0, len(t))
		for _, f := range t {
			sorts = append(sorts, Sort{Field: f})
		}
		return sorts, nil
	case [][]string:
		sorts := make([]Sort, 0, len(t))
		for _, pair := range t {
			s, err := sortPair(pair)
			if err != nil {
				return nil, err
			}
			sorts = append(sorts, s)
		}
		return sorts, nil
	case []any:
		sorts := make([]Sort, 0, len(t))
		for _, clause := range t {
			s, err := sortClause(clause)
			if err != nil {
				return nil, err
			}
			sorts = append(sorts, s)
		}
		return sorts, nil
	}
	return nil, fmt.Errorf("%w: orderBy must be a field or a list of [field, direction], got %T", ErrInvalidQuery, v)
}

func sortClause(clause any) (Sort, error) {
	switch t := clause.(type) {
	case string:
		return Sort{Field: t}, nil
	case Sort:
		return t, nil
	case []string:
		return sortPair(t)
	case []any:
		pair := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := e.(string)
			if !ok {
				return Sort{}, fmt.Errorf("%w: orderBy clause element must be a string, got %T", ErrInvalidQuery, e)
			}
			pair = append(pair, s)
		}
		return sortPair(pair)
	}
	return Sort{}, fmt.Errorf("%w: invalid orderBy clause %T", ErrInvalidQuery, clause)
}

func sortPair(pair []string) (Sort, error) {
	if len(pair) == 0 || pair[0] == "" {
		return Sort{}, fmt.Errorf("%w: orderBy clause needs a field", ErrInvalidQuery)
	}
	s := Sort{Field: pair[0]}
	if len(pair) > 1 {
		s.Desc = strings.EqualFold(pair[1], "desc")
	}
	return s, nil
}

func intParam(q Query, key string) (*int, error) {
	v, ok := q[key]
	if !ok || v == nil {
		return nil, nil
	}
	n, err := toInt(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidQuery, key, err)
	}
	if n < 0 {
		return nil, fmt.Errorf("%w: %s must not be negative", ErrInvalidQuery, key)
	}
	return &n, nil
}

func toInt(v any) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int8:
		return int(t), nil
	case int16:
		return int(t), nil
	case int32:
		return int(t), nil
	case int64:
		return int(t), nil
	case uint:
		return int(t), nil
	case uint8:
		return int(t), nil
	case uint16:
		return int(t), nil
	case uint32:
		return int(t), nil
	case uint64:
		return int(t), nil
	case float32:
		return floatToInt(float64(t))
	case float64:
		return floatToInt(t)
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return int(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return 0, err
		}
		return floatToInt(f)
	}
	return 0, fmt.Errorf("expected an integer, got %T", v)
}

func floatToInt(f float64) (int, error) {
	if f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("expected an integer, got %v", f)
	}
	return int(f), nil
}
