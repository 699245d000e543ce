package adapter

import "sort"

// Operator is a where-clause operator symbol.
type Operator string

// Built-in operators. Any other symbol must be supplied through an override table.
const (
	OpEq       Operator = "=="
	OpStrictEq Operator = "==="
	OpGt       Operator = ">"
	OpGte      Operator = ">="
	OpLt       Operator = "<"
	OpLte      Operator = "<="
)

// Comparison is the native comparison a QueryBuilder must understand.
type Comparison int

const (
	Equal Comparison = iota
	Greater
	GreaterOrEqual
	Less
	LessOrEqual
)

func (c Comparison) String() string {
	switch c {
	case Equal:
		return "="
	case Greater:
		return ">"
	case GreaterOrEqual:
		return ">="
	case Less:
		return "<"
	case LessOrEqual:
		return "<="
	}
	return "?"
}

// OperatorFunc applies one predicate to a native query builder and returns the
// builder to continue the chain with. Overrides may type-assert q to the
// backend's concrete builder to reach native features.
type OperatorFunc func(q QueryBuilder, field string, value any) QueryBuilder

// OperatorTable maps operator symbols to predicate builders. A table is
// immutable once constructed and safe for concurrent use.
type OperatorTable struct {
	funcs map[Operator]OperatorFunc
}

// NewOperatorTable copies funcs into a new table.
func NewOperatorTable(funcs map[Operator]OperatorFunc) *OperatorTable {
	t := &OperatorTable{funcs: make(map[Operator]OperatorFunc, len(funcs))}
	for op, fn := range funcs {
		if fn != nil {
			t.funcs[op] = fn
		}
	}
	return t
}

// Lookup returns the predicate builder for op. A nil table finds nothing.
func (t *OperatorTable) Lookup(op Operator) (OperatorFunc, bool) {
	if t == nil {
		return nil, false
	}
	fn, ok := t.funcs[op]
	return fn, ok
}

// Operators lists the symbols in the table in lexical order.
func (t *OperatorTable) Operators() []Operator {
	if t == nil {
		return nil
	}
	ops := make([]Operator, 0, len(t.funcs))
	for op := range t.funcs {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	return ops
}

func comparing(c Comparison) OperatorFunc {
	return func(q QueryBuilder, field string, value any) QueryBuilder {
		return q.Where(field, c, value)
	}
}

var defaultOperators = NewOperatorTable(map[Operator]OperatorFunc{
	OpEq:       comparing(Equal),
	OpStrictEq: comparing(Equal),
	OpGt:       comparing(Greater),
	OpGte:      comparing(GreaterOrEqual),
	OpLt:       comparing(Less),
	OpLte:      comparing(LessOrEqual),
})

// DefaultOperators returns the process-wide default table.
func DefaultOperators() *OperatorTable {
	return defaultOperators
}

// resolveOperator checks each table in order and returns the first match.
func resolveOperator(op Operator, tables ...*OperatorTable) (OperatorFunc, bool) {
	for _, t := range tables {
		if fn, ok := t.Lookup(op); ok {
			return fn, true
		}
	}
	return nil, false
}
