package adapter

import "strings"

// Translate normalizes query and applies it to a new native builder for the
// mapper's collection. The builder is returned unexecuted.
func (a *Adapter) Translate(m *Mapper, query Query, opts *Options) (QueryBuilder, error) {
	sel, err := Normalize(query)
	if err != nil {
		return nil, err
	}
	return a.Apply(a.store.NewQuery(m.Collection(opts)), sel, opts)
}

// Apply threads qb through every clause of sel with AND semantics, then
// ordering and pagination.
func (a *Adapter) Apply(qb QueryBuilder, sel Selection, opts *Options) (QueryBuilder, error) {
	call := opts.operatorTable()
	for _, c := range sel.Where {
		for _, cl := range c.Clauses {
			if strings.HasPrefix(string(cl.Operator), "|") {
				return nil, &OperatorError{Field: c.Field, Operator: string(cl.Operator), Err: ErrUnsupported}
			}
			fn, ok := resolveOperator(cl.Operator, call, a.operators, defaultOperators)
			if !ok {
				return nil, &OperatorError{Field: c.Field, Operator: string(cl.Operator), Err: ErrUnknownOperator}
			}
			qb = fn(qb, c.Field, cl.Value)
		}
	}
	for _, s := range sel.OrderBy {
		qb = qb.OrderBy(s.Field, s.Desc)
	}
	if sel.Skip != nil && *sel.Skip > 0 {
		qb = qb.Offset(*sel.Skip)
	}
	if sel.Limit != nil {
		qb = qb.Limit(*sel.Limit)
	}
	return qb, nil
}
