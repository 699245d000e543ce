package adapter

import "slices"

// Options are recognized by every operation.
type Options struct {
	// Raw asks for the detailed response. Responses always carry metadata; Raw is
	// recorded on the response so callers can decide what to surface.
	Raw bool

	// With names the relations (by local field) to eager-load.
	With []string

	// Operators overrides operator predicates for this call only.
	Operators map[Operator]OperatorFunc

	// Kind overrides the mapper's backend collection for this call.
	Kind string

	// Op is set by the adapter to the current lifecycle phase
	// (e.g. "beforeCreate", "create", "afterCreate").
	Op string
}

func (o *Options) clone() *Options {
	if o == nil {
		return &Options{}
	}
	c := *o
	c.With = slices.Clone(o.With)
	return &c
}

// withoutRelations returns a copy suitable for internal reads that must not eager-load.
func (o *Options) withoutRelations() *Options {
	c := o.clone()
	c.With = nil
	return c
}

func (o *Options) operatorTable() *OperatorTable {
	if o == nil || len(o.Operators) == 0 {
		return nil
	}
	return NewOperatorTable(o.Operators)
}
