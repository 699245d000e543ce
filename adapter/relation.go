package adapter

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Relation is one of BelongsTo, HasOne, HasMany, HasManyByLocalKeys or
// HasManyByForeignKeys. The last two can be declared but not loaded.
type Relation interface {
	// LocalField is where loaded data is attached and the name Options.With uses.
	LocalField() string

	// Related returns the target mapper.
	Related() *Mapper

	relation()
}

// BelongsTo loads the record whose key is stored in ForeignKey on the current record.
type BelongsTo struct {
	Local      string
	ForeignKey string
	To         *Mapper
}

// HasOne loads the first record of To whose ForeignKey equals the current record's key.
type HasOne struct {
	Local      string
	ForeignKey string
	To         *Mapper
}

// HasMany loads every record of To whose ForeignKey equals the current record's key.
type HasMany struct {
	Local      string
	ForeignKey string
	To         *Mapper
}

// HasManyByLocalKeys names a field on the current record listing related keys.
type HasManyByLocalKeys struct {
	Local     string
	LocalKeys string
	To        *Mapper
}

// HasManyByForeignKeys names a field on related records listing the current record's key.
type HasManyByForeignKeys struct {
	Local       string
	ForeignKeys string
	To          *Mapper
}

func (r BelongsTo) LocalField() string            { return r.Local }
func (r HasOne) LocalField() string               { return r.Local }
func (r HasMany) LocalField() string              { return r.Local }
func (r HasManyByLocalKeys) LocalField() string   { return r.Local }
func (r HasManyByForeignKeys) LocalField() string { return r.Local }

func (r BelongsTo) Related() *Mapper            { return r.To }
func (r HasOne) Related() *Mapper               { return r.To }
func (r HasMany) Related() *Mapper              { return r.To }
func (r HasManyByLocalKeys) Related() *Mapper   { return r.To }
func (r HasManyByForeignKeys) Related() *Mapper { return r.To }

func (BelongsTo) relation()            {}
func (HasOne) relation()               {}
func (HasMany) relation()              {}
func (HasManyByLocalKeys) relation()   {}
func (HasManyByForeignKeys) relation() {}

// requestedRelations returns the mapper's relations named in opts.With.
// Names that match no relation are ignored.
func requestedRelations(m *Mapper, opts *Options) []Relation {
	if opts == nil {
		return nil
	}
	var rels []Relation
	for _, name := range opts.With {
		if rel, ok := m.Relation(name); ok {
			rels = append(rels, rel)
		}
	}
	return rels
}

// checkLoadable rejects relation kinds the loader cannot resolve.
func checkLoadable(op string, rels []Relation) error {
	for _, rel := range rels {
		if rel.Related() == nil {
			return &UnsupportedError{Op: op, Detail: fmt.Sprintf("relation %q with no target mapper", rel.LocalField())}
		}
		switch r := rel.(type) {
		case BelongsTo, HasOne, HasMany:
		case HasManyByLocalKeys:
			return &UnsupportedError{Op: op, Detail: fmt.Sprintf("hasMany relation %q by localKeys", r.Local)}
		case HasManyByForeignKeys:
			return &UnsupportedError{Op: op, Detail: fmt.Sprintf("hasMany relation %q by foreignKeys", r.Local)}
		default:
			return &UnsupportedError{Op: op, Detail: fmt.Sprintf("relation %q of type %T", rel.LocalField(), rel)}
		}
	}
	return nil
}

// checkNoEagerLoad rejects any eager loading on multi-record reads.
func checkNoEagerLoad(op string, m *Mapper, opts *Options) error {
	if rels := requestedRelations(m, opts); len(rels) > 0 {
		return &UnsupportedError{
			Op:     op,
			Detail: fmt.Sprintf("eager loading relation %q on a multi-record read", rels[0].LocalField()),
		}
	}
	return nil
}

// loadRelations resolves rels for one record concurrently and attaches the
// results. The first failure cancels the remaining loads.
func (a *Adapter) loadRelations(ctx context.Context, m *Mapper, record Record, rels []Relation, opts *Options) error {
	loaded := make([]any, len(rels))
	g, gctx := errgroup.WithContext(ctx)
	for i, rel := range rels {
		g.Go(func() error {
			v, err := a.loadRelation(gctx, m, record, rel, opts)
			if err != nil {
				return fmt.Errorf("load relation %q: %w", rel.LocalField(), err)
			}
			loaded[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	for i, rel := range rels {
		if loaded[i] != nil {
			record[rel.LocalField()] = loaded[i]
		}
	}
	return nil
}

func (a *Adapter) loadRelation(ctx context.Context, m *Mapper, record Record, rel Relation, opts *Options) (any, error) {
	related := &Options{Operators: opts.Operators}
	switch r := rel.(type) {
	case BelongsTo:
		key, ok := record[r.ForeignKey]
		if !ok || key == nil {
			return nil, nil
		}
		rec, err := a.store.Get(ctx, r.To.Collection(nil), key)
		if err != nil || rec == nil {
			return nil, err
		}
		return rec, nil
	case HasOne:
		id, ok := record[m.ID()]
		if !ok || id == nil {
			return nil, nil
		}
		res, err := a.runQuery(ctx, r.To, foreignKeyQuery(r.ForeignKey, id, 1), related)
		if err != nil || len(res.Records) == 0 {
			return nil, err
		}
		return res.Records[0], nil
	case HasMany:
		id, ok := record[m.ID()]
		if !ok || id == nil {
			return []Record{}, nil
		}
		res, err := a.runQuery(ctx, r.To, foreignKeyQuery(r.ForeignKey, id, -1), related)
		if err != nil {
			return nil, err
		}
		if res.Records == nil {
			return []Record{}, nil
		}
		return res.Records, nil
	}
	return nil, checkLoadable(OpFind, []Relation{rel})
}

// foreignKeyQuery matches field == id. The field goes under "where" so names
// such as "sort" or "limit" are not read as query keys. limit < 0 means none.
func foreignKeyQuery(field string, id any, limit int) Query {
	q := Query{"where": map[string]any{field: map[string]any{string(OpEq): id}}}
	if limit >= 0 {
		q["limit"] = limit
	}
	return q
}
