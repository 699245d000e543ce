package adapter

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Operation names, also used as Call.Op and Response.Op.
const (
	OpCreate     = "create"
	OpCreateMany = "createMany"
	OpFind       = "find"
	OpFindAll    = "findAll"
	OpDestroy    = "destroy"
	OpDestroyAll = "destroyAll"
	OpUpdate     = "update"
	OpUpdateAll  = "updateAll"
	OpUpdateMany = "updateMany"
)

// Operations is the backend-agnostic CRUD surface.
type Operations interface {
	Create(ctx context.Context, m *Mapper, props Record, opts *Options) (*Response, error)
	CreateMany(ctx context.Context, m *Mapper, props []Record, opts *Options) (*Response, error)
	Find(ctx context.Context, m *Mapper, id any, opts *Options) (*Response, error)
	FindAll(ctx context.Context, m *Mapper, query Query, opts *Options) (*Response, error)
	Destroy(ctx context.Context, m *Mapper, id any, opts *Options) (*Response, error)
	DestroyAll(ctx context.Context, m *Mapper, query Query, opts *Options) (*Response, error)
	Update(ctx context.Context, m *Mapper, id any, props Record, opts *Options) (*Response, error)
	UpdateAll(ctx context.Context, m *Mapper, props Record, query Query, opts *Options) (*Response, error)
	UpdateMany(ctx context.Context, m *Mapper, records []Record, opts *Options) (*Response, error)
}

var _ Operations = (*Adapter)(nil)

// Adapter runs CRUD operations against a Store.
type Adapter struct {
	store     Store
	hooks     Hooks
	operators *OperatorTable
	logger    *slog.Logger
	config    Config
}

// New creates a new Adapter over store.
func New(store Store, config Config) (*Adapter, error) {
	if store == nil {
		return nil, ErrNoStore
	}
	config.validate()
	return &Adapter{
		store:     store,
		hooks:     config.Hooks,
		operators: NewOperatorTable(config.Operators),
		logger:    config.Logger,
		config:    config,
	}, nil
}

// Store returns the underlying store.
func (a *Adapter) Store() Store {
	return a.store
}

type coreFunc func(ctx context.Context, call Call) (*Response, error)

// run executes before hook, core action and after hook strictly in sequence.
func (a *Adapter) run(ctx context.Context, call Call, core coreFunc) (*Response, error) {
	op := call.Op
	call.Options = call.Options.clone()
	call.Options.Op = phase("before", op)

	call, err := a.hooks.Before(ctx, call)
	if err != nil {
		a.logger.Warn("before hook aborted operation", "op", op, "error", err)
		return nil, err
	}
	call.Op = op
	if call.Options == nil {
		call.Options = &Options{}
	}
	call.Options.Op = op

	resp, err := core(ctx, call)
	if err != nil {
		a.logger.Debug("operation failed",
			"op", op,
			"kind", call.Mapper.KindFor(call.Options),
			"error", err,
		)
		return nil, err
	}

	call.Options.Op = phase("after", op)
	out, err := a.hooks.After(ctx, call, resp)
	if err != nil {
		a.logger.Warn("after hook aborted operation", "op", op, "error", err)
		return nil, err
	}
	if out == nil {
		out = resp
	}
	return out, nil
}

func phase(prefix, op string) string {
	return prefix + strings.ToUpper(op[:1]) + op[1:]
}

// Create persists one record and returns it with its allocated key.
func (a *Adapter) Create(ctx context.Context, m *Mapper, props Record, opts *Options) (*Response, error) {
	call := Call{Op: OpCreate, Mapper: m, Props: props, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		res, err := a.create(ctx, call.Mapper, []Record{call.Props}, call.Options)
		if err != nil {
			return nil, err
		}
		var data Record
		if len(res.Records) > 0 {
			data = res.Records[0]
		}
		return buildResponse(OpCreate, data, res.Meta, call.Options), nil
	})
}

// CreateMany persists every record in one atomic batch.
func (a *Adapter) CreateMany(ctx context.Context, m *Mapper, props []Record, opts *Options) (*Response, error) {
	call := Call{Op: OpCreateMany, Mapper: m, Records: props, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		res, err := a.create(ctx, call.Mapper, call.Records, call.Options)
		if err != nil {
			return nil, err
		}
		data := res.Records
		if data == nil {
			data = []Record{}
		}
		return buildResponse(OpCreateMany, data, res.Meta, call.Options), nil
	})
}

func (a *Adapter) create(ctx context.Context, m *Mapper, props []Record, opts *Options) (Result, error) {
	records := make([]Record, 0, len(props))
	for _, p := range props {
		records = append(records, StripRelations(m, p))
	}
	if len(records) == 0 {
		return Result{}, nil
	}
	return a.store.Create(ctx, m.Collection(opts), records)
}

// Find fetches one record by key and loads the relations named in opts.With.
func (a *Adapter) Find(ctx context.Context, m *Mapper, id any, opts *Options) (*Response, error) {
	call := Call{Op: OpFind, Mapper: m, ID: id, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		rels := requestedRelations(call.Mapper, call.Options)
		if err := checkLoadable(OpFind, rels); err != nil {
			return nil, err
		}
		rec, err := a.store.Get(ctx, call.Mapper.Collection(call.Options), call.ID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return buildResponse(OpFind, nil, nil, call.Options), nil
		}
		if len(rels) > 0 {
			if err := a.loadRelations(ctx, call.Mapper, rec, rels, call.Options); err != nil {
				return nil, err
			}
		}
		return buildResponse(OpFind, rec, nil, call.Options), nil
	})
}

// FindAll returns every record matching query. Eager loading is rejected.
func (a *Adapter) FindAll(ctx context.Context, m *Mapper, query Query, opts *Options) (*Response, error) {
	call := Call{Op: OpFindAll, Mapper: m, Query: query, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		if err := checkNoEagerLoad(OpFindAll, call.Mapper, call.Options); err != nil {
			return nil, err
		}
		res, err := a.runQuery(ctx, call.Mapper, call.Query, call.Options)
		if err != nil {
			return nil, err
		}
		return buildResponse(OpFindAll, res.Records, res.Meta, call.Options), nil
	})
}

func (a *Adapter) runQuery(ctx context.Context, m *Mapper, query Query, opts *Options) (Result, error) {
	qb, err := a.Translate(m, query, opts)
	if err != nil {
		return Result{}, err
	}
	res, err := a.store.Run(ctx, qb)
	if err != nil {
		return Result{}, err
	}
	if res.Records == nil {
		res.Records = []Record{}
	}
	return res, nil
}

// Destroy deletes one record by key without checking that it exists.
func (a *Adapter) Destroy(ctx context.Context, m *Mapper, id any, opts *Options) (*Response, error) {
	call := Call{Op: OpDestroy, Mapper: m, ID: id, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		res, err := a.store.Delete(ctx, call.Mapper.Collection(call.Options), call.ID)
		if err != nil {
			return nil, err
		}
		return buildResponse(OpDestroy, nil, res.Meta, call.Options), nil
	})
}

// DestroyAll deletes every record matching query in one batch. No store
// delete is issued when nothing matches.
func (a *Adapter) DestroyAll(ctx context.Context, m *Mapper, query Query, opts *Options) (*Response, error) {
	call := Call{Op: OpDestroyAll, Mapper: m, Query: query, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		found, err := a.runQuery(ctx, call.Mapper, call.Query, call.Options.withoutRelations())
		if err != nil {
			return nil, err
		}
		idAttr := call.Mapper.ID()
		ids := make([]any, 0, len(found.Records))
		for _, rec := range found.Records {
			if id, ok := rec[idAttr]; ok && id != nil {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			return buildResponse(OpDestroyAll, nil, nil, call.Options), nil
		}
		res, err := a.store.DeleteMany(ctx, call.Mapper.Collection(call.Options), ids)
		if err != nil {
			return nil, err
		}
		return buildResponse(OpDestroyAll, nil, res.Meta, call.Options), nil
	})
}

// Update merges props onto the existing record. A missing record fails with
// a NotFoundError; nothing is written.
func (a *Adapter) Update(ctx context.Context, m *Mapper, id any, props Record, opts *Options) (*Response, error) {
	call := Call{Op: OpUpdate, Mapper: m, ID: id, Props: props, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		coll := call.Mapper.Collection(call.Options)
		rec, err := a.store.Get(ctx, coll, call.ID)
		if err != nil {
			return nil, err
		}
		if rec == nil {
			return nil, &NotFoundError{Kind: coll.Kind, ID: call.ID}
		}
		key := rec[coll.IDAttribute]
		MergeUpdate(rec, StripRelations(call.Mapper, call.Props))
		rec[coll.IDAttribute] = key

		written, meta, err := a.putMany(ctx, call.Mapper, []Record{rec}, call.Options)
		if err != nil {
			return nil, err
		}
		var data Record
		if len(written) > 0 {
			data = written[0]
		}
		return buildResponse(OpUpdate, data, meta, call.Options), nil
	})
}

// UpdateAll merges props onto every record matching query.
func (a *Adapter) UpdateAll(ctx context.Context, m *Mapper, props Record, query Query, opts *Options) (*Response, error) {
	call := Call{Op: OpUpdateAll, Mapper: m, Props: props, Query: query, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		found, err := a.runQuery(ctx, call.Mapper, call.Query, call.Options.withoutRelations())
		if err != nil {
			return nil, err
		}
		partial := StripRelations(call.Mapper, call.Props)
		idAttr := call.Mapper.ID()
		for _, rec := range found.Records {
			key := rec[idAttr]
			MergeUpdate(rec, partial)
			rec[idAttr] = key
		}
		written, meta, err := a.putMany(ctx, call.Mapper, found.Records, call.Options)
		if err != nil {
			return nil, err
		}
		return buildResponse(OpUpdateAll, written, meta, call.Options), nil
	})
}

// UpdateMany merges each partial record onto the stored record with the same
// key. Partials without a key, or whose record does not exist, are dropped.
func (a *Adapter) UpdateMany(ctx context.Context, m *Mapper, records []Record, opts *Options) (*Response, error) {
	call := Call{Op: OpUpdateMany, Mapper: m, Records: records, Options: opts}
	return a.run(ctx, call, func(ctx context.Context, call Call) (*Response, error) {
		coll := call.Mapper.Collection(call.Options)

		var partials []Record
		for _, p := range call.Records {
			if id, ok := p[coll.IDAttribute]; ok && id != nil {
				partials = append(partials, p)
			}
		}

		merged := make([]Record, len(partials))
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(a.config.MaxConcurrency)
		for i, p := range partials {
			g.Go(func() error {
				id := p[coll.IDAttribute]
				rec, err := a.store.Get(gctx, coll, id)
				if err != nil || rec == nil {
					return err
				}
				key := rec[coll.IDAttribute]
				MergeUpdate(rec, StripRelations(call.Mapper, p))
				rec[coll.IDAttribute] = key
				merged[i] = rec
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}

		written, meta, err := a.putMany(ctx, call.Mapper, merged, call.Options)
		if err != nil {
			return nil, err
		}
		return buildResponse(OpUpdateMany, written, meta, call.Options), nil
	})
}

// putMany is the batch-update path. Records without a resolvable key are
// excluded; an empty write set makes no store call.
func (a *Adapter) putMany(ctx context.Context, m *Mapper, records []Record, opts *Options) ([]Record, any, error) {
	idAttr := m.ID()
	keyed := make([]Record, 0, len(records))
	for _, rec := range records {
		if rec == nil {
			continue
		}
		if id, ok := rec[idAttr]; ok && id != nil {
			keyed = append(keyed, rec)
		}
	}
	if len(keyed) == 0 {
		return []Record{}, nil, nil
	}
	res, err := a.store.Put(ctx, m.Collection(opts), keyed)
	if err != nil {
		return nil, nil, err
	}
	if res.Records == nil {
		return keyed, res.Meta, nil
	}
	return res.Records, res.Meta, nil
}
