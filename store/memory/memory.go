// Package memory provides an in-process Store. It is safe for concurrent use
// and is meant for tests and single-process tools.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/jacentio/lattice/adapter"
	"github.com/jacentio/lattice/internal/valuecmp"
)

// Store operation names passed to a FaultFunc and counted by Calls.
const (
	OpGet        = "get"
	OpRun        = "run"
	OpCreate     = "create"
	OpPut        = "put"
	OpDelete     = "delete"
	OpDeleteMany = "deleteMany"
)

// FaultFunc is consulted before each record an operation touches (index is
// the record's position in the batch, 0 for single-record operations).
// Returning an error fails the operation with nothing applied.
type FaultFunc func(op, kind string, index int) error

type entry struct {
	seq    uint64
	record adapter.Record
}

// Store keeps records in memory. Data is lost when the process exits.
type Store struct {
	mu    sync.RWMutex
	kinds map[string]map[string]entry
	keys  map[string]int64
	seq   uint64
	fault FaultFunc
	calls map[string]int
}

var _ adapter.Store = (*Store)(nil)

// New creates an empty Store.
func New() *Store {
	return &Store{
		kinds: make(map[string]map[string]entry),
		keys:  make(map[string]int64),
		calls: make(map[string]int),
	}
}

// SetFault installs f; nil removes it.
func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// Calls returns how many times op has been invoked, including failed calls.
func (s *Store) Calls(op string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.calls[op]
}

// Len returns the number of records stored under kind.
func (s *Store) Len(kind string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.kinds[kind])
}

// NewQuery starts a query against c.
func (s *Store) NewQuery(c adapter.Collection) adapter.QueryBuilder {
	return &Query{collection: c, limit: -1}
}

// Run executes q.
func (s *Store) Run(ctx context.Context, qb adapter.QueryBuilder) (adapter.Result, error) {
	q, ok := qb.(*Query)
	if !ok {
		return adapter.Result{}, adapter.ErrForeignQuery
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpRun]++
	if err := s.check(OpRun, q.collection.Kind, 0); err != nil {
		return adapter.Result{}, err
	}

	entries := make([]entry, 0, len(s.kinds[q.collection.Kind]))
	for _, e := range s.kinds[q.collection.Kind] {
		if q.matches(e.record) {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	sort.SliceStable(entries, func(i, j int) bool {
		for _, o := range q.sorts {
			n := valuecmp.Order(entries[i].record[o.Field], entries[j].record[o.Field])
			if n == 0 {
				continue
			}
			if o.Desc {
				return n > 0
			}
			return n < 0
		}
		return false
	})

	if q.offset > 0 {
		if q.offset >= len(entries) {
			entries = nil
		} else {
			entries = entries[q.offset:]
		}
	}
	if q.limit >= 0 && q.limit < len(entries) {
		entries = entries[:q.limit]
	}

	records := make([]adapter.Record, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record.Clone())
	}
	return adapter.Result{Records: records, Meta: Stats{Scanned: len(s.kinds[q.collection.Kind])}}, nil
}

// Stats is the metadata returned by Run.
type Stats struct {
	Scanned int
}

// Get fetches a record by key.
func (s *Store) Get(ctx context.Context, c adapter.Collection, id any) (adapter.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpGet]++
	if err := s.check(OpGet, c.Kind, 0); err != nil {
		return nil, err
	}
	e, ok := s.kinds[c.Kind][valuecmp.KeyString(id)]
	if !ok {
		return nil, nil
	}
	return e.record.Clone(), nil
}

// Create allocates sequential integer keys and saves records atomically.
func (s *Store) Create(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpCreate]++

	next := s.keys[c.Kind]
	staged := make([]adapter.Record, len(records))
	for i, r := range records {
		if err := s.check(OpCreate, c.Kind, i); err != nil {
			return adapter.Result{}, err
		}
		next++
		rec := r.Clone()
		if rec == nil {
			rec = adapter.Record{}
		}
		rec[c.IDAttribute] = next
		staged[i] = rec
	}

	s.keys[c.Kind] = next
	s.commit(c, staged)
	return adapter.Result{Records: cloneAll(staged)}, nil
}

// Put writes keyed records atomically.
func (s *Store) Put(ctx context.Context, c adapter.Collection, records []adapter.Record) (adapter.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpPut]++

	staged := make([]adapter.Record, len(records))
	for i, r := range records {
		if err := s.check(OpPut, c.Kind, i); err != nil {
			return adapter.Result{}, err
		}
		if r[c.IDAttribute] == nil {
			return adapter.Result{}, fmt.Errorf("memory: put %s: record %d has no %q", c.Kind, i, c.IDAttribute)
		}
		staged[i] = r.Clone()
	}
	s.commit(c, staged)
	return adapter.Result{Records: cloneAll(staged)}, nil
}

// Delete removes a record by key.
func (s *Store) Delete(ctx context.Context, c adapter.Collection, id any) (adapter.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpDelete]++
	if err := s.check(OpDelete, c.Kind, 0); err != nil {
		return adapter.Result{}, err
	}
	n := 0
	if _, ok := s.kinds[c.Kind][valuecmp.KeyString(id)]; ok {
		delete(s.kinds[c.Kind], valuecmp.KeyString(id))
		n = 1
	}
	return adapter.Result{Meta: Stats{Scanned: n}}, nil
}

// DeleteMany removes records by key atomically.
func (s *Store) DeleteMany(ctx context.Context, c adapter.Collection, ids []any) (adapter.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[OpDeleteMany]++
	for i := range ids {
		if err := s.check(OpDeleteMany, c.Kind, i); err != nil {
			return adapter.Result{}, err
		}
	}
	n := 0
	for _, id := range ids {
		k := valuecmp.KeyString(id)
		if _, ok := s.kinds[c.Kind][k]; ok {
			delete(s.kinds[c.Kind], k)
			n++
		}
	}
	return adapter.Result{Meta: Stats{Scanned: n}}, nil
}

// commit must be called with s.mu held.
func (s *Store) commit(c adapter.Collection, records []adapter.Record) {
	kind := s.kinds[c.Kind]
	if kind == nil {
		kind = make(map[string]entry)
		s.kinds[c.Kind] = kind
	}
	for _, rec := range records {
		k := valuecmp.KeyString(rec[c.IDAttribute])
		if old, ok := kind[k]; ok {
			kind[k] = entry{seq: old.seq, record: rec}
			continue
		}
		s.seq++
		kind[k] = entry{seq: s.seq, record: rec}
	}
}

// check must be called with s.mu held.
func (s *Store) check(op, kind string, index int) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op, kind, index)
}

func cloneAll(records []adapter.Record) []adapter.Record {
	out := make([]adapter.Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
