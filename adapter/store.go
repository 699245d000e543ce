package adapter

import (
	"context"
	"errors"
)

// ErrForeignQuery is returned by a store asked to run a builder it did not create.
var ErrForeignQuery = errors.New("lattice: query builder belongs to another store")

// Collection identifies a backend collection and its primary key field.
type Collection struct {
	Kind        string
	IDAttribute string
}

// QueryBuilder is a store's native query representation. Every method returns
// the builder to continue the chain with; implementations may return the receiver.
type QueryBuilder interface {
	Where(field string, c Comparison, value any) QueryBuilder
	OrderBy(field string, desc bool) QueryBuilder
	Offset(n int) QueryBuilder
	Limit(n int) QueryBuilder
}

// Result is returned by store operations.
type Result struct {
	// Records holds the records read or written, as the store sees them.
	Records []Record

	// Meta is backend-specific metadata (e.g. consumed capacity, rows affected).
	Meta any
}

// Store performs persistence for an Adapter.
type Store interface {
	// NewQuery starts a native query against c.
	NewQuery(c Collection) QueryBuilder

	// Run executes a builder returned by NewQuery.
	Run(ctx context.Context, q QueryBuilder) (Result, error)

	// Get fetches one record by primary key. A missing record is (nil, nil).
	Get(ctx context.Context, c Collection, id any) (Record, error)

	// Create allocates one fresh primary key per record and saves all records as
	// a single atomic unit. Either every record is persisted or none is. The
	// returned records carry their keys.
	Create(ctx context.Context, c Collection, records []Record) (Result, error)

	// Put writes records that already carry a primary key.
	Put(ctx context.Context, c Collection, records []Record) (Result, error)

	// Delete removes one record by primary key. Deleting a missing key is not an error.
	Delete(ctx context.Context, c Collection, id any) (Result, error)

	// DeleteMany removes records by primary key in one batch.
	DeleteMany(ctx context.Context, c Collection, ids []any) (Result, error)
}
