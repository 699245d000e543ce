package dynamo

import "errors"

var (
	// ErrAlreadyExists is returned when an allocated key collides with an existing item.
	ErrAlreadyExists = errors.New("lattice/dynamo: item already exists")

	// ErrBatchTooLarge is returned when an atomic create exceeds the transaction item limit.
	ErrBatchTooLarge = errors.New("lattice/dynamo: batch exceeds transaction item limit")

	// ErrMissingKey is returned when a record to put has no primary key.
	ErrMissingKey = errors.New("lattice/dynamo: record has no primary key")
)
